package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/ecommerce-scraper/internal/models"
)

// Attempt is one way of reading a field. It returns "" when it finds nothing.
type Attempt interface {
	Resolve(s Scope) string
}

// FieldStrategy resolves one field through an ordered list of attempts. The
// first attempt that yields a non-empty cleaned value wins.
type FieldStrategy struct {
	Field    string
	Attempts []Attempt
}

// Resolve never returns an empty string; absence is models.NotAvailable.
func (f FieldStrategy) Resolve(s Scope) string {
	for _, a := range f.Attempts {
		if v := a.Resolve(s); v != "" {
			return v
		}
	}
	return models.NotAvailable
}

// Apply resolves every strategy into item, leaving already-resolved fields alone.
func Apply(item *models.Item, s Scope, strategies []FieldStrategy) {
	for _, f := range strategies {
		if item.Resolved(f.Field) {
			continue
		}
		item.Set(f.Field, f.Resolve(s))
	}
}

// Structured reads a field from the page's JSON-LD Product.
type Structured struct {
	Key   StructuredKey
	Clean Cleaner
}

func (a Structured) Resolve(s Scope) string {
	return clean(a.Clean, s.Product().value(a.Key))
}

// Selectors tries each selector in order and takes the first element whose
// cleaned text (or Attr) is non-empty.
type Selectors struct {
	List  []string
	Attr  string
	Clean Cleaner
}

func (a Selectors) Resolve(s Scope) string {
	for _, sel := range a.List {
		var raw string
		var ok bool
		if a.Attr != "" {
			raw, ok = s.Attr(sel, a.Attr)
		} else {
			raw, ok = s.First(sel)
		}
		if !ok {
			continue
		}
		if v := clean(a.Clean, raw); v != "" {
			return v
		}
	}
	return ""
}

// Pattern runs a regexp over the text of the first matching container, or
// over the scope text when Within is empty.
type Pattern struct {
	Within []string
	Regex  *regexp.Regexp
	Group  int
	Clean  Cleaner
}

func (a Pattern) Resolve(s Scope) string {
	if len(a.Within) == 0 {
		return a.match(s.Text())
	}
	for _, sel := range a.Within {
		if text, ok := s.First(sel); ok {
			if v := a.match(text); v != "" {
				return v
			}
		}
	}
	return ""
}

func (a Pattern) match(text string) string {
	m := a.Regex.FindStringSubmatch(text)
	if m == nil || a.Group >= len(m) {
		return ""
	}
	return clean(a.Clean, m[a.Group])
}

// ExactToken scans elements in document order for text that matches Regex
// exactly, and returns the first numeric candidate above Min.
type ExactToken struct {
	Tags  string
	Regex *regexp.Regexp
	Min   int
}

// RupeeToken matches an isolated rupee amount such as "₹28,999".
var RupeeToken = regexp.MustCompile(`^₹\d{1,3}(?:,\d{3})*$`)

func (a ExactToken) Resolve(s Scope) string {
	var out string
	s.Each(a.Tags, func(text string) bool {
		text = strings.TrimSpace(text)
		if !a.Regex.MatchString(text) {
			return true
		}
		val := CleanCount(text)
		n, err := strconv.Atoi(val)
		if err != nil || n <= a.Min {
			return true
		}
		out = strconv.Itoa(n)
		return false
	})
	return out
}

// Proximity looks for Regex inside the Window characters that precede each
// occurrence of Label.
type Proximity struct {
	Label  string
	Window int
	Regex  *regexp.Regexp
}

func (a Proximity) Resolve(s Scope) string {
	text := s.Text()
	offset := 0
	for {
		idx := strings.Index(text[offset:], a.Label)
		if idx < 0 {
			return ""
		}
		at := offset + idx
		start := at - a.Window
		if start < 0 {
			start = 0
		}
		if m := a.Regex.FindStringSubmatch(text[start:at]); m != nil {
			return m[len(m)-1]
		}
		offset = at + len(a.Label)
	}
}

func clean(c Cleaner, v string) string {
	if c == nil {
		return CleanText(v)
	}
	return c(v)
}
