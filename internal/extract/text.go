package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tr": true, "ul": true, "td": true, "th": true,
}

// InnerText approximates the browser's innerText: block elements start new
// lines, whitespace runs collapse, and blank lines are dropped.
func InnerText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			name := goquery.NodeName(c)
			switch {
			case name == "#text":
				b.WriteString(c.Text())
			case strings.HasPrefix(name, "#"), skipTags[name]:
			case name == "br":
				b.WriteByte('\n')
			case blockTags[name]:
				b.WriteByte('\n')
				walk(c)
				b.WriteByte('\n')
			default:
				walk(c)
			}
		})
	}

	if goquery.NodeName(s) == "#text" {
		b.WriteString(s.Text())
	} else {
		walk(s)
	}
	return normalizeLines(b.String())
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if f := strings.Join(strings.Fields(l), " "); f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, "\n")
}

// Cleaner normalizes a raw value. An empty result means "no value".
type Cleaner func(string) string

var (
	priceNoise  = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", "MRP", "", "INR", "", ",", "")
	priceToken  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	ratingToken = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
	nonDigits   = regexp.MustCompile(`\D`)
	plainDigits = regexp.MustCompile(`^\d+$`)
)

// CleanText collapses whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanPrice strips currency markers and separators and keeps the first
// numeric token. "28,999." becomes "28999".
func CleanPrice(s string) string {
	s = priceNoise.Replace(s)
	m := priceToken.FindString(s)
	return strings.TrimSuffix(m, ".")
}

// CleanStrictPrice accepts only values that are all digits after removing the
// currency symbol and separators.
func CleanStrictPrice(s string) string {
	s = strings.TrimSpace(strings.NewReplacer("₹", "", ",", "").Replace(s))
	if !plainDigits.MatchString(s) {
		return ""
	}
	return s
}

// CleanRating keeps the leading numeric token: "4.3 out of 5 stars" → "4.3".
func CleanRating(s string) string {
	m := ratingToken.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// CleanCount keeps digits only: "1,234 ratings" → "1234".
func CleanCount(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// CleanFirstLine returns the first non-blank line.
func CleanFirstLine(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = CleanText(l); l != "" {
			return l
		}
	}
	return ""
}
