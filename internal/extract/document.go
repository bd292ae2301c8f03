package extract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed HTML snapshot of a rendered page.
type Document struct {
	doc *goquery.Document

	textOnce sync.Once
	text     string

	productOnce sync.Once
	product     *Product
}

// Parse builds a Document from page.Content() output.
func Parse(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Root returns the whole-page scope.
func (d *Document) Root() Scope {
	return Scope{sel: d.doc.Selection, doc: d, root: true}
}

// Text returns the rendered text of <body>, without script/style/noscript.
func (d *Document) Text() string {
	d.textOnce.Do(func() {
		body := d.doc.Find("body")
		if body.Length() == 0 {
			body = d.doc.Selection
		}
		d.text = InnerText(body)
	})
	return d.text
}

// Product returns the first schema.org Product found in JSON-LD blocks, or nil.
func (d *Document) Product() *Product {
	d.productOnce.Do(func() {
		d.product = findProduct(d.doc)
	})
	return d.product
}

// Cards returns the elements matched by the first selector that yields any.
// When require is set, elements without a matching descendant are dropped.
func (d *Document) Cards(selectors []string, require string) []Scope {
	for _, s := range selectors {
		var out []Scope
		d.doc.Find(s).Each(func(_ int, sel *goquery.Selection) {
			if require != "" && sel.Find(require).Length() == 0 {
				return
			}
			out = append(out, Scope{sel: sel, doc: d})
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Scope is a region of a Document that field strategies run against.
type Scope struct {
	sel  *goquery.Selection
	doc  *Document
	root bool
}

// Text returns the scope's rendered text.
func (s Scope) Text() string {
	if s.root {
		return s.doc.Text()
	}
	return InnerText(s.sel)
}

// Has reports whether any descendant matches selector.
func (s Scope) Has(selector string) bool {
	return s.sel.Find(selector).Length() > 0
}

// First returns the rendered text of the first descendant matching selector.
func (s Scope) First(selector string) (string, bool) {
	m := s.sel.Find(selector).First()
	if m.Length() == 0 {
		return "", false
	}
	return InnerText(m), true
}

// Attr returns attribute attr of the first descendant matching selector.
func (s Scope) Attr(selector, attr string) (string, bool) {
	m := s.sel.Find(selector).First()
	if m.Length() == 0 {
		return "", false
	}
	v, ok := m.Attr(attr)
	return strings.TrimSpace(v), ok
}

// Each calls fn with the rendered text of every descendant matching selector,
// in document order, until fn returns false.
func (s Scope) Each(selector string, fn func(text string) bool) {
	s.sel.Find(selector).EachWithBreak(func(_ int, m *goquery.Selection) bool {
		return fn(InnerText(m))
	})
}

// Product returns page structured data. Card scopes never see it.
func (s Scope) Product() *Product {
	if !s.root {
		return nil
	}
	return s.doc.Product()
}
