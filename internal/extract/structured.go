package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Product holds the schema.org Product fields the resolver reads.
type Product struct {
	Name        string
	Price       string
	Rating      string
	RatingCount string
}

// StructuredKey selects one Product field.
type StructuredKey int

const (
	StructuredName StructuredKey = iota
	StructuredPrice
	StructuredRating
	StructuredCount
)

func (p *Product) value(k StructuredKey) string {
	if p == nil {
		return ""
	}
	switch k {
	case StructuredName:
		return p.Name
	case StructuredPrice:
		return p.Price
	case StructuredRating:
		return p.Rating
	case StructuredCount:
		return p.RatingCount
	}
	return ""
}

func findProduct(doc *goquery.Document) *Product {
	var found *Product
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		dec := json.NewDecoder(strings.NewReader(s.Text()))
		dec.UseNumber()

		var data any
		if err := dec.Decode(&data); err != nil {
			return true
		}
		if node := productNode(data); node != nil {
			found = productFrom(node)
			return false
		}
		return true
	})
	return found
}

// productNode walks objects, lists and @graph containers for @type Product.
func productNode(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if n := productNode(e); n != nil {
				return n
			}
		}
	case map[string]any:
		if isProductType(t["@type"]) {
			return t
		}
		if g, ok := t["@graph"]; ok {
			return productNode(g)
		}
	}
	return nil
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Product"
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func productFrom(node map[string]any) *Product {
	p := &Product{Name: CleanText(scalar(node["name"]))}

	offer := node["offers"]
	if list, ok := offer.([]any); ok && len(list) > 0 {
		offer = list[0]
	}
	if o, ok := offer.(map[string]any); ok {
		p.Price = scalar(o["price"])
		if p.Price == "" {
			p.Price = scalar(o["lowPrice"])
		}
	}

	if agg, ok := node["aggregateRating"].(map[string]any); ok {
		p.Rating = scalar(agg["ratingValue"])
		p.RatingCount = scalar(agg["reviewCount"])
		if p.RatingCount == "" {
			p.RatingCount = scalar(agg["ratingCount"])
		}
	}
	return p
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool, float64:
		return fmt.Sprint(t)
	}
	return ""
}
