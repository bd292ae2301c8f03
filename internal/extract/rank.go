package extract

import (
	"regexp"
	"strings"

	"github.com/maltedev/ecommerce-scraper/internal/models"
)

var rankPattern = regexp.MustCompile(`#(\d+[\d,]*)\s+in\s+([A-Za-z\s&,\-]+)`)

var rankBoilerplate = []string{"Feedback", "Would you like"}

// Rank is one best-seller ranking mention.
type Rank struct {
	Number   string
	Category string
}

// Ranks returns distinct "#<n> in <category>" mentions in document order.
func Ranks(text string) []Rank {
	var out []Rank
	seen := map[Rank]bool{}
	for _, m := range rankPattern.FindAllStringSubmatch(text, -1) {
		r := Rank{Number: "#" + m[1], Category: cleanCategory(m[2])}
		if r.Category == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func cleanCategory(s string) string {
	for _, b := range rankBoilerplate {
		if i := strings.Index(s, b); i >= 0 {
			s = s[:i]
		}
	}
	return CleanText(s)
}

// ApplyRanks fills the primary and secondary rank columns from page text.
func ApplyRanks(item *models.Item, text string) {
	ranks := Ranks(text)
	if len(ranks) > 0 {
		item.Set(models.FieldPrimaryRankNumber, ranks[0].Number)
		item.Set(models.FieldPrimaryRankCategory, ranks[0].Category)
	}
	if len(ranks) > 1 {
		item.Set(models.FieldSecondaryRankNumber, ranks[1].Number)
		item.Set(models.FieldSecondaryRankCategory, ranks[1].Category)
	}
}
