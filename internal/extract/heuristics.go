package extract

import "regexp"

// Shared text heuristics for the last resolution layer.
var (
	// RatingBeforeCount matches "4.3 ★ 45,585 Ratings".
	RatingBeforeCount = regexp.MustCompile(`(\d\.\d)\s*★?\s*?[\d,]+\s*Ratings`)
	// PlausibleRating is searched for near a "Ratings" label.
	PlausibleRating = regexp.MustCompile(`([3-5]\.\d)`)
	// CountBeforeLabel matches digits immediately preceding "Ratings" that are
	// not the tail of a decimal.
	CountBeforeLabel = regexp.MustCompile(`(?:^|[^\d.])([\d,]+)\s+Ratings`)
	// RupeeAmount matches "₹ 1,299" anywhere in a text.
	RupeeAmount = regexp.MustCompile(`₹\s?([\d,]+)`)
	// RatingWithCount matches "4.2 (318)".
	RatingWithCount = regexp.MustCompile(`(\d\.\d)\s*\((\d+)\)`)
	// FirstLine captures the first line of a block of text.
	FirstLine = regexp.MustCompile(`^(.+)`)
)

// PriceChain is the consolidated price order: visual selectors, then an exact
// rupee token scan ignoring amounts up to floor, then structured data.
func PriceChain(field string, selectors []string, visual Cleaner, floor int) FieldStrategy {
	return FieldStrategy{
		Field: field,
		Attempts: []Attempt{
			Selectors{List: selectors, Clean: visual},
			ExactToken{Tags: "div, span, h1, h2, h3, h4", Regex: RupeeToken, Min: floor},
			Structured{Key: StructuredPrice, Clean: CleanPrice},
		},
	}
}

// RatingChain resolves a rating from structured data, selectors, then text.
func RatingChain(field string, selectors []string) FieldStrategy {
	return FieldStrategy{
		Field: field,
		Attempts: []Attempt{
			Structured{Key: StructuredRating, Clean: CleanRating},
			Selectors{List: selectors, Clean: CleanRating},
			Pattern{Regex: RatingBeforeCount, Group: 1},
			Proximity{Label: "Ratings", Window: 30, Regex: PlausibleRating},
		},
	}
}

// CountChain resolves a ratings count from structured data, selectors, then text.
func CountChain(field string, selectors []string) FieldStrategy {
	return FieldStrategy{
		Field: field,
		Attempts: []Attempt{
			Structured{Key: StructuredCount, Clean: CleanCount},
			Pattern{Within: selectors, Regex: CountBeforeLabel, Group: 1, Clean: CleanCount},
			Pattern{Regex: CountBeforeLabel, Group: 1, Clean: CleanCount},
		},
	}
}

// NameChain resolves a product name from structured data, then selectors.
func NameChain(field string, selectors []string) FieldStrategy {
	return FieldStrategy{
		Field: field,
		Attempts: []Attempt{
			Structured{Key: StructuredName},
			Selectors{List: selectors},
		},
	}
}
