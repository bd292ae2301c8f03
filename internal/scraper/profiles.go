package scraper

import (
	"regexp"
	"time"

	"github.com/maltedev/ecommerce-scraper/internal/browser"
	"github.com/maltedev/ecommerce-scraper/internal/extract"
	"github.com/maltedev/ecommerce-scraper/internal/models"
)

// Platform-specific columns.
const (
	FieldASIN        = "ASIN"
	FieldBoughtMonth = "Bought in past month"
	FieldProductID   = "Product ID"
	FieldPVID        = "PVID"
)

var (
	asinPattern   = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)
	fkPIDPattern  = regexp.MustCompile(`pid=([A-Z0-9]+)`)
	priceLineRule = regexp.MustCompile(`(?m)^.*(?:Rs|₹).*$`)
)

// AmazonASIN extracts the 10 character ASIN from a product URL.
func AmazonASIN(productURL string) string {
	if m := asinPattern.FindStringSubmatch(productURL); m != nil {
		return m[1]
	}
	return ""
}

// FlipkartPID reads the pid query parameter of a product URL.
func FlipkartPID(productURL string) string {
	if pid := QueryParam(productURL, "pid"); pid != "" {
		return pid
	}
	if m := fkPIDPattern.FindStringSubmatch(productURL); m != nil {
		return m[1]
	}
	return ""
}

var quickTiming = Timing{
	NavTimeout:   60 * time.Second,
	SettleDelay:  3 * time.Second,
	PollInterval: 2 * time.Second,
	ScrollDelay:  time.Second,
	PacingMin:    2 * time.Second,
	PacingMax:    2 * time.Second,
}

// DefaultProfiles returns the built-in platform table.
func DefaultProfiles() []Profile {
	return []Profile{
		amazonProfile(),
		flipkartProfile(),
		zeptoProfile(),
		blinkitProfile(),
		jiomartProfile(),
		swiggyProfile(),
		bigbasketProfile(),
	}
}

func amazonProfile() Profile {
	return Profile{
		Name:       "amazon",
		Label:      "Amazon",
		Origin:     "https://www.amazon.in",
		HomeURL:    "https://www.amazon.in/",
		HostMarker: "amazon.in",
		SearchURL:  "https://www.amazon.in/s?k=%s",
		QueryParam: "k",
		Wait:       browser.WaitDOMContentLoaded,
		Listing: Listing{
			Cards:        []string{`div[data-component-type="s-search-result"]`},
			Links:        []string{"h2 a", "a.a-link-normal.s-no-outline"},
			PollAttempts: 40,
			Markers: []Marker{
				{
					ResultType: models.ResultSponsored,
					Selectors:  []string{".puis-sponsored-label-text"},
					Text:       "Sponsored",
					Within:     50,
				},
				{
					ResultType: "Amazon's Choice",
					Selectors:  []string{`span[aria-label="Amazon's Choice"]`},
					Text:       "Amazon's Choice",
				},
			},
			Humanize: true,
		},
		Detail: Detail{
			Schema: models.Schema{
				models.FieldProductName, models.FieldPriceINR, models.FieldRating,
				models.FieldRatingsCount, FieldASIN,
				models.FieldPrimaryRankNumber, models.FieldPrimaryRankCategory,
				models.FieldSecondaryRankNumber, models.FieldSecondaryRankCategory,
				models.FieldResultType, FieldBoughtMonth, models.FieldDateScraped, models.FieldURL,
			},
			Fields: []extract.FieldStrategy{
				extract.NameChain(models.FieldProductName, []string{"#productTitle"}),
				extract.PriceChain(models.FieldPriceINR,
					[]string{".a-price-whole", "#corePrice_feature_div .a-offscreen", ".a-price .a-offscreen"},
					extract.CleanPrice, 100),
				extract.RatingChain(models.FieldRating, []string{"span.a-icon-alt"}),
				{
					Field: models.FieldRatingsCount,
					Attempts: []extract.Attempt{
						extract.Structured{Key: extract.StructuredCount, Clean: extract.CleanCount},
						extract.Selectors{List: []string{"#acrCustomerReviewText"}, Clean: extract.CleanCount},
					},
				},
				{
					Field: FieldBoughtMonth,
					Attempts: []extract.Attempt{
						extract.Selectors{List: []string{
							"#social-proofing-faceout-title-text span",
							".social-proofing-faceout-title-text span",
						}},
					},
				},
			},
			Ranks:   true,
			IDField: FieldASIN,
			ID:      AmazonASIN,
		},
		Reviews: &Reviews{
			URL:    "https://www.amazon.in/product-reviews/%s/?reviewerType=all_reviews",
			SignIn: "/ap/signin",
			Cards:  "div[data-hook='review']",
			Schema: models.ReviewSchema,
			Fields: []extract.FieldStrategy{
				{Field: models.FieldReviewerName, Attempts: []extract.Attempt{
					extract.Selectors{List: []string{".a-profile-name"}},
				}},
				{Field: models.FieldRating, Attempts: []extract.Attempt{
					extract.Selectors{List: []string{"i[data-hook='review-star-rating'] span.a-icon-alt"}, Clean: extract.CleanRating},
				}},
				{Field: models.FieldReviewDate, Attempts: []extract.Attempt{
					extract.Selectors{List: []string{"span[data-hook='review-date']"}},
				}},
				{Field: models.FieldReviewText, Attempts: []extract.Attempt{
					extract.Selectors{List: []string{"span[data-hook='review-body']"}},
				}},
			},
			Required: []string{
				".a-profile-name",
				"i[data-hook='review-star-rating'] span.a-icon-alt",
				"span[data-hook='review-date']",
				"span[data-hook='review-body']",
			},
			Next:     "li.a-last a",
			MaxPages: 50,
		},
		Timing: Timing{
			NavTimeout:      60 * time.Second,
			WarmupDelay:     3 * time.Second,
			PollInterval:    5 * time.Second,
			PacingMin:       2 * time.Second,
			PacingMax:       4 * time.Second,
			AuthPoll:        5 * time.Second,
			AuthWait:        10 * time.Minute,
			ReviewFirstWait: 10 * time.Second,
			ReviewPageDelay: 2 * time.Second,
		},
	}
}

func flipkartProfile() Profile {
	return Profile{
		Name:       "flipkart",
		Label:      "Flipkart",
		Origin:     "https://www.flipkart.com",
		HomeURL:    "https://www.flipkart.com/",
		HostMarker: "flipkart.com",
		SearchURL:  "https://www.flipkart.com/search?q=%s",
		QueryParam: "q",
		Wait:       browser.WaitDOMContentLoaded,
		Dismiss:    []string{"button._2KpZ6l._2doB4z"},
		Listing: Listing{
			Cards:        []string{"div[data-id]"},
			Require:      "a",
			Links:        []string{"a"},
			PollAttempts: 5,
		},
		Detail: Detail{
			Schema: models.Schema{
				models.FieldProductName, models.FieldPriceINR, models.FieldRating,
				models.FieldRatingsCount, FieldProductID,
				models.FieldResultType, models.FieldDateScraped, models.FieldURL,
			},
			Fields: []extract.FieldStrategy{
				extract.NameChain(models.FieldProductName, []string{"span.B_NuCI", "h1.yhB1nd", "h1"}),
				extract.PriceChain(models.FieldPriceINR,
					[]string{"div.Nx9bqj.CxhGGd", "div.Nx9bqj", "div._30jeq3._16Jk6d", "div._30jeq3"},
					extract.CleanStrictPrice, 100),
				extract.RatingChain(models.FieldRating, []string{"div.XQDdHH", "div._3LWZlK"}),
				extract.CountChain(models.FieldRatingsCount, []string{"span.Wphh3N", "span._2_R_DZ"}),
			},
			IDField: FieldProductID,
			ID:      FlipkartPID,
		},
		Unsupported: "Review scraping is not implemented for Flipkart yet.",
		Timing: Timing{
			NavTimeout:   60 * time.Second,
			WarmupDelay:  2 * time.Second,
			SettleDelay:  3 * time.Second,
			PollInterval: 2 * time.Second,
			PacingMin:    time.Second,
			PacingMax:    time.Second,
		},
	}
}

func zeptoProfile() Profile {
	return Profile{
		Name:       "zepto",
		Label:      "Zepto",
		Origin:     "https://zeptonow.com",
		HostMarker: "zeptonow.com",
		SearchURL:  "https://zeptonow.com/search?query=%s",
		QueryParam: "query",
		Wait:       browser.WaitNetworkIdle,
		Listing: Listing{
			Cards:        []string{`[data-testid="product-card"]`},
			Links:        []string{"a"},
			PollAttempts: 3,
			Inline:       true,
			Schema:       inlineSchema,
			Fields: []extract.FieldStrategy{
				{Field: models.FieldProductName, Attempts: []extract.Attempt{
					extract.Selectors{List: []string{"h5", "h4"}},
				}},
				{Field: models.FieldPrice, Attempts: []extract.Attempt{
					extract.Selectors{List: []string{`[data-testid="product-price"]`}, Clean: extract.CleanPrice},
				}},
			},
		},
		Detail: Detail{
			Schema: models.Schema{
				models.FieldProductName, models.FieldPrice, models.FieldRating,
				models.FieldReviewsCount, FieldPVID,
				models.FieldPlatform, models.FieldURL, models.FieldDateScraped,
			},
			Fields: []extract.FieldStrategy{
				extract.NameChain(models.FieldProductName, []string{"h1"}),
				withFallback(
					extract.PriceChain(models.FieldPrice, nil, nil, 0),
					extract.Pattern{Within: []string{`[data-testid="product-price"]`}, Regex: extract.RupeeAmount, Group: 1, Clean: extract.CleanCount},
				),
				{Field: models.FieldRating, Attempts: []extract.Attempt{
					extract.Structured{Key: extract.StructuredRating, Clean: extract.CleanRating},
					extract.Pattern{Regex: extract.RatingWithCount, Group: 1},
				}},
				{Field: models.FieldReviewsCount, Attempts: []extract.Attempt{
					extract.Structured{Key: extract.StructuredCount, Clean: extract.CleanCount},
					extract.Pattern{Regex: extract.RatingWithCount, Group: 2},
				}},
			},
			IDField: FieldPVID,
			ID:      LastSegment,
		},
		Unsupported: "Zepto does not have traditional public reviews.",
		Timing:      quickTiming,
	}
}

func blinkitProfile() Profile {
	return Profile{
		Name:       "blinkit",
		Label:      "Blinkit",
		Origin:     "https://blinkit.com",
		HostMarker: "blinkit.com",
		SearchURL:  "https://blinkit.com/s/?q=%s",
		QueryParam: "q",
		Wait:       browser.WaitNetworkIdle,
		Listing: Listing{
			Cards: []string{
				`div[data-test-id="available-product-item"]`,
				`a[data-test-id="plp-product-item"]`,
			},
			Links:        []string{"a"},
			PollAttempts: 3,
			WheelSteps:   3,
			WheelDelta:   1000,
			Inline:       true,
			Schema:       inlineSchema,
			Fields:       cardTextFields(extract.RupeeAmount),
		},
		Detail: Detail{
			Schema: quickDetailSchema,
			Fields: []extract.FieldStrategy{
				extract.NameChain(models.FieldProductName, []string{"h1"}),
				withFallback(
					extract.PriceChain(models.FieldPrice, nil, nil, 0),
					extract.Pattern{Regex: extract.RupeeAmount, Group: 1, Clean: extract.CleanCount},
				),
			},
		},
		Unsupported: "Blinkit does not have traditional public reviews.",
		Timing:      quickTiming,
	}
}

func jiomartProfile() Profile {
	return Profile{
		Name:       "jiomart",
		Label:      "JioMart",
		Origin:     "https://www.jiomart.com",
		HostMarker: "jiomart.com",
		SearchURL:  "https://www.jiomart.com/search/%s",
		PathQuery:  true,
		Wait:       browser.WaitDOMContentLoaded,
		Listing: Listing{
			Cards:        []string{".ais-InfiniteHits-item", ".plp-card-container"},
			Links:        []string{"a"},
			PollAttempts: 3,
			Inline:       true,
			Schema:       inlineSchema,
			Fields: []extract.FieldStrategy{
				{Field: models.FieldProductName, Attempts: []extract.Attempt{
					extract.Selectors{List: []string{"div.plp-card-details-name"}},
				}},
				{Field: models.FieldPrice, Attempts: []extract.Attempt{
					extract.Selectors{
						List:  []string{"span.plp-card-details-price-discounted", ".plp-card-details-price"},
						Clean: extract.CleanPrice,
					},
				}},
			},
		},
		Detail: Detail{
			Schema: models.Schema{
				models.FieldProductName, models.FieldPrice, models.FieldRating,
				models.FieldReviewsCount, FieldProductID,
				models.FieldPlatform, models.FieldURL, models.FieldDateScraped,
			},
			Fields: []extract.FieldStrategy{
				extract.NameChain(models.FieldProductName,
					[]string{"h1.product-title-name", "div.product-header-name h1", "h1"}),
				{Field: models.FieldPrice, Attempts: []extract.Attempt{
					extract.Selectors{List: []string{".product-price .price"}, Clean: extract.CleanPrice},
					extract.Pattern{Within: []string{"#price-section"}, Regex: extract.RupeeAmount, Group: 1, Clean: extract.CleanCount},
					extract.ExactToken{Tags: "div, span, h1, h2, h3, h4", Regex: extract.RupeeToken},
					extract.Structured{Key: extract.StructuredPrice, Clean: extract.CleanPrice},
				}},
				extract.RatingChain(models.FieldRating, nil),
				{Field: models.FieldReviewsCount, Attempts: []extract.Attempt{
					extract.Structured{Key: extract.StructuredCount, Clean: extract.CleanCount},
					extract.Selectors{List: []string{".rating-count", ".review-count"}, Clean: extract.CleanCount},
				}},
			},
			IDField: FieldProductID,
			ID:      LastSegment,
		},
		Unsupported: "Review scraping is not implemented for JioMart yet.",
		Timing:      quickTiming,
	}
}

func swiggyProfile() Profile {
	return Profile{
		Name:       "swiggy",
		Label:      "Swiggy Instamart",
		Origin:     "https://www.swiggy.com",
		HostMarker: "swiggy.com",
		SearchURL:  "https://www.swiggy.com/instamart/search?custom_back=true&query=%s",
		QueryParam: "query",
		Wait:       browser.WaitNetworkIdle,
		Listing: Listing{
			Cards:        []string{`[data-testid="product_card"]`},
			Links:        []string{"a"},
			PollAttempts: 3,
			Inline:       true,
			Schema:       inlineSchema,
			Fields:       cardTextFields(extract.RupeeAmount),
		},
		Detail: Detail{
			Schema: quickDetailSchema,
			Fields: []extract.FieldStrategy{
				extract.NameChain(models.FieldProductName, []string{"h1"}),
				withFallback(
					extract.PriceChain(models.FieldPrice, nil, nil, 0),
					extract.Pattern{Regex: extract.RupeeAmount, Group: 1, Clean: extract.CleanCount},
				),
			},
		},
		Unsupported: "Swiggy Instamart does not have traditional reviews.",
		Timing:      quickTiming,
	}
}

func bigbasketProfile() Profile {
	return Profile{
		Name:       "bigbasket",
		Label:      "Big Basket",
		Origin:     "https://www.bigbasket.com",
		HostMarker: "bigbasket.com",
		SearchURL:  "https://www.bigbasket.com/ps/?q=%s",
		QueryParam: "q",
		Wait:       browser.WaitDOMContentLoaded,
		Listing: Listing{
			Cards: []string{
				`div[ng-repeat^="prod in"]`,
				"div.sku-card",
				`li[class*="PaginatedList"]`,
			},
			Links:          []string{"a"},
			PollAttempts:   3,
			ScrollFraction: 1.0 / 3,
			Inline:         true,
			Schema:         inlineSchema,
			Fields:         cardTextFields(priceLineRule),
		},
		Detail: Detail{
			Schema: quickDetailSchema,
			Fields: []extract.FieldStrategy{
				extract.NameChain(models.FieldProductName, []string{"h1"}),
				extract.PriceChain(models.FieldPrice,
					[]string{"td[data-qa='productPrice']", "div[data-qa='productPrice']"},
					extract.CleanPrice, 0),
			},
		},
		Unsupported: "Review scraping is not implemented for Big Basket yet.",
		Timing:      quickTiming,
	}
}

var (
	inlineSchema = models.Schema{
		models.FieldProductName, models.FieldPrice, models.FieldPlatform,
		models.FieldDateScraped, models.FieldURL,
	}
	quickDetailSchema = models.Schema{
		models.FieldProductName, models.FieldPrice, models.FieldPlatform,
		models.FieldURL, models.FieldDateScraped,
	}
)

// cardTextFields reads the name from the first line of a card and the price
// from price. The price pattern's last group is used.
func cardTextFields(price *regexp.Regexp) []extract.FieldStrategy {
	return []extract.FieldStrategy{
		{Field: models.FieldProductName, Attempts: []extract.Attempt{
			extract.Pattern{Regex: extract.FirstLine, Group: 1},
		}},
		{Field: models.FieldPrice, Attempts: []extract.Attempt{
			extract.Pattern{Regex: price, Group: price.NumSubexp(), Clean: extract.CleanPrice},
		}},
	}
}

func withFallback(fs extract.FieldStrategy, attempts ...extract.Attempt) extract.FieldStrategy {
	fs.Attempts = append(append([]extract.Attempt{}, fs.Attempts...), attempts...)
	return fs
}
