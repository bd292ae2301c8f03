package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/ecommerce-scraper/internal/browser"
	"github.com/maltedev/ecommerce-scraper/internal/extract"
	"github.com/maltedev/ecommerce-scraper/internal/models"
)

// Profile configures the shared pipeline for one platform.
type Profile struct {
	Name  string // lowercase key, also the filename prefix
	Label string // human name written to the Platform column

	Origin     string
	HomeURL    string // visited before searching when set
	HostMarker string // input containing it is already a search URL
	SearchURL  string // fmt template taking the escaped query
	PathQuery  bool   // query is a path segment rather than a parameter
	QueryParam string // parameter holding the query in a search URL

	Wait    browser.WaitUntil
	Dismiss []string // popups closed after the home page loads

	Listing Listing
	Detail  Detail

	// Reviews is nil when the platform has no review flow; Unsupported is then
	// the status the job finishes with.
	Reviews     *Reviews
	Unsupported string

	Timing Timing
}

// Marker classifies a listing card.
type Marker struct {
	ResultType string
	Selectors  []string
	Text       string
	Within     int // only the first Within characters of card text are searched; 0 searches all
}

func (m Marker) match(card extract.Scope) bool {
	for _, sel := range m.Selectors {
		if card.Has(sel) {
			return true
		}
	}
	if m.Text == "" {
		return false
	}
	text := card.Text()
	if m.Within > 0 {
		if r := []rune(text); len(r) > m.Within {
			text = string(r[:m.Within])
		}
	}
	return strings.Contains(text, m.Text)
}

// Listing describes the search result page.
type Listing struct {
	Cards   []string // first selector with matches wins
	Require string   // cards lacking this descendant are ignored
	Links   []string // detail link selectors inside a card

	PollAttempts int

	// Markers are checked in order; the first match decides the result type.
	Markers []Marker

	Humanize       bool
	WheelSteps     int
	WheelDelta     float64
	ScrollFraction float64

	// Inline listings are extracted from the cards without a detail fetch.
	Inline bool
	Schema models.Schema
	Fields []extract.FieldStrategy
}

// Detail describes a product page.
type Detail struct {
	Schema  models.Schema
	Fields  []extract.FieldStrategy
	Ranks   bool
	IDField string
	ID      func(productURL string) string
}

// Reviews describes the paginated review view.
type Reviews struct {
	URL      string // fmt template taking the product id
	SignIn   string // URL fragment of the sign-in interstitial
	Cards    string
	Schema   models.Schema
	Fields   []extract.FieldStrategy
	Required []string // a card missing any of these is skipped
	Next     string
	MaxPages int
}

// Timing holds every delay the pipeline waits on.
type Timing struct {
	NavTimeout   time.Duration
	WarmupDelay  time.Duration
	SettleDelay  time.Duration
	PollInterval time.Duration
	ScrollDelay  time.Duration
	PacingMin    time.Duration
	PacingMax    time.Duration

	AuthPoll        time.Duration
	AuthWait        time.Duration
	ReviewFirstWait time.Duration
	ReviewPageDelay time.Duration
}

// SearchPageURL turns free text into the platform search URL. Input that already
// points at the platform is returned unchanged.
func (p Profile) SearchPageURL(input string) string {
	input = strings.TrimSpace(input)
	if p.isPlatformURL(input) {
		return NormalizeURL(p.Origin, input)
	}
	escaped := url.QueryEscape(input)
	if p.PathQuery {
		escaped = url.PathEscape(input)
	}
	return fmt.Sprintf(p.SearchURL, escaped)
}

// SearchTerm returns the text a search export is named after.
func (p Profile) SearchTerm(input string) string {
	input = strings.TrimSpace(input)
	if !p.isPlatformURL(input) {
		return input
	}
	u := NormalizeURL(p.Origin, input)
	if p.PathQuery {
		term, err := url.PathUnescape(LastSegment(u))
		if err != nil {
			return ""
		}
		return term
	}
	if p.QueryParam == "" {
		return ""
	}
	return QueryParam(u, p.QueryParam)
}

func (p Profile) isPlatformURL(input string) bool {
	return p.HostMarker != "" && strings.Contains(input, p.HostMarker)
}

// ProductID resolves the stable id of a product URL, N/A when absent.
func (p Profile) ProductID(productURL string) string {
	if p.Detail.ID == nil {
		return models.NotAvailable
	}
	if id := p.Detail.ID(productURL); id != "" {
		return id
	}
	return models.NotAvailable
}
