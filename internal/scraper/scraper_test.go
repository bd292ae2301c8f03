package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/ecommerce-scraper/internal/browser/browsertest"
	"github.com/maltedev/ecommerce-scraper/internal/extract"
	"github.com/maltedev/ecommerce-scraper/internal/models"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/p/12345", "https://example.com/p/12345"},
		{"example.com/x", "https://example.com/x"},
		{"http://other.com/a", "http://other.com/a"},
		{"https://example.com/p/1", "https://example.com/p/1"},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL("https://example.com", tt.raw))
		})
	}
}

func TestNormalizeURLsDropsBlanks(t *testing.T) {
	got := NormalizeURLs("https://example.com/", []string{"/a", " ", "b.com"})
	assert.Equal(t, []string{"https://example.com/a", "https://b.com"}, got)
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "abc-123", LastSegment("https://zeptonow.com/pn/milk/pvid/abc-123/"))
	assert.Equal(t, "590003515", LastSegment("https://www.jiomart.com/p/groceries/590003515?src=x"))
	assert.Equal(t, "", LastSegment("https://example.com/"))
}

func TestProductIDs(t *testing.T) {
	assert.Equal(t, "B0C1234XYZ", AmazonASIN("https://www.amazon.in/Some-Thing/dp/B0C1234XYZ/ref=sr_1"))
	assert.Equal(t, "B0C1234XYZ", AmazonASIN("/gp/product/B0C1234XYZ"))
	assert.Equal(t, "", AmazonASIN("https://www.amazon.in/s?k=phone"))

	assert.Equal(t, "MOBGHWFHABH3G73H", FlipkartPID("https://www.flipkart.com/x/p/itm?pid=MOBGHWFHABH3G73H&lid=1"))
	assert.Equal(t, "", FlipkartPID("https://www.flipkart.com/x/p/itm"))

	assert.Equal(t, models.NotAvailable, amazonProfile().ProductID("https://www.amazon.in/"))
	assert.Equal(t, models.NotAvailable, blinkitProfile().ProductID("https://blinkit.com/prn/x"))
}

func TestSearchPageURL(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		input   string
		want    string
		term    string
	}{
		{"amazon text", amazonProfile(), "usb hub", "https://www.amazon.in/s?k=usb+hub", "usb hub"},
		{"amazon url", amazonProfile(), "https://www.amazon.in/s?k=iphone+15", "https://www.amazon.in/s?k=iphone+15", "iphone 15"},
		{"flipkart text", flipkartProfile(), "shoes", "https://www.flipkart.com/search?q=shoes", "shoes"},
		{"jiomart path", jiomartProfile(), "basmati rice", "https://www.jiomart.com/search/basmati%20rice", "basmati rice"},
		{"jiomart url", jiomartProfile(), "https://www.jiomart.com/search/atta", "https://www.jiomart.com/search/atta", "atta"},
		{"swiggy text", swiggyProfile(), "eggs", "https://www.swiggy.com/instamart/search?custom_back=true&query=eggs", "eggs"},
		{"bigbasket bare host", bigbasketProfile(), "www.bigbasket.com/ps/?q=ghee", "https://www.bigbasket.com/ps/?q=ghee", "ghee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.SearchPageURL(tt.input))
			assert.Equal(t, tt.term, tt.profile.SearchTerm(tt.input))
		})
	}
}

func TestDefaultProfilesAreComplete(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range DefaultProfiles() {
		t.Run(p.Name, func(t *testing.T) {
			assert.False(t, seen[p.Name], "duplicate profile")
			seen[p.Name] = true

			assert.NotEmpty(t, p.Label)
			assert.NotEmpty(t, p.Origin)
			assert.Contains(t, p.SearchURL, "%s")
			assert.NotEmpty(t, p.Listing.Cards)
			assert.NotEmpty(t, p.Detail.Schema)
			assert.Positive(t, p.Timing.NavTimeout)
			assert.True(t, p.Reviews != nil || p.Unsupported != "", "review flow or unsupported status")

			for _, f := range p.Detail.Fields {
				assert.True(t, p.Detail.Schema.Has(f.Field), "field %q outside detail schema", f.Field)
			}
			if p.Listing.Inline {
				for _, f := range p.Listing.Fields {
					assert.True(t, p.Listing.Schema.Has(f.Field), "field %q outside listing schema", f.Field)
				}
			}
		})
	}
	assert.Len(t, seen, 7)
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry(DefaultProfiles(), browsertest.NewSite(), &captureExporter{}, nil)

	s, err := reg.Get(" Amazon ")
	require.NoError(t, err)
	assert.Equal(t, "amazon", s.(*Pipeline).profile.Name)

	_, err = reg.Get("myntra")
	assert.ErrorIs(t, err, ErrUnknownPlatform)

	assert.Equal(t, []string{"amazon", "bigbasket", "blinkit", "flipkart", "jiomart", "swiggy", "zepto"}, reg.Platforms())
}

func TestOverridesApply(t *testing.T) {
	base := amazonProfile()
	p := Overrides{MaxReviewPages: 5}.Apply(base)
	assert.Equal(t, 5, p.Reviews.MaxPages)
	assert.Equal(t, 50, base.Reviews.MaxPages, "the original profile is untouched")

	z := Overrides{MaxReviewPages: 5}.Apply(zeptoProfile())
	assert.Nil(t, z.Reviews)
}

type stubScraper struct {
	called models.Flow
}

func (s *stubScraper) RunSearch(context.Context, Job, Reporter) (Result, error) {
	s.called = models.FlowSearch
	return Result{}, nil
}

func (s *stubScraper) RunBulk(context.Context, Job, Reporter) (Result, error) {
	s.called = models.FlowBulk
	return Result{}, nil
}

func (s *stubScraper) RunReviews(context.Context, Job, Reporter) (Result, error) {
	s.called = models.FlowReviews
	return Result{}, nil
}

func TestDispatch(t *testing.T) {
	targets := []models.Target{
		models.NewSearchTarget("amazon", "x"),
		models.NewBulkTarget("amazon", "x"),
		models.NewReviewTarget("amazon", "x"),
	}
	for _, target := range targets {
		s := &stubScraper{}
		_, err := Dispatch(context.Background(), s, Job{Target: target}, &updates{})
		require.NoError(t, err)
		assert.Equal(t, target.Flow(), s.called)
	}

	_, err := Dispatch(context.Background(), &stubScraper{}, Job{}, &updates{})
	assert.Error(t, err)
}

func TestSafelyRecoversPanics(t *testing.T) {
	err := safely(func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	want := errors.New("plain")
	assert.Equal(t, want, safely(func() error { return want }))
}

func TestMarkerWindowCountsCharacters(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		within int
		want   bool
	}{
		{"multi-byte prefix", strings.Repeat("₹", 20) + "Sponsored widget", 50, true},
		{"devanagari prefix", strings.Repeat("क", 41) + "Sponsored", 50, true},
		{"outside window", strings.Repeat("x", 45) + "Sponsored", 50, false},
		{"no window", strings.Repeat("x", 45) + "Sponsored", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := extract.Parse(`<html><body><div class="card">` + tt.text + `</div></body></html>`)
			require.NoError(t, err)
			cards := doc.Cards([]string{"div.card"}, "")
			require.Len(t, cards, 1)

			m := Marker{ResultType: models.ResultSponsored, Text: "Sponsored", Within: tt.within}
			assert.Equal(t, tt.want, m.match(cards[0]))
		})
	}
}
