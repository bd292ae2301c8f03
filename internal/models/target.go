package models

import (
	"regexp"
	"strings"
)

// Flow identifies one of the three pipelines.
type Flow string

const (
	FlowSearch  Flow = "search"
	FlowBulk    Flow = "bulk"
	FlowReviews Flow = "reviews"
)

var urlSeparators = regexp.MustCompile(`[,\s]+`)

// Target is the immutable input of a job.
type Target struct {
	flow     Flow
	platform string
	query    string
	urls     []string
}

// NewSearchTarget builds a target from a search URL or free-text query.
func NewSearchTarget(platform, queryOrURL string) Target {
	return Target{
		flow:     FlowSearch,
		platform: normalizePlatform(platform),
		query:    strings.TrimSpace(queryOrURL),
	}
}

// NewBulkTarget splits a free-text block on commas, newlines and spaces.
// Blank entries are dropped; the result may be empty.
func NewBulkTarget(platform, text string) Target {
	return Target{
		flow:     FlowBulk,
		platform: normalizePlatform(platform),
		urls:     SplitURLs(text),
	}
}

// NewReviewTarget builds a target for a single product page.
func NewReviewTarget(platform, productURL string) Target {
	return Target{
		flow:     FlowReviews,
		platform: normalizePlatform(platform),
		query:    strings.TrimSpace(productURL),
	}
}

func (t Target) Flow() Flow       { return t.flow }
func (t Target) Platform() string { return t.platform }

// Query returns the search input or the review product URL.
func (t Target) Query() string { return t.query }

// URLs returns a copy of the bulk URL list.
func (t Target) URLs() []string {
	out := make([]string, len(t.urls))
	copy(out, t.urls)
	return out
}

// SplitURLs tokenizes a block of URLs.
func SplitURLs(text string) []string {
	var out []string
	for _, part := range urlSeparators.Split(text, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizePlatform(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
