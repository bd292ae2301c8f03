package scraper

import (
	"net/url"
	"strings"
)

// NormalizeURL makes raw absolute: "/p/1" is joined to origin, a bare host
// gets an https scheme, and anything starting with "http" is kept as is.
func NormalizeURL(origin, raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "http"):
		return raw
	case strings.HasPrefix(raw, "/"):
		return strings.TrimRight(origin, "/") + raw
	default:
		return "https://" + raw
	}
}

// NormalizeURLs normalizes every entry and drops blanks.
func NormalizeURLs(origin string, raws []string) []string {
	var out []string
	for _, r := range raws {
		if u := NormalizeURL(origin, r); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// QueryParam returns the first value of key in rawURL.
func QueryParam(rawURL, key string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}

// LastSegment returns the last non-empty path segment of rawURL.
func LastSegment(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		rawURL = u.Path
	}
	parts := strings.FieldsFunc(rawURL, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
