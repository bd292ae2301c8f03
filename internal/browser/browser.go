package browser

import (
	"context"
	"errors"
	"time"
)

var ErrElementNotFound = errors.New("element not found")

// WaitUntil is the navigation completion condition.
type WaitUntil string

const (
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
	WaitLoad             WaitUntil = "load"
)

// Launcher starts isolated browser sessions. Each job owns one session.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is a browser context with its own cookies and pages.
type Session interface {
	NewPage() (Page, error)
	Close() error
}

// Page is the set of operations the scrape pipeline needs from a tab. Calls on
// one page are never made concurrently.
type Page interface {
	Goto(url string, wait WaitUntil, timeout time.Duration) error
	URL() string
	// Content returns the serialized DOM of the current document.
	Content() (string, error)
	// Click clicks the first element matching selector.
	Click(selector string) error
	WaitForSelector(selector string, timeout time.Duration) error
	WaitForLoad(wait WaitUntil) error
	// Humanize moves the pointer and scrolls the way a visitor would.
	Humanize() error
	Wheel(dy float64) error
	// ScrollTo scrolls to a fraction of the document height.
	ScrollTo(fraction float64) error
	Close() error
}
