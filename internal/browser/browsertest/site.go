// Package browsertest provides an in-memory browser that serves fixed HTML
// documents, for exercising scrape flows without Chromium.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/ecommerce-scraper/internal/browser"
)

const blankPage = "<html><head></head><body></body></html>"

// Site maps URLs to HTML documents. It implements browser.Launcher.
type Site struct {
	mu        sync.Mutex
	pages     map[string]string
	failures  map[string]error
	redirects map[string]string
	links     map[string]string
	panics    map[string]bool
	visits    []string
	launches  int
	closed    int
	LaunchErr error
}

func NewSite() *Site {
	return &Site{
		pages:     map[string]string{},
		failures:  map[string]error{},
		redirects: map[string]string{},
		links:     map[string]string{},
		panics:    map[string]bool{},
	}
}

// Handle serves html at url.
func (s *Site) Handle(url, html string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = html
	return s
}

// Fail makes navigation to url return err.
func (s *Site) Fail(url string, err error) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[url] = err
	return s
}

// PanicOn makes navigation to url panic.
func (s *Site) PanicOn(url string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics[url] = true
	return s
}

// Redirect lands navigation to from on to.
func (s *Site) Redirect(from, to string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[from] = to
	return s
}

// Link makes clicking selector on page from navigate to to.
func (s *Site) Link(from, selector, to string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[from+"\x00"+selector] = to
	return s
}

// Visits returns every URL passed to Goto, in order.
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.visits))
	copy(out, s.visits)
	return out
}

// Launches returns how many sessions were started and closed.
func (s *Site) Launches() (started, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches, s.closed
}

func (s *Site) Launch(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	s.launches++
	return &session{site: s}, nil
}

func (s *Site) navigate(url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, url)
	if s.panics[url] {
		panic("browsertest: navigation to " + url)
	}
	if err, ok := s.failures[url]; ok {
		return "", err
	}
	if to, ok := s.redirects[url]; ok {
		return to, nil
	}
	return url, nil
}

func (s *Site) html(url string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.pages[url]; ok {
		return h
	}
	return blankPage
}

func (s *Site) link(from, selector string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	to, ok := s.links[from+"\x00"+selector]
	return to, ok
}

type session struct {
	site *Site
}

func (s *session) NewPage() (browser.Page, error) {
	return &page{site: s.site}, nil
}

func (s *session) Close() error {
	s.site.mu.Lock()
	defer s.site.mu.Unlock()
	s.site.closed++
	return nil
}

type page struct {
	site *Site
	url  string
}

func (p *page) Goto(url string, _ browser.WaitUntil, _ time.Duration) error {
	landed, err := p.site.navigate(url)
	if err != nil {
		return err
	}
	p.url = landed
	return nil
}

func (p *page) URL() string { return p.url }

func (p *page) Content() (string, error) {
	return p.site.html(p.url), nil
}

func (p *page) has(selector string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.site.html(p.url)))
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

func (p *page) Click(selector string) error {
	if to, ok := p.site.link(p.url, selector); ok {
		return p.Goto(to, browser.WaitDOMContentLoaded, 0)
	}
	if p.has(selector) {
		return nil
	}
	return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
}

func (p *page) WaitForSelector(selector string, _ time.Duration) error {
	if p.has(selector) {
		return nil
	}
	return fmt.Errorf("timeout waiting for %s", selector)
}

func (p *page) WaitForLoad(browser.WaitUntil) error { return nil }
func (p *page) Humanize() error                     { return nil }
func (p *page) Wheel(float64) error                 { return nil }
func (p *page) ScrollTo(float64) error              { return nil }
func (p *page) Close() error                        { return nil }
