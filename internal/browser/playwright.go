package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

// DefaultOptions runs a visible browser so an operator can clear sign-in
// interstitials by hand.
func DefaultOptions() *Options {
	return &Options{
		Headless:       false,
		Timeout:        60 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-IN,en;q=0.9",
		TimezoneID:     "Asia/Kolkata",
		Locale:         "en-IN",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// stealthScript hides the most common automation fingerprints.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-IN', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
`

// PlaywrightLauncher starts a Chromium instance per session.
type PlaywrightLauncher struct {
	opts   *Options
	logger *slog.Logger
}

func NewPlaywrightLauncher(opts *Options, logger *slog.Logger) *PlaywrightLauncher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaywrightLauncher{opts: opts, logger: logger.With("component", "browser")}
}

func (l *PlaywrightLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := l.opts

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := map[string]string{"Accept-Language": opts.AcceptLanguage}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(opts.Locale),
		TimezoneId:        playwright.String(opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		l.logger.Warn("failed to install stealth script", "error", err)
	}

	l.logger.Debug("browser session started", "headless", opts.Headless)

	return &playwrightSession{
		pw:      pw,
		browser: browser,
		context: bctx,
		timeout: opts.Timeout,
		logger:  l.logger,
	}, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout time.Duration
	logger  *slog.Logger
}

func (s *playwrightSession) NewPage() (Page, error) {
	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(s.timeout.Milliseconds()))
	return &playwrightPage{page: page, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
}

func (s *playwrightSession) Close() error {
	var errs []error

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

type playwrightPage struct {
	page playwright.Page
	rnd  *rand.Rand
}

func waitUntilState(w WaitUntil) *playwright.WaitUntilState {
	switch w {
	case WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	case WaitLoad:
		return playwright.WaitUntilStateLoad
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}

func loadState(w WaitUntil) *playwright.LoadState {
	switch w {
	case WaitNetworkIdle:
		return playwright.LoadStateNetworkidle
	case WaitLoad:
		return playwright.LoadStateLoad
	default:
		return playwright.LoadStateDomcontentloaded
	}
}

func (p *playwrightPage) Goto(url string, wait WaitUntil, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(wait),
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) URL() string { return p.page.URL() }

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Click(selector string) error {
	loc := p.page.Locator(selector).First()
	n, err := loc.Count()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return loc.Click()
}

func (p *playwrightPage) WaitForSelector(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) WaitForLoad(wait WaitUntil) error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: loadState(wait)})
}

func (p *playwrightPage) Humanize() error {
	mouse := p.page.Mouse()
	for i := 0; i < 3; i++ {
		x := float64(100 + p.rnd.Intn(900))
		y := float64(100 + p.rnd.Intn(700))
		if err := mouse.Move(x, y, playwright.MouseMoveOptions{Steps: playwright.Int(10)}); err != nil {
			return err
		}
		time.Sleep(200 * time.Millisecond)
	}

	if err := p.ScrollTo(0.5); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)
	return p.ScrollTo(0)
}

func (p *playwrightPage) Wheel(dy float64) error {
	return p.page.Mouse().Wheel(0, dy)
}

func (p *playwrightPage) ScrollTo(fraction float64) error {
	_, err := p.page.Evaluate(`(f) => window.scrollTo(0, document.body.scrollHeight * f)`, fraction)
	return err
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
