package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/ecommerce-scraper/internal/browser"
	"github.com/maltedev/ecommerce-scraper/internal/export"
	"github.com/maltedev/ecommerce-scraper/internal/extract"
	"github.com/maltedev/ecommerce-scraper/internal/metrics"
	"github.com/maltedev/ecommerce-scraper/internal/models"
	"github.com/maltedev/ecommerce-scraper/internal/ratelimit"
)

var errIncompleteReview = errors.New("review card is missing required fields")

// Pipeline runs the search, bulk and review flows for one Profile.
type Pipeline struct {
	profile  Profile
	launcher browser.Launcher
	exporter Exporter
	pacer    ratelimit.Pacer
	now      func() time.Time
	logger   *slog.Logger
}

func New(profile Profile, launcher browser.Launcher, exporter Exporter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		profile:  profile,
		launcher: launcher,
		exporter: exporter,
		pacer:    ratelimit.NewRandomPacer(profile.Timing.PacingMin, profile.Timing.PacingMax),
		now:      time.Now,
		logger:   logger.With("component", "scraper", "platform", profile.Name),
	}
}

// RunSearch reads the listing page for a query and extracts every result.
func (p *Pipeline) RunSearch(ctx context.Context, job Job, r Reporter) (Result, error) {
	query := job.Target.Query()
	searchURL := p.profile.SearchPageURL(query)
	p.logger.Info("starting search", "job_id", job.ID, "url", searchURL)

	sess, err := p.launch(ctx, r)
	if err != nil {
		return Result{}, err
	}
	defer p.closeSession(sess, job.ID)

	page, err := sess.NewPage()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := p.warmUp(ctx, page, r); err != nil {
		return Result{}, err
	}

	r.Update(models.Message(fmt.Sprintf("Searching %s...", p.profile.Label)))
	if err := page.Goto(searchURL, p.profile.Wait, p.profile.Timing.NavTimeout); err != nil {
		return Result{}, fmt.Errorf("failed to open search page: %w", err)
	}
	if err := ratelimit.Sleep(ctx, p.profile.Timing.SettleDelay); err != nil {
		return Result{}, err
	}
	if err := p.interact(ctx, page); err != nil {
		return Result{}, err
	}

	cards, err := p.pollListings(ctx, page, r)
	if err != nil {
		return Result{}, err
	}

	listing := p.profile.Listing
	r.Update(models.Message(fmt.Sprintf("Found %d products. Extracting...", len(cards))))

	var (
		items   []*models.Item
		dropped int
		schema  models.Schema
	)
	if listing.Inline {
		schema = listing.Schema
		items, dropped = p.inlineItems(job, cards, r)
	} else {
		schema = p.profile.Detail.Schema
		ids := p.identities(cards)
		if len(ids) == 0 {
			return Result{}, ErrNoListings
		}
		items, dropped, err = p.fetchAll(ctx, sess, job, ids, r)
		if err != nil {
			return Result{}, err
		}
	}

	filename := export.SearchFilename(p.profile.Name, p.profile.SearchTerm(query), job.ID)
	return p.export(ctx, job, r, export.FormatCSV, filename, schema, items, dropped)
}

// RunBulk deep-fetches a list of product URLs.
func (p *Pipeline) RunBulk(ctx context.Context, job Job, r Reporter) (Result, error) {
	urls := NormalizeURLs(p.profile.Origin, job.Target.URLs())
	if len(urls) == 0 {
		return Result{}, ErrNoURLs
	}
	p.logger.Info("starting bulk scrape", "job_id", job.ID, "urls", len(urls))

	sess, err := p.launch(ctx, r)
	if err != nil {
		return Result{}, err
	}
	defer p.closeSession(sess, job.ID)

	ids := make([]models.Identity, len(urls))
	for i, u := range urls {
		ids[i] = models.Identity{URL: u, ResultType: models.ResultDirect}
	}

	items, dropped, err := p.fetchAll(ctx, sess, job, ids, r)
	if err != nil {
		return Result{}, err
	}

	filename := export.BulkFilename(p.profile.Name, job.ID)
	return p.export(ctx, job, r, export.FormatXLSX, filename, p.profile.Detail.Schema, items, dropped)
}

// RunReviews paginates through the review view of one product.
func (p *Pipeline) RunReviews(ctx context.Context, job Job, r Reporter) (Result, error) {
	rv := p.profile.Reviews
	if rv == nil {
		return Result{Status: p.profile.Unsupported}, nil
	}

	productID := p.profile.ProductID(NormalizeURL(p.profile.Origin, job.Target.Query()))
	if productID == models.NotAvailable {
		return Result{}, ErrNoProductID
	}
	p.logger.Info("starting review scrape", "job_id", job.ID, "product_id", productID)

	sess, err := p.launch(ctx, r)
	if err != nil {
		return Result{}, err
	}
	defer p.closeSession(sess, job.ID)

	page, err := sess.NewPage()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := p.warmUp(ctx, page, r); err != nil {
		return Result{}, err
	}

	r.Update(models.Message("Navigating to review page..."))
	if err := page.Goto(fmt.Sprintf(rv.URL, productID), browser.WaitDOMContentLoaded, p.profile.Timing.NavTimeout); err != nil {
		return Result{}, fmt.Errorf("failed to open review page: %w", err)
	}
	if err := p.awaitSignIn(ctx, page, r); err != nil {
		return Result{}, err
	}

	// Cards may legitimately be missing; the page loop handles that.
	_ = page.WaitForSelector(rv.Cards, p.profile.Timing.ReviewFirstWait)

	var (
		items   []*models.Item
		dropped int
	)
	for pageNum := 1; pageNum <= rv.MaxPages; pageNum++ {
		r.Update(models.Message(fmt.Sprintf("Scraping reviews page %d...", pageNum)))
		if err := ratelimit.Sleep(ctx, p.profile.Timing.ReviewPageDelay); err != nil {
			return Result{}, err
		}

		doc, err := snapshot(page)
		if err != nil {
			return Result{}, err
		}
		cards := doc.Cards([]string{rv.Cards}, "")
		if len(cards) == 0 {
			break
		}

		for _, card := range cards {
			item, err := p.reviewItem(card)
			if err != nil {
				dropped++
				p.logger.Debug("skipping review card", "job_id", job.ID, "page", pageNum, "error", err)
				continue
			}
			items = append(items, item)
		}

		if pageNum == rv.MaxPages || !doc.Root().Has(rv.Next) {
			break
		}
		if err := page.Click(rv.Next); err != nil {
			p.logger.Warn("failed to advance review page", "job_id", job.ID, "page", pageNum, "error", err)
			break
		}
		if err := page.WaitForLoad(browser.WaitDOMContentLoaded); err != nil {
			return Result{}, fmt.Errorf("failed to load review page %d: %w", pageNum+1, err)
		}
		if err := p.awaitSignIn(ctx, page, r); err != nil {
			return Result{}, err
		}
	}

	filename := export.ReviewsFilename(p.profile.Name, productID)
	return p.export(ctx, job, r, export.FormatCSV, filename, rv.Schema, items, dropped)
}

func (p *Pipeline) launch(ctx context.Context, r Reporter) (browser.Session, error) {
	r.Update(models.Message("Launching browser..."))
	sess, err := p.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return sess, nil
}

func (p *Pipeline) closeSession(sess browser.Session, jobID string) {
	if err := sess.Close(); err != nil {
		p.logger.Warn("failed to close browser session", "job_id", jobID, "error", err)
	}
}

// warmUp visits the home page for cookies and closes known popups.
func (p *Pipeline) warmUp(ctx context.Context, page browser.Page, r Reporter) error {
	if p.profile.HomeURL == "" {
		return nil
	}

	r.Update(models.Message(fmt.Sprintf("Visiting %s home...", p.profile.Label)))
	if err := page.Goto(p.profile.HomeURL, browser.WaitDOMContentLoaded, p.profile.Timing.NavTimeout); err != nil {
		return fmt.Errorf("failed to open home page: %w", err)
	}
	if err := ratelimit.Sleep(ctx, p.profile.Timing.WarmupDelay); err != nil {
		return err
	}

	for _, sel := range p.profile.Dismiss {
		if err := page.Click(sel); err == nil {
			p.logger.Debug("dismissed popup", "selector", sel)
		}
	}
	return nil
}

// interact performs the configured pointer and scroll actions.
func (p *Pipeline) interact(ctx context.Context, page browser.Page) error {
	l := p.profile.Listing
	delay := p.profile.Timing.ScrollDelay

	if l.Humanize {
		if err := page.Humanize(); err != nil {
			p.logger.Debug("humanize failed", "error", err)
		}
	}
	for i := 0; i < l.WheelSteps; i++ {
		if err := page.Wheel(l.WheelDelta); err != nil {
			p.logger.Debug("wheel scroll failed", "error", err)
		}
		if err := ratelimit.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	if l.ScrollFraction > 0 {
		if err := page.ScrollTo(l.ScrollFraction); err != nil {
			p.logger.Debug("scroll failed", "error", err)
		}
		if err := ratelimit.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// pollListings re-reads the page until listing cards appear or the attempt
// budget runs out.
func (p *Pipeline) pollListings(ctx context.Context, page browser.Page, r Reporter) ([]extract.Scope, error) {
	attempts := p.profile.Listing.PollAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		doc, err := snapshot(page)
		if err != nil {
			return nil, err
		}
		if cards := doc.Cards(p.profile.Listing.Cards, p.profile.Listing.Require); len(cards) > 0 {
			return cards, nil
		}
		if attempt == attempts-1 {
			break
		}

		r.Update(models.Message(fmt.Sprintf("Waiting for products... (%d)", attempts-attempt)))
		if err := ratelimit.Sleep(ctx, p.profile.Timing.PollInterval); err != nil {
			return nil, err
		}
	}
	return nil, ErrNoListings
}

func snapshot(page browser.Page) (*extract.Document, error) {
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	return extract.Parse(html)
}

// identities turns listing cards into detail links. Cards without a link are
// skipped.
func (p *Pipeline) identities(cards []extract.Scope) []models.Identity {
	var out []models.Identity
	for _, card := range cards {
		href := p.cardLink(card)
		if href == "" {
			continue
		}
		out = append(out, models.Identity{
			URL:        href,
			ResultType: p.classify(card),
			CapturedAt: p.now(),
		})
	}
	return out
}

func (p *Pipeline) cardLink(card extract.Scope) string {
	for _, sel := range p.profile.Listing.Links {
		if href, ok := card.Attr(sel, "href"); ok && href != "" {
			return NormalizeURL(p.profile.Origin, href)
		}
	}
	return ""
}

// classify returns the result type of the first matching marker.
func (p *Pipeline) classify(card extract.Scope) string {
	for _, m := range p.profile.Listing.Markers {
		if m.match(card) {
			return m.ResultType
		}
	}
	return models.ResultOrganic
}

func (p *Pipeline) inlineItems(job Job, cards []extract.Scope, r Reporter) ([]*models.Item, int) {
	l := p.profile.Listing
	total := len(cards)
	items := make([]*models.Item, 0, total)
	dropped := 0

	for i, card := range cards {
		var item *models.Item
		err := safely(func() error {
			item = l.Schema.NewItem()
			extract.Apply(item, card, l.Fields)
			p.stamp(item, l.Schema, models.Identity{
				URL:        p.cardLink(card),
				ResultType: p.classify(card),
				CapturedAt: p.now(),
			})
			return nil
		})
		if err != nil {
			dropped++
			p.logger.Warn("dropping listing card", "job_id", job.ID, "index", i, "error", err)
			metrics.ObserveItem(p.profile.Name, false)
		} else {
			items = append(items, item)
			metrics.ObserveItem(p.profile.Name, true)
		}
		r.Update(models.Progressed(fmt.Sprintf("Processing %d/%d...", i+1, total), i+1, total))
	}
	return items, dropped
}

// fetchAll deep-fetches ids one by one. A failing item is logged and dropped.
func (p *Pipeline) fetchAll(ctx context.Context, sess browser.Session, job Job, ids []models.Identity, r Reporter) ([]*models.Item, int, error) {
	total := len(ids)
	items := make([]*models.Item, 0, total)
	dropped := 0

	for i, id := range ids {
		if id.CapturedAt.IsZero() {
			id.CapturedAt = p.now()
		}

		item, err := p.fetchDetail(sess, id)
		if err != nil {
			dropped++
			p.logger.Warn("dropping item", "job_id", job.ID, "url", id.URL, "error", err)
			metrics.ObserveItem(p.profile.Name, false)
		} else {
			items = append(items, item)
			metrics.ObserveItem(p.profile.Name, true)
		}
		r.Update(models.Progressed(fmt.Sprintf("Processing %d/%d...", i+1, total), i+1, total))

		if i < total-1 {
			if err := p.pace(ctx); err != nil {
				return nil, 0, err
			}
		}
	}
	return items, dropped, nil
}

func (p *Pipeline) pace(ctx context.Context) error {
	d, err := p.pacer.Wait(ctx)
	if err != nil {
		return err
	}
	metrics.ObservePacing(p.profile.Name, d)
	return nil
}

// fetchDetail opens a fresh page for id and resolves the detail fields.
func (p *Pipeline) fetchDetail(sess browser.Session, id models.Identity) (*models.Item, error) {
	var item *models.Item
	err := safely(func() error {
		page, err := sess.NewPage()
		if err != nil {
			return fmt.Errorf("failed to create page: %w", err)
		}
		defer page.Close()

		if err := page.Goto(id.URL, p.profile.Wait, p.profile.Timing.NavTimeout); err != nil {
			return fmt.Errorf("failed to navigate: %w", err)
		}
		doc, err := snapshot(page)
		if err != nil {
			return err
		}
		item = p.detailItem(doc, id)
		return nil
	})
	return item, err
}

func (p *Pipeline) detailItem(doc *extract.Document, id models.Identity) *models.Item {
	d := p.profile.Detail
	item := d.Schema.NewItem()
	if d.IDField != "" {
		item.Set(d.IDField, p.profile.ProductID(id.URL))
	}
	extract.Apply(item, doc.Root(), d.Fields)
	if d.Ranks {
		extract.ApplyRanks(item, doc.Text())
	}
	p.stamp(item, d.Schema, id)
	return item
}

// stamp writes the identity columns the schema declares.
func (p *Pipeline) stamp(item *models.Item, schema models.Schema, id models.Identity) {
	set := func(field, value string) {
		if schema.Has(field) {
			item.Set(field, value)
		}
	}
	set(models.FieldResultType, id.ResultType)
	set(models.FieldPlatform, p.profile.Label)
	set(models.FieldURL, id.URL)
	if !id.CapturedAt.IsZero() {
		set(models.FieldDateScraped, models.Stamp(id.CapturedAt))
	}
}

func (p *Pipeline) reviewItem(card extract.Scope) (*models.Item, error) {
	rv := p.profile.Reviews
	var item *models.Item
	err := safely(func() error {
		for _, sel := range rv.Required {
			if !card.Has(sel) {
				return fmt.Errorf("%w: %s", errIncompleteReview, sel)
			}
		}
		item = rv.Schema.NewItem()
		extract.Apply(item, card, rv.Fields)
		return nil
	})
	return item, err
}

// awaitSignIn waits for the operator to finish a sign-in interstitial in the
// visible browser.
func (p *Pipeline) awaitSignIn(ctx context.Context, page browser.Page, r Reporter) error {
	marker := p.profile.Reviews.SignIn
	if marker == "" || !strings.Contains(page.URL(), marker) {
		return nil
	}

	p.logger.Warn("sign-in required", "url", page.URL())
	deadline := p.now().Add(p.profile.Timing.AuthWait)
	for strings.Contains(page.URL(), marker) {
		if !p.now().Before(deadline) {
			return ErrAuthRequired
		}
		r.Update(models.Message(fmt.Sprintf("%s asks for sign-in. Please finish it in the browser window.", p.profile.Label)))
		if err := ratelimit.Sleep(ctx, p.profile.Timing.AuthPoll); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) export(ctx context.Context, job Job, r Reporter, format export.Format, filename string, schema models.Schema, items []*models.Item, dropped int) (Result, error) {
	r.Update(models.Message("Saving results..."))
	name, err := p.exporter.Export(ctx, export.Batch{
		JobID:    job.ID,
		Platform: p.profile.Name,
		Flow:     job.Target.Flow(),
		Format:   format,
		Filename: filename,
		Columns:  []string(schema),
		Items:    items,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to export results: %w", err)
	}

	p.logger.Info("scrape finished", "job_id", job.ID, "items", len(items), "dropped", dropped, "filename", name)
	return Result{Filename: name, Items: len(items), Dropped: dropped}, nil
}
