// Package crawler fetches documents and turns them into NUI entries.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"nui/internal/config"
	"nui/internal/logger"
	"nui/pkg/nui"
)

// ErrAllURLsFailed is returned when neither the primary nor any backup URL could be fetched.
var ErrAllURLsFailed = errors.New("all source urls failed")

// AttemptResult records the result of one source fetch.
type AttemptResult struct {
	Timestamp  time.Time
	URL        string
	Error      string
	Attempts   int
	Duration   time.Duration
	StatusCode int
	Success    bool
}

// SourceError ties a crawl failure to the source that produced it.
type SourceError struct {
	URL string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("crawl %s: %v", e.URL, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// CrawlResult holds the entries built by CrawlAll, in source order, and
// the sources that failed.
type CrawlResult struct {
	Entries []*nui.Entry
	Errors  []*SourceError
}

// Client crawls configured sources and builds entries from them.
type Client struct {
	scraper     *Scraper
	logger      *logger.Logger
	entryOpts   []nui.Option
	attemptLog  []AttemptResult
	maxKeywords int
	concurrency int
	mu          sync.Mutex
}

// NewClient creates a crawler client from the full configuration.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return NewClientWithDeps(NewScraperWithConfig(&cfg.Crawler), cfg, log)
}

// NewClientWithDeps creates a crawler client with an injected scraper.
func NewClientWithDeps(scraper *Scraper, cfg *config.Config, log *logger.Logger) *Client {
	var opts []nui.Option
	if cfg.Record.StrictValidation {
		opts = append(opts, nui.WithStrictValidation())
	}

	concurrency := cfg.Crawler.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Client{
		scraper:     scraper,
		logger:      log.With("component", "crawler"),
		entryOpts:   opts,
		maxKeywords: cfg.Crawler.MaxKeywords,
		concurrency: concurrency,
	}
}

// Crawl fetches one source (falling back to its backup URLs) and builds its entry.
func (c *Client) Crawl(ctx context.Context, src config.SourceConfig) (*nui.Entry, error) {
	page, err := c.fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	fields, err := c.BuildFields(src, page)
	if err != nil {
		return nil, err
	}

	entry, err := nui.New(fields, c.entryOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build entry for %s: %w", src.URL, err)
	}

	c.logger.Debug("entry built", "url", entry.URL(), "integrity_hash", entry.IntegrityHash())

	return entry, nil
}

// CrawlAll crawls every enabled source with bounded concurrency. A failing
// source is recorded in the result and does not stop the batch; only
// context cancellation does.
func (c *Client) CrawlAll(ctx context.Context, sources []config.SourceConfig) (*CrawlResult, error) {
	enabled := make([]config.SourceConfig, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	entries := make([]*nui.Entry, len(enabled))
	errs := make([]*SourceError, len(enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, src := range enabled {
		i, src := i, src
		g.Go(func() error {
			entry, err := c.Crawl(gctx, src)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				c.logger.Warn("source failed", "source", src.GetSource(), "error", err)
				errs[i] = &SourceError{URL: src.URL, Err: err}

				return nil
			}

			entries[i] = entry

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &CrawlResult{}

	for i := range enabled {
		if entries[i] != nil {
			result.Entries = append(result.Entries, entries[i])
		}

		if errs[i] != nil {
			result.Errors = append(result.Errors, errs[i])
		}
	}

	level := slog.LevelInfo
	if len(result.Errors) > 0 {
		level = slog.LevelWarn
	}

	c.logger.Log(ctx, level, "crawl finished", "sources", len(enabled), "entries", len(result.Entries), "failed", len(result.Errors))

	return result, nil
}

// Attempts returns a copy of the fetch log.
func (c *Client) Attempts() []AttemptResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.attemptLog)
}

func (c *Client) record(r AttemptResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attemptLog = append(c.attemptLog, r)
}

func (c *Client) fetch(ctx context.Context, src config.SourceConfig) (*Page, error) {
	if src.IsLocalFile() {
		page, err := c.scraper.ReadLocalFile(src.File, src.URL)
		c.recordPage(src.File, page, err)

		return page, err
	}

	var errs []error

	for _, u := range src.GetAllURLs() {
		page, err := c.scraper.Fetch(ctx, u)
		c.recordPage(u, page, err)

		if err == nil {
			return page, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.logger.Debug("url failed, trying next", "url", u, "error", err)
		errs = append(errs, err)
	}

	return nil, fmt.Errorf("%w: %w", ErrAllURLsFailed, errors.Join(errs...))
}

func (c *Client) recordPage(u string, page *Page, err error) {
	r := AttemptResult{Timestamp: time.Now(), URL: u, Success: err == nil}
	if err != nil {
		r.Error = err.Error()
	}

	if page != nil {
		r.Attempts = page.Attempts
		r.Duration = page.Duration
		r.StatusCode = page.StatusCode
	}

	c.record(r)
}

// BuildFields derives the entry fields for src from a fetched page. The
// entry URL is always the source's primary URL, even when a backup served
// the content.
func (c *Client) BuildFields(src config.SourceConfig, page *Page) (nui.Fields, error) {
	domain := src.SourceDomain
	if domain == "" {
		var err error

		domain, err = RegistrableDomain(src.URL)
		if err != nil {
			return nui.Fields{}, err
		}
	}

	fields := nui.Fields{
		URL:          src.URL,
		CrawlDate:    nui.Zoned(page.FetchedAt),
		SourceDomain: domain,
		CountryCode:  src.CountryCode,
		Keywords:     slices.Clone(src.Keywords),
	}

	if src.StateProvinceCode != "" {
		fields.StateProvinceCode = nui.Optional(src.StateProvinceCode)
	}

	text := ""
	canonical := src.URL

	if IsHTML(page.ContentType) {
		ex, err := ExtractHTML(page.Body, page.FinalURL, c.maxKeywords)
		if err != nil {
			c.logger.Warn("html extraction failed", "url", src.URL, "error", err)
		} else {
			text = ex.Text
			fields.Keywords = mergeKeywords(fields.Keywords, ex.Keywords, c.maxKeywords)

			if ex.CanonicalURL != "" {
				canonical = ex.CanonicalURL
			}
		}
	} else if utf8.Valid(page.Body) {
		text = string(page.Body)
	}

	if strings.TrimSpace(text) != "" {
		fields.SimhashSig = nui.Optional(SimhashHex(text))
	}

	if h, err := CanonicalURLHash(canonical); err == nil {
		fields.CanonicalURLHash = nui.Optional(h)
	} else {
		c.logger.Warn("canonical url hash skipped", "url", canonical, "error", err)
	}

	return fields, nil
}

// mergeKeywords appends extracted keywords to configured ones, skipping
// case-insensitive duplicates, up to limit total when limit > 0.
func mergeKeywords(configured, extracted []string, limit int) []string {
	out := slices.Clone(configured)
	seen := make(map[string]bool, len(out))

	for _, kw := range out {
		seen[strings.ToLower(kw)] = true
	}

	for _, kw := range extracted {
		if limit > 0 && len(out) >= limit {
			break
		}

		if key := strings.ToLower(kw); !seen[key] {
			seen[key] = true
			out = append(out, kw)
		}
	}

	return out
}
