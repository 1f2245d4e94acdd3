package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"nui/internal/config"
)

var (
	// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrNoAttempts is returned when the retry policy allows no request at all.
	ErrNoAttempts = errors.New("retry policy allows no attempts")
)

const defaultUserAgent = "PWIC-NUI-Crawler/1.0"

// Page is one fetched document.
type Page struct {
	FetchedAt    time.Time
	RequestedURL string
	FinalURL     string
	ContentType  string
	Body         []byte
	StatusCode   int
	Attempts     int
	Duration     time.Duration
}

// Scraper handles web fetching with config-driven retry logic.
type Scraper struct {
	client      *http.Client
	retryPolicy *config.RetryPolicy
	userAgent   string
	maxBodyKb   int
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewScraper creates a new scraper instance with default config.
func NewScraper() *Scraper {
	cfg := config.Default()

	return NewScraperWithConfig(&cfg.Crawler)
}

// NewScraperWithConfig creates a new scraper from the crawler settings.
func NewScraperWithConfig(cfg *config.CrawlerConfig) *Scraper {
	retry := cfg.Retry

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Scraper{
		client: &http.Client{
			Timeout: retry.GetTimeout(),
		},
		retryPolicy: &retry,
		userAgent:   ua,
		maxBodyKb:   cfg.MaxBodyKb,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (s *Scraper) SetHTTPClient(c *http.Client) {
	s.client = c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetch GETs url, retrying transport failures and retryable status codes
// with exponential backoff.
func (s *Scraper) Fetch(ctx context.Context, url string) (*Page, error) {
	if s.retryPolicy.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: max_attempts %d", ErrNoAttempts, s.retryPolicy.MaxAttempts)
	}

	var lastErr error

	totalDuration := time.Duration(0)

	for attempt := 1; attempt <= s.retryPolicy.MaxAttempts; attempt++ {
		if err := s.sleep(ctx, s.retryPolicy.GetRetryDelay(attempt)); err != nil {
			return nil, err
		}

		startTime := time.Now()
		page, retryable, err := s.fetchOnce(ctx, url)
		totalDuration += time.Since(startTime)

		if err == nil {
			page.Attempts = attempt
			page.Duration = totalDuration

			return page, nil
		}

		lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, s.retryPolicy.MaxAttempts, err)

		if !retryable || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (s *Scraper) fetchOnce(ctx context.Context, url string) (*Page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, isRetryableStatus(resp.StatusCode), fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	// max_body_kb is in KB, convert to bytes
	limit := int64(s.maxBodyKb) * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Page{
		FetchedAt:    s.now().UTC(),
		RequestedURL: url,
		FinalURL:     resp.Request.URL.String(),
		ContentType:  resp.Header.Get("Content-Type"),
		Body:         body,
		StatusCode:   resp.StatusCode,
	}, false, nil
}

// ReadLocalFile loads a saved snapshot of url from filePath. The file's
// modification time stands in for the fetch time.
func (s *Scraper) ReadLocalFile(filePath, url string) (*Page, error) {
	startTime := time.Now()

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", filePath, err)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read local file %s: %w", filePath, err)
	}

	return &Page{
		FetchedAt:    fileInfo.ModTime().UTC(),
		RequestedURL: url,
		FinalURL:     url,
		ContentType:  http.DetectContentType(content),
		Body:         content,
		StatusCode:   http.StatusOK,
		Attempts:     1,
		Duration:     time.Since(startTime),
	}, nil
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	// Retry on temporary failures
	switch statusCode {
	case http.StatusServiceUnavailable: // 503
		return true
	case http.StatusGatewayTimeout: // 504
		return true
	case http.StatusTooManyRequests: // 429
		return true
	case http.StatusRequestTimeout: // 408
		return true
	}

	return false
}
