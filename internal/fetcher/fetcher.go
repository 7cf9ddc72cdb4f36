// Package fetcher retrieves static pages over HTTP for browserless scans.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hazyhaar/linkguard/internal/safeio"
)

// DefaultMaxBody caps page downloads.
const DefaultMaxBody int64 = 10 << 20

// Result is a fetched page.
type Result struct {
	// URL is the final URL after redirects; links resolve against it.
	URL        string
	StatusCode int
	HTML       []byte
}

// Fetcher performs GETs with retries on transient failures.
type Fetcher struct {
	client  *retryablehttp.Client
	ua      string
	maxBody int64
	logger  *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option { return func(f *Fetcher) { f.ua = ua } }

// WithRetry sets the retry count and backoff bounds.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(f *Fetcher) {
		f.client.RetryMax = max
		f.client.RetryWaitMin = waitMin
		f.client.RetryWaitMax = waitMax
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.HTTPClient.Timeout = d }
}

// WithMaxBody caps the body size.
func WithMaxBody(n int64) Option { return func(f *Fetcher) { f.maxBody = n } }

// WithLogger sets the logger; retry attempts are logged through it.
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.HTTPClient.Timeout = 30 * time.Second
	f := &Fetcher{
		client:  c,
		ua:      "Mozilla/5.0 (compatible; linkguard/1.0)",
		maxBody: DefaultMaxBody,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	f.client.Logger = f.logger
	return f
}

// Fetch GETs pageURL. Non-2xx answers are errors.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if err := safeio.ValidatePageURL(pageURL); err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: get %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetcher: get %s: status %d", pageURL, resp.StatusCode)
	}
	body, err := safeio.LimitedReadAll(resp.Body, f.maxBody)
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	res := &Result{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, HTML: body}
	f.logger.Debug("fetcher: fetched", "url", res.URL, "status", res.StatusCode, "size", len(body))
	return res, nil
}
