// Package classify talks to the link classification service.
//
// The service accepts POST {"text": "..."} and answers
// {"classification": "...", "confidence": 0.0-1.0, "text": "..."}.
// Each call is a single attempt: there is no retry and no caching.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/linkguard/internal/safeio"
	"github.com/hazyhaar/linkguard/verdict"
)

// DefaultEndpoint is the address of a locally running classifier.
const DefaultEndpoint = "http://localhost:8000/predict"

// DefaultTimeout bounds one classification round trip.
const DefaultTimeout = 30 * time.Second

// Classifier returns a verdict for a piece of text (usually a URL).
type Classifier interface {
	Classify(ctx context.Context, text string) (verdict.Verdict, error)
}

// Func adapts a function to the Classifier interface.
type Func func(ctx context.Context, text string) (verdict.Verdict, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, text string) (verdict.Verdict, error) {
	return f(ctx, text)
}

// Client is the HTTP Classifier. It is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	maxBody  int64
	logger   *slog.Logger

	requests atomic.Int64
	failures atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the per-call timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithMaxBody caps the response body size.
func WithMaxBody(n int64) Option { return func(c *Client) { c.maxBody = n } }

// New creates a Client posting to endpoint (DefaultEndpoint when empty).
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
		timeout:  DefaultTimeout,
		maxBody:  safeio.MaxResponseBody,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Endpoint returns the classifier URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Stats are point-in-time counters.
type Stats struct {
	Requests int64 `json:"requests"`
	Failures int64 `json:"failures"`
}

// Stats returns the request counters.
func (c *Client) Stats() Stats {
	return Stats{Requests: c.requests.Load(), Failures: c.failures.Load()}
}

// Classify sends text to the service and decodes the verdict.
func (c *Client) Classify(ctx context.Context, text string) (verdict.Verdict, error) {
	c.requests.Add(1)
	v, err := c.do(ctx, text)
	if err != nil {
		c.failures.Add(1)
		c.logger.Debug("classify: request failed", "text", text, "error", err)
		return verdict.Verdict{}, err
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, text string) (verdict.Verdict, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("classify: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("classify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("classify: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := safeio.LimitedReadAll(resp.Body, c.maxBody)
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("classify: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return verdict.Verdict{}, &StatusError{Status: resp.StatusCode, Detail: diagnose(body)}
	}
	return parseVerdict(body)
}
