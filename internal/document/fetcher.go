// Package document retrieves inspection reports as markdown text.
package document

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/careaudit-cli/internal/resilience"
	"github.com/sells-group/careaudit-cli/pkg/firecrawl"
)

// Options configures a Fetcher.
type Options struct {
	// MinInterval is the minimum gap between two outgoing requests,
	// including retries. Default: 1.5s.
	MinInterval time.Duration
	// Backoff is the wait before each retry. Default: 10s, 30s, 60s.
	Backoff []time.Duration
	// MinContentLength is the plausibility floor for returned content.
	// Default: 100.
	MinContentLength int
}

// DefaultBackoff is the retry schedule for transient fetch failures.
var DefaultBackoff = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}

// Fetcher retrieves documents through Firecrawl, throttled and retried.
type Fetcher struct {
	client     firecrawl.Client
	limiter    *rate.Limiter
	retry      resilience.Policy
	minContent int
}

// NewFetcher creates a Fetcher. Zero options take their defaults.
func NewFetcher(client firecrawl.Client, opts Options) *Fetcher {
	if opts.MinInterval <= 0 {
		opts.MinInterval = 1500 * time.Millisecond
	}
	if len(opts.Backoff) == 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = 100
	}

	retry := resilience.Schedule(opts.Backoff...)
	retry.Retryable = func(err error) bool {
		var fe *FetchError
		return errors.As(err, &fe) && fe.Transient()
	}
	retry.OnRetry = resilience.Logged("firecrawl", "scrape")

	return &Fetcher{
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		retry:      retry,
		minContent: opts.MinContentLength,
	}
}

// Fetch returns the markdown for locator. Every failure is a *FetchError;
// once the retry schedule is exhausted the error is permanent and carries
// the attempt count.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (string, error) {
	if locator == "" {
		return "", &FetchError{Kind: Permanent, Err: eris.New("empty locator")}
	}

	md, attempts, err := resilience.Retry(ctx, f.retry, func(ctx context.Context) (string, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", &FetchError{Locator: locator, Kind: Permanent, Err: err}
		}
		return f.scrape(ctx, locator)
	})
	if err == nil {
		return md, nil
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		fe = &FetchError{Locator: locator, Kind: Permanent, Err: err}
	}
	fe.Attempts = attempts
	if fe.Transient() {
		zap.L().Warn("document: retries exhausted",
			zap.String("locator", locator),
			zap.Int("attempts", attempts),
			zap.Error(fe.Err),
		)
		fe.Kind = Permanent
	}
	return "", fe
}

func (f *Fetcher) scrape(ctx context.Context, locator string) (string, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     locator,
		Formats: []string{"markdown"},
	})
	if err != nil {
		return "", classify(ctx, locator, err)
	}
	if !resp.Success {
		return "", &FetchError{Locator: locator, Kind: Transient, Err: eris.Errorf("scrape unsuccessful: %s", resp.Error)}
	}
	if code := resp.Data.Metadata.StatusCode; code >= 400 {
		kind := Permanent
		if resilience.RetryableStatus(code) {
			kind = Transient
		}
		return "", &FetchError{Locator: locator, Kind: kind, StatusCode: code, Err: eris.Errorf("source page returned %d", code)}
	}
	if n := len(resp.Data.Markdown); n < f.minContent {
		return "", &FetchError{Locator: locator, Kind: Transient, Err: eris.Errorf("content too short (%d chars)", n)}
	}
	return resp.Data.Markdown, nil
}

func classify(ctx context.Context, locator string, err error) error {
	if ctx.Err() != nil {
		return &FetchError{Locator: locator, Kind: Permanent, Err: err}
	}

	var apiErr *firecrawl.APIError
	if errors.As(err, &apiErr) {
		kind := Permanent
		if resilience.RetryableStatus(apiErr.StatusCode) {
			kind = Transient
		}
		return &FetchError{Locator: locator, Kind: kind, StatusCode: apiErr.StatusCode, Err: err}
	}

	if resilience.IsTransient(err) {
		return &FetchError{Locator: locator, Kind: Transient, Err: err}
	}
	return &FetchError{Locator: locator, Kind: Permanent, Err: err}
}
