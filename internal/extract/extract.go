// Package extract turns inspection report text into a structured candidate
// record using the Anthropic messages API.
package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/resilience"
	"github.com/sells-group/careaudit-cli/pkg/anthropic"
)

// Extractor produces candidate records from raw report text.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*model.Candidate, error)
}

// Request is one extraction call.
type Request struct {
	// FacilityID is used for logging only.
	FacilityID string
	// PriorContext introduces the report, see ReportContext.
	PriorContext string
	RawText      string
	// Corrections are quality gate reasons from a rejected attempt. They
	// are appended to the prompt as a revision request.
	Corrections []string
}

// Config configures a Client.
type Config struct {
	Model     string
	MaxTokens int64
	CacheTTL  string
	// MaxAttempts bounds calls per Extract, counting retries of transient
	// service errors and unusable output. Default: 3.
	MaxAttempts int
	// InitialBackoff is the first retry wait. Default: 2s.
	InitialBackoff time.Duration
}

// Client implements Extractor on top of an anthropic.Client.
type Client struct {
	ai    anthropic.Client
	cfg   Config
	retry resilience.Policy
}

// New creates a Client.
func New(ai anthropic.Client, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-6"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}

	retry := resilience.Exponential(cfg.MaxAttempts, cfg.InitialBackoff)
	retry.Retryable = retryable
	retry.OnRetry = resilience.Logged("anthropic", "extract")

	return &Client{ai: ai, cfg: cfg, retry: retry}
}

// Extract sends the report to the model and strictly decodes the answer.
// Every failure is an *ExtractionError carrying the number of attempts.
func (c *Client) Extract(ctx context.Context, req Request) (*model.Candidate, error) {
	prompt := anthropic.Prompt{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    systemPrompt,
		CacheTTL:  c.cfg.CacheTTL,
		User:      userContent(req),
	}

	cand, attempts, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (*model.Candidate, error) {
		out, err := c.ai.Complete(ctx, prompt)
		if err != nil {
			return nil, &ExtractionError{Reason: ReasonService, StatusCode: anthropic.StatusCode(err), Err: err}
		}
		out.Usage.Log(c.cfg.Model, req.FacilityID)
		if out.Truncated() {
			zap.L().Warn("extract: response truncated at max_tokens",
				zap.String("facility_id", req.FacilityID),
			)
		}
		return Decode(out.Text)
	})
	if err != nil {
		var ee *ExtractionError
		if !errors.As(err, &ee) {
			ee = &ExtractionError{Reason: ReasonService, Err: err}
		}
		ee.Attempts = attempts
		return nil, ee
	}
	return cand, nil
}

// retryable reports whether another attempt could succeed. Client errors
// other than rate limiting are final; unusable output is retried since the
// model is not deterministic.
func retryable(err error) bool {
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		return resilience.IsTransient(err)
	}
	if ee.Reason != ReasonService {
		return true
	}
	if ee.StatusCode > 0 {
		return resilience.RetryableStatus(ee.StatusCode)
	}
	return resilience.IsTransient(ee.Err)
}
