// Package anthropic wraps the Anthropic SDK for single-turn completions.
// Callers depend on Client and its plain request and response types, never
// on the SDK.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client sends one prompt and returns the model's answer.
type Client interface {
	Complete(ctx context.Context, p Prompt) (*Completion, error)
}

// Prompt is a system instruction plus a single user turn.
type Prompt struct {
	Model     string
	MaxTokens int64
	System    string
	// CacheTTL ("5m" or "1h") marks the system prompt as a cache
	// breakpoint, so a batch sharing it pays full input price once per TTL.
	CacheTTL string
	User     string
}

// Completion is the model's answer with its text blocks joined.
type Completion struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      Usage
}

// Truncated reports whether the answer was cut off at MaxTokens.
func (c *Completion) Truncated() bool {
	return c.StopReason == "max_tokens"
}

// Usage counts billed tokens.
type Usage struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

type rate struct{ in, out float64 }

// Dollars per million tokens.
var rates = map[string]rate{
	"claude-sonnet-4-6":          {3, 15},
	"claude-sonnet-4-5-20250929": {3, 15},
	"claude-haiku-4-5-20251001":  {1, 5},
}

// Cost estimates the dollar cost of u on model. Cache writes bill at 1.25x
// input and cache reads at 0.1x. Unknown models cost 0.
func (u Usage) Cost(model string) float64 {
	r, ok := rates[model]
	if !ok {
		return 0
	}
	in := float64(u.Input) + 1.25*float64(u.CacheWrite) + 0.1*float64(u.CacheRead)
	return (in*r.in + float64(u.Output)*r.out) / 1e6
}

// Log records u for one facility at debug level.
func (u Usage) Log(model, facilityID string) {
	zap.L().Debug("anthropic: usage",
		zap.String("model", model),
		zap.String("facility_id", facilityID),
		zap.Int64("input_tokens", u.Input),
		zap.Int64("output_tokens", u.Output),
		zap.Int64("cache_write_tokens", u.CacheWrite),
		zap.Int64("cache_read_tokens", u.CacheRead),
		zap.Float64("estimated_cost_usd", u.Cost(model)),
	)
}

// StatusCode returns the HTTP status of an API error in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a Client backed by the SDK. SDK retries are off; the
// extraction service owns the retry policy.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &sdkClient{client: sdk.NewClient(opts...)}
}

func (c *sdkClient) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	msg, err := c.client.Messages.New(ctx, params(p))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: complete")
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return &Completion{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			Input:      msg.Usage.InputTokens,
			Output:     msg.Usage.OutputTokens,
			CacheWrite: msg.Usage.CacheCreationInputTokens,
			CacheRead:  msg.Usage.CacheReadInputTokens,
		},
	}, nil
}

func params(p Prompt) sdk.MessageNewParams {
	out := sdk.MessageNewParams{
		Model:     sdk.Model(p.Model),
		MaxTokens: p.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(p.User))},
	}
	if p.System != "" {
		sys := sdk.TextBlockParam{Text: p.System}
		if p.CacheTTL != "" {
			sys.CacheControl = sdk.NewCacheControlEphemeralParam()
			sys.CacheControl.TTL = sdk.CacheControlEphemeralTTL(p.CacheTTL)
		}
		out.System = []sdk.TextBlockParam{sys}
	}
	return out
}
