// Package firecrawl scrapes state inspection report pages into markdown
// through the Firecrawl v1 API.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the hosted Firecrawl API.
const DefaultBaseURL = "https://api.firecrawl.dev/v1"

// Client scrapes one page.
type Client interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error)
}

// ScrapeRequest is the body of POST /scrape. WaitFor and Timeout are in
// milliseconds.
type ScrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats,omitempty"`
	OnlyMainContent *bool    `json:"onlyMainContent,omitempty"`
	WaitFor         int      `json:"waitFor,omitempty"`
	Timeout         int      `json:"timeout,omitempty"`
}

// ScrapeResponse is what POST /scrape returns with a 2xx status.
type ScrapeResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Data    PageData `json:"data"`
}

// PageData is the scraped page.
type PageData struct {
	Markdown string       `json:"markdown"`
	Metadata PageMetadata `json:"metadata"`
}

// PageMetadata describes the source page. StatusCode is the state site's
// own response status, not Firecrawl's.
type PageMetadata struct {
	Title      string `json:"title"`
	SourceURL  string `json:"sourceURL"`
	StatusCode int    `json:"statusCode"`
}

// APIError is a non-2xx answer from Firecrawl itself.
type APIError struct {
	StatusCode int
	// Message is the "error" field of the body when it is JSON, otherwise
	// the start of the raw body.
	Message string
}

func (e *APIError) Error() string {
	return "firecrawl: HTTP " + strconv.Itoa(e.StatusCode) + ": " + e.Message
}

func newAPIError(status int, body []byte) *APIError {
	var env struct {
		Error string `json:"error"`
	}
	msg := string(body)
	if json.Unmarshal(body, &env) == nil && env.Error != "" {
		msg = env.Error
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &APIError{StatusCode: status, Message: msg}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL points the client at another deployment. Empty keeps the default.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.hc = hc }
}

type httpClient struct {
	key     string
	baseURL string
	hc      *http.Client
}

// NewClient creates a Client authenticated with key.
func NewClient(key string, opts ...Option) Client {
	c := &httpClient{key: key, baseURL: DefaultBaseURL, hc: &http.Client{Timeout: 90 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Scrape fetches req.URL as markdown unless other formats are asked for.
func (c *httpClient) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	if len(req.Formats) == 0 {
		req.Formats = []string{"markdown"}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "firecrawl: encode request")
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "firecrawl: build request")
	}
	hreq.Header.Set("Authorization", "Bearer "+c.key)
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(hreq)
	if err != nil {
		return nil, eris.Wrapf(err, "firecrawl: scrape %s", req.URL)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "firecrawl: read response for %s", req.URL)
	}
	if resp.StatusCode/100 != 2 {
		return nil, newAPIError(resp.StatusCode, raw)
	}

	var out ScrapeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrapf(err, "firecrawl: decode response for %s", req.URL)
	}
	return &out, nil
}
