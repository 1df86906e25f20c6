package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-api-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestScrape(t *testing.T) {
	tests := []struct {
		name         string
		handler      http.HandlerFunc
		wantMarkdown string
		wantStatus   int
		wantMessage  string
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/scrape", r.URL.Path)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req ScrapeRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "https://example.gov/profile?LID=1", req.URL)
				assert.Equal(t, []string{"markdown"}, req.Formats)

				_ = json.NewEncoder(w).Encode(ScrapeResponse{
					Success: true,
					Data:    PageData{Markdown: "# Sunrise ALF", Metadata: PageMetadata{StatusCode: 200}},
				})
			},
			wantMarkdown: "# Sunrise ALF",
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"error":"Rate limit exceeded"}`))
			},
			wantStatus:  429,
			wantMessage: "Rate limit exceeded",
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(strings.Repeat("x", 500)))
			},
			wantStatus:  404,
			wantMessage: strings.Repeat("x", 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.handler)
			resp, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.gov/profile?LID=1"})

			if tt.wantStatus != 0 {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				assert.Equal(t, tt.wantMessage, apiErr.Message)
				return
			}
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantMarkdown, resp.Data.Markdown)
		})
	}
}

func TestScrape_InvalidJSON(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.gov"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firecrawl: decode response")
}

func TestScrape_ContextCancelled(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Scrape(ctx, ScrapeRequest{URL: "https://example.gov"})
	require.Error(t, err)
}

func TestScrape_SourcePageStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"markdown":"Page not found","metadata":{"statusCode":404,"sourceURL":"https://example.gov/x"}}}`))
	})
	resp, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.gov/x"})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Data.Metadata.StatusCode)
	assert.Equal(t, "https://example.gov/x", resp.Data.Metadata.SourceURL)
}

func TestWithBaseURL_EmptyKeepsDefault(t *testing.T) {
	c := NewClient("k", WithBaseURL("")).(*httpClient)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
