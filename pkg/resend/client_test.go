package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHTTPMock(t *testing.T) Client {
	t.Helper()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewClient("re_test", WithHTTPClient(hc), WithBaseURL("https://resend.test"))
}

func TestSend(t *testing.T) {
	c := setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, "https://resend.test/emails",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer re_test", req.Header.Get("Authorization"))
			var e Email
			require.NoError(t, json.NewDecoder(req.Body).Decode(&e))
			assert.Equal(t, []string{"owner@example.com"}, e.To)
			assert.Equal(t, "Welcome", e.Subject)
			assert.NotEmpty(t, e.Text)
			return httpmock.NewStringResponse(http.StatusOK, `{"id":"email_123"}`), nil
		})

	id, err := c.Send(context.Background(), Email{
		From:    "CareAudit <noreply@example.com>",
		To:      []string{"owner@example.com"},
		Subject: "Welcome",
		HTML:    "<p>Hello</p>",
		Text:    "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "email_123", id)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSend_HTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"validation", http.StatusUnprocessableEntity},
		{"rate_limited", http.StatusTooManyRequests},
		{"server_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupHTTPMock(t)
			httpmock.RegisterResponder(http.MethodPost, "https://resend.test/emails",
				httpmock.NewStringResponder(tt.statusCode, `{"message":"nope"}`))

			_, err := c.Send(context.Background(), Email{To: []string{"a@example.com"}})
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.statusCode, apiErr.StatusCode)
		})
	}
}

func TestSend_NoRecipients(t *testing.T) {
	c := setupHTTPMock(t)
	_, err := c.Send(context.Background(), Email{Subject: "x"})
	require.Error(t, err)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestSend_InvalidJSON(t *testing.T) {
	c := setupHTTPMock(t)
	httpmock.RegisterResponder(http.MethodPost, "https://resend.test/emails",
		httpmock.NewStringResponder(http.StatusOK, `{invalid`))

	_, err := c.Send(context.Background(), Email{To: []string{"a@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestAPIError_Truncates(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	err := &APIError{StatusCode: 500, Body: string(long)}
	assert.Len(t, err.Error(), len("resend: HTTP 500: ")+200)
}
