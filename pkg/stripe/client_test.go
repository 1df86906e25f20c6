package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subscriptionJSON = `{
  "id": "sub_123",
  "object": "subscription",
  "status": "active",
  "start_date": 1700000000,
  "current_period_end": 1702592000,
  "customer": {"id": "cus_1", "object": "customer", "email": "owner@example.com"},
  "metadata": {"facility_id": "fac-1", "tier": "featured"},
  "items": {"object": "list", "data": [
    {"id": "si_1", "object": "subscription_item", "price": {"id": "price_old", "object": "price"}}
  ]}
}`

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewClient("sk_test_123", NewBackends(ts.URL))
}

func TestGetSubscription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/subscriptions/sub_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, subscriptionJSON)
	})

	sub, err := c.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, "owner@example.com", sub.CustomerEmail)
	assert.Equal(t, "si_1", sub.ItemID)
	assert.Equal(t, "price_old", sub.PriceID)
	assert.Equal(t, "featured", sub.Metadata["tier"])
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), sub.StartDate)
}

func TestUpdateSubscriptionPrice_NoProration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/subscriptions/sub_123", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "none", r.PostForm.Get("proration_behavior"))
		assert.Equal(t, "si_1", r.PostForm.Get("items[0][id]"))
		assert.Equal(t, "price_new", r.PostForm.Get("items[0][price]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, subscriptionJSON)
	})

	sub, err := c.UpdateSubscriptionPrice(context.Background(), "sub_123", "si_1", "price_new")
	require.NoError(t, err)
	assert.Equal(t, "sub_123", sub.ID)
}

func TestCreateCheckoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "price_featured", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "fac-1", r.PostForm.Get("metadata[facility_id]"))
		assert.Equal(t, "fac-1", r.PostForm.Get("subscription_data[metadata][facility_id]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_1"}`)
	})

	s, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		PriceID:    "price_featured",
		SuccessURL: "https://example.com/ok",
		CancelURL:  "https://example.com/cancel",
		Metadata:   map[string]string{"facility_id": "fac-1", "tier": "featured"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", s.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", s.URL)
}

func TestGetPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prices/price_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"price_1","object":"price","unit_amount":14900,"currency":"usd","recurring":{"interval":"month"}}`)
	})

	p, err := c.GetPrice(context.Background(), "price_1")
	require.NoError(t, err)
	assert.Equal(t, int64(14900), p.UnitAmount)
	assert.Equal(t, "usd", p.Currency)
	assert.Equal(t, "month", p.Interval)
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such subscription"}}`)
	})

	_, err := c.GetSubscription(context.Background(), "sub_missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "resource_missing", apiErr.Code)
}

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestParseWebhook(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":"customer.subscription.deleted","data":{"object":` + subscriptionJSON + `}}`)
	secret := "whsec_test"

	ev, err := ParseWebhook(payload, sign(payload, secret, time.Now()), secret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventSubscriptionDeleted, ev.Type)

	sub, err := ev.Subscription()
	require.NoError(t, err)
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "fac-1", sub.Metadata["facility_id"])
}

func TestParseWebhook_BadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)
	_, err := ParseWebhook(payload, sign(payload, "other", time.Now()), "whsec_test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stripe: verify webhook")
}

func TestEvent_CheckoutSession(t *testing.T) {
	ev := &Event{Type: EventCheckoutCompleted, Object: []byte(`{
	  "id":"cs_1","object":"checkout.session","subscription":"sub_9",
	  "customer_details":{"email":"billing@example.com"},
	  "metadata":{"facility_id":"fac-2","tier":"verified"}}`)}

	s, err := ev.CheckoutSession()
	require.NoError(t, err)
	assert.Equal(t, "sub_9", s.SubscriptionID)
	assert.Equal(t, "billing@example.com", s.CustomerEmail)
	assert.Equal(t, "verified", s.Metadata["tier"])
}

func TestEvent_DecodeError(t *testing.T) {
	ev := &Event{Type: EventSubscriptionUpdated, Object: []byte(`not json`)}
	_, err := ev.Subscription()
	require.Error(t, err)
}
