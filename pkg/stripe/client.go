// Package stripe wraps the Stripe SDK behind a narrow interface with plain
// types, covering checkout, subscription price changes and webhooks.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	sdk "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Event types the billing synchronizer handles.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Client defines the Stripe operations used by billing.
type Client interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]Subscription, error)
	// UpdateSubscriptionPrice swaps the price on a subscription item without
	// proration, so the new amount applies from the next billing cycle.
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*Subscription, error)
	GetPrice(ctx context.Context, id string) (*Price, error)
}

// CheckoutParams describes a subscription checkout session.
type CheckoutParams struct {
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	// Metadata is copied to both the session and the subscription.
	Metadata map[string]string
}

// CheckoutSession is a created or completed checkout session.
type CheckoutSession struct {
	ID             string
	URL            string
	SubscriptionID string
	CustomerEmail  string
	Metadata       map[string]string
}

// Subscription is the subset of a Stripe subscription billing reads.
type Subscription struct {
	ID            string
	Status        string
	CustomerID    string
	CustomerEmail string
	ItemID        string
	PriceID       string
	Metadata      map[string]string
	StartDate     time.Time
	PeriodEnd     time.Time
}

// Price is a recurring price.
type Price struct {
	ID         string
	UnitAmount int64 // cents
	Currency   string
	Interval   string
	Metadata   map[string]string
}

// Event is a verified webhook event with its raw object payload.
type Event struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// APIError is a Stripe API error with its HTTP status.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return "stripe: " + e.Message
}

type sdkClient struct {
	api *client.API
}

// NewClient creates a Stripe client. A nil backends uses the live API.
func NewClient(secretKey string, backends *sdk.Backends) Client {
	return &sdkClient{api: client.New(secretKey, backends)}
}

// NewBackends points every Stripe backend at baseURL. Used by tests and
// stripe-mock.
func NewBackends(baseURL string) *sdk.Backends {
	cfg := &sdk.BackendConfig{
		URL:               sdk.String(baseURL),
		MaxNetworkRetries: sdk.Int64(0),
		LeveledLogger:     &sdk.LeveledLogger{Level: sdk.LevelError},
	}
	b := sdk.GetBackendWithConfig(sdk.APIBackend, cfg)
	return &sdk.Backends{API: b, Connect: b, Uploads: b}
}

func (c *sdkClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &sdk.CheckoutSessionParams{
		Mode: sdk.String(string(sdk.CheckoutSessionModeSubscription)),
		LineItems: []*sdk.CheckoutSessionLineItemParams{
			{Price: sdk.String(p.PriceID), Quantity: sdk.Int64(1)},
		},
		SuccessURL:       sdk.String(p.SuccessURL),
		CancelURL:        sdk.String(p.CancelURL),
		SubscriptionData: &sdk.CheckoutSessionSubscriptionDataParams{Metadata: p.Metadata},
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = sdk.String(p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapErr(err, "stripe: create checkout session")
	}
	return fromSDKSession(s), nil
}

func (c *sdkClient) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &sdk.SubscriptionParams{}
	params.Context = ctx
	s, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, wrapErr(err, "stripe: get subscription "+id)
	}
	return fromSDKSubscription(s), nil
}

func (c *sdkClient) ListActiveSubscriptions(ctx context.Context) ([]Subscription, error) {
	params := &sdk.SubscriptionListParams{Status: sdk.String(string(sdk.SubscriptionStatusActive))}
	params.Context = ctx
	params.AddExpand("data.customer")

	var out []Subscription
	it := c.api.Subscriptions.List(params)
	for it.Next() {
		out = append(out, *fromSDKSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, wrapErr(err, "stripe: list subscriptions")
	}
	return out, nil
}

func (c *sdkClient) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*Subscription, error) {
	params := &sdk.SubscriptionParams{
		Items: []*sdk.SubscriptionItemsParams{
			{ID: sdk.String(itemID), Price: sdk.String(priceID)},
		},
		ProrationBehavior: sdk.String("none"),
	}
	params.Context = ctx
	s, err := c.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, wrapErr(err, "stripe: update subscription "+subscriptionID)
	}
	return fromSDKSubscription(s), nil
}

func (c *sdkClient) GetPrice(ctx context.Context, id string) (*Price, error) {
	params := &sdk.PriceParams{}
	params.Context = ctx
	p, err := c.api.Prices.Get(id, params)
	if err != nil {
		return nil, wrapErr(err, "stripe: get price "+id)
	}
	out := &Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Metadata:   p.Metadata,
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out, nil
}

// ParseWebhook verifies the Stripe-Signature header and returns the event.
// API version mismatches are tolerated since only object fields are read.
func ParseWebhook(payload []byte, signature, secret string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "stripe: verify webhook")
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}

// CheckoutSession decodes the event object as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var s sdk.CheckoutSession
	if err := json.Unmarshal(e.Object, &s); err != nil {
		return nil, eris.Wrapf(err, "stripe: decode %s", e.Type)
	}
	return fromSDKSession(&s), nil
}

// Subscription decodes the event object as a subscription.
func (e *Event) Subscription() (*Subscription, error) {
	var s sdk.Subscription
	if err := json.Unmarshal(e.Object, &s); err != nil {
		return nil, eris.Wrapf(err, "stripe: decode %s", e.Type)
	}
	return fromSDKSubscription(&s), nil
}

func wrapErr(err error, msg string) error {
	var se *sdk.Error
	if errors.As(err, &se) {
		return eris.Wrap(&APIError{StatusCode: se.HTTPStatusCode, Code: string(se.Code), Message: se.Msg}, msg)
	}
	return eris.Wrap(err, msg)
}

func fromSDKSession(s *sdk.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func fromSDKSubscription(s *sdk.Subscription) *Subscription {
	out := &Subscription{
		ID:       s.ID,
		Status:   string(s.Status),
		Metadata: s.Metadata,
	}
	if s.StartDate > 0 {
		out.StartDate = time.Unix(s.StartDate, 0).UTC()
	}
	if s.CurrentPeriodEnd > 0 {
		out.PeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
		out.CustomerEmail = s.Customer.Email
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.ItemID = item.ID
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	return out
}
