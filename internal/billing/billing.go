// Package billing keeps the store in step with the payment processor:
// checkout, webhook events, scheduled tier price changes and the
// grandfathered-rate migration.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/careaudit-cli/internal/blob"
	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/notify"
	"github.com/sells-group/careaudit-cli/internal/store"
	"github.com/sells-group/careaudit-cli/pkg/stripe"
)

// Metadata keys written on checkout sessions and subscriptions.
const (
	MetaFacilityID   = "facility_id"
	MetaTier         = "tier"
	MetaFacilityName = "facility_name"
)

// SyncError reports a failed billing operation. It is logged and counted by
// callers and never blocks facility data updates.
type SyncError struct {
	Op             string
	FacilityID     string
	SubscriptionID string
	Err            error
}

func (e *SyncError) Error() string {
	if e.SubscriptionID != "" {
		return fmt.Sprintf("billing %s facility %s subscription %s: %v", e.Op, e.FacilityID, e.SubscriptionID, e.Err)
	}
	return fmt.Sprintf("billing %s facility %s: %v", e.Op, e.FacilityID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Prices maps tiers to the current price ids new customers pay.
type Prices struct {
	Featured     string
	Verified     string
	ResponseOnly string
}

// For returns the current price id for t.
func (p Prices) For(t model.Tier) (string, bool) {
	var id string
	switch t {
	case model.TierFeatured:
		id = p.Featured
	case model.TierVerified:
		id = p.Verified
	case model.TierResponseOnly:
		id = p.ResponseOnly
	}
	return id, id != ""
}

// TierOf returns the tier whose current price is priceID.
func (p Prices) TierOf(priceID string) (model.Tier, bool) {
	if priceID == "" {
		return "", false
	}
	switch priceID {
	case p.Featured:
		return model.TierFeatured, true
	case p.Verified:
		return model.TierVerified, true
	case p.ResponseOnly:
		return model.TierResponseOnly, true
	}
	return "", false
}

// Options configures a Synchronizer.
type Options struct {
	Prices     Prices
	SuccessURL string
	CancelURL  string
	// Notifier sends owner e-mails. Nil disables them.
	Notifier notify.Notifier
	// Photos removes facility photos on cancellation. Nil disables cleanup.
	Photos blob.Store
	// PriceCache fronts price lookups. Nil queries Stripe every time.
	PriceCache *PriceCache
	// ReminderMonth and MigrateMonth drive the grandfathered-rate job.
	ReminderMonth int
	MigrateMonth  int
}

// Synchronizer applies payment processor state to the store.
type Synchronizer struct {
	store  store.Store
	stripe stripe.Client
	opts   Options

	now      func() time.Time
	newToken func() string
}

// New creates a Synchronizer.
func New(s store.Store, sc stripe.Client, opts Options) *Synchronizer {
	if opts.ReminderMonth <= 0 {
		opts.ReminderMonth = 11
	}
	if opts.MigrateMonth <= 0 {
		opts.MigrateMonth = 12
	}
	return &Synchronizer{
		store:    s,
		stripe:   sc,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: func() string { return uuid.NewString() },
	}
}

func (s *Synchronizer) notify(ctx context.Context, to string, kind notify.Kind, p notify.Params) error {
	if s.opts.Notifier == nil {
		return notify.ErrNoRecipient
	}
	return s.opts.Notifier.Notify(ctx, to, kind, p)
}

func (s *Synchronizer) price(ctx context.Context, id string) (*stripe.Price, error) {
	if s.opts.PriceCache != nil {
		return s.opts.PriceCache.Get(ctx, id)
	}
	return s.stripe.GetPrice(ctx, id)
}
