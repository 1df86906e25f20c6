package billing

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
)

// ScheduleTierChange moves the facility's live subscription to the current
// price of tier to. Stripe applies it from the next billing cycle since
// proration is disabled.
func (s *Synchronizer) ScheduleTierChange(ctx context.Context, f *model.Facility, to model.Tier) error {
	priceID, ok := s.opts.Prices.For(to)
	if !ok {
		return &SyncError{Op: "schedule tier change", FacilityID: f.ID, Err: ErrPriceNotConfigured}
	}
	mirror, err := s.store.FacilitySubscription(ctx, f.ID)
	if err != nil {
		return &SyncError{Op: "schedule tier change", FacilityID: f.ID, Err: err}
	}
	live, err := s.stripe.GetSubscription(ctx, mirror.ID)
	if err != nil {
		return &SyncError{Op: "schedule tier change", FacilityID: f.ID, SubscriptionID: mirror.ID, Err: err}
	}
	if live.PriceID == priceID {
		return nil
	}
	updated, err := s.stripe.UpdateSubscriptionPrice(ctx, live.ID, live.ItemID, priceID)
	if err != nil {
		return &SyncError{Op: "schedule tier change", FacilityID: f.ID, SubscriptionID: mirror.ID, Err: err}
	}

	mirror.Tier = to
	mirror.PriceID = priceID
	if updated.Status != "" {
		mirror.Status = updated.Status
	}
	if err := s.store.UpsertSubscription(ctx, mirror); err != nil {
		return &SyncError{Op: "record tier change", FacilityID: f.ID, SubscriptionID: mirror.ID, Err: err}
	}
	zap.L().Info("billing: tier price scheduled",
		zap.String("facility_id", f.ID),
		zap.String("subscription_id", mirror.ID),
		zap.String("tier", string(to)),
	)
	return nil
}
