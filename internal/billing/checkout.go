package billing

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/tier"
	"github.com/sells-group/careaudit-cli/pkg/stripe"
)

// ErrPriceNotConfigured is returned when a tier has no price id.
var ErrPriceNotConfigured = eris.New("billing: price not configured for tier")

// CreateCheckout opens a subscription checkout for facilityID at tier t.
// Eligibility errors from the tier package are returned unwrapped enough for
// errors.Is to match them.
func (s *Synchronizer) CreateCheckout(ctx context.Context, facilityID string, t model.Tier) (*stripe.CheckoutSession, error) {
	if t == model.TierNone {
		return nil, eris.Wrapf(tier.ErrUnknownTier, "%q", t)
	}
	f, err := s.store.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if err := tier.CheckEligibility(f.ViolationCount, t); err != nil {
		return nil, err
	}
	priceID, ok := s.opts.Prices.For(t)
	if !ok {
		return nil, eris.Wrapf(ErrPriceNotConfigured, "%s", t)
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		PriceID:    priceID,
		SuccessURL: s.opts.SuccessURL,
		CancelURL:  s.opts.CancelURL,
		Metadata: map[string]string{
			MetaFacilityID:   f.ID,
			MetaTier:         string(t),
			MetaFacilityName: f.Name,
		},
	})
	if err != nil {
		return nil, &SyncError{Op: "create checkout", FacilityID: f.ID, Err: err}
	}
	zap.L().Info("billing: checkout created",
		zap.String("facility_id", f.ID),
		zap.String("tier", string(t)),
		zap.String("session_id", session.ID),
	)
	return session, nil
}
