package billing

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/notify"
	"github.com/sells-group/careaudit-cli/internal/store"
	"github.com/sells-group/careaudit-cli/internal/tier"
	"github.com/sells-group/careaudit-cli/pkg/stripe"
)

// HandleEvent applies a verified webhook event. Events without facility
// metadata and unknown event types are acknowledged and ignored. A returned
// error means the processor should redeliver.
func (s *Synchronizer) HandleEvent(ctx context.Context, ev *stripe.Event) error {
	log := zap.L().With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	switch ev.Type {
	case stripe.EventCheckoutCompleted:
		session, err := ev.CheckoutSession()
		if err != nil {
			log.Error("billing: undecodable checkout session", zap.Error(err))
			return nil
		}
		return s.checkoutCompleted(ctx, session)
	case stripe.EventSubscriptionUpdated:
		sub, err := ev.Subscription()
		if err != nil {
			log.Error("billing: undecodable subscription", zap.Error(err))
			return nil
		}
		return s.subscriptionUpdated(ctx, sub)
	case stripe.EventSubscriptionDeleted:
		sub, err := ev.Subscription()
		if err != nil {
			log.Error("billing: undecodable subscription", zap.Error(err))
			return nil
		}
		return s.subscriptionDeleted(ctx, sub)
	default:
		log.Debug("billing: ignoring event")
		return nil
	}
}

func (s *Synchronizer) checkoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	facilityID := session.Metadata[MetaFacilityID]
	t, ok := model.ParseTier(session.Metadata[MetaTier])
	if facilityID == "" || !ok || t == model.TierNone {
		zap.L().Error("billing: checkout session missing facility metadata", zap.String("session_id", session.ID))
		return nil
	}
	log := zap.L().With(zap.String("facility_id", facilityID), zap.String("tier", string(t)))

	f, err := s.store.GetFacility(ctx, facilityID)
	if err != nil {
		return &SyncError{Op: "checkout completed", FacilityID: facilityID, SubscriptionID: session.SubscriptionID, Err: err}
	}
	// Checkout already enforced eligibility; the count may have moved since.
	// The next tier evaluation corrects a stale tier, but a facility without
	// inspection data never enters a gated tier.
	if err := tier.CheckEligibility(f.ViolationCount, t); err != nil {
		log.Warn("billing: tier eligibility changed since checkout", zap.Error(err))
		if t.HasViolationCeiling() && f.ViolationCount == nil {
			return &SyncError{Op: "checkout completed", FacilityID: facilityID, SubscriptionID: session.SubscriptionID, Err: err}
		}
	}

	token := s.newToken()
	if err := s.store.ActivateSponsorship(ctx, store.Activation{
		FacilityID:   facilityID,
		Tier:         t,
		Token:        token,
		BillingEmail: session.CustomerEmail,
	}); err != nil {
		return &SyncError{Op: "activate sponsorship", FacilityID: facilityID, SubscriptionID: session.SubscriptionID, Err: err}
	}

	if session.SubscriptionID != "" {
		priceID, _ := s.opts.Prices.For(t)
		if err := s.store.UpsertSubscription(ctx, &model.Subscription{
			ID:            session.SubscriptionID,
			FacilityID:    facilityID,
			Tier:          t,
			PriceID:       priceID,
			CustomerEmail: session.CustomerEmail,
			Status:        "active",
			StartedAt:     s.now(),
		}); err != nil {
			return &SyncError{Op: "record subscription", FacilityID: facilityID, SubscriptionID: session.SubscriptionID, Err: err}
		}
	}
	log.Info("billing: sponsorship activated", zap.String("subscription_id", session.SubscriptionID))

	p := notify.FacilityParams(f)
	p.Tier = t
	p.Token = token
	to := session.CustomerEmail
	if to == "" {
		to = f.NotifyEmail()
	}
	_ = s.notify(ctx, to, notify.KindWelcome, p)
	return nil
}

const statusCanceled = "canceled"

// liveStatus reports whether a subscription in status may carry a tier.
func liveStatus(status string) bool {
	return status == "active" || status == "trialing"
}

func (s *Synchronizer) subscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error {
	facilityID := sub.Metadata[MetaFacilityID]
	if facilityID == "" {
		return nil
	}
	log := zap.L().With(zap.String("facility_id", facilityID), zap.String("subscription_id", sub.ID))

	f, err := s.store.GetFacility(ctx, facilityID)
	if err != nil {
		return &SyncError{Op: "subscription updated", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
	}

	mirror := &model.Subscription{
		ID:            sub.ID,
		FacilityID:    facilityID,
		Tier:          f.SponsorTier,
		PriceID:       sub.PriceID,
		CustomerEmail: sub.CustomerEmail,
		Status:        sub.Status,
		StartedAt:     sub.StartDate,
	}
	canceled := false
	if existing, err := s.store.GetSubscription(ctx, sub.ID); err == nil {
		mirror.Tier = existing.Tier
		mirror.StartedAt = existing.StartedAt
		canceled = existing.Status == statusCanceled
	}
	if mirror.StartedAt.IsZero() {
		mirror.StartedAt = s.now()
	}
	if canceled {
		// Events arrive unordered; a deletion is final.
		mirror.Status = statusCanceled
	}

	// Only a current tier price on a live subscription of a sponsored
	// facility implies a tier. Legacy prices keep the tier already on record.
	newTier, ok := s.opts.Prices.TierOf(sub.PriceID)
	switch {
	case !ok || newTier == f.SponsorTier:
	case canceled || !liveStatus(sub.Status) || f.SponsorTier == model.TierNone:
		log.Warn("billing: ignoring tier change on inactive subscription",
			zap.String("status", sub.Status), zap.String("tier", string(newTier)), zap.Bool("mirror_canceled", canceled))
	default:
		if err := tier.CheckEligibility(f.ViolationCount, newTier); err != nil {
			log.Warn("billing: rejected tier change", zap.String("tier", string(newTier)), zap.Error(err))
		} else {
			if err := s.store.SetSponsorTier(ctx, facilityID, newTier); err != nil {
				return &SyncError{Op: "set tier", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
			}
			log.Info("billing: tier changed", zap.String("from", string(f.SponsorTier)), zap.String("to", string(newTier)))
			mirror.Tier = newTier
		}
	}
	if mirror.Tier == "" || mirror.Tier == model.TierNone {
		if t, ok := model.ParseTier(sub.Metadata[MetaTier]); ok {
			mirror.Tier = t
		}
	}

	if err := s.store.UpsertSubscription(ctx, mirror); err != nil {
		return &SyncError{Op: "record subscription", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
	}
	return nil
}

func (s *Synchronizer) subscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	facilityID := sub.Metadata[MetaFacilityID]
	if facilityID == "" {
		zap.L().Error("billing: deleted subscription missing facility metadata", zap.String("subscription_id", sub.ID))
		return nil
	}
	log := zap.L().With(zap.String("facility_id", facilityID), zap.String("subscription_id", sub.ID))

	f, err := s.store.GetFacility(ctx, facilityID)
	if err != nil {
		return &SyncError{Op: "subscription deleted", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
	}
	if err := s.store.ClearSponsorship(ctx, facilityID); err != nil {
		return &SyncError{Op: "clear sponsorship", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
	}

	mirror := &model.Subscription{
		ID:            sub.ID,
		FacilityID:    facilityID,
		Tier:          f.SponsorTier,
		PriceID:       sub.PriceID,
		CustomerEmail: sub.CustomerEmail,
		Status:        statusCanceled,
		StartedAt:     sub.StartDate,
	}
	if existing, err := s.store.GetSubscription(ctx, sub.ID); err == nil {
		mirror.Tier = existing.Tier
		mirror.StartedAt = existing.StartedAt
	}
	if mirror.StartedAt.IsZero() {
		mirror.StartedAt = s.now()
	}
	if err := s.store.UpsertSubscription(ctx, mirror); err != nil {
		log.Warn("billing: record canceled subscription", zap.Error(err))
	}

	if s.opts.Photos != nil && f.Slug != "" {
		n, err := s.opts.Photos.DeletePrefix(ctx, f.Slug)
		if err != nil {
			log.Warn("billing: photo cleanup failed", zap.String("slug", f.Slug), zap.Error(err))
		} else {
			log.Info("billing: photos removed", zap.Int("objects", n))
		}
	}
	log.Info("billing: sponsorship cleared")
	return nil
}
