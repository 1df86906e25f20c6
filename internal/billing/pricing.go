package billing

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/notify"
	"github.com/sells-group/careaudit-cli/internal/store"
	"github.com/sells-group/careaudit-cli/pkg/stripe"
)

// PricingReport summarises a grandfathered-rate run.
type PricingReport struct {
	Checked    int
	Current    int
	Reminders  int
	Migrations int
	Skipped    int
	Errors     int
}

// Fields renders the report as zap fields.
func (r PricingReport) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("checked", r.Checked),
		zap.Int("current", r.Current),
		zap.Int("reminders", r.Reminders),
		zap.Int("migrations", r.Migrations),
		zap.Int("skipped", r.Skipped),
		zap.Int("errors", r.Errors),
	}
}

// RunGrandfathered walks active subscriptions still on a non-current price.
// At ReminderMonth the customer is told the rate ends; from MigrateMonth the
// subscription moves to the tier's current price without proration. Months
// count from the subscription start date and the tier comes from the
// subscription metadata. Only the listing failure is returned; per
// subscription failures are counted.
func (s *Synchronizer) RunGrandfathered(ctx context.Context) (PricingReport, error) {
	var r PricingReport
	subs, err := s.stripe.ListActiveSubscriptions(ctx)
	if err != nil {
		return r, eris.Wrap(err, "billing: list active subscriptions")
	}
	now := s.now()

	for i := range subs {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		sub := &subs[i]
		r.Checked++
		if sub.PriceID == "" {
			r.Skipped++
			continue
		}
		if _, current := s.opts.Prices.TierOf(sub.PriceID); current {
			r.Current++
			continue
		}

		mirror := &model.Subscription{StartedAt: sub.StartDate}
		months := mirror.MonthsActive(now)
		t, _ := model.ParseTier(sub.Metadata[MetaTier])
		newPriceID, hasNew := s.opts.Prices.For(t)
		log := zap.L().With(
			zap.String("subscription_id", sub.ID),
			zap.String("tier", string(t)),
			zap.Int("months_active", months),
		)

		switch {
		case months >= s.opts.MigrateMonth && hasNew:
			if err := s.migrate(ctx, sub, t, newPriceID, now); err != nil {
				log.Error("billing: migration failed", zap.Error(err))
				r.Errors++
				continue
			}
			log.Info("billing: migrated to current price", zap.String("price_id", newPriceID))
			r.Migrations++
		case months >= s.opts.ReminderMonth:
			sent, err := s.remind(ctx, sub, t, newPriceID)
			if err != nil {
				log.Error("billing: reminder failed", zap.Error(err))
				r.Errors++
				continue
			}
			if sent {
				r.Reminders++
			} else {
				r.Skipped++
			}
		default:
			r.Skipped++
		}
	}
	return r, nil
}

// record upserts the local mirror for sub so later marks have a row.
func (s *Synchronizer) record(ctx context.Context, sub *stripe.Subscription, t model.Tier) (*model.Subscription, error) {
	if existing, err := s.store.GetSubscription(ctx, sub.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	mirror := &model.Subscription{
		ID:            sub.ID,
		FacilityID:    sub.Metadata[MetaFacilityID],
		Tier:          t,
		PriceID:       sub.PriceID,
		CustomerEmail: sub.CustomerEmail,
		Status:        sub.Status,
		StartedAt:     sub.StartDate,
	}
	if err := s.store.UpsertSubscription(ctx, mirror); err != nil {
		return nil, err
	}
	return mirror, nil
}

func (s *Synchronizer) migrate(ctx context.Context, sub *stripe.Subscription, t model.Tier, priceID string, now time.Time) error {
	if _, err := s.record(ctx, sub, t); err != nil {
		return &SyncError{Op: "record subscription", FacilityID: sub.Metadata[MetaFacilityID], SubscriptionID: sub.ID, Err: err}
	}
	if _, err := s.stripe.UpdateSubscriptionPrice(ctx, sub.ID, sub.ItemID, priceID); err != nil {
		return &SyncError{Op: "migrate price", FacilityID: sub.Metadata[MetaFacilityID], SubscriptionID: sub.ID, Err: err}
	}
	if err := s.store.MarkMigrated(ctx, sub.ID, priceID, now); err != nil {
		return &SyncError{Op: "mark migrated", FacilityID: sub.Metadata[MetaFacilityID], SubscriptionID: sub.ID, Err: err}
	}
	return nil
}

// remind sends the expiring-rate reminder once per subscription. It reports
// false when the reminder was already sent or had nowhere to go.
func (s *Synchronizer) remind(ctx context.Context, sub *stripe.Subscription, t model.Tier, newPriceID string) (bool, error) {
	facilityID := sub.Metadata[MetaFacilityID]
	mirror, err := s.record(ctx, sub, t)
	if err != nil {
		return false, &SyncError{Op: "record subscription", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
	}
	if mirror.ReminderSentAt != nil {
		return false, nil
	}

	current, err := s.price(ctx, sub.PriceID)
	if err != nil {
		return false, &SyncError{Op: "get price", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
	}
	p := notify.Params{
		FacilityID:   facilityID,
		FacilityName: sub.Metadata[MetaFacilityName],
		Tier:         t,
		CurrentRate:  current.UnitAmount,
		NewRate:      current.UnitAmount,
		ExpiryDate:   sub.StartDate.AddDate(0, s.opts.MigrateMonth, 0),
	}
	if newPriceID != "" {
		if next, err := s.price(ctx, newPriceID); err == nil {
			p.NewRate = next.UnitAmount
		}
	}

	to := sub.CustomerEmail
	if facilityID != "" {
		if f, err := s.store.GetFacility(ctx, facilityID); err == nil {
			if p.FacilityName == "" {
				p.FacilityName = f.Name
			}
			if to == "" {
				to = f.NotifyEmail()
			}
		}
	}
	if p.FacilityName == "" {
		p.FacilityName = "your facility"
	}

	err = s.notify(ctx, to, notify.KindGrandfatherReminder, p)
	if errors.Is(err, notify.ErrNoRecipient) {
		return false, nil
	}
	if err != nil {
		return false, &SyncError{Op: "send reminder", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
	}
	if err := s.store.MarkReminderSent(ctx, sub.ID, s.now()); err != nil {
		return true, &SyncError{Op: "mark reminder sent", FacilityID: facilityID, SubscriptionID: sub.ID, Err: err}
	}
	return true, nil
}
