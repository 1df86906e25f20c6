package tier

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/notify"
	"github.com/sells-group/careaudit-cli/internal/store"
)

// ErrBillingDisabled is reported as the billing error of a downgrade when
// the engine has no Biller.
var ErrBillingDisabled = eris.New("tier: billing not configured")

// Biller moves a facility's subscription to the price of a new tier from
// the next billing cycle, without proration.
type Biller interface {
	ScheduleTierChange(ctx context.Context, f *model.Facility, to model.Tier) error
}

// Result reports what Apply did.
type Result struct {
	Decision
	// BillingErr is set when the payment processor could not be updated.
	// The tier change in the store stands regardless.
	BillingErr error
	Notified   bool
}

// Engine executes Decide's decisions.
type Engine struct {
	store    store.Store
	biller   Biller
	notifier notify.Notifier
}

// NewEngine creates an Engine. biller may be nil, in which case downgrades
// are recorded with ErrBillingDisabled.
func NewEngine(s store.Store, biller Biller, notifier notify.Notifier) *Engine {
	return &Engine{store: s, biller: biller, notifier: notifier}
}

// Apply decides and executes the tier transition for f. oldCount is the
// violation count before the latest extraction, nil when unknown. f is
// updated in place to reflect the change. Only store failures are returned.
func (e *Engine) Apply(ctx context.Context, f *model.Facility, oldCount *int) (*Result, error) {
	d := Decide(f)
	res := &Result{Decision: d}
	log := zap.L().With(
		zap.String("facility_id", f.ID),
		zap.String("tier", string(d.From)),
		zap.String("action", string(d.Action)),
	)

	switch d.Action {
	case ActionDowngrade:
		if err := e.store.SetSponsorTier(ctx, f.ID, d.To); err != nil {
			return res, eris.Wrap(err, "tier: downgrade")
		}
		f.SponsorTier = d.To
		f.UpgradeNotified = false
		log.Info("tier: downgraded", zap.Int("violations", *d.Count), zap.String("to", string(d.To)))

		res.BillingErr = e.scheduleBilling(ctx, f, d.To)
		if res.BillingErr != nil {
			log.Error("tier: billing change failed", zap.Error(res.BillingErr))
		}

		p := notify.FacilityParams(f)
		p.PreviousTier = d.From
		p.OldCount = oldCount
		p.Ceiling = ViolationCeiling
		res.Notified = e.notify(ctx, f, notify.KindDowngrade, p) == nil

	case ActionUpgradeOpportunity:
		err := e.notify(ctx, f, notify.KindUpgradeOpportunity, notify.FacilityParams(f))
		if err != nil && !errors.Is(err, notify.ErrNoRecipient) {
			// Left unflagged so the next sweep tries again.
			return res, nil
		}
		res.Notified = err == nil
		if err := e.store.SetUpgradeNotified(ctx, f.ID, true); err != nil {
			return res, eris.Wrap(err, "tier: flag upgrade notice")
		}
		f.UpgradeNotified = true
		log.Info("tier: upgrade opportunity", zap.Int("violations", *d.Count), zap.Bool("notified", res.Notified))

	case ActionRearm:
		if err := e.store.SetUpgradeNotified(ctx, f.ID, false); err != nil {
			return res, eris.Wrap(err, "tier: rearm upgrade notice")
		}
		f.UpgradeNotified = false
		log.Debug("tier: upgrade notice rearmed")
	}
	return res, nil
}

func (e *Engine) scheduleBilling(ctx context.Context, f *model.Facility, to model.Tier) error {
	if e.biller == nil {
		return ErrBillingDisabled
	}
	return e.biller.ScheduleTierChange(ctx, f, to)
}

func (e *Engine) notify(ctx context.Context, f *model.Facility, kind notify.Kind, p notify.Params) error {
	if e.notifier == nil {
		return notify.ErrNoRecipient
	}
	return e.notifier.Notify(ctx, f.NotifyEmail(), kind, p)
}
