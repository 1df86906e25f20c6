// Package tier implements the sponsorship tier state machine. Decide is a
// pure function of a facility's current state; Engine carries out the
// resulting decision against the store, billing and notifications.
package tier

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/careaudit-cli/internal/model"
)

// ViolationCeiling is the highest violation count allowed on the featured
// and verified tiers.
const ViolationCeiling = 3

// Eligibility errors.
var (
	ErrNoInspectionData               = eris.New("tier: no inspection data for facility")
	ErrOverViolationCeiling           = eris.New("tier: violation count exceeds ceiling")
	ErrResponseOnlyRequiresViolations = eris.New("tier: response_only requires more than 3 violations")
	ErrUnknownTier                    = eris.New("tier: unknown tier")
)

// CheckEligibility reports whether a facility with count violations may
// enter t. Moving to TierNone is always allowed.
func CheckEligibility(count *int, t model.Tier) error {
	switch t {
	case model.TierNone:
		return nil
	case model.TierFeatured, model.TierVerified:
		if count == nil {
			return ErrNoInspectionData
		}
		if *count > ViolationCeiling {
			return eris.Wrapf(ErrOverViolationCeiling, "%d violations, %s allows %d", *count, t, ViolationCeiling)
		}
		return nil
	case model.TierResponseOnly:
		if count == nil {
			return ErrNoInspectionData
		}
		if *count <= ViolationCeiling {
			return eris.Wrapf(ErrResponseOnlyRequiresViolations, "%d violations", *count)
		}
		return nil
	default:
		return eris.Wrapf(ErrUnknownTier, "%q", t)
	}
}

// Action is what the state machine decided for a facility.
type Action string

const (
	ActionNone               Action = "none"
	ActionDowngrade          Action = "downgrade"
	ActionUpgradeOpportunity Action = "upgrade_opportunity"
	// ActionRearm clears the upgrade notice flag after a response_only
	// facility falls back above the ceiling, so the next improvement
	// notifies again.
	ActionRearm Action = "rearm"
)

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	From   model.Tier
	To     model.Tier
	Count  *int
}

// TierAction maps the decision to the run summary's action.
func (d Decision) TierAction() model.TierAction {
	switch d.Action {
	case ActionDowngrade:
		return model.TierActionDowngrade
	case ActionUpgradeOpportunity:
		return model.TierActionUpgradeHint
	default:
		return model.TierActionNone
	}
}

// Decide evaluates f's tier against its violation count. A nil count never
// transitions. Upgrades are never automatic: a response_only facility back
// under the ceiling only earns a notice, once per transition.
func Decide(f *model.Facility) Decision {
	from := f.SponsorTier
	if from == "" {
		from = model.TierNone
	}
	d := Decision{Action: ActionNone, From: from, To: from, Count: f.ViolationCount}
	if f.ViolationCount == nil {
		return d
	}
	n := *f.ViolationCount

	switch {
	case from.HasViolationCeiling() && n > ViolationCeiling:
		d.Action = ActionDowngrade
		d.To = model.TierResponseOnly
	case from == model.TierResponseOnly && n <= ViolationCeiling && !f.UpgradeNotified:
		d.Action = ActionUpgradeOpportunity
	case from == model.TierResponseOnly && n > ViolationCeiling && f.UpgradeNotified:
		d.Action = ActionRearm
	}
	return d
}
