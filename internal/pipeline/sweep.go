package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/store"
)

// Sweep re-runs the tier state machine over every sponsored facility of a
// jurisdiction, catching drift from data refreshes outside the pipeline.
// Cancelling ctx stops between facilities.
func (p *Pipeline) Sweep(ctx context.Context, jurisdiction string, pageSize int) (model.RunSummary, error) {
	summary := model.NewRunSummary(JobThresholds, jurisdiction, p.now())
	pager := p.facilities(store.FacilityFilter{Jurisdiction: jurisdiction, Sponsored: true}, pageSize)
	work := context.WithoutCancel(ctx)

	for ctx.Err() == nil {
		f, ok := pager.Next(work)
		if !ok {
			break
		}
		out := model.FacilityOutcome{FacilityID: f.ID, Kind: model.OutcomeEvaluated, TierAction: model.TierActionNone}
		res, err := p.Tiers.Apply(work, &f, nil)
		if err != nil {
			zap.L().Error("thresholds: evaluation failed", zap.String("facility_id", f.ID), zap.Error(err))
			out.Kind = model.OutcomeSkipped
			out.Err = err
		} else {
			out.TierAction = res.TierAction()
			if res.BillingErr != nil {
				out.BillingErrors = 1
			}
		}
		summary = summary.Add(out)
		p.Metrics.ObserveOutcome(JobThresholds, out)
	}

	summary = p.finish(work, summary, nil)
	if err := pager.Err(); err != nil {
		return summary, eris.Wrap(err, "thresholds: list facilities")
	}
	return summary, nil
}
