// Package pipeline drives the sequential extraction batch and the periodic
// tier sweep.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/db"
	"github.com/sells-group/careaudit-cli/internal/extract"
	"github.com/sells-group/careaudit-cli/internal/metrics"
	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/notify"
	"github.com/sells-group/careaudit-cli/internal/quality"
	"github.com/sells-group/careaudit-cli/internal/store"
	"github.com/sells-group/careaudit-cli/internal/tier"
)

// Job names used in run summaries.
const (
	JobExtract    = "extract"
	JobThresholds = "thresholds"
)

// Locator resolves the inspection report locator of a facility.
type Locator interface {
	Locate(f *model.Facility) (string, error)
}

// Fetcher retrieves report text.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (string, error)
}

// TierEvaluator applies the tier state machine to a facility.
type TierEvaluator interface {
	Apply(ctx context.Context, f *model.Facility, oldCount *int) (*tier.Result, error)
}

// Escalator records unrecoverable failures for manual review.
type Escalator interface {
	Escalate(ctx context.Context, f *model.Facility, stage model.ReviewStage, cause error, attempts int) (*model.ReviewEntry, error)
}

// Deps are the collaborators of a Pipeline. Alerter and Metrics may be nil.
type Deps struct {
	Store       store.Store
	Locator     Locator
	Fetcher     Fetcher
	Extractor   extract.Extractor
	Tiers       TierEvaluator
	Escalations Escalator
	Alerter     *notify.OpsAlerter
	Metrics     *metrics.Metrics
}

// Options select and pace the facilities of a run.
type Options struct {
	Jurisdiction string
	// Limit stops the run after this many facilities. Zero means no limit.
	Limit int
	// Offset skips this many selected facilities before processing.
	Offset int
	// After resumes the walk after a facility id logged by an earlier run.
	After string
	// Refresh processes facilities that already hold a validated summary.
	Refresh bool
	// FacilityDelay is the pause between facilities.
	FacilityDelay time.Duration
	PageSize      int
}

// Pipeline runs facilities one at a time through fetch, extract, quality,
// persist and tier evaluation.
type Pipeline struct {
	Deps
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{Deps: deps, now: time.Now, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run processes the selected facilities of one jurisdiction. Per-facility
// failures are escalated and counted, never returned. Cancelling ctx stops
// the run between facilities; the facility in flight always completes.
// The error is non-nil only when the facility walk itself fails.
func (p *Pipeline) Run(ctx context.Context, opts Options) (model.RunSummary, error) {
	summary := model.NewRunSummary(JobExtract, opts.Jurisdiction, p.now())
	filter := store.FacilityFilter{Jurisdiction: opts.Jurisdiction, Pending: !opts.Refresh}
	pager := p.facilities(filter, opts.PageSize).Resume(opts.After)

	zap.L().Info("pipeline: starting run",
		zap.String("jurisdiction", opts.Jurisdiction),
		zap.Bool("refresh", opts.Refresh),
		zap.Int("limit", opts.Limit),
		zap.Int("offset", opts.Offset),
	)

	work := context.WithoutCancel(ctx)
	var escalated []model.ReviewEntry
	skipped := 0
	for {
		if opts.Limit > 0 && summary.Processed >= opts.Limit {
			break
		}
		// Sleep before Next so the cursor names the last processed facility.
		if ctx.Err() == nil && summary.Processed > 0 {
			_ = p.sleep(ctx, opts.FacilityDelay)
		}
		if ctx.Err() != nil {
			summary.ResumeAfter = pager.Cursor()
			zap.L().Warn("pipeline: stopping early", zap.String("resume_after", summary.ResumeAfter))
			break
		}
		f, ok := pager.Next(work)
		if !ok {
			break
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}

		outcome, entry := p.Process(work, &f)
		summary = summary.Add(outcome)
		p.Metrics.ObserveOutcome(JobExtract, outcome)
		if entry != nil {
			escalated = append(escalated, *entry)
		}
	}

	summary = p.finish(work, summary, escalated)
	if err := pager.Err(); err != nil {
		return summary, eris.Wrap(err, "pipeline: list facilities")
	}
	return summary, nil
}

func (p *Pipeline) facilities(filter store.FacilityFilter, size int) *db.Pager[model.Facility] {
	return db.NewPager(func(ctx context.Context, after string, limit int) ([]model.Facility, error) {
		return p.Store.FacilityPage(ctx, filter, after, limit)
	}, func(f model.Facility) string { return f.ID }, size)
}

func (p *Pipeline) finish(ctx context.Context, s model.RunSummary, escalated []model.ReviewEntry) model.RunSummary {
	s = s.Finish(p.now())
	zap.L().Info("pipeline: run complete", s.Fields()...)
	p.Metrics.RunFinished(s)
	p.Alerter.RunFinished(ctx, s, escalated)
	return s
}

// Process runs one facility through the pipeline. The returned entry is
// the review entry created when the facility was escalated.
func (p *Pipeline) Process(ctx context.Context, f *model.Facility) (model.FacilityOutcome, *model.ReviewEntry) {
	out := model.FacilityOutcome{FacilityID: f.ID, TierAction: model.TierActionNone}
	log := zap.L().With(zap.String("facility_id", f.ID), zap.String("facility", f.Name))

	escalate := func(stage model.ReviewStage, err error, attempts int) (model.FacilityOutcome, *model.ReviewEntry) {
		out.Kind = model.OutcomeEscalated
		out.Stage = stage
		out.Err = err
		entry, escErr := p.Escalations.Escalate(ctx, f, stage, err, attempts)
		if escErr != nil {
			log.Error("pipeline: escalation failed", zap.Error(escErr), zap.NamedError("cause", err))
		}
		return out, entry
	}

	locator, err := p.Locator.Locate(f)
	if err != nil {
		return escalate(model.StageFetch, err, 1)
	}

	start := time.Now()
	text, err := p.Fetcher.Fetch(ctx, locator)
	p.Metrics.ObserveStage(string(model.StageFetch), time.Since(start))
	if err != nil {
		return escalate(model.StageFetch, err, 0)
	}

	req := extract.Request{FacilityID: f.ID, PriorContext: extract.ReportContext(f), RawText: text}
	start = time.Now()
	cand, validated, retried, err := p.extractChecked(ctx, req, log)
	p.Metrics.ObserveStage(string(model.StageExtract), time.Since(start))
	out.QualityRetried = retried
	if err != nil {
		return escalate(model.StageExtract, err, extractionAttempts(err))
	}

	oldCount := f.ViolationCount
	if err := p.Store.PersistExtraction(ctx, f.ID, cand, validated); err != nil {
		return escalate(model.StagePersist, err, 1)
	}
	out.Kind = model.OutcomePersisted
	if !validated {
		out.Kind = model.OutcomeUnvalidated
	}
	out.ViolationRows = len(cand.Violations)
	log.Info("pipeline: persisted",
		zap.Int("violations", len(cand.Violations)),
		zap.Bool("validated", validated),
		zap.Bool("quality_retried", retried),
	)

	p.evaluate(ctx, f, oldCount, &out, log)
	return out, nil
}

// extractChecked extracts and applies the quality gate, retrying once with
// the gate's reasons as corrections. A failed retry falls back to the most
// recent decodable candidate, unvalidated.
func (p *Pipeline) extractChecked(ctx context.Context, req extract.Request, log *zap.Logger) (*model.Candidate, bool, bool, error) {
	cand, err := p.Extractor.Extract(ctx, req)
	if err != nil {
		return nil, false, false, err
	}
	res := quality.Validate(cand)
	if res.Passed {
		return cand, true, false, nil
	}

	log.Info("pipeline: quality gate failed, retrying", zap.Strings("reasons", res.Reasons))
	req.Corrections = res.Reasons
	retry, err := p.Extractor.Extract(ctx, req)
	if err != nil {
		log.Warn("pipeline: corrective extraction failed, keeping first result", zap.Error(err))
		return cand, false, true, nil
	}
	if res := quality.Validate(retry); !res.Passed {
		log.Warn("pipeline: summary still fails quality gate, persisting unvalidated",
			zap.Strings("reasons", res.Reasons))
		return retry, false, true, nil
	}
	return retry, true, true, nil
}

func extractionAttempts(err error) int {
	var ee *extract.ExtractionError
	if errors.As(err, &ee) {
		return ee.Attempts
	}
	return 1
}

// evaluate re-reads the persisted facility and runs the tier state machine.
// Failures are logged; the thresholds sweep picks the facility up again.
func (p *Pipeline) evaluate(ctx context.Context, f *model.Facility, oldCount *int, out *model.FacilityOutcome, log *zap.Logger) {
	fresh, err := p.Store.GetFacility(ctx, f.ID)
	if err != nil {
		log.Error("pipeline: reload after persist failed", zap.Error(err))
		return
	}
	*f = *fresh

	res, err := p.Tiers.Apply(ctx, f, oldCount)
	if err != nil {
		log.Error("pipeline: tier evaluation failed", zap.Error(err))
		return
	}
	out.TierAction = res.TierAction()
	if res.BillingErr != nil {
		out.BillingErrors = 1
	}
}
