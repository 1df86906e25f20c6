package model

import (
	"time"

	"go.uber.org/zap"
)

// OutcomeKind classifies how a single facility left the pipeline.
type OutcomeKind string

const (
	OutcomePersisted   OutcomeKind = "persisted"
	OutcomeUnvalidated OutcomeKind = "persisted_unvalidated"
	OutcomeEscalated   OutcomeKind = "escalated"
	OutcomeSkipped     OutcomeKind = "skipped"
	// OutcomeEvaluated is a facility visited by the tier sweep only.
	OutcomeEvaluated OutcomeKind = "evaluated"
)

// TierAction records what the tier state machine did for a facility.
type TierAction string

const (
	TierActionNone        TierAction = "none"
	TierActionDowngrade   TierAction = "downgrade"
	TierActionUpgradeHint TierAction = "upgrade_opportunity"
)

// FacilityOutcome is the result of running one facility through a job.
type FacilityOutcome struct {
	FacilityID     string
	Kind           OutcomeKind
	Stage          ReviewStage
	ViolationRows  int
	QualityRetried bool
	TierAction     TierAction
	BillingErrors  int
	Err            error
}

// RunSummary aggregates a batch run. It is built by folding outcomes with
// Add and is logged once when the run ends.
type RunSummary struct {
	Job            string
	Jurisdiction   string
	StartedAt      time.Time
	FinishedAt     time.Time
	Processed      int
	Persisted      int
	Unvalidated    int
	Escalated      int
	Skipped        int
	QualityRetries int
	ViolationRows  int
	Downgrades     int
	UpgradeNotices int
	BillingErrors  int
	// ResumeAfter is set when the run stopped early: the id to pass as
	// the after cursor of the next run.
	ResumeAfter string
}

// NewRunSummary starts an empty summary for job.
func NewRunSummary(job, jurisdiction string, startedAt time.Time) RunSummary {
	return RunSummary{Job: job, Jurisdiction: jurisdiction, StartedAt: startedAt}
}

// Add returns a copy of s with o folded in.
func (s RunSummary) Add(o FacilityOutcome) RunSummary {
	s.Processed++
	switch o.Kind {
	case OutcomePersisted:
		s.Persisted++
	case OutcomeUnvalidated:
		s.Unvalidated++
	case OutcomeEscalated:
		s.Escalated++
	case OutcomeSkipped:
		s.Skipped++
	}
	if o.Kind == OutcomePersisted || o.Kind == OutcomeUnvalidated {
		s.ViolationRows += o.ViolationRows
	}
	if o.QualityRetried {
		s.QualityRetries++
	}
	switch o.TierAction {
	case TierActionDowngrade:
		s.Downgrades++
	case TierActionUpgradeHint:
		s.UpgradeNotices++
	}
	s.BillingErrors += o.BillingErrors
	return s
}

// Finish returns a copy of s stamped with the end time.
func (s RunSummary) Finish(at time.Time) RunSummary {
	s.FinishedAt = at
	return s
}

// Fields renders the summary as zap fields.
func (s RunSummary) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("job", s.Job),
		zap.String("jurisdiction", s.Jurisdiction),
		zap.Int("processed", s.Processed),
		zap.Int("persisted", s.Persisted),
		zap.Int("unvalidated", s.Unvalidated),
		zap.Int("escalated", s.Escalated),
		zap.Int("skipped", s.Skipped),
		zap.Int("quality_retries", s.QualityRetries),
		zap.Int("violation_rows", s.ViolationRows),
		zap.Int("downgrades", s.Downgrades),
		zap.Int("upgrade_notices", s.UpgradeNotices),
		zap.Int("billing_errors", s.BillingErrors),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	}
	if s.ResumeAfter != "" {
		fields = append(fields, zap.String("resume_after", s.ResumeAfter))
	}
	return fields
}
