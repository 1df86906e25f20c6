// Package metrics holds the Prometheus collectors for batch jobs and the
// webhook server. A nil *Metrics is a no-op so callers need no guards.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"

	"github.com/sells-group/careaudit-cli/internal/model"
)

const namespace = "careaudit"

// Metrics contains the application collectors and the registry they are
// registered with.
type Metrics struct {
	FacilitiesTotal *prometheus.CounterVec   // Facilities processed by job and outcome
	ViolationRows   prometheus.Counter       // Violation rows persisted
	QualityRetries  prometheus.Counter       // Corrective extraction retries
	TierActions     *prometheus.CounterVec   // Tier transitions by action
	BillingErrors   prometheus.Counter       // Payment processor sync failures
	StageDuration   *prometheus.HistogramVec // Per-facility stage latency
	WebhookEvents   *prometheus.CounterVec   // Stripe events by type and result
	LastRunSuccess  *prometheus.GaugeVec     // Unix time of the last finished run by job

	registry *prometheus.Registry
}

// New creates and registers all collectors on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		FacilitiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facilities_processed_total",
			Help:      "Facilities processed by job and outcome",
		}, []string{"job", "outcome"}),
		ViolationRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violation_rows_total",
			Help:      "Violation rows written by extraction",
		}),
		QualityRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_retries_total",
			Help:      "Corrective extraction retries after a failed quality check",
		}),
		TierActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_actions_total",
			Help:      "Tier state machine actions taken",
		}, []string{"action"}),
		BillingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_errors_total",
			Help:      "Payment processor sync failures",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per facility in each pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment processor webhook events by type and result",
		}, []string{"type", "result"}),
		LastRunSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run of each job finished",
		}, []string{"job"}),
		registry: prometheus.NewRegistry(),
	}

	for _, c := range []prometheus.Collector{
		m.FacilitiesTotal, m.ViolationRows, m.QualityRetries, m.TierActions,
		m.BillingErrors, m.StageDuration, m.WebhookEvents, m.LastRunSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, eris.Wrap(err, "metrics: register collector")
		}
	}
	return m, nil
}

// Registry returns the registry backing m, nil for a nil receiver.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveOutcome records one facility outcome.
func (m *Metrics) ObserveOutcome(job string, o model.FacilityOutcome) {
	if m == nil {
		return
	}
	m.FacilitiesTotal.WithLabelValues(job, string(o.Kind)).Inc()
	if o.Kind == model.OutcomePersisted || o.Kind == model.OutcomeUnvalidated {
		m.ViolationRows.Add(float64(o.ViolationRows))
	}
	if o.QualityRetried {
		m.QualityRetries.Inc()
	}
	if o.TierAction != "" && o.TierAction != model.TierActionNone {
		m.TierActions.WithLabelValues(string(o.TierAction)).Inc()
	}
	if o.BillingErrors > 0 {
		m.BillingErrors.Add(float64(o.BillingErrors))
	}
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveWebhook records a handled webhook event.
func (m *Metrics) ObserveWebhook(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.WebhookEvents.WithLabelValues(eventType, result).Inc()
}

// RunFinished stamps the completion time of a run.
func (m *Metrics) RunFinished(s model.RunSummary) {
	if m == nil {
		return
	}
	m.LastRunSuccess.WithLabelValues(s.Job).Set(float64(s.FinishedAt.Unix()))
}

// Push sends the registry to a Pushgateway under job, grouped by
// jurisdiction. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job, jurisdiction string) error {
	if m == nil || url == "" {
		return nil
	}
	p := push.New(url, namespace+"_"+job).Gatherer(m.registry)
	if jurisdiction != "" {
		p = p.Grouping("jurisdiction", jurisdiction)
	}
	return eris.Wrap(p.PushContext(ctx), "metrics: push")
}
