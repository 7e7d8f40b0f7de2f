package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rate catalog. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	// Community submissions by outcome: accepted, flagged, rejected.
	Submissions *prometheus.CounterVec

	// Sourced merges by origin and action: insert, update, skip.
	Merges *prometheus.CounterVec

	// Ledger operations: verify, report, reset, delete.
	LedgerOps *prometheus.CounterVec

	// Rankings by the collaborator that ordered them.
	Rankings *prometheus.CounterVec

	// Notification failures by event.
	NotifyFailures *prometheus.CounterVec

	// Sweep item results and total sweep duration.
	SweepItems    *prometheus.CounterVec
	SweepDuration prometheus.Histogram

	// AI advisor breaker state: 0 closed, 1 half-open, 2 open.
	BreakerState *prometheus.GaugeVec
}

// New registers all catalog metrics with reg. A nil registerer uses the
// default prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecatalog_submissions_total",
			Help: "Community submissions by outcome",
		}, []string{"outcome"}),

		Merges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecatalog_merges_total",
			Help: "Sourced observation merges by origin and action",
		}, []string{"origin", "action"}),

		LedgerOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecatalog_ledger_operations_total",
			Help: "Verification ledger operations",
		}, []string{"op"}),

		Rankings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecatalog_rankings_total",
			Help: "Recommendation rankings by ordering source",
		}, []string{"source"}),

		NotifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecatalog_notify_failures_total",
			Help: "Moderation notifications that could not be delivered",
		}, []string{"event"}),

		SweepItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecatalog_sweep_items_total",
			Help: "Sweep targets by result",
		}, []string{"result"}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ratecatalog_sweep_duration_seconds",
			Help:    "Wall time of a full sweep",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratecatalog_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
	}
}

// IncSubmission records a community submission outcome.
func (m *Metrics) IncSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

// IncMerge records a sourced merge.
func (m *Metrics) IncMerge(origin, action string) {
	if m != nil {
		m.Merges.WithLabelValues(origin, action).Inc()
	}
}

// IncLedger records a ledger operation.
func (m *Metrics) IncLedger(op string) {
	if m != nil {
		m.LedgerOps.WithLabelValues(op).Inc()
	}
}

// IncRanking records which collaborator ordered a ranking.
func (m *Metrics) IncRanking(source string) {
	if m != nil {
		m.Rankings.WithLabelValues(source).Inc()
	}
}

// IncNotifyFailure records a dropped notification.
func (m *Metrics) IncNotifyFailure(event string) {
	if m != nil {
		m.NotifyFailures.WithLabelValues(event).Inc()
	}
}

// IncSweepItem records one sweep target result.
func (m *Metrics) IncSweepItem(result string) {
	if m != nil {
		m.SweepItems.WithLabelValues(result).Inc()
	}
}

// ObserveSweep records the duration of a full sweep.
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m != nil {
		m.SweepDuration.Observe(d.Seconds())
	}
}

// SetBreakerState records a breaker transition.
func (m *Metrics) SetBreakerState(name string, state float64) {
	if m != nil {
		m.BreakerState.WithLabelValues(name).Set(state)
	}
}
