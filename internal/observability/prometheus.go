package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riskibarqy/oddsline/internal/usecase"
	"github.com/shopspring/decimal"
)

const metricsNamespace = "oddsline"

// PipelineMetrics exports pipeline counters on its own registry.
type PipelineMetrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	records       *prometheus.CounterVec
	matches       *prometheus.CounterVec
	finishes      *prometheus.CounterVec
	betsSettled   *prometheus.CounterVec
	payoutTotal   prometheus.Counter
}

var _ usecase.PipelineMetrics = (*PipelineMetrics)(nil)

func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(registry)

	return &PipelineMetrics{
		registry: registry,
		cycles: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "supervisor",
			Name:      "cycles_total",
			Help:      "Supervisor cycles by outcome.",
		}, []string{"supervisor", "result"}),
		cycleDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "supervisor",
			Name:      "cycle_duration_seconds",
			Help:      "Supervisor cycle duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		}, []string{"supervisor"}),
		records: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "snapshot",
			Name:      "records_total",
			Help:      "Snapshot records by listing and outcome.",
		}, []string{"source", "result"}),
		matches: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconcile",
			Name:      "matches_total",
			Help:      "Matches touched by reconciliation, by action.",
		}, []string{"action"}),
		finishes: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "finish",
			Name:      "matches_total",
			Help:      "Finished matches by trigger.",
		}, []string{"trigger"}),
		betsSettled: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "settlement",
			Name:      "bets_total",
			Help:      "Settled bets by result.",
		}, []string{"result"}),
		payoutTotal: auto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "settlement",
			Name:      "payout_credited_total",
			Help:      "Sum of payouts credited to accounts.",
		}),
	}
}

func (m *PipelineMetrics) ObserveCycle(supervisor string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cycles.WithLabelValues(supervisor, result).Inc()
	m.cycleDuration.WithLabelValues(supervisor).Observe(duration.Seconds())
}

func (m *PipelineMetrics) AddRecords(source string, ingested, dropped int) {
	if ingested > 0 {
		m.records.WithLabelValues(source, "ingested").Add(float64(ingested))
	}
	if dropped > 0 {
		m.records.WithLabelValues(source, "dropped").Add(float64(dropped))
	}
}

func (m *PipelineMetrics) AddMatches(action string, n int) {
	if n > 0 {
		m.matches.WithLabelValues(action).Add(float64(n))
	}
}

func (m *PipelineMetrics) IncFinish(trigger string) {
	m.finishes.WithLabelValues(trigger).Inc()
}

func (m *PipelineMetrics) IncBetSettled(result string) {
	m.betsSettled.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) AddPayout(amount decimal.Decimal) {
	if amount.IsPositive() {
		m.payoutTotal.Add(amount.InexactFloat64())
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}
