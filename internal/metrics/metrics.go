package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed briefing runs.
	OutcomeSuccess = "success"
	// OutcomeError labels runs that ended in a failure.
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deal_briefing",
			Name:      "runs_total",
			Help:      "Total number of briefing runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "deal_briefing",
			Name:      "run_seconds",
			Help:      "Briefing run latency in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	dealsEnrichedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deal_briefing",
			Name:      "deals_enriched_total",
			Help:      "Total number of deals passed through enrichment.",
		},
	)

	enrichmentFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deal_briefing",
			Name:      "enrichment_failures_total",
			Help:      "Enrichment failures recovered locally, partitioned by stage.",
		},
		[]string{"stage"},
	)

	enrichmentInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deal_briefing",
			Name:      "enrichment_in_flight",
			Help:      "Deals currently being enriched.",
		},
	)

	modelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deal_briefing",
			Name:      "model_tokens_total",
			Help:      "Model tokens consumed, partitioned by model and direction.",
		},
		[]string{"model", "direction"},
	)
)

// Register attaches deal-briefing collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		dealsEnrichedTotal,
		enrichmentFailuresTotal,
		enrichmentInFlight,
		modelTokensTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// EnrichmentStarted marks one deal as in flight and returns the func that
// marks it done.
func EnrichmentStarted() func() {
	enrichmentInFlight.Inc()
	return func() {
		enrichmentInFlight.Dec()
		dealsEnrichedTotal.Inc()
	}
}

// ObserveEnrichmentFailure counts a recovered failure for stage.
func ObserveEnrichmentFailure(stage string) {
	enrichmentFailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveTokens records model token usage.
func ObserveTokens(model string, input, output int64) {
	if input > 0 {
		modelTokensTotal.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		modelTokensTotal.WithLabelValues(model, "output").Add(float64(output))
	}
}
