package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cardlens_questions_total",
			Help: "Total number of questions answered.",
		},
	)
	synthesisPathTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardlens_synthesis_path_total",
			Help: "Questions by the SQL synthesis path that produced the query.",
		},
		[]string{"path"},
	)
	queryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cardlens_query_failures_total",
			Help: "Total number of generated queries the store rejected or failed to run.",
		},
	)
	chartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardlens_charts_total",
			Help: "Answers by rendered chart kind, including none.",
		},
		[]string{"kind"},
	)
	narrativeFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cardlens_narrative_fallbacks_total",
			Help: "Narratives served from the built-in summary after an AI failure.",
		},
	)
	answerDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardlens_answer_duration_seconds",
			Help:    "End-to-end latency for answering a question.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		synthesisPathTotal,
		queryFailuresTotal,
		chartsTotal,
		narrativeFallbacksTotal,
		answerDurationSeconds,
	)
}

func ObserveAnswer(path, chartKind string, queryFailed bool, elapsed time.Duration) {
	questionsTotal.Inc()
	synthesisPathTotal.WithLabelValues(path).Inc()
	if queryFailed {
		queryFailuresTotal.Inc()
	}
	chartsTotal.WithLabelValues(chartKind).Inc()
	answerDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementNarrativeFallback() {
	narrativeFallbacksTotal.Inc()
}
