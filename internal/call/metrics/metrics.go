package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the call module: lifecycle counters
// and durations of the invariant-enforcing paths.
type Metrics struct {
	CallsCreated        prometheus.Counter
	CallsPublished      prometheus.Counter
	CallsPurged         prometheus.Counter
	DeletesRejected     *prometheus.CounterVec
	ConcurrencyRetries  prometheus.Counter
	MarkCurrentDuration prometheus.Histogram
	ReorderDuration     prometheus.Histogram
	PurgeDuration       prometheus.Histogram
}

// New registers the call module metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CallsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convoca_calls_created_total",
			Help: "Total number of calls created",
		}),
		CallsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convoca_calls_published_total",
			Help: "Total number of calls published (first transition to open)",
		}),
		CallsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convoca_calls_purged_total",
			Help: "Total number of calls hard-deleted with their descendants",
		}),
		DeletesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "convoca_deletes_rejected_total",
			Help: "Deletes and purges rejected by the relationship guard",
		}, []string{"entity"}),
		ConcurrencyRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convoca_concurrency_retries_total",
			Help: "Transparent retries of serialization conflicts",
		}),
		MarkCurrentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "convoca_mark_current_duration_seconds",
			Help:    "Duration of current-phase swaps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ReorderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "convoca_phase_reorder_duration_seconds",
			Help:    "Duration of phase order swaps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PurgeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "convoca_purge_duration_seconds",
			Help:    "Duration of cascade purges",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveMarkCurrent records a current-phase swap duration.
func (m *Metrics) ObserveMarkCurrent(start time.Time) {
	m.MarkCurrentDuration.Observe(time.Since(start).Seconds())
}

// ObserveReorder records a phase reorder duration.
func (m *Metrics) ObserveReorder(start time.Time) {
	m.ReorderDuration.Observe(time.Since(start).Seconds())
}

// ObservePurge records a cascade purge duration.
func (m *Metrics) ObservePurge(start time.Time) {
	m.PurgeDuration.Observe(time.Since(start).Seconds())
}
