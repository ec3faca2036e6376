package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TickDuration tracks the time spent processing one message batch through
	// the full processor chain.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridpulse_pipeline_tick_duration_seconds",
		Help:    "Time to run one batch through the processor chain",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	PatchesPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridpulse_patches_published_total",
		Help: "Total patches published to the transport, by kind (session|car)",
	}, []string{"kind"})

	LapsFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_laps_finalized_total",
		Help: "Total car laps finalized and handed to the lap log sink",
	})

	PitStopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_pit_stops_total",
		Help: "Total pit-in crossings observed",
	})

	SessionsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridpulse_sessions_finalized_total",
		Help: "Total sessions finalized, by reason (change|quiet|error|shutdown)",
	}, []string{"reason"})

	ConsistencyViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_consistency_violations_total",
		Help: "Total position-consistency violations detected",
	})

	LapLogBufferedRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridpulse_lap_log_buffered_rows",
		Help: "Lap log rows parked in memory awaiting a healthy store",
	}, []string{"session"})
)

// ObserveTick records one pipeline tick duration.
func ObserveTick(d time.Duration) {
	TickDuration.Observe(d.Seconds())
}

// IncPatchesPublished records published patches of the given kind.
func IncPatchesPublished(kind string, n int) {
	if n <= 0 {
		return
	}
	PatchesPublishedTotal.WithLabelValues(kind).Add(float64(n))
}
