package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridpulse_messages_consumed_total",
		Help: "Total inbound feed messages consumed, by feed type",
	}, []string{"feed"})

	ParseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridpulse_parse_errors_total",
		Help: "Total records skipped due to parse failures, by protocol and record type",
	}, []string{"protocol", "record"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridpulse_session_queue_depth",
		Help: "Current depth of the per-session inbound queue",
	}, []string{"session"})

	QueueDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridpulse_session_queue_drops_total",
		Help: "Messages dropped because the session queue was full and the session was shutting down",
	}, []string{"session"})
)

// IncMessageConsumed records one inbound message for the given feed.
func IncMessageConsumed(feed string) {
	if feed == "" {
		feed = "unknown"
	}
	MessagesConsumedTotal.WithLabelValues(feed).Inc()
}

// IncParseError records one skipped record.
func IncParseError(protocol, record string) {
	if record == "" {
		record = "unknown"
	}
	ParseErrorsTotal.WithLabelValues(protocol, record).Inc()
}
