// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CraftsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandforge_crafts_total",
			Help: "Craft attempts by workbench and result",
		},
		[]string{"workbench", "result"},
	)

	ItemEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandforge_item_events_total",
			Help: "Client messages applied by the authority, by kind and result",
		},
		[]string{"kind", "result"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sandforge_active_sessions",
			Help: "Connected SSH sessions and websocket peers",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sandforge_tick_duration_seconds",
			Help:    "Time spent applying one tick of client messages",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	SnapshotOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandforge_snapshot_operations_total",
			Help: "Inventory snapshot store operations",
		},
		[]string{"operation", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandforge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Recorder adapts the package collectors to the small metric interfaces the
// domain packages accept.
type Recorder struct{}

func (Recorder) RecordCraft(workbench, result string) {
	CraftsTotal.WithLabelValues(workbench, result).Inc()
}

func (Recorder) RecordEvent(kind, result string) {
	ItemEventsTotal.WithLabelValues(kind, result).Inc()
}

func (Recorder) RecordSnapshot(operation, status string) {
	SnapshotOperationsTotal.WithLabelValues(operation, status).Inc()
}

func (Recorder) ObserveTick(d time.Duration) {
	TickDuration.Observe(d.Seconds())
}

func (Recorder) SessionOpened() { ActiveSessions.Inc() }
func (Recorder) SessionClosed() { ActiveSessions.Dec() }

func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}
