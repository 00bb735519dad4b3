// Package metrics provides Prometheus instrumentation for the copy worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FollowerTrades counts follower copy outcomes by side and status.
	FollowerTrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copytrade_follower_trades_total",
		Help: "Follower copy attempts by outcome",
	}, []string{"side", "status"})

	// OrderLatency tracks market order placement latency including retries.
	OrderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "copytrade_order_latency_seconds",
		Help:    "Follower market order latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"side"})

	// OrderRetries counts retried order placements.
	OrderRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copytrade_order_retries_total",
		Help: "Market order placements retried after a transient error",
	})

	// CopyDisabled counts followers switched off by the auth breaker.
	CopyDisabled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copytrade_copy_disabled_total",
		Help: "Followers whose copying was disabled after an auth failure",
	})

	// LeaderFills counts leader fills handled by the watcher.
	LeaderFills = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copytrade_leader_fills_total",
		Help: "Leader fills detected",
	}, []string{"side", "source"})

	// WatcherReconnects counts stream reconnect attempts.
	WatcherReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copytrade_watcher_reconnects_total",
		Help: "Leader stream reconnects",
	})

	// WatcherConnected is 1 while the leader stream is open.
	WatcherConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "copytrade_watcher_connected",
		Help: "Whether the leader order stream is connected",
	})

	// JobRuns counts scheduler job executions by job and result.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copytrade_job_runs_total",
		Help: "Scheduler job runs",
	}, []string{"job", "result"})

	// PendingExpired counts manual-approval trades that timed out.
	PendingExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copytrade_pending_expired_total",
		Help: "Pending trades expired without action",
	})

	// Heartbeat holds the unix time of the last worker heartbeat.
	Heartbeat = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "copytrade_heartbeat_timestamp_seconds",
		Help: "Unix time of the last worker heartbeat",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
