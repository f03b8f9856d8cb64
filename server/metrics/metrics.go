package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TimersStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "luna_timers_started_total",
		Help: "Total number of check-in timers started",
	})
	TimersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "luna_timers_cancelled_total",
		Help: "Total number of cancel requests",
	})
	TimersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "luna_timers_expired_total",
		Help: "Total number of timers drained as expired by the watcher",
	})
	ActiveTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "luna_active_timers",
		Help: "Timers still counting down at the last stats run",
	})
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luna_alert_deliveries_total",
		Help: "Alert deliveries to emergency contacts by channel and result",
	}, []string{"channel", "result"})
	HttpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luna_http_requests_total",
		Help: "HTTP requests by method and status code",
	}, []string{"method", "code"})
	HttpDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "luna_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	})
)

// DeliveryResult returns the label for a delivery outcome.
func DeliveryResult(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
