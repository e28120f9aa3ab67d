// Package observability exposes the gateway's prometheus metrics: HTTP
// surface counters, the dispatcher's outcome breakdown, send-queue depth,
// rate-limit rejections, and chunked-reply counts.
package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func Init(r prometheus.Registerer, isEnabled bool) {
	enabled.Store(isEnabled)
	if !isEnabled || r == nil {
		return
	}
	initCollectors(r)
}

func Enabled() bool { return enabled.Load() }

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	dispatchOutcomesTotal *prometheus.CounterVec
	upstreamLatencySecs   *prometheus.HistogramVec

	sendQueueDepth     prometheus.Gauge
	rateLimitRejects   *prometheus.CounterVec
	chunkedRepliesTot  *prometheus.CounterVec
	pendingInFlightGau prometheus.Gauge
)

func initCollectors(r prometheus.Registerer) {
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests served on the forward surface."},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "Duration of HTTP requests.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)
	dispatchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_outcomes_total", Help: "Dispatcher outcomes by message type and result."},
		[]string{"type", "outcome"},
	)
	upstreamLatencySecs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "elevation_upstream_latency_seconds", Help: "Latency of calls to the elevation backend.", Buckets: prometheus.ExponentialBuckets(0.005, 2, 12)},
		[]string{"dataset", "status"},
	)
	sendQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "sidecar_send_queue_depth", Help: "Current depth of the outbound overlay send queue."},
	)
	rateLimitRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rate_limit_rejections_total", Help: "Requests rejected by the per-IP token bucket."},
		[]string{"route"},
	)
	chunkedRepliesTot = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chunked_replies_total", Help: "Replies sent as chunked DM sequences vs single envelopes."},
		[]string{"chunked"},
	)
	pendingInFlightGau = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pending_in_flight", Help: "Number of pending reply handles currently registered."},
	)

	r.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		dispatchOutcomesTotal,
		upstreamLatencySecs,
		sendQueueDepth,
		rateLimitRejects,
		chunkedRepliesTot,
		pendingInFlightGau,
	)
}

func ObserveHTTP(method, route, status string, seconds float64) {
	if !Enabled() {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, status).Observe(seconds)
}

func ObserveDispatch(msgType, outcome string) {
	if !Enabled() {
		return
	}
	dispatchOutcomesTotal.WithLabelValues(msgType, outcome).Inc()
}

func ObserveUpstream(dataset, status string, seconds float64) {
	if !Enabled() {
		return
	}
	upstreamLatencySecs.WithLabelValues(dataset, status).Observe(seconds)
}

func SetSendQueueDepth(n int) {
	if !Enabled() {
		return
	}
	sendQueueDepth.Set(float64(n))
}

func ObserveRateLimitReject(route string) {
	if !Enabled() {
		return
	}
	rateLimitRejects.WithLabelValues(route).Inc()
}

func ObserveChunkedReply(chunked bool) {
	if !Enabled() {
		return
	}
	label := "false"
	if chunked {
		label = "true"
	}
	chunkedRepliesTot.WithLabelValues(label).Inc()
}

func SetPendingInFlight(n int) {
	if !Enabled() {
		return
	}
	pendingInFlightGau.Set(float64(n))
}
