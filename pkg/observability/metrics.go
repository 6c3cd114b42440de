// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the reqstate server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// BodyBuckets spans request bodies from 64 bytes to 16 MiB.
var BodyBuckets = prometheus.ExponentialBuckets(64, 4, 10)

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqstate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reqstate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqstate_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// AuthAttemptsTotal counts authentication decisions by scheme and
	// outcome (success, invalid_credentials, nonce_expired, malformed,
	// missing).
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqstate_auth_attempts_total",
			Help: "Authentication attempts",
		},
		[]string{"scheme", "outcome"},
	)

	// DigestNoncesIssuedTotal counts Digest challenges sent to clients.
	DigestNoncesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reqstate_digest_nonces_issued_total",
			Help: "Digest nonces issued",
		},
	)

	// DigestNoncesPurgedTotal counts expired nonce counters removed from
	// the nonce store.
	DigestNoncesPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reqstate_digest_nonces_purged_total",
			Help: "Digest nonce counters purged",
		},
	)

	// BodyBytes records the accumulated body size per request.
	BodyBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reqstate_request_body_bytes",
			Help:    "Accumulated request body size",
			Buckets: BodyBuckets,
		},
	)

	// BodyLimitReachedTotal counts requests whose body reached the
	// content size limit.
	BodyLimitReachedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reqstate_request_body_limit_reached_total",
			Help: "Request bodies truncated at the size limit",
		},
	)

	// ThrottledTotal counts requests rejected after too many failed
	// authentication attempts from the same peer.
	ThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reqstate_auth_throttled_total",
			Help: "Requests throttled by the failure limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		AuthAttemptsTotal,
		DigestNoncesIssuedTotal,
		DigestNoncesPurgedTotal,
		BodyBytes,
		BodyLimitReachedTotal,
		ThrottledTotal,
	)
}

// ObserveBody records the size of an accumulated body and whether it hit
// the limit.
func ObserveBody(size int, limitReached bool) {
	BodyBytes.Observe(float64(size))
	if limitReached {
		BodyLimitReachedTotal.Inc()
	}
}
