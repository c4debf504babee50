// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifier_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "verifier_http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"method", "path"},
	)

	RequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifier_request_errors_total",
			Help: "Total number of failed requests by error code",
		},
		[]string{"error_code"},
	)

	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifier_verifications_total",
			Help: "Total number of verdicts by outcome",
		},
		[]string{"outcome"},
	)

	Previews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifier_previews_total",
			Help: "Total number of title previews",
		},
		[]string{"auto_verifiable"},
	)

	OracleCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verifier_oracle_call_duration_seconds",
			Help:    "Duration of embedding similarity calls in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"backend", "status"},
	)

	OracleCallsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verifier_oracle_calls_active",
			Help: "Number of in-flight embedding similarity calls",
		},
		[]string{"backend"},
	)
)

// StatusClass buckets an HTTP status code for low-cardinality labels.
func StatusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "0"
	}
}
