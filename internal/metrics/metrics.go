package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "relivv",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relivv",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relivv",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method"},
	)

	// TransactionsSettled counts escrow transitions by outcome
	// (held, completed, cancelled, refunded).
	TransactionsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relivv",
			Subsystem: "escrow",
			Name:      "transactions_settled_total",
			Help:      "Escrow transaction settlements by outcome.",
		},
		[]string{"outcome"},
	)

	// InvoicesIssued counts generated invoices.
	InvoicesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relivv",
			Subsystem: "billing",
			Name:      "invoices_issued_total",
			Help:      "Total number of invoices issued.",
		},
	)

	// EmailsSent counts outbound email attempts by status.
	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relivv",
			Subsystem: "email",
			Name:      "sent_total",
			Help:      "Outbound emails by delivery status.",
		},
		[]string{"status"},
	)

	// EventsPublished counts order events published to the broker.
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relivv",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Order events published to the message broker.",
		},
		[]string{"routing_key"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		TransactionsSettled,
		InvoicesIssued,
		EmailsSent,
		EventsPublished,
	)
}

// Handler exposes the registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments every request with the in-flight gauge, a request
// counter and a duration histogram.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
