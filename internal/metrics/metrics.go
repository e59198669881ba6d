// Package metrics exposes Prometheus collectors for the HTTP surface and
// the persistence sessions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crudrouter"

var (
	// Registry holds the application collectors. It is separate from the
	// default registerer so tests can build several routers in one process.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route"},
	)

	// SessionsOpen counts persistence sessions acquired and not yet released.
	SessionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "sessions_open",
			Help:      "Persistence sessions currently held by requests.",
		},
		[]string{"store", "resource"},
	)

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Store operations that failed, by outcome.",
		},
		[]string{"store", "resource", "kind"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		SessionsOpen,
		storeErrors,
		rateLimited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies. Requests are labelled by
// route template (c.Path()), never by raw URL, to keep cardinality bounded.
// statusOf resolves the status of a returned error, since the error handler
// writes the response only after the middleware chain has unwound.
func Middleware(statusOf func(error) int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = statusOf(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// SessionOpened and SessionReleased keep SessionsOpen in step with the stores.
func SessionOpened(store, resource string) {
	SessionsOpen.WithLabelValues(store, resource).Inc()
}

func SessionReleased(store, resource string) {
	SessionsOpen.WithLabelValues(store, resource).Dec()
}

// StoreError counts a failed store operation. kind is one of not_found,
// conflict, unavailable or other.
func StoreError(store, resource, kind string) {
	storeErrors.WithLabelValues(store, resource, kind).Inc()
}

// RateLimited counts a request denied by the rate limiter.
func RateLimited() {
	rateLimited.Inc()
}
