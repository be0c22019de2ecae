package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	aggregation     prometheus.Histogram
	ordersEvaluated prometheus.Counter
	orphans         prometheus.Counter
}

// NewMetrics builds a private registry with the HTTP and engine collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "explotacion_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "explotacion_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	aggregation := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "explotacion_aggregation_duration_seconds",
		Help:    "Time spent aggregating a loaded snapshot.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
	})
	evaluated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "explotacion_orders_evaluated_total",
		Help: "Service orders evaluated by report aggregations.",
	})
	orphans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "explotacion_orphan_adjustments_total",
		Help: "Staff adjustments dropped because their service order is missing.",
	})
	registry.MustRegister(requests, duration, aggregation, evaluated, orphans,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		aggregation:     aggregation,
		ordersEvaluated: evaluated,
		orphans:         orphans,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency of every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAggregation records one engine pass.
func (m *Metrics) ObserveAggregation(d time.Duration, orders int) {
	if m == nil {
		return
	}
	m.aggregation.Observe(d.Seconds())
	if orders > 0 {
		m.ordersEvaluated.Add(float64(orders))
	}
}

// AddOrphanAdjustments counts adjustments dropped by the index.
func (m *Metrics) AddOrphanAdjustments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.orphans.Add(float64(n))
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
