// Package metrics provides Prometheus metrics for the transit query service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Load outcomes recorded by ScheduleLoadsTotal.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNotFound = "not_found"
)

// UnknownCity labels loads of cities that have no schedule source, so
// client-supplied ids never become label values.
const UnknownCity = "unknown"

// Resolution outcomes recorded by RouteResolutionsTotal.
const (
	ResolutionReal     = "real"
	ResolutionFallback = "fallback"
	ResolutionInvalid  = "invalid"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Schedule store metrics
	ScheduleLoadsTotal   *prometheus.CounterVec
	ScheduleLoadDuration *prometheus.HistogramVec
	LoadedCities         prometheus.Gauge

	// Route resolver metrics
	RouteResolutionsTotal *prometheus.CounterVec
	ProviderAttemptsTotal *prometheus.CounterVec
	ProviderLatency       *prometheus.HistogramVec
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitcore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transitcore_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	scheduleLoadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitcore_schedule_loads_total",
			Help: "GTFS city loads by outcome",
		},
		[]string{"city", "outcome"},
	)

	scheduleLoadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transitcore_schedule_load_duration_seconds",
			Help:    "Time spent reading and indexing a city's GTFS tables",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"city"},
	)

	loadedCities := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transitcore_loaded_cities",
		Help: "Number of cities with a published schedule snapshot",
	})

	routeResolutionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitcore_route_resolutions_total",
			Help: "Route geometry requests by outcome (real, fallback, invalid)",
		},
		[]string{"outcome"},
	)

	providerAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitcore_routing_provider_attempts_total",
			Help: "Calls to external routing providers by result",
		},
		[]string{"provider", "result"},
	)

	providerLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transitcore_routing_provider_duration_seconds",
			Help:    "External routing provider latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		scheduleLoadsTotal,
		scheduleLoadDuration,
		loadedCities,
		routeResolutionsTotal,
		providerAttemptsTotal,
		providerLatency,
	)

	return &Metrics{
		Registry:              registry,
		HTTPRequestsTotal:     httpRequestsTotal,
		HTTPRequestDuration:   httpRequestDuration,
		ScheduleLoadsTotal:    scheduleLoadsTotal,
		ScheduleLoadDuration:  scheduleLoadDuration,
		LoadedCities:          loadedCities,
		RouteResolutionsTotal: routeResolutionsTotal,
		ProviderAttemptsTotal: providerAttemptsTotal,
		ProviderLatency:       providerLatency,
	}
}

// ObserveLoad records one schedule load attempt. A nil receiver is a no-op so
// components can run without metrics in tests.
func (m *Metrics) ObserveLoad(city string, err error, elapsed time.Duration, loaded int) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.ScheduleLoadsTotal.WithLabelValues(city, outcome).Inc()
	m.ScheduleLoadDuration.WithLabelValues(city).Observe(elapsed.Seconds())
	if err == nil {
		m.LoadedCities.Set(float64(loaded))
	}
}

// ObserveMissingSource records a load that found no source for the city.
func (m *Metrics) ObserveMissingSource() {
	if m == nil {
		return
	}
	m.ScheduleLoadsTotal.WithLabelValues(UnknownCity, OutcomeNotFound).Inc()
}

// ObserveResolution records the outcome of one route geometry request.
func (m *Metrics) ObserveResolution(outcome string) {
	if m == nil {
		return
	}
	m.RouteResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProviderAttempt records one provider call; result is "ok" or a short failure reason.
func (m *Metrics) ObserveProviderAttempt(provider, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderAttemptsTotal.WithLabelValues(provider, result).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records one served request. path must be a route
// pattern, never a raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
