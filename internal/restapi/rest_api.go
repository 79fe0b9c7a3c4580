// Package restapi exposes the schedule store and the route resolver over HTTP.
package restapi

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transitcore.delaycast.org/internal/app"
)

// Cache tiers, in seconds.
const (
	scheduleCacheSeconds = 300
	noCache              = 0
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

// NewRestAPI creates a new RestAPI instance with an initialized rate limiter.
func NewRestAPI(app *app.Application) *RestAPI {
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimitMiddleware(app.Config.RateLimit, time.Second, app.Config.RateLimitExempt, app.Clock),
	}
}

// SetRoutes registers every endpoint on mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	limited := func(cacheSeconds int, h http.HandlerFunc) http.Handler {
		return CacheControlMiddleware(cacheSeconds, api.rateLimiter.Handler()(h))
	}

	mux.HandleFunc("GET /health", api.healthHandler)

	mux.Handle("GET /api/routes", limited(scheduleCacheSeconds, api.routesHandler))
	mux.Handle("GET /api/trips", limited(scheduleCacheSeconds, api.tripsHandler))
	mux.Handle("GET /api/stops", limited(scheduleCacheSeconds, api.stopsHandler))
	mux.Handle("GET /api/stops/nearby", limited(scheduleCacheSeconds, api.nearbyStopsHandler))
	mux.Handle("GET /api/route-info", limited(noCache, api.routeInfoHandler))
	mux.Handle("POST /api/admin/reload", limited(noCache, api.reloadHandler))

	if api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler wraps mux with the process-wide middleware chain. The outermost
// layer runs first.
func (api *RestAPI) Handler(mux http.Handler) http.Handler {
	var handler http.Handler = mux
	handler = MetricsHandler(api.Metrics)(handler)
	handler = gzhttp.GzipHandler(handler)
	handler = cors.Handler(cors.Options{
		AllowedOrigins: api.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	})(handler)
	handler = NewRequestLoggingMiddleware(api.Logger)(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}

func (api *RestAPI) corsOrigins() []string {
	if len(api.Config.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return api.Config.CORSOrigins
}

// Shutdown gracefully shuts down the API and stops background goroutines.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
