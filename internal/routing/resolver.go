package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twpayne/go-polyline"
	"golang.org/x/time/rate"

	"transitcore.delaycast.org/internal/logging"
	"transitcore.delaycast.org/internal/metrics"
	"transitcore.delaycast.org/internal/utils"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultTotalTimeout    = 10 * time.Second
	DefaultAssumedSpeedKmh = 25.0
	DefaultFallbackSteps   = 10
)

// Config tunes the resolver. Zero values select the defaults.
type Config struct {
	// Timeout bounds each provider attempt, limiter wait included.
	Timeout time.Duration
	// TotalTimeout bounds the whole provider chain. Providers left when it
	// runs out are skipped. Zero means the larger of DefaultTotalTimeout and
	// Timeout.
	TotalTimeout    time.Duration
	AssumedSpeedKmh float64
	FallbackSteps   int
	// RatePerSecond limits outbound calls per provider. Zero disables the limiter.
	RatePerSecond float64
	Burst         int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = max(DefaultTotalTimeout, c.Timeout)
	}
	if c.AssumedSpeedKmh <= 0 {
		c.AssumedSpeedKmh = DefaultAssumedSpeedKmh
	}
	if c.FallbackSteps <= 0 {
		c.FallbackSteps = DefaultFallbackSteps
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// RouteSummary repeats a route's totals.
type RouteSummary struct {
	DistanceKm  float64 `json:"distanceKm"`
	DurationMin float64 `json:"durationMin"`
}

// RouteOption is one candidate geometry. Coordinates are [lat, lon] pairs.
type RouteOption struct {
	ID          int          `json:"id"`
	DistanceKm  float64      `json:"distanceKm"`
	DurationMin float64      `json:"durationMin"`
	Coordinates [][]float64  `json:"coordinates"`
	Summary     RouteSummary `json:"summary"`
}

// Attempt records one provider call made while resolving.
type Attempt struct {
	Provider   string  `json:"provider"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"durationMs"`
}

// Resolution is the resolver output. Fallback is true when the geometry is
// a synthesized straight line rather than a road route.
type Resolution struct {
	Routes        []RouteOption `json:"routes"`
	SelectedRoute int           `json:"selectedRoute"`
	Fallback      bool          `json:"fallback"`
	Provider      string        `json:"provider,omitempty"`
	Attempts      []Attempt     `json:"attempts,omitempty"`
}

type limitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// Resolver tries each provider in order and falls back to a great-circle
// estimate. It is safe for concurrent use.
type Resolver struct {
	config    Config
	providers []limitedProvider
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewResolver creates a resolver over providers, which may be empty. m may be nil.
func NewResolver(config Config, providers []Provider, m *metrics.Metrics) *Resolver {
	config = config.withDefaults()

	wrapped := make([]limitedProvider, 0, len(providers))
	for _, p := range providers {
		lp := limitedProvider{Provider: p}
		if config.RatePerSecond > 0 {
			lp.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst)
		}
		wrapped = append(wrapped, lp)
	}

	return &Resolver{
		config:    config,
		providers: wrapped,
		metrics:   m,
		logger:    slog.Default().With(slog.String("component", "route_resolver")),
	}
}

// MaxLatency bounds how long Resolve can wait on providers before falling
// back: the chain budget, or less when the per-attempt timeouts add up to less.
func (r *Resolver) MaxLatency() time.Duration {
	if len(r.providers) == 0 {
		return 0
	}
	return min(r.config.TotalTimeout, r.config.Timeout*time.Duration(len(r.providers)))
}

// Resolve returns road geometry between two points. The only error is an
// invalid (non-finite) coordinate; provider failures end in a fallback
// resolution instead.
func (r *Resolver) Resolve(ctx context.Context, startLat, startLon, endLat, endLon float64) (Resolution, error) {
	if err := utils.ValidateCoordinate(startLat, startLon); err != nil {
		r.metrics.ObserveResolution(metrics.ResolutionInvalid)
		return Resolution{}, fmt.Errorf("start: %w", err)
	}
	if err := utils.ValidateCoordinate(endLat, endLon); err != nil {
		r.metrics.ObserveResolution(metrics.ResolutionInvalid)
		return Resolution{}, fmt.Errorf("end: %w", err)
	}

	start := utils.Coordinate{Lat: startLat, Lon: startLon}
	end := utils.Coordinate{Lat: endLat, Lon: endLon}

	chainCtx, cancel := context.WithTimeout(ctx, r.config.TotalTimeout)
	defer cancel()

	var attempts []Attempt
	for i, p := range r.providers {
		if chainCtx.Err() != nil {
			r.logger.Warn("routing_budget_exhausted",
				slog.Int("skipped_providers", len(r.providers)-i),
				slog.Duration("budget", r.config.TotalTimeout))
			break
		}

		began := time.Now()
		routes, err := r.attempt(chainCtx, p, start, end)
		elapsed := time.Since(began)

		attempt := Attempt{Provider: p.Name(), DurationMs: float64(elapsed.Microseconds()) / 1000}
		if err != nil {
			attempt.Error = err.Error()
			attempts = append(attempts, attempt)
			r.metrics.ObserveProviderAttempt(p.Name(), failureReason(err), elapsed)
			logging.LogError(r.logger, "routing_provider_failed", err,
				slog.String("provider", p.Name()),
				slog.Duration("duration", elapsed))
			continue
		}

		attempts = append(attempts, attempt)
		r.metrics.ObserveProviderAttempt(p.Name(), "ok", elapsed)
		r.metrics.ObserveResolution(metrics.ResolutionReal)
		return Resolution{
			Routes:        routes,
			SelectedRoute: 0,
			Fallback:      false,
			Provider:      p.Name(),
			Attempts:      attempts,
		}, nil
	}

	resolution := r.fallback(start, end)
	resolution.Attempts = attempts
	r.metrics.ObserveResolution(metrics.ResolutionFallback)
	logging.LogOperation(r.logger, "route_fallback_used",
		slog.Int("attempts", len(attempts)),
		slog.Float64("distance_km", resolution.Routes[0].DistanceKm))
	return resolution, nil
}

func (r *Resolver) attempt(ctx context.Context, p limitedProvider, start, end utils.Coordinate) ([]RouteOption, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(callCtx); err != nil {
			return nil, fmt.Errorf("%w: %v", errRateLimited, err)
		}
	}

	candidates, err := p.Route(callCtx, start, end)
	if err != nil {
		return nil, err
	}
	return convertCandidates(candidates)
}

// convertCandidates turns provider candidates into route options. The first
// candidate must decode; alternatives that do not are dropped.
func convertCandidates(candidates []Candidate) ([]RouteOption, error) {
	if len(candidates) == 0 {
		return nil, ErrNoRoute
	}

	routes := make([]RouteOption, 0, len(candidates))
	for i, c := range candidates {
		coords, err := decodeGeometry(c.Geometry)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			continue
		}
		distanceKm := utils.Round(c.DistanceMeters/1000, 2)
		durationMin := utils.Round(c.DurationSeconds/60, 1)
		routes = append(routes, RouteOption{
			ID:          len(routes),
			DistanceKm:  distanceKm,
			DurationMin: durationMin,
			Coordinates: coords,
			Summary:     RouteSummary{DistanceKm: distanceKm, DurationMin: durationMin},
		})
	}
	return routes, nil
}

// decodeGeometry decodes a precision-5 encoded polyline into [lat, lon] pairs.
func decodeGeometry(encoded string) ([][]float64, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty polyline", ErrDecode)
	}
	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(rest))
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: no points", ErrDecode)
	}
	return coords, nil
}

// fallback synthesizes a straight-line route at the assumed urban speed.
func (r *Resolver) fallback(start, end utils.Coordinate) Resolution {
	distanceKm := utils.DistanceKm(start.Lat, start.Lon, end.Lat, end.Lon)
	durationMin := distanceKm / r.config.AssumedSpeedKmh * 60

	points := utils.Interpolate(start.Lat, start.Lon, end.Lat, end.Lon, r.config.FallbackSteps)
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, p.Pair())
	}

	return Resolution{
		Routes: []RouteOption{{
			ID:          0,
			DistanceKm:  utils.Round(distanceKm, 2),
			DurationMin: utils.Round(durationMin, 1),
			Coordinates: coords,
			Summary:     RouteSummary{DistanceKm: distanceKm, DurationMin: durationMin},
		}},
		SelectedRoute: 0,
		Fallback:      true,
	}
}

func failureReason(err error) string {
	var statusErr *StatusError
	switch {
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, ErrNoRoute):
		return "no_route"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "error"
	}
}
