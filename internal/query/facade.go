// Package query makes sure a city's schedule is resident before answering
// route, trip and stop queries against it.
package query

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"transitcore.delaycast.org/internal/clock"
	"transitcore.delaycast.org/internal/gtfs"
	"transitcore.delaycast.org/internal/logging"
)

// DefaultCity is used when a request does not name one.
const DefaultCity = "hyderabad"

// DefaultLoadTimeout bounds a shared load once it is detached from the
// requests waiting on it.
const DefaultLoadTimeout = 2 * time.Minute

// Config tunes the facade.
type Config struct {
	DefaultCity string
	// MaxSnapshotAge triggers a reload on the next query once a snapshot is
	// older than this. Zero keeps snapshots forever.
	MaxSnapshotAge time.Duration
	// PreloadConcurrency bounds Preload. Zero means 4.
	PreloadConcurrency int
	// LoadTimeout bounds loads started on behalf of requests. Zero means
	// DefaultLoadTimeout.
	LoadTimeout time.Duration
}

// Facade orchestrates load-on-first-use over a gtfs.Store.
type Facade struct {
	store  *gtfs.Store
	config Config
	clock  clock.Clock
	group  singleflight.Group
	logger *slog.Logger
}

// NewFacade wraps store. clk may be nil.
func NewFacade(store *gtfs.Store, config Config, clk clock.Clock) *Facade {
	if config.DefaultCity == "" {
		config.DefaultCity = DefaultCity
	}
	if config.PreloadConcurrency <= 0 {
		config.PreloadConcurrency = 4
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = DefaultLoadTimeout
	}
	return &Facade{
		store:  store,
		config: config,
		clock:  clock.OrReal(clk),
		logger: slog.Default().With(slog.String("component", "query_facade")),
	}
}

// Store exposes the underlying schedule store.
func (f *Facade) Store() *gtfs.Store {
	return f.store
}

// City returns the normalized city, substituting the default for an empty one.
func (f *Facade) City(city string) string {
	if city == "" {
		return f.config.DefaultCity
	}
	if normalized, err := gtfs.NormalizeCity(city); err == nil {
		return normalized
	}
	return city
}

// ensure makes the city resident. Concurrent callers share one load, which
// does not stop when the caller that started it goes away. A stale snapshot
// is refreshed, and kept if the refresh fails.
func (f *Facade) ensure(ctx context.Context, city string) (string, error) {
	city = f.City(city)

	snap, ok := f.store.Snapshot(city)
	if ok && !f.stale(snap) {
		return city, nil
	}

	_, err, _ := f.group.Do(city, func() (any, error) {
		// Another flight may have finished while we waited for this one.
		if current, ok := f.store.Snapshot(city); ok && !f.stale(current) {
			return nil, nil
		}
		return f.sharedLoad(ctx, city)
	})
	if err != nil {
		if ok {
			logging.LogError(f.logger, "stale_snapshot_reload_failed", err,
				slog.String("city", city),
				slog.Time("loaded_at", snap.LoadedAt))
			return city, nil
		}
		return city, err
	}
	return city, nil
}

// sharedLoad runs a load that several callers may be waiting on. It keeps
// ctx values but not its cancellation.
func (f *Facade) sharedLoad(ctx context.Context, city string) (gtfs.LoadResult, error) {
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.config.LoadTimeout)
	defer cancel()
	return f.store.Load(loadCtx, city)
}

func (f *Facade) stale(snap *gtfs.Snapshot) bool {
	return f.config.MaxSnapshotAge > 0 && snap.Age(f.clock.Now()) > f.config.MaxSnapshotAge
}

// Routes returns the city's routes. An error means the city could not be loaded.
func (f *Facade) Routes(ctx context.Context, city string) ([]gtfs.RouteSummary, error) {
	city, err := f.ensure(ctx, city)
	if err != nil {
		return []gtfs.RouteSummary{}, err
	}
	return f.store.ListRoutes(city), nil
}

// Headsigns returns the distinct headsigns of a route.
func (f *Facade) Headsigns(ctx context.Context, city, routeID string) ([]string, error) {
	city, err := f.ensure(ctx, city)
	if err != nil {
		return []string{}, err
	}
	return f.store.ListTripHeadsigns(city, routeID), nil
}

// Stops returns a route/headsign itinerary or the full stop list.
func (f *Facade) Stops(ctx context.Context, city, routeID, headsign string) (gtfs.StopList, error) {
	city, err := f.ensure(ctx, city)
	if err != nil {
		return gtfs.StopList{Stops: []gtfs.Stop{}}, err
	}
	return f.store.ListStops(city, routeID, headsign), nil
}

// StopsNear returns stops around a point, nearest first.
func (f *Facade) StopsNear(ctx context.Context, city string, lat, lon, radiusMeters float64, limit int) ([]gtfs.NearbyStop, error) {
	city, err := f.ensure(ctx, city)
	if err != nil {
		return []gtfs.NearbyStop{}, err
	}
	return f.store.StopsNear(city, lat, lon, radiusMeters, limit), nil
}

// Reload forces a fresh load of the city regardless of snapshot age.
func (f *Facade) Reload(ctx context.Context, city string) (gtfs.LoadResult, error) {
	city = f.City(city)
	v, err, _ := f.group.Do("reload:"+city, func() (any, error) {
		return f.sharedLoad(ctx, city)
	})
	if err != nil {
		return gtfs.LoadResult{}, err
	}
	return v.(gtfs.LoadResult), nil
}

// Preload loads cities concurrently. Failures are logged and returned
// per city; they never abort the other loads.
func (f *Facade) Preload(ctx context.Context, cities []string) map[string]error {
	results := make([]error, len(cities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.PreloadConcurrency)
	for i, city := range cities {
		g.Go(func() error {
			_, err := f.store.Load(gctx, city)
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()

	failures := make(map[string]error)
	for i, err := range results {
		if err == nil {
			continue
		}
		failures[cities[i]] = err
		logging.LogError(f.logger, "city_preload_failed", err, slog.String("city", cities[i]))
	}
	logging.LogOperation(f.logger, "city_preload_complete",
		slog.Int("requested", len(cities)),
		slog.Int("failed", len(failures)))
	return failures
}
