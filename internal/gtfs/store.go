package gtfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"transitcore.delaycast.org/internal/appconf"
	"transitcore.delaycast.org/internal/clock"
	"transitcore.delaycast.org/internal/logging"
	"transitcore.delaycast.org/internal/metrics"
)

// Store holds one published Snapshot per city. Readers never lock: the city
// map is replaced wholesale on every publish. Loads of one city are
// serialized, loads of different cities run independently.
type Store struct {
	config  Config
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	snapshots atomic.Pointer[map[string]*Snapshot]
	publishMu sync.Mutex
	cityLocks sync.Map // city -> *sync.Mutex
}

// NewStore creates an empty store. clk and m may be nil.
func NewStore(config Config, clk clock.Clock, m *metrics.Metrics) *Store {
	s := &Store{
		config:  config,
		clock:   clock.OrReal(clk),
		metrics: m,
		logger:  slog.Default().With(slog.String("component", "schedule_store")),
	}
	empty := map[string]*Snapshot{}
	s.snapshots.Store(&empty)
	return s
}

// Load reads the city's GTFS tables and publishes a fresh snapshot. On any
// error the previously published snapshot, if any, stays in place. Cities
// without a source on disk leave no per-city state behind.
func (s *Store) Load(ctx context.Context, cityID string) (LoadResult, error) {
	city, err := NormalizeCity(cityID)
	if err != nil {
		return LoadResult{}, err
	}

	source, kind, err := s.locate(city)
	if err != nil {
		s.metrics.ObserveMissingSource()
		s.logger.Debug("schedule_source_missing", slog.String("city", city))
		return LoadResult{}, err
	}

	lock := s.cityLock(city)
	lock.Lock()
	defer lock.Unlock()

	start := s.clock.Now()
	snap, err := s.build(ctx, city, source, kind)
	elapsed := s.clock.Since(start)
	if err != nil {
		s.metrics.ObserveLoad(city, err, elapsed, s.count())
		logging.LogError(s.logger, "schedule_load_failed", err, slog.String("city", city))
		return LoadResult{}, err
	}

	s.publish(snap)
	result := snap.result(elapsed)
	s.metrics.ObserveLoad(city, nil, elapsed, s.count())

	logging.LogOperation(s.logger, "schedule_loaded",
		slog.String("city", city),
		slog.String("source", result.Source),
		slog.String("kind", string(result.Kind)),
		slog.Int("routes", result.Routes),
		slog.Int("trips", result.Trips),
		slog.Int("stops", result.Stops),
		slog.Int("stop_times", result.StopTimes),
		slog.Duration("duration", elapsed))

	return result, nil
}

func (s *Store) build(ctx context.Context, city, source string, kind SourceKind) (*Snapshot, error) {
	var (
		t   *tables
		err error
	)
	switch kind {
	case SourceArchive:
		t, err = loadArchive(ctx, source)
	default:
		t, err = loadDirectory(ctx, source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", city, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return newSnapshot(city, source, kind, s.clock.Now(), t), nil
}

// locate applies the <city>_GTFS convention over the search roots. Within a
// root a directory wins over an archive.
func (s *Store) locate(city string) (string, SourceKind, error) {
	name := city + "_GTFS"
	var searched []string

	for _, root := range s.config.searchRoots() {
		dir := filepath.Join(root, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			s.traceSource(city, dir, SourceDirectory)
			return dir, SourceDirectory, nil
		}
		archive := dir + ".zip"
		if info, err := os.Stat(archive); err == nil && info.Mode().IsRegular() {
			s.traceSource(city, archive, SourceArchive)
			return archive, SourceArchive, nil
		}
		searched = append(searched, dir)
	}

	// Filesystem layout stays out of production error messages.
	if s.config.Env == appconf.Production {
		return "", "", fmt.Errorf("%w: %s", ErrCityNotFound, city)
	}
	return "", "", fmt.Errorf("%w: %s (searched %s)", ErrCityNotFound, city, strings.Join(searched, ", "))
}

func (s *Store) traceSource(city, path string, kind SourceKind) {
	if !s.config.Verbose {
		return
	}
	logging.LogOperation(s.logger, "schedule_source_located",
		slog.String("city", city),
		slog.String("path", path),
		slog.String("kind", string(kind)))
}

func (s *Store) cityLock(city string) *sync.Mutex {
	lock, _ := s.cityLocks.LoadOrStore(city, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// publish swaps in a copy of the city map containing snap.
func (s *Store) publish(snap *Snapshot) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	current := *s.snapshots.Load()
	next := make(map[string]*Snapshot, len(current)+1)
	maps.Copy(next, current)
	next[snap.City] = snap
	s.snapshots.Store(&next)
}

func (s *Store) count() int {
	return len(*s.snapshots.Load())
}

// Snapshot returns the published snapshot for a city.
func (s *Store) Snapshot(cityID string) (*Snapshot, bool) {
	city, err := NormalizeCity(cityID)
	if err != nil {
		return nil, false
	}
	snap, ok := (*s.snapshots.Load())[city]
	return snap, ok
}

// Cities returns the status of every resident city, sorted by id.
func (s *Store) Cities() []CityStatus {
	current := *s.snapshots.Load()
	out := make([]CityStatus, 0, len(current))
	for _, city := range slices.Sorted(maps.Keys(current)) {
		out = append(out, current[city].Status())
	}
	return out
}

// ListRoutes returns the city's routes, or an empty slice when it is not loaded.
func (s *Store) ListRoutes(cityID string) []RouteSummary {
	snap, ok := s.Snapshot(cityID)
	if !ok {
		return []RouteSummary{}
	}
	return snap.RouteSummaries()
}

// ListTripHeadsigns returns the distinct headsigns of a route's trips.
func (s *Store) ListTripHeadsigns(cityID, routeID string) []string {
	snap, ok := s.Snapshot(cityID)
	if !ok {
		return []string{}
	}
	return snap.TripHeadsigns(routeID)
}

// ListStops returns a directed itinerary when routeID and headsign match a
// trip, and every stop of the city otherwise.
func (s *Store) ListStops(cityID, routeID, headsign string) StopList {
	snap, ok := s.Snapshot(cityID)
	if !ok {
		return StopList{Stops: []Stop{}}
	}
	return snap.StopsFor(routeID, headsign)
}

// StopsNear returns the city's stops within radiusMeters of a point, nearest first.
func (s *Store) StopsNear(cityID string, lat, lon, radiusMeters float64, limit int) []NearbyStop {
	snap, ok := s.Snapshot(cityID)
	if !ok {
		return []NearbyStop{}
	}
	return snap.Nearby(lat, lon, radiusMeters, limit)
}

// IsNotFound reports whether err means the city has no data on disk.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCityNotFound) || errors.Is(err, ErrInvalidCity)
}
