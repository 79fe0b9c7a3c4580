package gtfs

import (
	"slices"
	"time"

	"github.com/tidwall/rtree"
)

// Snapshot is the immutable, indexed schedule of one city. It is built
// completely before publication and never modified afterwards.
type Snapshot struct {
	City     string
	Source   string
	Kind     SourceKind
	LoadedAt time.Time

	Routes    []Route
	Trips     []Trip
	Stops     []Stop
	StopTimes []StopTime
	Services  []ServicePeriod

	// trip indexes per canonical route id, in load order
	tripsByRoute map[string][]int
	// stop times per canonical trip id, ascending by sequence
	stopTimesByTrip map[string][]StopTime
	// first stop index per canonical stop id
	stopsByID map[string]int
	// stop indexes keyed by [lon, lat]
	spatial rtree.RTreeG[int]
}

func newSnapshot(city, source string, kind SourceKind, loadedAt time.Time, t *tables) *Snapshot {
	snap := &Snapshot{
		City:            city,
		Source:          source,
		Kind:            kind,
		LoadedAt:        loadedAt,
		Routes:          t.routes,
		Trips:           t.trips,
		Stops:           t.stops,
		StopTimes:       t.stopTimes,
		Services:        t.services,
		tripsByRoute:    make(map[string][]int),
		stopTimesByTrip: make(map[string][]StopTime),
		stopsByID:       make(map[string]int, len(t.stops)),
	}

	for i, trip := range t.trips {
		key := CanonicalID(trip.RouteID)
		snap.tripsByRoute[key] = append(snap.tripsByRoute[key], i)
	}

	for _, st := range t.stopTimes {
		key := CanonicalID(st.TripID)
		snap.stopTimesByTrip[key] = append(snap.stopTimesByTrip[key], st)
	}
	for _, times := range snap.stopTimesByTrip {
		slices.SortStableFunc(times, func(a, b StopTime) int {
			return a.StopSequence - b.StopSequence
		})
	}

	for i, stop := range t.stops {
		key := CanonicalID(stop.ID)
		if _, exists := snap.stopsByID[key]; !exists {
			snap.stopsByID[key] = i
		}
		if stop.HasLocation() {
			point := [2]float64{*stop.Lon, *stop.Lat}
			snap.spatial.Insert(point, point, i)
		}
	}

	return snap
}

// Status summarizes the snapshot for health and debug output.
func (s *Snapshot) Status() CityStatus {
	return CityStatus{
		City:     s.City,
		Kind:     s.Kind,
		Routes:   len(s.Routes),
		Trips:    len(s.Trips),
		Stops:    len(s.Stops),
		Services: len(s.Services),
		LoadedAt: s.LoadedAt,
	}
}

// Age returns how long ago the snapshot was loaded relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.LoadedAt)
}

func (s *Snapshot) result(elapsed time.Duration) LoadResult {
	return LoadResult{
		City:      s.City,
		Source:    s.Source,
		Kind:      s.Kind,
		Routes:    len(s.Routes),
		Trips:     len(s.Trips),
		Stops:     len(s.Stops),
		StopTimes: len(s.StopTimes),
		Services:  len(s.Services),
		LoadedAt:  s.LoadedAt,
		Duration:  elapsed,
	}
}
