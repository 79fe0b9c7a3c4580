package gtfs

import (
	"cmp"
	"slices"

	"transitcore.delaycast.org/internal/utils"
)

// RouteSummaries returns every route in load order.
func (s *Snapshot) RouteSummaries() []RouteSummary {
	out := make([]RouteSummary, 0, len(s.Routes))
	for _, r := range s.Routes {
		out = append(out, RouteSummary{ID: r.ID, Name: r.Name})
	}
	return out
}

// TripHeadsigns returns the distinct headsigns of the route's trips in
// first-seen order.
func (s *Snapshot) TripHeadsigns(routeID string) []string {
	out := []string{}
	key := CanonicalID(routeID)
	if key == "" {
		return out
	}
	seen := make(map[string]struct{})
	for _, idx := range s.tripsByRoute[key] {
		headsign := s.Trips[idx].Headsign
		if _, dup := seen[headsign]; dup {
			continue
		}
		seen[headsign] = struct{}{}
		out = append(out, headsign)
	}
	return out
}

// StopsFor returns the itinerary of the first trip matching routeID and
// headsign, or every stop when either is empty or nothing matches.
func (s *Snapshot) StopsFor(routeID, headsign string) StopList {
	key := CanonicalID(routeID)
	if key != "" && headsign != "" {
		for _, idx := range s.tripsByRoute[key] {
			trip := s.Trips[idx]
			if trip.Headsign != headsign {
				continue
			}
			return StopList{
				Directed: true,
				TripID:   trip.ID,
				Stops:    s.itinerary(trip.ID),
			}
		}
	}

	stops := make([]Stop, len(s.Stops))
	copy(stops, s.Stops)
	return StopList{Stops: stops}
}

// itinerary joins a trip's ordered stop times with stops, skipping dangling stop ids.
func (s *Snapshot) itinerary(tripID string) []Stop {
	times := s.stopTimesByTrip[CanonicalID(tripID)]
	out := make([]Stop, 0, len(times))
	for _, st := range times {
		idx, ok := s.stopsByID[CanonicalID(st.StopID)]
		if !ok {
			continue
		}
		out = append(out, s.Stops[idx])
	}
	return out
}

// Nearby returns stops within radiusMeters of the point, nearest first. A
// positive limit caps the result.
func (s *Snapshot) Nearby(lat, lon, radiusMeters float64, limit int) []NearbyStop {
	out := []NearbyStop{}
	if radiusMeters <= 0 {
		return out
	}

	bounds := utils.CalculateBounds(lat, lon, radiusMeters)
	s.spatial.Search(
		[2]float64{bounds.MinLon, bounds.MinLat},
		[2]float64{bounds.MaxLon, bounds.MaxLat},
		func(_, _ [2]float64, idx int) bool {
			stop := s.Stops[idx]
			d := utils.DistanceMeters(lat, lon, *stop.Lat, *stop.Lon)
			if d <= radiusMeters {
				out = append(out, NearbyStop{Stop: stop, DistanceMeters: d})
			}
			return true
		},
	)

	slices.SortFunc(out, func(a, b NearbyStop) int {
		if c := cmp.Compare(a.DistanceMeters, b.DistanceMeters); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
