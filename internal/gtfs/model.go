package gtfs

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCity is returned for city ids outside [a-z0-9_-].
	ErrInvalidCity = errors.New("invalid city id")
	// ErrCityNotFound is returned when no <city>_GTFS folder or archive exists under any search root.
	ErrCityNotFound = errors.New("gtfs source not found")
	// ErrMissingTable is returned when a required table or column is absent.
	ErrMissingTable = errors.New("gtfs table missing")
	// ErrMalformedTable is returned when a table cannot be parsed.
	ErrMalformedTable = errors.New("gtfs table malformed")
)

// SourceKind tells how a city's tables were stored on disk.
type SourceKind string

const (
	SourceDirectory SourceKind = "directory"
	SourceArchive   SourceKind = "archive"
)

// Route is one row of routes.txt. Name is already normalized.
type Route struct {
	ID       string
	Name     string
	LongName string
}

// Trip is one row of trips.txt.
type Trip struct {
	ID          string
	RouteID     string
	Headsign    string
	ServiceID   string
	DirectionID string
}

// Stop is one row of stops.txt. Lat and Lon are nil when the feed omits them.
type Stop struct {
	ID   string
	Name string
	Lat  *float64
	Lon  *float64
}

// HasLocation reports whether both coordinates are present.
func (s Stop) HasLocation() bool {
	return s.Lat != nil && s.Lon != nil
}

// StopTime is the (trip, stop, sequence) projection of stop_times.txt.
type StopTime struct {
	TripID       string
	StopID       string
	StopSequence int
}

// ServicePeriod is one row of calendar.txt.
type ServicePeriod struct {
	ServiceID string
	Weekdays  [7]bool // Monday first
	StartDate string  // YYYYMMDD
	EndDate   string
}

// RouteSummary is the result row of ListRoutes.
type RouteSummary struct {
	ID   string `json:"route_id"`
	Name string `json:"route_short_name"`
}

// StopList is the result of ListStops. Directed is true when the stops
// follow a representative trip's itinerary; TripID names that trip.
type StopList struct {
	Directed bool
	TripID   string
	Stops    []Stop
}

// NearbyStop is a stop returned by StopsNear with its distance from the query point.
type NearbyStop struct {
	Stop
	DistanceMeters float64
}

// LoadResult describes a successful load.
type LoadResult struct {
	City      string        `json:"city"`
	Source    string        `json:"source"`
	Kind      SourceKind    `json:"kind"`
	Routes    int           `json:"routes"`
	Trips     int           `json:"trips"`
	Stops     int           `json:"stops"`
	StopTimes int           `json:"stop_times"`
	Services  int           `json:"services"`
	LoadedAt  time.Time     `json:"loaded_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// CityStatus summarizes a resident snapshot.
type CityStatus struct {
	City     string     `json:"city"`
	Kind     SourceKind `json:"kind"`
	Routes   int        `json:"routes"`
	Trips    int        `json:"trips"`
	Stops    int        `json:"stops"`
	Services int        `json:"services"`
	LoadedAt time.Time  `json:"loaded_at"`
}
