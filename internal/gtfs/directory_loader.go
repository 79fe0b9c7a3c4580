package gtfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// tables is the parsed, not yet indexed content of one city feed.
type tables struct {
	routes    []Route
	trips     []Trip
	stops     []Stop
	stopTimes []StopTime
	services  []ServicePeriod
}

// loadDirectory reads the flat GTFS tables of an extracted feed.
func loadDirectory(ctx context.Context, dir string) (*tables, error) {
	t := &tables{}

	steps := []struct {
		file     string
		required []string
		row      func(tableRow) error
	}{
		{"routes.txt", []string{"route_id"}, t.addRoute},
		{"stops.txt", []string{"stop_id", "stop_name"}, t.addStop},
		{"trips.txt", []string{"route_id", "trip_id"}, t.addTrip},
		{"stop_times.txt", []string{"trip_id", "stop_id", "stop_sequence"}, t.addStopTime},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := readTable(filepath.Join(dir, step.file), step.required, step.row); err != nil {
			return nil, err
		}
	}

	// calendar.txt is optional; only a missing file is tolerated.
	calendarPath := filepath.Join(dir, "calendar.txt")
	if _, err := os.Stat(calendarPath); err == nil {
		if err := readTable(calendarPath, []string{"service_id"}, t.addService); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", calendarPath, err)
	}

	return t, nil
}

func (t *tables) addRoute(row tableRow) error {
	id := row.get("route_id")
	long := row.get("route_long_name")
	name := row.get("route_short_name")
	if name == "" {
		name = long
	}
	if name == "" {
		name = id
	}
	t.routes = append(t.routes, Route{ID: id, Name: name, LongName: long})
	return nil
}

func (t *tables) addStop(row tableRow) error {
	lat, err := row.optionalFloat("stop_lat")
	if err != nil {
		return err
	}
	lon, err := row.optionalFloat("stop_lon")
	if err != nil {
		return err
	}
	if lat == nil || lon == nil {
		lat, lon = nil, nil
	}
	t.stops = append(t.stops, Stop{
		ID:   row.get("stop_id"),
		Name: row.get("stop_name"),
		Lat:  lat,
		Lon:  lon,
	})
	return nil
}

func (t *tables) addTrip(row tableRow) error {
	t.trips = append(t.trips, Trip{
		ID:          row.get("trip_id"),
		RouteID:     row.get("route_id"),
		Headsign:    row.get("trip_headsign"),
		ServiceID:   row.get("service_id"),
		DirectionID: row.get("direction_id"),
	})
	return nil
}

func (t *tables) addStopTime(row tableRow) error {
	seq, err := row.integer("stop_sequence")
	if err != nil {
		return err
	}
	t.stopTimes = append(t.stopTimes, StopTime{
		TripID:       row.get("trip_id"),
		StopID:       row.get("stop_id"),
		StopSequence: seq,
	})
	return nil
}

var weekdayColumns = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (t *tables) addService(row tableRow) error {
	period := ServicePeriod{
		ServiceID: row.get("service_id"),
		StartDate: row.get("start_date"),
		EndDate:   row.get("end_date"),
	}
	for i, column := range weekdayColumns {
		period.Weekdays[i] = row.get(column) == "1"
	}
	t.services = append(t.services, period)
	return nil
}
