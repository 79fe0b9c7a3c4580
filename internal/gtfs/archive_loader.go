package gtfs

import (
	"context"
	"fmt"
	"os"

	"github.com/OneBusAway/go-gtfs"
)

const maxArchiveSize = 200 * 1024 * 1024

// loadArchive parses a zipped feed with go-gtfs and flattens it into the
// same tables the directory loader produces.
func loadArchive(ctx context.Context, path string) (*tables, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxArchiveSize {
		return nil, fmt.Errorf("%w: %s exceeds size limit of %d bytes", ErrMalformedTable, path, maxArchiveSize)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading local GTFS file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing GTFS archive %s: %v", ErrMalformedTable, path, err)
	}

	return tablesFromStatic(static), nil
}

func tablesFromStatic(static *gtfs.Static) *tables {
	t := &tables{
		routes:   make([]Route, 0, len(static.Routes)),
		stops:    make([]Stop, 0, len(static.Stops)),
		trips:    make([]Trip, 0, len(static.Trips)),
		services: make([]ServicePeriod, 0, len(static.Services)),
	}

	for _, r := range static.Routes {
		name := r.ShortName
		if name == "" {
			name = r.LongName
		}
		if name == "" {
			name = r.Id
		}
		t.routes = append(t.routes, Route{ID: r.Id, Name: name, LongName: r.LongName})
	}

	for _, s := range static.Stops {
		stop := Stop{ID: s.Id, Name: s.Name}
		if s.Latitude != nil && s.Longitude != nil {
			lat, lon := *s.Latitude, *s.Longitude
			stop.Lat, stop.Lon = &lat, &lon
		}
		t.stops = append(t.stops, stop)
	}

	for _, trip := range static.Trips {
		row := Trip{ID: trip.ID, Headsign: trip.Headsign}
		if trip.Route != nil {
			row.RouteID = trip.Route.Id
		}
		if trip.Service != nil {
			row.ServiceID = trip.Service.Id
		}
		t.trips = append(t.trips, row)

		for _, st := range trip.StopTimes {
			if st.Stop == nil {
				continue
			}
			t.stopTimes = append(t.stopTimes, StopTime{
				TripID:       trip.ID,
				StopID:       st.Stop.Id,
				StopSequence: st.StopSequence,
			})
		}
	}

	for _, svc := range static.Services {
		period := ServicePeriod{
			ServiceID: svc.Id,
			Weekdays:  [7]bool{svc.Monday, svc.Tuesday, svc.Wednesday, svc.Thursday, svc.Friday, svc.Saturday, svc.Sunday},
		}
		if !svc.StartDate.IsZero() {
			period.StartDate = svc.StartDate.Format("20060102")
		}
		if !svc.EndDate.IsZero() {
			period.EndDate = svc.EndDate.Format("20060102")
		}
		t.services = append(t.services, period)
	}

	return t
}
