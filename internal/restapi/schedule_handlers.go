package restapi

import (
	"errors"
	"net/http"

	"transitcore.delaycast.org/internal/gtfs"
	"transitcore.delaycast.org/internal/utils"
)

const (
	defaultNearbyRadiusMeters = 500.0
	maxNearbyRadiusMeters     = 5000.0
	defaultNearbyLimit        = 20
	maxNearbyLimit            = 100
)

type tripResponse struct {
	Headsign string `json:"trip_headsign"`
}

// stopResponse carries coordinates as numbers, or "" when the feed has none.
type stopResponse struct {
	ID   string `json:"stop_id"`
	Name string `json:"stop_name"`
	Lat  any    `json:"stop_lat"`
	Lon  any    `json:"stop_lon"`
}

type nearbyStopResponse struct {
	stopResponse
	DistanceMeters float64 `json:"distance_m"`
}

func newStopResponse(s gtfs.Stop) stopResponse {
	resp := stopResponse{ID: s.ID, Name: s.Name, Lat: "", Lon: ""}
	if s.HasLocation() {
		resp.Lat = *s.Lat
		resp.Lon = *s.Lon
	}
	return resp
}

// sendLoadFailure logs why the city could not be made resident and answers
// with the empty list clients of these endpoints expect.
func (api *RestAPI) sendLoadFailure(w http.ResponseWriter, r *http.Request, city string, err error) {
	logger := api.requestLogger(r)
	if gtfs.IsNotFound(err) {
		logger.Info("city not available", "city", city, "error", err)
	} else {
		logger.Warn("city failed to load", "city", city, "error", err)
	}
	api.sendEmptyList(w, r, http.StatusNotFound)
}

func (api *RestAPI) routesHandler(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	routes, err := api.Facade.Routes(r.Context(), city)
	if err != nil {
		api.sendLoadFailure(w, r, city, err)
		return
	}
	api.sendResponse(w, r, routes)
}

func (api *RestAPI) tripsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	city := query.Get("city")

	headsigns, err := api.Facade.Headsigns(r.Context(), city, query.Get("route_id"))
	if err != nil {
		api.sendLoadFailure(w, r, city, err)
		return
	}

	trips := make([]tripResponse, 0, len(headsigns))
	for _, h := range headsigns {
		trips = append(trips, tripResponse{Headsign: h})
	}
	api.sendResponse(w, r, trips)
}

func (api *RestAPI) stopsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	city := query.Get("city")

	list, err := api.Facade.Stops(r.Context(), city, query.Get("route_id"), query.Get("headsign"))
	if err != nil {
		api.sendLoadFailure(w, r, city, err)
		return
	}

	stops := make([]stopResponse, 0, len(list.Stops))
	for _, s := range list.Stops {
		stops = append(stops, newStopResponse(s))
	}
	api.sendResponse(w, r, stops)
}

func (api *RestAPI) nearbyStopsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	city := query.Get("city")

	lat, err := utils.ParseRequiredFloat(query, "lat")
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	lon, err := utils.ParseRequiredFloat(query, "lon")
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	radius, err := utils.ParseOptionalFloat(query, "radius", defaultNearbyRadiusMeters)
	if err == nil && (radius <= 0 || radius > maxNearbyRadiusMeters) {
		err = errors.New("radius must be between 0 and 5000 meters")
	}
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit := min(utils.ParseOptionalInt(query, "limit", defaultNearbyLimit), maxNearbyLimit)

	nearby, err := api.Facade.StopsNear(r.Context(), city, lat, lon, radius, limit)
	if err != nil {
		api.sendLoadFailure(w, r, city, err)
		return
	}

	stops := make([]nearbyStopResponse, 0, len(nearby))
	for _, s := range nearby {
		stops = append(stops, nearbyStopResponse{
			stopResponse:   newStopResponse(s.Stop),
			DistanceMeters: utils.Round(s.DistanceMeters, 1),
		})
	}
	api.sendResponse(w, r, stops)
}
