package restapi

import (
	"net/http"

	"transitcore.delaycast.org/internal/gtfs"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status string            `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Cities []gtfs.CityStatus `json:"cities"`
}

// healthHandler reports liveness and the cities currently resident. A
// process with no resident city is still healthy; cities load on first use.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	if api.Application == nil || api.Store == nil {
		api.sendJSON(w, r, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Detail: "schedule store not initialized",
			Cities: []gtfs.CityStatus{},
		})
		return
	}

	api.sendResponse(w, r, HealthResponse{
		Status: "ok",
		Cities: api.Store.Cities(),
	})
}
