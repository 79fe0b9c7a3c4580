package restapi

import (
	"net/http"

	"transitcore.delaycast.org/internal/utils"
)

// routeInfoHandler resolves road geometry between two points. Provider
// failures are absorbed by the resolver; only malformed input is an error.
func (api *RestAPI) routeInfoHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var coords [4]float64
	for i, name := range []string{"start_lat", "start_lon", "end_lat", "end_lon"} {
		v, err := utils.ParseRequiredFloat(query, name)
		if err != nil {
			api.sendError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		coords[i] = v
	}

	resolution, err := api.Resolver.Resolve(r.Context(), coords[0], coords[1], coords[2], coords[3])
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	api.sendResponse(w, r, resolution)
}
