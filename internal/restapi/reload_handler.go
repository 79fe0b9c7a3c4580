package restapi

import (
	"log/slog"
	"net/http"

	"transitcore.delaycast.org/internal/gtfs"
	"transitcore.delaycast.org/internal/logging"
)

// reloadHandler forces a fresh load of a city. The previous snapshot keeps
// serving when the load fails.
func (api *RestAPI) reloadHandler(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")

	result, err := api.Facade.Reload(r.Context(), city)
	if err != nil {
		logging.LogError(api.requestLogger(r), "schedule reload rejected", err,
			slog.String("city", api.Facade.City(city)))
		status := http.StatusUnprocessableEntity
		if gtfs.IsNotFound(err) {
			status = http.StatusNotFound
		}
		api.sendError(w, r, status, err.Error())
		return
	}

	api.sendResponse(w, r, result)
}
