package webui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"transitcore.delaycast.org/internal/appconf"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

var dataTypes = []string{"status", "routes", "trips", "stops", "stop_times", "services"}

type debugData struct {
	Title     string
	City      string
	DataTypes []string
	Pre       string
}

func writeDebugData(w http.ResponseWriter, city, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := debugTemplate.Execute(w, debugData{
		Title:     title,
		City:      city,
		DataTypes: dataTypes,
		Pre:       spew.Sdump(data),
	})
	if err != nil {
		slog.Error("failed to execute debug template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// debugIndexHandler dumps one table of a resident snapshot. It never
// triggers a load.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Application == nil || webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	city := webUI.Facade.City(query.Get("city"))

	snap, ok := webUI.Store.Snapshot(city)
	if !ok {
		writeDebugData(w, city, "City not loaded", map[string]any{
			"error":  "city " + city + " is not resident; query it through the API first",
			"loaded": webUI.Store.Cities(),
		})
		return
	}

	var data any
	var title string

	switch query.Get("dataType") {
	case "status":
		data = snap.Status()
		title = "Snapshot - Status"
	case "routes":
		data = snap.Routes
		title = "GTFS Static - Routes"
	case "trips":
		data = snap.Trips
		title = "GTFS Static - Trips"
	case "stops":
		data = snap.Stops
		title = "GTFS Static - Stops"
	case "stop_times":
		data = snap.StopTimes
		title = "GTFS Static - Stop Times"
	case "services":
		data = snap.Services
		title = "GTFS Static - Services"
	default:
		data = map[string]any{
			"error": "Please use one of the following: status, routes, trips, stops, stop_times, services.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, city, title+" ("+snap.City+")", data)
}
