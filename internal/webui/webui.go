// Package webui serves developer pages that are disabled in production.
package webui

import (
	"net/http"

	"transitcore.delaycast.org/internal/app"
)

type WebUI struct {
	*app.Application
}

// SetWebUIRoutes registers the debug pages on mux.
func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/", webUI.debugIndexHandler)
}
