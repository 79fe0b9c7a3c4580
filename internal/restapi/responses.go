package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"transitcore.delaycast.org/internal/logging"
)

// ErrorResponse is the body of every non-2xx response that is not a list.
type ErrorResponse struct {
	Error string `json:"error"`
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

// sendJSON encodes body before writing the status, so a body that cannot be
// encoded becomes a 500 instead of a truncated success.
func (api *RestAPI) sendJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	setJSONResponseType(&w)
	w.WriteHeader(code)
	if _, err := w.Write(append(data, '\n')); err != nil {
		logging.LogError(api.requestLogger(r), "failed to write response", err)
	}
}

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, body any) {
	api.sendJSON(w, r, http.StatusOK, body)
}

func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	api.sendJSON(w, r, code, ErrorResponse{Error: message})
}

// sendEmptyList answers a failed list query the way clients expect: an empty array.
func (api *RestAPI) sendEmptyList(w http.ResponseWriter, r *http.Request, code int) {
	api.sendJSON(w, r, code, []struct{}{})
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.requestLogger(r), "internal server error", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	api.sendError(w, r, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) requestLogger(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context()).With(slog.String("request_id", GetRequestID(r.Context())))
}
