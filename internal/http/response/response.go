package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Error names on the wire. Clients match on these strings, so they follow
// the established Yggdrasil vocabulary exactly.
const (
	ErrorForbidden       = "ForbiddenOperationException"
	ErrorIllegalArgument = "IllegalArgumentException"
	ErrorTooManyRequests = "TooManyRequestsException"
	ErrorInternal        = "InternalServerError"
)

type errorBody struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(r.Context(), "encode response", "error", err, "path", r.URL.Path)
	}
}

// NoContent answers 204. Several operations use it for success and for
// deliberate silence alike.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, _ *http.Request, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: name, ErrorMessage: message})
}

func Forbidden(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusForbidden, ErrorForbidden, message)
}

func IllegalArgument(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, ErrorIllegalArgument, message)
}

// Internal hides the cause from the client and logs it with the request
// id for correlation.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal error",
		"error", err,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
	)
	Error(w, r, http.StatusInternalServerError, ErrorInternal, "An internal error occurred.")
}
