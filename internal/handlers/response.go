package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"occupancy/internal/metrics"
	"occupancy/internal/models"
)

// ErrorResponse is the body of every 4xx/5xx answer from the API.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Code: code, Error: message})
}

// writeValidationError maps a rejected request onto a 400 with its reason code.
func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	reason, ok := models.ReasonOf(err)
	if !ok {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	metrics.ValidationErrors.WithLabelValues(string(reason)).Inc()
	writeError(w, http.StatusBadRequest, string(reason), err.Error())
}

// readBody reads the request body, reporting oversize bodies separately.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, string(models.ReasonInvalidRequestBody), "could not read request body")
		return nil, false
	}
	return body, true
}
