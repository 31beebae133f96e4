package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"occupancy/internal/events"
	"occupancy/internal/models"
)

// AlertRegistry is the registry surface the HTTP layer uses. It never
// changes alert state after creation.
type AlertRegistry interface {
	Create(email string, units int) (models.Alert, error)
	Get(id int64) (models.Alert, bool)
	ListActive() []models.Alert
	ListAll() []models.Alert
}

// CreateAlertRequest is the body of POST /api/alerts.
type CreateAlertRequest struct {
	Email         string          `json:"email"`
	DurationHours json.RawMessage `json:"duration_hours"`

	// Hours is accepted as a shorter alias of duration_hours
	Hours json.RawMessage `json:"hours,omitempty"`
}

// CreateAlertResponse is returned with 201 Created.
type CreateAlertResponse struct {
	Success       bool         `json:"success"`
	AlertID       int64        `json:"alert_id"`
	ExpiresAt     time.Time    `json:"expires_at"`
	StartingLevel models.Level `json:"starting_level"`
}

// ListAlertsResponse is returned by GET /api/alerts.
type ListAlertsResponse struct {
	Alerts []models.Alert `json:"alerts"`
	Count  int            `json:"count"`
}

// AlertsHandler serves the alert endpoints.
type AlertsHandler struct {
	registry AlertRegistry
	sink     events.Sink
}

// NewAlertsHandler creates the alert endpoints. Created alerts are announced on sink.
func NewAlertsHandler(registry AlertRegistry, sink events.Sink) *AlertsHandler {
	if sink == nil {
		sink = events.Nop{}
	}
	return &AlertsHandler{registry: registry, sink: sink}
}

// Create registers an alert. Rejected requests change nothing.
func (h *AlertsHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req CreateAlertRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeValidationError(w, r, &models.ValidationError{
			Reason:  models.ReasonInvalidRequestBody,
			Message: "body must be a JSON object with email and duration_hours",
		})
		return
	}

	raw := req.DurationHours
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = req.Hours
	}

	units, err := models.ParseDurationUnits(raw)
	if err != nil {
		// Email problems are reported first, as the registry would.
		if emailErr := models.ValidateEmail(req.Email); emailErr != nil {
			err = emailErr
		}
		writeValidationError(w, r, err)
		return
	}

	alert, err := h.registry.Create(req.Email, units)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}

	h.sink.Emit(models.NewAlertEvent(models.EventAlertCreated, alert, alert.StartingLevel, alert.CreatedAt))

	zerolog.Ctx(r.Context()).Info().
		Int64("alert_id", alert.ID).
		Int("duration_hours", alert.DurationUnits).
		Stringer("starting_level", alert.StartingLevel).
		Msg("alert registered")

	writeJSON(w, http.StatusCreated, CreateAlertResponse{
		Success:       true,
		AlertID:       alert.ID,
		ExpiresAt:     alert.ExpiresAt,
		StartingLevel: alert.StartingLevel,
	})
}

// List returns alerts in creation order, optionally filtered by ?status=.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		writeValidationError(w, r, &models.ValidationError{
			Reason:  models.ReasonInvalidStatus,
			Message: "status must be one of active, fired, expired",
		})
		return
	}

	var list []models.Alert
	switch status {
	case "":
		list = h.registry.ListAll()
	case models.StatusActive:
		list = h.registry.ListActive()
	default:
		for _, a := range h.registry.ListAll() {
			if a.Status == status {
				list = append(list, a)
			}
		}
	}
	if list == nil {
		list = []models.Alert{}
	}

	writeJSON(w, http.StatusOK, ListAlertsResponse{Alerts: list, Count: len(list)})
}

// Get returns a single alert by id.
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "alert id must be an integer")
		return
	}

	alert, ok := h.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
