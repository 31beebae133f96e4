package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"occupancy/internal/metrics"
	"occupancy/internal/models"
	"occupancy/internal/storage"
)

// MeasurementStore is the storage the measurement endpoints need.
type MeasurementStore interface {
	Record(sensorID string, count *float64, at time.Time) models.Measurement
	Snapshot() storage.Snapshot
}

// MeasureHandler serves POST /api/measure and GET /api/latest.
type MeasureHandler struct {
	store MeasurementStore
	now   func() time.Time
}

// NewMeasureHandler creates the measurement endpoints. A nil now uses time.Now.
func NewMeasureHandler(store MeasurementStore, now func() time.Time) *MeasureHandler {
	if now == nil {
		now = time.Now
	}
	return &MeasureHandler{store: store, now: now}
}

// Record stores the latest reading for a sensor. The server clock stamps it.
func (h *MeasureHandler) Record(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	sensorID, count, err := models.DecodeMeasurement(body)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}

	m := h.store.Record(sensorID, count, h.now())

	label := "present"
	if count == nil {
		label = "null"
	}
	metrics.MeasurementsRecorded.WithLabelValues("http", label).Inc()

	log := zerolog.Ctx(r.Context())
	event := log.Debug().Str("sensor_id", sensorID)
	if m.DeviceCount != nil {
		event = event.Float64("device_count", *m.DeviceCount)
	}
	event.Msg("measurement recorded")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Latest returns the most recent reading of every sensor keyed by sensor id.
func (h *MeasureHandler) Latest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}
