package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Measurement is the most recent reading reported by a single sensor.
type Measurement struct {
	// Stable sensor identifier, e.g. "esp32-sniffer-1"
	SensorID string `json:"-"`

	// Number of devices seen by the sensor; nil when the reading was absent or not numeric
	DeviceCount *float64 `json:"device_count"`

	// Server time at which the reading was recorded
	ObservedAt time.Time `json:"observed_at"`
}

// Count returns the device count with absent readings treated as zero.
func (m Measurement) Count() float64 {
	if m.DeviceCount == nil {
		return 0
	}
	return *m.DeviceCount
}

// MeasurementRequest is the payload sensors submit over HTTP or Kafka.
type MeasurementRequest struct {
	SensorID    json.RawMessage `json:"sensor_id"`
	DeviceCount json.RawMessage `json:"device_count"`
}

// DecodeMeasurement parses a sensor payload. Only a missing sensor_id is an
// error; an unusable device_count is kept as a null reading.
func DecodeMeasurement(data []byte) (sensorID string, count *float64, err error) {
	var req MeasurementRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", nil, &ValidationError{Reason: ReasonInvalidRequestBody, Message: err.Error()}
	}
	sensorID, err = req.Sensor()
	if err != nil {
		return "", nil, err
	}
	return sensorID, ParseDeviceCount(req.DeviceCount), nil
}

// Sensor returns the sensor id as a string. Numeric ids are accepted as written.
func (r MeasurementRequest) Sensor() (string, error) {
	raw := bytes.TrimSpace(r.SensorID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrSensorIDRequired
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
		return "", ErrSensorIDRequired
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", ErrSensorIDRequired
}
