package models_test

import (
	"encoding/json"
	"errors"
	"testing"

	"occupancy/internal/models"
)

func TestParseDeviceCount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *float64
	}{
		{"integer", `24`, ptr(24)},
		{"float", `27.2`, ptr(27.2)},
		{"zero", `0`, ptr(0)},
		{"numeric string", `" 31 "`, ptr(31)},
		{"null", `null`, nil},
		{"missing", ``, nil},
		{"word", `"many"`, nil},
		{"bool", `true`, nil},
		{"object", `{"n":1}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.ParseDeviceCount(json.RawMessage(tt.input))
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseDeviceCount(%s) = %v, want nil", tt.input, *got)
			case tt.want != nil && got == nil:
				t.Errorf("ParseDeviceCount(%s) = nil, want %v", tt.input, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("ParseDeviceCount(%s) = %v, want %v", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestParseDurationUnits(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"integer", `3`, 3, false},
		{"integral float", `3.0`, 3, false},
		{"string integer", `"8"`, 8, false},
		{"zero", `0`, 0, false},
		{"negative", `-2`, -2, false},
		{"fraction", `1.5`, 0, true},
		{"word", `"three"`, 0, true},
		{"null", `null`, 0, true},
		{"missing", ``, 0, true},
		{"bool", `false`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.ParseDurationUnits(json.RawMessage(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationUnits(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, models.ErrInvalidDuration) {
				t.Errorf("expected invalid_duration, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDurationUnits(%s) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := models.NormalizeEmail("  Jane.Doe@Example.COM "); got != "Jane.Doe@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
	if got := models.NormalizeEmail("bad"); got != "bad" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

func ptr(f float64) *float64 { return &f }

func TestDecodeMeasurement(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantID    string
		wantCount *float64
		wantErr   error
	}{
		{"number", `{"sensor_id":"esp32-sniffer-1","device_count":27.2}`, "esp32-sniffer-1", ptr(27.2), nil},
		{"numeric string count", `{"sensor_id":"s","device_count":"12"}`, "s", ptr(12), nil},
		{"garbage count", `{"sensor_id":"s","device_count":"lots"}`, "s", nil, nil},
		{"missing count", `{"sensor_id":"s"}`, "s", nil, nil},
		{"numeric sensor id", `{"sensor_id":42,"device_count":1}`, "42", ptr(1), nil},
		{"missing sensor id", `{"device_count":3}`, "", nil, models.ErrSensorIDRequired},
		{"blank sensor id", `{"sensor_id":"  ","device_count":3}`, "", nil, models.ErrSensorIDRequired},
		{"object sensor id", `{"sensor_id":{},"device_count":3}`, "", nil, models.ErrSensorIDRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, count, err := models.DecodeMeasurement([]byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if id != tt.wantID {
				t.Errorf("sensor id = %q, want %q", id, tt.wantID)
			}
			switch {
			case tt.wantCount == nil && count != nil:
				t.Errorf("count = %v, want nil", *count)
			case tt.wantCount != nil && (count == nil || *count != *tt.wantCount):
				t.Errorf("count = %v, want %v", count, *tt.wantCount)
			}
		})
	}
}

func TestDecodeMeasurementRejectsMalformedJSON(t *testing.T) {
	_, _, err := models.DecodeMeasurement([]byte(`{"sensor_id":`))
	if reason, _ := models.ReasonOf(err); reason != models.ReasonInvalidRequestBody {
		t.Fatalf("reason = %q, want invalid_request_body", reason)
	}
}
