package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NormalizeEmail trims surrounding whitespace and lower-cases the domain part.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// ParseDeviceCount converts a raw JSON value into a device count.
// Numbers and numeric strings are accepted; anything else yields nil.
func ParseDeviceCount(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return finite(n)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return finite(n)
		}
	}
	return nil
}

func finite(n float64) *float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

// ParseDurationUnits reads an integral duration from a raw JSON value.
// Integer numbers and integer strings are accepted.
func ParseDurationUnits(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrInvalidDuration
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = []byte(strings.TrimSpace(s))
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, ErrInvalidDuration
	}
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, ErrInvalidDuration
	}
	return int(n), nil
}
