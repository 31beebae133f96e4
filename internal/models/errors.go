package models

import (
	"errors"
	"regexp"
	"strings"
)

// Reason is the machine-readable code attached to a validation failure.
type Reason string

const (
	ReasonEmailRequired      Reason = "email_required"
	ReasonInvalidEmail       Reason = "invalid_email"
	ReasonInvalidDuration    Reason = "invalid_duration"
	ReasonDurationOutOfRange Reason = "duration_out_of_range"
	ReasonSensorIDRequired   Reason = "sensor_id_required"
	ReasonInvalidRequestBody Reason = "invalid_request_body"
	ReasonInvalidStatus      Reason = "invalid_status"
)

// ValidationError rejects a request before any state is mutated.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Message
}

// Is matches on reason so callers can compare against the sentinels below.
func (e *ValidationError) Is(target error) bool {
	var other *ValidationError
	if !errors.As(target, &other) {
		return false
	}
	return other.Reason == e.Reason
}

// Validation errors
var (
	ErrEmailRequired      = &ValidationError{Reason: ReasonEmailRequired, Message: "email is required"}
	ErrInvalidEmail       = &ValidationError{Reason: ReasonInvalidEmail, Message: "email must look like local@domain.tld"}
	ErrInvalidDuration    = &ValidationError{Reason: ReasonInvalidDuration, Message: "duration must be an integer"}
	ErrDurationOutOfRange = &ValidationError{Reason: ReasonDurationOutOfRange, Message: "duration is out of range"}
	ErrSensorIDRequired   = &ValidationError{Reason: ReasonSensorIDRequired, Message: "sensor_id is required"}
)

// ReasonOf extracts the validation reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	return "", false
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s.]+(\.[^@\s.]+)*\.[^@\s.]+$`)

// ValidateEmail checks the local@domain.tld shape.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}
