package models

import "time"

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive  Status = "active"
	StatusFired   Status = "fired"
	StatusExpired Status = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusFired || s == StatusExpired
}

// IsValid checks if the status is one of the known states
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusFired, StatusExpired:
		return true
	default:
		return false
	}
}

// Alert is a user's standing request to be emailed once occupancy drops by at
// least one level from its baseline.
type Alert struct {
	// Sequential identifier, never reused
	ID int64 `json:"id"`

	// Notification address
	Email string `json:"email"`

	// Requested lifetime in configured units (hours by default) and as a duration
	DurationUnits int           `json:"duration_hours"`
	Duration      time.Duration `json:"-"`

	CreatedAt time.Time `json:"created_at"`

	// Fixed at creation, never recomputed
	ExpiresAt time.Time `json:"expires_at"`

	Status Status `json:"status"`

	// Baseline level; undefined until captured, immutable afterwards
	StartingLevel Level `json:"starting_level"`

	FiredAt   *time.Time `json:"fired_at"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`

	// Delivery failure recorded when the notification attempt failed
	NotifyError string `json:"notify_error,omitempty"`
}

// Expired reports whether now is strictly past the alert's expiry.
func (a *Alert) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// Dropped reports whether current is at least one level below the baseline.
func (a *Alert) Dropped(current Level) bool {
	if !a.StartingLevel.Defined() || !current.Defined() {
		return false
	}
	return current <= a.StartingLevel-1
}
