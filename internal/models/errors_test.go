package models_test

import (
	"errors"
	"fmt"
	"testing"

	"occupancy/internal/models"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "a@b.co", nil},
		{"valid subdomain", "user.name@mail.example.org", nil},
		{"surrounding whitespace", "  a@b.co  ", nil},
		{"empty", "", models.ErrEmailRequired},
		{"only spaces", "   ", models.ErrEmailRequired},
		{"no at", "bad", models.ErrInvalidEmail},
		{"no tld", "a@b", models.ErrInvalidEmail},
		{"empty local", "@b.co", models.ErrInvalidEmail},
		{"empty domain", "a@.co", models.ErrInvalidEmail},
		{"two ats", "a@b@c.co", models.ErrInvalidEmail},
		{"inner space", "a b@c.co", models.ErrInvalidEmail},
		{"trailing dot", "a@b.co.", models.ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := models.ValidateEmail(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEmail(%q) unexpected error: %v", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEmail(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorMatchesByReason(t *testing.T) {
	err := fmt.Errorf("create alert: %w", &models.ValidationError{Reason: models.ReasonDurationOutOfRange})

	if !errors.Is(err, models.ErrDurationOutOfRange) {
		t.Errorf("expected wrapped error to match ErrDurationOutOfRange")
	}
	if errors.Is(err, models.ErrInvalidDuration) {
		t.Errorf("different reasons must not match")
	}

	reason, ok := models.ReasonOf(err)
	if !ok || reason != models.ReasonDurationOutOfRange {
		t.Errorf("ReasonOf() = %q, %v", reason, ok)
	}

	if _, ok := models.ReasonOf(errors.New("boom")); ok {
		t.Errorf("plain errors carry no reason")
	}
}
