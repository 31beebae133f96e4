package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"occupancy/internal/config"
	"occupancy/internal/logger"
	"occupancy/internal/models"
)

// ErrNoRecipient is returned when Send is called without an address.
var ErrNoRecipient = errors.New("recipient address is required")

// Notifier delivers a single message to an address. Implementations must
// honour ctx cancellation.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, to, subject, body string) error

func (f Func) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string) error { return nil }

// New selects the transport configured in cfg.
func New(cfg config.NotifierConfig, timeout time.Duration) (Notifier, error) {
	switch cfg.Kind {
	case "", "log":
		return NewLogNotifier(), nil
	case "smtp":
		n, err := NewSMTP(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.From,
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	case "relay":
		n, err := NewRelay(RelayConfig{
			URL:     cfg.Relay.URL,
			Token:   cfg.Relay.Token,
			From:    cfg.From,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notifier kind %q", cfg.Kind)
	}
}

// Compose renders the level-drop notification for alert.
func Compose(alert models.Alert, current models.Level) (subject, body string) {
	subject = fmt.Sprintf("Occupancy dropped to level %s", current)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	fmt.Fprintf(&b, "Occupancy has dropped since you registered alert #%d.\n\n", alert.ID)
	fmt.Fprintf(&b, "  Level when registered: %s\n", alert.StartingLevel)
	fmt.Fprintf(&b, "  Current level:         %s\n", current)
	fmt.Fprintf(&b, "  Requested duration:    %d hour(s)\n", alert.DurationUnits)
	fmt.Fprintf(&b, "  Registered at:         %s\n\n", alert.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "This alert has now been closed and will not be sent again.\n")
	return subject, b.String()
}

// LogNotifier writes messages to the structured log instead of sending them.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log := logger.WithComponent("notifier")
	log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("notification logged")
	return nil
}
