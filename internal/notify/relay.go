package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RelayConfig configures an HTTP mail relay.
type RelayConfig struct {
	URL     string
	Token   string
	From    string
	Timeout time.Duration
}

// RelayNotifier posts messages as JSON to an HTTP mail relay.
type RelayNotifier struct {
	url    string
	from   string
	client *resty.Client
}

// relayMessage is the JSON body accepted by the relay
type relayMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// NewRelay returns a relay notifier sharing one HTTP client.
func NewRelay(cfg RelayConfig) (*RelayNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("relay url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "occupancy-notifier")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &RelayNotifier{url: cfg.URL, from: cfg.From, client: client}, nil
}

func (n *RelayNotifier) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return ErrNoRecipient
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(relayMessage{From: n.from, To: to, Subject: subject, Text: body}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("relay returned %s", resp.Status())
	}
	return nil
}
