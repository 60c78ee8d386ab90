package services

import (
	"context"
	"fmt"
	"time"

	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"

	"github.com/go-resty/resty/v2"
)

// Transport delivers one rendered message over one channel. Implementations
// are external collaborators (email gateway, SMS gateway); the dispatcher
// only cares about success or failure.
type Transport interface {
	Send(ctx context.Context, channel string, recipient *models.User, title, body string) error
}

// WebhookTransport posts deliveries to per-channel gateway endpoints. An
// empty endpoint disables the channel, which simply leaves the delivery
// flag false for the external retry subsystem.
type WebhookTransport struct {
	client        *resty.Client
	emailEndpoint string
	smsEndpoint   string
}

type webhookPayload struct {
	Recipient string `json:"recipient"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

func NewWebhookTransport(emailEndpoint, smsEndpoint string, timeout time.Duration) *WebhookTransport {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0). // retries belong to the external delivery subsystem
		SetHeader("Content-Type", "application/json")

	return &WebhookTransport{
		client:        client,
		emailEndpoint: emailEndpoint,
		smsEndpoint:   smsEndpoint,
	}
}

func (t *WebhookTransport) Send(ctx context.Context, channel string, recipient *models.User, title, body string) error {
	var endpoint, address string
	switch channel {
	case models.ChannelEmail:
		endpoint, address = t.emailEndpoint, recipient.Email
	case models.ChannelSMS:
		endpoint, address = t.smsEndpoint, recipient.Phone
	default:
		return &relieferr.TransportFailure{Channel: channel, Err: fmt.Errorf("unknown channel")}
	}
	if endpoint == "" || address == "" {
		return &relieferr.TransportFailure{Channel: channel, Err: fmt.Errorf("channel not configured")}
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Recipient: address, Title: title, Body: body}).
		Post(endpoint)
	if err != nil {
		return &relieferr.TransportFailure{Channel: channel, Err: err}
	}
	if resp.IsError() {
		return &relieferr.TransportFailure{
			Channel: channel,
			Err:     fmt.Errorf("gateway returned %d", resp.StatusCode()),
		}
	}
	return nil
}

// NoopTransport reports success without delivering anything. Used in tests
// and when no gateways are configured.
type NoopTransport struct{}

func (NoopTransport) Send(context.Context, string, *models.User, string, string) error {
	return nil
}
