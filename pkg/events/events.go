package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	WebhookQueue = "webhook_events"
	FailedQueue  = "failed_webhook_events"
)

// ErrEmpty is returned by Next when nothing arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

// WebhookEvent is an authenticated gateway notification waiting to be applied.
type WebhookEvent struct {
	Event        string    `json:"event"`
	Reference    string    `json:"reference"`
	Status       string    `json:"status"`
	AmountMinor  int64     `json:"amount"`
	PayerContact string    `json:"payer_contact"`
	// Purpose is the checkout metadata tag, e.g. "wallet_topup" or "agent_upgrade".
	Purpose      string    `json:"purpose,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Queue carries webhook events from the HTTP handler to the worker.
type Queue interface {
	Publish(ctx context.Context, event WebhookEvent) error
	Next(ctx context.Context, timeout time.Duration) ([]byte, error)
	PushToDLQ(ctx context.Context, data []byte) error
}

func encode(event WebhookEvent) ([]byte, error) {
	return json.Marshal(event)
}
