// Package payment reconciles the external payment provider with the
// order lifecycle: checkout session creation, idempotent webhook
// ingestion and manual admin overrides.
package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyApproved = errors.New("order payment already approved")
	ErrEventNotFound   = errors.New("webhook event not found")
)

type Payment struct {
	ID                string  `json:"id"`
	OrderID           string  `json:"order_id"`
	Provider          string  `json:"provider"`
	ProviderPaymentID *string `json:"provider_payment_id,omitempty"`

	Status       string  `json:"status"`
	StatusDetail *string `json:"status_detail,omitempty"`
	Method       *string `json:"method,omitempty"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	Note *string `json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookEvent is the idempotency record: the unique (provider,
// event_id) pair makes the insert the serialization point. A failure
// after the insert lands in ProcessError for later review; the
// provider still gets an acknowledgement either way.
type WebhookEvent struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	EventID  string `json:"event_id"`

	Payload      []byte  `json:"-"`
	Processed    bool    `json:"processed"`
	ProcessError *string `json:"process_error,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}
