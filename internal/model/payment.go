package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Provider identifies one of the supported payment providers.
type Provider string

const (
	ProviderCard         Provider = "card"
	ProviderWallet       Provider = "wallet"
	ProviderCryptoFiat   Provider = "crypto-fiat"
	ProviderCryptoNative Provider = "crypto-native"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderCard, ProviderWallet, ProviderCryptoFiat, ProviderCryptoNative}

// ParseProvider converts a string into a Provider.
func ParseProvider(s string) (Provider, bool) {
	for _, p := range Providers {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// IDTag returns the tag used as prefix of locally generated session ids.
func (p Provider) IDTag() string {
	switch p {
	case ProviderCryptoFiat:
		return "cryptofiat"
	case ProviderCryptoNative:
		return "cryptonative"
	default:
		return string(p)
	}
}

// SessionStatus represents the status of a payment session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// CanTransitionTo returns true if the status can transition to the target status.
// Only pending sessions move, and only into a terminal state.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	return s == SessionStatusPending && target.IsTerminal()
}

// PaymentRequest is the provider-agnostic input of a checkout.
type PaymentRequest struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	Description   string
	ReturnURL     string
	CancelURL     string
	CustomerEmail string
	UserID        string
}

// CheckoutRequest is what a provider adapter receives.
// Reference is the locally generated id the provider echoes back in webhooks.
type CheckoutRequest struct {
	PaymentRequest
	Reference string
}

// ProviderCheckout is the normalized result of a provider session creation call.
type ProviderCheckout struct {
	ID          string
	CheckoutURL string
	ProviderRef string
	Metadata    map[string]any
}

// PaymentSession represents one checkout attempt and its outcome.
type PaymentSession struct {
	ID               string            `json:"id" gorm:"primaryKey;size:128"`
	Provider         Provider          `json:"provider" gorm:"size:32;not null;index:idx_payment_sessions_provider"`
	OrderID          string            `json:"order_id" gorm:"size:128;not null;index"`
	Amount           decimal.Decimal   `json:"amount" gorm:"type:numeric(20,8);not null"`
	Currency         string            `json:"currency" gorm:"size:3;not null"`
	Status           SessionStatus     `json:"status" gorm:"size:16;not null"`
	CheckoutURL      string            `json:"checkout_url" gorm:"not null"`
	Reference        string            `json:"reference" gorm:"size:64;index"`
	ProviderRef      string            `json:"provider_ref,omitempty" gorm:"size:128;index"`
	ProviderMetadata datatypes.JSONMap `json:"provider_metadata,omitempty" gorm:"type:jsonb"`
	Degraded         bool              `json:"degraded"`
	Description      string            `json:"description,omitempty"`
	CustomerEmail    string            `json:"customer_email,omitempty"`
	UserID           string            `json:"user_id,omitempty" gorm:"size:64"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// TableName returns the table name for GORM.
func (PaymentSession) TableName() string {
	return "payment_sessions"
}

// Clone returns a deep copy of the session.
func (s *PaymentSession) Clone() *PaymentSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.ProviderMetadata != nil {
		c.ProviderMetadata = make(datatypes.JSONMap, len(s.ProviderMetadata))
		for k, v := range s.ProviderMetadata {
			c.ProviderMetadata[k] = v
		}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// EventOutcome is what a webhook did to the session it targeted.
type EventOutcome string

const (
	EventOutcomeCompleted EventOutcome = "completed"
	EventOutcomeFailed    EventOutcome = "failed"
	EventOutcomeIgnored   EventOutcome = "ignored"
)

// EventKind classifies a provider event type.
type EventKind int

const (
	EventKindOther EventKind = iota
	EventKindSucceeded
	EventKindFailed
)

// ProviderEvent is a parsed, provider-independent view of a webhook envelope.
type ProviderEvent struct {
	ID          string
	Type        string
	Kind        EventKind
	SessionID   string // explicit session id echoed in metadata
	ProviderRef string // provider's own order or charge id
	OrderID     string
}

// WebhookEvent is the derived result of one webhook delivery.
type WebhookEvent struct {
	Provider    Provider     `json:"provider"`
	RawPayload  []byte       `json:"-"`
	Verified    bool         `json:"verified"`
	EventID     string       `json:"event_id,omitempty"`
	EventType   string       `json:"event_type,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	OrderID     string       `json:"order_id,omitempty"`
	ProviderRef string       `json:"provider_ref,omitempty"`
	Outcome     EventOutcome `json:"outcome"`
	Reason      string       `json:"reason,omitempty"`
}

// Ignore marks the event as ignored for reason and returns it.
func (e *WebhookEvent) Ignore(reason string) *WebhookEvent {
	e.Outcome = EventOutcomeIgnored
	e.Reason = reason
	return e
}

// Webhook ignore reasons.
const (
	ReasonUnknownEvent    = "unknown_event"
	ReasonMalformed       = "malformed_payload"
	ReasonOrphaned        = "orphaned"
	ReasonDegraded        = "degraded_session"
	ReasonAlreadyTerminal = "already_terminal"
)

// WebhookEventRecord is the persisted audit row of a verified webhook.
type WebhookEventRecord struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	Provider   Provider  `json:"provider" gorm:"size:32;not null;index"`
	EventID    string    `json:"event_id" gorm:"size:128;index"`
	EventType  string    `json:"event_type" gorm:"size:128"`
	SessionID  string    `json:"session_id,omitempty" gorm:"size:128;index"`
	Outcome    string    `json:"outcome" gorm:"size:16"`
	Reason     string    `json:"reason,omitempty" gorm:"size:64"`
	ReceivedAt time.Time `json:"received_at"`
}

// TableName returns the table name for GORM.
func (WebhookEventRecord) TableName() string {
	return "webhook_events"
}

// CompletionNotice is delivered to notification channels when a session completes.
type CompletionNotice struct {
	OrderID     string          `json:"order_id"`
	SessionID   string          `json:"session_id"`
	Provider    Provider        `json:"provider"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Identity is the verified caller returned by the identity collaborator.
type Identity struct {
	Subject string
	Email   string
}
