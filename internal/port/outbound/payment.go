package outbound

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/uniedit/paygate/internal/model"
)

var (
	// ErrSessionNotFound is returned by a session store when no session matches.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned by Put when the id is already taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrProviderNotFound is returned by the registry for unregistered tags.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderNotConfigured is returned by adapters missing required credentials.
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrProviderCircuitOpen is returned without calling a provider whose breaker is open.
	ErrProviderCircuitOpen = errors.New("provider circuit open")

	// ErrSignatureInvalid is returned when a webhook signature does not verify.
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrSignatureMissing is returned when a signature is required but absent.
	ErrSignatureMissing = errors.New("missing signature")
)

// PaymentProviderPort is one external payment provider.
// Implementations are a closed set, one per model.Provider.
type PaymentProviderPort interface {
	// Provider returns the provider tag.
	Provider() model.Provider

	// CreateCheckout calls the provider and returns its hosted checkout.
	// Returns ErrProviderNotConfigured when credentials are missing.
	CreateCheckout(ctx context.Context, req *model.CheckoutRequest) (*model.ProviderCheckout, error)

	// FallbackCheckoutURL builds a best-effort hosted checkout URL for a local id.
	FallbackCheckoutURL(sessionID string) string

	// VerifyWebhook authenticates a raw webhook delivery.
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error

	// ParseEvent interprets a verified webhook envelope.
	ParseEvent(payload []byte) (*model.ProviderEvent, error)
}

// PaymentProviderRegistryPort resolves providers by tag.
type PaymentProviderRegistryPort interface {
	// Get returns the provider for a tag.
	Get(provider model.Provider) (PaymentProviderPort, error)

	// List returns all registered provider tags.
	List() []model.Provider
}

// SignatureVerifierPort authenticates webhook payloads for one scheme.
type SignatureVerifierPort interface {
	// Verify returns nil when the payload is authentic.
	Verify(ctx context.Context, payload []byte, headers http.Header) error
}

// SessionStorePort is the single source of truth for session status.
type SessionStorePort interface {
	// Put stores a new session. Returns ErrSessionExists on id collision.
	Put(ctx context.Context, session *model.PaymentSession) error

	// Get returns a session by id.
	Get(ctx context.Context, id string) (*model.PaymentSession, error)

	// FindByReference returns the session whose local reference or provider
	// reference equals ref for the given provider.
	FindByReference(ctx context.Context, provider model.Provider, ref string) (*model.PaymentSession, error)

	// UpdateStatus moves a pending session to status. It reports whether this
	// call performed the transition; a terminal session is returned unchanged.
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus) (*model.PaymentSession, bool, error)
}

// CompletionNotifierPort delivers completion notices to an external channel.
type CompletionNotifierPort interface {
	// NotifyCompletion sends one notice. Failures are reported but never retried by callers.
	NotifyCompletion(ctx context.Context, notice *model.CompletionNotice) error
}

// WebhookEventLogPort records verified webhook deliveries.
type WebhookEventLogPort interface {
	// Record stores an audit row.
	Record(ctx context.Context, record *model.WebhookEventRecord) error
}

// IdentityVerifierPort verifies caller tokens.
type IdentityVerifierPort interface {
	// Verify returns the identity behind a token.
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// RateLimiterPort defines rate limiting operations.
type RateLimiterPort interface {
	// Allow checks if a request is allowed within rate limits.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// GetRemaining returns remaining requests in window.
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// PaymentMetricsPort receives domain-level counters.
type PaymentMetricsPort interface {
	// SessionCreated counts a created session.
	SessionCreated(provider model.Provider, degraded bool)

	// WebhookProcessed counts a webhook delivery by result.
	WebhookProcessed(provider model.Provider, result string)

	// ProviderCall observes the latency of an outbound provider call.
	ProviderCall(provider model.Provider, success bool, duration time.Duration)
}
