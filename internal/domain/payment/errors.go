package payment

import "errors"

var (
	// ErrConfiguration is returned when a provider lacks required credentials.
	// Callers must not retry.
	ErrConfiguration = errors.New("provider not configured")

	// ErrProviderUnavailable is returned when a provider call fails and
	// degraded sessions are disabled.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSignatureInvalid is returned when a webhook fails authentication.
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrSessionNotFound is returned when no session matches an id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownProvider is returned for provider tags outside the configured set.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrInvalidRequest is returned when a payment request fails validation.
	ErrInvalidRequest = errors.New("invalid payment request")
)
