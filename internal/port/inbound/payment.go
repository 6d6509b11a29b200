package inbound

import "github.com/gin-gonic/gin"

// PaymentHttpPort defines HTTP handler interface for payment session operations.
type PaymentHttpPort interface {
	// CreateSession handles POST /payments/sessions
	// Creates a checkout session with the requested provider.
	CreateSession(c *gin.Context)

	// GetSession handles GET /payments/sessions/:id
	// Returns the current status of a session.
	GetSession(c *gin.Context)
}

// WebhookHttpPort defines HTTP handler interface for webhook operations.
type WebhookHttpPort interface {
	// HandleWebhook handles POST /webhooks/:provider
	// Verifies and processes a provider notification.
	HandleWebhook(c *gin.Context)
}
