package paymenthttp

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/paygate/internal/domain/payment"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/inbound"
)

const defaultMaxWebhookBytes = 1 << 20

// WebhookHandler handles payment webhook HTTP requests.
type WebhookHandler struct {
	domain   payment.PaymentDomain
	maxBytes int64
}

// NewWebhookHandler creates a new webhook handler. Bodies above maxBytes are rejected.
func NewWebhookHandler(domain payment.PaymentDomain, maxBytes int64) *WebhookHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxWebhookBytes
	}
	return &WebhookHandler{domain: domain, maxBytes: maxBytes}
}

// RegisterRoutes registers webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/:provider", h.HandleWebhook)
}

// HandleWebhook handles POST /webhooks/:provider.
// Only signature failures are rejected; everything the provider sent in good
// faith is acknowledged so it stops retrying.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider, ok := model.ParseProvider(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusNotFound, model.WebhookErrorResponse{Error: "unknown provider"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, model.WebhookErrorResponse{Error: "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, model.WebhookErrorResponse{Error: "invalid payload"})
		return
	}

	_, err = h.domain.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, model.WebhookAckResponse{Received: true})
	case errors.Is(err, payment.ErrSignatureInvalid):
		c.JSON(http.StatusBadRequest, model.WebhookErrorResponse{Error: "invalid signature"})
	case errors.Is(err, payment.ErrUnknownProvider):
		c.JSON(http.StatusNotFound, model.WebhookErrorResponse{Error: "unknown provider"})
	default:
		// Store failures: a 5xx makes the provider redeliver later.
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, model.WebhookErrorResponse{Error: "internal error"})
	}
}

// Compile-time check
var _ inbound.WebhookHttpPort = (*WebhookHandler)(nil)
