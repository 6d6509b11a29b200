package paymenthttp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/paygate/internal/domain/payment"
	"github.com/uniedit/paygate/internal/model"
)

// handleError maps payment domain errors to HTTP responses.
func handleError(c *gin.Context, err error) {
	var statusCode int
	var errorCode string
	var message string

	switch {
	case errors.Is(err, payment.ErrInvalidRequest):
		statusCode = http.StatusBadRequest
		errorCode = "invalid_request"
		message = err.Error()

	case errors.Is(err, payment.ErrUnknownProvider):
		statusCode = http.StatusBadRequest
		errorCode = "unknown_provider"
		message = "Unknown payment provider"

	case errors.Is(err, payment.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		errorCode = "session_not_found"
		message = "Payment session not found"

	case errors.Is(err, payment.ErrConfiguration):
		statusCode = http.StatusInternalServerError
		errorCode = "provider_not_configured"
		message = "Payment provider is not configured"

	case errors.Is(err, payment.ErrProviderUnavailable):
		statusCode = http.StatusServiceUnavailable
		errorCode = "provider_unavailable"
		message = "Payment provider not available"

	default:
		statusCode = http.StatusInternalServerError
		errorCode = "internal_error"
		message = "Internal server error"
	}

	_ = c.Error(err)
	c.JSON(statusCode, model.ErrorResponse{
		Code:    errorCode,
		Message: message,
	})
}
