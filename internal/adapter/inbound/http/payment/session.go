package paymenthttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/paygate/internal/domain/payment"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/inbound"
	"github.com/uniedit/paygate/internal/utils/middleware"
)

// SessionHandler handles payment session HTTP requests.
type SessionHandler struct {
	domain payment.PaymentDomain
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(domain payment.PaymentDomain) *SessionHandler {
	return &SessionHandler{domain: domain}
}

// RegisterRoutes registers session routes. Extra handlers run before the
// create endpoint only.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup, createMiddleware ...gin.HandlerFunc) {
	sessions := r.Group("/payments/sessions")
	{
		sessions.POST("", append(createMiddleware, h.CreateSession)...)
		sessions.GET("/:id", h.GetSession)
	}
}

// CreateSession handles POST /payments/sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    "invalid_input",
			Message: err.Error(),
		})
		return
	}

	provider, ok := model.ParseProvider(req.Provider)
	if !ok {
		handleError(c, payment.ErrUnknownProvider)
		return
	}

	paymentReq := req.ToPaymentRequest()
	paymentReq.UserID = middleware.GetUserID(c)

	session, err := h.domain.CreateSession(c.Request.Context(), provider, paymentReq)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.NewCreateSessionResponse(session))
}

// GetSession handles GET /payments/sessions/:id.
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.domain.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionStatusResponse(session))
}

// Compile-time check
var _ inbound.PaymentHttpPort = (*SessionHandler)(nil)
