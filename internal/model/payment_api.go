package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateSessionRequest is the body of POST /payments/sessions.
type CreateSessionRequest struct {
	Provider      string          `json:"provider" binding:"required,oneof=card wallet crypto-fiat crypto-native"`
	OrderID       string          `json:"orderId" binding:"required,max=128"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" binding:"required,iso4217"`
	Description   string          `json:"description" binding:"max=500"`
	ReturnURL     string          `json:"returnUrl" binding:"required,url"`
	CancelURL     string          `json:"cancelUrl" binding:"required,url"`
	CustomerEmail string          `json:"customerEmail" binding:"omitempty,email"`
}

// ToPaymentRequest converts the body into the provider-agnostic request.
func (r *CreateSessionRequest) ToPaymentRequest() *PaymentRequest {
	return &PaymentRequest{
		OrderID:       r.OrderID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Description:   r.Description,
		ReturnURL:     r.ReturnURL,
		CancelURL:     r.CancelURL,
		CustomerEmail: r.CustomerEmail,
	}
}

// CreateSessionResponse is returned after a session is created.
type CreateSessionResponse struct {
	SessionID  string          `json:"sessionId"`
	PaymentURL string          `json:"paymentUrl"`
	Provider   Provider        `json:"provider"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OrderID    string          `json:"orderId"`
}

// SessionStatusResponse is returned by the status query.
type SessionStatusResponse struct {
	SessionID string          `json:"sessionId"`
	Status    SessionStatus   `json:"status"`
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Provider  Provider        `json:"provider"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewCreateSessionResponse builds the response for a created session.
func NewCreateSessionResponse(s *PaymentSession) *CreateSessionResponse {
	return &CreateSessionResponse{
		SessionID:  s.ID,
		PaymentURL: s.CheckoutURL,
		Provider:   s.Provider,
		Amount:     s.Amount,
		Currency:   s.Currency,
		OrderID:    s.OrderID,
	}
}

// NewSessionStatusResponse builds the response for a status query.
func NewSessionStatusResponse(s *PaymentSession) *SessionStatusResponse {
	return &SessionStatusResponse{
		SessionID: s.ID,
		Status:    s.Status,
		OrderID:   s.OrderID,
		Amount:    s.Amount,
		Currency:  s.Currency,
		Provider:  s.Provider,
		CreatedAt: s.CreatedAt,
	}
}

// WebhookAckResponse acknowledges an accepted webhook.
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

// WebhookErrorResponse rejects a webhook.
type WebhookErrorResponse struct {
	Error string `json:"error"`
}
