package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"go.uber.org/zap"
)

// Native processor event types.
const (
	nativeEventCompleted = "payment.completed"
	nativeEventFailed    = "payment.failed"
)

// CryptoNativeConfig holds native crypto processor settings.
type CryptoNativeConfig struct {
	APIKey             string
	BaseURL            string
	CheckoutURLPattern string
	HTTPClient         *http.Client
}

// cryptoNativeProvider implements outbound.PaymentProviderPort on a generic
// crypto processor charges API.
type cryptoNativeProvider struct {
	client   *http.Client
	apiKey   string
	baseURL  string
	pattern  string
	verifier outbound.SignatureVerifierPort
	logger   *zap.Logger
}

// NewCryptoNativeProvider creates the native crypto provider.
func NewCryptoNativeProvider(cfg CryptoNativeConfig, verifier outbound.SignatureVerifierPort, logger *zap.Logger) outbound.PaymentProviderPort {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &cryptoNativeProvider{
		client:   client,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pattern:  cfg.CheckoutURLPattern,
		verifier: verifier,
		logger:   logger,
	}
}

type nativeChargeRequest struct {
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	OrderID       string            `json:"order_id"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	CustomerEmail string            `json:"customer_email,omitempty"`
}

type nativeChargeResponse struct {
	ID         string `json:"id"`
	PaymentURL string `json:"payment_url"`
}

func (p *cryptoNativeProvider) Provider() model.Provider {
	return model.ProviderCryptoNative
}

func (p *cryptoNativeProvider) CreateCheckout(ctx context.Context, req *model.CheckoutRequest) (*model.ProviderCheckout, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: crypto-native api key", outbound.ErrProviderNotConfigured)
	}

	amount, err := FormatAmount(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	body := nativeChargeRequest{
		Amount:        amount,
		Currency:      strings.ToUpper(req.Currency),
		OrderID:       req.OrderID,
		Description:   req.Description,
		Metadata:      map[string]string{metaSessionID: req.Reference},
		SuccessURL:    req.ReturnURL,
		CancelURL:     req.CancelURL,
		CustomerEmail: req.CustomerEmail,
	}
	headers := map[string]string{"X-API-Key": p.apiKey}

	var resp nativeChargeResponse
	if err := postJSON(ctx, p.client, p.baseURL+"/v1/charges", headers, body, &resp); err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}
	if resp.ID == "" || resp.PaymentURL == "" {
		return nil, errors.New("create charge: response missing id or payment_url")
	}

	return &model.ProviderCheckout{
		ID:          resp.ID,
		CheckoutURL: resp.PaymentURL,
		ProviderRef: resp.ID,
	}, nil
}

func (p *cryptoNativeProvider) FallbackCheckoutURL(sessionID string) string {
	return checkoutURL(p.pattern, sessionID)
}

func (p *cryptoNativeProvider) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	return p.verifier.Verify(ctx, payload, headers)
}

type nativeWebhook struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID       string            `json:"id"`
		OrderID  string            `json:"order_id"`
		Metadata map[string]string `json:"metadata"`
	} `json:"data"`
}

func (p *cryptoNativeProvider) ParseEvent(payload []byte) (*model.ProviderEvent, error) {
	var w nativeWebhook
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if w.Type == "" {
		return nil, errors.New("decode event: missing type")
	}

	out := &model.ProviderEvent{ID: w.ID, Type: w.Type}
	switch w.Type {
	case nativeEventCompleted:
		out.Kind = model.EventKindSucceeded
	case nativeEventFailed:
		out.Kind = model.EventKindFailed
	default:
		return out, nil
	}

	out.SessionID = w.Data.Metadata[metaSessionID]
	out.ProviderRef = w.Data.ID
	out.OrderID = w.Data.OrderID
	return out, nil
}

var _ outbound.PaymentProviderPort = (*cryptoNativeProvider)(nil)
