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

// Coinbase Commerce event types.
const (
	coinbaseEventConfirmed = "charge:confirmed"
	coinbaseEventResolved  = "charge:resolved"
	coinbaseEventFailed    = "charge:failed"
)

const defaultCoinbaseAPIVersion = "2018-03-22"

// CryptoFiatConfig holds crypto-to-fiat provider settings.
type CryptoFiatConfig struct {
	APIKey             string
	APIVersion         string
	BaseURL            string
	CheckoutURLPattern string
	HTTPClient         *http.Client
}

// cryptoFiatProvider implements outbound.PaymentProviderPort on Coinbase Commerce charges.
type cryptoFiatProvider struct {
	client     *http.Client
	apiKey     string
	apiVersion string
	baseURL    string
	pattern    string
	verifier   outbound.SignatureVerifierPort
	logger     *zap.Logger
}

// NewCryptoFiatProvider creates the crypto-to-fiat provider.
func NewCryptoFiatProvider(cfg CryptoFiatConfig, verifier outbound.SignatureVerifierPort, logger *zap.Logger) outbound.PaymentProviderPort {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultCoinbaseAPIVersion
	}
	return &cryptoFiatProvider{
		client:     client,
		apiKey:     cfg.APIKey,
		apiVersion: version,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pattern:    cfg.CheckoutURLPattern,
		verifier:   verifier,
		logger:     logger,
	}
}

type coinbaseMoney struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type coinbaseChargeRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	PricingType string            `json:"pricing_type"`
	LocalPrice  coinbaseMoney     `json:"local_price"`
	Metadata    map[string]string `json:"metadata"`
	RedirectURL string            `json:"redirect_url"`
	CancelURL   string            `json:"cancel_url"`
}

type coinbaseCharge struct {
	ID        string            `json:"id"`
	Code      string            `json:"code"`
	HostedURL string            `json:"hosted_url"`
	Metadata  map[string]string `json:"metadata"`
}

type coinbaseChargeResponse struct {
	Data coinbaseCharge `json:"data"`
}

func (p *cryptoFiatProvider) Provider() model.Provider {
	return model.ProviderCryptoFiat
}

func (p *cryptoFiatProvider) CreateCheckout(ctx context.Context, req *model.CheckoutRequest) (*model.ProviderCheckout, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: crypto-fiat api key", outbound.ErrProviderNotConfigured)
	}

	amount, err := FormatAmount(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	description := req.Description
	if description == "" {
		description = "Order " + req.OrderID
	}

	body := coinbaseChargeRequest{
		Name:        "Order " + req.OrderID,
		Description: description,
		PricingType: "fixed_price",
		LocalPrice:  coinbaseMoney{Amount: amount, Currency: strings.ToUpper(req.Currency)},
		Metadata: map[string]string{
			metaSessionID: req.Reference,
			metaOrderID:   req.OrderID,
		},
		RedirectURL: req.ReturnURL,
		CancelURL:   req.CancelURL,
	}
	headers := map[string]string{
		"X-CC-Api-Key": p.apiKey,
		"X-CC-Version": p.apiVersion,
	}

	var resp coinbaseChargeResponse
	if err := postJSON(ctx, p.client, p.baseURL+"/charges", headers, body, &resp); err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}
	if resp.Data.ID == "" || resp.Data.HostedURL == "" {
		return nil, errors.New("create charge: response missing id or hosted_url")
	}

	return &model.ProviderCheckout{
		ID:          resp.Data.ID,
		CheckoutURL: resp.Data.HostedURL,
		ProviderRef: resp.Data.Code,
		Metadata: map[string]any{
			"charge_code": resp.Data.Code,
		},
	}, nil
}

func (p *cryptoFiatProvider) FallbackCheckoutURL(sessionID string) string {
	return checkoutURL(p.pattern, sessionID)
}

func (p *cryptoFiatProvider) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	return p.verifier.Verify(ctx, payload, headers)
}

type coinbaseWebhook struct {
	Event struct {
		ID   string         `json:"id"`
		Type string         `json:"type"`
		Data coinbaseCharge `json:"data"`
	} `json:"event"`
}

func (p *cryptoFiatProvider) ParseEvent(payload []byte) (*model.ProviderEvent, error) {
	var w coinbaseWebhook
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if w.Event.Type == "" {
		return nil, errors.New("decode event: missing event.type")
	}

	out := &model.ProviderEvent{ID: w.Event.ID, Type: w.Event.Type}
	switch w.Event.Type {
	case coinbaseEventConfirmed, coinbaseEventResolved:
		out.Kind = model.EventKindSucceeded
	case coinbaseEventFailed:
		out.Kind = model.EventKindFailed
	default:
		return out, nil
	}

	data := w.Event.Data
	out.SessionID = data.Metadata[metaSessionID]
	out.OrderID = data.Metadata[metaOrderID]
	out.ProviderRef = data.Code
	if out.SessionID == "" {
		// the charge id is the session id when the provider call succeeded
		out.SessionID = data.ID
	}
	return out, nil
}

var _ outbound.PaymentProviderPort = (*cryptoFiatProvider)(nil)
