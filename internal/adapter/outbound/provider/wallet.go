package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/uniedit/paygate/internal/adapter/outbound/signature"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// PayPal webhook event types.
const (
	paypalEventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	paypalEventOrderCompleted   = "CHECKOUT.ORDER.COMPLETED"
	paypalEventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	paypalEventOrderVoided      = "CHECKOUT.ORDER.VOIDED"
)

const (
	paypalTokenPath  = "/v1/oauth2/token"
	paypalOrdersPath = "/v2/checkout/orders"
	paypalVerifyPath = "/v1/notifications/verify-webhook-signature"
)

// WalletConfig holds wallet provider settings.
type WalletConfig struct {
	ClientID           string
	ClientSecret       string
	WebhookID          string
	BaseURL            string
	BrandName          string
	CheckoutURLPattern string
	HTTPClient         *http.Client
	Policy             signature.Policy
}

// walletProvider implements outbound.PaymentProviderPort on PayPal Orders v2.
type walletProvider struct {
	client     *http.Client
	baseURL    string
	brandName  string
	pattern    string
	configured bool
	verifier   outbound.SignatureVerifierPort
	logger     *zap.Logger
}

// NewWalletProvider creates the wallet provider.
// Requests are authorized with client-credentials tokens cached by oauth2.
func NewWalletProvider(cfg WalletConfig, logger *zap.Logger) outbound.PaymentProviderPort {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + paypalTokenPath,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	authClient := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	authClient.Timeout = base.Timeout

	return &walletProvider{
		client:     authClient,
		baseURL:    baseURL,
		brandName:  cfg.BrandName,
		pattern:    cfg.CheckoutURLPattern,
		configured: cfg.ClientID != "" && cfg.ClientSecret != "",
		verifier:   signature.NewRemoteVerifier(authClient, baseURL+paypalVerifyPath, cfg.WebhookID, cfg.Policy, logger),
		logger:     logger,
	}
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	CustomID    string       `json:"custom_id"`
	Description string       `json:"description,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

type paypalApplicationContext struct {
	ReturnURL  string `json:"return_url"`
	CancelURL  string `json:"cancel_url"`
	BrandName  string `json:"brand_name,omitempty"`
	UserAction string `json:"user_action"`
}

type paypalOrderRequest struct {
	Intent             string                   `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit     `json:"purchase_units"`
	ApplicationContext paypalApplicationContext `json:"application_context"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

func (p *walletProvider) Provider() model.Provider {
	return model.ProviderWallet
}

func (p *walletProvider) CreateCheckout(ctx context.Context, req *model.CheckoutRequest) (*model.ProviderCheckout, error) {
	if !p.configured {
		return nil, fmt.Errorf("%w: wallet client credentials", outbound.ErrProviderNotConfigured)
	}

	value, err := FormatAmount(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	body := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.OrderID,
			CustomID:    req.Reference,
			Description: req.Description,
			Amount: paypalAmount{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        value,
			},
		}},
		ApplicationContext: paypalApplicationContext{
			ReturnURL:  req.ReturnURL,
			CancelURL:  req.CancelURL,
			BrandName:  p.brandName,
			UserAction: "PAY_NOW",
		},
	}
	headers := map[string]string{"PayPal-Request-Id": req.Reference}

	var resp paypalOrderResponse
	if err := postJSON(ctx, p.client, p.baseURL+paypalOrdersPath, headers, body, &resp); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	approve := ""
	for _, l := range resp.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approve = l.Href
			break
		}
	}
	if resp.ID == "" || approve == "" {
		return nil, errors.New("create order: response missing id or approval link")
	}

	return &model.ProviderCheckout{
		ID:          resp.ID,
		CheckoutURL: approve,
		ProviderRef: resp.ID,
		Metadata: map[string]any{
			"order_status": resp.Status,
		},
	}, nil
}

func (p *walletProvider) FallbackCheckoutURL(sessionID string) string {
	return checkoutURL(p.pattern, sessionID)
}

func (p *walletProvider) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	return p.verifier.Verify(ctx, payload, headers)
}

type paypalWebhook struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string               `json:"id"`
		CustomID          string               `json:"custom_id"`
		PurchaseUnits     []paypalPurchaseUnit `json:"purchase_units"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (p *walletProvider) ParseEvent(payload []byte) (*model.ProviderEvent, error) {
	var evt paypalWebhook
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if evt.EventType == "" {
		return nil, errors.New("decode event: missing event_type")
	}

	out := &model.ProviderEvent{ID: evt.ID, Type: evt.EventType}
	switch evt.EventType {
	case paypalEventCaptureCompleted, paypalEventOrderCompleted:
		out.Kind = model.EventKindSucceeded
	case paypalEventCaptureDenied, paypalEventOrderVoided:
		out.Kind = model.EventKindFailed
	default:
		return out, nil
	}

	res := evt.Resource
	out.SessionID = res.CustomID
	if out.SessionID == "" && len(res.PurchaseUnits) > 0 {
		out.SessionID = res.PurchaseUnits[0].CustomID
	}
	if len(res.PurchaseUnits) > 0 {
		out.OrderID = res.PurchaseUnits[0].ReferenceID
	}
	// capture events carry the capture id; the order id lives in supplementary data
	out.ProviderRef = res.SupplementaryData.RelatedIDs.OrderID
	if out.ProviderRef == "" {
		out.ProviderRef = res.ID
	}
	return out, nil
}

var _ outbound.PaymentProviderPort = (*walletProvider)(nil)
