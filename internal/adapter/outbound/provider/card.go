package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"go.uber.org/zap"
)

// Stripe checkout event types.
const (
	stripeEventCheckoutCompleted     = "checkout.session.completed"
	stripeEventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	stripeEventCheckoutExpired       = "checkout.session.expired"
	stripeEventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

// Metadata keys sent to providers for correlation.
const (
	metaSessionID = "session_id"
	metaOrderID   = "order_id"
)

// CardConfig holds card provider settings.
type CardConfig struct {
	SecretKey          string
	BaseURL            string
	CheckoutURLPattern string
	HTTPClient         *http.Client
}

// cardProvider implements outbound.PaymentProviderPort on Stripe Checkout.
type cardProvider struct {
	api        *client.API
	configured bool
	pattern    string
	verifier   outbound.SignatureVerifierPort
	logger     *zap.Logger
}

// NewCardProvider creates the card provider.
// The Stripe client gets its own backend so tests and multiple instances never share global state.
func NewCardProvider(cfg CardConfig, verifier outbound.SignatureVerifierPort, logger *zap.Logger) outbound.PaymentProviderPort {
	if logger == nil {
		logger = zap.NewNop()
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Named("stripe").Sugar(),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
	}

	return &cardProvider{
		api:        client.New(cfg.SecretKey, backends),
		configured: cfg.SecretKey != "",
		pattern:    cfg.CheckoutURLPattern,
		verifier:   verifier,
		logger:     logger,
	}
}

func (p *cardProvider) Provider() model.Provider {
	return model.ProviderCard
}

func (p *cardProvider) CreateCheckout(ctx context.Context, req *model.CheckoutRequest) (*model.ProviderCheckout, error) {
	if !p.configured {
		return nil, fmt.Errorf("%w: card secret key", outbound.ErrProviderNotConfigured)
	}

	unitAmount, err := MinorUnits(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	name := req.Description
	if name == "" {
		name = "Order " + req.OrderID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.ReturnURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(unitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata(metaSessionID, req.Reference)
	params.AddMetadata(metaOrderID, req.OrderID)

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if s.ID == "" || s.URL == "" {
		return nil, errors.New("create checkout session: response missing id or url")
	}

	out := &model.ProviderCheckout{
		ID:          s.ID,
		CheckoutURL: s.URL,
		Metadata: map[string]any{
			"checkout_session_id": s.ID,
		},
	}
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		out.ProviderRef = s.PaymentIntent.ID
		out.Metadata["payment_intent_id"] = s.PaymentIntent.ID
	}
	return out, nil
}

func (p *cardProvider) FallbackCheckoutURL(sessionID string) string {
	return checkoutURL(p.pattern, sessionID)
}

func (p *cardProvider) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	return p.verifier.Verify(ctx, payload, headers)
}

func (p *cardProvider) ParseEvent(payload []byte) (*model.ProviderEvent, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if evt.Type == "" {
		return nil, errors.New("decode event: missing type")
	}

	out := &model.ProviderEvent{ID: evt.ID, Type: string(evt.Type)}
	switch string(evt.Type) {
	case stripeEventCheckoutCompleted, stripeEventAsyncPaymentSucceeded:
		out.Kind = model.EventKindSucceeded
	case stripeEventCheckoutExpired, stripeEventAsyncPaymentFailed:
		out.Kind = model.EventKindFailed
	default:
		return out, nil
	}

	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, errors.New("decode event: missing data object")
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	// checkout.session.completed also fires for delayed methods before funds settle
	if string(evt.Type) == stripeEventCheckoutCompleted && cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		out.Kind = model.EventKindOther
	}

	out.SessionID = cs.Metadata[metaSessionID]
	if out.SessionID == "" {
		out.SessionID = cs.ClientReferenceID
	}
	out.ProviderRef = cs.ID
	out.OrderID = cs.Metadata[metaOrderID]
	return out, nil
}

var _ outbound.PaymentProviderPort = (*cardProvider)(nil)
