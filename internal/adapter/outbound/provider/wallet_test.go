package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/paygate/internal/adapter/outbound/signature"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

func newPayPalServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "wallet_ref", r.Header.Get("PayPal-Request-Id"))

		var body paypalOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "ORD-1", body.PurchaseUnits[0].ReferenceID)
		assert.Equal(t, "wallet_ref", body.PurchaseUnits[0].CustomID)
		assert.Equal(t, "GBP", body.PurchaseUnits[0].Amount.CurrencyCode)
		assert.Equal(t, "100.00", body.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "PAY_NOW", body.ApplicationContext.UserAction)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED","links":[{"href":"https://api.example.com/self","rel":"self"},{"href":"https://www.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"approve"}]}`))
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"verification_status":"SUCCESS"}`))
	})
	return httptest.NewServer(mux)
}

func TestWalletProvider_CreateCheckout(t *testing.T) {
	t.Run("creates order", func(t *testing.T) {
		srv := newPayPalServer(t)
		defer srv.Close()

		p := NewWalletProvider(WalletConfig{
			ClientID:     "client",
			ClientSecret: "secret",
			BaseURL:      srv.URL,
			HTTPClient:   srv.Client(),
		}, nil)

		out, err := p.CreateCheckout(context.Background(), newCheckoutRequest("wallet_ref"))
		require.NoError(t, err)
		assert.Equal(t, "5O190127TN364715T", out.ID)
		assert.Equal(t, "5O190127TN364715T", out.ProviderRef)
		assert.Equal(t, "https://www.paypal.com/checkoutnow?token=5O190127TN364715T", out.CheckoutURL)
	})

	t.Run("missing credentials", func(t *testing.T) {
		p := NewWalletProvider(WalletConfig{ClientID: "client"}, nil)
		_, err := p.CreateCheckout(context.Background(), newCheckoutRequest("wallet_ref"))
		assert.ErrorIs(t, err, outbound.ErrProviderNotConfigured)
	})

	t.Run("missing approve link", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
		})
		mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"ORDER-1","links":[]}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		p := NewWalletProvider(WalletConfig{ClientID: "client", ClientSecret: "secret", BaseURL: srv.URL, HTTPClient: srv.Client()}, nil)
		_, err := p.CreateCheckout(context.Background(), newCheckoutRequest("wallet_ref"))
		assert.Error(t, err)
	})
}

func TestWalletProvider_VerifyWebhook(t *testing.T) {
	srv := newPayPalServer(t)
	defer srv.Close()

	p := NewWalletProvider(WalletConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "WH-1",
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
	}, nil)

	headers := http.Header{}
	headers.Set(signature.PayPalAuthAlgoHeader, "SHA256withRSA")
	headers.Set(signature.PayPalCertURLHeader, "https://api.paypal.com/cert")
	headers.Set(signature.PayPalTransmissionIDHeader, "tid")
	headers.Set(signature.PayPalTransmissionSigHeader, "sig")
	headers.Set(signature.PayPalTransmissionTimeHeader, "2024-01-01T00:00:00Z")

	err := p.VerifyWebhook(context.Background(), []byte(`{"id":"WH-EVT"}`), headers)
	assert.NoError(t, err)

	err = p.VerifyWebhook(context.Background(), []byte(`{"id":"WH-EVT"}`), http.Header{})
	assert.Error(t, err)
}

func TestWalletProvider_ParseEvent(t *testing.T) {
	p := NewWalletProvider(WalletConfig{}, nil)

	t.Run("capture completed", func(t *testing.T) {
		payload := `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1","custom_id":"wallet_ref","supplementary_data":{"related_ids":{"order_id":"ORDER-1"}}}}`
		evt, err := p.ParseEvent([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, model.EventKindSucceeded, evt.Kind)
		assert.Equal(t, "wallet_ref", evt.SessionID)
		assert.Equal(t, "ORDER-1", evt.ProviderRef)
	})

	t.Run("order completed uses purchase unit", func(t *testing.T) {
		payload := `{"id":"WH-2","event_type":"CHECKOUT.ORDER.COMPLETED","resource":{"id":"ORDER-1","purchase_units":[{"reference_id":"ORD-1","custom_id":"wallet_ref","amount":{"currency_code":"GBP","value":"100.00"}}]}}`
		evt, err := p.ParseEvent([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, model.EventKindSucceeded, evt.Kind)
		assert.Equal(t, "wallet_ref", evt.SessionID)
		assert.Equal(t, "ORDER-1", evt.ProviderRef)
		assert.Equal(t, "ORD-1", evt.OrderID)
	})

	t.Run("capture denied", func(t *testing.T) {
		evt, err := p.ParseEvent([]byte(`{"id":"WH-3","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"CAP-1"}}`))
		require.NoError(t, err)
		assert.Equal(t, model.EventKindFailed, evt.Kind)
	})

	t.Run("approved is ignored", func(t *testing.T) {
		evt, err := p.ParseEvent([]byte(`{"id":"WH-4","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-1"}}`))
		require.NoError(t, err)
		assert.Equal(t, model.EventKindOther, evt.Kind)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := p.ParseEvent([]byte(`{"id":"WH-5"}`))
		assert.Error(t, err)
	})
}
