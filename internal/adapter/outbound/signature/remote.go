package signature

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/uniedit/paygate/internal/port/outbound"
	"go.uber.org/zap"
)

// Transmission headers sent by PayPal with every webhook.
const (
	PayPalTransmissionIDHeader   = "PAYPAL-TRANSMISSION-ID"
	PayPalTransmissionTimeHeader = "PAYPAL-TRANSMISSION-TIME"
	PayPalTransmissionSigHeader  = "PAYPAL-TRANSMISSION-SIG"
	PayPalCertURLHeader          = "PAYPAL-CERT-URL"
	PayPalAuthAlgoHeader         = "PAYPAL-AUTH-ALGO"
)

const verificationSuccess = "SUCCESS"

// RemoteVerifier asks the provider's own verification API whether a webhook is authentic.
// The client must already attach provider credentials (OAuth2 bearer).
type RemoteVerifier struct {
	client    *http.Client
	endpoint  string
	webhookID string
	policy    Policy
	logger    *zap.Logger
}

// NewRemoteVerifier creates a verifier posting to endpoint.
func NewRemoteVerifier(client *http.Client, endpoint, webhookID string, policy Policy, logger *zap.Logger) *RemoteVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteVerifier{
		client:    client,
		endpoint:  endpoint,
		webhookID: webhookID,
		policy:    policy,
		logger:    logger,
	}
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// Verify implements outbound.SignatureVerifierPort. Any transport or decoding
// failure rejects the webhook.
func (v *RemoteVerifier) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if v.webhookID == "" {
		return v.policy.unsigned()
	}

	req := verifyRequest{
		AuthAlgo:         headers.Get(PayPalAuthAlgoHeader),
		CertURL:          headers.Get(PayPalCertURLHeader),
		TransmissionID:   headers.Get(PayPalTransmissionIDHeader),
		TransmissionSig:  headers.Get(PayPalTransmissionSigHeader),
		TransmissionTime: headers.Get(PayPalTransmissionTimeHeader),
		WebhookID:        v.webhookID,
		WebhookEvent:     json.RawMessage(payload),
	}
	if req.AuthAlgo == "" || req.CertURL == "" || req.TransmissionID == "" ||
		req.TransmissionSig == "" || req.TransmissionTime == "" {
		return outbound.ErrSignatureMissing
	}
	if !json.Valid(payload) {
		return invalid(errors.New("event body is not JSON"))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return invalid(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return invalid(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		v.logger.Warn("webhook verification call failed", zap.Error(err))
		return invalid(fmt.Errorf("verification call: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return invalid(fmt.Errorf("read verification response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		v.logger.Warn("webhook verification rejected by provider",
			zap.Int("status", resp.StatusCode),
		)
		return invalid(fmt.Errorf("verification status code %d", resp.StatusCode))
	}

	var out verifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return invalid(fmt.Errorf("decode verification response: %w", err))
	}
	if out.VerificationStatus != verificationSuccess {
		return invalid(fmt.Errorf("verification status %q", out.VerificationStatus))
	}
	return nil
}

var _ outbound.SignatureVerifierPort = (*RemoteVerifier)(nil)
