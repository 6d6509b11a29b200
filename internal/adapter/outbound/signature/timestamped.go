package signature

import (
	"context"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/uniedit/paygate/internal/port/outbound"
)

// StripeSignatureHeader carries "t=<unix>,v1=<hex>" pairs.
const StripeSignatureHeader = "Stripe-Signature"

// TimestampedHMAC verifies HMAC-SHA256(secret, "<t>.<body>") signatures.
type TimestampedHMAC struct {
	secret    string
	tolerance time.Duration
	policy    Policy
}

// NewTimestampedHMAC creates a verifier. A zero tolerance skips the freshness check.
func NewTimestampedHMAC(secret string, tolerance time.Duration, policy Policy) *TimestampedHMAC {
	return &TimestampedHMAC{secret: secret, tolerance: tolerance, policy: policy}
}

// Verify implements outbound.SignatureVerifierPort.
func (v *TimestampedHMAC) Verify(_ context.Context, payload []byte, headers http.Header) error {
	if v.secret == "" {
		return v.policy.unsigned()
	}
	header := headers.Get(StripeSignatureHeader)
	if header == "" {
		return outbound.ErrSignatureMissing
	}

	var err error
	if v.tolerance > 0 {
		err = webhook.ValidatePayloadWithTolerance(payload, header, v.secret, v.tolerance)
	} else {
		err = webhook.ValidatePayloadIgnoringTolerance(payload, header, v.secret)
	}
	if err != nil {
		return invalid(err)
	}
	return nil
}

var _ outbound.SignatureVerifierPort = (*TimestampedHMAC)(nil)
