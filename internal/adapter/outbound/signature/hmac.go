package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/uniedit/paygate/internal/port/outbound"
)

// Header names of the plain HMAC providers.
const (
	CoinbaseSignatureHeader = "X-CC-Webhook-Signature"
	GenericSignatureHeader  = "X-Signature"
)

// HMAC verifies a hex HMAC-SHA256(secret, body) carried in a single header.
type HMAC struct {
	header string
	secret []byte
	policy Policy
}

// NewHMAC creates a verifier reading the digest from header.
func NewHMAC(header, secret string, policy Policy) *HMAC {
	return &HMAC{header: header, secret: []byte(secret), policy: policy}
}

// Verify implements outbound.SignatureVerifierPort.
func (v *HMAC) Verify(_ context.Context, payload []byte, headers http.Header) error {
	if len(v.secret) == 0 {
		return v.policy.unsigned()
	}
	value := strings.TrimSpace(headers.Get(v.header))
	if value == "" {
		return outbound.ErrSignatureMissing
	}
	value = strings.TrimPrefix(value, "sha256=")

	got, err := hex.DecodeString(value)
	if err != nil {
		return invalid(errors.New("signature is not hex"))
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), got) {
		return invalid(errors.New("digest mismatch"))
	}
	return nil
}

// Sign returns the hex digest the verifier expects for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ outbound.SignatureVerifierPort = (*HMAC)(nil)
