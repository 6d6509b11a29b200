// Package signature implements the webhook authentication schemes used by
// the payment providers.
package signature

import (
	"fmt"

	"github.com/uniedit/paygate/internal/port/outbound"
)

// Policy controls how a verifier treats a provider without a configured secret.
type Policy struct {
	// AllowUnsigned trusts webhooks when no secret is configured.
	// A configured secret is always enforced.
	AllowUnsigned bool
}

// unsigned decides the outcome for a verifier with no secret.
func (p Policy) unsigned() error {
	if p.AllowUnsigned {
		return nil
	}
	return fmt.Errorf("%w: no webhook secret configured", outbound.ErrSignatureInvalid)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", outbound.ErrSignatureInvalid, err)
}
