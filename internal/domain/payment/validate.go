package payment

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/uniedit/paygate/internal/model"
	"golang.org/x/text/currency"
)

// validateRequest checks the invariants of a PaymentRequest.
func validateRequest(req *model.PaymentRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return fmt.Errorf("%w: orderId is required", ErrInvalidRequest)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}
	if len(req.Currency) != 3 {
		return fmt.Errorf("%w: currency must be an ISO-4217 code", ErrInvalidRequest)
	}
	if _, err := currency.ParseISO(strings.ToUpper(req.Currency)); err != nil {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidRequest, req.Currency)
	}
	// the provider charges whole minor units; anything finer would be rounded away
	if fits, err := model.FitsCurrency(req.Amount, req.Currency); err != nil || !fits {
		return fmt.Errorf("%w: amount %s has more decimals than %s allows",
			ErrInvalidRequest, req.Amount, strings.ToUpper(req.Currency))
	}
	if err := validateURL("returnUrl", req.ReturnURL); err != nil {
		return err
	}
	if err := validateURL("cancelUrl", req.CancelURL); err != nil {
		return err
	}
	if req.CustomerEmail != "" {
		if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
			return fmt.Errorf("%w: invalid customerEmail", ErrInvalidRequest)
		}
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalidRequest, field)
	}
	return nil
}
