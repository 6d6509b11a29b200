package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/uniedit/paygate/internal/model"
)

// ErrAmountPrecision is returned when an amount has digits below the currency's minor unit.
var ErrAmountPrecision = errors.New("amount finer than currency minor unit")

func exactScale(amount decimal.Decimal, code string) (int32, error) {
	scale, err := model.CurrencyScale(code)
	if err != nil {
		return 0, err
	}
	if !amount.Equal(amount.Truncate(scale)) {
		return 0, fmt.Errorf("%w: %s %s", ErrAmountPrecision, amount, strings.ToUpper(code))
	}
	return scale, nil
}

// MinorUnits converts an amount into the currency's smallest unit (cents for GBP).
// Amounts that would need rounding are rejected so the charge matches the session.
func MinorUnits(amount decimal.Decimal, code string) (int64, error) {
	scale, err := exactScale(amount, code)
	if err != nil {
		return 0, err
	}
	return amount.Shift(scale).IntPart(), nil
}

// FormatAmount renders an amount with the currency's minor-unit digits ("100.00").
func FormatAmount(amount decimal.Decimal, code string) (string, error) {
	scale, err := exactScale(amount, code)
	if err != nil {
		return "", err
	}
	return amount.StringFixed(scale), nil
}

// checkoutURL substitutes {id} in a hosted checkout pattern.
func checkoutURL(pattern, id string) string {
	return strings.ReplaceAll(pattern, "{id}", id)
}
