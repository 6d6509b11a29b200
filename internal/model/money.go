package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// CurrencyScale returns the number of minor-unit digits of an ISO-4217 code
// (2 for GBP, 0 for JPY, 3 for BHD).
func CurrencyScale(code string) (int32, error) {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return 0, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), nil
}

// FitsCurrency reports whether amount is representable in whole minor units of code.
func FitsCurrency(amount decimal.Decimal, code string) (bool, error) {
	scale, err := CurrencyScale(code)
	if err != nil {
		return false, err
	}
	return amount.Equal(amount.Truncate(scale)), nil
}

// FormatAmount renders an amount with the currency's minor-unit digits.
// Unknown codes fall back to the shortest exact representation.
func FormatAmount(amount decimal.Decimal, code string) string {
	scale, err := CurrencyScale(code)
	if err != nil {
		return amount.String()
	}
	return amount.StringFixed(scale)
}
