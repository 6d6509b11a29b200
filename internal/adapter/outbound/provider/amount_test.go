package provider

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"two decimals", "100.00", "GBP", 10000},
		{"lowercase code", "19.99", "usd", 1999},
		{"zero decimal currency", "500", "JPY", 500},
		{"trailing zeros", "10.500", "EUR", 1050},
		{"three decimal currency", "1.234", "BHD", 1234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown currency", func(t *testing.T) {
		_, err := MinorUnits(decimal.NewFromInt(1), "XX")
		assert.Error(t, err)
	})

	t.Run("never rounds", func(t *testing.T) {
		for _, amount := range []string{"10.005", "0.001"} {
			_, err := MinorUnits(decimal.RequireFromString(amount), "EUR")
			assert.ErrorIs(t, err, ErrAmountPrecision, amount)
		}
	})
}

func TestFormatAmount(t *testing.T) {
	got, err := FormatAmount(decimal.NewFromInt(100), "GBP")
	require.NoError(t, err)
	assert.Equal(t, "100.00", got)

	got, err = FormatAmount(decimal.NewFromInt(1500), "JPY")
	require.NoError(t, err)
	assert.Equal(t, "1500", got)

	_, err = FormatAmount(decimal.RequireFromString("1500.4"), "JPY")
	assert.ErrorIs(t, err, ErrAmountPrecision)
}

func TestCheckoutURL(t *testing.T) {
	assert.Equal(t, "https://pay.example.com/c/card_abc", checkoutURL("https://pay.example.com/c/{id}", "card_abc"))
	assert.Equal(t, "https://pay.example.com/static", checkoutURL("https://pay.example.com/static", "card_abc"))
}
