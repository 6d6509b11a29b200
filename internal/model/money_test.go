package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencyScale(t *testing.T) {
	tests := map[string]int32{"GBP": 2, "eur": 2, "JPY": 0, "BHD": 3}
	for code, want := range tests {
		got, err := CurrencyScale(code)
		require.NoError(t, err, code)
		assert.Equal(t, want, got, code)
	}

	_, err := CurrencyScale("XX")
	assert.Error(t, err)
}

func TestFitsCurrency(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     bool
	}{
		{"10.50", "EUR", true},
		{"10.500", "EUR", true},
		{"10.005", "EUR", false},
		{"0.001", "GBP", false},
		{"1500", "JPY", true},
		{"1500.4", "JPY", false},
		{"1.234", "BHD", true},
	}
	for _, tt := range tests {
		t.Run(tt.amount+" "+tt.currency, func(t *testing.T) {
			got, err := FitsCurrency(decimal.RequireFromString(tt.amount), tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.00", FormatAmount(decimal.NewFromInt(100), "GBP"))
	assert.Equal(t, "1500", FormatAmount(decimal.NewFromInt(1500), "JPY"))
	assert.Equal(t, "1.250", FormatAmount(decimal.RequireFromString("1.25"), "BHD"))
	assert.Equal(t, "7.5", FormatAmount(decimal.RequireFromString("7.5"), "XX"))
}
