package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.46, Round2(10.455))
	assert.Equal(t, 10.45, Round2(10.454))
	assert.Equal(t, 0.0, Round2(0))
}

func TestAmountFromMinorUnits(t *testing.T) {
	assert.True(t, AmountFromMinorUnits(2500, "usd").Equal(decimal.NewFromFloat(25.00)))
	assert.True(t, AmountFromMinorUnits(99, "eur").Equal(decimal.NewFromFloat(0.99)))
	// Zero-decimal currencies are reported in whole units already.
	assert.True(t, AmountFromMinorUnits(2500, "jpy").Equal(decimal.NewFromInt(2500)))
	assert.True(t, AmountFromMinorUnits(2500, "JPY").Equal(decimal.NewFromInt(2500)))
}

func TestCurrencySymbol(t *testing.T) {
	assert.Equal(t, "$", CurrencySymbol("usd"))
	assert.Equal(t, "€", CurrencySymbol("EUR"))
	assert.Equal(t, "DKK", CurrencySymbol("dkk"))
}
