package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestQuantityFits(t *testing.T) {
	assert.True(t, QuantityFits(decimal.RequireFromString("5")))
	assert.True(t, QuantityFits(decimal.RequireFromString("99999999999999.9999")))
	assert.False(t, QuantityFits(decimal.RequireFromString("100000000000000")))
	assert.False(t, QuantityFits(decimal.RequireFromString("123456789012345678.1234")))
	assert.False(t, QuantityFits(decimal.RequireFromString("1.23456")))
}
