package types

import "github.com/shopspring/decimal"

// QuantityScale is the number of fractional digits stored for quantities.
const QuantityScale = 4

// MaxQuantity is the exclusive upper bound of a NUMERIC(18,4) quantity.
var MaxQuantity = decimal.New(1, 18-QuantityScale)

// QuantityFits reports whether q can be stored without rounding or overflow.
func QuantityFits(q decimal.Decimal) bool {
	return q.Abs().LessThan(MaxQuantity) && q.Equal(q.Truncate(QuantityScale))
}
