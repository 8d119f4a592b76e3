// Package tradingutils holds decimal price and size math shared by the
// strategy and execution layers
package tradingutils

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to the specified decimals
func RoundPrice(price decimal.Decimal, priceDecimals int) decimal.Decimal {
	return price.Round(int32(priceDecimals))
}

// RoundSize rounds an order size to the specified decimals
func RoundSize(size decimal.Decimal, sizeDecimals int) decimal.Decimal {
	return size.Round(int32(sizeDecimals))
}

// QuoteLevels generates count price levels stepping away from mid by half the
// spread per level. A negative halfSpread produces bid levels below mid, a
// positive one ask levels above.
func QuoteLevels(mid, halfSpread decimal.Decimal, count int) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, count)
	for i := 1; i <= count; i++ {
		prices = append(prices, mid.Add(halfSpread.Mul(decimal.NewFromInt(int64(i)))))
	}
	return prices
}

// CalculateSkewedPrice shifts a base price by inventory imbalance. If the
// inventory ratio exceeds its target the price moves down to encourage
// selling; below target it moves up.
func CalculateSkewedPrice(basePrice, currentRatio, targetRatio, skewFactor decimal.Decimal) decimal.Decimal {
	diff := currentRatio.Sub(targetRatio)
	adjustment := decimal.NewFromInt(1).Sub(diff.Mul(skewFactor))
	return basePrice.Mul(adjustment)
}

// HalfSpreadPrice applies half the fractional spread to mid, on the given
// side: negative direction for bids, positive for asks.
func HalfSpreadPrice(mid, spread decimal.Decimal, direction int) decimal.Decimal {
	half := spread.Div(decimal.NewFromInt(2))
	offset := mid.Mul(half)
	if direction < 0 {
		return mid.Sub(offset)
	}
	return mid.Add(offset)
}

// RelativeChange returns |a-b| / b, or zero when b is zero
func RelativeChange(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		if a.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(1)
	}
	return a.Sub(b).Abs().Div(b.Abs())
}
