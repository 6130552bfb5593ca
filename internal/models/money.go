package models

import "math"

// Round2 rounds a monetary amount to cent resolution. Prices, trade
// amounts, balances and position values all pass through it so that
// equal buy and sell legs cancel exactly.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
