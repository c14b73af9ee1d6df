// Package money holds the rounding rules for persisted monetary amounts.
// All amounts are stored and returned with 2-decimal precision, rounded
// half-up; intermediate accrual math stays unrounded so repeated steps do
// not compound rounding error.
package money

import "github.com/shopspring/decimal"

// Round2 rounds an amount to 2 decimal places, half-up.
func Round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// Sum adds amounts and rounds the total to 2 decimal places.
func Sum(vs ...float64) float64 {
	total := decimal.Zero
	for _, v := range vs {
		total = total.Add(decimal.NewFromFloat(v))
	}
	out, _ := total.Round(2).Float64()
	return out
}
