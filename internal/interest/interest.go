// Package interest projects a loan's total payoff amount from its principal
// basis and per-term interest schedule. The projection is a pure function;
// callers pass the term they want the payoff for.
package interest

import (
	"loanbook/internal/domain"
	"loanbook/pkg/money"
)

const (
	// Flat-schedule interest accrues at fixed 6-month checkpoints.
	flatStepMonths = 6

	// Contractual milestone fee added at the 18- and 30-month marks,
	// regardless of interest type.
	milestoneFee = 200.0
)

// ProjectTotal computes the projected total payoff for a principal basis
// accruing at monthlyRate percent per month over term months.
//
// Flat: the running total grows by total*(rate/100)*6 at every 6-month
// boundary up to and including term; boundaries beyond term are not applied
// and there is no partial-step accrual.
//
// Compound: the running total is multiplied by (1+rate/100) every month.
//
// Accrual accumulates unrounded; only the returned total is rounded, to
// 2 decimals half-up, so projections stay bit-compatible with stored data.
func ProjectTotal(subTotal, monthlyRate float64, typ domain.InterestType, term int) float64 {
	total := subTotal
	rate := monthlyRate / 100

	switch typ {
	case domain.InterestCompound:
		for i := 1; i <= term; i++ {
			total *= 1 + rate
			if i == 18 || i == 30 {
				total += milestoneFee
			}
		}
	default: // flat
		for i := flatStepMonths; i <= term; i += flatStepMonths {
			total += total * rate * flatStepMonths
			if i == 18 || i == 30 {
				total += milestoneFee
			}
		}
	}

	return money.Round2(total)
}
