package interest

import (
	"testing"

	"loanbook/internal/domain"
	"loanbook/pkg/money"
)

func TestProjectTotalFlat(t *testing.T) {
	tests := []struct {
		name string
		sub  float64
		rate float64
		term int
		want float64
	}{
		{"single step, no surcharge", 1000, 5, 6, 1300},
		{"two steps", 1000, 5, 12, 1690},
		{"surcharge at 18", 1000, 5, 18, 2397},
		{"surcharge at 30", 1000, 5, 30, 4250.93},
		{"term below first step", 1000, 5, 5, 1000},
		{"zero rate", 1000, 0, 36, 1400}, // only the two milestone fees
		{"zero principal", 0, 5, 12, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ProjectTotal(tc.sub, tc.rate, domain.InterestFlat, tc.term)
			if got != tc.want {
				t.Fatalf("ProjectTotal(%v, %v, flat, %d) = %v; want %v", tc.sub, tc.rate, tc.term, got, tc.want)
			}
		})
	}
}

func TestProjectTotalFlatStepByStep(t *testing.T) {
	// 1000 at 5%/month over 18 months: 1300 -> 1690 -> 2197, then the
	// 18-month fee lands the total at 2397.
	got := ProjectTotal(1000, 5, domain.InterestFlat, 18)
	if got != 2397.00 {
		t.Fatalf("expected 2397.00; got %v", got)
	}
}

func TestProjectTotalCompound(t *testing.T) {
	tests := []struct {
		name string
		sub  float64
		rate float64
		term int
		want float64
	}{
		{"zero rate is identity", 5000, 0, 24, 5000 + milestoneFee}, // fee still lands at month 18
		{"zero rate short term", 5000, 0, 12, 5000},
		{"one month", 1000, 10, 1, 1100},
		{"two months", 1000, 10, 2, 1210},
		{"zero principal grows only by fees", 0, 10, 18, 200},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ProjectTotal(tc.sub, tc.rate, domain.InterestCompound, tc.term)
			if got != tc.want {
				t.Fatalf("ProjectTotal(%v, %v, compound, %d) = %v; want %v", tc.sub, tc.rate, tc.term, got, tc.want)
			}
		})
	}
}

func TestProjectTotalCompoundZeroRateAllTerms(t *testing.T) {
	// Zero rate means no growth beyond milestone fees for any term.
	for _, term := range []int{1, 6, 12, 17} {
		if got := ProjectTotal(750, 0, domain.InterestCompound, term); got != 750 {
			t.Fatalf("term %d: expected 750; got %v", term, got)
		}
	}
}

func TestProjectTotalDeterministic(t *testing.T) {
	a := ProjectTotal(1234.56, 3.75, domain.InterestCompound, 36)
	b := ProjectTotal(1234.56, 3.75, domain.InterestCompound, 36)
	if a != b {
		t.Fatalf("projection is not deterministic: %v != %v", a, b)
	}
}

func TestProjectTotalRoundsReturnedTotal(t *testing.T) {
	got := ProjectTotal(1000, 3.333, domain.InterestCompound, 7)
	if rounded := money.Round2(got); rounded != got {
		t.Fatalf("total %v not rounded to 2 decimals (rounds to %v)", got, rounded)
	}
}
