// Package pricing computes payment quotes and proformas.  All money is
// handled as shopspring decimals and rounded to cents only when a value is
// presented.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// DefaultMinDownPayment is the down payment floor in currency units.
var DefaultMinDownPayment = decimal.NewFromInt(6000)

// FlatMonthly returns max(price-down, 0)/n, or zero when n <= 0.
func FlatMonthly(price, down decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	principal := decimal.Max(price.Sub(down), decimal.Zero)
	return principal.Div(decimal.NewFromInt(int64(n)))
}

// MonthlyRate converts an annual percentage into a monthly fraction.
func MonthlyRate(annualPct decimal.Decimal) decimal.Decimal {
	return annualPct.Div(twelve).Div(hundred)
}

// AmortizedMonthly returns the fixed annuity payment for principal over n
// months at annualPct.  It degenerates to the flat quote when the rate is
// not positive.
func AmortizedMonthly(principal, annualPct decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	i := MonthlyRate(annualPct)
	if !i.IsPositive() {
		return FlatMonthly(principal, decimal.Zero, n)
	}
	if !principal.IsPositive() {
		return decimal.Zero
	}
	f := growth(i, n)
	return principal.Mul(i).Mul(f).Div(f.Sub(decimal.NewFromInt(1)))
}

// growth returns (1+i)^n.  Each step is rounded so long terms stay small.
func growth(i decimal.Decimal, n int) decimal.Decimal {
	base := decimal.NewFromInt(1).Add(i)
	f := decimal.NewFromInt(1)
	for k := 0; k < n; k++ {
		f = f.Mul(base).Round(18)
	}
	return f
}

// EffectiveDownPayment raises d to floor.  It never rejects a value.
func EffectiveDownPayment(d, floor decimal.Decimal) decimal.Decimal {
	if d.LessThan(floor) {
		return floor
	}
	return d
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// Money rounds to cents.
func Money(v decimal.Decimal) decimal.Decimal { return v.Round(2) }
