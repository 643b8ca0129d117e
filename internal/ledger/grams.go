package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

func grams(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func sub(a, b float64) float64 {
	return grams(a).Sub(grams(b)).InexactFloat64()
}

func add(a, b float64) float64 {
	return grams(a).Add(grams(b)).InexactFloat64()
}

// splitPercent divides total into material and solvent for a percent dilution.
func splitPercent(total, percent float64) (material, solvent float64) {
	m := grams(total).Mul(grams(percent)).Div(hundred)
	return m.InexactFloat64(), grams(total).Sub(m).InexactFloat64()
}

// pureContent returns how much undiluted material is contained in taken grams of source.
func pureContent(taken float64, material, solvent *float64) float64 {
	if material == nil || solvent == nil {
		return taken
	}
	whole := grams(*material).Add(grams(*solvent))
	if whole.IsZero() {
		return 0
	}
	return grams(taken).Mul(grams(*material)).Div(whole).InexactFloat64()
}
