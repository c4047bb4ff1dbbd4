package market

import "math"

type Decision int

const (
	DecisionSkip Decision = iota
	DecisionBuyNormal
	DecisionBuyRestock
)

func (d Decision) String() string {
	switch d {
	case DecisionBuyNormal:
		return "buy_normal"
	case DecisionBuyRestock:
		return "buy_restock"
	default:
		return "skip"
	}
}

// Policy is the configured purchase policy for one item. RestockPrice == 0
// means restock mode is disabled.
type Policy struct {
	Threshold         int
	PremiumPct        int
	RestockPrice      int
	RestockPremiumPct int
}

func limit(base, premiumPct int) int {
	if premiumPct < 0 {
		premiumPct = 0
	}
	return base + int(math.Round(float64(base)*float64(premiumPct)/100))
}

// NormalLimit is the highest acceptable price on the normal path.
func (p Policy) NormalLimit() int { return limit(p.Threshold, p.PremiumPct) }

// RestockLimit is the highest price that still triggers a max-quantity buy.
func (p Policy) RestockLimit() int { return limit(p.RestockPrice, p.RestockPremiumPct) }

// Suspicious reports whether an observed price is implausibly low relative
// to the active base price: strictly below half of it. Half-threshold
// exactly is not suspicious.
func Suspicious(observed, base int) bool {
	return observed*2 < base
}

// Verdict is the outcome of evaluating one observed price.
type Verdict struct {
	Decision  Decision
	Discarded bool
}

// Evaluate applies the purchase policy to one observed price.
//
// Priority: completed items never buy; an unset threshold never buys; a
// price within the restock limit buys maximum quantity; a price within the
// normal limit buys once; anything else skips. A suspicious read on the
// active path is discarded without deciding, so the caller retries instead
// of trusting a likely OCR misread.
func Evaluate(observed int, pol Policy, purchased, target int) Verdict {
	if target > 0 && purchased >= target {
		return Verdict{Decision: DecisionSkip}
	}
	if pol.Threshold <= 0 {
		return Verdict{Decision: DecisionSkip}
	}

	if pol.RestockPrice > 0 && observed <= pol.RestockLimit() {
		if Suspicious(observed, pol.RestockPrice) {
			return Verdict{Discarded: true}
		}
		return Verdict{Decision: DecisionBuyRestock}
	}

	if Suspicious(observed, pol.Threshold) {
		return Verdict{Discarded: true}
	}
	if observed <= pol.NormalLimit() {
		return Verdict{Decision: DecisionBuyNormal}
	}
	return Verdict{Decision: DecisionSkip}
}
