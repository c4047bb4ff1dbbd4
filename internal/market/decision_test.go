package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuspiciousBoundaryIsStrict(t *testing.T) {
	// Below half the threshold is discarded, exactly half is not.
	assert.True(t, Suspicious(4999, 10000))
	assert.False(t, Suspicious(5000, 10000))
	assert.True(t, Suspicious(5000, 10001))
}

func TestEvaluatePriorityOrdering(t *testing.T) {
	pol := Policy{Threshold: 1000, PremiumPct: 10, RestockPrice: 500}

	tests := []struct {
		name     string
		observed int
		want     Decision
	}{
		{"below restock floor wins over normal", 450, DecisionBuyRestock},
		{"at restock floor", 500, DecisionBuyRestock},
		{"within premium ceiling", 1050, DecisionBuyNormal},
		{"at premium ceiling", 1100, DecisionBuyNormal},
		{"above premium ceiling", 1101, DecisionSkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.observed, pol, 0, 10)
			assert.False(t, v.Discarded)
			assert.Equal(t, tt.want, v.Decision)
		})
	}
}

func TestEvaluateDiscardsSuspiciousReads(t *testing.T) {
	pol := Policy{Threshold: 10000}
	v := Evaluate(4999, pol, 0, 10)
	assert.True(t, v.Discarded)

	v = Evaluate(5000, pol, 0, 10)
	assert.False(t, v.Discarded)
	assert.Equal(t, DecisionBuyNormal, v.Decision)

	// The restock path measures against the restock floor.
	pol = Policy{Threshold: 10000, RestockPrice: 1000}
	v = Evaluate(499, pol, 0, 10)
	assert.True(t, v.Discarded)
	v = Evaluate(500, pol, 0, 10)
	assert.Equal(t, DecisionBuyRestock, v.Decision)
}

func TestEvaluateCompletionGating(t *testing.T) {
	pol := Policy{Threshold: 1000, RestockPrice: 500}
	// Even a giveaway price must not buy once the target is met.
	v := Evaluate(450, pol, 10, 10)
	assert.Equal(t, DecisionSkip, v.Decision)
	assert.False(t, v.Discarded)

	v = Evaluate(450, pol, 11, 10)
	assert.Equal(t, DecisionSkip, v.Decision)
}

func TestEvaluateUnsetThresholdNeverBuys(t *testing.T) {
	v := Evaluate(1, Policy{Threshold: 0}, 0, 10)
	assert.Equal(t, DecisionSkip, v.Decision)

	v = Evaluate(1, Policy{Threshold: -5}, 0, 10)
	assert.Equal(t, DecisionSkip, v.Decision)
}

func TestPolicyLimits(t *testing.T) {
	assert.Equal(t, 1100, Policy{Threshold: 1000, PremiumPct: 10}.NormalLimit())
	assert.Equal(t, 1000, Policy{Threshold: 1000, PremiumPct: -10}.NormalLimit())
	// Rounded, not truncated: 955 * 5% = 47.75 -> 48.
	assert.Equal(t, 1003, Policy{Threshold: 1000, PremiumPct: 0, RestockPrice: 955, RestockPremiumPct: 5}.RestockLimit())
}
