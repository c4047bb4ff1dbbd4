package bot

import (
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/config"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/market"
)

// ItemState is the runner-owned runtime state for one configured item.
// Only the worker goroutine mutates it.
type ItemState struct {
	Item      config.Item
	Purchased int

	failStreak        int
	warnedNoThreshold bool
}

func newItemState(it config.Item) *ItemState {
	return &ItemState{Item: it, Purchased: it.Purchased}
}

func (s *ItemState) Policy() market.Policy {
	return market.Policy{
		Threshold:         s.Item.Threshold,
		PremiumPct:        s.Item.PremiumPct,
		RestockPrice:      s.Item.RestockPrice,
		RestockPremiumPct: s.Item.RestockPremiumPct,
	}
}

// Remaining is how many units are still wanted. Zero target means
// unbounded, reported as a large remainder.
func (s *ItemState) Remaining() int {
	if s.Item.TargetTotal <= 0 {
		return int(^uint(0) >> 1)
	}
	left := s.Item.TargetTotal - s.Purchased
	if left < 0 {
		return 0
	}
	return left
}

func (s *ItemState) Complete() bool {
	return s.Item.TargetTotal > 0 && s.Purchased >= s.Item.TargetTotal
}

// Runnable reports whether the item should be scanned at all.
func (s *ItemState) Runnable() bool {
	return s.Item.Enabled && !s.Complete()
}
