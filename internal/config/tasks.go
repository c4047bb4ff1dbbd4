package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/samber/lo"
)

// TimeWindow is a daily HH:MM execution window. End at or before Start
// means the window wraps past midnight. Windows are half-open: the end
// minute is excluded, so 22:00-23:00 and 23:00-00:00 do not collide.
type TimeWindow struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Item is one configured purchase target.
type Item struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Template          string     `json:"template"`
	Threshold         int        `json:"price_threshold"`
	PremiumPct        int        `json:"price_premium_pct"`
	RestockPrice      int        `json:"restock_price"`
	RestockPremiumPct int        `json:"restock_premium_pct"`
	TargetTotal       int        `json:"target_total"`
	Purchased         int        `json:"purchased"`
	Enabled           bool       `json:"enabled"`
	Order             int        `json:"order"`
	DurationMin       int        `json:"duration_min"`
	Window            TimeWindow `json:"window"`
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether the clock time t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if !w.Enabled {
		return false
	}
	start, err := parseHHMM(w.Start)
	if err != nil {
		return false
	}
	end, err := parseHHMM(w.End)
	if err != nil {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	// Wraps past midnight.
	return minute >= start || minute < end
}

// minuteSpans splits the window into non-wrapping [start, end) minute
// ranges on a 24h clock.
func (w TimeWindow) minuteSpans() ([][2]int, error) {
	start, err := parseHHMM(w.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseHHMM(w.End)
	if err != nil {
		return nil, err
	}
	if start < end {
		return [][2]int{{start, end}}, nil
	}
	return [][2]int{{start, 24 * 60}, {0, end}}, nil
}

func spansOverlap(a, b [2]int) bool {
	return a[0] < b[1] && b[0] < a[1]
}

// Overlaps reports whether two enabled windows share any minute,
// accounting for midnight wrap on either side.
func (w TimeWindow) Overlaps(other TimeWindow) (bool, error) {
	as, err := w.minuteSpans()
	if err != nil {
		return false, err
	}
	bs, err := other.minuteSpans()
	if err != nil {
		return false, err
	}
	for _, a := range as {
		for _, b := range bs {
			if spansOverlap(a, b) {
				return true, nil
			}
		}
	}
	return false, nil
}

// ValidateTasks enforces the save-time invariants: sane numeric fields and
// no overlapping execution windows between enabled items.
func ValidateTasks(items []Item) error {
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("task %d: missing id", i)
		}
		if it.Template == "" {
			return fmt.Errorf("task %s: missing card template", it.ID)
		}
		if it.Threshold < 0 {
			return fmt.Errorf("task %s: negative price threshold", it.ID)
		}
		if it.RestockPrice < 0 {
			return fmt.Errorf("task %s: negative restock price", it.ID)
		}
		if it.PremiumPct < 0 || it.RestockPremiumPct < 0 {
			return fmt.Errorf("task %s: negative premium", it.ID)
		}
		if it.TargetTotal < 0 {
			return fmt.Errorf("task %s: negative target", it.ID)
		}
		if it.Window.Enabled {
			if _, err := parseHHMM(it.Window.Start); err != nil {
				return fmt.Errorf("task %s: %w", it.ID, err)
			}
			if _, err := parseHHMM(it.Window.End); err != nil {
				return fmt.Errorf("task %s: %w", it.ID, err)
			}
		}
	}

	windowed := lo.Filter(items, func(it Item, _ int) bool {
		return it.Enabled && it.Window.Enabled
	})
	for i := 0; i < len(windowed); i++ {
		for j := i + 1; j < len(windowed); j++ {
			overlap, err := windowed[i].Window.Overlaps(windowed[j].Window)
			if err != nil {
				return err
			}
			if overlap {
				return fmt.Errorf("tasks %s and %s have overlapping time windows",
					windowed[i].ID, windowed[j].ID)
			}
		}
	}
	return nil
}

// LoadTasks reads the task list, sorted by configured order. A missing
// file is an empty list, not an error.
func LoadTasks(path string) ([]Item, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parsing tasks: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return items, nil
}

// SaveTasks validates and persists the task list.
func SaveTasks(path string, items []Item) error {
	if err := ValidateTasks(items); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
