package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	priceFile    = "price_history.jsonl"
	purchaseFile = "purchase_history.jsonl"
	minutelyFile = "price_minutely.jsonl"
)

type priceRecord struct {
	TS       float64 `json:"ts"`
	ISO      string  `json:"iso"`
	ItemID   string  `json:"item_id"`
	ItemName string  `json:"item_name"`
	Price    int     `json:"price"`
}

type purchaseRecord struct {
	priceRecord
	Qty    int `json:"qty"`
	Amount int `json:"amount"`
}

type minutelyRecord struct {
	Minute   string `json:"minute"`
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name"`
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Last     int    `json:"last"`
	Count    int    `json:"count"`
}

type lastSeen struct {
	price int
	at    time.Time
}

type minuteAgg struct {
	minute   time.Time
	itemName string
	min, max int
	last     int
	count    int
}

// Recorder is an append-only JSONL log of price and purchase ticks.
// Near-duplicate price ticks inside the dedup window are suppressed, and a
// minute-level aggregate stream is maintained alongside the raw ticks.
// Append failures are logged and swallowed: history is advisory, it must
// never stall the scan loop.
type Recorder struct {
	mu     sync.Mutex
	dir    string
	log    *slog.Logger
	dedup  time.Duration
	recent map[string]lastSeen
	agg    map[string]*minuteAgg

	now func() time.Time
}

func New(dir string, dedup time.Duration, log *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &Recorder{
		dir:    dir,
		log:    log,
		dedup:  dedup,
		recent: make(map[string]lastSeen),
		agg:    make(map[string]*minuteAgg),
		now:    time.Now,
	}, nil
}

// AppendPrice records one observed price for an item. A tick with the same
// price as the previous one, arriving inside the dedup window, is dropped.
func (r *Recorder) AppendPrice(itemID, itemName string, price int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if last, ok := r.recent[itemID]; ok && last.price == price && now.Sub(last.at) < r.dedup {
		return
	}
	r.recent[itemID] = lastSeen{price: price, at: now}

	r.appendLine(priceFile, priceRecord{
		TS:       float64(now.UnixNano()) / 1e9,
		ISO:      now.Format(time.RFC3339),
		ItemID:   itemID,
		ItemName: itemName,
		Price:    price,
	})
	r.aggregate(itemID, itemName, price, now)
}

// AppendPurchase records one confirmed buy.
func (r *Recorder) AppendPurchase(itemID, itemName string, price, qty int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.appendLine(purchaseFile, purchaseRecord{
		priceRecord: priceRecord{
			TS:       float64(now.UnixNano()) / 1e9,
			ISO:      now.Format(time.RFC3339),
			ItemID:   itemID,
			ItemName: itemName,
			Price:    price,
		},
		Qty:    qty,
		Amount: price * qty,
	})
}

// Close flushes any pending minute aggregates.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.agg {
		r.flushAgg(id, a)
	}
	r.agg = make(map[string]*minuteAgg)
	return nil
}

func (r *Recorder) aggregate(itemID, itemName string, price int, now time.Time) {
	minute := now.Truncate(time.Minute)
	a, ok := r.agg[itemID]
	if ok && !a.minute.Equal(minute) {
		r.flushAgg(itemID, a)
		ok = false
	}
	if !ok {
		r.agg[itemID] = &minuteAgg{
			minute: minute, itemName: itemName,
			min: price, max: price, last: price, count: 1,
		}
		return
	}
	if price < a.min {
		a.min = price
	}
	if price > a.max {
		a.max = price
	}
	a.last = price
	a.count++
}

func (r *Recorder) flushAgg(itemID string, a *minuteAgg) {
	r.appendLine(minutelyFile, minutelyRecord{
		Minute:   a.minute.Format("2006-01-02 15:04"),
		ItemID:   itemID,
		ItemName: a.itemName,
		Min:      a.min,
		Max:      a.max,
		Last:     a.last,
		Count:    a.count,
	})
}

func (r *Recorder) appendLine(file string, rec any) {
	raw, err := json.Marshal(rec)
	if err != nil {
		r.log.Debug("history marshal failed", "file", file, "error", err)
		return
	}
	f, err := os.OpenFile(filepath.Join(r.dir, file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		r.log.Debug("history append failed", "file", file, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		r.log.Debug("history write failed", "file", file, "error", err)
	}
}
