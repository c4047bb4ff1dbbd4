package bot

import (
	"context"
	"image"
	"log/slog"
	"strconv"
	"time"

	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/config"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/event"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/history"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/market"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/ocr"
)

type execState int

const (
	stateIdle execState = iota
	stateDetailOpened
	statePriceRead
	stateDecided
	stateActionTaken
	stateResultPending
	stateClosed
	stateContinueInDetail
)

// Outcome classifies one purchase attempt.
type Outcome int

const (
	OutcomeMiss Outcome = iota // locate/OCR failed before a decision
	OutcomeDiscarded           // suspicious price, observation thrown away
	OutcomeSkip                // decision said no
	OutcomeBought
	OutcomeFailed
	OutcomeUnknown // neither success nor failure banner before timeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeSkip:
		return "skip"
	case OutcomeBought:
		return "bought"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "miss"
	}
}

// AttemptResult is the aggregate of one detail-view visit, which may cover
// several consecutive buys when stock keeps refreshing.
type AttemptResult struct {
	Outcome   Outcome
	Bought    int
	LastPrice int
}

// Executor drives the click sequence for one item: open detail, read the
// price, decide, buy, verify. It never hard-fails: every miss degrades to
// closing the detail view so the caller can retry the next cycle.
type Executor struct {
	log    *slog.Logger
	screen Screen
	rec    ocr.Recognizer
	geo    market.Geometry
	tun    config.Tuning
	hist   *history.Recorder
	bus    *event.Bus

	// stayInDetail keeps looping back to the price read after a buy,
	// exploiting stock refreshes without re-navigating. The legacy
	// single-item flow closes instead.
	stayInDetail bool
}

func NewExecutor(screen Screen, rec ocr.Recognizer, geo market.Geometry, tun config.Tuning,
	hist *history.Recorder, bus *event.Bus, log *slog.Logger) *Executor {
	return &Executor{
		log:          log,
		screen:       screen,
		rec:          rec,
		geo:          geo,
		tun:          tun,
		hist:         hist,
		bus:          bus,
		stayInDetail: true,
	}
}

// Attempt runs one full purchase iteration against an already-located card.
func (e *Executor) Attempt(ctx context.Context, it *ItemState, card image.Rectangle) AttemptResult {
	res := AttemptResult{Outcome: OutcomeMiss}
	state := stateIdle

	e.screen.ClickCenter(card)
	state = stateDetailOpened

	for state != stateClosed {
		if ctx.Err() != nil {
			break
		}

		switch state {
		case stateDetailOpened, stateContinueInDetail:
			state = statePriceRead

		case statePriceRead:
			price, buyBtn, ok := e.readDetailPrice(ctx)
			if !ok {
				e.closeDetail(ctx)
				return res
			}
			res.LastPrice = price
			state = stateDecided

			verdict := market.Evaluate(price, it.Policy(), it.Purchased, it.Item.TargetTotal)
			if verdict.Discarded {
				e.log.Debug("suspicious price discarded", "item", it.Item.Name, "price", price)
				if res.Outcome != OutcomeBought {
					res.Outcome = OutcomeDiscarded
				}
				e.closeDetail(ctx)
				return res
			}
			if verdict.Decision == market.DecisionSkip {
				if res.Outcome != OutcomeBought {
					res.Outcome = OutcomeSkip
				}
				e.closeDetail(ctx)
				return res
			}

			outcome := e.buy(ctx, verdict.Decision, buyBtn)
			state = stateResultPending
			if outcome != OutcomeBought {
				if res.Outcome != OutcomeBought {
					res.Outcome = outcome
				}
				e.closeDetail(ctx)
				return res
			}

			res.Outcome = OutcomeBought
			res.Bought += e.recordPurchase(ctx, it, verdict.Decision, price)
			if e.stayInDetail && !it.Complete() {
				state = stateContinueInDetail
				continue
			}
			e.closeDetail(ctx)
			return res
		}
	}

	e.closeDetail(ctx)
	return res
}

// readDetailPrice locates the buy button, derives the average-price band
// above it and OCRs it. Returns false on any miss along the way.
func (e *Executor) readDetailPrice(ctx context.Context) (int, image.Rectangle, bool) {
	buyBtn, err := e.screen.Locate(ctx, tplBtnBuy, e.tun.OutcomeTimeout())
	if err != nil {
		e.log.Debug("buy button not found in detail view", "error", err)
		return 0, image.Rectangle{}, false
	}

	roi, err := e.geo.DetailPriceROI(buyBtn)
	if err != nil {
		e.log.Debug("detail price geometry invalid", "button", buyBtn, "error", err)
		return 0, image.Rectangle{}, false
	}
	band := e.geo.AvgPriceBand(roi)

	img, err := e.screen.Capture(band)
	if err != nil {
		return 0, image.Rectangle{}, false
	}

	boxes, err := e.rec.RecognizeText(ocr.Upscale(img, e.geo.Scale()), band.Min)
	if err != nil {
		e.log.Debug("price OCR returned nothing", "error", err)
		return 0, image.Rectangle{}, false
	}

	nums := ocr.Numbers(boxes)
	if len(nums) == 0 {
		return 0, image.Rectangle{}, false
	}
	price := nums[0].Value
	for _, n := range nums[1:] {
		if n.Value < price {
			price = n.Value
		}
	}
	return price, buyBtn, true
}

// buy performs the quantity adjustment for the chosen decision and clicks
// the buy button, then polls for the outcome.
func (e *Executor) buy(ctx context.Context, d market.Decision, buyBtn image.Rectangle) Outcome {
	if d == market.DecisionBuyRestock {
		if maxBtn, err := e.screen.Locate(ctx, tplBtnMax, 0); err == nil {
			e.screen.ClickCenter(maxBtn)
		} else if qty, err := e.screen.Locate(ctx, tplQtyInput, 0); err == nil {
			e.screen.ClickCenter(qty)
			e.screen.TypeText(strconv.Itoa(e.tun.MaxPerOrder))
		} else {
			e.log.Debug("no quantity control for restock buy, buying as-is")
		}
	}

	e.screen.ClickCenter(buyBtn)
	return e.pollOutcome(ctx)
}

// pollOutcome watches for the success and failure banners. Success always
// wins: a failure banner sighted mid-window is remembered but only becomes
// the outcome when no success shows up before the deadline.
func (e *Executor) pollOutcome(ctx context.Context) Outcome {
	deadline := time.Now().Add(e.tun.OutcomeTimeout())
	failSeen := false
	for {
		if _, err := e.screen.Locate(ctx, tplBuyOK, 0); err == nil {
			return OutcomeBought
		}
		if !failSeen {
			if _, err := e.screen.Locate(ctx, tplBuyFail, 0); err == nil {
				failSeen = true
			}
		}
		if time.Now().After(deadline) {
			if failSeen {
				return OutcomeFailed
			}
			return OutcomeUnknown
		}
		if !sleepCtx(ctx, e.tun.OutcomePoll()) {
			return OutcomeUnknown
		}
	}
}

// recordPurchase increments the counter, clamped to the remaining target,
// writes history, notifies and dismisses the success overlay.
func (e *Executor) recordPurchase(ctx context.Context, it *ItemState, d market.Decision, price int) int {
	qty := 1
	if d == market.DecisionBuyRestock {
		qty = e.tun.MaxPerOrder
	}
	if left := it.Remaining(); qty > left {
		qty = left
	}
	it.Purchased += qty

	if e.hist != nil {
		e.hist.AppendPurchase(it.Item.ID, it.Item.Name, price, qty)
	}
	if e.bus != nil {
		e.bus.Send(event.PurchaseDone(event.Text("purchase confirmed"), it.Item.ID, it.Item.Name, price, qty))
	}
	e.log.Info("purchase confirmed",
		"item", it.Item.Name, "price", price, "qty", qty,
		"purchased", it.Purchased, "target", it.Item.TargetTotal)

	// Keep the pointer off the templates and clear the success overlay.
	e.screen.MoveAway()
	if okBox, err := e.screen.Locate(ctx, tplBuyOK, 0); err == nil {
		e.screen.ClickCenter(okBox)
	}
	return qty
}

// RecheckBuy is the legacy single-item flow: type a candidate quantity,
// re-read the price and only commit when the re-verified price is still
// inside the ceiling, halving the quantity (down to 1) across up to two
// extra tries.
func (e *Executor) RecheckBuy(ctx context.Context, it *ItemState, card image.Rectangle, qty int) AttemptResult {
	res := AttemptResult{Outcome: OutcomeMiss}
	if qty < 1 {
		qty = 1
	}

	e.screen.ClickCenter(card)

	for try := 0; try < 3; try++ {
		if ctx.Err() != nil {
			break
		}

		price, buyBtn, ok := e.readDetailPrice(ctx)
		if !ok {
			break
		}
		res.LastPrice = price

		verdict := market.Evaluate(price, it.Policy(), it.Purchased, it.Item.TargetTotal)
		if verdict.Discarded {
			res.Outcome = OutcomeDiscarded
			break
		}
		if verdict.Decision == market.DecisionSkip {
			// Price moved above the ceiling, try again with fewer units.
			res.Outcome = OutcomeSkip
			if qty == 1 {
				break
			}
			qty = qty / 2
			if qty < 1 {
				qty = 1
			}
			continue
		}

		if qtyBox, err := e.screen.Locate(ctx, tplQtyInput, 0); err == nil {
			e.screen.ClickCenter(qtyBox)
			e.screen.TypeText(strconv.Itoa(qty))
		}
		e.screen.ClickCenter(buyBtn)

		switch e.pollOutcome(ctx) {
		case OutcomeBought:
			res.Outcome = OutcomeBought
			bought := qty
			if left := it.Remaining(); bought > left {
				bought = left
			}
			it.Purchased += bought
			res.Bought = bought
			if e.hist != nil {
				e.hist.AppendPurchase(it.Item.ID, it.Item.Name, price, bought)
			}
			if e.bus != nil {
				e.bus.Send(event.PurchaseDone(event.Text("purchase confirmed"), it.Item.ID, it.Item.Name, price, bought))
			}
			e.screen.MoveAway()
		case OutcomeFailed:
			res.Outcome = OutcomeFailed
		default:
			res.Outcome = OutcomeUnknown
		}
		break
	}

	e.closeDetail(ctx)
	return res
}

// closeDetail dismisses the detail view through whichever control is
// present. Best effort: a failed close just means the next locate misses
// and the caller relocates.
func (e *Executor) closeDetail(ctx context.Context) {
	if box, err := e.screen.Locate(ctx, tplBtnClose, 0); err == nil {
		e.screen.ClickCenter(box)
		return
	}
	if box, err := e.screen.Locate(ctx, tplBtnBack, 0); err == nil {
		e.screen.ClickCenter(box)
	}
}
