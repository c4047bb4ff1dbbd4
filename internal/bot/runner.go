package bot

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/config"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/event"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/history"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/market"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/ocr"
)

// cardLocation is the cached geometry for one item's card.
type cardLocation struct {
	Anchor image.Rectangle
	Card   image.Rectangle
}

// Runner owns the scan/purchase loop. A single worker goroutine performs
// all capture and input; the only concurrency inside a cycle is the OCR
// batch, whose results are matched back to items by key.
type Runner struct {
	log    *slog.Logger
	cfg    *config.Settings
	screen Screen
	rec    ocr.Recognizer
	geo    market.Geometry
	exec   *Executor
	hist   *history.Recorder
	bus    *event.Bus

	items []*ItemState
	cards *gocache.Cache

	stopFlag  atomic.Bool
	pauseFlag atomic.Bool

	missStreak   int
	lastGoodRead time.Time
	rrIndex      int
	nextRestart  time.Time

	focusGame  func() error
	launchGame func() error
	restartFn  func(ctx context.Context)
}

func NewRunner(cfg *config.Settings, items []config.Item, screen Screen, rec ocr.Recognizer,
	hist *history.Recorder, bus *event.Bus, log *slog.Logger) *Runner {

	geo := market.NewGeometry(cfg.Geometry)
	states := make([]*ItemState, 0, len(items))
	for _, it := range items {
		states = append(states, newItemState(it))
	}

	r := &Runner{
		log:          log,
		cfg:          cfg,
		screen:       screen,
		rec:          rec,
		geo:          geo,
		exec:         NewExecutor(screen, rec, geo, cfg.Tuning, hist, bus, log),
		hist:         hist,
		bus:          bus,
		items:        states,
		cards:        gocache.New(gocache.NoExpiration, 0),
		lastGoodRead: time.Now(),
	}
	r.restartFn = r.softRestart
	return r
}

// Stop signals the worker to unwind at the next wait point.
func (r *Runner) Stop() { r.stopFlag.Store(true) }

// Pause suspends scanning between purchase attempts, never mid-sequence.
// Pausing drops the cached card locations: the screen may look completely
// different by the time the loop resumes.
func (r *Runner) Pause(paused bool) {
	if paused && !r.pauseFlag.Load() {
		r.cards.Flush()
	}
	r.pauseFlag.Store(paused)
}

// Items exposes a snapshot of per-item progress for display purposes.
func (r *Runner) Items() []ItemState {
	out := make([]ItemState, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, *s)
	}
	return out
}

func (r *Runner) stopped(ctx context.Context) bool {
	return r.stopFlag.Load() || ctx.Err() != nil
}

// wait sleeps in short steps so the stop flag is honored promptly.
func (r *Runner) wait(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if r.stopped(ctx) {
			return false
		}
		left := time.Until(deadline)
		if left <= 0 {
			return true
		}
		step := 50 * time.Millisecond
		if left < step {
			step = left
		}
		if !sleepCtx(ctx, step) {
			return false
		}
	}
}

// Run drives the loop until Stop is called or the context ends.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	r.bus.Send(event.RunStarted(event.Text("scan loop starting"), r.cfg.Mode))

	// Mirror the stop flag into context cancellation so blocking waits
	// unwind without polling.
	g.Go(func() error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if r.stopFlag.Load() {
					cancel()
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		defer cancel()
		return r.loop(ctx)
	})

	err := g.Wait()
	reason := event.FinishedStopped
	if err != nil {
		reason = event.FinishedError
	}
	r.bus.Send(event.RunFinished(event.Text("scan loop finished"), reason))
	return err
}

func (r *Runner) loop(ctx context.Context) error {
	r.scheduleRestart()
	warmed := false

	for !r.stopped(ctx) {
		if r.pauseFlag.Load() {
			r.wait(ctx, 200*time.Millisecond)
			continue
		}

		if !r.nextRestart.IsZero() && time.Now().After(r.nextRestart) {
			r.restartFn(ctx)
			r.scheduleRestart()
			continue
		}

		if !r.ensureGameReady(ctx) {
			r.wait(ctx, r.cfg.Tuning.RetryDelay())
			continue
		}

		if !warmed {
			r.precacheCards(ctx)
			warmed = true
		}

		runnable := lo.Filter(r.items, func(s *ItemState, _ int) bool { return s.Runnable() })
		if len(runnable) == 0 {
			r.log.Debug("no runnable items, waiting")
			r.wait(ctx, time.Second)
			continue
		}

		switch r.cfg.Mode {
		case "round":
			r.roundRobinSlice(ctx, runnable)
		default:
			r.timeWindowPass(ctx, runnable)
		}
	}
	return nil
}

// timeWindowPass scans every item whose window covers the current minute.
func (r *Runner) timeWindowPass(ctx context.Context, runnable []*ItemState) {
	now := time.Now()
	due := lo.Filter(runnable, func(s *ItemState, _ int) bool {
		return s.Item.Window.Contains(now)
	})
	if len(due) == 0 {
		r.wait(ctx, time.Second)
		return
	}
	r.scanCycle(ctx, due)
}

// roundRobinSlice gives the next runnable item a fixed-duration slice.
// Time spent in a soft restart does not count against the slice.
func (r *Runner) roundRobinSlice(ctx context.Context, runnable []*ItemState) {
	s := runnable[r.rrIndex%len(runnable)]
	r.rrIndex++

	duration := time.Duration(s.Item.DurationMin) * time.Minute
	if duration <= 0 {
		duration = 10 * time.Minute
	}
	r.log.Info("starting slice", "item", s.Item.Name, "duration", duration,
		"progress", fmt.Sprintf("%d/%d", s.Purchased, s.Item.TargetTotal))

	segEnd := time.Now().Add(duration)
	for !r.stopped(ctx) && time.Now().Before(segEnd) && s.Runnable() {
		if r.pauseFlag.Load() {
			r.wait(ctx, 200*time.Millisecond)
			continue
		}
		if !r.nextRestart.IsZero() && time.Now().After(r.nextRestart) {
			segEnd = r.restartWithin(ctx, segEnd)
			continue
		}
		r.scanCycle(ctx, []*ItemState{s})
	}
}

// scanCycle performs one pass over the given items: refresh the list,
// locate cards, batch-OCR all regions, then decide and act per item.
func (r *Runner) scanCycle(ctx context.Context, items []*ItemState) {
	r.refreshFavorites(ctx)

	type pending struct {
		state *ItemState
		loc   cardLocation
	}
	var scanned []pending
	jobs := make(map[string]ocr.BatchJob)

	for _, s := range items {
		if r.stopped(ctx) {
			return
		}
		loc, ok := r.locateCard(ctx, s)
		if !ok {
			continue
		}
		regions, err := r.geo.CardRegions(loc.Anchor)
		if err != nil {
			r.log.Debug("card geometry invalid", "item", s.Item.Name, "error", err)
			continue
		}

		nameImg, err := r.screen.Capture(regions.Name)
		if err != nil {
			continue
		}
		priceImg, err := r.screen.Capture(regions.Price)
		if err != nil {
			continue
		}
		jobs["name:"+s.Item.ID] = ocr.BatchJob{Image: nameImg, Offset: regions.Name.Min}
		jobs["price:"+s.Item.ID] = ocr.BatchJob{
			Image:  ocr.Upscale(priceImg, r.geo.Scale()),
			Offset: regions.Price.Min,
		}
		scanned = append(scanned, pending{state: s, loc: loc})
	}

	if len(jobs) == 0 {
		r.recordMissCycle(ctx)
		return
	}

	results := ocr.RunBatch(ctx, r.rec, jobs, r.cfg.Tuning.OCRWorkers)

	anyValid := false
	for _, p := range scanned {
		if r.stopped(ctx) {
			return
		}
		price, ok := r.listPrice(results["price:"+p.state.Item.ID])
		if !ok {
			continue
		}
		// A suspicious read is thrown away whole: no history, no event, and
		// it does not count as a valid cycle for the item.
		if r.discardSuspicious(p.state, price) {
			continue
		}
		anyValid = true

		name := p.state.Item.Name
		if name == "" {
			name = recognizedName(results["name:"+p.state.Item.ID])
		}
		r.hist.AppendPrice(p.state.Item.ID, name, price)
		r.bus.Send(event.PriceSeen(event.Text("price observed"), p.state.Item.ID, name, price))

		r.actOn(ctx, p.state, p.loc, price)
	}

	if anyValid {
		r.missStreak = 0
		r.lastGoodRead = time.Now()
	} else {
		r.recordMissCycle(ctx)
	}
}

// listPrice reduces one batch result to the lowest parsed candidate.
func (r *Runner) listPrice(res ocr.BatchResult) (int, bool) {
	if res.Err != nil {
		return 0, false
	}
	return market.ParseLowest(ocr.Texts(res.Boxes))
}

// discardSuspicious filters implausibly low list reads before they touch
// history or the miss accounting. Items without a threshold have no base
// price to compare against and pass through.
func (r *Runner) discardSuspicious(s *ItemState, price int) bool {
	if s.Item.Threshold <= 0 {
		return false
	}
	if market.Evaluate(price, s.Policy(), s.Purchased, s.Item.TargetTotal).Discarded {
		r.log.Debug("list price looks suspicious, retrying next cycle",
			"item", s.Item.Name, "price", price)
		return true
	}
	return false
}

// recognizedName is the card's OCR'd name, used when the task has no
// display name configured.
func recognizedName(res ocr.BatchResult) string {
	if res.Err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Join(ocr.Texts(res.Boxes), " "))
}

// actOn applies the decision to a list-view price and runs the executor
// for buys. The executor re-verifies the price inside the detail view
// before committing.
func (r *Runner) actOn(ctx context.Context, s *ItemState, loc cardLocation, price int) {
	if s.Item.Threshold <= 0 {
		if !s.warnedNoThreshold {
			r.log.Warn("item has no price threshold configured and will never buy", "item", s.Item.Name)
			s.warnedNoThreshold = true
		} else {
			r.log.Debug("skipping item without threshold", "item", s.Item.Name)
		}
		return
	}

	// Suspicious reads were already filtered by the caller, only the
	// decision matters here.
	verdict := market.Evaluate(price, s.Policy(), s.Purchased, s.Item.TargetTotal)
	if verdict.Decision == market.DecisionSkip {
		return
	}

	res := r.exec.Attempt(ctx, s, loc.Anchor)
	r.log.Debug("purchase attempt finished", "item", s.Item.Name,
		"outcome", res.Outcome.String(), "bought", res.Bought, "last_price", res.LastPrice)

	switch res.Outcome {
	case OutcomeBought, OutcomeSkip, OutcomeDiscarded:
		s.failStreak = 0
	default:
		s.failStreak++
		if s.failStreak >= r.cfg.Tuning.RelocateAfterFail {
			r.log.Info("evicting cached card location after repeated failures",
				"item", s.Item.Name, "failures", s.failStreak)
			r.cards.Delete(s.Item.ID)
			s.failStreak = 0
		}
		r.wait(ctx, r.cfg.Tuning.RetryDelay())
	}
}

// locateCard returns the cached card location or performs a fresh
// full-screen search for the item's anchor template.
func (r *Runner) locateCard(ctx context.Context, s *ItemState) (cardLocation, bool) {
	if v, ok := r.cards.Get(s.Item.ID); ok {
		return v.(cardLocation), true
	}

	anchor, err := r.screen.Locate(ctx, s.Item.Template, 0)
	if err != nil {
		r.log.Debug("card anchor not found", "item", s.Item.Name, "error", err)
		return cardLocation{}, false
	}
	regions, err := r.geo.CardRegions(anchor)
	if err != nil {
		return cardLocation{}, false
	}

	loc := cardLocation{Anchor: anchor, Card: regions.Card}
	r.cards.Set(s.Item.ID, loc, gocache.NoExpiration)
	return loc, true
}

// recordMissCycle advances the zero-valid-price streak and runs the
// penalty check when both trigger conditions hold.
func (r *Runner) recordMissCycle(ctx context.Context) {
	r.missStreak++
	if r.missStreak < r.cfg.Tuning.MissStreakThreshold {
		return
	}
	if time.Since(r.lastGoodRead) < r.cfg.Tuning.PenaltyConfirmDelay() {
		return
	}
	r.checkAndHandlePenalty(ctx)
}

// checkAndHandlePenalty looks for the on-screen penalty warning. Without
// visual confirmation the streak is reset and the account assumed fine;
// with it, the flow confirms the dialog and sits out the cooldown.
func (r *Runner) checkAndHandlePenalty(ctx context.Context) {
	if _, err := r.screen.Locate(ctx, tplPenaltyWarning, 600*time.Millisecond); err != nil {
		r.log.Debug("miss streak without penalty warning, resetting", "streak", r.missStreak)
		r.missStreak = 0
		return
	}

	r.log.Warn("penalty warning detected, entering cooldown")
	r.bus.Send(event.PenaltyDetected(event.Text("penalty warning on screen")))

	r.wait(ctx, r.cfg.Tuning.PenaltyConfirmDelay())
	if btn, err := r.screen.Locate(ctx, tplBtnPenaltyConfirm, 200*time.Millisecond); err == nil {
		r.screen.ClickCenter(btn)
	}
	r.wait(ctx, r.cfg.Tuning.PenaltyWait())

	r.missStreak = 0
	r.lastGoodRead = time.Now()
}

// refreshFavorites forces the list view to re-render by bouncing through
// the recent tab, then waits for content to appear.
func (r *Runner) refreshFavorites(ctx context.Context) {
	if box, err := r.screen.Locate(ctx, tplTabRecent, 0); err == nil {
		r.screen.ClickCenter(box)
	}
	if box, err := r.screen.Locate(ctx, tplTabFavorites, 0); err == nil {
		r.screen.ClickCenter(box)
	}
	r.waitContentReady(ctx)
}

// waitContentReady polls until at least one configured card anchor shows
// up or the probe window ends.
func (r *Runner) waitContentReady(ctx context.Context) {
	deadline := time.Now().Add(r.cfg.Tuning.ContentReady())
	for time.Now().Before(deadline) && !r.stopped(ctx) {
		for _, s := range r.items {
			if !s.Runnable() {
				continue
			}
			if _, err := r.screen.Locate(ctx, s.Item.Template, 0); err == nil {
				return
			}
		}
		if !r.wait(ctx, r.cfg.Tuning.PollInterval()) {
			return
		}
	}
}

// precacheCards warms the card-location cache before the first scan so the
// opening cycles skip their full-screen searches. Items still missing after
// the retries are left for the scan loop to find later.
func (r *Runner) precacheCards(ctx context.Context) {
	backoff := time.Second
	for attempt := 0; attempt < 3; attempt++ {
		missing := 0
		for _, s := range r.items {
			if r.stopped(ctx) {
				return
			}
			if !s.Runnable() {
				continue
			}
			if _, ok := r.cards.Get(s.Item.ID); ok {
				continue
			}
			if _, ok := r.locateCard(ctx, s); !ok {
				missing++
			}
		}
		if missing == 0 {
			return
		}
		r.log.Debug("card precache incomplete, retrying", "missing", missing, "backoff", backoff)
		if !r.wait(ctx, backoff) {
			return
		}
		backoff *= 2
	}
}

// restartWithin runs the soft restart in the middle of an item's slice and
// pushes the slice deadline back by however long the restart took, so a
// relaunch does not eat the item's scan time.
func (r *Runner) restartWithin(ctx context.Context, segEnd time.Time) time.Time {
	start := time.Now()
	r.restartFn(ctx)
	r.scheduleRestart()
	return segEnd.Add(time.Since(start))
}

// scheduleRestart arms the next soft restart when a restart interval is
// configured; zero disables scheduled restarts.
func (r *Runner) scheduleRestart() {
	if r.cfg.Game.RestartEveryMin <= 0 {
		r.nextRestart = time.Time{}
		return
	}
	r.nextRestart = time.Now().Add(time.Duration(r.cfg.Game.RestartEveryMin) * time.Minute)
}
