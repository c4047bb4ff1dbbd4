package bot

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/config"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/ocr"
)

type locateResult struct {
	rect image.Rectangle
	err  error
}

// fakeScreen scripts template lookups: a per-key queue is consumed first,
// then the static table answers, then everything is a miss. All clicks
// and typed text are recorded for assertions.
type fakeScreen struct {
	mu     sync.Mutex
	queue  map[string][]locateResult
	static map[string]image.Rectangle

	clicks    []image.Rectangle
	rawClicks []image.Point
	typed     []string
	movedAway int
}

func newFakeScreen() *fakeScreen {
	return &fakeScreen{
		queue:  make(map[string][]locateResult),
		static: make(map[string]image.Rectangle),
	}
}

func (f *fakeScreen) push(key string, rect image.Rectangle, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[key] = append(f.queue[key], locateResult{rect: rect, err: err})
}

func (f *fakeScreen) pushMiss(key string) {
	f.push(key, image.Rectangle{}, errMiss)
}

func (f *fakeScreen) setStatic(key string, rect image.Rectangle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.static[key] = rect
}

func (f *fakeScreen) Locate(_ context.Context, key string, _ time.Duration) (image.Rectangle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q := f.queue[key]; len(q) > 0 {
		f.queue[key] = q[1:]
		return q[0].rect, q[0].err
	}
	if r, ok := f.static[key]; ok {
		return r, nil
	}
	return image.Rectangle{}, errMiss
}

func (f *fakeScreen) LocateIn(key string, _ image.Rectangle) (image.Rectangle, error) {
	return f.Locate(context.Background(), key, 0)
}

func (f *fakeScreen) Capture(region image.Rectangle) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy())), nil
}

func (f *fakeScreen) ClickCenter(r image.Rectangle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, r)
}

func (f *fakeScreen) Click(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawClicks = append(f.rawClicks, image.Pt(x, y))
}

func (f *fakeScreen) MoveAway() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movedAway++
}

func (f *fakeScreen) TypeText(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, s)
}

func (f *fakeScreen) clicked(r image.Rectangle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clicks {
		if c == r {
			n++
		}
	}
	return n
}

// fakeRecognizer returns scripted box lists in call order, repeating the
// last entry once the script runs out. Entries registered by region offset
// take precedence, which keeps batch jobs deterministic regardless of the
// order the pool picks them up in.
type fakeRecognizer struct {
	mu       sync.Mutex
	scripts  []fakeOCR
	byOffset map[image.Point]fakeOCR
}

type fakeOCR struct {
	boxes []ocr.Box
	err   error
}

func textBoxes(texts ...string) []ocr.Box {
	out := make([]ocr.Box, 0, len(texts))
	for i, t := range texts {
		out = append(out, ocr.Box{Text: t, Rect: image.Rect(0, i*10, 40, i*10+10)})
	}
	return out
}

func (f *fakeRecognizer) pushText(texts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, fakeOCR{boxes: textBoxes(texts...)})
}

func (f *fakeRecognizer) pushErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, fakeOCR{err: err})
}

func (f *fakeRecognizer) pushAt(offset image.Point, texts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byOffset == nil {
		f.byOffset = make(map[image.Point]fakeOCR)
	}
	f.byOffset[offset] = fakeOCR{boxes: textBoxes(texts...)}
}

func (f *fakeRecognizer) RecognizeText(_ image.Image, offset image.Point) ([]ocr.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byOffset[offset]; ok {
		return s.boxes, s.err
	}
	if len(f.scripts) == 0 {
		return nil, ocr.ErrNoText
	}
	s := f.scripts[0]
	if len(f.scripts) > 1 {
		f.scripts = f.scripts[1:]
	}
	return s.boxes, s.err
}

func testTuning() config.Tuning {
	return config.Tuning{
		PollIntervalMS:      1,
		SettleDelayMS:       1,
		OutcomeTimeoutMS:    100,
		OutcomePollMS:       5,
		RetryDelayMS:        1,
		RelocateAfterFail:   3,
		OCRWorkers:          4,
		MaxPerOrder:         120,
		MissStreakThreshold: 10,
		PenaltyConfirmSec:   1,
		PenaltyWaitSec:      1,
		DedupWindowSec:      1,
		ContentReadySec:     1,
		MaxCards:            6,
	}
}
