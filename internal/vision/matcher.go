package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

// Matcher finds UI elements on the live screen by template matching and
// drives the pointer. All of its methods must stay on the single worker
// goroutine: the capture and input APIs are not safe to share.
type Matcher struct {
	log    *slog.Logger
	reg    *Registry
	poll   time.Duration
	settle time.Duration
}

func NewMatcher(reg *Registry, poll, settle time.Duration, log *slog.Logger) *Matcher {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	return &Matcher{log: log, reg: reg, poll: poll, settle: settle}
}

func (m *Matcher) screenBounds() image.Rectangle {
	return screenshot.GetDisplayBounds(0)
}

// Capture grabs a screen region. Errors come back to the caller so locate
// loops can treat a transient capture glitch as a miss.
func (m *Matcher) Capture(region image.Rectangle) (image.Image, error) {
	img, err := screenshot.CaptureRect(region)
	if err != nil {
		return nil, fmt.Errorf("capturing %v: %w", region, err)
	}
	return img, nil
}

// LocateIn searches one template inside the given screen region once.
// The returned rectangle is in screen coordinates.
func (m *Matcher) LocateIn(key string, region image.Rectangle) (image.Rectangle, error) {
	t, err := m.reg.get(key)
	if err != nil {
		return image.Rectangle{}, err
	}

	img, err := m.Capture(region)
	if err != nil {
		// Transient capture failures read as a miss, the poll loop retries.
		m.log.Debug("capture failed during locate", "template", key, "error", err)
		return image.Rectangle{}, ErrLocateMiss
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %s", ErrLocateMiss, key)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)

	if gray.Cols() < t.gray.Cols() || gray.Rows() < t.gray.Rows() {
		return image.Rectangle{}, ErrLocateMiss
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(gray, t.gray, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)

	if maxVal < t.confidence {
		return image.Rectangle{}, fmt.Errorf("%w: %s (best %.2f < %.2f)", ErrLocateMiss, key, maxVal, t.confidence)
	}

	found := image.Rect(
		region.Min.X+maxLoc.X,
		region.Min.Y+maxLoc.Y,
		region.Min.X+maxLoc.X+t.gray.Cols(),
		region.Min.Y+maxLoc.Y+t.gray.Rows(),
	)
	return found, nil
}

// Locate polls the whole screen for a template until it appears, the
// timeout elapses or the context ends. Timeout zero means a single attempt.
func (m *Matcher) Locate(ctx context.Context, key string, timeout time.Duration) (image.Rectangle, error) {
	deadline := time.Now().Add(timeout)
	bounds := m.screenBounds()
	for {
		if err := ctx.Err(); err != nil {
			return image.Rectangle{}, err
		}
		r, err := m.LocateIn(key, bounds)
		if err == nil {
			return r, nil
		}
		if errors.Is(err, ErrTemplateMissing) {
			// Polling cannot fix a missing template file.
			return image.Rectangle{}, err
		}
		if time.Now().After(deadline) {
			return image.Rectangle{}, err
		}
		t := time.NewTimer(m.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return image.Rectangle{}, ctx.Err()
		case <-t.C:
		}
	}
}

// ClickCenter moves the pointer to the rectangle's centroid, clicks and
// waits the settle delay.
func (m *Matcher) ClickCenter(r image.Rectangle) {
	cx := r.Min.X + r.Dx()/2
	cy := r.Min.Y + r.Dy()/2
	m.Click(cx, cy)
}

func (m *Matcher) Click(x, y int) {
	robotgo.MoveMouse(x, y)
	robotgo.MilliSleep(30)
	robotgo.MouseClick("left", false)
	time.Sleep(m.settle)
}

// MoveAway parks the pointer near the screen edge so it does not sit over
// a template about to be matched.
func (m *Matcher) MoveAway() {
	b := m.screenBounds()
	robotgo.MoveMouse(b.Min.X+2, b.Min.Y+b.Dy()/2)
}

// TypeText replaces the focused input's content with s.
func (m *Matcher) TypeText(s string) {
	robotgo.KeyTap("a", "ctrl")
	robotgo.MilliSleep(30)
	robotgo.TypeStr(s)
	time.Sleep(m.settle)
}
