package bot

import (
	"context"
	"image"
	"time"
)

// Template keys. Each maps to an entry in the settings template table;
// item card anchors use the per-item template key from the task list.
const (
	tplBtnLaunch         = "btn_launch"
	tplHomeIndicator     = "home_indicator"
	tplMarketIndicator   = "market_indicator"
	tplBtnMarket         = "btn_market"
	tplBtnHome           = "btn_home"
	tplBtnSettings       = "btn_settings"
	tplBtnExit           = "btn_exit"
	tplBtnExitConfirm    = "btn_exit_confirm"
	tplTabRecent         = "tab_recent"
	tplTabFavorites      = "tab_favorites"
	tplBtnBuy            = "btn_buy"
	tplBuyOK             = "buy_ok"
	tplBuyFail           = "buy_fail"
	tplBtnClose          = "btn_close"
	tplBtnBack           = "btn_back"
	tplBtnMax            = "btn_max"
	tplQtyInput          = "qty_input"
	tplPenaltyWarning    = "penalty_warning"
	tplBtnPenaltyConfirm = "btn_penalty_confirm"
)

// Screen is the narrow surface the bot needs from the display: find a
// template, grab pixels, drive the pointer. Implemented by vision.Matcher;
// tests substitute a scripted fake.
type Screen interface {
	Locate(ctx context.Context, key string, timeout time.Duration) (image.Rectangle, error)
	LocateIn(key string, region image.Rectangle) (image.Rectangle, error)
	Capture(region image.Rectangle) (image.Image, error)
	ClickCenter(r image.Rectangle)
	Click(x, y int)
	MoveAway()
	TypeText(s string)
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
