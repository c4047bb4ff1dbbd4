package vision

import (
	"fmt"
	"syscall"

	"github.com/lxn/win"
)

// FocusWindow brings the game window to the foreground before any input is
// injected. Clicks landing on another application are worse than a missed
// cycle.
func FocusWindow(title string) error {
	ptr, err := syscall.UTF16PtrFromString(title)
	if err != nil {
		return err
	}
	hwnd := win.FindWindow(nil, ptr)
	if hwnd == 0 {
		return fmt.Errorf("window %q not found", title)
	}
	if win.IsIconic(hwnd) {
		win.ShowWindow(hwnd, win.SW_RESTORE)
	}
	win.SetForegroundWindow(hwnd)
	return nil
}

// WindowPresent reports whether the game window exists at all, used by the
// launch-recovery flow to decide between relaunching and just waiting.
func WindowPresent(title string) bool {
	ptr, err := syscall.UTF16PtrFromString(title)
	if err != nil {
		return false
	}
	return win.FindWindow(nil, ptr) != 0
}

// DisplayScale returns the OS display scaling factor. Template images are
// captured at 100% scale, matching breaks down when the desktop runs at
// anything else.
func DisplayScale() float64 {
	hDC := win.GetDC(0)
	defer win.ReleaseDC(0, hDC)
	dpiX := win.GetDeviceCaps(hDC, win.LOGPIXELSX)
	return float64(dpiX) / 96.0
}
