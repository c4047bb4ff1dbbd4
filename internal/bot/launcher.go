package bot

import (
	"context"
	"time"
)

// SetLaunchHooks installs the platform hooks used by the launch-recovery
// flow: focus brings the game window forward, launch starts the game or
// launcher process. Either may be nil.
func (r *Runner) SetLaunchHooks(focus func() error, launch func() error) {
	r.focusGame = focus
	r.launchGame = launch
}

// ensureGameReady verifies the market view is reachable before a scan
// pass: the market indicator means go, the home indicator means one click
// away, neither means the game is gone and needs the launch flow.
func (r *Runner) ensureGameReady(ctx context.Context) bool {
	if r.focusGame != nil {
		if err := r.focusGame(); err != nil {
			r.log.Debug("could not focus game window", "error", err)
		}
	}

	if _, err := r.screen.Locate(ctx, tplMarketIndicator, 0); err == nil {
		return true
	}
	if _, err := r.screen.Locate(ctx, tplHomeIndicator, 0); err == nil {
		if btn, err := r.screen.Locate(ctx, tplBtnMarket, 0); err == nil {
			r.screen.ClickCenter(btn)
			return r.awaitTemplate(ctx, tplMarketIndicator, 5*time.Second)
		}
		return false
	}

	r.log.Warn("game screen not recognized, attempting relaunch")
	return r.launchFlow(ctx)
}

// launchFlow starts the game process if a hook is installed, clicks
// through the launcher and waits for the home screen. Every wait is
// stop-aware; a timeout just means the caller retries later.
func (r *Runner) launchFlow(ctx context.Context) bool {
	if r.launchGame != nil {
		if err := r.launchGame(); err != nil {
			r.log.Warn("starting game process failed", "error", err)
		}
	}

	launcherTimeout := time.Duration(r.cfg.Game.LauncherTimeoutS) * time.Second
	deadline := time.Now().Add(launcherTimeout)
	for time.Now().Before(deadline) && !r.stopped(ctx) {
		if btn, err := r.screen.Locate(ctx, tplBtnLaunch, 0); err == nil {
			r.screen.ClickCenter(btn)
			if !r.wait(ctx, time.Duration(r.cfg.Game.LaunchClickDelayS)*time.Second) {
				return false
			}
			break
		}
		if !r.wait(ctx, r.cfg.Tuning.PollInterval()) {
			return false
		}
	}

	startupTimeout := time.Duration(r.cfg.Game.StartupTimeoutS) * time.Second
	if r.awaitTemplate(ctx, tplHomeIndicator, startupTimeout) {
		r.log.Info("game is back on the home screen")
		return true
	}
	r.log.Warn("game did not reach the home screen in time")
	return false
}

// softRestart exits the game through the settings menu and runs the
// launch flow again. Used on the scheduled restart boundary to clear the
// client's degraded state after long sessions.
func (r *Runner) softRestart(ctx context.Context) {
	r.log.Info("soft restart: exiting game")
	r.cards.Flush()

	steps := []struct {
		key  string
		wait time.Duration
	}{
		{tplBtnHome, 5 * time.Second},
		{tplBtnSettings, 5 * time.Second},
		{tplBtnExit, 5 * time.Second},
		{tplBtnExitConfirm, 30 * time.Second},
	}
	for _, step := range steps {
		if r.stopped(ctx) {
			return
		}
		if box, err := r.screen.Locate(ctx, step.key, 2*time.Second); err == nil {
			r.screen.ClickCenter(box)
			if !r.wait(ctx, step.wait) {
				return
			}
		} else {
			// Nothing was clicked, no transition to wait for.
			r.log.Debug("soft restart control not found, continuing", "template", step.key)
		}
	}

	r.launchFlow(ctx)
}

// awaitTemplate polls for a template with stop-aware waits.
func (r *Runner) awaitTemplate(ctx context.Context, key string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !r.stopped(ctx) {
		if _, err := r.screen.Locate(ctx, key, 0); err == nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if !r.wait(ctx, r.cfg.Tuning.PollInterval()) {
			return false
		}
	}
	return false
}
