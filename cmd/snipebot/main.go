package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	botlog "github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/cmd/snipebot/log"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/bot"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/config"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/event"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/history"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/notify"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/ocr"
	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/vision"
)

func main() {
	configDir := flag.String("config", "config", "configuration directory, seeded on first run")
	flag.Parse()

	err := run(*configDir)
	botlog.FlushAndClose()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	logger, err := botlog.NewLogger(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return err
	}
	defer botlog.FlushLog()

	if scale := vision.DisplayScale(); scale != 1.0 {
		logger.Warn("display scaling is not 100%, template coordinates may be off", "scale", scale)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Each pass builds a fresh runner; a config change stops the current one
	// and starts over with the reloaded settings.
	for {
		restart, err := runOnce(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if !restart || ctx.Err() != nil {
			return nil
		}

		logger.Info("configuration changed, restarting with new settings")
		cfg, err = config.Load(configDir)
		if err != nil {
			return err
		}
	}
}

func runOnce(ctx context.Context, cfg *config.Settings, logger *slog.Logger) (restart bool, err error) {
	tasks, err := config.LoadTasks(cfg.TasksPath())
	if err != nil {
		return false, err
	}
	if err := config.ValidateTasks(tasks); err != nil {
		return false, fmt.Errorf("invalid tasks: %w", err)
	}
	if len(tasks) == 0 {
		logger.Warn("no tasks configured, nothing to scan", "path", cfg.TasksPath())
	}

	registry := vision.NewRegistry(templateSpecs(cfg.Templates), logger)
	defer registry.Close()
	matcher := vision.NewMatcher(registry, cfg.Tuning.PollInterval(), cfg.Tuning.SettleDelay(), logger)

	hist, err := history.New(cfg.OutputDir, cfg.Tuning.DedupWindow(), logger)
	if err != nil {
		return false, err
	}
	defer hist.Close()

	bus := event.NewBus()
	if err := attachNotifiers(bus, cfg.Notify, logger); err != nil {
		return false, err
	}

	runner := bot.NewRunner(cfg, tasks, matcher, buildRecognizer(cfg, logger), hist, bus, logger)
	runner.SetLaunchHooks(
		func() error { return vision.FocusWindow(cfg.Game.WindowTitle) },
		func() error { return startGame(cfg.Game) },
	)

	var reload atomic.Bool
	stopWatch, err := config.Watch(cfg.Dir(), logger, func() {
		reload.Store(true)
		runner.Stop()
	})
	if err != nil {
		return false, err
	}
	defer stopWatch()

	if err := runner.Run(ctx); err != nil {
		return false, err
	}
	return reload.Load(), nil
}

func templateSpecs(templates map[string]config.Template) map[string]vision.Spec {
	specs := make(map[string]vision.Spec, len(templates))
	for name, t := range templates {
		specs[name] = vision.Spec{Path: t.Path, Confidence: t.Confidence}
	}
	return specs
}

func buildRecognizer(cfg *config.Settings, logger *slog.Logger) ocr.Recognizer {
	if strings.EqualFold(cfg.OCR.Engine, "tesseract") {
		logger.Info("using local tesseract OCR engine")
		return ocr.NewTesseractEngine(cfg.OCR.Allowlist, cfg.OCR.Language)
	}
	logger.Info("using Umi-OCR server", "base_url", cfg.OCR.BaseURL)
	return ocr.NewUmiClient(cfg.OCR.BaseURL, cfg.OCR.Timeout(), cfg.OCR.Options)
}

func attachNotifiers(bus *event.Bus, cfg config.Notify, logger *slog.Logger) error {
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		return err
	}
	if tg != nil {
		bus.Subscribe(tg.Handle)
	}

	dc, err := notify.NewDiscord(cfg.DiscordToken, cfg.DiscordChannel, logger)
	if err != nil {
		return err
	}
	if dc != nil {
		bus.Subscribe(dc.Handle)
	}
	return nil
}

func startGame(game config.Game) error {
	if game.ExePath == "" {
		return fmt.Errorf("game exe_path is not configured")
	}
	cmd := exec.Command(game.ExePath, strings.Fields(game.LaunchArgs)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting game: %w", err)
	}
	return cmd.Process.Release()
}
