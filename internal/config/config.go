package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cp "github.com/otiai10/copy"
	"gopkg.in/yaml.v3"

	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/market"
)

const (
	settingsFile = "settings.yaml"
	tasksFile    = "tasks.json"
	templateDir  = "config.template"
)

// Template is one named UI element image with its match confidence.
type Template struct {
	Path       string  `yaml:"path"`
	Confidence float32 `yaml:"confidence"`
}

type OCR struct {
	Engine    string         `yaml:"engine"` // umi or tesseract
	BaseURL   string         `yaml:"base_url"`
	TimeoutMS int            `yaml:"timeout_ms"`
	Language  string         `yaml:"language"`
	Allowlist string         `yaml:"allowlist"`
	Options   map[string]any `yaml:"options"`
}

func (o OCR) Timeout() time.Duration { return time.Duration(o.TimeoutMS) * time.Millisecond }

type Game struct {
	ExePath           string `yaml:"exe_path"`
	LaunchArgs        string `yaml:"launch_args"`
	WindowTitle       string `yaml:"window_title"`
	LauncherTimeoutS  int    `yaml:"launcher_timeout_sec"`
	LaunchClickDelayS int    `yaml:"launch_click_delay_sec"`
	StartupTimeoutS   int    `yaml:"startup_timeout_sec"`
	RestartEveryMin   int    `yaml:"restart_every_min"`
}

// Tuning holds the loop timing knobs. All of them have working defaults,
// the file only needs the ones being overridden.
type Tuning struct {
	PollIntervalMS      int `yaml:"poll_interval_ms"`
	SettleDelayMS       int `yaml:"settle_delay_ms"`
	OutcomeTimeoutMS    int `yaml:"outcome_timeout_ms"`
	OutcomePollMS       int `yaml:"outcome_poll_ms"`
	RetryDelayMS        int `yaml:"retry_delay_ms"`
	RelocateAfterFail   int `yaml:"relocate_after_fail"`
	OCRWorkers          int `yaml:"ocr_workers"`
	MaxPerOrder         int `yaml:"max_per_order"`
	MissStreakThreshold int `yaml:"miss_streak_threshold"`
	PenaltyConfirmSec   int `yaml:"penalty_confirm_delay_sec"`
	PenaltyWaitSec      int `yaml:"penalty_wait_sec"`
	DedupWindowSec      int `yaml:"price_dedup_window_sec"`
	ContentReadySec     int `yaml:"content_ready_sec"`
	MaxCards            int `yaml:"max_cards"`
}

func (t Tuning) PollInterval() time.Duration   { return time.Duration(t.PollIntervalMS) * time.Millisecond }
func (t Tuning) SettleDelay() time.Duration    { return time.Duration(t.SettleDelayMS) * time.Millisecond }
func (t Tuning) OutcomeTimeout() time.Duration { return time.Duration(t.OutcomeTimeoutMS) * time.Millisecond }
func (t Tuning) OutcomePoll() time.Duration    { return time.Duration(t.OutcomePollMS) * time.Millisecond }
func (t Tuning) RetryDelay() time.Duration     { return time.Duration(t.RetryDelayMS) * time.Millisecond }
func (t Tuning) PenaltyConfirmDelay() time.Duration {
	return time.Duration(t.PenaltyConfirmSec) * time.Second
}
func (t Tuning) PenaltyWait() time.Duration  { return time.Duration(t.PenaltyWaitSec) * time.Second }
func (t Tuning) DedupWindow() time.Duration  { return time.Duration(t.DedupWindowSec) * time.Second }
func (t Tuning) ContentReady() time.Duration { return time.Duration(t.ContentReadySec) * time.Second }

type Notify struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

type Settings struct {
	LogLevel  string                `yaml:"log_level"`
	LogDir    string                `yaml:"log_dir"`
	OutputDir string                `yaml:"output_dir"`
	Mode      string                `yaml:"mode"` // time or round
	OCR       OCR                   `yaml:"ocr"`
	Game      Game                  `yaml:"game"`
	Geometry  market.GeometryConfig `yaml:"geometry"`
	Tuning    Tuning                `yaml:"tuning"`
	Notify    Notify                `yaml:"notify"`
	Templates map[string]Template   `yaml:"templates"`

	dir string
}

// Load reads settings.yaml from dir, seeding dir from the bundled template
// directory on first run.
func Load(dir string) (*Settings, error) {
	if err := ensureSeeded(dir); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(dir, settingsFile))
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	s := &Settings{dir: dir}
	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	s.applyDefaults()

	return s, nil
}

func (s *Settings) Save() error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, settingsFile), raw, 0644)
}

func (s *Settings) Dir() string       { return s.dir }
func (s *Settings) TasksPath() string { return filepath.Join(s.dir, tasksFile) }

func ensureSeeded(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, settingsFile)); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if _, err := os.Stat(templateDir); errors.Is(err, os.ErrNotExist) {
		// No bundled template, start from built-in defaults.
		s := &Settings{dir: dir}
		s.applyDefaults()
		return s.Save()
	}
	return cp.Copy(templateDir, dir)
}

func (s *Settings) applyDefaults() {
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogDir == "" {
		s.LogDir = "logs"
	}
	if s.OutputDir == "" {
		s.OutputDir = "output"
	}
	if s.Mode == "" {
		s.Mode = "time"
	}
	if s.OCR.Engine == "" {
		s.OCR.Engine = "umi"
	}
	if s.OCR.BaseURL == "" {
		s.OCR.BaseURL = "http://127.0.0.1:1224"
	}
	if s.OCR.TimeoutMS <= 0 {
		s.OCR.TimeoutMS = 2500
	}
	if s.OCR.Allowlist == "" {
		s.OCR.Allowlist = "0123456789KkMm"
	}
	if s.Game.LauncherTimeoutS <= 0 {
		s.Game.LauncherTimeoutS = 60
	}
	if s.Game.LaunchClickDelayS <= 0 {
		s.Game.LaunchClickDelayS = 20
	}
	if s.Game.StartupTimeoutS <= 0 {
		s.Game.StartupTimeoutS = 180
	}
	if s.Geometry == (market.GeometryConfig{}) {
		s.Geometry = market.DefaultGeometryConfig()
	}

	t := &s.Tuning
	if t.PollIntervalMS <= 0 {
		t.PollIntervalMS = 200
	}
	if t.SettleDelayMS <= 0 {
		t.SettleDelayMS = 150
	}
	if t.OutcomeTimeoutMS <= 0 {
		t.OutcomeTimeoutMS = 3000
	}
	if t.OutcomePollMS <= 0 {
		t.OutcomePollMS = 500
	}
	if t.RetryDelayMS <= 0 {
		t.RetryDelayMS = 600
	}
	if t.RelocateAfterFail <= 0 {
		t.RelocateAfterFail = 3
	}
	if t.OCRWorkers <= 0 {
		t.OCRWorkers = 4
	}
	if t.MaxPerOrder <= 0 {
		t.MaxPerOrder = 120
	}
	if t.MissStreakThreshold <= 0 {
		t.MissStreakThreshold = 10
	}
	if t.PenaltyConfirmSec <= 0 {
		t.PenaltyConfirmSec = 5
	}
	if t.PenaltyWaitSec <= 0 {
		t.PenaltyWaitSec = 180
	}
	if t.DedupWindowSec <= 0 {
		t.DedupWindowSec = 5
	}
	if t.ContentReadySec <= 0 {
		t.ContentReadySec = 2
	}
	if t.MaxCards <= 0 {
		t.MaxCards = 6
	}
}
