package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/refresh"
	"github.com/rendis/bonsai/internal/sandbox"
)

// Config holds all bonsai configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr      string  `json:"listen_addr"`
	LogLevel        string  `json:"log_level"`
	LogJSON         bool    `json:"log_json"`
	DebounceMS      int     `json:"debounce_ms"`
	ZoomStep        float64 `json:"zoom_step"`
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	Dialect         string  `json:"dialect"`
	RefreshSchedule string  `json:"refresh_schedule"`
	JournalPath     string  `json:"journal_path"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":4200",
		LogLevel:   "info",
		DebounceMS: int(editor.DefaultDebounceWindow / time.Millisecond),
		ZoomStep:   editor.DefaultZoomStep,
		Width:      editor.DefaultWidth,
		Height:     editor.DefaultHeight,
		Dialect:    sandbox.DialectExpr,
	}
}

func bonsaiDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bonsai"
	}
	return filepath.Join(home, ".bonsai")
}

func settingsPath() string {
	return filepath.Join(bonsaiDir(), "settings.json")
}

// loadConfig layers settings.json (path, or the default location when
// empty) and BONSAI_* env vars over the defaults. A missing file is not an
// error; a malformed one is.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = settingsPath()
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if v := os.Getenv("BONSAI_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("BONSAI_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BONSAI_LOG_JSON"); v != "" {
		cfg.LogJSON = v == "true" || v == "1"
	}
	if v := os.Getenv("BONSAI_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DebounceMS = n
		}
	}
	if v := os.Getenv("BONSAI_ZOOM_STEP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ZoomStep = f
		}
	}
	if v := os.Getenv("BONSAI_WIDTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Width = f
		}
	}
	if v := os.Getenv("BONSAI_HEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Height = f
		}
	}
	if v := os.Getenv("BONSAI_DIALECT"); v != "" {
		cfg.Dialect = v
	}
	if v, ok := os.LookupEnv("BONSAI_REFRESH_SCHEDULE"); ok {
		cfg.RefreshSchedule = v
	}
	if v, ok := os.LookupEnv("BONSAI_JOURNAL_PATH"); ok {
		cfg.JournalPath = v
	}
	return cfg, nil
}

// registerConfigFlags declares the persistent flags that override config.
func registerConfigFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "settings file (default: ~/.bonsai/settings.json)")
	fs.String("listen-addr", "", "HTTP listen address for serve")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.Bool("log-json", false, "log as JSON")
	fs.Int("debounce-ms", 0, "quiet period before re-evaluation, in milliseconds")
	fs.Float64("zoom-step", 0, "relative zoom change per wheel notch")
	fs.Float64("width", 0, "viewport width")
	fs.Float64("height", 0, "viewport height")
	fs.String("dialect", "", "default fragment dialect: expr, cel, jq, hcl")
	fs.String("refresh", "", "cron schedule for forced re-evaluation (e.g. \"@every 30s\")")
	fs.String("journal", "", "path of the run journal database; empty disables it")
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(fs *pflag.FlagSet, cfg *Config) {
	if fs.Changed("listen-addr") {
		cfg.ListenAddr, _ = fs.GetString("listen-addr")
	}
	if fs.Changed("log-level") {
		cfg.LogLevel, _ = fs.GetString("log-level")
	}
	if fs.Changed("log-json") {
		cfg.LogJSON, _ = fs.GetBool("log-json")
	}
	if fs.Changed("debounce-ms") {
		cfg.DebounceMS, _ = fs.GetInt("debounce-ms")
	}
	if fs.Changed("zoom-step") {
		cfg.ZoomStep, _ = fs.GetFloat64("zoom-step")
	}
	if fs.Changed("width") {
		cfg.Width, _ = fs.GetFloat64("width")
	}
	if fs.Changed("height") {
		cfg.Height, _ = fs.GetFloat64("height")
	}
	if fs.Changed("dialect") {
		cfg.Dialect, _ = fs.GetString("dialect")
	}
	if fs.Changed("refresh") {
		cfg.RefreshSchedule, _ = fs.GetString("refresh")
	}
	if fs.Changed("journal") {
		cfg.JournalPath, _ = fs.GetString("journal")
	}
}

// validate rejects configurations the components would refuse at runtime.
func (c Config) validate(dialects []string) error {
	if c.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must be >= 0, got %d", c.DebounceMS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %vx%v", c.Width, c.Height)
	}
	if c.ZoomStep <= 0 || c.ZoomStep >= 1 {
		return fmt.Errorf("zoom_step must be in (0, 1), got %v", c.ZoomStep)
	}
	known := false
	for _, d := range dialects {
		if d == c.Dialect {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown dialect %q (available: %v)", c.Dialect, dialects)
	}
	if c.RefreshSchedule != "" {
		if _, err := refresh.ParseSchedule(c.RefreshSchedule); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) viewportConfig() editor.ViewportConfig {
	vc := editor.DefaultViewportConfig()
	vc.Width = c.Width
	vc.Height = c.Height
	vc.ZoomStep = c.ZoomStep
	return vc
}

func (c Config) debounceWindow() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}
