// Package config loads and saves agent-watch's user-configurable
// defaults, grounded on the teacher's config.Config JSON file under
// XDG_CONFIG_HOME.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Config holds user-configurable defaults for the collector, engine, and
// CLI surface.
type Config struct {
	Match       string       `json:"match"`
	IntervalSec int          `json:"interval_sec"`
	DBPath      string       `json:"db_path"`
	Headless    bool         `json:"headless"`
	Thresholds  ThresholdCfg `json:"thresholds"`
	Alerts      AlertConfig  `json:"alerts"`
}

// ThresholdCfg mirrors model.Thresholds for JSON round-tripping without
// importing the model package's field tags directly into the CLI surface.
type ThresholdCfg struct {
	CPUWarning      float64 `json:"cpu_warning"`
	CPUCritical     float64 `json:"cpu_critical"`
	RSSWarningMB    float64 `json:"rss_warning_mb"`
	RSSCriticalMB   float64 `json:"rss_critical_mb"`
	FDWarning       int32   `json:"fd_warning"`
	FDCritical      int32   `json:"fd_critical"`
	ThreadsWarning  int32   `json:"threads_warning"`
	ThreadsCritical int32   `json:"threads_critical"`
}

// AlertConfig names external destinations for fired alerts, mirroring the
// teacher's broader notifier surface. The fields are loaded and saved with
// the rest of the config; the CLI does not read any of them.
type AlertConfig struct {
	Webhook          string `json:"webhook"`
	Command          string `json:"command"`
	Email            string `json:"email"`
	SlackWebhook     string `json:"slack_webhook"`
	TelegramBotToken string `json:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id"`
}

// DefaultMatchPattern is the pipe-separated pattern used when none is
// configured.
const DefaultMatchPattern = "codex|claude|gemini|copilot"

// Default returns a config with sensible defaults.
func Default() Config {
	return Config{
		Match:       DefaultMatchPattern,
		IntervalSec: 5,
		DBPath:      "agent-watch.db",
		Thresholds: ThresholdCfg{
			CPUWarning: 80, CPUCritical: 95,
			RSSWarningMB: 2048, RSSCriticalMB: 4096,
			FDWarning: 1000, FDCritical: 5000,
			ThreadsWarning: 100, ThreadsCritical: 500,
		},
	}
}

// Path returns ~/.config/agent-watch/config.json (or XDG_CONFIG_HOME).
// Returns empty string if home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // refuse to fall back to /tmp (security risk)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "agent-watch", "config.json")
}

// Load loads config from disk; returns defaults on error.
func Load() Config {
	cfg := Default()
	p := Path()
	if p == "" {
		return cfg
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("agent-watch: warning: config parse error: %v", err)
	}
	return cfg
}

// Save writes the config to disk.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
