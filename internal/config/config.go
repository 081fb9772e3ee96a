package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultPort is the TCP port the bridge server listens on.
	DefaultPort = 28900

	// DefaultPollMs is the local clipboard polling period.
	DefaultPollMs = 300

	// MinPollMs is the floor the polling period is clamped to.
	MinPollMs = 50

	// DefaultMaxEntries bounds the local clip history.
	DefaultMaxEntries = 100
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig identifies the bridge server and the reconnect policy.
type ConnectionConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	AutoConnect bool   `json:"auto_connect"`
}

// ClipboardConfig tunes local clipboard polling.
type ClipboardConfig struct {
	PollMs int `json:"poll_ms"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Events NotificationEventsConfig `json:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	ClipboardReceived bool `json:"clipboard_received"`
	ConnectionStatus  bool `json:"connection_status"`
}

// HistoryConfig controls the local clip history database.
type HistoryConfig struct {
	Enabled    bool `json:"enabled"`
	MaxEntries int  `json:"max_entries"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection"`
	Logging       LoggingConfig      `json:"logging"`
	Clipboard     ClipboardConfig    `json:"clipboard"`
	Notifications NotificationConfig `json:"notifications"`
	History       HistoryConfig      `json:"history"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Host:        "",
			Port:        DefaultPort,
			AutoConnect: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Clipboard: ClipboardConfig{
			PollMs: DefaultPollMs,
		},
		Notifications: NotificationConfig{
			Events: NotificationEventsConfig{
				ClipboardReceived: true,
				ConnectionStatus:  true,
			},
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: DefaultMaxEntries,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Connection.Port <= 0 {
		c.Connection.Port = DefaultPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch {
	case c.Clipboard.PollMs <= 0:
		c.Clipboard.PollMs = DefaultPollMs
	case c.Clipboard.PollMs < MinPollMs:
		c.Clipboard.PollMs = MinPollMs
	}
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = DefaultMaxEntries
	}
}

func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Connection.Host) == "" {
		return errors.New("bridge host is required")
	}
	if c.Connection.Port < 1 || c.Connection.Port > 65535 {
		return fmt.Errorf("bridge port out of range: %d", c.Connection.Port)
	}
	if c.Clipboard.PollMs < MinPollMs {
		return fmt.Errorf("clipboard poll interval must be at least %dms", MinPollMs)
	}
	if c.History.MaxEntries <= 0 {
		return errors.New("history max entries must be positive")
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
