package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Retry         RetryConfig         `toml:"retry"`
	Polling       PollingConfig       `toml:"polling"`
	Schedule      ScheduleConfig      `toml:"schedule"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	StateDir      string `toml:"state_dir"`
	Model         string `toml:"model"`
	AutoMerge     bool   `toml:"auto_merge"`
	MaxSessions   int    `toml:"max_sessions"`
	PauseOnSubmit bool   `toml:"pause_on_submit"`
}

// RetryConfig holds agent-call retry settings
type RetryConfig struct {
	MaxAttempts  int      `toml:"max_attempts"`
	BaseDelay    Duration `toml:"base_delay"`
	MaxDelay     Duration `toml:"max_delay"`
	JitterFactor float64  `toml:"jitter_factor"`
}

// PollingConfig holds submission/check polling settings
type PollingConfig struct {
	Interval     Duration `toml:"interval"`
	MaxInterval  Duration `toml:"max_interval"`
	StallTimeout Duration `toml:"stall_timeout"`
}

// ScheduleConfig restricts when new agent sessions may start.
// An empty cron expression means sessions may start at any time.
type ScheduleConfig struct {
	WorkWindow Duration `toml:"work_window"`
	Cron       string   `toml:"cron"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop       bool   `toml:"desktop"`
	WebhookURL    string `toml:"webhook_url"`
	WebhookSecret string `toml:"webhook_secret"`
}

// WebConfig holds status server settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Duration is a time.Duration that unmarshals from TOML strings like "30s"
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			StateDir:  ".claude-task-master",
			Model:     "sonnet",
			AutoMerge: true,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			BaseDelay:    Duration(2 * time.Second),
			MaxDelay:     Duration(5 * time.Minute),
			JitterFactor: 0.25,
		},
		Polling: PollingConfig{
			Interval:     Duration(10 * time.Second),
			MaxInterval:  Duration(5 * time.Minute),
			StallTimeout: Duration(2 * time.Hour),
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Web: WebConfig{
			Port: 8321,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.StateDir = ExpandPath(cfg.General.StateDir)

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "claude-task-master", "config.toml")
}
