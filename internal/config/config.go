package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WindowCategory maps foreground applications onto a task weight.
// Patterns are case-insensitive substrings matched against the app
// name or bundle identifier.
type WindowCategory struct {
	Name     string   `toml:"name" mapstructure:"name"`
	Weight   float64  `toml:"weight" mapstructure:"weight"`
	Patterns []string `toml:"patterns" mapstructure:"patterns"`
}

// LogConfig controls file logging. Console logging is always on.
type LogConfig struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// AppConfig is the full runtime configuration. It is loaded once at
// startup and treated as read-only; the orchestrator swaps in a fresh
// copy when the user edits settings.
type AppConfig struct {
	ShortBreakMinutes      int `toml:"short_break_minutes" mapstructure:"short_break_minutes"`
	BreakResetMinutes      int `toml:"break_reset_minutes" mapstructure:"break_reset_minutes"`
	ProlongedSeatedMinutes int `toml:"prolonged_seated_minutes" mapstructure:"prolonged_seated_minutes"`

	NotificationsEnabled        bool       `toml:"notifications_enabled" mapstructure:"notifications_enabled"`
	NotificationCooldownMinutes int        `toml:"notification_cooldown_minutes" mapstructure:"notification_cooldown_minutes"`
	QuietHours                  [][]string `toml:"quiet_hours" mapstructure:"quiet_hours"`

	VisionEnabled                 bool    `toml:"vision_enabled" mapstructure:"vision_enabled"`
	VisionCaptureIntervalSeconds  float64 `toml:"vision_capture_interval_seconds" mapstructure:"vision_capture_interval_seconds"`
	VisionPresenceThreshold       float64 `toml:"vision_presence_threshold" mapstructure:"vision_presence_threshold"`
	VisionPostureUprightThreshold float64 `toml:"vision_posture_upright_threshold" mapstructure:"vision_posture_upright_threshold"`
	VisionPostureSlouchThreshold  float64 `toml:"vision_posture_slouch_threshold" mapstructure:"vision_posture_slouch_threshold"`
	CameraDeviceID                int     `toml:"camera_device_id" mapstructure:"camera_device_id"`

	WindowCategories []WindowCategory `toml:"window_categories" mapstructure:"window_categories"`

	Listen     string    `toml:"listen" mapstructure:"listen"`
	StatsPath  string    `toml:"stats_path" mapstructure:"stats_path"`
	BufferSize int       `toml:"buffer_size" mapstructure:"buffer_size"`
	Log        LogConfig `toml:"log" mapstructure:"log"`
}

// Default returns the built-in configuration, matching a typical desk
// session: 3-minute break reset, 45-minute sedentary threshold.
func Default() AppConfig {
	return AppConfig{
		ShortBreakMinutes:             3,
		BreakResetMinutes:             3,
		ProlongedSeatedMinutes:        45,
		NotificationsEnabled:          true,
		NotificationCooldownMinutes:   30,
		VisionEnabled:                 true,
		VisionCaptureIntervalSeconds:  10,
		VisionPresenceThreshold:       0.6,
		VisionPostureUprightThreshold: 0.7,
		VisionPostureSlouchThreshold:  0.4,
		Listen:                        "127.0.0.1:8093",
		BufferSize:                    600,
		Log:                           LogConfig{Level: "info"},
		WindowCategories: []WindowCategory{
			{Name: "work", Weight: 1.0, Patterns: []string{"code", "terminal", "xcode", "notion", "google docs"}},
			{Name: "meeting", Weight: 0.9, Patterns: []string{"zoom", "meet", "teams"}},
			{Name: "leisure", Weight: 0.3, Patterns: []string{"music", "netflix", "youtube", "game"}},
		},
	}
}

// Load reads a TOML config file and overlays it on Default. A missing
// file is not an error; the defaults are returned unchanged.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot work with.
func (c AppConfig) Validate() error {
	if c.ShortBreakMinutes < 1 {
		return errors.New("short_break_minutes must be >= 1")
	}
	if c.BreakResetMinutes < 1 {
		return errors.New("break_reset_minutes must be >= 1")
	}
	if c.ProlongedSeatedMinutes < 1 {
		return errors.New("prolonged_seated_minutes must be >= 1")
	}
	if c.NotificationCooldownMinutes < 1 {
		return errors.New("notification_cooldown_minutes must be >= 1")
	}
	if c.VisionPresenceThreshold < 0 || c.VisionPresenceThreshold > 1 {
		return errors.New("vision_presence_threshold must be within [0,1]")
	}
	for _, slot := range c.QuietHours {
		if len(slot) != 2 {
			return fmt.Errorf("quiet_hours slot must be [start, end], got %v", slot)
		}
		for _, hm := range slot {
			if _, err := ParseClock(hm); err != nil {
				return fmt.Errorf("quiet_hours: %w", err)
			}
		}
	}
	return nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value %q out of range", value)
	}
	return hour*60 + minute, nil
}

// CaptureInterval returns the passive vision capture interval, floored
// at one second to keep the camera duty cycle low.
func (c AppConfig) CaptureInterval() time.Duration {
	secs := c.VisionCaptureIntervalSeconds
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs * float64(time.Second))
}
