package config

// UserSettings is the subset of AppConfig the user can edit at
// runtime (from the menu bar or the HTTP API). It is applied over the
// file config by the orchestrator at the top of the next tick.
type UserSettings struct {
	ProlongedSeatedMinutes      int        `json:"prolonged_seated_minutes"`
	NotificationCooldownMinutes int        `json:"notification_cooldown_minutes"`
	QuietHours                  [][]string `json:"quiet_hours"`
}

// SettingsFromConfig extracts the editable fields.
func SettingsFromConfig(cfg AppConfig) UserSettings {
	quiet := make([][]string, 0, len(cfg.QuietHours))
	for _, slot := range cfg.QuietHours {
		quiet = append(quiet, append([]string(nil), slot...))
	}
	return UserSettings{
		ProlongedSeatedMinutes:      cfg.ProlongedSeatedMinutes,
		NotificationCooldownMinutes: cfg.NotificationCooldownMinutes,
		QuietHours:                  quiet,
	}
}

// Apply returns a copy of cfg with the editable fields replaced.
// Out-of-range values keep the previous setting.
func (s UserSettings) Apply(cfg AppConfig) AppConfig {
	if s.ProlongedSeatedMinutes >= 1 {
		cfg.ProlongedSeatedMinutes = s.ProlongedSeatedMinutes
	}
	if s.NotificationCooldownMinutes >= 1 {
		cfg.NotificationCooldownMinutes = s.NotificationCooldownMinutes
	}
	quiet := make([][]string, 0, len(s.QuietHours))
	for _, slot := range s.QuietHours {
		if len(slot) != 2 {
			continue
		}
		if _, err := ParseClock(slot[0]); err != nil {
			continue
		}
		if _, err := ParseClock(slot[1]); err != nil {
			continue
		}
		quiet = append(quiet, append([]string(nil), slot...))
	}
	cfg.QuietHours = quiet
	return cfg
}
