package scans

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines scan thresholds and retention windows. Zero fields fall
// back to defaults, so a partial yaml file only overrides what it names.
type Config struct {
	GeofenceRadiusMeters float64 `yaml:"geofence_radius_meters"`
	DwellMinutes         int     `yaml:"dwell_minutes"`
	EventWindow          int     `yaml:"event_window"`
	BatteryWarningPct    float64 `yaml:"battery_warning_pct"`
	BatteryCriticalPct   float64 `yaml:"battery_critical_pct"`
	SignalSilenceHours   int     `yaml:"signal_silence_hours"`
	UnusedLabelDays      int     `yaml:"unused_label_days"`
	PendingReminderDays  int     `yaml:"pending_reminder_days"`
	EventRetentionDays   int     `yaml:"event_retention_days"`
	ReadRetentionDays    int     `yaml:"read_retention_days"`
	UnreadRetentionDays  int     `yaml:"unread_retention_days"`
}

// DefaultConfig returns the platform defaults.
func DefaultConfig() Config {
	return Config{
		GeofenceRadiusMeters: 100,
		DwellMinutes:         30,
		EventWindow:          10,
		BatteryWarningPct:    20,
		BatteryCriticalPct:   10,
		SignalSilenceHours:   24,
		UnusedLabelDays:      7,
		PendingReminderDays:  3,
		EventRetentionDays:   90,
		ReadRetentionDays:    30,
		UnreadRetentionDays:  90,
	}
}

// LoadConfig loads scan configuration from yaml or env.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("SCANS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.GeofenceRadiusMeters = getenvFloatDefault("SCANS_GEOFENCE_RADIUS_METERS", cfg.GeofenceRadiusMeters)
	cfg.DwellMinutes = getenvIntDefault("SCANS_DWELL_MINUTES", cfg.DwellMinutes)
	cfg.EventWindow = getenvIntDefault("SCANS_EVENT_WINDOW", cfg.EventWindow)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.GeofenceRadiusMeters <= 0 {
		return errors.New("scans: geofence radius must be positive")
	}
	if c.DwellMinutes <= 0 {
		return errors.New("scans: dwell minutes must be positive")
	}
	if c.EventWindow <= 0 {
		return errors.New("scans: event window must be positive")
	}
	if c.BatteryCriticalPct > c.BatteryWarningPct {
		return errors.New("scans: critical battery threshold above warning threshold")
	}
	return nil
}

// Dwell returns the minimum in-geofence dwell duration.
func (c Config) Dwell() time.Duration {
	return time.Duration(c.DwellMinutes) * time.Minute
}

// SignalSilence returns the silence window before a no-signal alert.
func (c Config) SignalSilence() time.Duration {
	return time.Duration(c.SignalSilenceHours) * time.Hour
}

// UnusedLabelAge returns the activation age before an unused-label reminder.
func (c Config) UnusedLabelAge() time.Duration {
	return time.Duration(c.UnusedLabelDays) * 24 * time.Hour
}

// PendingReminderAge returns the age before a stale-pending reminder.
func (c Config) PendingReminderAge() time.Duration {
	return time.Duration(c.PendingReminderDays) * 24 * time.Hour
}

// EventRetention returns the post-delivery event retention window.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// ReadRetention returns the read-notification retention window.
func (c Config) ReadRetention() time.Duration {
	return time.Duration(c.ReadRetentionDays) * 24 * time.Hour
}

// UnreadRetention returns the unread-notification retention window.
func (c Config) UnreadRetention() time.Duration {
	return time.Duration(c.UnreadRetentionDays) * 24 * time.Hour
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
