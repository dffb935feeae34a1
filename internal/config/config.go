package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	appLog "shopcal/internal/log"
	"shopcal/internal/model"
	"shopcal/internal/schedule"
)

// FeedConfig describes one ICS job feed. Either URL or Path is set.
type FeedConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is an HTTP(S) subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Path is a local .ics file, read on every refresh.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// BasicAuthConfig enables HTTP Basic Auth. PasswordHash is produced by
// `shopcal hash-password`.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// ViewConfig controls grid geometry shared by the calendar views.
type ViewConfig struct {
	// StartHour / HourCount select the visible hour rows.
	StartHour int `yaml:"start_hour" json:"start_hour"`
	HourCount int `yaml:"hour_count" json:"hour_count"`
	// PxPerHour is the rendered height of one hour row.
	PxPerHour float64 `yaml:"px_per_hour" json:"px_per_hour"`
	// MaxMonthEvents caps chips per month cell ("+N more" beyond it).
	MaxMonthEvents int `yaml:"max_month_events" json:"max_month_events"`
	// MaxWeekEvents caps chips per hour cell; 0 shows all.
	MaxWeekEvents int `yaml:"max_week_events" json:"max_week_events"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone in which wall-clock times are read.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// Tick is the cron spec for re-evaluating "now" (indicator, carry-over).
	Tick string `yaml:"tick" json:"tick"`

	// RefreshCron is the cron spec for reloading job feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays / BackfillDays bound the expansion window for recurring jobs.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds per-feed HTTP caches.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	BusinessHours []model.BusinessHourRule `yaml:"business_hours" json:"business_hours"`

	View ViewConfig `yaml:"view" json:"view"`

	CarryOver schedule.CarryOverPolicy `yaml:"carry_over" json:"carry_over"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultBusinessHours is Monday-Friday 08:00-17:00, Saturday 09:00-13:00,
// Sunday closed.
func DefaultBusinessHours() []model.BusinessHourRule {
	rules := []model.BusinessHourRule{{DayOfWeek: 0, IsClosed: true}}
	for d := 1; d <= 5; d++ {
		rules = append(rules, model.BusinessHourRule{DayOfWeek: d, OpenTime: "08:00", CloseTime: "17:00"})
	}
	return append(rules, model.BusinessHourRule{DayOfWeek: 6, OpenTime: "09:00", CloseTime: "13:00"})
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "UTC",
		WeekStart:     "monday",
		Tick:          "@every 1m",
		RefreshCron:   "*/15 * * * *",
		HorizonDays:   62,
		BackfillDays:  31,
		LogLevel:      "info",
		CacheDir:      "./var/feed-cache",
		BusinessHours: DefaultBusinessHours(),
		View: ViewConfig{
			StartHour:      6,
			HourCount:      14,
			PxPerHour:      60,
			MaxMonthEvents: 3,
		},
		Feeds: []FeedConfig{},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave. Business hours are left alone: an empty list is a valid
// "no rules yet" shop.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	if c.Tick == "" {
		c.Tick = def.Tick
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.View.StartHour < 0 || c.View.StartHour > 23 {
		c.View.StartHour = 0
	}
	if c.View.HourCount <= 0 || c.View.StartHour+c.View.HourCount > 24 {
		c.View.HourCount = 24 - c.View.StartHour
	}
	if c.View.PxPerHour <= 0 {
		c.View.PxPerHour = def.View.PxPerHour
	}
	if c.View.MaxMonthEvents < 0 {
		c.View.MaxMonthEvents = 0
	}
	if c.View.MaxWeekEvents < 0 {
		c.View.MaxWeekEvents = 0
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
}

// Location resolves Timezone, falling back to time.Local when the zone
// cannot be loaded.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// WeekStartDay maps WeekStart onto a weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save normalizes cfg and writes it to path atomically with 0600 perms,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
