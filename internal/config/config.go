package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	// Embedded zone database so configured timezones resolve on minimal hosts
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/session-booking/pkg/core/recurrence"
)

// Offering defines a bookable session type
type Offering struct {
	Slug         string `yaml:"slug" validate:"required"`
	Name         string `yaml:"name" validate:"required"`
	StartHour    int    `yaml:"startHour" validate:"min=0,max=23"`
	EndHour      int    `yaml:"endHour" validate:"gtfield=StartHour,max=24"`
	Modality     string `yaml:"modality" validate:"required,oneof=virtual in-person"`
	MaxOccupancy int    `yaml:"maxOccupancy" validate:"required,min=1"`
}

// Owner is a location or programme whose day patterns drive slot generation
type Owner struct {
	ID           string   `yaml:"id" validate:"required"`
	Name         string   `yaml:"name"`
	DayPatterns  []string `yaml:"dayPatterns,omitempty"`
	FullCalendar bool     `yaml:"fullCalendar,omitempty"`
}

// ReminderWindow selects sessions starting between From and To from now
type ReminderWindow struct {
	From time.Duration `yaml:"from" validate:"min=0"`
	To   time.Duration `yaml:"to" validate:"gtfield=From"`
}

// RedisConfig configures the reminder dedup store
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" validate:"min=0"`
}

// SchedulerConfig holds cron specs for background jobs
type SchedulerConfig struct {
	MaterializeSpec string `yaml:"materializeSpec,omitempty"`
	ReminderSpec    string `yaml:"reminderSpec,omitempty"`
}

// Config represents the application configuration
type Config struct {
	Timezone            string                    `yaml:"timezone" validate:"required"`
	DatabaseURL         string                    `yaml:"databaseURL,omitempty"`
	Offerings           []Offering                `yaml:"offerings" validate:"required,min=1,dive"`
	Owners              []Owner                   `yaml:"owners" validate:"required,min=1,dive"`
	HostRoster          []string                  `yaml:"hostRoster" validate:"required,min=1,unique,dive,email"`
	DuplicateWindowDays *int                      `yaml:"duplicateWindowDays,omitempty" validate:"omitempty,min=0"`
	HorizonMonths       int                       `yaml:"horizonMonths,omitempty" validate:"omitempty,min=1,max=24"`
	LookaheadMonths     int                       `yaml:"lookaheadMonths,omitempty" validate:"omitempty,min=1"`
	Holidays            []string                  `yaml:"holidays,omitempty" validate:"dive,datetime=2006-01-02"`
	HolidayFeeds        []string                  `yaml:"holidayFeeds,omitempty" validate:"dive,required"`
	ReminderWindows     map[string]ReminderWindow `yaml:"reminderWindows,omitempty" validate:"dive,keys,required,endkeys"`
	CalendarTimeout     time.Duration             `yaml:"calendarTimeout,omitempty" validate:"min=0"`
	GmailSender         string                    `yaml:"gmailSender,omitempty" validate:"omitempty,email"`
	Redis               *RedisConfig              `yaml:"redis,omitempty"`
	Scheduler           SchedulerConfig           `yaml:"scheduler,omitempty"`
	HTTPAddr            string                    `yaml:"httpAddr,omitempty"`
	LogsDir             string                    `yaml:"logsDir,omitempty"`
}

const (
	defaultDuplicateWindowDays = 7
	defaultHorizonMonths       = 3
	defaultLookaheadMonths     = 1
	defaultCalendarTimeout     = 10 * time.Second
	defaultMaterializeSpec     = "0 3 * * *"
	defaultReminderSpec        = "*/10 * * * *"
	defaultHTTPAddr            = ":8080"
	defaultLogsDir             = "logs"
)

// DatabaseURLEnv overrides databaseURL so credentials can stay out of the file
const DatabaseURLEnv = "BOOKING_DATABASE_URL"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates booking_config.yaml
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads and validates the configuration for an environment.
// For example, env="test" will look for "booking_config.test.yaml".
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if url := os.Getenv(DatabaseURLEnv); url != "" {
		cfg.DatabaseURL = url
	}
	cfg.applyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DuplicateWindowDays == nil {
		days := defaultDuplicateWindowDays
		c.DuplicateWindowDays = &days
	}
	if c.HorizonMonths == 0 {
		c.HorizonMonths = defaultHorizonMonths
	}
	if c.LookaheadMonths == 0 {
		c.LookaheadMonths = defaultLookaheadMonths
	}
	if c.CalendarTimeout == 0 {
		c.CalendarTimeout = defaultCalendarTimeout
	}
	if len(c.ReminderWindows) == 0 {
		c.ReminderWindows = map[string]ReminderWindow{
			"24h": {From: 23 * time.Hour, To: 25 * time.Hour},
			"2h":  {From: 110 * time.Minute, To: 130 * time.Minute},
		}
	}
	if c.Scheduler.MaterializeSpec == "" {
		c.Scheduler.MaterializeSpec = defaultMaterializeSpec
	}
	if c.Scheduler.ReminderSpec == "" {
		c.Scheduler.ReminderSpec = defaultReminderSpec
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if c.LogsDir == "" {
		c.LogsDir = defaultLogsDir
	}
}

// Validate validates the configuration struct and the cross-field rules
// the tags cannot express
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	slugs := make(map[string]bool)
	for i, o := range cfg.Offerings {
		if slugs[o.Slug] {
			return fmt.Errorf("duplicate offering slug in offerings[%d]: %s", i, o.Slug)
		}
		slugs[o.Slug] = true
	}

	owners := make(map[string]bool)
	for i, o := range cfg.Owners {
		if owners[o.ID] {
			return fmt.Errorf("duplicate owner id in owners[%d]: %s", i, o.ID)
		}
		owners[o.ID] = true
	}

	if _, err := cron.ParseStandard(cfg.Scheduler.MaterializeSpec); err != nil {
		return fmt.Errorf("invalid scheduler.materializeSpec %q: %w", cfg.Scheduler.MaterializeSpec, err)
	}
	if _, err := cron.ParseStandard(cfg.Scheduler.ReminderSpec); err != nil {
		return fmt.Errorf("invalid scheduler.reminderSpec %q: %w", cfg.Scheduler.ReminderSpec, err)
	}

	return nil
}

// PatternWarnings lists day patterns that will be skipped at resolution time.
// Malformed patterns are not fatal.
func (c *Config) PatternWarnings() []string {
	var warnings []string
	for _, o := range c.Owners {
		for _, raw := range o.DayPatterns {
			if !recurrence.Parse(raw).Recognized() {
				warnings = append(warnings, fmt.Sprintf("owner %s: unrecognized day pattern %q", o.ID, raw))
			}
		}
	}
	return warnings
}

// Location returns the configured timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Roster returns the host roster with emails normalised to lower case
func (c *Config) Roster() []string {
	roster := make([]string, len(c.HostRoster))
	for i, h := range c.HostRoster {
		roster[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return roster
}

// findConfigFile searches for the config file in the current directory and
// home directory. If env is provided it is added as an extension.
func findConfigFile(env string) (string, error) {
	configFileName := "booking_config.yaml"
	if env != "" {
		configFileName = "booking_config." + env + ".yaml"
	}

	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", configFileName)
}
