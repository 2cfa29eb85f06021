package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/username/shift-payroll/internal/wage"
)

// EnvPrefix prefixes every environment override, e.g. SHIFT_PAYROLL_WAGE_HOURLY_RATE
const EnvPrefix = "SHIFT_PAYROLL"

// Config represents application configuration
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Wage     WageConfig     `mapstructure:"wage"`
	Holidays HolidaysConfig `mapstructure:"holidays"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
}

// DataConfig locates the input files. Relative file names resolve against Dir.
type DataConfig struct {
	Dir           string `mapstructure:"dir"`
	ShiftTypeFile string `mapstructure:"shift_type_file"`
	HolidayFile   string `mapstructure:"holiday_file"`
}

// WageConfig holds the pay rules. When OvertimeTiers is set it replaces the
// two legacy overtime settings.
type WageConfig struct {
	HourlyRate         float64      `mapstructure:"hourly_rate"`
	BaseHours          float64      `mapstructure:"base_hours"`
	OvertimeHoursLimit float64      `mapstructure:"overtime_hours_limit"`
	OvertimeRate1      float64      `mapstructure:"overtime_rate_1"`
	OvertimeRate2      float64      `mapstructure:"overtime_rate_2"`
	HolidayRate        float64      `mapstructure:"holiday_rate"`
	OvertimeTiers      []TierConfig `mapstructure:"overtime_tiers"`
}

// TierConfig is one overtime band; Hours is ignored on the last tier
type TierConfig struct {
	Hours float64 `mapstructure:"hours"`
	Rate  float64 `mapstructure:"rate"`
}

// HolidaysConfig enables an optional remote holiday source in front of the holiday file
type HolidaysConfig struct {
	SourceURL string `mapstructure:"source_url"` // may contain {year}
	APIToken  string `mapstructure:"api_token"`
	CacheTTL  string `mapstructure:"cache_ttl"`
}

// CalendarConfig represents calendar event configuration
type CalendarConfig struct {
	APIEndpoint string `mapstructure:"api_endpoint"`
	CalendarID  string `mapstructure:"calendar_id"`
	TokenFile   string `mapstructure:"token_file"`
	TokenURI    string `mapstructure:"token_uri"`
	Token       string `mapstructure:"token"` // static bearer token, overrides token_file
	TimeZone    string `mapstructure:"time_zone"`
	Location    string `mapstructure:"location"`
	Workplace   string `mapstructure:"workplace"`
	StateFile   string `mapstructure:"state_file"` // remembers events already created
}

// StoreConfig represents run history storage configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.shift_type_file", "shift_type.json")
	v.SetDefault("data.holiday_file", "holiday.json")

	v.SetDefault("wage.hourly_rate", 190)
	v.SetDefault("wage.base_hours", 8)
	v.SetDefault("wage.overtime_hours_limit", 2)
	v.SetDefault("wage.overtime_rate_1", 1.33)
	v.SetDefault("wage.overtime_rate_2", 1.66)
	v.SetDefault("wage.holiday_rate", 2)

	v.SetDefault("holidays.source_url", "")
	v.SetDefault("holidays.api_token", "")
	v.SetDefault("holidays.cache_ttl", "24h")

	v.SetDefault("calendar.api_endpoint", "https://www.googleapis.com/calendar/v3")
	v.SetDefault("calendar.calendar_id", "primary")
	v.SetDefault("calendar.token_file", "credentials/token.json")
	v.SetDefault("calendar.token_uri", "")
	v.SetDefault("calendar.token", "")
	v.SetDefault("calendar.time_zone", "Asia/Taipei")
	v.SetDefault("calendar.location", "")
	v.SetDefault("calendar.workplace", "")
	v.SetDefault("calendar.state_file", "./data/event_state.json")

	v.SetDefault("store.path", "./data/payroll.db")

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
}

// Load loads configuration from file. A missing config file is not an error
// when no explicit path was given; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	// .env values become environment variables unless already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.shift-payroll")
		v.AddConfigPath("/etc/shift-payroll")
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.ExpandEnvVars()

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Data.ShiftTypeFile == "" {
		return fmt.Errorf("data.shift_type_file is required")
	}

	if _, err := c.Wage.RateConfig(); err != nil {
		return err
	}

	if c.Holidays.CacheTTL != "" {
		if _, err := time.ParseDuration(c.Holidays.CacheTTL); err != nil {
			return fmt.Errorf("holidays.cache_ttl must be a duration like 24h, got '%s'", c.Holidays.CacheTTL)
		}
	}

	if c.Calendar.TimeZone != "" {
		if _, err := time.LoadLocation(c.Calendar.TimeZone); err != nil {
			return fmt.Errorf("calendar.time_zone '%s' is not a known time zone", c.Calendar.TimeZone)
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got '%s'", c.Log.Level)
	}

	return nil
}

// RateConfig converts the wage section into a validated engine configuration
func (w WageConfig) RateConfig() (wage.RateConfig, error) {
	rc := wage.NewRateConfig(w.HourlyRate, w.BaseHours, w.OvertimeHoursLimit,
		w.OvertimeRate1, w.OvertimeRate2, w.HolidayRate)

	if len(w.OvertimeTiers) > 0 {
		rc.Tiers = make([]wage.Tier, len(w.OvertimeTiers))
		for i, t := range w.OvertimeTiers {
			rc.Tiers[i] = wage.Tier{
				Hours: decimal.NewFromFloat(t.Hours),
				Rate:  decimal.NewFromFloat(t.Rate),
			}
		}
	}

	if err := rc.Validate(); err != nil {
		var cfgErr *wage.ConfigError
		if errors.As(err, &cfgErr) {
			return wage.RateConfig{}, fmt.Errorf("wage.%s %s: %w", cfgErr.Field, cfgErr.Reason, wage.ErrConfig)
		}
		return wage.RateConfig{}, err
	}

	return rc, nil
}

// GetCacheTTL returns cache TTL duration
func (c *HolidaysConfig) GetCacheTTL() time.Duration {
	if c.CacheTTL == "" {
		return 24 * time.Hour
	}
	duration, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return duration
}

// ShiftTypePath returns the catalog file path
func (d *DataConfig) ShiftTypePath() string {
	return d.resolve(d.ShiftTypeFile)
}

// HolidayPath returns the holiday file path, or "" when none is configured
func (d *DataConfig) HolidayPath() string {
	if d.HolidayFile == "" {
		return ""
	}
	return d.resolve(d.HolidayFile)
}

func (d *DataConfig) resolve(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// ExpandEnvVars expands environment variables in config strings
func (c *Config) ExpandEnvVars() {
	c.Data.Dir = os.ExpandEnv(c.Data.Dir)
	c.Calendar.Token = os.ExpandEnv(c.Calendar.Token)
	c.Calendar.TokenFile = os.ExpandEnv(c.Calendar.TokenFile)
	c.Calendar.StateFile = os.ExpandEnv(c.Calendar.StateFile)
	c.Holidays.APIToken = os.ExpandEnv(c.Holidays.APIToken)
	c.Store.Path = os.ExpandEnv(c.Store.Path)
}
