package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Ticket        TicketConfig        `yaml:"ticket"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Pessimization PessimizationConfig `yaml:"pessimization"`
	Risk          RiskConfig          `yaml:"risk"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GetPort returns the configured listen port, default 8080.
func (c ServerConfig) GetPort() int {
	if c.Port <= 0 {
		return 8080
	}
	return c.Port
}

// GetHost returns the configured bind host, defaulting to all interfaces.
func (c ServerConfig) GetHost() string {
	if c.Host == "" {
		return "0.0.0.0"
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis connection settings for the rate limiter and
// the sweep lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TicketConfig holds settings for the external ranking/keyword-check
// service, reached through the async ticket submit/poll contract.
type TicketConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	RequestsPerMinute  int    `yaml:"requests_per_minute"`
	RequestsPerDay     int    `yaml:"requests_per_day"`
	PollIntervalSecs   int    `yaml:"poll_interval_seconds"`
	PollMaxAttempts    int    `yaml:"poll_max_attempts"`
	TimeoutSecs        int    `yaml:"timeout_seconds"`
}

// PollInterval returns the fixed delay between poll attempts.
func (c TicketConfig) PollInterval() time.Duration {
	if c.PollIntervalSecs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// MaxAttempts returns the poll attempt ceiling.
func (c TicketConfig) MaxAttempts() int {
	if c.PollMaxAttempts <= 0 {
		return 20
	}
	return c.PollMaxAttempts
}

// Timeout returns the per-request HTTP timeout.
func (c TicketConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// MonitorConfig holds position sweep settings.
type MonitorConfig struct {
	Enabled          bool   `yaml:"enabled"`
	SweepIntervalHrs int    `yaml:"sweep_interval_hours"`
	Workers          int    `yaml:"workers"`
	DefaultCountry   string `yaml:"default_country"`
}

// SweepInterval returns the cadence of scheduled position sweeps.
func (c MonitorConfig) SweepInterval() time.Duration {
	if c.SweepIntervalHrs <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.SweepIntervalHrs) * time.Hour
}

// WorkerCount returns the sweep worker pool size.
func (c MonitorConfig) WorkerCount() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// Country returns the storefront country used for sweeps.
func (c MonitorConfig) Country() string {
	if c.DefaultCountry == "" {
		return "us"
	}
	return c.DefaultCountry
}

// PessimizationConfig holds drop-severity thresholds and the detector
// cadence. Thresholds bound half-open intervals: minor [min,moderate),
// moderate [moderate,severe), severe [severe,inf).
type PessimizationConfig struct {
	Enabled           bool `yaml:"enabled"`
	ScanIntervalMins  int  `yaml:"scan_interval_minutes"`
	MinorThreshold    int  `yaml:"minor_threshold"`
	ModerateThreshold int  `yaml:"moderate_threshold"`
	SevereThreshold   int  `yaml:"severe_threshold"`
	BaselineWindow    int  `yaml:"baseline_window"` // snapshots per keyword
}

// ScanInterval returns the detector cadence.
func (c PessimizationConfig) ScanInterval() time.Duration {
	if c.ScanIntervalMins <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.ScanIntervalMins) * time.Minute
}

// Thresholds returns the minor/moderate/severe drop thresholds with
// defaults applied.
func (c PessimizationConfig) Thresholds() (minor, moderate, severe int) {
	minor, moderate, severe = c.MinorThreshold, c.ModerateThreshold, c.SevereThreshold
	if minor <= 0 {
		minor = 5
	}
	if moderate <= minor {
		moderate = 15
	}
	if severe <= moderate {
		severe = 30
	}
	return minor, moderate, severe
}

// Window returns how many recent snapshots per keyword form the rolling
// baseline.
func (c PessimizationConfig) Window() int {
	if c.BaselineWindow <= 0 {
		return 10
	}
	return c.BaselineWindow
}

// RiskConfig bounds the history window consumed per risk assessment.
type RiskConfig struct {
	HistoryWindow int `yaml:"history_window"`
}

// Window returns the per-niche record window, default 50.
func (c RiskConfig) Window() int {
	if c.HistoryWindow <= 0 {
		return 50
	}
	return c.HistoryWindow
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads the YAML config and applies environment overrides.
// A .env file is loaded first if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TICKET_API_KEY"); v != "" {
		cfg.Ticket.APIKey = v
	}
	if v := os.Getenv("TICKET_BASE_URL"); v != "" {
		cfg.Ticket.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}
