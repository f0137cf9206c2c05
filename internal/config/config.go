// Package config loads the scheduler/dispatcher's configuration from a
// YAML file, then overlays environment variables (with local .env
// support for development) on top of it.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the dispatcher and launch-control
// binaries.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	SparkPost  SparkPostConfig  `yaml:"sparkpost"`
	AI         AIConfig         `yaml:"ai"`
}

// DatabaseConfig holds the Postgres connection and pool settings.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_minutes"`
}

// RedisConfig holds the distributed-lock backend's connection. Addr
// empty means the Postgres advisory-lock fallback is used instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SchedulerConfig mirrors the spacing/working-hours parameters the
// original scheduling module shipped as defaults.
type SchedulerConfig struct {
	Timezone            string  `yaml:"timezone"`
	WorkingHourStart    int     `yaml:"working_hour_start"`
	WorkingHourEnd      int     `yaml:"working_hour_end"`
	IntervalMinutes     float64 `yaml:"interval_minutes"`
	JitterSecondsMax    float64 `yaml:"jitter_seconds_max"`
	DisableWorkingHours bool    `yaml:"disable_working_hours"`
}

// DispatcherConfig controls the send loop's cadence and safety valves.
type DispatcherConfig struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	BatchSize           int    `yaml:"batch_size"`
	CircuitThreshold    int    `yaml:"circuit_threshold"`
	Cron                string `yaml:"cron"`
}

// SparkPostConfig holds the transmission API credentials.
type SparkPostConfig struct {
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AIConfig holds the generation call's provider settings.
type AIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func defaults() Config {
	return Config{
		Database: DatabaseConfig{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifeMins: 5},
		Scheduler: SchedulerConfig{
			Timezone:         "America/Los_Angeles",
			WorkingHourStart: 9,
			WorkingHourEnd:   17,
			IntervalMinutes:  3.5,
			JitterSecondsMax: 30,
		},
		Dispatcher: DispatcherConfig{PollIntervalSeconds: 60, BatchSize: 20, CircuitThreshold: 10},
		SparkPost:  SparkPostConfig{TimeoutSeconds: 10},
		AI:         AIConfig{Model: "claude-sonnet-4-20250514", TimeoutSeconds: 20},
	}
}

// Load reads a YAML config file from path, applying defaults for any
// field left unset.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv loads a config file, then overlays environment variables
// so secrets can live outside the checked-in YAML. A .env file in the
// working directory is loaded first, for local development; its
// absence is not an error.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		cfg.SparkPost.APIKey = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Scheduler.Timezone = v
	}
	if v := os.Getenv("DISABLE_WORKING_HOURS"); v == "true" {
		cfg.Scheduler.DisableWorkingHours = true
	}

	return cfg, cfg.Validate()
}

// Validate enforces the required-at-boot settings, matching the
// original implementation's fail-fast startup check.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.DSN == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.SparkPost.APIKey == "" {
		missing = append(missing, "SPARKPOST_API_KEY")
	}
	if c.AI.APIKey == "" {
		missing = append(missing, "AI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %v", missing)
	}
	return nil
}
