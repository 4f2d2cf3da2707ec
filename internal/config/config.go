package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Sheets struct {
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		CredentialsFile string `yaml:"credentials_file"`
		SlotsSheet      string `yaml:"slots_sheet"`
		SignupsSheet    string `yaml:"signups_sheet"`
	} `yaml:"sheets"`

	Booking struct {
		MaxSlotsPerRequest int `yaml:"max_slots_per_request"`
		MinNameLength      int `yaml:"min_name_length"`
		RatePerMinute      int `yaml:"rate_per_minute"`
		RateBurst          int `yaml:"rate_burst"`
	} `yaml:"booking"`

	Catalog struct {
		CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	} `yaml:"catalog"`

	Admin struct {
		PasswordHash      string `yaml:"password_hash"` // bcrypt hash of the admin password
		SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	} `yaml:"admin"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Sheets.SlotsSheet == "" {
		cfg.Sheets.SlotsSheet = "Slots"
	}
	if cfg.Sheets.SignupsSheet == "" {
		cfg.Sheets.SignupsSheet = "Signups"
	}
	if cfg.Booking.MaxSlotsPerRequest <= 0 {
		cfg.Booking.MaxSlotsPerRequest = 10
	}
	if cfg.Booking.MinNameLength <= 0 {
		cfg.Booking.MinNameLength = 2
	}
	if cfg.Booking.RatePerMinute <= 0 {
		cfg.Booking.RatePerMinute = 6
	}
	if cfg.Booking.RateBurst <= 0 {
		cfg.Booking.RateBurst = 3
	}

	if cfg.Sheets.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets.spreadsheet_id is required")
	}

	return &cfg, nil
}

func (c *Config) CatalogCacheTTL() time.Duration {
	if c.Catalog.CacheTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	if c.Admin.SessionTTLMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.Admin.SessionTTLMinutes) * time.Minute
}
