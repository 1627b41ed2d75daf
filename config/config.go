// Package config loads application configuration from an optional YAML
// file with environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Provider struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"provider"`

	// Assets are the tracked asset IDs, provider identifiers like
	// "bitcoin". Favorites and Categories overlay dashboard metadata.
	Assets     []string          `yaml:"assets"`
	Favorites  []string          `yaml:"favorites"`
	Categories map[string]string `yaml:"categories"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Server struct {
		ListenAddr  string `yaml:"listen_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
		ReplaySize  int    `yaml:"replay_size"`
	} `yaml:"server"`

	Schedule struct {
		// Six-field cron specs with a leading seconds column.
		AnalysisCron string `yaml:"analysis_cron"`
		PruneCron    string `yaml:"prune_cron"`
		// TickPollSeconds is the light price poll between cycles.
		TickPollSeconds int `yaml:"tick_poll_seconds"`
	} `yaml:"schedule"`

	Analysis struct {
		Workers       int `yaml:"workers"`
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"analysis"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	WebhookURL string `yaml:"webhook_url"`

	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file (missing file is fine), then
// applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("ASSETS"); v != "" {
		cfg.Assets = splitList(v)
	}
	if v := os.Getenv("FAVORITES"); v != "" {
		cfg.Favorites = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("ANALYSIS_CRON"); v != "" {
		cfg.Schedule.AnalysisCron = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ANALYSIS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Analysis.Workers = n
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Assets) == 0 {
		c.Assets = []string{"bitcoin", "ethereum", "solana", "cardano", "dogecoin"}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/signals.db"
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if c.Server.ReplaySize <= 0 {
		c.Server.ReplaySize = 500
	}
	if c.Schedule.AnalysisCron == "" {
		// Every 5 minutes
		c.Schedule.AnalysisCron = "0 */5 * * * *"
	}
	if c.Schedule.PruneCron == "" {
		// Daily at 03:10 UTC
		c.Schedule.PruneCron = "0 10 3 * * *"
	}
	if c.Schedule.TickPollSeconds <= 0 {
		c.Schedule.TickPollSeconds = 15
	}
	if c.Analysis.Workers <= 0 {
		c.Analysis.Workers = 8
	}
	if c.Analysis.RetentionDays <= 0 {
		c.Analysis.RetentionDays = 90
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
