package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"washhub/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Stripe     StripeConfig     `yaml:"stripe"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type StripeConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

type SchedulerConfig struct {
	Enabled           bool   `yaml:"enabled"`
	IntervalMinutes   int    `yaml:"interval_minutes"`
	StaleAfterMinutes int    `yaml:"stale_after_minutes"`
	BatchSize         int    `yaml:"batch_size"`
	TriggerToken      string `yaml:"trigger_token"`
}

func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

func (s SchedulerConfig) StaleAfter() time.Duration {
	return time.Duration(s.StaleAfterMinutes) * time.Minute
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type TelegramConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BotToken  string `yaml:"bot_token"`
	OpsChatID int64  `yaml:"ops_chat_id"`
}

type GoogleConfig struct {
	CredentialsFile     string `yaml:"credentials_file"`
	LedgerSpreadsheetID string `yaml:"ledger_spreadsheet_id"`
	LedgerSheetName     string `yaml:"ledger_sheet_name"`
	WorkerPollSeconds   int    `yaml:"worker_poll_seconds"`
	WorkerBatchSize     int    `yaml:"worker_batch_size"`
}

func (g GoogleConfig) WorkerPollInterval() time.Duration {
	return time.Duration(g.WorkerPollSeconds) * time.Second
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; ExpandEnv below picks up whatever is set.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Environment variables are substituted into the raw YAML before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Stripe.WebhookSecret == "" || c.Stripe.WebhookSecret == "whsec_YOUR_SECRET_HERE" {
		return errors.New("stripe webhook secret is required")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram is enabled but bot token is empty")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "washhub"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Scheduler.IntervalMinutes == 0 {
		c.Scheduler.IntervalMinutes = int(models.DefaultAssignInterval / time.Minute)
	}
	if c.Scheduler.StaleAfterMinutes == 0 {
		c.Scheduler.StaleAfterMinutes = int(models.DefaultStaleAfter / time.Minute)
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = models.DefaultAssignBatchSize
	}
	if c.Google.LedgerSheetName == "" {
		c.Google.LedgerSheetName = "Bookings"
	}
	if c.Google.WorkerPollSeconds == 0 {
		c.Google.WorkerPollSeconds = int(models.DefaultWorkerPollInterval / time.Second)
	}
	if c.Google.WorkerBatchSize == 0 {
		c.Google.WorkerBatchSize = models.DefaultWorkerBatchSize
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
