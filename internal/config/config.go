// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIPort        = 8000
	defaultSchedulerPort  = 8001
	defaultQueueName      = "newsagent:jobs"
	defaultDLQName        = "newsagent:jobs:dead"
	defaultUserAgent      = "NewsAgentBot/1.0"
	defaultSMTPPort       = 587
	defaultMaxRetries     = 3
	defaultDomainDelay    = 5 * time.Second
	defaultStatusTTL      = 24 * time.Hour
	defaultLLMModel       = "claude-sonnet-4-20250514"
	defaultLLMMaxTokens   = 4096
	defaultBrowserSlots   = 8
	defaultSchedulerSlots = 3
)

// Config holds everything the three processes read from the environment.
type Config struct {
	Debug bool

	Redis     RedisConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Pipeline  PipelineConfig
	Browser   BrowserConfig
	LLM       LLMConfig
	Search    SearchConfig
	SMTP      SMTPConfig
	Webhook   WebhookConfig
	Scheduler SchedulerConfig
}

type RedisConfig struct {
	URL       string
	QueueName string
	DLQName   string
	StatusTTL time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type ServerConfig struct {
	APIPort       int
	SchedulerPort int
	APIKey        string
	MainAPIURL    string
}

type PipelineConfig struct {
	MaxRetries  int
	UserAgent   string
	DomainDelay time.Duration
}

type BrowserConfig struct {
	WSEndpoint string
	MaxSlots   int
}

type LLMConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

type SearchConfig struct {
	APIKey string
}

type SMTPConfig struct {
	Server   string
	Port     int
	Email    string
	Password string
}

type WebhookConfig struct {
	URL    string
	Secret string
}

type SchedulerConfig struct {
	TickInterval       time.Duration
	MaxConcurrent      int
	SubmissionSourceID string
}

// Load reads configuration from the environment. A .env file is honored when
// present but never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Debug: envBool("APP_DEBUG", false),
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			QueueName: envString("REDIS_QUEUE_NAME", defaultQueueName),
			DLQName:   envString("REDIS_DLQ_NAME", defaultDLQName),
			StatusTTL: defaultStatusTTL,
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			APIPort:       envInt("API_PORT", defaultAPIPort),
			SchedulerPort: envInt("SCHEDULER_PORT", defaultSchedulerPort),
			APIKey:        os.Getenv("NEWSAGENT_API_KEY"),
			MainAPIURL:    os.Getenv("MAIN_API_URL"),
		},
		Pipeline: PipelineConfig{
			MaxRetries:  envInt("PIPELINE_MAX_RETRIES", defaultMaxRetries),
			UserAgent:   envString("USER_AGENT", defaultUserAgent),
			DomainDelay: defaultDomainDelay,
		},
		Browser: BrowserConfig{
			WSEndpoint: os.Getenv("BROWSER_WS_ENDPOINT"),
			MaxSlots:   envInt("BROWSER_MAX_SLOTS", defaultBrowserSlots),
		},
		LLM: LLMConfig{
			APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			Model:     envString("MODEL_NAME", defaultLLMModel),
			MaxTokens: envInt("MODEL_MAX_TOKENS", defaultLLMMaxTokens),
		},
		Search: SearchConfig{
			APIKey: os.Getenv("TAVILY_API_KEY"),
		},
		SMTP: SMTPConfig{
			Server:   os.Getenv("SMTP_SERVER"),
			Port:     envInt("SMTP_PORT", defaultSMTPPort),
			Email:    os.Getenv("SMTP_EMAIL"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("WEBHOOK_URL"),
			Secret: os.Getenv("WEBHOOK_SECRET"),
		},
		Scheduler: SchedulerConfig{
			TickInterval:       time.Minute,
			MaxConcurrent:      envInt("SCHEDULER_MAX_CONCURRENT", defaultSchedulerSlots),
			SubmissionSourceID: os.Getenv("SUBMISSION_SOURCE_ID"),
		},
	}

	return cfg, nil
}

// Validate checks the fields every process needs. Per-process requirements
// (browser endpoint for the worker, SMTP for the notifier) are checked where
// those components are constructed.
func (c *Config) Validate() error {
	if c.Redis.URL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Redis.QueueName == c.Redis.DLQName {
		return fmt.Errorf("queue and DLQ must differ, both are %q", c.Redis.QueueName)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
