package courier

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration for the job engine, the webhook dispatcher
// and the daemon that hosts them.
type Config struct {
	// Workers is the number of concurrent job executors.
	Workers int `env:"COURIER_WORKERS" envDefault:"4"`

	// PollInterval bounds how long an idle worker blocks on the queue
	// before re-checking the stop signal.
	PollInterval time.Duration `env:"COURIER_POLL_INTERVAL" envDefault:"1s"`

	// ShutdownTimeout is the maximum time Stop waits for in-flight units.
	ShutdownTimeout time.Duration `env:"COURIER_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// HistorySize caps the completed and failed rings independently.
	HistorySize int `env:"COURIER_HISTORY_SIZE" envDefault:"1000"`

	// WaitPollInterval is how often Wait re-reads a job's status.
	WaitPollInterval time.Duration `env:"COURIER_WAIT_POLL_INTERVAL" envDefault:"100ms"`

	// MaxAttempts is the default retry budget for generic jobs.
	MaxAttempts int `env:"COURIER_MAX_ATTEMPTS" envDefault:"3"`

	Webhook WebhookConfig

	// ScheduleTimezone is the IANA zone cron expressions are evaluated in.
	ScheduleTimezone string `env:"COURIER_SCHEDULE_TZ" envDefault:"UTC"`

	// HTTPAddr is the listen address of the daemon's API.
	HTTPAddr string `env:"COURIER_HTTP_ADDR" envDefault:":8080"`

	// RedisAddr enables the Redis subscription store when non-empty.
	RedisAddr     string `env:"COURIER_REDIS_ADDR"`
	RedisPassword string `env:"COURIER_REDIS_PASSWORD"`
	RedisDB       int    `env:"COURIER_REDIS_DB" envDefault:"0"`

	// RedisNamespace prefixes every Redis key.
	RedisNamespace string `env:"COURIER_REDIS_NAMESPACE" envDefault:"courier"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// WebhookConfig configures the delivery dispatcher.
type WebhookConfig struct {
	Workers     int           `env:"COURIER_WEBHOOK_WORKERS" envDefault:"4"`
	MaxAttempts int           `env:"COURIER_WEBHOOK_MAX_ATTEMPTS" envDefault:"5"`
	BackoffCap  time.Duration `env:"COURIER_WEBHOOK_BACKOFF_CAP" envDefault:"60s"`
	Timeout     time.Duration `env:"COURIER_WEBHOOK_TIMEOUT" envDefault:"30s"`
	UserAgent   string        `env:"COURIER_WEBHOOK_USER_AGENT" envDefault:"courier-webhook/1.0"`
	HistorySize int           `env:"COURIER_WEBHOOK_HISTORY_SIZE" envDefault:"1000"`

	// RateLimit is the sustained deliveries per second allowed per
	// destination host. Zero disables throttling.
	RateLimit float64 `env:"COURIER_WEBHOOK_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"COURIER_WEBHOOK_RATE_BURST" envDefault:"1"`
}

// DefaultConfig returns a Config with the engine's defaults.
func DefaultConfig() Config {
	return Config{
		Workers:          4,
		PollInterval:     time.Second,
		ShutdownTimeout:  5 * time.Second,
		HistorySize:      1000,
		WaitPollInterval: 100 * time.Millisecond,
		MaxAttempts:      3,
		Webhook: WebhookConfig{
			Workers:     4,
			MaxAttempts: 5,
			BackoffCap:  time.Minute,
			Timeout:     30 * time.Second,
			UserAgent:   "courier-webhook/1.0",
			HistorySize: 1000,
			RateBurst:   1,
		},
		ScheduleTimezone: "UTC",
		HTTPAddr:         ":8080",
		RedisNamespace:   "courier",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadConfig reads the configuration from environment variables, falling
// back to the defaults declared on the struct tags.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("courier: parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("courier: workers must be positive, got %d", c.Workers)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("courier: max attempts must be positive, got %d", c.MaxAttempts)
	case c.HistorySize <= 0:
		return fmt.Errorf("courier: history size must be positive, got %d", c.HistorySize)
	case c.PollInterval <= 0:
		return fmt.Errorf("courier: poll interval must be positive, got %s", c.PollInterval)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("courier: shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	case c.WaitPollInterval <= 0:
		return fmt.Errorf("courier: wait poll interval must be positive, got %s", c.WaitPollInterval)
	case c.Webhook.Workers <= 0:
		return fmt.Errorf("courier: webhook workers must be positive, got %d", c.Webhook.Workers)
	case c.Webhook.MaxAttempts <= 0:
		return fmt.Errorf("courier: webhook max attempts must be positive, got %d", c.Webhook.MaxAttempts)
	case c.Webhook.BackoffCap <= 0:
		return fmt.Errorf("courier: webhook backoff cap must be positive, got %s", c.Webhook.BackoffCap)
	case c.Webhook.HistorySize <= 0:
		return fmt.Errorf("courier: webhook history size must be positive, got %d", c.Webhook.HistorySize)
	case c.Webhook.Timeout < 0:
		return fmt.Errorf("courier: webhook timeout must not be negative, got %s", c.Webhook.Timeout)
	case c.Webhook.RateLimit < 0:
		return fmt.Errorf("courier: webhook rate limit must not be negative, got %v", c.Webhook.RateLimit)
	}
	if _, err := c.ScheduleLocation(); err != nil {
		return err
	}
	return nil
}

// ScheduleLocation resolves ScheduleTimezone. Empty means UTC.
func (c Config) ScheduleLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("courier: schedule timezone %q: %w", c.ScheduleTimezone, err)
	}
	return loc, nil
}
