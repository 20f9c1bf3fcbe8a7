package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string        `env:"DATABASE_DSN,required=true"`
	RabbitMQURL          string        `env:"RABBITMQ_URL,required=true"`
	RedisURL             string        `env:"REDIS_URL,required=true"`
	WhatsAppAPIURL       string        `env:"WHATSAPP_API_URL,required=true"`
	WhatsAppAccessToken  string        `env:"WHATSAPP_ACCESS_TOKEN,required=true"`
	WhatsAppLanguageCode string        `env:"WHATSAPP_LANGUAGE_CODE,default=en"`
	DispatchQueue        string        `env:"DISPATCH_QUEUE,default=campaign.dispatch"`
	DispatchMinInterval  time.Duration `env:"DISPATCH_MIN_INTERVAL,default=30s"`
	ScheduleLockTTL      time.Duration `env:"SCHEDULE_LOCK_TTL,default=2m"`
	APIPort              int           `env:"API_PORT,default=8080"`
	MetricsPort          int           `env:"METRICS_PORT,default=9090"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DispatchQueue) == "" {
		return fmt.Errorf("DISPATCH_QUEUE must not be empty")
	}
	if c.DispatchMinInterval < 0 {
		return fmt.Errorf("DISPATCH_MIN_INTERVAL must not be negative")
	}
	if c.ScheduleLockTTL <= 0 {
		return fmt.Errorf("SCHEDULE_LOCK_TTL must be positive")
	}
	if c.APIPort == c.MetricsPort {
		return fmt.Errorf("API_PORT and METRICS_PORT must differ")
	}
	return nil
}
