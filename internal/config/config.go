package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/paygrid/intent-service/internal/retry"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	GatewayURL      string `env:"GATEWAY_URL" envDefault:"http://mock-gateway:8081"`
	GatewayTimeoutS int    `env:"GATEWAY_TIMEOUT_S" envDefault:"5"`

	RetryMaxRetries        int     `env:"RETRY_MAX_RETRIES" envDefault:"3"`
	RetryInitialDelayMS    int     `env:"RETRY_INITIAL_DELAY_MS" envDefault:"100"`
	RetryBackoffMultiplier float64 `env:"RETRY_BACKOFF_MULTIPLIER" envDefault:"2.0"`
	RetryMaxDelayMS        int     `env:"RETRY_MAX_DELAY_MS" envDefault:"5000"`
	RetryJitter            bool    `env:"RETRY_JITTER" envDefault:"true"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) RetryOptions() retry.Options {
	return retry.Options{
		MaxRetries:        c.RetryMaxRetries,
		InitialDelay:      time.Duration(c.RetryInitialDelayMS) * time.Millisecond,
		BackoffMultiplier: c.RetryBackoffMultiplier,
		MaxDelay:          time.Duration(c.RetryMaxDelayMS) * time.Millisecond,
		Jitter:            c.RetryJitter,
	}
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutS) * time.Second
}
