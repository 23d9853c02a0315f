// Package config loads runtime settings from the environment, reading a
// local .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Shivanand-hulikatti/happening-registration/internal/database"
	"github.com/Shivanand-hulikatti/happening-registration/internal/notify"
	"github.com/Shivanand-hulikatti/happening-registration/internal/ratelimit"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds every setting of the API and the notification worker.
type Config struct {
	Port  string `env:"PORT" envDefault:"8080"`
	Store string `env:"STORE" envDefault:"postgres"`
	// AdminKey is the basic auth password of the admin routes. Empty
	// disables them.
	AdminKey string `env:"ADMIN_KEY"`
	Dev      bool   `env:"DEV" envDefault:"false"`

	VerifyRegistrations   bool   `env:"VERIFY_REGISTRATIONS" envDefault:"true"`
	SendEmailRegistration bool   `env:"SEND_EMAIL_REGISTRATION" envDefault:"true"`
	SendEmailHappening    bool   `env:"SEND_EMAIL_HAPPENING" envDefault:"true"`
	PromotionScope        string `env:"PROMOTION_SCOPE" envDefault:"global"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Database database.Config `envPrefix:"DB_"`

	RabbitMQURL string `env:"RABBITMQ_URL"`
	NotifyQueue string `env:"NOTIFY_QUEUE" envDefault:"registration.notifications"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimit ratelimit.Config `envPrefix:"RATE_LIMIT_"`

	SMTP notify.SMTPConfig `envPrefix:"SMTP_"`
	// RegistrationsURL prefixes registrations links in organizer mail.
	RegistrationsURL string `env:"REGISTRATIONS_URL" envDefault:"http://localhost:8080/happening/"`
}

// Load reads .env (if present) and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("invalid STORE %q: want %s or %s", c.Store, StoreMemory, StorePostgres)
	}
	switch c.PromotionScope {
	case "global", "range":
	default:
		return fmt.Errorf("invalid PROMOTION_SCOPE %q: want global or range", c.PromotionScope)
	}
	return nil
}
