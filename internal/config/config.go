// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Holds    HoldsConfig
	Waitlist WaitlistConfig
	Reaper   ReaperConfig
	Redis    RedisConfig
	Outbox   OutboxConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT"             env-default:"8080"`
	CORSOrigins     []string      `env:"CORS_ORIGINS"     env-default:"http://localhost:5173,http://127.0.0.1:5173"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

// DatabaseConfig selects the store. An empty URL runs on the in-memory store.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

type HoldsConfig struct {
	TTL    time.Duration `env:"HOLD_TTL"     env-default:"15m"`
	MaxTTL time.Duration `env:"MAX_HOLD_TTL" env-default:"1h"`
}

type WaitlistConfig struct {
	OfferWindow     time.Duration `env:"OFFER_WINDOW"      env-default:"10m"`
	MaxMissedOffers int           `env:"MAX_MISSED_OFFERS" env-default:"1"`
	Fairness        string        `env:"WAITLIST_FAIRNESS" env-default:"skip"`
}

type ReaperConfig struct {
	Interval time.Duration `env:"REAPER_INTERVAL" env-default:"5s"`
	Batch    int           `env:"REAPER_BATCH"    env-default:"100"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
}

// OutboxConfig enables the durable event outbox when Dir is set; the relay
// runs only when brokers are configured too.
type OutboxConfig struct {
	Dir           string        `env:"OUTBOX_DIR"`
	KafkaBrokers  []string      `env:"KAFKA_BROKERS"`
	KafkaTopic    string        `env:"KAFKA_TOPIC"    env-default:"seat-events"`
	RelayInterval time.Duration `env:"RELAY_INTERVAL" env-default:"1s"`
}

type LimitsConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS"   env-default:"50"`
	Burst int     `env:"RATE_LIMIT_BURST" env-default:"100"`
}

// Load reads the nearest .env file, if any, then the process environment.
// Variables already set in the environment win over the file. It returns
// the path of the file it loaded, or "" when none was found.
func Load() (Config, string, error) {
	path, err := FindEnvFile()
	if err != nil {
		return Config{}, "", fmt.Errorf("locate .env: %w", err)
	}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, path, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, path, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, path, err
	}
	return cfg, path, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.Holds.TTL <= 0 {
		errs = append(errs, errors.New("HOLD_TTL must be positive"))
	}
	if c.Holds.MaxTTL < c.Holds.TTL {
		errs = append(errs, errors.New("MAX_HOLD_TTL must not be below HOLD_TTL"))
	}
	if c.Waitlist.OfferWindow <= 0 {
		errs = append(errs, errors.New("OFFER_WINDOW must be positive"))
	}
	if c.Waitlist.MaxMissedOffers < 1 {
		errs = append(errs, errors.New("MAX_MISSED_OFFERS must be at least 1"))
	}
	if c.Reaper.Interval <= 0 || c.Reaper.Batch <= 0 {
		errs = append(errs, errors.New("REAPER_INTERVAL and REAPER_BATCH must be positive"))
	}
	if c.Limits.RPS < 0 || c.Limits.Burst < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	return errors.Join(errs...)
}

// FindEnvFile looks for .env in the working directory and up to five parents.
func FindEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
