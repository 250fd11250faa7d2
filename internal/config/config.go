// Package config lê a configuração dos binários do ambiente (e de um .env opcional).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080/api"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"30s"`

	ThrottleMinInterval  time.Duration `env:"THROTTLE_MIN_INTERVAL" envDefault:"300ms"`
	ThrottleHorizon      time.Duration `env:"THROTTLE_HORIZON" envDefault:"60s"`
	ThrottleCleanupEvery time.Duration `env:"THROTTLE_CLEANUP_EVERY" envDefault:"60s"`

	// RateRPS > 0 liga o limite global de saída (token bucket).
	RateRPS   float64 `env:"RATE_RPS" envDefault:"0"`
	RateBurst int     `env:"RATE_BURST" envDefault:"5"`

	// ConcurrencyMax = 0 não limita pedidos em voo.
	ConcurrencyMax     int           `env:"CONCURRENCY_MAX" envDefault:"0"`
	ConcurrencyTimeout time.Duration `env:"CONCURRENCY_TIMEOUT" envDefault:"0s"`

	RefreshCoalesce bool          `env:"REFRESH_COALESCE" envDefault:"true"`
	RefreshSkew     time.Duration `env:"REFRESH_SKEW" envDefault:"0s"`

	SessionStore  string        `env:"SESSION_STORE" envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SessionPrefix string        `env:"SESSION_PREFIX" envDefault:"storefront:session"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"0s"`

	StatsEnabled   bool          `env:"STATS_ENABLED" envDefault:"false"`
	StatsPrefix    string        `env:"STATS_PREFIX" envDefault:"storefront:dispatch"`
	StatsTTL       time.Duration `env:"STATS_TTL" envDefault:"24h"`
	StatsTrackKeys bool          `env:"STATS_TRACK_KEYS" envDefault:"false"`

	LoginRoute string `env:"LOGIN_ROUTE" envDefault:"/login"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`
}

// Load carrega .env (se existir) e faz o parse do ambiente.
func Load(files ...string) (Config, error) {
	// .env ausente não é erro
	_ = godotenv.Load(files...)

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UsesRedis indica se algum componente precisa de conexão Redis.
func (c Config) UsesRedis() bool {
	return c.SessionStore == SessionStoreRedis || c.StatsEnabled
}

func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL must be an absolute url, got %q", c.APIBaseURL))
	}
	if c.APITimeout < 0 {
		errs = append(errs, errors.New("API_TIMEOUT must be >= 0"))
	}
	if c.ThrottleMinInterval < 0 {
		errs = append(errs, errors.New("THROTTLE_MIN_INTERVAL must be >= 0"))
	}
	if c.ThrottleHorizon <= 0 {
		errs = append(errs, errors.New("THROTTLE_HORIZON must be > 0"))
	}
	if c.RateRPS < 0 {
		errs = append(errs, errors.New("RATE_RPS must be >= 0"))
	}
	if c.RateRPS > 0 && c.RateBurst <= 0 {
		errs = append(errs, errors.New("RATE_BURST must be > 0 when RATE_RPS is set"))
	}
	if c.ConcurrencyMax < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStoreRedis, c.SessionStore))
	}
	if c.UsesRedis() && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when SESSION_STORE=redis or STATS_ENABLED=true"))
	}
	return errors.Join(errs...)
}
