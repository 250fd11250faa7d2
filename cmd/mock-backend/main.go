package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-client/internal/logger"
	"storefront-client/internal/mockapi"

	"github.com/caarlos0/env/v11"
	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
)

type config struct {
	ListenAddr string        `env:"LISTEN_ADDR" envDefault:":8080"`
	Secret     string        `env:"MOCK_JWT_SECRET" envDefault:"storefront-dev-secret"`
	AccessTTL  time.Duration `env:"MOCK_ACCESS_TTL" envDefault:"1m"`
	RefreshTTL time.Duration `env:"MOCK_REFRESH_TTL" envDefault:"168h"`
	// Guard por (cliente, caminho); MOCK_RATE_RPS=0 desliga. 4 rps com burst 1
	// exige 250ms entre pedidos ao mesmo caminho, abaixo do throttle do client.
	RateRPS    float64       `env:"MOCK_RATE_RPS" envDefault:"4"`
	RateBurst  int           `env:"MOCK_RATE_BURST" envDefault:"1"`
	RetryAfter time.Duration `env:"MOCK_RETRY_AFTER" envDefault:"1s"`
	// MOCK_MAX_INFLIGHT=0 desliga o limite de pedidos simultâneos.
	MaxInFlight  int           `env:"MOCK_MAX_INFLIGHT" envDefault:"0"`
	InFlightWait time.Duration `env:"MOCK_INFLIGHT_WAIT" envDefault:"2s"`
	SeedEmail    string        `env:"MOCK_SEED_EMAIL" envDefault:"demo@storefront.test"`
	SeedPass     string        `env:"MOCK_SEED_PASSWORD" envDefault:"demo1234"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty    bool          `env:"LOG_PRETTY" envDefault:"true"`
}

func main() {
	_ = godotenv.Load()
	cfg, err := env.ParseAs[config]()
	log := logger.New(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	figure.NewFigure("mock backend", "cybermedium", true).Print()

	backend := mockapi.New(
		mockapi.WithLogger(log),
		mockapi.WithSecret([]byte(cfg.Secret)),
		mockapi.WithAccessTTL(cfg.AccessTTL),
		mockapi.WithRefreshTTL(cfg.RefreshTTL),
		mockapi.WithRateLimit(cfg.RateRPS, cfg.RateBurst, cfg.RetryAfter),
		mockapi.WithMaxInFlight(cfg.MaxInFlight, cfg.InFlightWait),
		mockapi.WithSeedUser("Demo", cfg.SeedEmail, cfg.SeedPass),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	backend.StartJanitor(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Dur("access_ttl", cfg.AccessTTL).
		Float64("rate_rps", cfg.RateRPS).
		Int("rate_burst", cfg.RateBurst).
		Int("max_inflight", cfg.MaxInFlight).
		Str("seed_user", cfg.SeedEmail).
		Msg("mock backend listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
