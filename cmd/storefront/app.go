package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"storefront-client/api"
	"storefront-client/client"
	"storefront-client/client/domain"
	"storefront-client/client/infra"
	"storefront-client/internal/config"
	"storefront-client/internal/logger"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// app é o estado montado uma vez por execução da CLI.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	rdb    *redis.Client
	client *client.Client
	shop   *api.API
	stats  *infra.MemoryStatsStore
	out    io.Writer
}

func newApp(ctx context.Context, cfg config.Config, out, errOut io.Writer) (*app, error) {
	log := logger.New(cfg.LogLevel, cfg.LogPretty, errOut)
	a := &app{cfg: cfg, log: log, out: out, stats: infra.NewMemoryStatsStore(infra.WithTrackKeys(true))}

	if cfg.UsesRedis() {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := a.rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = a.rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	var store domain.SessionStore = infra.NewMemorySessionStore()
	if cfg.SessionStore == config.SessionStoreRedis {
		store = infra.NewRedisSessionStore(a.rdb,
			infra.WithSessionPrefix(cfg.SessionPrefix),
			infra.WithSessionTTL(cfg.SessionTTL),
		)
	}

	var stats domain.StatsStore = a.stats
	if cfg.StatsEnabled {
		stats = fanoutStats{a.stats, infra.NewRedisStatsStore(a.rdb,
			infra.WithStatsPrefix(cfg.StatsPrefix),
			infra.WithStatsTTL(cfg.StatsTTL),
			infra.WithStatsTrackKeys(cfg.StatsTrackKeys),
		)}
	}

	ledger := infra.NewLedger(
		infra.WithMinInterval(cfg.ThrottleMinInterval),
		infra.WithHorizon(cfg.ThrottleHorizon),
		infra.WithCleanupEvery(cfg.ThrottleCleanupEvery),
	)
	ledger.StartJanitor(ctx)

	opts := []client.Option{
		client.WithBaseURL(cfg.APIBaseURL),
		client.WithTimeout(cfg.APITimeout),
		client.WithUserAgent("storefront-cli/1"),
		client.WithPacer(ledger),
		client.WithRefreshCoalescing(cfg.RefreshCoalesce),
		client.WithProactiveRefresh(cfg.RefreshSkew),
		client.WithStats(stats),
		client.WithLogger(log),
		client.WithOnSessionInvalidated(a.onSessionInvalidated),
	}
	if cfg.RateRPS > 0 {
		opts = append(opts, client.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst)))
	}
	if cfg.ConcurrencyMax > 0 {
		opts = append(opts, client.WithSlotPool(infra.NewChanPool(cfg.ConcurrencyMax), cfg.ConcurrencyTimeout))
	}

	c, err := client.New(store, opts...)
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = c
	a.shop = api.New(c)
	return a, nil
}

// onSessionInvalidated é o equivalente, na CLI, ao redirecionamento para o login.
func (a *app) onSessionInvalidated(_ context.Context, cause error) {
	a.log.Warn().Err(cause).Str("redirect", a.cfg.LoginRoute).Msg("session expired, sign in again")
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) logStats() {
	t := a.stats.Total()
	a.log.Debug().
		Int64("ok", t.OK).
		Int64("errors", t.Errors).
		Int64("auth_expired", t.AuthExpired).
		Int64("refreshed", t.Refreshed).
		Int64("refresh_failed", t.RefreshFailed).
		Msg("dispatch summary")
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// fanoutStats grava o evento em todos os stores; devolve o primeiro erro.
type fanoutStats []domain.StatsStore

func (f fanoutStats) Record(ctx context.Context, ev domain.DispatchEvent) error {
	var first error
	for _, s := range f {
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
