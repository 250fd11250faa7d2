package infra

import (
	"context"
	"testing"
	"time"

	"storefront-client/client/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsStore_CountsByOutcomeAndRoute(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.DispatchEvent{Key: "/cart", Method: "GET", Path: "/cart", Outcome: domain.OutcomeAuthExpired})
	_ = s.Record(ctx, domain.DispatchEvent{Key: "/cart", Method: "GET", Path: "/cart", Outcome: domain.OutcomeOK, Attempt: 2})
	_ = s.Record(ctx, domain.DispatchEvent{Key: "/products", Method: "GET", Path: "/products", Outcome: domain.OutcomeError})

	total := s.Total()
	require.Equal(t, int64(1), total.OK)
	require.Equal(t, int64(1), total.AuthExpired)
	require.Equal(t, int64(1), total.Errors)

	route := s.ByRoute()["GET /cart"]
	require.Equal(t, int64(1), route.OK)
	require.Equal(t, int64(1), route.AuthExpired)

	require.Len(t, s.ByKey(), 2)
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.DispatchEvent{Key: "k", Outcome: domain.OutcomeOK})
	require.Empty(t, s.ByKey())
}

func TestRedisStatsStore_WritesCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStatsStore(rdb, WithStatsPrefix("test:"), WithStatsTrackKeys(true), WithStatsTTL(time.Hour))
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	err := s.Record(context.Background(), domain.DispatchEvent{
		Key:     "/cart",
		Method:  "GET",
		Path:    "/cart",
		Status:  401,
		Outcome: domain.OutcomeAuthExpired,
		At:      at,
	})
	require.NoError(t, err)

	require.Equal(t, "1", mr.HGet("test:total", "auth_expired"))
	require.Equal(t, "1", mr.HGet("test:status", "401"))
	require.Equal(t, "1", mr.HGet("test:minute:202501020304", "auth_expired"))
	require.Equal(t, "1", mr.HGet("test:route", "GET /cart:auth_expired"))
	require.Equal(t, "1", mr.HGet("test:key:/cart", "auth_expired"))

	require.Equal(t, time.Hour, mr.TTL("test:key:/cart"))
	require.Equal(t, time.Hour, mr.TTL("test:minute:202501020304"))
	require.Zero(t, mr.TTL("test:total"))
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	require.NoError(t, s.Record(context.Background(), domain.DispatchEvent{}))
}
