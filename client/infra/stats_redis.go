package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"storefront-client/client/domain"

	"github.com/redis/go-redis/v9"
)

type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "storefront:dispatch",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// counter é um HINCRBY em hash; expires aplica o TTL da série.
type counter struct {
	hash    string
	field   string
	expires bool
}

// counters lista os hashes tocados por um despacho:
//
//	<prefix>:total           outcome -> n (não expira)
//	<prefix>:status          status http -> n
//	<prefix>:minute:<utc>    outcome -> n
//	<prefix>:route           "<METHOD> <path>:<outcome>" -> n
//	<prefix>:key:<key>       outcome -> n (só com trackKeys)
func (s *RedisStatsStore) counters(ev domain.DispatchEvent) []counter {
	outcome := string(ev.Outcome)
	if outcome == "" {
		outcome = string(domain.OutcomeError)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	cs := []counter{{hash: s.prefix + ":total", field: outcome}}
	if ev.Status > 0 {
		cs = append(cs, counter{hash: s.prefix + ":status", field: strconv.Itoa(ev.Status)})
	}
	if s.bucket == "minute" {
		cs = append(cs, counter{hash: s.prefix + ":minute:" + at.UTC().Format("200601021504"), field: outcome, expires: true})
	}
	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		cs = append(cs, counter{hash: s.prefix + ":route", field: route + ":" + outcome})
	}
	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		cs = append(cs, counter{hash: s.prefix + ":key:" + k, field: outcome, expires: true})
	}
	return cs
}

// Record grava todos os contadores do despacho num único pipeline.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.DispatchEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, c := range s.counters(ev) {
			pipe.HIncrBy(ctx, c.hash, c.field, 1)
			if c.expires && s.ttl > 0 {
				pipe.Expire(ctx, c.hash, s.ttl)
			}
		}
		return nil
	})
	return err
}
