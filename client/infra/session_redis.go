package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-client/client/domain"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore persiste a sessão no Redis, para clientes que rodam em
// vários processos (ex: CLI + worker) e precisam compartilhar o mesmo login.
//
// Chaves: <prefix>:token (string) e <prefix>:user (JSON).
type RedisSessionStore struct {
	rdb *redis.Client

	prefix string
	// ttl 0 = sem expiração. O backend continua sendo quem decide via 401.
	ttl time.Duration
}

type RedisSessionOption func(*RedisSessionStore)

func WithSessionPrefix(prefix string) RedisSessionOption {
	return func(s *RedisSessionStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithSessionTTL(d time.Duration) RedisSessionOption {
	return func(s *RedisSessionStore) { s.ttl = d }
}

func NewRedisSessionStore(rdb *redis.Client, opts ...RedisSessionOption) *RedisSessionStore {
	s := &RedisSessionStore{
		rdb:    rdb,
		prefix: "storefront:session",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSessionStore) tokenKey() string { return s.prefix + ":token" }
func (s *RedisSessionStore) userKey() string  { return s.prefix + ":user" }

func (s *RedisSessionStore) Token(ctx context.Context) (string, error) {
	v, err := s.rdb.Get(ctx, s.tokenKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get token: %w", err)
	}
	return v, nil
}

func (s *RedisSessionStore) SetToken(ctx context.Context, token string) error {
	if err := s.rdb.Set(ctx, s.tokenKey(), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) RemoveToken(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.tokenKey()).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) User(ctx context.Context) (*domain.User, error) {
	raw, err := s.rdb.Get(ctx, s.userKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get user: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &u, nil
}

func (s *RedisSessionStore) SetUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return s.RemoveUser(ctx)
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.rdb.Set(ctx, s.userKey(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set user: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) RemoveUser(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.userKey()).Err(); err != nil {
		return fmt.Errorf("redis del user: %w", err)
	}
	return nil
}
