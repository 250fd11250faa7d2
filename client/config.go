package client

import (
	"context"
	"net/http"
	"time"

	"storefront-client/client/domain"

	"github.com/rs/zerolog"
)

const (
	DefaultRefreshPath               = "/auth/refresh-token"
	DefaultRequestIDHeader           = "X-Request-ID"
	DefaultMaxBodyBytes        int64 = 16 << 20 // 16MiB
	DefaultTimeout                   = 30 * time.Second
	DefaultThrottleMinInterval       = 300 * time.Millisecond
)

// DefaultNoRefreshPaths são endpoints em que 401 quer dizer "credencial errada",
// não "sessão expirada". Casam por substring no caminho.
func DefaultNoRefreshPaths() []string {
	return []string{"/auth/login", "/auth/register", "/auth/google"}
}

// RateLimiter limita a taxa global de saída. *rate.Limiter (x/time/rate) serve.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// SessionInvalidatedFunc é chamada quando o refresh falha e a sessão é descartada.
// A aplicação decide o que fazer (redirecionar para login, abrir modal, sair).
type SessionInvalidatedFunc func(ctx context.Context, cause error)

// Config configura um Client. Use DefaultConfig() como base.
type Config struct {
	// BaseURL é o prefixo da API (ex: https://shop.example.com/api).
	BaseURL string

	// Timeout limita o ciclo inteiro do pedido, incluindo refresh e reenvio.
	// Se o ctx já tem um deadline mais cedo, ele vence.
	Timeout time.Duration

	// Transport é usado quando HTTPClient é nil.
	Transport http.RoundTripper

	// HTTPClient substitui o cliente interno (e o cookie jar padrão).
	HTTPClient *http.Client

	UserAgent       string
	RequestIDHeader string
	MaxBodyBytes    int64

	// Pacer espaça despachos por chave. Nil cria um infra.Ledger com
	// ThrottleMinInterval, a menos que DisableThrottle esteja ligado.
	Pacer               domain.Pacer
	ThrottleMinInterval time.Duration
	DisableThrottle     bool
	KeyFunc             KeyFunc

	RateLimiter    RateLimiter
	SlotPool       domain.SlotPool
	AcquireTimeout time.Duration

	NoRefreshPaths []string
	RefreshPath    string
	// CoalesceRefresh faz pedidos concorrentes que recebem 401 compartilharem
	// uma única chamada de refresh.
	CoalesceRefresh bool
	// ProactiveRefreshSkew > 0 renova antes do envio quando o "exp" do JWT
	// está a menos desse tempo.
	ProactiveRefreshSkew time.Duration

	OnSessionInvalidated SessionInvalidatedFunc
	StateHook            StateHook
	Stats                domain.StatsStore
	Logger               zerolog.Logger
}

// DefaultConfig retorna uma base conservadora.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		RequestIDHeader:     DefaultRequestIDHeader,
		MaxBodyBytes:        DefaultMaxBodyBytes,
		ThrottleMinInterval: DefaultThrottleMinInterval,
		KeyFunc:             DefaultKeyFunc,
		NoRefreshPaths:      DefaultNoRefreshPaths(),
		RefreshPath:         DefaultRefreshPath,
		CoalesceRefresh:     true,
		Logger:              zerolog.Nop(),
	}
}

type Option interface{ apply(*Config) }

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

func WithBaseURL(baseURL string) Option {
	return optionFunc(func(c *Config) { c.BaseURL = baseURL })
}

func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.Timeout = d })
}

func WithTransport(rt http.RoundTripper) Option {
	return optionFunc(func(c *Config) { c.Transport = rt })
}

func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Config) { c.HTTPClient = hc })
}

func WithUserAgent(ua string) Option {
	return optionFunc(func(c *Config) { c.UserAgent = ua })
}

func WithRequestIDHeader(h string) Option {
	return optionFunc(func(c *Config) { c.RequestIDHeader = h })
}

func WithPacer(p domain.Pacer) Option {
	return optionFunc(func(c *Config) { c.Pacer = p })
}

func WithThrottleInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.ThrottleMinInterval = d })
}

func WithoutThrottle() Option {
	return optionFunc(func(c *Config) { c.DisableThrottle = true })
}

func WithKeyFunc(fn KeyFunc) Option {
	return optionFunc(func(c *Config) { c.KeyFunc = fn })
}

func WithRateLimiter(rl RateLimiter) Option {
	return optionFunc(func(c *Config) { c.RateLimiter = rl })
}

func WithSlotPool(p domain.SlotPool, acquireTimeout time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.SlotPool = p
		c.AcquireTimeout = acquireTimeout
	})
}

func WithNoRefreshPaths(paths ...string) Option {
	return optionFunc(func(c *Config) { c.NoRefreshPaths = append([]string(nil), paths...) })
}

func WithRefreshPath(p string) Option {
	return optionFunc(func(c *Config) { c.RefreshPath = p })
}

func WithRefreshCoalescing(on bool) Option {
	return optionFunc(func(c *Config) { c.CoalesceRefresh = on })
}

func WithProactiveRefresh(skew time.Duration) Option {
	return optionFunc(func(c *Config) { c.ProactiveRefreshSkew = skew })
}

func WithOnSessionInvalidated(fn SessionInvalidatedFunc) Option {
	return optionFunc(func(c *Config) { c.OnSessionInvalidated = fn })
}

func WithStateHook(h StateHook) Option {
	return optionFunc(func(c *Config) { c.StateHook = h })
}

func WithStats(s domain.StatsStore) Option {
	return optionFunc(func(c *Config) { c.Stats = s })
}

func WithLogger(l zerolog.Logger) Option {
	return optionFunc(func(c *Config) { c.Logger = l })
}
