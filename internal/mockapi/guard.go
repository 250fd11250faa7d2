package mockapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// GuardKeyFunc deriva a chave do bucket a partir do pedido.
type GuardKeyFunc func(r *http.Request) string

// ClientPathKey combina o IP do cliente com o caminho: cada cliente tem um
// bucket por endpoint, o mesmo recorte que o throttle do client usa.
func ClientPathKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil || host == "" {
		host = r.RemoteAddr
	}
	return host + " " + r.URL.Path
}

// rateGuard barra com 429 o cliente que esgota o bucket (x/time/rate) do
// caminho. Buckets parados há mais de idleAfter são descartados pelo sweep.
type rateGuard struct {
	limit      rate.Limit
	burst      int
	idleAfter  time.Duration
	sweepEvery time.Duration
	retryAfter time.Duration
	keyFn      GuardKeyFunc
	onReject   func(key string)
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newRateGuard(rps float64, burst int, retryAfter time.Duration) *rateGuard {
	if burst <= 0 {
		burst = 1
	}
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return &rateGuard{
		limit:      rate.Limit(rps),
		burst:      burst,
		idleAfter:  5 * time.Minute,
		sweepEvery: time.Minute,
		retryAfter: retryAfter,
		keyFn:      ClientPathKey,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

func (g *rateGuard) allow(key string) bool {
	now := g.now()

	g.mu.Lock()
	b, ok := g.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(g.limit, g.burst)}
		g.buckets[key] = b
	}
	b.seen = now
	g.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// sweep descarta buckets inativos e devolve quantos sobraram.
func (g *rateGuard) sweep() int {
	cutoff := g.now().Add(-g.idleAfter)

	g.mu.Lock()
	defer g.mu.Unlock()
	for k, b := range g.buckets {
		if b.seen.Before(cutoff) {
			delete(g.buckets, k)
		}
	}
	return len(g.buckets)
}

func (g *rateGuard) run(ctx context.Context) {
	t := time.NewTicker(g.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.sweep()
			}
		}
	}()
}

// middleware é um no-op quando o guard está desligado (g nil).
func (g *rateGuard) middleware(next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	retryAfter := strconv.Itoa(max(1, int(g.retryAfter.Seconds())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := g.keyFn(r)
		if g.allow(key) {
			next.ServeHTTP(w, r)
			return
		}
		if g.onReject != nil {
			g.onReject(key)
		}
		w.Header().Set("Retry-After", retryAfter)
		writeError(w, http.StatusTooManyRequests, "Too many requests", "Quá nhiều yêu cầu")
	})
}
