package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-client/client/domain"
	"storefront-client/client/infra"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func refreshOK(token string) map[string]any {
	return map[string]any{"success": true, "message": "ok", "data": map[string]any{"accessToken": token}}
}

// recorder guarda valores vistos pelos handlers do servidor de teste.
type recorder struct {
	mu   sync.Mutex
	vals []string
}

func (r *recorder) add(v string) {
	r.mu.Lock()
	r.vals = append(r.vals, v)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.vals...)
}

func newTestClient(t *testing.T, baseURL string, store domain.SessionStore, opts ...Option) *Client {
	t.Helper()
	all := append([]Option{WithBaseURL(baseURL), WithTimeout(5 * time.Second)}, opts...)
	c, err := New(store, all...)
	require.NoError(t, err)
	return c
}

func seededStore(t *testing.T, token string) *infra.MemorySessionStore {
	t.Helper()
	s := infra.NewMemorySessionStore()
	require.NoError(t, s.SetToken(context.Background(), token))
	require.NoError(t, s.SetUser(context.Background(), &domain.User{ID: "u1", Email: "ana@example.com"}))
	return s
}

func TestDo_RefreshesAndRetriesWithNewToken(t *testing.T) {
	var refreshAuth, cartAuth recorder

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshAuth.add(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, refreshOK("T2"))
	})
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		cartAuth.add(auth)
		if auth != "Bearer T2" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"items": 2}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := seededStore(t, "T1")
	var states []State
	c := newTestClient(t, srv.URL+"/api", store, WithoutThrottle(), WithStateHook(func(_ string, _, to State) {
		states = append(states, to)
	}))

	req, err := NewRequest(http.MethodGet, "/cart")
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"success":true,"data":{"items":2}}`, string(resp.Body))

	require.Equal(t, []string{""}, refreshAuth.all(), "refresh is sent once and without the bearer")
	require.Equal(t, []string{"Bearer T1", "Bearer T2"}, cartAuth.all())

	tok, _ := store.Token(context.Background())
	require.Equal(t, "T2", tok)

	require.Equal(t, []State{
		StateDispatched, StateFailedAuth, StateRefreshInFlight, StateRetryDispatched, StateSucceeded,
	}, states)
}

func TestDo_LoginUnauthorizedNeverRefreshes(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, refreshOK("T2"))
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL+"/api", nil, WithoutThrottle())

	req, err := NewRequest(http.MethodPost, "/auth/login", WithJSON(map[string]string{"email": "a@b.c", "password": "x"}))
	require.NoError(t, err)

	_, err = c.Do(context.Background(), req)
	ne, ok := AsNormalized(err)
	require.True(t, ok)
	require.Equal(t, "Invalid credentials", ne.Message)
	require.Equal(t, http.StatusUnauthorized, ne.StatusCode)
	require.False(t, IsSessionInvalidated(err))
	require.Equal(t, int32(0), refreshCalls.Load())
}

func TestDo_AllowListCoversRegisterAndGoogle(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh-token" {
			refreshCalls.Add(1)
			writeJSON(w, http.StatusOK, refreshOK("T2"))
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil, WithoutThrottle())
	for _, p := range []string{"/auth/register", "/auth/google"} {
		req, _ := NewRequest(http.MethodPost, p)
		_, err := c.Do(context.Background(), req)
		require.True(t, IsStatus(err, http.StatusUnauthorized), p)
	}
	require.Equal(t, int32(0), refreshCalls.Load())
}

func TestDo_SecondUnauthorizedIsFinal(t *testing.T) {
	var refreshCalls, cartCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, refreshOK("T2"))
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		cartCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "still expired"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := seededStore(t, "T1")
	var last State
	c := newTestClient(t, srv.URL, store, WithoutThrottle(), WithStateHook(func(_ string, _, to State) { last = to }))

	req, _ := NewRequest(http.MethodGet, "/cart")
	_, err := c.Do(context.Background(), req)

	require.True(t, IsStatus(err, http.StatusUnauthorized))
	require.False(t, IsSessionInvalidated(err))
	require.Equal(t, int32(1), refreshCalls.Load())
	require.Equal(t, int32(2), cartCalls.Load())
	require.Equal(t, StateFailedFinal, last)

	tok, _ := store.Token(context.Background())
	require.Equal(t, "T2", tok, "a failed retry does not clear the session")
}

func TestDo_RefreshFailureClearsSessionAndNotifies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Refresh token expired", "messageVi": "Phiên đăng nhập đã hết hạn"})
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := seededStore(t, "T1")
	var redirects []error
	c := newTestClient(t, srv.URL, store, WithoutThrottle(), WithOnSessionInvalidated(func(_ context.Context, cause error) {
		redirects = append(redirects, cause)
	}))

	req, _ := NewRequest(http.MethodGet, "/orders")
	_, err := c.Do(context.Background(), req)

	ne, ok := AsNormalized(err)
	require.True(t, ok)
	require.True(t, IsSessionInvalidated(err))
	require.Equal(t, "Refresh token expired", ne.Message)
	require.Equal(t, "Phiên đăng nhập đã hết hạn", ne.LocalizedMessage)
	require.Equal(t, http.StatusUnauthorized, ne.StatusCode)

	tok, _ := store.Token(context.Background())
	require.Empty(t, tok)
	u, _ := store.User(context.Background())
	require.Nil(t, u)

	require.Len(t, redirects, 1)
}

func TestDo_RefreshWithoutTokenInBodyInvalidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh-token" {
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	store := seededStore(t, "T1")
	c := newTestClient(t, srv.URL, store, WithoutThrottle())

	req, _ := NewRequest(http.MethodGet, "/cart")
	_, err := c.Do(context.Background(), req)
	require.True(t, IsSessionInvalidated(err))
	require.ErrorIs(t, err, ErrNoAccessToken)

	tok, _ := store.Token(context.Background())
	require.Empty(t, tok)
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 5
	var refreshCalls, unauthorized atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		// segura o refresh até todos os pedidos terem recebido 401
		deadline := time.Now().Add(2 * time.Second)
		for unauthorized.Load() < n && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, http.StatusOK, refreshOK("T2"))
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T2" {
			unauthorized.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, seededStore(t, "T1"), WithoutThrottle())

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := NewRequest(http.MethodGet, "/cart")
			_, err := c.Do(context.Background(), req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), refreshCalls.Load())
}

func TestDo_WithoutCoalescingEachRequestRefreshes(t *testing.T) {
	const n = 3
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, refreshOK("T2"))
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	// todos despacham com T1: a leitura do token acontece antes de qualquer refresh
	start := make(chan struct{})
	store := seededStore(t, "T1")
	c := newTestClient(t, srv.URL, store, WithoutThrottle(), WithRefreshCoalescing(false),
		WithTransport(RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path == "/cart" && r.Header.Get("Authorization") == "Bearer T1" {
				<-start
			}
			return http.DefaultTransport.RoundTrip(r)
		})))

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := NewRequest(http.MethodGet, "/cart")
			if _, err := c.Do(context.Background(), req); err != nil {
				t.Errorf("request failed: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(start)
	wg.Wait()

	require.Equal(t, int32(n), refreshCalls.Load())
}

func TestDo_ThrottleSpacesSameKeyOnly(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]time.Time{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = append(seen[r.URL.Path], time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil, WithThrottleInterval(300*time.Millisecond))

	do := func(path string) {
		req, _ := NewRequest(http.MethodGet, path)
		_, err := c.Do(context.Background(), req)
		require.NoError(t, err)
	}

	// chaves diferentes: nenhuma espera
	start := time.Now()
	do("/products")
	do("/cart")
	require.Less(t, time.Since(start), 250*time.Millisecond)

	// mesma chave: o segundo despacho espera o intervalo
	start = time.Now()
	do("/orders")
	do("/orders")
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	orders := seen["/orders"]
	require.Len(t, orders, 2)
	require.GreaterOrEqual(t, orders[1].Sub(orders[0]), 290*time.Millisecond)
}

func TestDo_ThrottleKeyOverrideSharesSpacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil, WithThrottleInterval(200*time.Millisecond))

	start := time.Now()
	for _, p := range []string{"/products?page=1", "/products?page=2"} {
		req, _ := NewRequest(http.MethodGet, p, WithThrottleKey("catalog"))
		_, err := c.Do(context.Background(), req)
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestDo_TransportErrorIsNormalized(t *testing.T) {
	boom := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	c := newTestClient(t, "http://backend.invalid", nil, WithoutThrottle(),
		WithTransport(RoundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, boom })))

	req, _ := NewRequest(http.MethodGet, "/products")
	_, err := c.Do(context.Background(), req)

	ne, ok := AsNormalized(err)
	require.True(t, ok)
	require.Equal(t, 0, ne.StatusCode)
	require.Equal(t, DefaultErrorMessage, ne.Message)
	require.ErrorIs(t, err, boom)
	require.NotEmpty(t, ne.RequestID)
}

func TestDo_BusinessErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "Out of stock", "messageVi": "Hết hàng"})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil, WithoutThrottle())
	req, _ := NewRequest(http.MethodPost, "/cart", WithJSON(map[string]any{"productId": "p1", "quantity": 3}))
	_, err := c.Do(context.Background(), req)

	ne, ok := AsNormalized(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnprocessableEntity, ne.StatusCode)
	require.Equal(t, "Hết hàng", ne.DisplayMessage(true))
	require.Equal(t, "Out of stock", ne.DisplayMessage(false))
	require.Equal(t, int32(1), calls.Load())

	var re *ResponseError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusUnprocessableEntity, re.StatusCode)
}

func TestDo_BearerOnlyWhenTokenPresent(t *testing.T) {
	var got recorder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.add(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store := infra.NewMemorySessionStore()
	c := newTestClient(t, srv.URL, store, WithoutThrottle())

	req, _ := NewRequest(http.MethodGet, "/products")
	_, err := c.Do(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, store.SetToken(context.Background(), "T9"))
	_, err = c.Do(context.Background(), req)
	require.NoError(t, err)

	noAuth, _ := NewRequest(http.MethodGet, "/products", WithoutAuth())
	_, err = c.Do(context.Background(), noAuth)
	require.NoError(t, err)

	require.Equal(t, []string{"", "Bearer T9", ""}, got.all())
}

func TestDo_WithoutAuthDoesNotRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh-token" {
			refreshCalls.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, seededStore(t, "T1"), WithoutThrottle())
	req, _ := NewRequest(http.MethodGet, "/products", WithoutAuth())
	_, err := c.Do(context.Background(), req)

	require.True(t, IsStatus(err, http.StatusUnauthorized))
	require.Equal(t, int32(0), refreshCalls.Load())
}

func TestDo_ProactiveRefreshBeforeExpiry(t *testing.T) {
	var refreshCalls atomic.Int32
	var seen recorder
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": "T2"})
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	soon := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Second))})
	tok, err := soon.SignedString([]byte("k"))
	require.NoError(t, err)

	c := newTestClient(t, srv.URL, seededStore(t, tok), WithoutThrottle(), WithProactiveRefresh(time.Minute))
	req, _ := NewRequest(http.MethodGet, "/cart")
	_, err = c.Do(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, int32(1), refreshCalls.Load())
	require.Equal(t, []string{"Bearer T2"}, seen.all())
}

func TestDo_ContextCancelledWhileThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	var last State
	c := newTestClient(t, srv.URL, nil, WithThrottleInterval(time.Hour), WithStateHook(func(_ string, _, to State) { last = to }))

	req, _ := NewRequest(http.MethodGet, "/products")
	_, err := c.Do(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, req)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := AsNormalized(err)
	require.True(t, ok)
	require.Equal(t, StateFailedOther, last)
}

func TestDo_NoSlotAvailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := newTestClient(t, srv.URL, nil, WithoutThrottle(), WithSlotPool(infra.NewChanPool(1), 20*time.Millisecond))

	go func() {
		req, _ := NewRequest(http.MethodGet, "/slow")
		_, _ = c.Do(context.Background(), req)
	}()
	time.Sleep(50 * time.Millisecond)

	req, _ := NewRequest(http.MethodGet, "/other")
	_, err := c.Do(context.Background(), req)
	ne, ok := AsNormalized(err)
	require.True(t, ok)
	require.Equal(t, 0, ne.StatusCode)
	require.Contains(t, ne.Error(), "no request slot available")
}

func TestDo_RecordsDispatchStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, refreshOK("T2"))
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	stats := infra.NewMemoryStatsStore()
	c := newTestClient(t, srv.URL, seededStore(t, "T1"), WithoutThrottle(), WithStats(stats))

	req, _ := NewRequest(http.MethodGet, "/cart")
	_, err := c.Do(context.Background(), req)
	require.NoError(t, err)

	total := stats.Total()
	require.Equal(t, int64(1), total.AuthExpired)
	require.Equal(t, int64(1), total.Refreshed)
	require.Equal(t, int64(1), total.OK)
}

func TestDo_BaseURLPathPrefixAndQuery(t *testing.T) {
	var got recorder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.add(r.URL.Path)
		got.add(r.URL.RawQuery)
		got.add(r.Header.Get(DefaultRequestIDHeader))
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":"p1"}]}`)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL+"/api/v1", nil, WithoutThrottle())
	req, _ := NewRequest(http.MethodGet, "/products", WithQueryParam("category", "shoes"))

	env, err := Call[[]struct {
		ID string `json:"id"`
	}](context.Background(), c, req)
	require.NoError(t, err)
	require.True(t, env.Success)
	require.Len(t, env.Data, 1)
	require.Equal(t, "p1", env.Data[0].ID)

	vals := got.all()
	require.Len(t, vals, 3)
	require.Equal(t, "/api/v1/products", vals[0])
	require.Equal(t, "category=shoes", vals[1])
	require.NotEmpty(t, vals[2])
}

func TestDoJSON_UnparseableBodyHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>oops</html>")
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, nil, WithoutThrottle())
	req, _ := NewRequest(http.MethodGet, "/products")

	var out map[string]any
	err := c.DoJSON(context.Background(), req, &out)
	ne, ok := AsNormalized(err)
	require.True(t, ok)
	require.Equal(t, 0, ne.StatusCode)
	require.Equal(t, srv.URL+"/products", ne.URL)
	require.NotEmpty(t, ne.RequestID)
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	_, err := New(nil, WithBaseURL("/api"))
	require.ErrorIs(t, err, ErrInvalidBaseURL)
}

func TestDo_NilRequest(t *testing.T) {
	c := newTestClient(t, "http://example.com", nil)
	_, err := c.Do(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilRequest)
}

func TestDo_WithoutBaseURLRefreshesOnRequestHost(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, refreshOK("T2"))
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T2" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var notified atomic.Int32
	store := seededStore(t, "T1")
	c, err := New(store, WithoutThrottle(),
		WithOnSessionInvalidated(func(context.Context, error) { notified.Add(1) }))
	require.NoError(t, err)

	req, _ := NewRequest(http.MethodGet, srv.URL+"/cart")
	_, err = c.Do(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, int32(1), refreshCalls.Load())
	require.Equal(t, int32(0), notified.Load())
	tok, _ := store.Token(context.Background())
	require.Equal(t, "T2", tok)
}

func TestRefresh_UnresolvableURLKeepsSession(t *testing.T) {
	var notified atomic.Int32
	store := seededStore(t, "T1")
	c, err := New(store, WithoutThrottle(),
		WithOnSessionInvalidated(func(context.Context, error) { notified.Add(1) }))
	require.NoError(t, err)

	_, err = c.Refresh(context.Background())
	require.Error(t, err)
	require.False(t, IsSessionInvalidated(err))
	_, ok := AsNormalized(err)
	require.True(t, ok)

	require.Equal(t, int32(0), notified.Load())
	tok, _ := store.Token(context.Background())
	require.Equal(t, "T1", tok)
}
