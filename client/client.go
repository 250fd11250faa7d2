package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-client/client/application"
	"storefront-client/client/domain"
	"storefront-client/client/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Response é uma resposta 2xx já lida.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Method, URL (já resolvida) e RequestID do pedido que produziu a resposta.
	Method    string
	URL       string
	RequestID string
}

func (r *Response) ok() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

type Client struct {
	httpClient *http.Client
	baseURL    *url.URL

	timeout         time.Duration
	userAgent       string
	requestIDHeader string
	maxBody         int64

	store    domain.SessionStore
	sessions application.SessionService
	throttle application.ThrottleService
	slots    application.ConcurrencyService
	limiter  RateLimiter
	keyFn    KeyFunc

	noRefresh     []string
	refreshPath   string
	coalesce      bool
	proactiveSkew time.Duration
	onInvalidated SessionInvalidatedFunc

	stateHook StateHook
	stats     domain.StatsStore
	log       zerolog.Logger

	refreshGroup singleflight.Group
}

// New constrói um Client a partir de DefaultConfig() mais as opções.
// store nil usa um infra.MemorySessionStore.
func New(store domain.SessionStore, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return NewWithConfig(store, cfg)
}

func NewWithConfig(store domain.SessionStore, cfg Config) (*Client, error) {
	var bu *url.URL
	if strings.TrimSpace(cfg.BaseURL) != "" {
		u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, &url.Error{Op: "parse", URL: cfg.BaseURL, Err: ErrInvalidBaseURL}
		}
		// o caminho da BaseURL vira prefixo: "/api" + "/cart" => "/api/cart"
		if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		bu = u
	}

	hc := cfg.HTTPClient
	if hc == nil {
		rt := cfg.Transport
		if rt == nil {
			rt = DefaultTransport()
		}
		var err error
		if hc, err = newHTTPClient(rt); err != nil {
			return nil, err
		}
	}

	if store == nil {
		store = infra.NewMemorySessionStore()
	}

	pacer := cfg.Pacer
	if pacer == nil && !cfg.DisableThrottle {
		pacer = infra.NewLedger(infra.WithMinInterval(cfg.ThrottleMinInterval))
	}
	if cfg.DisableThrottle {
		pacer = nil
	}

	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = DefaultKeyFunc
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	refreshPath := strings.TrimSpace(cfg.RefreshPath)
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}

	return &Client{
		httpClient:      hc,
		baseURL:         bu,
		timeout:         cfg.Timeout,
		userAgent:       cfg.UserAgent,
		requestIDHeader: cfg.RequestIDHeader,
		maxBody:         maxBody,
		store:           store,
		sessions:        application.SessionService{Store: store},
		throttle:        application.ThrottleService{Pacer: pacer},
		slots:           application.ConcurrencyService{Pool: cfg.SlotPool, AcquireTimeout: cfg.AcquireTimeout},
		limiter:         cfg.RateLimiter,
		keyFn:           keyFn,
		noRefresh:       append([]string(nil), cfg.NoRefreshPaths...),
		refreshPath:     refreshPath,
		coalesce:        cfg.CoalesceRefresh,
		proactiveSkew:   cfg.ProactiveRefreshSkew,
		onInvalidated:   cfg.OnSessionInvalidated,
		stateHook:       cfg.StateHook,
		stats:           cfg.Stats,
		log:             cfg.Logger,
	}, nil
}

// Sessions devolve o SessionStore injetado.
func (c *Client) Sessions() domain.SessionStore { return c.store }

// Session devolve a sessão atual (token, usuário e expiração do JWT).
func (c *Client) Session(ctx context.Context) (domain.Session, error) {
	return c.sessions.Current(ctx)
}

// BeginSession grava token e usuário (login, registro, Google).
func (c *Client) BeginSession(ctx context.Context, token string, u *domain.User) error {
	return c.sessions.Begin(ctx, token, u)
}

// ClearSession remove token e usuário (logout).
func (c *Client) ClearSession(ctx context.Context) error {
	return c.sessions.Clear(ctx)
}

// Do executa o ciclo completo do pedido. Devolve a resposta 2xx ou um
// *NormalizedError; nenhum outro tipo de erro sai daqui.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, Normalize(0, nil, ErrNilRequest)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	u, err := c.resolveURL(req.Path, req.Query)
	if err != nil {
		return nil, c.fail(err, req.Method, req.Path, "")
	}
	target := u.String()

	rid := c.newRequestID()
	tr := &tracker{
		requestID: rid,
		state:     StateFresh,
		hook:      c.stateHook,
		onIllegal: func(from, to State) {
			c.log.Error().Str("request_id", rid).Stringer("from", from).Stringer("to", to).Msg("illegal request state transition")
		},
	}

	key := req.ThrottleKey
	if key == "" {
		key = c.keyFn(req)
	}

	release, err := c.beforeDispatch(ctx, req, u, key)
	if err != nil {
		tr.to(StateFailedOther)
		return nil, c.fail(err, req.Method, target, rid)
	}
	defer release()

	first := firstAttempt{req: req}
	tr.to(StateDispatched)
	resp, err := c.send(ctx, first, u, rid, c.bearer(ctx, req), key)
	if err != nil {
		tr.to(StateFailedOther)
		return nil, c.fail(err, req.Method, target, rid)
	}
	if resp.ok() {
		tr.to(StateSucceeded)
		resp.Method, resp.URL, resp.RequestID = req.Method, target, rid
		return resp, nil
	}
	if resp.StatusCode != http.StatusUnauthorized || !c.canRefresh(req, u) {
		tr.to(StateFailedOther)
		return nil, c.responseError(req.Method, target, rid, resp)
	}

	tr.to(StateFailedAuth)
	tr.to(StateRefreshInFlight)
	token, err := c.refreshFor(ctx, u)
	if err != nil {
		tr.to(StateRefreshFailed)
		tr.to(StateFailedFinal)
		return nil, err
	}

	retry := first.retryWith(token)
	tr.to(StateRetryDispatched)
	resp, err = c.send(ctx, retry, u, rid, retry.token, key)
	if err != nil {
		tr.to(StateFailedFinal)
		return nil, c.fail(err, req.Method, target, rid)
	}
	if resp.ok() {
		tr.to(StateSucceeded)
		resp.Method, resp.URL, resp.RequestID = req.Method, target, rid
		return resp, nil
	}
	tr.to(StateFailedFinal)
	return nil, c.responseError(req.Method, target, rid, resp)
}

// beforeDispatch cobre tudo o que acontece entre Fresh e Dispatched.
// Retorna a função de release da vaga de concorrência.
func (c *Client) beforeDispatch(ctx context.Context, req *Request, u *url.URL, key domain.Key) (func(), error) {
	if c.proactiveSkew > 0 && c.canRefresh(req, u) {
		if err := c.refreshIfExpiring(ctx, u); err != nil {
			return nil, err
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := c.throttle.Wait(ctx, key); err != nil {
		return nil, err
	}
	return c.slots.Acquire(ctx)
}

func (c *Client) refreshIfExpiring(ctx context.Context, origin *url.URL) error {
	tok, err := c.store.Token(ctx)
	if err != nil || tok == "" {
		return nil
	}
	sess := domain.Session{AccessToken: tok, ExpiresAt: application.TokenExpiry(tok)}
	if !sess.ExpiresWithin(time.Now(), c.proactiveSkew) {
		return nil
	}
	c.log.Debug().Time("expires_at", sess.ExpiresAt).Msg("access token about to expire, refreshing")
	_, err = c.refreshFor(ctx, origin)
	return err
}

// canRefresh: 401 só vira refresh fora da allow-list e fora do próprio refresh.
func (c *Client) canRefresh(req *Request, u *url.URL) bool {
	if req.skipRefresh {
		return false
	}
	p := u.Path
	if strings.Contains(p, c.refreshPath) {
		return false
	}
	for _, nr := range c.noRefresh {
		if nr != "" && strings.Contains(p, nr) {
			return false
		}
	}
	return true
}

func (c *Client) bearer(ctx context.Context, req *Request) string {
	if req.skipAuth {
		return ""
	}
	tok, err := c.store.Token(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("session store: read token")
		return ""
	}
	return tok
}

func (c *Client) send(ctx context.Context, a attempt, u *url.URL, rid, token string, key domain.Key) (*Response, error) {
	req := a.request()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vv := range req.Header {
		for _, v := range vv {
			hr.Header.Add(k, v)
		}
	}
	if req.ContentType != "" && hr.Header.Get("Content-Type") == "" {
		hr.Header.Set("Content-Type", req.ContentType)
	}
	c.setCommonHeaders(hr, rid)
	if token != "" {
		hr.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.roundTrip(hr)
	dur := time.Since(start)

	ev := domain.DispatchEvent{
		Key:      key,
		Method:   req.Method,
		Path:     u.Path,
		Attempt:  a.number(),
		At:       start,
		Duration: dur,
		Outcome:  domain.OutcomeError,
	}
	if resp != nil {
		ev.Status = resp.StatusCode
		switch {
		case resp.ok():
			ev.Outcome = domain.OutcomeOK
		case resp.StatusCode == http.StatusUnauthorized:
			ev.Outcome = domain.OutcomeAuthExpired
		}
	}
	c.observe(ctx, ev, rid, err)
	return resp, err
}

// roundTrip envia e lê o corpo inteiro (até maxBody), fechando a conexão.
func (c *Client) roundTrip(hr *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

func (c *Client) setCommonHeaders(hr *http.Request, rid string) {
	if hr.Header.Get("Accept") == "" {
		hr.Header.Set("Accept", "application/json")
	}
	if c.userAgent != "" && hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", c.userAgent)
	}
	if c.requestIDHeader != "" && rid != "" && hr.Header.Get(c.requestIDHeader) == "" {
		hr.Header.Set(c.requestIDHeader, rid)
	}
}

func (c *Client) observe(ctx context.Context, ev domain.DispatchEvent, rid string, err error) {
	c.log.Debug().
		Str("request_id", rid).
		Str("method", ev.Method).
		Str("path", ev.Path).
		Str("key", string(ev.Key)).
		Int("attempt", ev.Attempt).
		Int("status", ev.Status).
		Str("outcome", string(ev.Outcome)).
		Dur("duration", ev.Duration).
		Err(err).
		Msg("dispatch")

	if c.stats == nil {
		return
	}
	if rerr := c.stats.Record(context.WithoutCancel(ctx), ev); rerr != nil {
		c.log.Warn().Err(rerr).Msg("stats record failed")
	}
}

func (c *Client) responseError(method, target, rid string, resp *Response) error {
	ne := Normalize(resp.StatusCode, resp.Body, &ResponseError{StatusCode: resp.StatusCode, Body: resp.Body})
	ne.Method, ne.URL, ne.RequestID = method, target, rid
	return ne
}

// fail normaliza erros sem resposta HTTP. Um *NormalizedError já pronto passa direto.
func (c *Client) fail(err error, method, target, rid string) error {
	var ne *NormalizedError
	if errors.As(err, &ne) {
		return ne
	}
	ne = Normalize(0, nil, err)
	ne.Method, ne.URL, ne.RequestID = method, target, rid
	return ne
}

func (c *Client) newRequestID() string {
	if c.requestIDHeader == "" {
		return ""
	}
	return uuid.NewString()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	if dl, ok := ctx.Deadline(); ok && dl.Before(time.Now().Add(c.timeout)) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) resolveURL(path string, q url.Values) (*url.URL, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty url/path")
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		if c.baseURL == nil {
			return nil, errors.New("relative path requires BaseURL")
		}
		// "/cart" é relativo ao prefixo da BaseURL, não à raiz do host
		if strings.HasPrefix(u.Path, "/") {
			u2 := *u
			u2.Path = strings.TrimPrefix(u2.Path, "/")
			u = &u2
		}
		u = c.baseURL.ResolveReference(u)
	}
	if len(q) > 0 {
		qq := u.Query()
		for k, vv := range q {
			for _, v := range vv {
				qq.Add(k, v)
			}
		}
		u.RawQuery = qq.Encode()
	}
	return u, nil
}
