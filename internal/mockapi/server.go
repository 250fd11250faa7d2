package mockapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"storefront-client/api"
	"storefront-client/client/application"
	"storefront-client/client/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	// RefreshCookie é o nome do cookie HTTP-only com o refresh token.
	RefreshCookie = "refreshToken"
)

type Server struct {
	data    *data
	tokens  tokenIssuer
	gen     atomic.Int64
	limiter *rateGuard
	slots   application.ConcurrencyService

	refreshTTL time.Duration
	basePath   string
	log        zerolog.Logger
	now        func() time.Time

	refreshCalls atomic.Int64
	rejected     atomic.Int64
}

type Option func(*Server)

func WithSecret(secret []byte) Option {
	return func(s *Server) { s.tokens.secret = append([]byte(nil), secret...) }
}

func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.tokens.ttl = d }
}

func WithRefreshTTL(d time.Duration) Option {
	return func(s *Server) { s.refreshTTL = d }
}

// WithRateLimit liga o guard de taxa por (cliente, caminho). rps <= 0 desliga.
func WithRateLimit(rps float64, burst int, retryAfter time.Duration) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = newRateGuard(rps, burst, retryAfter)
		s.limiter.onReject = func(string) { s.rejected.Add(1) }
	}
}

// WithMaxInFlight limita pedidos simultâneos; quem não consegue vaga em
// acquireTimeout recebe 503. max <= 0 desliga.
func WithMaxInFlight(max int, acquireTimeout time.Duration) Option {
	return func(s *Server) {
		s.slots = application.ConcurrencyService{Pool: infra.NewChanPool(max), AcquireTimeout: acquireTimeout}
	}
}

// WithBasePath monta as rotas sob um prefixo (padrão "/api").
func WithBasePath(p string) Option {
	return func(s *Server) { s.basePath = p }
}

// WithPasswordCost ajusta o custo do bcrypt (testes usam bcrypt.MinCost).
func WithPasswordCost(cost int) Option {
	return func(s *Server) { s.data.cost = cost }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSeedUser cria um usuário verificado com alguns pontos de boas-vindas.
func WithSeedUser(name, email, password string) Option {
	return func(s *Server) {
		u, err := s.data.createUser(api.RegisterInput{Name: name, Email: email, Password: password}, true)
		if err != nil {
			s.log.Error().Err(err).Str("email", email).Msg("seed user")
			return
		}
		s.data.grantPoints(u.ID, 120, "welcome bonus", s.now())
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		data:       newData(bcrypt.DefaultCost),
		tokens:     tokenIssuer{secret: []byte("storefront-dev-secret"), issuer: "storefront-mock", ttl: DefaultAccessTTL},
		refreshTTL: DefaultRefreshTTL,
		basePath:   "/api",
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartJanitor limpa buckets inativos do guard até ctx terminar.
func (s *Server) StartJanitor(ctx context.Context) {
	if s.limiter != nil {
		s.limiter.run(ctx)
	}
}

// RevokeAccessTokens invalida todo access token emitido até agora; o próximo
// pedido autenticado recebe 401 e o client precisa fazer refresh.
func (s *Server) RevokeAccessTokens() { s.gen.Add(1) }

// RevokeRefreshTokens invalida todas as sessões; o próximo refresh falha com 401.
func (s *Server) RevokeRefreshTokens() { s.data.dropAllRefresh() }

// RefreshCalls conta chamadas a /auth/refresh-token (com ou sem sucesso).
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// Rejected conta pedidos barrados pelo guard de taxa.
func (s *Server) Rejected() int64 { return s.rejected.Load() }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Use(s.inFlight)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	r.Route(s.basePath, func(r chi.Router) {
		r.Use(s.limiter.middleware)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Post("/register", s.register)
			r.Post("/google", s.google)
			r.Post("/refresh-token", s.refreshToken)
			r.Post("/logout", s.logout)
			r.Post("/forgot-password", s.forgotPassword)
			r.Post("/reset-password", s.resetPassword)
			r.Post("/verify-email", s.verifyEmail)
			r.Post("/resend-verification", s.resendVerification)
			r.With(s.requireAuth).Get("/me", s.me)
		})

		r.Get("/products", s.listProducts)
		r.Get("/products/{idOrSlug}", s.getProduct)
		r.Get("/categories", s.listCategories)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/cart", s.getCart)
			r.Post("/cart", s.addToCart)
			r.Delete("/cart", s.clearCart)
			r.Put("/cart/{itemID}", s.updateCartItem)
			r.Delete("/cart/{itemID}", s.removeCartItem)

			r.Post("/orders", s.createOrder)
			r.Get("/orders", s.listOrders)
			r.Get("/orders/{id}", s.getOrder)
			r.Put("/orders/{id}/cancel", s.cancelOrder)

			r.Get("/loyalty/points", s.points)
			r.Get("/loyalty/history", s.pointsHistory)
		})
	})
	return r
}

func (s *Server) inFlight(next http.Handler) http.Handler {
	if s.slots.Pool == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release, err := s.slots.Acquire(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "Server busy", "Máy chủ đang bận")
			return
		}
		defer release()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
