package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront-client/client"
	"storefront-client/client/domain"
)

// ErrMissingToken: o backend respondeu 2xx num fluxo de autenticação sem access token.
var ErrMissingToken = errors.New("auth response has no access token")

type Auth struct {
	c *client.Client
}

// Login autentica com email e senha e grava a sessão.
// O refresh token chega como cookie HTTP-only e fica no jar do client.
func (a *Auth) Login(ctx context.Context, email, password string) (*domain.User, error) {
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	return a.authenticate(ctx, "/auth/login", body)
}

func (a *Auth) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	return a.authenticate(ctx, "/auth/register", in)
}

// GoogleSignIn troca a credencial (ID token) emitida pelo Google por uma sessão da loja.
func (a *Auth) GoogleSignIn(ctx context.Context, credential string) (*domain.User, error) {
	return a.authenticate(ctx, "/auth/google", map[string]string{"credential": credential})
}

func (a *Auth) authenticate(ctx context.Context, path string, body any) (*domain.User, error) {
	res, err := call[AuthResult](ctx, a.c, http.MethodPost, path, client.WithJSON(body))
	if err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingToken)
	}
	u := res.User
	if err := a.c.BeginSession(ctx, res.AccessToken, &u); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &u, nil
}

// Logout avisa o backend e descarta a sessão local mesmo que a chamada falhe.
func (a *Auth) Logout(ctx context.Context) error {
	callErr := exec(ctx, a.c, http.MethodPost, "/auth/logout")
	clearErr := a.c.ClearSession(context.WithoutCancel(ctx))
	return errors.Join(callErr, clearErr)
}

// Me busca o perfil atual e atualiza o cache local.
func (a *Auth) Me(ctx context.Context) (*domain.User, error) {
	u, err := call[domain.User](ctx, a.c, http.MethodGet, "/auth/me")
	if err != nil {
		return nil, err
	}
	if err := a.c.Sessions().SetUser(ctx, &u); err != nil {
		return nil, fmt.Errorf("cache user: %w", err)
	}
	return &u, nil
}

func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	return exec(ctx, a.c, http.MethodPost, "/auth/forgot-password",
		client.WithoutAuth(), client.WithJSON(map[string]string{"email": strings.TrimSpace(email)}))
}

func (a *Auth) ResetPassword(ctx context.Context, token, password string) error {
	return exec(ctx, a.c, http.MethodPost, "/auth/reset-password",
		client.WithoutAuth(), client.WithJSON(map[string]string{"token": token, "password": password}))
}

func (a *Auth) VerifyEmail(ctx context.Context, token string) error {
	return exec(ctx, a.c, http.MethodPost, "/auth/verify-email",
		client.WithoutAuth(), client.WithJSON(map[string]string{"token": token}))
}

func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	return exec(ctx, a.c, http.MethodPost, "/auth/resend-verification",
		client.WithoutAuth(), client.WithJSON(map[string]string{"email": strings.TrimSpace(email)}))
}
