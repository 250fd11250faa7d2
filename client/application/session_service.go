package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-client/client/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSessionStore = errors.New("session store is not configured")

// SessionService agrupa as operações sobre o SessionStore que precisam
// acontecer juntas (token e usuário são criados e destruídos em par).
type SessionService struct {
	Store domain.SessionStore
}

// Begin grava token e usuário após login/registro/Google.
func (s SessionService) Begin(ctx context.Context, token string, u *domain.User) error {
	if s.Store == nil {
		return ErrNoSessionStore
	}
	if err := s.Store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if u == nil {
		return nil
	}
	if err := s.Store.SetUser(ctx, u); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

// Clear remove token e usuário. Tenta os dois mesmo se um falhar.
func (s SessionService) Clear(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	return errors.Join(s.Store.RemoveToken(ctx), s.Store.RemoveUser(ctx))
}

// Current monta a visão da sessão atual. ExpiresAt vem do claim "exp" do
// token quando ele é um JWT; tokens opacos ficam com ExpiresAt zero.
func (s SessionService) Current(ctx context.Context) (domain.Session, error) {
	if s.Store == nil {
		return domain.Session{}, ErrNoSessionStore
	}
	tok, err := s.Store.Token(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	u, err := s.Store.User(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		AccessToken: tok,
		User:        u,
		ExpiresAt:   TokenExpiry(tok),
	}, nil
}

// TokenExpiry lê o "exp" sem verificar a assinatura: o cliente não tem a chave
// e só usa o valor como dica para renovar antes do 401.
func TokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
