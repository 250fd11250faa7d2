package domain

import (
	"context"
	"time"
)

// User é o perfil do cliente em cache local, exatamente como o backend devolve.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Role          string `json:"role,omitempty"`
	EmailVerified bool   `json:"isEmailVerified,omitempty"`
}

// Session é a visão de leitura da sessão atual.
//
// O refresh token nunca aparece aqui: ele vive num cookie HTTP-only e só o
// transporte HTTP o manipula.
type Session struct {
	AccessToken string
	User        *User
	// ExpiresAt vem do claim "exp" do access token. Zero quando desconhecido.
	ExpiresAt time.Time
}

// Valid indica se existe um access token.
func (s Session) Valid() bool { return s.AccessToken != "" }

// ExpiresWithin indica se o token expira antes de now+skew.
// Sem ExpiresAt conhecido, retorna false (o servidor decide via 401).
func (s Session) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.ExpiresAt)
}

// SessionStore persiste o access token e o perfil do usuário.
//
// Entradas ausentes retornam valor zero ("" / nil) com erro nil.
// Implementações devem ser seguras para uso concorrente; o meio de persistência
// (memória, Redis, keychain do SO) é livre.
type SessionStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	RemoveToken(ctx context.Context) error

	User(ctx context.Context) (*User, error)
	SetUser(ctx context.Context, u *User) error
	RemoveUser(ctx context.Context) error
}
