package infra

import (
	"context"
	"sync"

	"storefront-client/client/domain"
)

// MemorySessionStore guarda token e usuário em memória do processo.
// É o equivalente ao armazenamento local do navegador para um único cliente.
type MemorySessionStore struct {
	mu    sync.RWMutex
	token string
	user  *domain.User
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemorySessionStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemorySessionStore) RemoveToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func (s *MemorySessionStore) User(context.Context) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, nil
	}
	u := *s.user
	return &u, nil
}

func (s *MemorySessionStore) SetUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return nil
	}
	cp := *u
	s.user = &cp
	return nil
}

func (s *MemorySessionStore) RemoveUser(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	return nil
}
