package infra

import (
	"context"
	"sync"

	"storefront-client/client/domain"
)

type Counters struct {
	OK            int64
	Errors        int64
	AuthExpired   int64
	Refreshed     int64
	RefreshFailed int64
}

func (c *Counters) add(o domain.Outcome) {
	switch o {
	case domain.OutcomeOK:
		c.OK++
	case domain.OutcomeAuthExpired:
		c.AuthExpired++
	case domain.OutcomeRefreshed:
		c.Refreshed++
	case domain.OutcomeRefreshFailed:
		c.RefreshFailed++
	default:
		c.Errors++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e para o resumo impresso pela CLI.
//
// Não faz expiração.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.DispatchEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)

	c := s.byRoute[route]
	c.add(ev.Outcome)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Outcome)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
