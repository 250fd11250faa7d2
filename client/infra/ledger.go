package infra

import (
	"context"
	"sync"
	"time"

	"storefront-client/client/domain"
)

const (
	DefaultMinInterval  = 300 * time.Millisecond
	DefaultHorizon      = 60 * time.Second
	DefaultCleanupEvery = 60 * time.Second
)

// Ledger é o registro de throttle: para cada chave guarda o horário do último
// despacho e garante um intervalo mínimo entre despachos da mesma chave.
//
// O horário é reservado sob o lock antes de dormir, então dois chamadores na
// mesma chave nunca recebem slots a menos de minInterval um do outro. Uma
// reserva cancelada é devolvida e não atrasa quem vem depois.
type Ledger struct {
	mu           sync.Mutex
	entries      map[domain.Key]*ledgerEntry
	minInterval  time.Duration
	horizon      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type ledgerEntry struct {
	// last é o último despacho efetivo.
	last time.Time
	// pending são slots reservados por chamadores que ainda estão dormindo.
	pending []time.Time
}

// tail é o horário mais tardio ocupado na chave, despachado ou reservado.
func (e *ledgerEntry) tail() time.Time {
	t := e.last
	for _, p := range e.pending {
		if p.After(t) {
			t = p
		}
	}
	return t
}

func (e *ledgerEntry) release(slot time.Time) {
	for i, p := range e.pending {
		if p.Equal(slot) {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

type LedgerOption func(*Ledger)

func WithMinInterval(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.minInterval = d }
}

// WithHorizon define a idade a partir da qual Cleanup descarta uma entrada.
func WithHorizon(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.horizon = d }
}

func WithCleanupEvery(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.cleanupEvery = d }
}

// WithClock troca o relógio (útil em testes de Cleanup).
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		entries:      make(map[domain.Key]*ledgerEntry),
		minInterval:  DefaultMinInterval,
		horizon:      DefaultHorizon,
		cleanupEvery: DefaultCleanupEvery,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) MinInterval() time.Duration  { return l.minInterval }
func (l *Ledger) CleanupEvery() time.Duration { return l.cleanupEvery }

// Wait implementa domain.Pacer.
func (l *Ledger) Wait(ctx context.Context, key domain.Key) error {
	l.mu.Lock()
	now := l.now()
	ent, ok := l.entries[key]
	if !ok {
		ent = &ledgerEntry{}
		l.entries[key] = ent
	}
	slot := now
	if tail := ent.tail(); !tail.IsZero() {
		if next := tail.Add(l.minInterval); next.After(now) {
			slot = next
		}
	}
	ent.pending = append(ent.pending, slot)
	l.mu.Unlock()

	err := sleep(ctx, slot.Sub(now))

	l.mu.Lock()
	defer l.mu.Unlock()
	ent.release(slot)
	if err != nil {
		if ent.last.IsZero() && len(ent.pending) == 0 && l.entries[key] == ent {
			delete(l.entries, key)
		}
		return err
	}
	if slot.After(ent.last) {
		ent.last = slot
	}
	return nil
}

// Last retorna o último despacho efetivo da chave.
func (l *Ledger) Last(key domain.Key) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ent, ok := l.entries[key]
	if !ok || ent.last.IsZero() {
		return time.Time{}, false
	}
	return ent.last, true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Cleanup remove chaves cujo último despacho é mais antigo que o horizonte.
// É só um limite de memória: não afeta a correção do espaçamento.
func (l *Ledger) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.horizon)
	for k, ent := range l.entries {
		if len(ent.pending) == 0 && ent.last.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (l *Ledger) StartJanitor(ctx DoneContext) {
	if l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
