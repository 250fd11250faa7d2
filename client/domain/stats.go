package domain

import (
	"context"
	"time"
)

// Outcome é o resultado de uma tentativa de despacho.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeError         Outcome = "error"
	OutcomeAuthExpired   Outcome = "auth_expired"
	OutcomeRefreshed     Outcome = "refreshed"
	OutcomeRefreshFailed Outcome = "refresh_failed"
)

// DispatchEvent representa uma tentativa de pedido ao backend.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves numa base como Redis).
type DispatchEvent struct {
	Key     Key
	Outcome Outcome

	Method string
	Path   string
	Status int
	// Attempt começa em 1; o reenvio após refresh é 2.
	Attempt int

	At       time.Time
	Duration time.Duration
}

// StatsStore é a estratégia de persistência para estatísticas de despacho.
//
// Implementações podem armazenar em Redis, memória, etc.
// O cliente trata erro como best-effort (não derruba o pedido).
type StatsStore interface {
	Record(ctx context.Context, ev DispatchEvent) error
}
