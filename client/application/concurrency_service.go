package application

import (
	"context"
	"errors"
	"time"

	"storefront-client/client/domain"
)

// ErrNoSlot indica que não houve vaga para despachar dentro do prazo.
var ErrNoSlot = errors.New("no request slot available")

// ConcurrencyService limita quantos pedidos ficam em voo ao mesmo tempo,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
// - Sem Pool, sempre libera (release vazio).
// - Se `AcquireTimeout <= 0`, espera até ctx cancelar.
// - Se `AcquireTimeout > 0`, espera no máximo esse tempo.
//
// Em caso de falha retorna ErrNoSlot, ou o erro do ctx do chamador quando foi
// ele que encerrou.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoSlot
}
