package infra

import (
	"context"

	"storefront-client/client/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool de vagas baseado em channel com capacidade `max`.
// Com max <= 0 retorna nil: sem limite de pedidos em voo.
func NewChanPool(max int) domain.SlotPool {
	if max <= 0 {
		return nil
	}
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
