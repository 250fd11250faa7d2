package application

import (
	"context"

	"storefront-client/client/domain"
)

// ThrottleService concentra a regra de espaçamento antes do despacho.
type ThrottleService struct {
	Pacer domain.Pacer
}

// Wait espera a vez da chave. Sem Pacer ou com chave vazia não há espera.
func (s ThrottleService) Wait(ctx context.Context, key domain.Key) error {
	if s.Pacer == nil || key == "" {
		return nil
	}
	return s.Pacer.Wait(ctx, key)
}
