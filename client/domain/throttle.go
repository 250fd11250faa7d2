package domain

import "context"

// Key identifica um endpoint lógico para fins de espaçamento (throttle).
// Não precisa ser a URL literal, apenas consistente por ponto de chamada.
type Key string

// Pacer impõe um intervalo mínimo entre despachos consecutivos da mesma chave.
//
// Wait bloqueia até a chave estar disponível (ou o ctx encerrar) e registra o
// despacho. Não é um mutex: apenas espaça, não serializa a ordem dos pedidos.
type Pacer interface {
	Wait(ctx context.Context, key Key) error
}
