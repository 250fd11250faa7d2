// Package client é o ponto único por onde a loja fala com o backend REST.
//
// Visão geral (camadas):
//
//   - domain: contratos (SessionStore, Pacer, SlotPool, StatsStore)
//   - application: casos de uso sem net/http (throttle, vagas, sessão)
//   - infra: implementações concretas (Ledger, ChanPool, stores em memória/Redis)
//   - client (este pacote): adapter net/http + máquina de estados do pedido
//
// Fluxo de um pedido:
//
//  1. Espera o rate limiter global (opcional) e o throttle da chave
//  2. Anexa "Authorization: Bearer <token>" quando há sessão
//  3. 2xx: devolve o corpo; outro status: devolve *NormalizedError
//  4. 401 fora da allow-list (login/registro/Google): chama /auth/refresh-token
//     uma vez (coalescido entre pedidos concorrentes) e reenvia exatamente uma vez
//  5. Se o refresh falhar: limpa token+usuário e chama OnSessionInvalidated
//
// Nenhum erro de transporte cru escapa: quem chama só vê *NormalizedError.
package client
