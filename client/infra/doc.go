// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Ledger: espaçamento mínimo por chave com limpeza periódica (ThrottleLedger)
//   - ChanPool: semáforo simples para limitar pedidos em voo
//   - MemorySessionStore / RedisSessionStore: persistência do token e do usuário
//   - MemoryStatsStore / RedisStatsStore: contadores de despacho
package infra
