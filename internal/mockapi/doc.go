// Package mockapi é um backend da loja em memória, usado pelo cmd/mock-backend
// e pelos testes de integração.
//
// Ele reproduz o contrato que o client consome:
//
//   - envelope {success, message, messageVi, data} nas respostas 2xx
//   - erros {message, messageVi} com status HTTP
//   - access token JWT (HS256) de vida curta no "Authorization: Bearer"
//   - refresh token opaco em cookie HTTP-only, rotacionado a cada refresh
//   - guard de taxa por (cliente, caminho) respondendo 429 com Retry-After
//
// Não há persistência: reiniciar o processo zera usuários, carrinhos e pedidos.
package mockapi
