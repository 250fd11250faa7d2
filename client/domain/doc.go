// Package domain define contratos e tipos de domínio do cliente da loja.
//
// Este pacote não depende de net/http nem de implementações concretas
// (Redis, memória, relógio). A intenção é permitir testes de unidade puros e
// desacoplar as regras de sessão/throttle dos detalhes de infraestrutura.
package domain
