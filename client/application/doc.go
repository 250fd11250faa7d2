// Package application contém os casos de uso do cliente: espaçamento de
// despachos, limite de pedidos em voo e ciclo de vida da sessão local.
//
// Ele depende apenas do pacote domain e não conhece net/http.
package application
