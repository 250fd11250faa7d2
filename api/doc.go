// Package api embrulha os endpoints REST do backend da loja sobre client.Client.
//
// Cada grupo (Auth, Products, Cart, Orders, Loyalty) só monta o pedido e
// decodifica o envelope; throttle, bearer, refresh e normalização de erros
// ficam no client.
//
// Fluxo típico:
//
//	c, _ := client.New(store, client.WithBaseURL("https://shop.example.com/api"))
//	shop := api.New(c)
//	user, err := shop.Auth.Login(ctx, "ana@example.com", "secret")
//	page, err := shop.Products.List(ctx, api.ProductFilter{Category: "shoes"})
package api
