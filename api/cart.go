package api

import (
	"context"
	"net/http"
	"net/url"

	"storefront-client/client"
)

// cartKey: todas as mutações do carrinho dividem o mesmo espaçamento.
const cartKey = "cart"

type CartAPI struct {
	c *client.Client
}

func (a *CartAPI) Get(ctx context.Context) (Cart, error) {
	return call[Cart](ctx, a.c, http.MethodGet, "/cart")
}

func (a *CartAPI) Add(ctx context.Context, productID string, qty int) (Cart, error) {
	body := map[string]any{"productId": productID, "quantity": qty}
	return call[Cart](ctx, a.c, http.MethodPost, "/cart",
		client.WithJSON(body), client.WithThrottleKey(cartKey))
}

func (a *CartAPI) Update(ctx context.Context, itemID string, qty int) (Cart, error) {
	return call[Cart](ctx, a.c, http.MethodPut, "/cart/"+url.PathEscape(itemID),
		client.WithJSON(map[string]int{"quantity": qty}), client.WithThrottleKey(cartKey))
}

func (a *CartAPI) Remove(ctx context.Context, itemID string) (Cart, error) {
	return call[Cart](ctx, a.c, http.MethodDelete, "/cart/"+url.PathEscape(itemID),
		client.WithThrottleKey(cartKey))
}

func (a *CartAPI) Clear(ctx context.Context) error {
	return exec(ctx, a.c, http.MethodDelete, "/cart", client.WithThrottleKey(cartKey))
}
