package api

import (
	"context"

	"storefront-client/client"
)

// API agrupa os wrappers por área do backend.
type API struct {
	Auth     *Auth
	Products *Products
	Cart     *CartAPI
	Orders   *Orders
	Loyalty  *Loyalty
}

func New(c *client.Client) *API {
	return &API{
		Auth:     &Auth{c: c},
		Products: &Products{c: c},
		Cart:     &CartAPI{c: c},
		Orders:   &Orders{c: c},
		Loyalty:  &Loyalty{c: c},
	}
}

// call monta o pedido e devolve o "data" do envelope.
func call[T any](ctx context.Context, c *client.Client, method, path string, opts ...client.RequestOption) (T, error) {
	var zero T
	req, err := client.NewRequest(method, path, opts...)
	if err != nil {
		return zero, err
	}
	env, err := client.Call[T](ctx, c, req)
	if err != nil {
		return zero, err
	}
	return env.Data, nil
}

// exec é call sem payload de retorno.
func exec(ctx context.Context, c *client.Client, method, path string, opts ...client.RequestOption) error {
	req, err := client.NewRequest(method, path, opts...)
	if err != nil {
		return err
	}
	_, err = c.Do(ctx, req)
	return err
}
