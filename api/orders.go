package api

import (
	"context"
	"net/http"
	"net/url"

	"storefront-client/client"
)

type Orders struct {
	c *client.Client
}

func (o *Orders) Create(ctx context.Context, in CreateOrder) (Order, error) {
	return call[Order](ctx, o.c, http.MethodPost, "/orders", client.WithJSON(in))
}

func (o *Orders) List(ctx context.Context) ([]Order, error) {
	return call[[]Order](ctx, o.c, http.MethodGet, "/orders")
}

func (o *Orders) Get(ctx context.Context, id string) (Order, error) {
	return call[Order](ctx, o.c, http.MethodGet, "/orders/"+url.PathEscape(id))
}

func (o *Orders) Cancel(ctx context.Context, id string) (Order, error) {
	return call[Order](ctx, o.c, http.MethodPut, "/orders/"+url.PathEscape(id)+"/cancel")
}

type Loyalty struct {
	c *client.Client
}

func (l *Loyalty) Points(ctx context.Context) (Points, error) {
	return call[Points](ctx, l.c, http.MethodGet, "/loyalty/points")
}

func (l *Loyalty) History(ctx context.Context) ([]PointsEntry, error) {
	return call[[]PointsEntry](ctx, l.c, http.MethodGet, "/loyalty/history")
}
