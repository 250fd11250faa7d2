package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront-client/client"
)

// ProductFilter vira query string; campos zerados são omitidos.
type ProductFilter struct {
	Category string
	Search   string
	MinPrice float64
	MaxPrice float64
	// Sort: "price_asc", "price_desc", "newest", "rating".
	Sort  string
	Page  int
	Limit int
}

func (f ProductFilter) values() url.Values {
	q := url.Values{}
	if v := strings.TrimSpace(f.Category); v != "" {
		q.Set("category", v)
	}
	if v := strings.TrimSpace(f.Search); v != "" {
		q.Set("search", v)
	}
	if f.MinPrice > 0 {
		q.Set("minPrice", strconv.FormatFloat(f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice > 0 {
		q.Set("maxPrice", strconv.FormatFloat(f.MaxPrice, 'f', -1, 64))
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

type Products struct {
	c *client.Client
}

// List usa uma chave de throttle única para a listagem: trocar filtro ou
// página rapidamente não gera rajada no backend.
func (p *Products) List(ctx context.Context, f ProductFilter) (ProductPage, error) {
	return call[ProductPage](ctx, p.c, http.MethodGet, "/products",
		client.WithQuery(f.values()), client.WithThrottleKey("products:list"))
}

func (p *Products) Get(ctx context.Context, idOrSlug string) (Product, error) {
	return call[Product](ctx, p.c, http.MethodGet, "/products/"+url.PathEscape(strings.TrimSpace(idOrSlug)))
}

func (p *Products) Categories(ctx context.Context) ([]Category, error) {
	return call[[]Category](ctx, p.c, http.MethodGet, "/categories")
}
