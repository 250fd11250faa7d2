package client

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"storefront-client/client/domain"
)

// Request é um pedido lógico ao backend. O corpo fica em bytes para que o
// reenvio após refresh seja idêntico ao envio original.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string

	// ThrottleKey sobrepõe a chave derivada do caminho.
	ThrottleKey domain.Key

	skipAuth    bool
	skipRefresh bool
}

type RequestOption interface{ apply(*Request) error }

type requestOptionFunc func(*Request) error

func (f requestOptionFunc) apply(r *Request) error { return f(r) }

// NewRequest monta um Request. O único erro possível vem da serialização JSON.
func NewRequest(method, path string, opts ...RequestOption) (*Request, error) {
	r := &Request{
		Method: strings.ToUpper(strings.TrimSpace(method)),
		Path:   strings.TrimSpace(path),
		Header: make(http.Header),
	}
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.apply(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func WithJSON(v any) RequestOption {
	return requestOptionFunc(func(r *Request) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		r.Body = b
		r.ContentType = "application/json"
		return nil
	})
}

func WithHeader(key, value string) RequestOption {
	return requestOptionFunc(func(r *Request) error {
		r.Header.Set(key, value)
		return nil
	})
}

func WithQuery(values url.Values) RequestOption {
	return requestOptionFunc(func(r *Request) error {
		if r.Query == nil {
			r.Query = make(url.Values)
		}
		for k, vv := range values {
			for _, v := range vv {
				r.Query.Add(k, v)
			}
		}
		return nil
	})
}

func WithQueryParam(key, value string) RequestOption {
	return requestOptionFunc(func(r *Request) error {
		if r.Query == nil {
			r.Query = make(url.Values)
		}
		r.Query.Add(key, value)
		return nil
	})
}

func WithThrottleKey(key string) RequestOption {
	return requestOptionFunc(func(r *Request) error {
		r.ThrottleKey = domain.Key(key)
		return nil
	})
}

// WithoutAuth não anexa o bearer e não tenta refresh em 401.
func WithoutAuth() RequestOption {
	return requestOptionFunc(func(r *Request) error {
		r.skipAuth = true
		r.skipRefresh = true
		return nil
	})
}

// KeyFunc deriva a chave de throttle de um pedido.
type KeyFunc func(r *Request) domain.Key

// DefaultKeyFunc usa o caminho sem query string (ex: "/products").
func DefaultKeyFunc(r *Request) domain.Key {
	p := r.Path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		p = "/"
	}
	return domain.Key(p)
}
