package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope é o formato padrão das respostas de sucesso do backend.
type Envelope[T any] struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	MessageVi string `json:"messageVi,omitempty"`
	Data      T      `json:"data"`
}

// DoJSON executa o pedido e decodifica o corpo 2xx em dst.
// Corpo vazio ou dst nil não são erro. Corpo ilegível vira *NormalizedError
// sem status (o pedido não tem resultado utilizável).
func (c *Client) DoJSON(ctx context.Context, req *Request, dst any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if dst == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		ne := Normalize(0, nil, fmt.Errorf("decode response: %w", err))
		ne.Method, ne.URL, ne.RequestID = resp.Method, resp.URL, resp.RequestID
		return ne
	}
	return nil
}

// Call é o atalho genérico para respostas no formato Envelope.
func Call[T any](ctx context.Context, c *Client, req *Request) (Envelope[T], error) {
	var env Envelope[T]
	if err := c.DoJSON(ctx, req, &env); err != nil {
		var zero Envelope[T]
		return zero, err
	}
	return env, nil
}
