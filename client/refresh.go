package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-client/client/domain"
)

const refreshFlightKey = "refresh"

// Refresh pede um novo access token ao backend (POST RefreshPath, sem corpo;
// a credencial vai no cookie). Com CoalesceRefresh, chamadas concorrentes
// compartilham o mesmo refresh em voo.
//
// Se o backend recusa o refresh ou a chamada falha no transporte, a sessão
// local é descartada, OnSessionInvalidated é chamada uma vez e o erro
// devolvido envolve ErrSessionInvalidated. Sem BaseURL e com RefreshPath
// relativo, Refresh falha sem tocar na sessão.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refreshFor(ctx, nil)
}

// refreshFor é Refresh a partir de um pedido que recebeu 401: sem BaseURL, o
// refresh vai para o mesmo scheme e host do pedido original.
func (c *Client) refreshFor(ctx context.Context, origin *url.URL) (string, error) {
	u, err := c.refreshURL(origin)
	if err != nil {
		ne := Normalize(0, nil, err)
		ne.Method, ne.URL = http.MethodPost, c.refreshPath
		return "", ne
	}
	if !c.coalesce {
		return c.refresh(ctx, u)
	}

	ch := c.refreshGroup.DoChan(refreshFlightKey+" "+u.String(), func() (any, error) {
		// o refresh compartilhado não pode morrer porque um dos chamadores desistiu
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()
		return c.refresh(rctx, u)
	})

	select {
	case <-ctx.Done():
		return "", c.fail(ctx.Err(), http.MethodPost, u.String(), "")
	case res := <-ch:
		if res.Err != nil {
			// cada chamador recebe a própria cópia do erro compartilhado
			if ne, ok := AsNormalized(res.Err); ok {
				cp := *ne
				return "", &cp
			}
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refreshURL(origin *url.URL) (*url.URL, error) {
	if c.baseURL == nil && origin != nil && origin.IsAbs() {
		ref, err := url.Parse(strings.TrimSpace(c.refreshPath))
		if err != nil {
			return nil, err
		}
		if !ref.IsAbs() {
			root := &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: "/"}
			return root.ResolveReference(ref), nil
		}
	}
	return c.resolveURL(c.refreshPath, nil)
}

func (c *Client) refreshTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	return DefaultTimeout
}

func (c *Client) refresh(ctx context.Context, u *url.URL) (string, error) {
	target := u.String()
	rid := c.newRequestID()

	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		ne := Normalize(0, nil, err)
		ne.Method, ne.URL, ne.RequestID = http.MethodPost, target, rid
		return "", ne
	}
	c.setCommonHeaders(hr, rid)

	start := time.Now()
	resp, err := c.roundTrip(hr)
	ev := domain.DispatchEvent{
		Key:      domain.Key(c.refreshPath),
		Method:   http.MethodPost,
		Path:     u.Path,
		Attempt:  1,
		At:       start,
		Duration: time.Since(start),
		Outcome:  domain.OutcomeRefreshFailed,
	}

	var token string
	var nerr *NormalizedError
	switch {
	case err != nil:
		nerr = Normalize(0, nil, err)
	case !resp.ok():
		ev.Status = resp.StatusCode
		nerr = Normalize(resp.StatusCode, resp.Body, &ResponseError{StatusCode: resp.StatusCode, Body: resp.Body})
	default:
		ev.Status = resp.StatusCode
		if token, err = parseAccessToken(resp.Body); err != nil {
			nerr = Normalize(0, nil, err)
		}
	}
	if nerr == nil {
		ev.Outcome = domain.OutcomeRefreshed
	}
	c.observe(ctx, ev, rid, err)

	if nerr != nil {
		nerr.Method, nerr.URL, nerr.RequestID = http.MethodPost, target, rid
		return "", c.invalidate(ctx, nerr)
	}

	if err := c.store.SetToken(ctx, token); err != nil {
		// o reenvio usa o token em mãos; só os próximos pedidos ficam sem ele
		c.log.Warn().Err(err).Msg("session store: persist refreshed token")
	}
	return token, nil
}

// invalidate marca o erro como sessão inválida e executa os efeitos colaterais.
func (c *Client) invalidate(ctx context.Context, ne *NormalizedError) error {
	if ne.Cause == nil {
		ne.Cause = ErrSessionInvalidated
	} else {
		ne.Cause = fmt.Errorf("%w: %w", ErrSessionInvalidated, ne.Cause)
	}
	c.InvalidateSession(ctx, ne)
	return ne
}

// InvalidateSession limpa token e usuário e avisa a aplicação.
func (c *Client) InvalidateSession(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := c.sessions.Clear(ctx); err != nil {
		c.log.Error().Err(err).Msg("session store: clear after failed refresh")
	}
	c.log.Warn().Err(cause).Msg("session invalidated, re-authentication required")
	if c.onInvalidated != nil {
		c.onInvalidated(ctx, cause)
	}
}

type refreshPayload struct {
	AccessToken string `json:"accessToken"`
}

type refreshBody struct {
	refreshPayload
	Data json.RawMessage `json:"data"`
}

// parseAccessToken aceita {"data":{"accessToken":...}} e {"accessToken":...}.
func parseAccessToken(body []byte) (string, error) {
	var rb refreshBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if d := bytes.TrimSpace(rb.Data); len(d) > 0 && d[0] == '{' {
		var p refreshPayload
		if err := json.Unmarshal(d, &p); err == nil && p.AccessToken != "" {
			return p.AccessToken, nil
		}
	}
	if rb.AccessToken != "" {
		return rb.AccessToken, nil
	}
	return "", ErrNoAccessToken
}
