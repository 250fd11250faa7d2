package client

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultTransport retorna um clone ajustado de http.DefaultTransport.
func DefaultTransport() *http.Transport {
	base, _ := http.DefaultTransport.(*http.Transport)
	if base == nil {
		return &http.Transport{}
	}
	t := base.Clone()

	t.DialContext = (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.TLSHandshakeTimeout = 5 * time.Second
	t.ResponseHeaderTimeout = 15 * time.Second
	t.ExpectContinueTimeout = 1 * time.Second
	t.IdleConnTimeout = 90 * time.Second
	if t.MaxIdleConnsPerHost == 0 {
		t.MaxIdleConnsPerHost = 16
	}
	t.ForceAttemptHTTP2 = true
	return t
}

// newHTTPClient monta o http.Client com cookie jar: o refresh token chega como
// cookie HTTP-only no login e volta sozinho na chamada de refresh.
func newHTTPClient(rt http.RoundTripper) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: rt, Jar: jar}, nil
}

// RoundTripperFunc adapta uma função a http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
