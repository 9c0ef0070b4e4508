package httpmsg

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	http2 "golang.org/x/net/http2"

	"replay-proxy/internal/domain"
)

// Transports holds the round-trippers SendAsRequest picks from by protocol hint.
type Transports struct {
	Plain http.RoundTripper
	TLS   http.RoundTripper
}

// NewTransports builds a plain transport and an HTTP/2-capable TLS transport.
// Compression is left to the caller so raw wire bytes reach Unpack untouched.
func NewTransports(insecureTLS bool) Transports {
	plain := newTransport()
	secure := newTransport()
	if insecureTLS {
		secure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	// Falls back to HTTP/1.1 when h2 cannot be configured.
	_ = http2.ConfigureTransport(secure)
	return Transports{Plain: plain, TLS: secure}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}
}

// requestOptions is the whitelist projection used to issue an outbound request.
// Zero fields are treated as unset.
type requestOptions struct {
	Host     string
	Hostname string
	Port     int
	Method   string
	Path     string
	Headers  domain.Header
	Auth     string
}

func (m *Message) requestOptions() requestOptions {
	return requestOptions{
		Host:     m.Host,
		Hostname: m.Hostname,
		Port:     m.Port,
		Method:   m.Method,
		Path:     m.Path,
		Headers:  m.Headers,
		Auth:     m.Auth,
	}
}

func (o requestOptions) url(scheme string) string {
	host := o.Hostname
	if host == "" {
		host = o.Host
	}
	if o.Port > 0 {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = net.JoinHostPort(host, strconv.Itoa(o.Port))
	}
	path := o.Path
	if path == "" {
		path = "/"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + host + path
}

// SendAsRequest issues the message upstream over the transport chosen by Protocol
// and returns the in-flight response. The caller owns the response body.
func (m *Message) SendAsRequest(ctx context.Context, t Transports) (*http.Response, error) {
	opts := m.requestOptions()
	if opts.Host == "" && opts.Hostname == "" {
		return nil, fmt.Errorf("httpmsg: request has no host")
	}
	body, err := m.Pack()
	if err != nil {
		return nil, err
	}
	scheme, rt := "http", t.Plain
	if strings.TrimSuffix(strings.ToLower(m.Protocol), ":") == "https" {
		scheme, rt = "https", t.TLS
	}
	if rt == nil {
		rt = http.DefaultTransport
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, opts.url(scheme), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpmsg: build request: %w", err)
	}
	req.ContentLength = int64(len(body))
	if len(body) == 0 {
		req.Body = http.NoBody
	}
	if opts.Headers != nil {
		req.Header = opts.Headers.HTTP()
		if h := opts.Headers.Get("host"); h != "" {
			req.Host = h
		}
		req.Header.Del("Host")
	}
	removeHopHeaders(req.Header)
	if opts.Auth != "" {
		user, pass, _ := strings.Cut(opts.Auth, ":")
		req.SetBasicAuth(user, pass)
	}
	return rt.RoundTrip(req)
}

func removeHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}
