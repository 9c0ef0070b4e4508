package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"replay-proxy/internal/adapters/codec"
	"replay-proxy/internal/adapters/httpmsg"
	"replay-proxy/internal/domain"
	"replay-proxy/internal/usecase"
)

// handleProxy runs one client request through the record/replay pipeline:
// playback lookup, optional forwarding and recording, response, then classification.
func (d *Deps) handleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := d.logger()
	ep, ok := matchEndpoint(d.Endpoints, r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "NO_ENDPOINT", "Could not open "+r.URL.RequestURI(), nil)
		return
	}
	rc := &usecase.RequestContext{Endpoint: ep, RequestStartTime: time.Now().UTC()}

	clientReq := httpmsg.NewRequest()
	if err := clientReq.ReadIncomingRequest(r); err != nil {
		d.proxyError("read_request")
		if errors.Is(err, httpmsg.ErrBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", err.Error(), map[string]any{"endpoint": ep.Key})
			return
		}
		writeError(w, http.StatusBadRequest, "READ_FAILED", err.Error(), nil)
		return
	}
	if _, err := clientReq.Unpack(); err != nil {
		d.codecError(err)
		writeDomainError(w, err, map[string]any{"endpoint": ep.Key})
		return
	}
	rc.ClientRequest = clientReq

	key, err := d.Keys.GenerateKey(ctx, rc)
	if err != nil || key == "" {
		if err == nil {
			err = usecase.ErrNoRequestKey
		}
		writeDomainError(w, err, map[string]any{"endpoint": ep.Key})
		return
	}
	rc.RequestKey = key

	var out *httpmsg.Message
	entry, hit, err := d.Playback.LookupPlayback(ctx, ep.Key, key)
	if err != nil {
		log.Error().Err(err).Str("endpoint", ep.Key).Msg("playback lookup failed")
	}
	switch {
	case hit:
		out = httpmsg.FromDump(entry.Response)
		rc.PlaybackResponse = out
		rc.FlagReplayed = true
		d.Delay.Sleep()
	case ep.Forward:
		proxyReq, err := buildProxyRequest(clientReq, ep, r.RemoteAddr)
		if err != nil {
			d.proxyError("build_request")
			writeError(w, http.StatusBadGateway, "BAD_TARGET", err.Error(), map[string]any{"endpoint": ep.Key})
			return
		}
		rc.ProxyRequest = proxyReq
		proxyResp, err := d.forward(r, proxyReq)
		if err != nil {
			var codecErr *codec.Error
			if errors.As(err, &codecErr) {
				d.codecError(err)
			} else {
				d.proxyError("upstream")
			}
			log.Warn().Err(err).Str("endpoint", ep.Key).Str("key", key).Msg("forward failed")
			rc.FlagCacheMiss = true
			writeError(w, http.StatusBadGateway, "UPSTREAM_FAILED", err.Error(), map[string]any{"endpoint": ep.Key})
			d.logOutcome(ctx, rc)
			return
		}
		out = proxyResp
		rc.ProxyResponse = proxyResp
		rc.FlagForwarded = true
		if ep.Record {
			if err := d.Playback.PutPlayback(ctx, domain.PlaybackEntry{EndpointKey: ep.Key, RequestKey: key, Response: proxyResp.Dump()}); err != nil {
				log.Error().Err(err).Str("endpoint", ep.Key).Msg("record failed")
			} else {
				rc.FlagRecorded = true
			}
		}
	default:
		rc.FlagCacheMiss = true
	}

	if out == nil {
		writeError(w, http.StatusNotFound, "NO_RESPONSE", "Could not open "+r.URL.RequestURI(), map[string]any{"endpoint": ep.Key, "requestKey": key})
		d.logOutcome(ctx, rc)
		return
	}

	if d.Recorder != nil && d.Recorder.Capture(domain.ScenarioExchange{
		EndpointKey: ep.Key,
		RequestKey:  key,
		Request:     clientReq.Dump(),
		Response:    out.Dump(),
	}) {
		rc.FlagRecorded = true
	}

	rc.ClientResponse = out
	out.HeadOnly = r.Method == http.MethodHead
	if err := out.SendAsResponse(w); err != nil {
		var codecErr *codec.Error
		if errors.As(err, &codecErr) {
			d.codecError(err)
			// nothing written yet
			writeDomainError(w, err, map[string]any{"endpoint": ep.Key})
		} else {
			d.proxyError("respond")
		}
		log.Warn().Err(err).Str("endpoint", ep.Key).Msg("respond failed")
	}
	d.logOutcome(ctx, rc)
}

// forward sends proxyReq upstream and reads the full decoded response.
func (d *Deps) forward(r *http.Request, proxyReq *httpmsg.Message) (*httpmsg.Message, error) {
	resp, err := proxyReq.SendAsRequest(r.Context(), d.Transports)
	if err != nil {
		return nil, err
	}
	proxyResp := httpmsg.NewResponse()
	if err := proxyResp.ReadIncomingResponse(resp); err != nil {
		return nil, err
	}
	if _, err := proxyResp.Unpack(); err != nil {
		return nil, err
	}
	return proxyResp, nil
}

// logOutcome classifies rc. It runs detached from the client's cancellation so a
// disconnect after the response still counts.
func (d *Deps) logOutcome(ctx context.Context, rc *usecase.RequestContext) {
	if err := d.Stats.Log(context.WithoutCancel(ctx), rc); err != nil {
		d.logger().Error().Err(err).Str("endpoint", rc.Endpoint.Key).Msg("stats log failed")
	}
}

func (d *Deps) proxyError(stage string) {
	d.Metrics.ProxyErrorsTotal.WithLabelValues(stage).Inc()
}

func (d *Deps) codecError(err error) {
	var codecErr *codec.Error
	if errors.As(err, &codecErr) {
		d.Metrics.CodecErrorsTotal.WithLabelValues(codecErr.Op).Inc()
	}
}

// matchEndpoint picks the endpoint with the longest prefix that matches path on a
// segment boundary.
func matchEndpoint(eps []domain.Endpoint, path string) (domain.Endpoint, bool) {
	best, found := domain.Endpoint{}, false
	for _, ep := range eps {
		if !prefixMatches(ep.Prefix, path) {
			continue
		}
		if !found || len(ep.Prefix) > len(best.Prefix) {
			best, found = ep, true
		}
	}
	return best, found
}

func prefixMatches(prefix, path string) bool {
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || strings.HasSuffix(prefix, "/") || path[len(prefix)] == '/'
}

// buildProxyRequest rewrites the client request onto the endpoint target. The body
// travels as text and is re-encoded by Pack with the client's content-encoding.
func buildProxyRequest(client *httpmsg.Message, ep domain.Endpoint, remoteAddr string) (*httpmsg.Message, error) {
	target, err := url.Parse(ep.Target)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("endpoint %s has no usable target %q", ep.Key, ep.Target)
	}
	m := httpmsg.NewRequest()
	m.Method = client.Method
	m.Protocol = target.Scheme
	m.Host = target.Host
	m.Hostname = target.Hostname()
	if p := target.Port(); p != "" {
		m.Port, _ = strconv.Atoi(p)
	}
	if target.User != nil {
		m.Auth = target.User.Username()
		if pass, ok := target.User.Password(); ok {
			m.Auth += ":" + pass
		}
	}
	m.Headers = client.Headers.Clone()
	m.Headers.Set("host", target.Host)
	m.Headers.Del("content-length")
	if ip, _, err := net.SplitHostPort(remoteAddr); err == nil {
		m.Headers.Add("x-forwarded-for", ip)
	}

	path, query, _ := strings.Cut(client.Path, "?")
	rest := strings.TrimPrefix(path, strings.TrimSuffix(ep.Prefix, "/"))
	m.Path = joinPath(target.Path, rest)
	switch {
	case target.RawQuery != "" && query != "":
		m.Path += "?" + target.RawQuery + "&" + query
	case target.RawQuery != "":
		m.Path += "?" + target.RawQuery
	case query != "":
		m.Path += "?" + query
	}
	m.SetText(client.Text())
	return m, nil
}

func joinPath(a, b string) string {
	switch {
	case a == "" && b == "":
		return "/"
	case b == "":
		return a
	case a == "":
		if !strings.HasPrefix(b, "/") {
			return "/" + b
		}
		return b
	}
	return strings.TrimSuffix(a, "/") + "/" + strings.TrimPrefix(b, "/")
}
