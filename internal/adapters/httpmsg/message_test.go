package httpmsg

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"replay-proxy/internal/adapters/codec"
	"replay-proxy/internal/domain"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	const text = "The quick brown fox jumps over the lazy dog"
	for _, enc := range []string{"gzip", "deflate"} {
		out := NewResponse()
		out.Headers.Set("content-encoding", enc)
		out.SetText(text)
		packed, err := out.Pack()
		if err != nil {
			t.Fatalf("%s pack: %v", enc, err)
		}
		if string(packed) == text {
			t.Fatalf("%s: body was not compressed", enc)
		}

		in := NewResponse()
		in.Headers.Set("content-encoding", enc)
		in.SetBody(Raw, packed)
		got, err := in.Unpack()
		if err != nil {
			t.Fatalf("%s unpack: %v", enc, err)
		}
		if got != text || in.Text() != text || string(in.Body(Buffer)) != text {
			t.Fatalf("%s: got %q", enc, got)
		}
	}
}

func TestUnpackIdentityStringifiesRaw(t *testing.T) {
	m := NewRequest()
	m.SetBody(Raw, []byte("plain body"))
	got, err := m.Unpack()
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if got != "plain body" || string(m.Body(Buffer)) != "plain body" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestUnpackTruncatedIsCodecError(t *testing.T) {
	src := NewResponse()
	src.Headers.Set("content-encoding", "gzip")
	src.SetText(strings.Repeat("payload ", 100))
	packed, _ := src.Pack()

	m := NewResponse()
	m.Headers.Set("content-encoding", "gzip")
	m.SetBody(Raw, packed[:len(packed)-10])
	_, err := m.Unpack()
	var cerr *codec.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected codec error, got %v", err)
	}
}

func TestContentEncodingCached(t *testing.T) {
	m := NewResponse()
	m.Headers.Set("content-encoding", "gzip")
	if m.ContentEncoding() != codec.Gzip {
		t.Fatalf("expected gzip")
	}
	m.Headers.Set("content-encoding", "br")
	if m.ContentEncoding() != codec.Gzip {
		t.Fatalf("encoding should be computed once")
	}
	other := NewResponse()
	other.Headers.Set("content-encoding", "br")
	if other.ContentEncoding() != codec.Identity {
		t.Fatalf("unknown encodings are pass-through")
	}
}

func TestSendAsResponseCorrectsContentLength(t *testing.T) {
	for _, declared := range []string{"1", "9999", "abc"} {
		m := NewResponse()
		m.StatusCode = http.StatusCreated
		m.Headers.Set("content-length", declared)
		m.Headers.Set("x-test", "yes")
		m.SetText("hello world")

		rec := httptest.NewRecorder()
		if err := m.SendAsResponse(rec); err != nil {
			t.Fatalf("send: %v", err)
		}
		if rec.Code != http.StatusCreated {
			t.Fatalf("status %d", rec.Code)
		}
		if rec.Body.String() != "hello world" {
			t.Fatalf("body must be untouched, got %q", rec.Body.String())
		}
		if got := rec.Header().Get("Content-Length"); got != "11" {
			t.Fatalf("declared %s: content-length %q", declared, got)
		}
		if rec.Header().Get("X-Test") != "yes" {
			t.Fatalf("headers not written")
		}
	}
}

func TestSendAsResponseGzip(t *testing.T) {
	m := NewResponse()
	m.StatusCode = 200
	m.Headers.Set("content-encoding", "gzip")
	m.Headers.Set("content-length", "5")
	m.SetText(`{"ok":true}`)
	rec := httptest.NewRecorder()
	if err := m.SendAsResponse(rec); err != nil {
		t.Fatalf("send: %v", err)
	}
	if rec.Header().Get("Content-Length") != strconv.Itoa(rec.Body.Len()) {
		t.Fatalf("content-length %s vs body %d", rec.Header().Get("Content-Length"), rec.Body.Len())
	}
	out, err := codec.Decompress(codec.Gzip, rec.Body.Bytes())
	if err != nil || string(out) != `{"ok":true}` {
		t.Fatalf("unexpected body: %q err=%v", out, err)
	}
}

func TestDumpProjections(t *testing.T) {
	req := NewRequest()
	req.Method = "POST"
	req.Host = "api.local"
	req.Port = 8080
	req.Path = "/x?y=1"
	req.StatusCode = 500 // ignored for requests
	req.Headers.Set("accept", "*/*")
	req.SetText("body")
	d := req.Dump()
	if d.Type != domain.MessageRequest || d.Method != "POST" || d.Port != 8080 || d.Path != "/x?y=1" || d.Body != "body" {
		t.Fatalf("unexpected request dump: %+v", d)
	}
	if d.StatusCode != 0 {
		t.Fatalf("request dump leaked response field")
	}

	resp := NewResponse()
	resp.StatusCode = 404
	resp.StatusMessage = "Not Found"
	resp.Method = "GET" // ignored for responses
	resp.SetBody(Raw, []byte("raw only"))
	rd := resp.Dump()
	if rd.Type != domain.MessageResponse || rd.StatusCode != 404 || rd.StatusMessage != "Not Found" || rd.Method != "" {
		t.Fatalf("unexpected response dump: %+v", rd)
	}
	if rd.Body != "" {
		t.Fatalf("dump must expose text, never raw: %q", rd.Body)
	}
}

func TestReadIncomingRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "http://proxy.local/a/b?c=d", strings.NewReader("payload"))
	r.Header.Set("X-Trace", "1")
	m := NewRequest()
	if err := m.ReadIncomingRequest(r); err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Method != http.MethodPut || m.Path != "/a/b?c=d" {
		t.Fatalf("unexpected line: %s %s", m.Method, m.Path)
	}
	if m.Headers.Get("x-trace") != "1" || m.Headers.Get("host") != "proxy.local" {
		t.Fatalf("unexpected headers: %#v", m.Headers)
	}
	if string(m.Body(Raw)) != "payload" || m.Text() != "" {
		t.Fatalf("raw must be set, text must wait for unpack")
	}
}

func TestSendAsRequest(t *testing.T) {
	var gotPath, gotBody, gotAuth, gotHost string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass
		gotHost = r.Host
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("done"))
	}))
	defer upstream.Close()
	u, _ := url.Parse(upstream.URL)
	port, _ := strconv.Atoi(u.Port())

	m := NewRequest()
	m.Hostname = u.Hostname()
	m.Port = port
	m.Method = http.MethodPost
	m.Path = "/echo?q=1"
	m.Auth = "alice:secret"
	m.Headers.Set("connection", "keep-alive")
	m.SetText("ping")

	resp, err := m.SendAsRequest(context.Background(), NewTransports(false))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	in := NewResponse()
	if err := in.ReadIncomingResponse(resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if _, err := in.Unpack(); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if in.StatusCode != http.StatusAccepted || in.StatusMessage != "Accepted" || in.Text() != "done" {
		t.Fatalf("unexpected response: %d %q %q", in.StatusCode, in.StatusMessage, in.Text())
	}
	if gotPath != "/echo?q=1" || gotBody != "ping" || gotAuth != "alice:secret" || gotHost != u.Host {
		t.Fatalf("upstream saw path=%q body=%q auth=%q host=%q", gotPath, gotBody, gotAuth, gotHost)
	}
}

func TestSendAsRequestWithoutHost(t *testing.T) {
	if _, err := NewRequest().SendAsRequest(context.Background(), NewTransports(false)); err == nil {
		t.Fatalf("expected error for missing host")
	}
}

func TestFromDump(t *testing.T) {
	d := domain.MessageDump{Type: domain.MessageResponse, StatusCode: 200, Headers: domain.Header{"content-encoding": {"gzip"}}, Body: "replayed"}
	m := FromDump(d)
	packed, err := m.Pack()
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	out, _ := codec.Decompress(codec.Gzip, packed)
	if string(out) != "replayed" {
		t.Fatalf("unexpected: %q", out)
	}
	m.Headers.Set("x", "y")
	if d.Headers.Has("x") {
		t.Fatalf("FromDump must not alias dump headers")
	}
}

func TestReadFullBodyRejectsOversized(t *testing.T) {
	prev := MaxBodyBytes
	MaxBodyBytes = 10
	t.Cleanup(func() { MaxBodyBytes = prev })

	_, err := ReadFullBody(io.NopCloser(strings.NewReader(strings.Repeat("a", 100))))
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	b, err := ReadFullBody(io.NopCloser(strings.NewReader(strings.Repeat("a", 10))))
	if err != nil || len(b) != 10 {
		t.Fatalf("body at the limit: len=%d err=%v", len(b), err)
	}
	MaxBodyBytes = 0
	b, err = ReadFullBody(io.NopCloser(strings.NewReader(strings.Repeat("a", 100))))
	if err != nil || len(b) != 100 {
		t.Fatalf("unlimited: len=%d err=%v", len(b), err)
	}
}

func TestUnpackEmptyEncodedBody(t *testing.T) {
	for _, enc := range []string{"gzip", "deflate"} {
		m := NewResponse()
		m.StatusCode = http.StatusNoContent
		m.Headers.Set("content-encoding", enc)
		m.SetBody(Raw, []byte{})
		text, err := m.Unpack()
		if err != nil || text != "" {
			t.Fatalf("%s: text=%q err=%v", enc, text, err)
		}
	}
}

func TestSendAsResponseBodiless(t *testing.T) {
	head := FromDump(domain.MessageDump{
		Type:       domain.MessageResponse,
		StatusCode: http.StatusOK,
		Headers:    domain.Header{"content-encoding": {"gzip"}, "content-length": {"1234"}},
	})
	if head.Headers.Get("content-length") != "1234" {
		t.Fatalf("FromDump must keep the captured content-length")
	}
	head.HeadOnly = true
	rec := httptest.NewRecorder()
	if err := head.SendAsResponse(rec); err != nil {
		t.Fatalf("head: %v", err)
	}
	if rec.Header().Get("Content-Length") != "1234" || rec.Body.Len() != 0 {
		t.Fatalf("head response: length %q body %d", rec.Header().Get("Content-Length"), rec.Body.Len())
	}

	noContent := NewResponse()
	noContent.StatusCode = http.StatusNotModified
	noContent.Headers.Set("content-encoding", "gzip")
	rec = httptest.NewRecorder()
	if err := noContent.SendAsResponse(rec); err != nil {
		t.Fatalf("304: %v", err)
	}
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 || noContent.Body(Buffer) != nil {
		t.Fatalf("304 must not be packed: code=%d body=%d", rec.Code, rec.Body.Len())
	}
}
