package httpmsg

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"replay-proxy/internal/adapters/codec"
	"replay-proxy/internal/domain"
)

// Representation selects one of the body forms a Message carries.
type Representation int

const (
	// Raw is the exact wire bytes as received.
	Raw Representation = iota
	// Buffer is the body after decompression (or before compression on the way out).
	Buffer
	// Text is the decoded string form.
	Text
)

// MaxBodyBytes bounds ReadFullBody. <= 0 disables the limit.
var MaxBodyBytes int64 = 64 << 20

// ErrBodyTooLarge is returned by ReadFullBody when a body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("httpmsg: body exceeds limit")

// Message is a request or response flowing through the proxy. The raw body is
// set from the wire first; buffer and text are derived through Pack and Unpack.
type Message struct {
	Type domain.MessageType

	// request side
	Method   string
	Host     string
	Hostname string
	Port     int
	Path     string
	Protocol string // "http" or "https"
	Auth     string // "user:password"

	// response side
	StatusCode    int
	StatusMessage string

	Headers domain.Header

	// HeadOnly marks a response to a HEAD request: headers are written as captured
	// and the body is neither packed nor sent.
	HeadOnly bool

	raw    []byte
	buffer []byte
	text   string

	encoding    codec.Encoding
	encodingSet bool
}

func NewRequest() *Message {
	return &Message{Type: domain.MessageRequest, Headers: domain.Header{}}
}

func NewResponse() *Message {
	return &Message{Type: domain.MessageResponse, Headers: domain.Header{}}
}

// FromDump rehydrates a captured projection, e.g. a playback response.
// The body is restored as text; Pack re-applies the declared encoding.
func FromDump(d domain.MessageDump) *Message {
	m := &Message{
		Type:          d.Type,
		Method:        d.Method,
		Host:          d.Host,
		Port:          d.Port,
		Path:          d.Path,
		StatusCode:    d.StatusCode,
		StatusMessage: d.StatusMessage,
		Headers:       d.Headers.Clone(),
		text:          d.Body,
	}
	if m.Headers == nil {
		m.Headers = domain.Header{}
	}
	return m
}

// Body returns the requested representation. Text is returned as bytes.
func (m *Message) Body(repr Representation) []byte {
	switch repr {
	case Raw:
		return m.raw
	case Buffer:
		return m.buffer
	default:
		return []byte(m.text)
	}
}

// SetBody stores b as the requested representation without touching the others.
func (m *Message) SetBody(repr Representation, b []byte) {
	switch repr {
	case Raw:
		m.raw = b
	case Buffer:
		m.buffer = b
	default:
		m.text = string(b)
	}
}

func (m *Message) Text() string { return m.text }

func (m *Message) SetText(s string) { m.text = s }

// ContentEncoding inspects the content-encoding header once and caches the result.
func (m *Message) ContentEncoding() codec.Encoding {
	if m.encodingSet {
		return m.encoding
	}
	var v string
	if m.Headers != nil {
		v = strings.Join(m.Headers.Values("content-encoding"), ",")
	}
	m.encoding = codec.Detect(v)
	m.encodingSet = true
	return m.encoding
}

// Pack makes sure a buffer body exists, compresses it when an encoding is active and
// returns the result, which also replaces the buffer. Pack is not idempotent under an
// active encoding: each call compresses the current buffer again.
func (m *Message) Pack() ([]byte, error) {
	enc := m.ContentEncoding()
	if m.buffer == nil {
		m.buffer = []byte(m.text)
	}
	if !enc.Active() {
		return m.buffer, nil
	}
	out, err := codec.Compress(enc, m.buffer)
	if err != nil {
		return nil, err
	}
	m.buffer = out
	return m.buffer, nil
}

// Unpack decodes the raw body into buffer and text and returns the text.
func (m *Message) Unpack() (string, error) {
	if len(m.raw) == 0 {
		// HEAD, 204 and 304 carry no body even when they declare an encoding.
		m.buffer = []byte{}
		m.text = ""
		return m.text, nil
	}
	out, err := codec.Decompress(m.ContentEncoding(), m.raw)
	if err != nil {
		return "", err
	}
	m.buffer = out
	m.text = string(out)
	return m.text, nil
}

// ReadIncomingRequest copies the request line and headers of r and drains its body into raw.
func (m *Message) ReadIncomingRequest(r *http.Request) error {
	m.Path = r.URL.RequestURI()
	m.Method = r.Method
	m.Headers = domain.HeaderFromHTTP(r.Header)
	// net/http lifts Host out of the header map.
	if r.Host != "" {
		m.Headers.Set("host", r.Host)
	}
	body, err := ReadFullBody(r.Body)
	if err != nil {
		return err
	}
	m.raw = body
	return nil
}

// ReadIncomingResponse copies the status and headers of resp and drains its body into raw.
func (m *Message) ReadIncomingResponse(resp *http.Response) error {
	m.StatusCode = resp.StatusCode
	m.StatusMessage = statusMessage(resp)
	m.Headers = domain.HeaderFromHTTP(resp.Header)
	body, err := ReadFullBody(resp.Body)
	if err != nil {
		return err
	}
	m.raw = body
	return nil
}

// ReadFullBody drains and closes rc. A body longer than MaxBodyBytes is an
// ErrBodyTooLarge error, never a truncated result.
func ReadFullBody(rc io.ReadCloser) ([]byte, error) {
	if rc == nil || rc == http.NoBody {
		return []byte{}, nil
	}
	defer rc.Close()
	limit := MaxBodyBytes
	if limit <= 0 {
		return io.ReadAll(rc)
	}
	b, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return b, nil
}

// SendAsResponse packs the body, corrects a stale content-length header and writes
// headers and body to w. Bodiless responses (HEAD, 1xx, 204, 304) keep their headers
// untouched and skip packing.
func (m *Message) SendAsResponse(w http.ResponseWriter) error {
	if m.Headers == nil {
		m.Headers = domain.Header{}
	}
	status := m.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	bodiless := m.HeadOnly || !bodyAllowed(status)
	var body []byte
	if !bodiless {
		var err error
		if body, err = m.Pack(); err != nil {
			return err
		}
		if m.Headers.Has("content-length") {
			declared, perr := strconv.Atoi(strings.TrimSpace(m.Headers.Get("content-length")))
			if perr != nil || declared != len(body) {
				m.Headers.Set("content-length", strconv.Itoa(len(body)))
			}
		}
	}
	h := w.Header()
	for k, vs := range m.Headers {
		if isHopHeader(k) {
			continue
		}
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	w.WriteHeader(status)
	if bodiless {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// Dump returns the fixed external projection for the message type.
func (m *Message) Dump() domain.MessageDump {
	if m.Type == domain.MessageResponse {
		return dumpResponse(m)
	}
	return dumpRequest(m)
}

func dumpRequest(m *Message) domain.MessageDump {
	return domain.MessageDump{
		Type:    domain.MessageRequest,
		Method:  m.Method,
		Host:    m.Host,
		Port:    m.Port,
		Path:    m.Path,
		Headers: m.Headers.Clone(),
		Body:    m.text,
	}
}

func dumpResponse(m *Message) domain.MessageDump {
	return domain.MessageDump{
		Type:          domain.MessageResponse,
		StatusCode:    m.StatusCode,
		StatusMessage: m.StatusMessage,
		Headers:       m.Headers.Clone(),
		Body:          m.text,
	}
}

func statusMessage(resp *http.Response) string {
	s := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if s == "" {
		s = http.StatusText(resp.StatusCode)
	}
	return s
}

var hopHeaders = []string{"connection", "proxy-connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailer", "transfer-encoding", "upgrade"}

func isHopHeader(k string) bool {
	k = strings.ToLower(k)
	for _, h := range hopHeaders {
		if k == h {
			return true
		}
	}
	return false
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
