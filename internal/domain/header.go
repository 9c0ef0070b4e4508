package domain

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Header holds HTTP header fields keyed by lower-cased name.
// A field with one value serializes as a JSON string, several values as an array.
type Header map[string][]string

// HeaderFromHTTP folds the canonical keys of h.
func HeaderFromHTTP(h http.Header) Header {
	out := make(Header, len(h))
	for k, v := range h {
		lk := strings.ToLower(k)
		out[lk] = append(out[lk], v...)
	}
	return out
}

// HTTP converts back to a net/http header.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		ck := http.CanonicalHeaderKey(k)
		out[ck] = append(out[ck], v...)
	}
	return out
}

func (h Header) Get(key string) string {
	v := h[strings.ToLower(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (h Header) Values(key string) []string { return h[strings.ToLower(key)] }

func (h Header) Has(key string) bool {
	_, ok := h[strings.ToLower(key)]
	return ok
}

func (h Header) Set(key, value string) { h[strings.ToLower(key)] = []string{value} }

func (h Header) Add(key, value string) {
	lk := strings.ToLower(key)
	h[lk] = append(h[lk], value)
}

func (h Header) Del(key string) { delete(h, strings.ToLower(key)) }

// Clone returns a deep copy; nil stays nil.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (h Header) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(h))
	for k, v := range h {
		if len(v) == 1 {
			m[k] = v[0]
		} else {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func (h *Header) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := make(Header, len(m))
	for k, raw := range m {
		lk := strings.ToLower(k)
		var one string
		if err := json.Unmarshal(raw, &one); err == nil {
			out[lk] = append(out[lk], one)
			continue
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return err
		}
		out[lk] = append(out[lk], many...)
	}
	*h = out
	return nil
}
