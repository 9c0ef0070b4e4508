package redact

import (
	"encoding/json"
	"strings"
)

// Mask replaces sensitive values.
const Mask = "***"

var sensitiveKeys = []string{"authorization", "proxy-authorization", "cookie", "set-cookie", "x-api-key", "access_token", "id_token", "refresh_token", "session", "apikey", "password"}

// JSON masks sensitive fields in a JSON document best-effort. Input that is not
// JSON is returned unchanged.
func JSON(s string) string {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	redactNode(&v)
	b, err := json.Marshal(v)
	if err != nil {
		return s
	}
	return string(b)
}

// Headers returns a copy of h with the values of sensitive keys masked.
func Headers(h map[string][]string) map[string][]string {
	if h == nil {
		return nil
	}
	out := make(map[string][]string, len(h))
	for k, vs := range h {
		if IsSensitiveKey(k) {
			masked := make([]string, len(vs))
			for i := range masked {
				masked[i] = Mask
			}
			out[k] = masked
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func redactNode(n *any) {
	switch t := (*n).(type) {
	case map[string]any:
		for k, v := range t {
			if IsSensitiveKey(k) {
				t[k] = Mask
				continue
			}
			vv := v
			redactNode(&vv)
			t[k] = vv
		}
	case []any:
		for i := range t {
			vv := t[i]
			redactNode(&vv)
			t[i] = vv
		}
	}
}

func IsSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if k == s {
			return true
		}
	}
	return false
}
