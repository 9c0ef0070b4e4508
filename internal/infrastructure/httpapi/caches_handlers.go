package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"replay-proxy/internal/domain"
)

const (
	packageSchemaURL = "mem://replay-proxy/cache-package.json"
	packageSchema    = `{
  "type": "object",
  "properties": {
    "requestKeys": {"type": "array", "items": {"type": "string"}},
    "endpoints":   {"type": "array", "items": {"type": "string"}}
  },
  "additionalProperties": false
}`
	entriesSchemaURL = "mem://replay-proxy/cache-entries.json"
	entriesSchema    = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["endpointKey", "requestKey", "response"],
    "properties": {
      "endpointKey": {"type": "string", "minLength": 1},
      "requestKey":  {"type": "string", "minLength": 1},
      "response": {
        "type": "object",
        "properties": {
          "statusCode": {"type": "integer", "minimum": 100, "maximum": 599},
          "body": {"type": "string"}
        }
      }
    }
  }
}`
)

var (
	packageBodySchema = mustCompileSchema(packageSchemaURL, packageSchema)
	entriesBodySchema = mustCompileSchema(entriesSchemaURL, entriesSchema)
)

func mustCompileSchema(url, doc string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(doc)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(url)
}

// packageRequest selects a subset of the playback registry; empty selects all.
type packageRequest struct {
	RequestKeys []string `json:"requestKeys"`
	Endpoints   []string `json:"endpoints"`
}

// decodeValidated checks raw against schema and then decodes it into v.
func decodeValidated(schema *jsonschema.Schema, raw []byte, v any) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return &domain.MalformedInputError{Message: "Request body could not be parsed, is it a valid JSON string?", Err: err}
	}
	if err := schema.Validate(payload); err != nil {
		return &domain.MalformedInputError{Message: "request body does not match the expected shape", Err: err}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &domain.MalformedInputError{Message: "request body could not be decoded", Err: err}
	}
	return nil
}

func readAdminBody(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		return nil, &domain.MalformedInputError{Message: "request body could not be read", Err: err}
	}
	return bytes.TrimSpace(raw), nil
}

// handleCaches exports the playback registry (GET), merges entries into it (POST)
// or replaces it (PUT).
func (d *Deps) handleCaches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := d.Playback.ListPlayback(r.Context())
		if err != nil {
			writeDomainError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost, http.MethodPut:
		raw, err := readAdminBody(r)
		if err != nil {
			writeDomainError(w, err, nil)
			return
		}
		var entries []domain.PlaybackEntry
		if err := decodeValidated(entriesBodySchema, raw, &entries); err != nil {
			writeDomainError(w, err, nil)
			return
		}
		if r.Method == http.MethodPut {
			if err := d.Playback.ClearPlayback(r.Context()); err != nil {
				writeDomainError(w, err, nil)
				return
			}
		}
		for _, e := range entries {
			e.Response.Type = domain.MessageResponse
			if err := d.Playback.PutPlayback(r.Context(), e); err != nil {
				writeDomainError(w, err, nil)
				return
			}
		}
		d.logger().Info().Str("method", r.Method).Int("entries", len(entries)).Msg("playback registry updated")
		writeJSON(w, http.StatusOK, map[string]int{"imported": len(entries)})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut)
	}
}

// handleCachePackage exports the selected part of the playback registry. An empty
// body selects everything; an unparsable one is a 400.
func (d *Deps) handleCachePackage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	raw, err := readAdminBody(r)
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	var sel packageRequest
	if len(raw) > 0 {
		if err := decodeValidated(packageBodySchema, raw, &sel); err != nil {
			writeDomainError(w, err, nil)
			return
		}
	}
	entries, err := d.Playback.ListPlayback(r.Context())
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, selectEntries(entries, sel))
}

func selectEntries(entries []domain.PlaybackEntry, sel packageRequest) []domain.PlaybackEntry {
	keys := toSet(sel.RequestKeys)
	eps := toSet(sel.Endpoints)
	out := make([]domain.PlaybackEntry, 0, len(entries))
	for _, e := range entries {
		if keys != nil && !keys[e.RequestKey] {
			continue
		}
		if eps != nil && !eps[e.EndpointKey] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// toSet returns nil for a nil slice so that "absent" and "empty" differ.
func toSet(xs []string) map[string]bool {
	if xs == nil {
		return nil
	}
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
