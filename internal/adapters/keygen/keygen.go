package keygen

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"replay-proxy/internal/usecase"
)

var ErrNoClientRequest = errors.New("keygen: request context has no client request")

// MethodPath derives "METHOD:/path" keys from the client request. Query parameters
// are kept in sorted order so equivalent URLs share a key.
type MethodPath struct {
	// IgnoreQuery drops the query string entirely.
	IgnoreQuery bool
}

var _ usecase.KeyGenerator = MethodPath{}

func (g MethodPath) GenerateKey(ctx context.Context, rc *usecase.RequestContext) (string, error) {
	if rc.ClientRequest == nil {
		return "", ErrNoClientRequest
	}
	d := rc.ClientRequest.Dump()
	path, rawQuery, _ := strings.Cut(d.Path, "?")
	if path == "" {
		path = "/"
	}
	key := strings.ToUpper(d.Method) + ":" + path
	if g.IgnoreQuery || rawQuery == "" {
		return key, nil
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return key + "?" + rawQuery, nil
	}
	// Encode sorts by key.
	return key + "?" + q.Encode(), nil
}
