package httpapi

import (
	"net/http"
	"sort"
	"time"

	"replay-proxy/internal/domain"
	obs "replay-proxy/internal/infrastructure/observability"
	"replay-proxy/pkg/shared/redact"
)

// Minimal HAR 1.2 structs for export
type harLog struct {
	Version string     `json:"version"`
	Creator harName    `json:"creator"`
	Entries []harEntry `json:"entries"`
}
type harName struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
type harEntry struct {
	StartedDateTime time.Time   `json:"startedDateTime"`
	Time            int64       `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
	Comment         string      `json:"comment,omitempty"`
}
type harHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
type harRequest struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []harHeader `json:"headers"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}
type harResponse struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []harHeader `json:"headers"`
	Content     harContent  `json:"content"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}
type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

// buildHAR exports one entry per outcome record that has a client request, oldest
// first. With mask set, credentials in headers and JSON bodies are replaced.
func buildHAR(stats domain.Stats, mask bool) harLog {
	records := make([]domain.OutcomeRecord, 0, len(stats.Responses))
	for _, rec := range stats.Responses {
		if rec.ClientRequest != nil {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })

	entries := make([]harEntry, 0, len(records))
	for _, rec := range records {
		if mask {
			rec = maskRecord(rec)
		}
		req := rec.ClientRequest
		e := harEntry{
			StartedDateTime: rec.Timestamp,
			Time:            -1,
			Request: harRequest{
				Method:      req.Method,
				URL:         harURL(req),
				HTTPVersion: "HTTP/1.1",
				Headers:     harHeaders(req.Headers),
				HeadersSize: -1,
				BodySize:    len(req.Body),
			},
			Comment: rec.Endpoint.Key + " " + rec.RequestKey,
		}
		if resp := servedResponse(rec); resp != nil {
			e.Response = harResponse{
				Status:      resp.StatusCode,
				StatusText:  resp.StatusMessage,
				HTTPVersion: "HTTP/1.1",
				Headers:     harHeaders(resp.Headers),
				Content:     harContent{Size: len(resp.Body), MimeType: resp.Headers.Get("content-type"), Text: resp.Body},
				HeadersSize: -1,
				BodySize:    len(resp.Body),
			}
		} else {
			e.Response = harResponse{Status: 0, HTTPVersion: "HTTP/1.1", Headers: []harHeader{}, HeadersSize: -1, BodySize: -1}
		}
		entries = append(entries, e)
	}
	return harLog{Version: "1.2", Creator: harName{Name: "replay-proxy", Version: obs.Version}, Entries: entries}
}

func maskRecord(rec domain.OutcomeRecord) domain.OutcomeRecord {
	rec = rec.Clone()
	for _, m := range []*domain.MessageDump{rec.ClientRequest, rec.ClientResponse, rec.PlaybackResponse, rec.ProxyResponse} {
		if m == nil {
			continue
		}
		m.Headers = redact.Headers(m.Headers)
		m.Body = redact.JSON(m.Body)
	}
	return rec
}

// servedResponse prefers what the client actually got, then playback over upstream.
func servedResponse(rec domain.OutcomeRecord) *domain.MessageDump {
	switch {
	case rec.ClientResponse != nil:
		return rec.ClientResponse
	case rec.PlaybackResponse != nil:
		return rec.PlaybackResponse
	default:
		return rec.ProxyResponse
	}
}

func harURL(d *domain.MessageDump) string {
	host := d.Headers.Get("host")
	if host == "" {
		host = d.Host
	}
	if host == "" {
		return d.Path
	}
	return "http://" + host + d.Path
}

func harHeaders(h domain.Header) []harHeader {
	out := make([]harHeader, 0, len(h))
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			out = append(out, harHeader{Name: k, Value: v})
		}
	}
	return out
}

func (d *Deps) handleStatsHAR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	stats, err := d.Stats.Dump(r.Context())
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	har := struct {
		Log harLog `json:"log"`
	}{Log: buildHAR(stats, r.URL.Query().Get("redact") != "false")}
	w.Header().Set("Content-Disposition", "attachment; filename=replay_proxy_"+time.Now().UTC().Format("20060102T150405")+".har")
	writeJSON(w, http.StatusOK, har)
}
