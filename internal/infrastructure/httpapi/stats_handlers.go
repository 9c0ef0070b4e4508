package httpapi

import (
	"net/http"

	"replay-proxy/internal/domain"
)

// handleStats serves the aggregate on GET and clears it on DELETE.
func (d *Deps) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/stats/" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Could not open "+r.URL.RequestURI(), nil)
		return
	}
	switch r.Method {
	case http.MethodGet:
		stats, err := d.Stats.Dump(r.Context())
		if err != nil {
			writeDomainError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	case http.MethodDelete:
		if err := d.Stats.Clear(r.Context()); err != nil {
			writeDomainError(w, err, nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (d *Deps) handleOutcomeEnum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, domain.Buckets)
}
