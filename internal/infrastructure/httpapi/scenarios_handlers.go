package httpapi

import (
	"errors"
	"net/http"

	"replay-proxy/internal/domain"
)

// Recording control keeps a plain-text wire format: 200 "Started recording",
// 409 with the conflict message.
func (d *Deps) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	title := r.URL.Query().Get("title")
	if err := d.Recorder.StartRecording(r.Context(), title); err != nil {
		writeConflict(w, err)
		return
	}
	d.Metrics.RecordingActive.Set(1)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Started recording"))
}

// handleFinishRecording closes the session and returns the scenario. With save=true
// its responses become playback candidates.
func (d *Deps) handleFinishRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	outputDir := ""
	if d.Cfg.WriteScenarios && d.Cfg.ScenarioOutputDir != "" {
		outputDir = d.Cfg.ScenarioOutputDir
	}
	sc, err := d.Recorder.FinishRecording(r.Context(), outputDir)
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		writeConflict(w, err)
		return
	}
	d.Metrics.RecordingActive.Set(0)
	if err != nil {
		// session is closed, only persisting failed
		d.logger().Error().Err(err).Str("scenario", sc.ID).Msg("scenario not written")
		writeError(w, http.StatusInternalServerError, "SCENARIO_WRITE_FAILED", err.Error(), map[string]any{"id": sc.ID})
		return
	}
	if r.URL.Query().Get("save") == "true" {
		for _, e := range sc.Player() {
			if err := d.Playback.PutPlayback(r.Context(), e); err != nil {
				writeDomainError(w, err, map[string]any{"id": sc.ID})
				return
			}
		}
		d.logger().Info().Str("scenario", sc.ID).Int("entries", len(sc.Player())).Msg("scenario registered for playback")
	}
	writeJSON(w, http.StatusOK, sc)
}

func (d *Deps) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	active, title := d.Recorder.Recording()
	writeJSON(w, http.StatusOK, map[string]any{"recording": active, "title": title})
}

func writeConflict(w http.ResponseWriter, err error) {
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		writeDomainError(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusConflict)
	_, _ = w.Write([]byte(conflict.Message))
}
