package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"replay-proxy/internal/domain"
)

const (
	errAlreadyRecording = "Recording is already active"
	errNotRecording     = "Recording is not active"
)

// ScenarioRecorder is the single-slot recording session gate. At most one session
// is active per recorder; the process owns one recorder.
type ScenarioRecorder struct {
	mu        sync.Mutex
	active    bool
	id        string
	title     string
	startedAt time.Time

	capture CaptureRepository
	writer  ScenarioWriter
	logger  zerolog.Logger
	now     func() time.Time
}

func NewScenarioRecorder(capture CaptureRepository, writer ScenarioWriter, logger *zerolog.Logger) *ScenarioRecorder {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "recorder").Logger()
	}
	return &ScenarioRecorder{capture: capture, writer: writer, logger: l, now: time.Now}
}

// StartRecording opens a session. It fails with *domain.ConflictError while one is active.
func (r *ScenarioRecorder) StartRecording(ctx context.Context, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return &domain.ConflictError{Message: errAlreadyRecording}
	}
	r.active = true
	r.id = uuid.New().String()
	r.title = title
	r.startedAt = r.now().UTC()
	n := r.capture.StartCapture()
	r.logger.Info().Str("scenario", r.id).Str("title", title).Int("capture", n).Msg("recording started")
	return nil
}

// FinishRecording closes the session and returns the finalized scenario. When
// outputDir is set the scenario is also persisted; a write failure is returned
// together with the scenario, the session is closed either way.
func (r *ScenarioRecorder) FinishRecording(ctx context.Context, outputDir string) (domain.Scenario, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return domain.Scenario{}, &domain.ConflictError{Message: errNotRecording}
	}
	exchanges := r.capture.StopCapture()
	sc := domain.Scenario{
		ID:         r.id,
		Title:      r.title,
		StartedAt:  r.startedAt,
		FinishedAt: r.now().UTC(),
		Exchanges:  exchanges,
	}
	if sc.Exchanges == nil {
		sc.Exchanges = []domain.ScenarioExchange{}
	}
	r.active = false
	r.id, r.title = "", ""
	r.mu.Unlock()

	r.logger.Info().Str("scenario", sc.ID).Int("exchanges", len(sc.Exchanges)).Msg("recording finished")
	if outputDir == "" || r.writer == nil {
		return sc, nil
	}
	file, err := r.writer.WriteScenario(ctx, outputDir, sc)
	if err != nil {
		return sc, fmt.Errorf("recorder: write scenario: %w", err)
	}
	sc.File = file
	return sc, nil
}

// Capture appends ex to the active session; it reports false when idle.
func (r *ScenarioRecorder) Capture(ex domain.ScenarioExchange) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return false
	}
	if ex.RecordedAt.IsZero() {
		ex.RecordedAt = r.now().UTC()
	}
	return r.capture.AppendCapture(ex)
}

// Recording reports whether a session is active and its title.
func (r *ScenarioRecorder) Recording() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.title
}
