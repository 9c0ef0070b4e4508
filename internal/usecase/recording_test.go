package usecase_test

import (
	"context"
	"errors"
	"testing"

	"replay-proxy/internal/adapters/storage/memory"
	"replay-proxy/internal/domain"
	"replay-proxy/internal/usecase"
)

type fakeWriter struct {
	dir string
	sc  domain.Scenario
	err error
}

func (w *fakeWriter) WriteScenario(ctx context.Context, dir string, sc domain.Scenario) (string, error) {
	w.dir, w.sc = dir, sc
	if w.err != nil {
		return "", w.err
	}
	return dir + "/out.json", nil
}

func TestRecordingMutualExclusion(t *testing.T) {
	ctx := context.Background()
	r := usecase.NewScenarioRecorder(memory.NewStore(), nil, nil)

	var conflict *domain.ConflictError
	if _, err := r.FinishRecording(ctx, ""); !errors.As(err, &conflict) {
		t.Fatalf("finish while idle: expected conflict, got %v", err)
	}
	if err := r.StartRecording(ctx, "first"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.StartRecording(ctx, "second"); !errors.As(err, &conflict) {
		t.Fatalf("second start: expected conflict, got %v", err)
	}
	if active, title := r.Recording(); !active || title != "first" {
		t.Fatalf("unexpected state %v %q", active, title)
	}
	sc, err := r.FinishRecording(ctx, "")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sc.Title != "first" || sc.ID == "" || sc.Exchanges == nil {
		t.Fatalf("unexpected scenario: %+v", sc)
	}
	if _, err := r.FinishRecording(ctx, ""); !errors.As(err, &conflict) {
		t.Fatalf("double finish: expected conflict, got %v", err)
	}
	if err := r.StartRecording(ctx, ""); err != nil {
		t.Fatalf("restart after finish: %v", err)
	}
}

func TestRecordingCapturesOnlyWhileActive(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	r := usecase.NewScenarioRecorder(memory.NewStore(), w, nil)
	if r.Capture(domain.ScenarioExchange{RequestKey: "before"}) {
		t.Fatalf("capture while idle must be dropped")
	}
	_ = r.StartRecording(ctx, "flow")
	r.Capture(domain.ScenarioExchange{EndpointKey: "svc", RequestKey: "GET:/a"})
	r.Capture(domain.ScenarioExchange{EndpointKey: "svc", RequestKey: "GET:/b"})
	sc, err := r.FinishRecording(ctx, "/tmp/scenarios")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(sc.Exchanges) != 2 || sc.Exchanges[0].RecordedAt.IsZero() {
		t.Fatalf("unexpected exchanges: %+v", sc.Exchanges)
	}
	if w.dir != "/tmp/scenarios" || sc.File != "/tmp/scenarios/out.json" || w.sc.ID != sc.ID {
		t.Fatalf("writer not used: %+v", w)
	}
	if r.Capture(domain.ScenarioExchange{RequestKey: "after"}) {
		t.Fatalf("capture after finish must be dropped")
	}
}

func TestRecordingWriteFailureClosesSession(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	r := usecase.NewScenarioRecorder(memory.NewStore(), &fakeWriter{err: boom}, nil)
	_ = r.StartRecording(ctx, "x")
	sc, err := r.FinishRecording(ctx, "/nowhere")
	if !errors.Is(err, boom) || sc.ID == "" {
		t.Fatalf("expected write error with scenario, got %v %+v", err, sc)
	}
	if active, _ := r.Recording(); active {
		t.Fatalf("session must be closed after a write failure")
	}
}
