package usecase

import (
	"context"

	"replay-proxy/internal/domain"
)

// StatsMutation is everything one classification changes, applied atomically.
type StatsMutation struct {
	Hash        string
	EndpointKey string
	// Record is stored only if no record exists yet for Hash.
	Record  domain.OutcomeRecord
	Buckets []domain.Bucket
	// Story is appended with its ID assigned by the repository.
	Story domain.StoryEntry
}

type StatsRepository interface {
	// ApplyOutcome applies m and returns the delta it produced.
	ApplyOutcome(ctx context.Context, m StatsMutation) (domain.Stats, error)
	SnapshotStats(ctx context.Context) (domain.Stats, error)
	ClearStats(ctx context.Context) error
}

// CaptureRepository buffers exchanges of the active recording session.
type CaptureRepository interface {
	StartCapture() int
	AppendCapture(ex domain.ScenarioExchange) bool
	StopCapture() []domain.ScenarioExchange
	RecordingState() (bool, int)
}

type PlaybackRepository interface {
	PutPlayback(ctx context.Context, e domain.PlaybackEntry) error
	LookupPlayback(ctx context.Context, endpointKey, requestKey string) (domain.PlaybackEntry, bool, error)
	ListPlayback(ctx context.Context) ([]domain.PlaybackEntry, error)
	ClearPlayback(ctx context.Context) error
}

// KeyGenerator derives the request key used to match replay candidates.
type KeyGenerator interface {
	GenerateKey(ctx context.Context, rc *RequestContext) (string, error)
}

// ScenarioWriter persists a finalized scenario and returns where it was written.
type ScenarioWriter interface {
	WriteScenario(ctx context.Context, dir string, sc domain.Scenario) (string, error)
}

// Publisher delivers payloads to topic subscribers.
type Publisher interface {
	Publish(topic string, payload any)
}
