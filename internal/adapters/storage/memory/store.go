package memory

import (
	"context"
	"sync"

	"replay-proxy/internal/domain"
	"replay-proxy/internal/usecase"
)

// Store is the process-local state container for the stats aggregate, the
// capture buffer of the recording session and the playback registry.
// Nothing is evicted: entries live until an explicit clear.
type Store struct {
	mu    sync.RWMutex
	stats domain.Stats

	// capture state
	cmu            sync.Mutex
	currentCapture int
	recording      bool
	captured       []domain.ScenarioExchange

	pmu      sync.RWMutex
	order    []playbackKey
	playback map[playbackKey]domain.PlaybackEntry
}

func NewStore() *Store {
	return &Store{
		stats:    domain.NewStats(),
		playback: make(map[playbackKey]domain.PlaybackEntry),
	}
}

var (
	_ usecase.StatsRepository    = (*Store)(nil)
	_ usecase.CaptureRepository  = (*Store)(nil)
	_ usecase.PlaybackRepository = (*Store)(nil)
)

// StatsRepository
func (s *Store) ApplyOutcome(ctx context.Context, m usecase.StatsMutation) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := domain.NewStats()

	// first writer keeps the payload snapshot
	rec, ok := s.stats.Responses[m.Hash]
	if !ok {
		rec = m.Record.Clone()
		s.stats.Responses[m.Hash] = rec
	}
	delta.Responses[m.Hash] = rec.Clone()

	s.stats.Endpoints[m.EndpointKey] = append(s.stats.Endpoints[m.EndpointKey], m.Hash)
	delta.Endpoints[m.EndpointKey] = []string{m.Hash}

	for _, b := range m.Buckets {
		if dst := s.stats.Bucket(b); dst != nil {
			*dst = append(*dst, m.Hash)
			d := delta.Bucket(b)
			*d = append(*d, m.Hash)
		}
	}

	entry := m.Story
	entry.ID = len(s.stats.StoryLog)
	s.stats.StoryLog = append(s.stats.StoryLog, entry)
	delta.StoryLog = append(delta.StoryLog, entry)
	return delta, nil
}

func (s *Store) SnapshotStats(ctx context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Clone(), nil
}

// ClearStats swaps in a fresh aggregate under the write lock, so readers see
// either the old or the empty state.
func (s *Store) ClearStats(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = domain.NewStats()
	return nil
}
