package memory

import (
	"context"

	"replay-proxy/internal/domain"
)

type playbackKey struct {
	endpoint string
	request  string
}

// PlaybackRepository

// PutPlayback stores or replaces the response served for (endpoint, request key).
func (s *Store) PutPlayback(ctx context.Context, e domain.PlaybackEntry) error {
	k := playbackKey{endpoint: e.EndpointKey, request: e.RequestKey}
	e.Response = *e.Response.Clone()
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if _, ok := s.playback[k]; !ok {
		s.order = append(s.order, k)
	}
	s.playback[k] = e
	return nil
}

func (s *Store) LookupPlayback(ctx context.Context, endpointKey, requestKey string) (domain.PlaybackEntry, bool, error) {
	s.pmu.RLock()
	defer s.pmu.RUnlock()
	e, ok := s.playback[playbackKey{endpoint: endpointKey, request: requestKey}]
	if !ok {
		return domain.PlaybackEntry{}, false, nil
	}
	e.Response = *e.Response.Clone()
	return e, true, nil
}

// ListPlayback returns entries in insertion order.
func (s *Store) ListPlayback(ctx context.Context) ([]domain.PlaybackEntry, error) {
	s.pmu.RLock()
	defer s.pmu.RUnlock()
	out := make([]domain.PlaybackEntry, 0, len(s.order))
	for _, k := range s.order {
		e := s.playback[k]
		e.Response = *e.Response.Clone()
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ClearPlayback(ctx context.Context) error {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	s.playback = make(map[playbackKey]domain.PlaybackEntry, len(s.playback))
	s.order = s.order[:0]
	return nil
}
