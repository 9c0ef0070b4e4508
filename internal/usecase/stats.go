package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"replay-proxy/internal/domain"
)

const (
	// TopicStatsUpdated carries a domain.Stats delta after every classification.
	TopicStatsUpdated = "stats.updated"
	// TopicStatsCleared is published with a nil payload after Clear.
	TopicStatsCleared = "stats.cleared"
)

var (
	ErrNoKeyGenerator = errors.New("stats: request key missing and no key generator configured")
	ErrNoRequestKey   = errors.New("stats: key generator returned an empty request key")
)

// StatsService classifies finished request contexts into the stats aggregate and
// narrates each one in the story log.
type StatsService struct {
	repo   StatsRepository
	keys   KeyGenerator
	pub    Publisher
	logger zerolog.Logger
	now    func() time.Time

	// seq is held across every repository mutation and its publication, so subscribers
	// see deltas in story id order and a clear never interleaves with a delta.
	seq sync.Mutex
}

func NewStatsService(repo StatsRepository, keys KeyGenerator, pub Publisher, logger *zerolog.Logger) *StatsService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "stats").Logger()
	}
	return &StatsService{repo: repo, keys: keys, pub: pub, logger: l, now: time.Now}
}

// HashRequestKey is the identity of a request across all aggregate structures.
func HashRequestKey(endpointKey, requestKey string) string {
	sum := sha1.Sum([]byte(endpointKey + "|" + requestKey))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Log classifies rc and publishes one delta. A context without a request key gets one
// from the key generator first; a generator failure is returned and nothing is logged.
func (s *StatsService) Log(ctx context.Context, rc *RequestContext) error {
	if rc.RequestKey == "" {
		if s.keys == nil {
			return ErrNoKeyGenerator
		}
		s.logger.Debug().Str("endpoint", rc.Endpoint.Key).Msg("on the fly key generation")
		key, err := s.keys.GenerateKey(ctx, rc)
		if err != nil {
			return fmt.Errorf("stats: generate request key: %w", err)
		}
		if key == "" {
			return ErrNoRequestKey
		}
		rc.RequestKey = key
		return s.Log(ctx, rc)
	}

	hash := HashRequestKey(rc.Endpoint.Key, rc.RequestKey)
	out := Classify(rc)
	story := domain.StoryEntry{
		Timestamp:      s.now(),
		Line:           out.Line,
		Rec:            out.Rec,
		Fwd:            out.Fwd,
		Rpl:            out.Rpl,
		Miss:           out.Miss,
		RequestKeyHash: hash,
	}
	if !out.Mapped {
		story.FlagString = out.FlagString()
		s.logger.Warn().Str("endpoint", rc.Endpoint.Key).Str("flags", story.FlagString).Msg("unmapped outcome, counted as miss")
	}

	s.seq.Lock()
	defer s.seq.Unlock()
	delta, err := s.repo.ApplyOutcome(ctx, StatsMutation{
		Hash:        hash,
		EndpointKey: rc.Endpoint.Key,
		Record: domain.OutcomeRecord{
			Hash:             hash,
			Timestamp:        rc.RequestStartTime,
			RequestKey:       rc.RequestKey,
			ClientRequest:    snapshot(rc.ClientRequest),
			ProxyRequest:     snapshot(rc.ProxyRequest),
			ProxyResponse:    snapshot(rc.ProxyResponse),
			PlaybackResponse: snapshot(rc.PlaybackResponse),
			ClientResponse:   snapshot(rc.ClientResponse),
			Endpoint:         rc.Endpoint,
		},
		Buckets: out.Buckets,
		Story:   story,
	})
	if err != nil {
		return fmt.Errorf("stats: apply outcome: %w", err)
	}
	if s.pub != nil {
		s.pub.Publish(TopicStatsUpdated, delta)
	}
	s.logger.Debug().Str("hash", hash).Str("flags", out.FlagString()).Msg(out.Line)
	return nil
}

// Dump returns a copy of the full aggregate, used for initial dashboard sync.
func (s *StatsService) Dump(ctx context.Context) (domain.Stats, error) {
	return s.repo.SnapshotStats(ctx)
}

// Clear empties the aggregate and restarts story ids at zero.
func (s *StatsService) Clear(ctx context.Context) error {
	s.seq.Lock()
	defer s.seq.Unlock()
	if err := s.repo.ClearStats(ctx); err != nil {
		return err
	}
	if s.pub != nil {
		s.pub.Publish(TopicStatsCleared, nil)
	}
	s.logger.Info().Msg("stats cleared")
	return nil
}
