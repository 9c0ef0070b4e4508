package httpapi

import (
	"replay-proxy/internal/adapters/pubsub"
	"replay-proxy/internal/domain"
	obs "replay-proxy/internal/infrastructure/observability"
	"replay-proxy/internal/usecase"
)

// SubscribeMetrics feeds outcome counters from the published stats deltas.
func SubscribeMetrics(bus *pubsub.Bus, m *obs.Metrics) func() {
	return bus.Subscribe(usecase.TopicStatsUpdated, func(payload any) {
		delta, ok := payload.(domain.Stats)
		if !ok {
			return
		}
		for _, b := range domain.Buckets {
			if n := len(*delta.Bucket(b)); n > 0 {
				m.OutcomesTotal.WithLabelValues(string(b)).Add(float64(n))
			}
		}
		m.StoryEntriesTotal.Add(float64(len(delta.StoryLog)))
	})
}
