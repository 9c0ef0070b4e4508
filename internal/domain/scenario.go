package domain

import "time"

// ScenarioExchange is one captured request/response pair of a recording session.
type ScenarioExchange struct {
	EndpointKey string      `json:"endpointKey"`
	RequestKey  string      `json:"requestKey"`
	Request     MessageDump `json:"request"`
	Response    MessageDump `json:"response"`
	RecordedAt  time.Time   `json:"recordedAt"`
}

// Scenario is the finalized capture of one recording session.
type Scenario struct {
	ID         string             `json:"id"`
	Title      string             `json:"title,omitempty"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Exchanges  []ScenarioExchange `json:"exchanges"`
	// File is set when the scenario was persisted.
	File string `json:"file,omitempty"`
}

// PlaybackEntry is a response that can be served for (EndpointKey, RequestKey).
type PlaybackEntry struct {
	EndpointKey string      `json:"endpointKey"`
	RequestKey  string      `json:"requestKey"`
	Response    MessageDump `json:"response"`
}

// Player projects the scenario onto playback entries. When the same request was
// captured more than once, the last response wins.
func (s Scenario) Player() []PlaybackEntry {
	idx := make(map[[2]string]int, len(s.Exchanges))
	out := make([]PlaybackEntry, 0, len(s.Exchanges))
	for _, ex := range s.Exchanges {
		k := [2]string{ex.EndpointKey, ex.RequestKey}
		e := PlaybackEntry{EndpointKey: ex.EndpointKey, RequestKey: ex.RequestKey, Response: ex.Response}
		if i, ok := idx[k]; ok {
			out[i] = e
			continue
		}
		idx[k] = len(out)
		out = append(out, e)
	}
	return out
}
