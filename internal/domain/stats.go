package domain

import "time"

// Endpoint is a configured upstream target requests are matched to.
type Endpoint struct {
	Key    string `json:"key" yaml:"key"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix"`
	Target string `json:"target,omitempty" yaml:"target"`
	// Forward allows contacting the upstream on a playback miss.
	Forward bool `json:"forward" yaml:"forward"`
	// Record stores forwarded responses for later playback.
	Record bool `json:"record" yaml:"record"`
}

// Bucket names an outcome bucket of the stats aggregate.
type Bucket string

const (
	BucketRecorded  Bucket = "recorded"
	BucketForwarded Bucket = "forwarded"
	BucketReplayed  Bucket = "replayed"
	BucketMiss      Bucket = "miss"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketRecorded, BucketForwarded, BucketReplayed, BucketMiss}

// OutcomeRecord is the payload snapshot of the first classified request for a hash.
type OutcomeRecord struct {
	Hash             string       `json:"hash"`
	Timestamp        time.Time    `json:"timestamp"`
	RequestKey       string       `json:"requestKey"`
	ClientRequest    *MessageDump `json:"clientRequest"`
	ProxyRequest     *MessageDump `json:"proxyRequest"`
	ProxyResponse    *MessageDump `json:"proxyResponse"`
	PlaybackResponse *MessageDump `json:"playbackResponse"`
	ClientResponse   *MessageDump `json:"clientResponse"`
	Endpoint         Endpoint     `json:"endpoint"`
}

func (r OutcomeRecord) Clone() OutcomeRecord {
	c := r
	c.ClientRequest = r.ClientRequest.Clone()
	c.ProxyRequest = r.ProxyRequest.Clone()
	c.ProxyResponse = r.ProxyResponse.Clone()
	c.PlaybackResponse = r.PlaybackResponse.Clone()
	c.ClientResponse = r.ClientResponse.Clone()
	return c
}

// StoryEntry is one immutable line of the story log.
type StoryEntry struct {
	ID             int       `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Line           string    `json:"line"`
	Rec            bool      `json:"rec,omitempty"`
	Fwd            bool      `json:"fwd,omitempty"`
	Rpl            bool      `json:"rpl,omitempty"`
	Miss           bool      `json:"miss,omitempty"`
	RequestKeyHash string    `json:"requestKeyHash"`
	FlagString     string    `json:"flagString,omitempty"`
}

// Stats is the outcome aggregate. A delta published after each classification
// uses the same shape but only carries the data it touched.
type Stats struct {
	Responses map[string]OutcomeRecord `json:"responses"`
	Endpoints map[string][]string      `json:"endpoints"`
	Recorded  []string                 `json:"recorded"`
	Forwarded []string                 `json:"forwarded"`
	Replayed  []string                 `json:"replayed"`
	Miss      []string                 `json:"miss"`
	StoryLog  []StoryEntry             `json:"storyLog"`
}

// NewStats returns an empty aggregate whose fields all serialize as {} or [].
func NewStats() Stats {
	return Stats{
		Responses: map[string]OutcomeRecord{},
		Endpoints: map[string][]string{},
		Recorded:  []string{},
		Forwarded: []string{},
		Replayed:  []string{},
		Miss:      []string{},
		StoryLog:  []StoryEntry{},
	}
}

// Bucket returns a pointer to the hash list backing b, nil for unknown buckets.
func (s *Stats) Bucket(b Bucket) *[]string {
	switch b {
	case BucketRecorded:
		return &s.Recorded
	case BucketForwarded:
		return &s.Forwarded
	case BucketReplayed:
		return &s.Replayed
	case BucketMiss:
		return &s.Miss
	}
	return nil
}

// Merge folds a delta into s: sequences are concatenated, mappings are merged key-wise
// with the delta's value overwriting. Live consumers must apply deltas this way.
// Endpoints is a mapping, so a merged view holds the latest delta's hashes per endpoint;
// the full per-endpoint history is only available from a dump.
func (s *Stats) Merge(delta Stats) {
	if s.Responses == nil {
		s.Responses = map[string]OutcomeRecord{}
	}
	if s.Endpoints == nil {
		s.Endpoints = map[string][]string{}
	}
	for k, v := range delta.Responses {
		s.Responses[k] = v
	}
	for k, v := range delta.Endpoints {
		s.Endpoints[k] = v
	}
	s.Recorded = append(s.Recorded, delta.Recorded...)
	s.Forwarded = append(s.Forwarded, delta.Forwarded...)
	s.Replayed = append(s.Replayed, delta.Replayed...)
	s.Miss = append(s.Miss, delta.Miss...)
	s.StoryLog = append(s.StoryLog, delta.StoryLog...)
}

// Clone deep-copies the aggregate.
func (s Stats) Clone() Stats {
	c := NewStats()
	for k, v := range s.Responses {
		c.Responses[k] = v.Clone()
	}
	for k, v := range s.Endpoints {
		c.Endpoints[k] = append([]string{}, v...)
	}
	c.Recorded = append(c.Recorded, s.Recorded...)
	c.Forwarded = append(c.Forwarded, s.Forwarded...)
	c.Replayed = append(c.Replayed, s.Replayed...)
	c.Miss = append(c.Miss, s.Miss...)
	c.StoryLog = append(c.StoryLog, s.StoryLog...)
	return c
}
