package memory

import (
	"context"
	"testing"

	"replay-proxy/internal/domain"
	"replay-proxy/internal/usecase"
)

func mutation(hash, body string, buckets ...domain.Bucket) usecase.StatsMutation {
	return usecase.StatsMutation{
		Hash:        hash,
		EndpointKey: "svc",
		Record: domain.OutcomeRecord{
			Hash:          hash,
			ClientRequest: &domain.MessageDump{Type: domain.MessageRequest, Body: body},
		},
		Buckets: buckets,
		Story:   domain.StoryEntry{Line: body, RequestKeyHash: hash},
	}
}

func TestApplyOutcomeFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d1, _ := s.ApplyOutcome(ctx, mutation("h", "first", domain.BucketRecorded))
	d2, _ := s.ApplyOutcome(ctx, mutation("h", "second", domain.BucketReplayed))

	if d2.Responses["h"].ClientRequest.Body != "first" {
		t.Fatalf("delta must carry the stored snapshot, got %q", d2.Responses["h"].ClientRequest.Body)
	}
	if len(d1.Recorded) != 1 || len(d2.Recorded) != 0 || len(d2.Replayed) != 1 {
		t.Fatalf("deltas must only carry new bucket appends: %+v / %+v", d1, d2)
	}
	if d2.StoryLog[0].ID != 1 {
		t.Fatalf("story ids follow log length, got %d", d2.StoryLog[0].ID)
	}

	snap, _ := s.SnapshotStats(ctx)
	if snap.Responses["h"].ClientRequest.Body != "first" {
		t.Fatalf("snapshot overwritten")
	}
	if len(snap.Endpoints["svc"]) != 2 || len(snap.StoryLog) != 2 {
		t.Fatalf("unexpected aggregate: %+v", snap)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.ApplyOutcome(ctx, mutation("h", "body", domain.BucketMiss))
	snap, _ := s.SnapshotStats(ctx)
	snap.Miss[0] = "mutated"
	snap.Responses["h"].ClientRequest.Body = "mutated"
	again, _ := s.SnapshotStats(ctx)
	if again.Miss[0] != "h" || again.Responses["h"].ClientRequest.Body != "body" {
		t.Fatalf("snapshot aliases internal state")
	}
}

func TestClearStatsResetsStoryIDs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.ApplyOutcome(ctx, mutation("a", "x", domain.BucketForwarded))
	_, _ = s.ApplyOutcome(ctx, mutation("b", "y", domain.BucketForwarded))
	if err := s.ClearStats(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	snap, _ := s.SnapshotStats(ctx)
	if len(snap.Responses) != 0 || len(snap.Endpoints) != 0 || len(snap.Forwarded) != 0 || len(snap.StoryLog) != 0 {
		t.Fatalf("clear left data behind: %+v", snap)
	}
	d, _ := s.ApplyOutcome(ctx, mutation("c", "z", domain.BucketForwarded))
	if d.StoryLog[0].ID != 0 {
		t.Fatalf("story ids restart after clear, got %d", d.StoryLog[0].ID)
	}
}

func TestCaptureLifecycle(t *testing.T) {
	s := NewStore()
	if s.AppendCapture(domain.ScenarioExchange{RequestKey: "dropped"}) {
		t.Fatalf("append must fail while idle")
	}
	if n := s.StartCapture(); n != 1 {
		t.Fatalf("first capture number = %d", n)
	}
	s.AppendCapture(domain.ScenarioExchange{RequestKey: "a"})
	s.AppendCapture(domain.ScenarioExchange{RequestKey: "b"})
	if rec, n := s.RecordingState(); !rec || n != 1 {
		t.Fatalf("unexpected state %v %d", rec, n)
	}
	got := s.StopCapture()
	if len(got) != 2 || got[0].RequestKey != "a" {
		t.Fatalf("unexpected capture: %+v", got)
	}
	if rec, _ := s.RecordingState(); rec {
		t.Fatalf("still recording after stop")
	}
	if n := s.StartCapture(); n != 2 {
		t.Fatalf("capture number should increase, got %d", n)
	}
	if len(s.StopCapture()) != 0 {
		t.Fatalf("new capture must start empty")
	}
}

func TestPlaybackRegistry(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.PutPlayback(ctx, domain.PlaybackEntry{EndpointKey: "a", RequestKey: "GET:/x", Response: domain.MessageDump{Body: "one"}})
	_ = s.PutPlayback(ctx, domain.PlaybackEntry{EndpointKey: "b", RequestKey: "GET:/x", Response: domain.MessageDump{Body: "other"}})
	_ = s.PutPlayback(ctx, domain.PlaybackEntry{EndpointKey: "a", RequestKey: "GET:/x", Response: domain.MessageDump{Body: "two"}})

	e, ok, _ := s.LookupPlayback(ctx, "a", "GET:/x")
	if !ok || e.Response.Body != "two" {
		t.Fatalf("lookup: ok=%v body=%q", ok, e.Response.Body)
	}
	if _, ok, _ := s.LookupPlayback(ctx, "c", "GET:/x"); ok {
		t.Fatalf("lookup must be scoped to the endpoint")
	}
	all, _ := s.ListPlayback(ctx)
	if len(all) != 2 || all[0].EndpointKey != "a" {
		t.Fatalf("unexpected list: %+v", all)
	}
	_ = s.ClearPlayback(ctx)
	if all, _ := s.ListPlayback(ctx); len(all) != 0 {
		t.Fatalf("clear left %d entries", len(all))
	}
}
