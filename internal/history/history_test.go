package history

import (
	"context"
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2024, 6, 11, 9, 0, 0, 0, time.UTC)

func ev(ref string, offset time.Duration, participants ...string) core.Event {
	return core.Event{
		Ref:          core.EventRef(ref),
		Summary:      "meeting " + ref,
		Start:        base.Add(offset),
		End:          base.Add(offset + 30*time.Minute),
		Participants: participants,
	}
}

func TestRecordAndListSince(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Record(ctx, ev("a", 0, "Alex")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, ev("b", -48*time.Hour, "Sam")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	all, err := s.ListSince(ctx, base.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d events, want 2", len(all))
	}
	if all[0].Ref != "b" || all[1].Ref != "a" {
		t.Errorf("events not ordered oldest first: %v, %v", all[0].Ref, all[1].Ref)
	}
	if len(all[1].Participants) != 1 || all[1].Participants[0] != "Alex" {
		t.Errorf("participants = %v, want [Alex]", all[1].Participants)
	}

	recent, err := s.ListSince(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(recent) != 1 || recent[0].Ref != "a" {
		t.Errorf("recent = %v, want only event a", recent)
	}
}

func TestRecordUpsertsMovedEvent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Record(ctx, ev("a", 0)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	moved := ev("a", 5*time.Hour)
	if err := s.Record(ctx, moved); err != nil {
		t.Fatalf("Record moved: %v", err)
	}

	events, err := s.ListSince(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 after upsert", len(events))
	}
	if !events[0].Start.Equal(moved.Start) {
		t.Errorf("start = %v, want %v", events[0].Start, moved.Start)
	}
}

func TestRecordRejectsMissingRef(t *testing.T) {
	s := openTestStore(t)
	if err := s.Record(context.Background(), core.Event{Start: base, End: base.Add(time.Hour)}); err == nil {
		t.Error("Record accepted an event without a ref")
	}
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Record(ctx, ev("a", 0)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Forget(ctx, "a"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cal := calendar.NewMemoryStore()
	cal.Seed(ev("x", 0, "Alex"), ev("y", 2*time.Hour, "Sam"))

	window := core.Window{Start: base.Add(-time.Hour), End: base.Add(24 * time.Hour)}
	n, err := s.Backfill(ctx, cal, window)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n != 2 {
		t.Errorf("Backfill copied %d events, want 2", n)
	}

	// Idempotent: a second pass upserts rather than duplicating
	if _, err := s.Backfill(ctx, cal, window); err != nil {
		t.Fatalf("second Backfill: %v", err)
	}
	total, _ := s.Count(ctx)
	if total != 2 {
		t.Errorf("Count after double backfill = %d, want 2", total)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.Record(ctx, ev("old", -100*24*time.Hour))
	s.Record(ctx, ev("new", 0))

	n, err := s.Prune(ctx, base.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d rows, want 1", n)
	}
	events, _ := s.ListSince(ctx, base.Add(-365*24*time.Hour))
	if len(events) != 1 || events[0].Ref != "new" {
		t.Errorf("remaining = %v, want only new", events)
	}
}
