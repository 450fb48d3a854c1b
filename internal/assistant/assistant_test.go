package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/core"
	"github.com/slotwise/slotwise/internal/history"
	"github.com/slotwise/slotwise/internal/planner"
	"github.com/slotwise/slotwise/internal/preference"
)

// Monday June 10 2024, 09:00 UTC
var now = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func at(day, hour, min int) time.Time {
	return time.Date(2024, 6, day, hour, min, 0, 0, time.UTC)
}

func newService(t *testing.T, store calendar.Store) (*Service, *history.Store) {
	t.Helper()
	hist, err := history.Open(history.Config{InMemory: true})
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	prefs := preference.NewCache(hist, 90*24*time.Hour, 30*24*time.Hour)

	cfg := planner.DefaultConfig()
	cfg.Location = time.UTC
	svc := New(store, hist, prefs, planner.New(cfg), DefaultConfig())
	return svc, hist
}

func handle(t *testing.T, svc *Service, text string) Response {
	t.Helper()
	resp, err := svc.Handle(context.Background(), Request{Text: text, Now: now})
	if err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
	return resp
}

func TestHandleScheduleCreatesEvent(t *testing.T) {
	store := calendar.NewMemoryStore()
	svc, hist := newService(t, store)

	resp := handle(t, svc, "Schedule a meeting with Alex tomorrow at 2pm")
	if resp.Action.Kind != core.ActionCommitted {
		t.Fatalf("Action = %+v, want committed", resp.Action)
	}
	if resp.Action.Ref == "" {
		t.Fatal("committed action has no ref")
	}

	events, err := store.ListEvents(context.Background(),
		core.Window{Start: now, End: now.AddDate(0, 0, 7)}, calendar.Filter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("store holds %d events, want 1", len(events))
	}
	if !events[0].Start.Equal(at(11, 14, 0)) {
		t.Errorf("event start = %v, want Jun 11 14:00", events[0].Start)
	}
	if events[0].Summary != "Meeting with Alex" {
		t.Errorf("summary = %q", events[0].Summary)
	}

	// The booking also lands in history for learning
	n, err := hist.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("history count = %d, want 1", n)
	}
}

func TestHandleConflictDoesNotMutate(t *testing.T) {
	store := calendar.NewMemoryStore()
	store.Seed(core.Event{
		Ref: "x", Summary: "existing",
		Start: at(11, 14, 0), End: at(11, 15, 0),
	})
	svc, _ := newService(t, store)

	resp := handle(t, svc, "Schedule a meeting with Alex tomorrow at 2pm")
	if resp.Action.Kind != core.ActionConflicted {
		t.Fatalf("Action = %+v, want conflicted", resp.Action)
	}
	if len(resp.Action.Alternatives) == 0 {
		t.Error("conflicted action offers no alternatives")
	}

	events, _ := store.ListEvents(context.Background(),
		core.Window{Start: now, End: now.AddDate(0, 0, 7)}, calendar.Filter{})
	if len(events) != 1 {
		t.Errorf("store holds %d events after conflict, want the original 1", len(events))
	}
}

func TestHandleCancelRemovesEventAndHistory(t *testing.T) {
	store := calendar.NewMemoryStore()
	store.Seed(core.Event{
		Ref: "standup", Summary: "standup",
		Start: at(11, 9, 30), End: at(11, 9, 45),
		Participants: []string{"Alex"},
	})
	svc, hist := newService(t, store)
	hist.Record(context.Background(), core.Event{
		Ref: "standup", Summary: "standup",
		Start: at(11, 9, 30), End: at(11, 9, 45),
	})

	resp := handle(t, svc, "cancel my standup with Alex")
	if resp.Action.Kind != core.ActionCommitted || resp.Action.Ref != "standup" {
		t.Fatalf("Action = %+v, want committed delete of standup", resp.Action)
	}

	events, _ := store.ListEvents(context.Background(),
		core.Window{Start: now, End: now.AddDate(0, 0, 7)}, calendar.Filter{})
	if len(events) != 0 {
		t.Errorf("store still holds %d events", len(events))
	}
	n, _ := hist.Count(context.Background())
	if n != 0 {
		t.Errorf("history count = %d, want 0 after forget", n)
	}
}

func TestHandleReschedule(t *testing.T) {
	store := calendar.NewMemoryStore()
	store.Seed(core.Event{
		Ref: "sync1", Summary: "1:1 with Sam",
		Start: at(11, 10, 0), End: at(11, 10, 30),
		Participants: []string{"Sam"},
	})
	svc, _ := newService(t, store)

	resp := handle(t, svc, "move my 1:1 with Sam to tomorrow at 4pm")
	if resp.Action.Kind != core.ActionCommitted {
		t.Fatalf("Action = %+v, want committed", resp.Action)
	}

	events, _ := store.ListEvents(context.Background(),
		core.Window{Start: now, End: now.AddDate(0, 0, 7)}, calendar.Filter{})
	if len(events) != 1 {
		t.Fatalf("store holds %d events, want 1", len(events))
	}
	if !events[0].Start.Equal(at(11, 16, 0)) {
		t.Errorf("event start = %v, want Jun 11 16:00", events[0].Start)
	}
}

func TestHandleUnrecognized(t *testing.T) {
	svc, _ := newService(t, calendar.NewMemoryStore())

	resp := handle(t, svc, "make me a sandwich")
	if resp.Action.Kind != core.ActionFailed || resp.Action.Reason != core.ReasonUnrecognized {
		t.Errorf("Action = %+v, want Failed(unrecognized_command)", resp.Action)
	}
}

func TestHandleAvailability(t *testing.T) {
	store := calendar.NewMemoryStore()
	store.Seed(core.Event{
		Ref: "x", Summary: "review",
		Start: at(11, 10, 0), End: at(11, 11, 0),
	})
	svc, _ := newService(t, store)

	resp := handle(t, svc, "when am I free tomorrow")
	if resp.Action.Kind != core.ActionFreeSlots {
		t.Fatalf("Action = %+v, want free_slots", resp.Action)
	}
	if len(resp.Action.Free) != 2 {
		t.Errorf("Free = %v, want 2 slots around the 10:00 review", resp.Action.Free)
	}
}

func TestHandleReadOnlyStore(t *testing.T) {
	svc, _ := newService(t, readOnlyStore{})

	resp := handle(t, svc, "Schedule a meeting with Alex tomorrow at 2pm")
	if resp.Action.Kind != core.ActionFailed || resp.Action.Reason != core.ReasonStoreError {
		t.Errorf("Action = %+v, want Failed(store_error)", resp.Action)
	}
}

type readOnlyStore struct{}

func (readOnlyStore) ListEvents(context.Context, core.Window, calendar.Filter) ([]core.Event, error) {
	return nil, nil
}

func (readOnlyStore) CreateEvent(context.Context, calendar.CreateRequest) (core.EventRef, error) {
	return "", core.ErrReadOnlyStore
}

func (readOnlyStore) UpdateEvent(context.Context, core.EventRef, core.Window) error {
	return core.ErrReadOnlyStore
}

func (readOnlyStore) DeleteEvent(context.Context, core.EventRef) error {
	return core.ErrReadOnlyStore
}

func TestHandleStoreErrorSurfaced(t *testing.T) {
	svc, _ := newService(t, failingStore{})

	resp, err := svc.Handle(context.Background(), Request{Text: "show my meetings", Now: now})
	if err == nil {
		t.Fatal("Handle swallowed the backend error")
	}
	if resp.Action.Reason != core.ReasonStoreError {
		t.Errorf("Action = %+v, want Failed(store_error)", resp.Action)
	}
}

type failingStore struct{}

func (failingStore) ListEvents(context.Context, core.Window, calendar.Filter) ([]core.Event, error) {
	return nil, core.ErrExternalStore
}

func (failingStore) CreateEvent(context.Context, calendar.CreateRequest) (core.EventRef, error) {
	return "", core.ErrExternalStore
}

func (failingStore) UpdateEvent(context.Context, core.EventRef, core.Window) error {
	return core.ErrExternalStore
}

func (failingStore) DeleteEvent(context.Context, core.EventRef) error {
	return core.ErrExternalStore
}
