package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/slotwise/slotwise/internal/core"
)

// MemoryStore is an in-process Store used for tests, demos, and as the
// default backend before a real calendar is connected.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[core.EventRef]core.Event
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[core.EventRef]core.Event)}
}

// Seed inserts events with their existing refs, assigning refs to any
// that lack one. Intended for test and demo setup.
func (s *MemoryStore) Seed(events ...core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.Ref == "" {
			ev.Ref = core.EventRef(uuid.NewString())
		}
		s.events[ev.Ref] = ev
	}
}

// ListEvents returns events overlapping the window, sorted by start
func (s *MemoryStore) ListEvents(ctx context.Context, window core.Window, filter Filter) ([]core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Event
	for _, ev := range s.events {
		if !window.IsZero() && !window.Overlaps(ev.Window()) {
			continue
		}
		if filter.Matches(ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Ref < out[j].Ref
	})
	return out, nil
}

// CreateEvent books an event and returns its new ref
func (s *MemoryStore) CreateEvent(ctx context.Context, req CreateRequest) (core.EventRef, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !req.Start.Before(req.End) {
		return "", fmt.Errorf("%w: event end must follow start", core.ErrExternalStore)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := core.EventRef(uuid.NewString())
	s.events[ref] = core.Event{
		Ref:          ref,
		Summary:      req.Summary,
		Start:        req.Start,
		End:          req.End,
		Participants: req.Participants,
	}
	return ref, nil
}

// UpdateEvent moves an existing event to a new window
func (s *MemoryStore) UpdateEvent(ctx context.Context, ref core.EventRef, window core.Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[ref]
	if !ok {
		return fmt.Errorf("%w: event %s", core.ErrNotFound, ref)
	}
	ev.Start = window.Start
	ev.End = window.End
	s.events[ref] = ev
	return nil
}

// DeleteEvent removes an event
func (s *MemoryStore) DeleteEvent(ctx context.Context, ref core.EventRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[ref]; !ok {
		return fmt.Errorf("%w: event %s", core.ErrNotFound, ref)
	}
	delete(s.events, ref)
	return nil
}
