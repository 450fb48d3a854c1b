// Package calendar abstracts the event backends the assistant plans
// against: Google Calendar, local ICS files, and an in-memory store for
// tests and demos.
package calendar

import (
	"context"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/core"
)

// Filter narrows a listing. Zero value matches everything in the window.
type Filter struct {
	// Participant matches events whose participant list or summary
	// contains the name, case-insensitively.
	Participant string
	// Summary matches events whose summary contains the text,
	// case-insensitively.
	Summary string
}

// Matches reports whether the event passes the filter
func (f Filter) Matches(ev core.Event) bool {
	if f.Participant != "" && !matchesParticipant(ev, f.Participant) {
		return false
	}
	if f.Summary != "" && !strings.Contains(strings.ToLower(ev.Summary), strings.ToLower(f.Summary)) {
		return false
	}
	return true
}

func matchesParticipant(ev core.Event, name string) bool {
	needle := strings.ToLower(name)
	for _, p := range ev.Participants {
		if strings.Contains(strings.ToLower(p), needle) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(ev.Summary), needle)
}

// CreateRequest carries everything needed to book an event
type CreateRequest struct {
	Summary      string
	Start        time.Time
	End          time.Time
	Participants []string
}

// Store is the calendar backend contract. Implementations wrap backend
// failures in core.ErrExternalStore and missing refs in core.ErrNotFound;
// read-only backends return core.ErrReadOnlyStore from mutations.
type Store interface {
	// ListEvents returns events overlapping the window that pass the
	// filter, ordered by start time.
	ListEvents(ctx context.Context, window core.Window, filter Filter) ([]core.Event, error)
	CreateEvent(ctx context.Context, req CreateRequest) (core.EventRef, error)
	UpdateEvent(ctx context.Context, ref core.EventRef, window core.Window) error
	DeleteEvent(ctx context.Context, ref core.EventRef) error
}

// BusyFrom projects events onto busy intervals for the availability engine
func BusyFrom(events []core.Event) []core.BusyInterval {
	busy := make([]core.BusyInterval, 0, len(events))
	for _, ev := range events {
		busy = append(busy, core.BusyInterval{Start: ev.Start, End: ev.End, Ref: ev.Ref})
	}
	return busy
}
