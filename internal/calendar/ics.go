package calendar

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/slotwise/slotwise/internal/core"
)

// maxOccurrences caps RRULE expansion per event so a malformed rule
// cannot blow up a listing
const maxOccurrences = 1000

// ICSStore implements a read-only Store over a local ICS file. Mutations
// return core.ErrReadOnlyStore; use it to plan against a calendar export
// or a subscribed feed snapshot.
type ICSStore struct {
	path   string
	events []icsEvent
}

type icsEvent struct {
	uid       string
	summary   string
	start     time.Time
	end       time.Time
	attendees []string
	rrule     string
	exDates   []time.Time
}

// NewICSStore parses the file once at construction. Call Reload to pick
// up external changes.
func NewICSStore(path string) (*ICSStore, error) {
	s := &ICSStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-parses the backing file
func (s *ICSStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", core.ErrExternalStore, s.path, err)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", core.ErrExternalStore, s.path, err)
	}

	events := make([]icsEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, ok := parseVEvent(ve)
		if ok {
			events = append(events, ev)
		}
	}
	s.events = events
	return nil
}

// ListEvents expands recurring events into instances within the window
func (s *ICSStore) ListEvents(ctx context.Context, window core.Window, filter Filter) ([]core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []core.Event
	for _, ie := range s.events {
		for _, occ := range s.occurrences(ie, window) {
			if filter.Matches(occ) {
				out = append(out, occ)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// CreateEvent is unsupported: ICS files are plan-only
func (s *ICSStore) CreateEvent(ctx context.Context, req CreateRequest) (core.EventRef, error) {
	return "", fmt.Errorf("%w: ics backend", core.ErrReadOnlyStore)
}

// UpdateEvent is unsupported: ICS files are plan-only
func (s *ICSStore) UpdateEvent(ctx context.Context, ref core.EventRef, window core.Window) error {
	return fmt.Errorf("%w: ics backend", core.ErrReadOnlyStore)
}

// DeleteEvent is unsupported: ICS files are plan-only
func (s *ICSStore) DeleteEvent(ctx context.Context, ref core.EventRef) error {
	return fmt.Errorf("%w: ics backend", core.ErrReadOnlyStore)
}

func (s *ICSStore) occurrences(ie icsEvent, window core.Window) []core.Event {
	if ie.rrule == "" {
		ev := s.toEvent(ie, ie.start, ie.end)
		if window.Overlaps(ev.Window()) {
			return []core.Event{ev}
		}
		return nil
	}

	r, err := rrule.StrToRRule(ie.rrule)
	if err != nil {
		return nil
	}
	r.DTStart(ie.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ie.exDates {
		set.ExDate(ex.In(ie.start.Location()))
	}

	duration := ie.end.Sub(ie.start)
	// Widen the query so instances straddling the window start are kept
	starts := set.Between(window.Start.Add(-duration), window.End, true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	var out []core.Event
	for _, start := range starts {
		ev := s.toEvent(ie, start, start.Add(duration))
		if window.Overlaps(ev.Window()) {
			out = append(out, ev)
		}
	}
	return out
}

func (s *ICSStore) toEvent(ie icsEvent, start, end time.Time) core.Event {
	ref := ie.uid
	if !start.Equal(ie.start) {
		ref = ie.uid + "/" + start.Format(time.RFC3339)
	}
	return core.Event{
		Ref:          core.EventRef(ref),
		Summary:      ie.summary,
		Start:        start,
		End:          end,
		Participants: ie.attendees,
	}
}

func parseVEvent(ve *ical.VEvent) (icsEvent, bool) {
	var ev icsEvent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, false
	}
	ev.uid = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.summary = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, false
	}
	end, err := ve.GetEndAt()
	if err != nil || !start.Before(end) {
		return ev, false
	}
	ev.start, ev.end = start, end

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part)); err == nil {
				ev.exDates = append(ev.exDates, t)
			}
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		name := strings.TrimPrefix(p.Value, "mailto:")
		if cn, ok := p.ICalParameters["CN"]; ok && len(cn) > 0 && cn[0] != "" {
			name = cn[0]
		}
		if name != "" {
			ev.attendees = append(ev.attendees, name)
		}
	}

	return ev, true
}

func parseICSTime(v string) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, fmt.Errorf("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.Local)
	default:
		return time.ParseInLocation("20060102", v, time.Local)
	}
}
