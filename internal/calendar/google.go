package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/slotwise/slotwise/internal/core"
)

// GoogleStore implements Store on the Google Calendar API
type GoogleStore struct {
	service    *calendar.Service
	calendarID string
}

// NewGoogleStore wraps an authenticated Calendar service. An empty
// calendarID means the user's primary calendar.
func NewGoogleStore(service *calendar.Service, calendarID string) *GoogleStore {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleStore{service: service, calendarID: calendarID}
}

// ListEvents retrieves events in the window, with recurring events
// expanded into their instances.
func (s *GoogleStore) ListEvents(ctx context.Context, window core.Window, filter Filter) ([]core.Event, error) {
	call := s.service.Events.List(s.calendarID).
		Context(ctx).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	resp, err := call.Do()
	if err != nil {
		return nil, wrapGoogleErr("list events", err)
	}

	events := make([]core.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Status == "cancelled" {
			continue
		}
		ev, ok := convertGoogleEvent(item)
		if !ok {
			continue
		}
		if filter.Matches(ev) {
			events = append(events, ev)
		}
	}
	return events, nil
}

// CreateEvent inserts an event and notifies attendees
func (s *GoogleStore) CreateEvent(ctx context.Context, req CreateRequest) (core.EventRef, error) {
	event := &calendar.Event{
		Summary: req.Summary,
		Start:   &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339)},
	}
	for _, name := range req.Participants {
		// Plain names become display-only attendees; addresses get invites
		att := &calendar.EventAttendee{DisplayName: name}
		if strings.Contains(name, "@") {
			att.Email = name
		}
		event.Attendees = append(event.Attendees, att)
	}

	created, err := s.service.Events.Insert(s.calendarID, event).
		Context(ctx).
		SendUpdates("all").
		Do()
	if err != nil {
		return "", wrapGoogleErr("create event", err)
	}
	return core.EventRef(created.Id), nil
}

// UpdateEvent moves an event to a new window, preserving its other fields
func (s *GoogleStore) UpdateEvent(ctx context.Context, ref core.EventRef, window core.Window) error {
	existing, err := s.service.Events.Get(s.calendarID, string(ref)).Context(ctx).Do()
	if err != nil {
		return wrapGoogleErr("get event", err)
	}

	existing.Start = &calendar.EventDateTime{DateTime: window.Start.Format(time.RFC3339)}
	existing.End = &calendar.EventDateTime{DateTime: window.End.Format(time.RFC3339)}

	_, err = s.service.Events.Update(s.calendarID, string(ref), existing).
		Context(ctx).
		SendUpdates("all").
		Do()
	if err != nil {
		return wrapGoogleErr("update event", err)
	}
	return nil
}

// DeleteEvent removes an event and notifies attendees
func (s *GoogleStore) DeleteEvent(ctx context.Context, ref core.EventRef) error {
	err := s.service.Events.Delete(s.calendarID, string(ref)).
		Context(ctx).
		SendUpdates("all").
		Do()
	if err != nil {
		return wrapGoogleErr("delete event", err)
	}
	return nil
}

// FreeBusy queries the calendar's busy intervals directly, cheaper than
// a full event listing when only availability matters.
func (s *GoogleStore) FreeBusy(ctx context.Context, window core.Window) ([]core.BusyInterval, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: window.Start.Format(time.RFC3339),
		TimeMax: window.End.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: s.calendarID}},
	}

	resp, err := s.service.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, wrapGoogleErr("freebusy query", err)
	}

	var busy []core.BusyInterval
	for _, cal := range resp.Calendars {
		for _, b := range cal.Busy {
			start, err := time.Parse(time.RFC3339, b.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, b.End)
			if err != nil {
				continue
			}
			busy = append(busy, core.BusyInterval{Start: start, End: end})
		}
	}
	return busy, nil
}

func convertGoogleEvent(item *calendar.Event) (core.Event, bool) {
	ev := core.Event{
		Ref:     core.EventRef(item.Id),
		Summary: item.Summary,
		Link:    item.HtmlLink,
	}

	if item.Start == nil || item.End == nil {
		return core.Event{}, false
	}
	var err error
	switch {
	case item.Start.DateTime != "":
		ev.Start, err = time.Parse(time.RFC3339, item.Start.DateTime)
	case item.Start.Date != "":
		ev.Start, err = time.Parse("2006-01-02", item.Start.Date)
	}
	if err != nil {
		return core.Event{}, false
	}
	switch {
	case item.End.DateTime != "":
		ev.End, err = time.Parse(time.RFC3339, item.End.DateTime)
	case item.End.Date != "":
		ev.End, err = time.Parse("2006-01-02", item.End.Date)
	}
	if err != nil || !ev.Start.Before(ev.End) {
		return core.Event{}, false
	}

	for _, att := range item.Attendees {
		name := att.DisplayName
		if name == "" {
			name = att.Email
		}
		if name != "" && !att.Self {
			ev.Participants = append(ev.Participants, name)
		}
	}
	return ev, true
}

func wrapGoogleErr(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, core.ErrExternalStore, err)
}
