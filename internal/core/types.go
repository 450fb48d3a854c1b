// Package core defines the fundamental types for Slotwise.
// Every other package speaks in these types.
package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// INTENT - What the user asked for
// -----------------------------------------------------------------------------

// IntentKind classifies an utterance into one calendar operation
type IntentKind string

const (
	IntentSchedule          IntentKind = "schedule"
	IntentFind              IntentKind = "find"
	IntentCancel            IntentKind = "cancel"
	IntentReschedule        IntentKind = "reschedule"
	IntentCheckAvailability IntentKind = "check_availability"
)

// Intent is the structured representation of one utterance.
// Created once by the parser, consumed once by the planner, never mutated.
// Optional slots stay zero-valued when the text did not contain them -
// the parser never fabricates a slot.
type Intent struct {
	Kind        IntentKind      `json:"kind"`
	Participant string          `json:"participant,omitempty"`
	Duration    time.Duration   `json:"duration,omitempty"` // 0 = unspecified
	Time        *TimeExpression `json:"time,omitempty"`
	Subject     string          `json:"subject,omitempty"`
	Target      EventRef        `json:"target,omitempty"`
}

// -----------------------------------------------------------------------------
// TIME EXPRESSION - A temporal phrase before resolution
// -----------------------------------------------------------------------------

// DayKind is the recognized day-part of a time expression
type DayKind string

const (
	DayNone          DayKind = ""               // no day component
	DayToday         DayKind = "today"
	DayTomorrow      DayKind = "tomorrow"
	DayAfterTomorrow DayKind = "day_after"
	DayWeekday       DayKind = "weekday"        // "friday", "next monday"
	DayOffset        DayKind = "offset"         // "in 3 days"
	DayThisWeek      DayKind = "this_week"
	DayNextWeek      DayKind = "next_week"
	DayDate          DayKind = "date"           // explicit date
)

// WeekdayQualifier disambiguates a weekday reference
type WeekdayQualifier string

const (
	QualifierNone WeekdayQualifier = ""     // bare "friday" - ambiguous
	QualifierThis WeekdayQualifier = "this"
	QualifierNext WeekdayQualifier = "next"
)

// TimeExpression holds a temporal phrase as recognized in text, before
// resolution against a reference "now" and a time zone. Resolution is
// deterministic given both.
type TimeExpression struct {
	Raw string `json:"raw"` // the matched span of the utterance

	Day       DayKind          `json:"day,omitempty"`
	Weekday   time.Weekday     `json:"weekday,omitempty"`
	Qualifier WeekdayQualifier `json:"qualifier,omitempty"`
	Offset    int              `json:"offset,omitempty"` // days, for DayOffset
	Date      time.Time        `json:"date,omitempty"`   // for DayDate (zone-less date)

	HasClock bool `json:"has_clock,omitempty"`
	Hour     int  `json:"hour,omitempty"`
	Minute   int  `json:"minute,omitempty"`
}

// -----------------------------------------------------------------------------
// WINDOW - An absolute half-open time range
// -----------------------------------------------------------------------------

// Window is an absolute [Start, End) range
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// IsZero reports whether the window is unset or empty
func (w Window) IsZero() bool {
	return !w.Start.Before(w.End)
}

// Overlaps reports whether two half-open windows intersect
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether t falls inside [Start, End)
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// -----------------------------------------------------------------------------
// CALENDAR VIEW - Events and busy intervals
// -----------------------------------------------------------------------------

// EventRef is an opaque external event identifier. The core never
// interprets its structure, only hands it back to the calendar store.
type EventRef string

// Event is a normalized calendar event as seen by the core
type Event struct {
	Ref          EventRef  `json:"ref"`
	Summary      string    `json:"summary"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Participants []string  `json:"participants,omitempty"`
	Link         string    `json:"link,omitempty"`
}

// Window returns the event's occupied range
func (e Event) Window() Window {
	return Window{Start: e.Start, End: e.End}
}

// BusyInterval is a time range already occupied by an existing event.
// Invariant: Start < End.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Ref   EventRef  `json:"ref,omitempty"`
}

// Window returns the interval as a Window
func (b BusyInterval) Window() Window {
	return Window{Start: b.Start, End: b.End}
}

// CandidateSlot is a proposed booking window with a preference score.
// Transient: produced during one planning operation, then discarded.
type CandidateSlot struct {
	Window Window  `json:"window"`
	Score  float64 `json:"score"` // in [0,1]
}

// -----------------------------------------------------------------------------
// ACTION - The outcome of one planning request
// -----------------------------------------------------------------------------

// ActionKind is the terminal state of a planning request
type ActionKind string

const (
	ActionCommitted  ActionKind = "committed"
	ActionConflicted ActionKind = "conflicted"
	ActionFoundList  ActionKind = "found"
	ActionFreeSlots  ActionKind = "free_slots"
	ActionFailed     ActionKind = "failed"
)

// FailureReason classifies a Failed action. Every reason except
// ReasonStoreError is recoverable by re-prompting the user.
type FailureReason string

const (
	ReasonMissingSlot   FailureReason = "missing_slot"
	ReasonAmbiguousTime FailureReason = "ambiguous_time"
	ReasonUnrecognized  FailureReason = "unrecognized_command"
	ReasonNotFound      FailureReason = "not_found"
	ReasonNoSlot        FailureReason = "no_slot"
	ReasonStoreError    FailureReason = "store_error"
)

// OpKind identifies a calendar mutation
type OpKind string

const (
	OpCreate OpKind = "create"
	OpDelete OpKind = "delete"
	OpUpdate OpKind = "update"
)

// Op describes the calendar mutation a committed action performs
type Op struct {
	Kind         OpKind   `json:"kind"`
	Ref          EventRef `json:"ref,omitempty"` // Delete/Update target
	Window       Window   `json:"window,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// Action is the tagged result of one planning request. Exactly the fields
// for its Kind are populated; downstream consumers cannot observe an
// impossible combination.
type Action struct {
	Kind ActionKind `json:"kind"`

	// Committed
	Op  *Op      `json:"op,omitempty"`
	Ref EventRef `json:"ref,omitempty"` // filled in after execution

	// Conflicted
	Conflicts    []BusyInterval  `json:"conflicts,omitempty"`
	Alternatives []CandidateSlot `json:"alternatives,omitempty"`

	// FoundList
	Events []Event `json:"events,omitempty"`

	// FreeSlots
	Free []Window `json:"free,omitempty"`

	// Failed
	Reason FailureReason `json:"reason,omitempty"`

	Message string `json:"message,omitempty"`
}

// Failed builds a Failed action with a reason and message
func Failed(reason FailureReason, message string) Action {
	return Action{Kind: ActionFailed, Reason: reason, Message: message}
}
