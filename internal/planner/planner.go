// Package planner turns a parsed intent plus a calendar snapshot into a
// single Action. Planning is pure: all calendar I/O happens before the
// call (snapshot fetch) and after it (op execution by the assistant).
package planner

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/slotwise/slotwise/internal/availability"
	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/core"
	"github.com/slotwise/slotwise/internal/preference"
	"github.com/slotwise/slotwise/internal/timeparse"
)

// Config controls planning behavior
type Config struct {
	DefaultDuration time.Duration      // meeting length when the text names none
	Alternatives    int                // max alternatives offered on conflict
	WorkdayStart    int                // first bookable hour
	WorkdayEnd      int                // first non-bookable hour
	Weights         preference.Weights // preference scoring weights
	Location        *time.Location     // user's time zone
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		DefaultDuration: 30 * time.Minute,
		Alternatives:    3,
		WorkdayStart:    9,
		WorkdayEnd:      18,
		Weights:         preference.DefaultWeights(),
		Location:        time.Local,
	}
}

// Snapshot is the point-in-time calendar view one plan runs against.
// Fetched once per request; the planner never re-reads the store.
type Snapshot struct {
	Now    time.Time
	Window core.Window // range the events were fetched for
	Events []core.Event
	Busy   []core.BusyInterval
}

// Planner plans calendar actions
type Planner struct {
	cfg Config
}

// New creates a planner
func New(cfg Config) *Planner {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 30 * time.Minute
	}
	if cfg.Alternatives <= 0 {
		cfg.Alternatives = 3
	}
	return &Planner{cfg: cfg}
}

// Plan maps an intent to its terminal action
func (p *Planner) Plan(in *core.Intent, snap Snapshot, profile *preference.Profile) core.Action {
	switch in.Kind {
	case core.IntentSchedule:
		return p.planSchedule(in, snap, profile)
	case core.IntentReschedule:
		return p.planReschedule(in, snap, profile)
	case core.IntentCancel:
		return p.planCancel(in, snap)
	case core.IntentFind:
		return p.planFind(in, snap)
	case core.IntentCheckAvailability:
		return p.planAvailability(in, snap)
	default:
		return core.Failed(core.ReasonUnrecognized, fmt.Sprintf("unknown intent %q", in.Kind))
	}
}

func (p *Planner) planSchedule(in *core.Intent, snap Snapshot, profile *preference.Profile) core.Action {
	if in.Time == nil {
		return core.Failed(core.ReasonMissingSlot, "no time given; say when the meeting should happen")
	}

	duration := in.Duration
	if duration <= 0 {
		duration = p.cfg.DefaultDuration
	}

	res, err := timeparse.Resolve(*in.Time, snap.Now, p.cfg.Location, timeparse.Options{Duration: duration})
	if err != nil {
		if errors.Is(err, core.ErrAmbiguousTime) {
			return core.Failed(core.ReasonAmbiguousTime, fmt.Sprintf("could not pin down %q to a time", in.Time.Raw))
		}
		return core.Failed(core.ReasonAmbiguousTime, err.Error())
	}
	// Never book on a guess: an ambiguous reading may check availability
	// but a mutation needs the user to disambiguate first.
	if res.Ambiguous {
		return core.Failed(core.ReasonAmbiguousTime,
			fmt.Sprintf("%q could mean more than one day; say \"this\" or \"next\"", in.Time.Raw))
	}

	if res.Window.Duration() > duration {
		// Day or week range: pick the best-scoring free slot inside it
		return p.bookWithinRange(in, snap, profile, res.Window, duration)
	}
	return p.bookExact(in, snap, profile, res.Window, duration)
}

// bookExact handles a fully specified window: commit if free, otherwise
// report the conflicts with ranked alternatives.
func (p *Planner) bookExact(in *core.Intent, snap Snapshot, profile *preference.Profile, window core.Window, duration time.Duration) core.Action {
	conflicts := availability.WouldConflict(window, snap.Busy)
	if len(conflicts) == 0 {
		return core.Action{
			Kind:    core.ActionCommitted,
			Op:      p.createOp(in, window),
			Message: fmt.Sprintf("booked %s", describeWindow(window)),
		}
	}

	alts := p.alternatives(snap, profile, window.Start, duration)
	return core.Action{
		Kind:         core.ActionConflicted,
		Conflicts:    conflicts,
		Alternatives: alts,
		Message:      fmt.Sprintf("%s is taken", describeWindow(window)),
	}
}

// bookWithinRange handles "tomorrow" or "next week" without a clock time:
// the best free slot in the range wins.
func (p *Planner) bookWithinRange(in *core.Intent, snap Snapshot, profile *preference.Profile, window core.Window, duration time.Duration) core.Action {
	candidates := p.candidates(snap, profile, window, duration, snap.Busy)
	if len(candidates) == 0 {
		return core.Failed(core.ReasonNoSlot,
			fmt.Sprintf("no free %s slot within %q", duration, in.Time.Raw))
	}

	best := candidates[0]
	return core.Action{
		Kind:    core.ActionCommitted,
		Op:      p.createOp(in, best.Window),
		Message: fmt.Sprintf("booked %s", describeWindow(best.Window)),
	}
}

func (p *Planner) planReschedule(in *core.Intent, snap Snapshot, profile *preference.Profile) core.Action {
	target, action, ok := p.pickTarget(in, snap, "reschedule")
	if !ok {
		return action
	}

	if in.Time == nil {
		return core.Failed(core.ReasonMissingSlot,
			fmt.Sprintf("say when %q should move to", target.Summary))
	}

	duration := in.Duration
	if duration <= 0 {
		duration = target.End.Sub(target.Start)
	}

	res, err := timeparse.Resolve(*in.Time, snap.Now, p.cfg.Location, timeparse.Options{Duration: duration})
	if err != nil {
		return core.Failed(core.ReasonAmbiguousTime, fmt.Sprintf("could not pin down %q to a time", in.Time.Raw))
	}
	if res.Ambiguous {
		return core.Failed(core.ReasonAmbiguousTime,
			fmt.Sprintf("%q could mean more than one day; say \"this\" or \"next\"", in.Time.Raw))
	}

	// An event never conflicts with itself
	busy := availability.Exclude(snap.Busy, target.Ref)

	window := res.Window
	if res.Window.Duration() > duration {
		snapNoSelf := snap
		snapNoSelf.Busy = busy
		candidates := p.candidates(snapNoSelf, profile, res.Window, duration, busy)
		if len(candidates) == 0 {
			return core.Failed(core.ReasonNoSlot,
				fmt.Sprintf("no free %s slot within %q", duration, in.Time.Raw))
		}
		window = candidates[0].Window
	} else if conflicts := availability.WouldConflict(window, busy); len(conflicts) > 0 {
		return core.Action{
			Kind:         core.ActionConflicted,
			Conflicts:    conflicts,
			Alternatives: p.alternativesExcluding(snap, profile, window.Start, duration, target.Ref),
			Message:      fmt.Sprintf("%s is taken", describeWindow(window)),
		}
	}

	return core.Action{
		Kind: core.ActionCommitted,
		Op: &core.Op{
			Kind:         core.OpUpdate,
			Ref:          target.Ref,
			Window:       window,
			Summary:      target.Summary,
			Participants: target.Participants,
		},
		Message: fmt.Sprintf("moved %q to %s",
			target.Summary, describeWindow(window)),
	}
}

func (p *Planner) planCancel(in *core.Intent, snap Snapshot) core.Action {
	target, action, ok := p.pickTarget(in, snap, "cancel")
	if !ok {
		return action
	}
	return core.Action{
		Kind:    core.ActionCommitted,
		Op:      &core.Op{Kind: core.OpDelete, Ref: target.Ref},
		Message: fmt.Sprintf("cancelled %q at %s", target.Summary, describeWindow(target.Window())),
	}
}

func (p *Planner) planFind(in *core.Intent, snap Snapshot) core.Action {
	window := snap.Window
	if in.Time != nil {
		// Ambiguity is acceptable for a lookup: nearest-future tie-break
		if res, err := timeparse.Resolve(*in.Time, snap.Now, p.cfg.Location, timeparse.Options{}); err == nil {
			window = dayBounds(res.Window, p.cfg.Location)
		}
	}

	events := p.matchEvents(in, snap.Events, window)
	return core.Action{
		Kind:    core.ActionFoundList,
		Events:  events,
		Message: fmt.Sprintf("%d event(s)", len(events)),
	}
}

func (p *Planner) planAvailability(in *core.Intent, snap Snapshot) core.Action {
	window := core.Window{Start: snap.Now, End: endOfDay(snap.Now.In(p.cfg.Location))}
	if in.Time != nil {
		if res, err := timeparse.Resolve(*in.Time, snap.Now, p.cfg.Location, timeparse.Options{}); err == nil {
			window = dayBounds(res.Window, p.cfg.Location)
		}
	}

	free := p.freeWorkHours(window, snap.Busy)
	msg := fmt.Sprintf("%d free slot(s)", len(free))
	if len(free) == 0 {
		msg = "fully booked"
	}
	return core.Action{Kind: core.ActionFreeSlots, Free: free, Message: msg}
}

// pickTarget locates the event a cancel or reschedule refers to. Exactly
// one match is required: zero fails with NotFound, several with
// AmbiguousTime so the user can narrow the request.
func (p *Planner) pickTarget(in *core.Intent, snap Snapshot, verb string) (core.Event, core.Action, bool) {
	window := snap.Window
	timeScoped := false
	if in.Time != nil && in.Kind == core.IntentCancel {
		if res, err := timeparse.Resolve(*in.Time, snap.Now, p.cfg.Location, timeparse.Options{}); err == nil {
			window = dayBounds(res.Window, p.cfg.Location)
			timeScoped = true
		}
	}

	matches := p.matchEvents(in, snap.Events, window)
	// Only future events can be cancelled or moved
	upcoming := matches[:0]
	for _, ev := range matches {
		if ev.End.After(snap.Now) {
			upcoming = append(upcoming, ev)
		}
	}

	switch len(upcoming) {
	case 0:
		return core.Event{}, core.Failed(core.ReasonNotFound,
			fmt.Sprintf("found no matching event to %s", verb)), false
	case 1:
		return upcoming[0], core.Action{}, true
	default:
		if !timeScoped && in.Kind == core.IntentReschedule {
			// Moving "my 1:1 with Sam" with several on the calendar:
			// take the next one, the usual meaning of the phrase.
			return upcoming[0], core.Action{}, true
		}
		return core.Event{}, core.Failed(core.ReasonAmbiguousTime,
			fmt.Sprintf("%d events match; name the day or time", len(upcoming))), false
	}
}

func (p *Planner) matchEvents(in *core.Intent, events []core.Event, window core.Window) []core.Event {
	filter := calendar.Filter{Participant: in.Participant, Summary: in.Subject}
	var out []core.Event
	for _, ev := range events {
		if !window.IsZero() && !window.Overlaps(ev.Window()) {
			continue
		}
		if filter.Matches(ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// alternatives proposes up to K free slots near the requested start,
// ranked by preference score, then proximity to the request, then start.
func (p *Planner) alternatives(snap Snapshot, profile *preference.Profile, requested time.Time, duration time.Duration) []core.CandidateSlot {
	return p.rankedAlternatives(snap, profile, requested, duration, snap.Busy)
}

func (p *Planner) alternativesExcluding(snap Snapshot, profile *preference.Profile, requested time.Time, duration time.Duration, exclude core.EventRef) []core.CandidateSlot {
	return p.rankedAlternatives(snap, profile, requested, duration, availability.Exclude(snap.Busy, exclude))
}

func (p *Planner) rankedAlternatives(snap Snapshot, profile *preference.Profile, requested time.Time, duration time.Duration, busy []core.BusyInterval) []core.CandidateSlot {
	slots := p.candidateSlots(snap, profile, snap.Window, duration, busy)

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score != slots[j].Score {
			return slots[i].Score > slots[j].Score
		}
		di, dj := absGap(slots[i].Window.Start, requested), absGap(slots[j].Window.Start, requested)
		if di != dj {
			return di < dj
		}
		return slots[i].Window.Start.Before(slots[j].Window.Start)
	})

	if len(slots) > p.cfg.Alternatives {
		slots = slots[:p.cfg.Alternatives]
	}
	return slots
}

// candidates is rankedAlternatives without the proximity tie-break: best
// score first, earliest start on ties. Used when the user named a range,
// not a point.
func (p *Planner) candidates(snap Snapshot, profile *preference.Profile, window core.Window, duration time.Duration, busy []core.BusyInterval) []core.CandidateSlot {
	slots := p.candidateSlots(snap, profile, window, duration, busy)
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score != slots[j].Score {
			return slots[i].Score > slots[j].Score
		}
		return slots[i].Window.Start.Before(slots[j].Window.Start)
	})
	return slots
}

// candidateSlots generates free slots on half-hour boundaries inside work
// hours, scored against the profile. Deterministic given its inputs.
func (p *Planner) candidateSlots(snap Snapshot, profile *preference.Profile, window core.Window, duration time.Duration, busy []core.BusyInterval) []core.CandidateSlot {
	start := window.Start
	if start.Before(snap.Now) {
		start = snap.Now
	}
	start = nextHalfHour(start.In(p.cfg.Location))

	var slots []core.CandidateSlot
	for t := start; t.Add(duration).Before(window.End) || t.Add(duration).Equal(window.End); t = t.Add(30 * time.Minute) {
		if !p.insideWorkday(t, duration) {
			continue
		}
		candidate := core.Window{Start: t, End: t.Add(duration)}
		if !availability.IsFree(candidate, busy) {
			continue
		}
		slots = append(slots, core.CandidateSlot{
			Window: candidate,
			Score:  profile.Score(candidate, p.cfg.Weights),
		})
	}
	return slots
}

func (p *Planner) insideWorkday(start time.Time, duration time.Duration) bool {
	end := start.Add(duration)
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), p.cfg.WorkdayStart, 0, 0, 0, start.Location())
	dayEnd := time.Date(start.Year(), start.Month(), start.Day(), p.cfg.WorkdayEnd, 0, 0, 0, start.Location())
	return !start.Before(dayStart) && !end.After(dayEnd)
}

// freeWorkHours computes free slots per day, clipped to work hours
func (p *Planner) freeWorkHours(window core.Window, busy []core.BusyInterval) []core.Window {
	var free []core.Window
	day := startOfDay(window.Start.In(p.cfg.Location))
	for day.Before(window.End) {
		work := core.Window{
			Start: day.Add(time.Duration(p.cfg.WorkdayStart) * time.Hour),
			End:   day.Add(time.Duration(p.cfg.WorkdayEnd) * time.Hour),
		}
		if work.Start.Before(window.Start) {
			work.Start = window.Start
		}
		if work.End.After(window.End) {
			work.End = window.End
		}
		free = append(free, availability.FreeSlots(work, busy)...)
		day = day.AddDate(0, 0, 1)
	}
	return free
}

func (p *Planner) createOp(in *core.Intent, window core.Window) *core.Op {
	summary := in.Subject
	if summary == "" {
		if in.Participant != "" {
			summary = "Meeting with " + in.Participant
		} else {
			summary = "Meeting"
		}
	}
	op := &core.Op{Kind: core.OpCreate, Window: window, Summary: summary}
	if in.Participant != "" {
		op.Participants = []string{in.Participant}
	}
	return op
}

func nextHalfHour(t time.Time) time.Time {
	truncated := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	for truncated.Before(t) {
		truncated = truncated.Add(30 * time.Minute)
	}
	return truncated
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}

// dayBounds widens a point window to its whole day so lookups scoped to
// "tomorrow at 2pm" still show the day's context; range windows pass
// through unchanged.
func dayBounds(w core.Window, loc *time.Location) core.Window {
	if w.Duration() >= 24*time.Hour {
		return w
	}
	start := startOfDay(w.Start.In(loc))
	return core.Window{Start: start, End: start.AddDate(0, 0, 1)}
}

func absGap(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

func describeWindow(w core.Window) string {
	return fmt.Sprintf("%s - %s",
		w.Start.Format("Mon Jan 2 15:04"), w.End.Format("15:04"))
}
