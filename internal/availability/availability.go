// Package availability computes free intervals over a set of busy
// intervals and validates proposed bookings against them. All functions
// are pure; the busy set is a read-only point-in-time view owned by the
// caller.
package availability

import (
	"sort"
	"time"

	"github.com/slotwise/slotwise/internal/core"
)

// Merge sorts busy intervals by start and coalesces overlapping or
// adjacent ones. Intervals violating start < end are dropped.
func Merge(busy []core.BusyInterval) []core.Window {
	valid := make([]core.Window, 0, len(busy))
	for _, b := range busy {
		if b.Start.Before(b.End) {
			valid = append(valid, b.Window())
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	merged := valid[:1]
	for _, w := range valid[1:] {
		last := &merged[len(merged)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// FreeSlots returns the maximal free windows within window: the gaps
// between merged busy intervals, plus the stretches before the first and
// after the last, clipped to the window. Zero-length gaps (back-to-back
// meetings) are excluded.
func FreeSlots(window core.Window, busy []core.BusyInterval) []core.Window {
	if window.IsZero() {
		return nil
	}

	free := make([]core.Window, 0, len(busy)+1)
	cursor := window.Start

	for _, b := range Merge(busy) {
		if !b.End.After(window.Start) || !b.Start.Before(window.End) {
			continue
		}
		if b.Start.After(cursor) {
			end := b.Start
			if end.After(window.End) {
				end = window.End
			}
			if end.After(cursor) {
				free = append(free, core.Window{Start: cursor, End: end})
			}
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if window.End.After(cursor) {
		free = append(free, core.Window{Start: cursor, End: window.End})
	}
	return free
}

// WouldConflict returns the busy intervals overlapping the candidate
// window, in start order. Empty means the candidate is free.
func WouldConflict(candidate core.Window, busy []core.BusyInterval) []core.BusyInterval {
	var conflicts []core.BusyInterval
	for _, b := range busy {
		if b.Start.Before(b.End) && candidate.Overlaps(b.Window()) {
			conflicts = append(conflicts, b)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts
}

// IsFree reports whether the candidate overlaps no busy interval
func IsFree(candidate core.Window, busy []core.BusyInterval) bool {
	return len(WouldConflict(candidate, busy)) == 0
}

// NextAvailable scans free slots chronologically from `from` up to the
// horizon and returns the first window of the requested length. ok is
// false when no slot of that length exists within the horizon.
func NextAvailable(from time.Time, duration time.Duration, busy []core.BusyInterval, horizon time.Duration) (core.Window, bool) {
	if duration <= 0 || horizon <= 0 {
		return core.Window{}, false
	}

	scan := core.Window{Start: from, End: from.Add(horizon)}
	for _, slot := range FreeSlots(scan, busy) {
		if slot.Duration() >= duration {
			return core.Window{Start: slot.Start, End: slot.Start.Add(duration)}, true
		}
	}
	return core.Window{}, false
}

// Exclude returns busy without the intervals belonging to ref. Used when
// rescheduling: an event never conflicts with itself.
func Exclude(busy []core.BusyInterval, ref core.EventRef) []core.BusyInterval {
	if ref == "" {
		return busy
	}
	out := make([]core.BusyInterval, 0, len(busy))
	for _, b := range busy {
		if b.Ref != ref {
			out = append(out, b)
		}
	}
	return out
}
