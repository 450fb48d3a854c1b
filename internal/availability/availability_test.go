package availability

import (
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/core"
)

var day = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func busy(ref string, startHour, startMin, endHour, endMin int) core.BusyInterval {
	return core.BusyInterval{
		Start: at(startHour, startMin),
		End:   at(endHour, endMin),
		Ref:   core.EventRef(ref),
	}
}

func window(startHour, endHour int) core.Window {
	return core.Window{Start: at(startHour, 0), End: at(endHour, 0)}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []core.BusyInterval
		want []core.Window
	}{
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
		{
			name: "disjoint stay separate",
			in:   []core.BusyInterval{busy("a", 9, 0, 10, 0), busy("b", 11, 0, 12, 0)},
			want: []core.Window{window(9, 10), window(11, 12)},
		},
		{
			name: "overlapping coalesce",
			in:   []core.BusyInterval{busy("a", 9, 0, 10, 30), busy("b", 10, 0, 11, 0)},
			want: []core.Window{window(9, 11)},
		},
		{
			name: "adjacent coalesce",
			in:   []core.BusyInterval{busy("a", 9, 0, 10, 0), busy("b", 10, 0, 11, 0)},
			want: []core.Window{window(9, 11)},
		},
		{
			name: "unsorted input",
			in:   []core.BusyInterval{busy("b", 11, 0, 12, 0), busy("a", 9, 0, 10, 0)},
			want: []core.Window{window(9, 10), window(11, 12)},
		},
		{
			name: "contained interval absorbed",
			in:   []core.BusyInterval{busy("a", 9, 0, 13, 0), busy("b", 10, 0, 11, 0)},
			want: []core.Window{window(9, 13)},
		},
		{
			name: "invalid interval dropped",
			in:   []core.BusyInterval{busy("a", 10, 0, 9, 0), busy("b", 11, 0, 12, 0)},
			want: []core.Window{window(11, 12)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("Merge = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !got[i].Start.Equal(tt.want[i].Start) || !got[i].End.Equal(tt.want[i].End) {
					t.Errorf("Merge[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFreeSlots(t *testing.T) {
	tests := []struct {
		name   string
		window core.Window
		busy   []core.BusyInterval
		want   []core.Window
	}{
		{
			name:   "fully free day",
			window: window(9, 18),
			busy:   nil,
			want:   []core.Window{window(9, 18)},
		},
		{
			name:   "fully busy day",
			window: window(9, 18),
			busy:   []core.BusyInterval{busy("a", 9, 0, 18, 0)},
			want:   nil,
		},
		{
			name:   "gaps between meetings",
			window: window(9, 18),
			busy:   []core.BusyInterval{busy("a", 10, 0, 11, 0), busy("b", 14, 0, 15, 0)},
			want:   []core.Window{window(9, 10), window(11, 14), window(15, 18)},
		},
		{
			name:   "back to back leaves no zero-length slot",
			window: window(9, 12),
			busy:   []core.BusyInterval{busy("a", 9, 0, 10, 0), busy("b", 10, 0, 11, 0)},
			want:   []core.Window{window(11, 12)},
		},
		{
			name:   "busy interval spilling over window edges is clipped",
			window: window(9, 18),
			busy:   []core.BusyInterval{busy("a", 8, 0, 9, 30), busy("b", 17, 30, 19, 0)},
			want:   []core.Window{{Start: at(9, 30), End: at(17, 30)}},
		},
		{
			name:   "zero-length window",
			window: core.Window{Start: at(9, 0), End: at(9, 0)},
			busy:   []core.BusyInterval{busy("a", 9, 0, 10, 0)},
			want:   nil,
		},
		{
			name:   "busy outside window ignored",
			window: window(9, 12),
			busy:   []core.BusyInterval{busy("a", 14, 0, 15, 0)},
			want:   []core.Window{window(9, 12)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FreeSlots(tt.window, tt.busy)
			if len(got) != len(tt.want) {
				t.Fatalf("FreeSlots = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !got[i].Start.Equal(tt.want[i].Start) || !got[i].End.Equal(tt.want[i].End) {
					t.Errorf("FreeSlots[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// Free slots and merged busy intervals partition the window: together they
// cover it exactly and never overlap.
func TestFreeSlotsPartitionProperty(t *testing.T) {
	w := window(8, 20)
	busySets := [][]core.BusyInterval{
		nil,
		{busy("a", 9, 0, 10, 0)},
		{busy("a", 9, 0, 10, 0), busy("b", 10, 0, 11, 30), busy("c", 15, 0, 16, 0)},
		{busy("a", 7, 0, 9, 15), busy("b", 19, 0, 21, 0)},
		{busy("a", 8, 0, 20, 0)},
	}

	for _, bs := range busySets {
		free := FreeSlots(w, bs)
		merged := Merge(bs)

		// Clip merged to the window for coverage accounting
		var covered time.Duration
		for _, m := range merged {
			start, end := m.Start, m.End
			if start.Before(w.Start) {
				start = w.Start
			}
			if end.After(w.End) {
				end = w.End
			}
			if end.After(start) {
				covered += end.Sub(start)
			}
		}
		for _, f := range free {
			covered += f.Duration()
		}
		if covered != w.Duration() {
			t.Errorf("busy %v: covered %v, want %v", bs, covered, w.Duration())
		}

		for _, f := range free {
			for _, m := range merged {
				if f.Overlaps(m) {
					t.Errorf("free slot %v overlaps merged busy %v", f, m)
				}
			}
		}
	}
}

// WouldConflict is non-empty exactly when IsFree is false
func TestConflictConsistency(t *testing.T) {
	bs := []core.BusyInterval{busy("a", 10, 0, 11, 0), busy("b", 14, 0, 15, 0)}

	candidates := []core.Window{
		window(9, 10),
		{Start: at(10, 30), End: at(11, 30)},
		window(11, 14),
		{Start: at(9, 0), End: at(16, 0)},
		{Start: at(11, 0), End: at(14, 0)}, // touches both ends, overlaps neither
	}

	for _, c := range candidates {
		conflicts := WouldConflict(c, bs)
		if (len(conflicts) > 0) == IsFree(c, bs) {
			t.Errorf("candidate %v: WouldConflict=%d but IsFree=%v", c, len(conflicts), IsFree(c, bs))
		}
	}
}

func TestNextAvailable(t *testing.T) {
	bs := []core.BusyInterval{
		busy("a", 9, 0, 12, 0),
		busy("b", 12, 30, 17, 0),
	}

	t.Run("finds first fitting gap", func(t *testing.T) {
		got, ok := NextAvailable(at(9, 0), 30*time.Minute, bs, 24*time.Hour)
		if !ok {
			t.Fatal("no slot found")
		}
		if !got.Start.Equal(at(12, 0)) || !got.End.Equal(at(12, 30)) {
			t.Errorf("slot = %v, want [12:00, 12:30)", got)
		}
	})

	t.Run("skips gaps that are too short", func(t *testing.T) {
		got, ok := NextAvailable(at(9, 0), time.Hour, bs, 24*time.Hour)
		if !ok {
			t.Fatal("no slot found")
		}
		if !got.Start.Equal(at(17, 0)) {
			t.Errorf("slot start = %v, want 17:00", got.Start)
		}
	})

	t.Run("bounded by horizon", func(t *testing.T) {
		full := []core.BusyInterval{busy("x", 0, 0, 23, 0)}
		if _, ok := NextAvailable(at(0, 0), 2*time.Hour, full, 23*time.Hour); ok {
			t.Error("found slot beyond horizon")
		}
	})
}

// Same inputs, same ordered output: no hidden randomness
func TestFreeSlotsIdempotent(t *testing.T) {
	w := window(9, 18)
	bs := []core.BusyInterval{busy("b", 14, 0, 15, 0), busy("a", 10, 0, 11, 0)}

	first := FreeSlots(w, bs)
	second := FreeSlots(w, bs)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Errorf("slot %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestExclude(t *testing.T) {
	bs := []core.BusyInterval{busy("a", 9, 0, 10, 0), busy("b", 10, 0, 11, 0)}

	got := Exclude(bs, "a")
	if len(got) != 1 || got[0].Ref != "b" {
		t.Errorf("Exclude = %v, want only b", got)
	}
	if got := Exclude(bs, ""); len(got) != 2 {
		t.Errorf("Exclude with empty ref = %v, want unchanged", got)
	}
}
