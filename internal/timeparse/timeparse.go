// Package timeparse recognizes temporal phrases in free text and resolves
// them to absolute windows. Resolution is deterministic given a reference
// "now" and a time zone; both are always passed explicitly.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/core"
)

// Span marks where a time expression was found in the utterance
type Span struct {
	Start int
	End   int
}

// Options tune resolution
type Options struct {
	// Duration of the resolved window when the expression carries a clock
	// time. Zero falls back to 30 minutes.
	Duration time.Duration
}

// Resolution is the outcome of resolving one TimeExpression.
// Ambiguous means the documented tie-break (nearest future occurrence) was
// applied to an expression with more than one plausible reading; callers
// performing mutations should re-prompt instead of committing.
type Resolution struct {
	Window     core.Window
	Confidence float64
	Ambiguous  bool
}

var (
	relDayRe    = regexp.MustCompile(`(?i)\b(day after tomorrow|tomorrow|today)\b`)
	weekdayRe   = regexp.MustCompile(`(?i)\b(?:(this|next)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	offsetRe    = regexp.MustCompile(`(?i)\bin\s+(\d+)\s+days?\b`)
	weekRe      = regexp.MustCompile(`(?i)\b(this|next)\s+week\b`)
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	clockAmPmRe = regexp.MustCompile(`(?i)\b(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24Re   = regexp.MustCompile(`\b(?:at\s+)?([01]?\d|2[0-3]):([0-5]\d)\b`)
	namedTimeRe = regexp.MustCompile(`(?i)\b(?:at\s+)?(noon|midday|midnight)\b`)
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Extract pulls the temporal phrase out of an utterance. The returned span
// covers the full matched range so callers can cut the phrase from the text.
// ok is false when the text contains no recognizable temporal content.
func Extract(text string) (core.TimeExpression, Span, bool) {
	var expr core.TimeExpression
	span := Span{Start: len(text), End: 0}
	found := false

	mark := func(loc []int) {
		found = true
		if loc[0] < span.Start {
			span.Start = loc[0]
		}
		if loc[1] > span.End {
			span.End = loc[1]
		}
	}

	// Day component, most specific first
	if loc := isoDateRe.FindStringSubmatchIndex(text); loc != nil {
		y, _ := strconv.Atoi(text[loc[2]:loc[3]])
		m, _ := strconv.Atoi(text[loc[4]:loc[5]])
		d, _ := strconv.Atoi(text[loc[6]:loc[7]])
		expr.Day = core.DayDate
		expr.Date = time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
		mark(loc[:2])
	} else if loc := relDayRe.FindStringIndex(text); loc != nil {
		switch strings.ToLower(text[loc[0]:loc[1]]) {
		case "today":
			expr.Day = core.DayToday
		case "tomorrow":
			expr.Day = core.DayTomorrow
		default:
			expr.Day = core.DayAfterTomorrow
		}
		mark(loc)
	} else if loc := offsetRe.FindStringSubmatchIndex(text); loc != nil {
		n, _ := strconv.Atoi(text[loc[2]:loc[3]])
		expr.Day = core.DayOffset
		expr.Offset = n
		mark(loc[:2])
	} else if loc := weekRe.FindStringSubmatchIndex(text); loc != nil {
		if strings.EqualFold(text[loc[2]:loc[3]], "next") {
			expr.Day = core.DayNextWeek
		} else {
			expr.Day = core.DayThisWeek
		}
		mark(loc[:2])
	} else if loc := weekdayRe.FindStringSubmatchIndex(text); loc != nil {
		expr.Day = core.DayWeekday
		expr.Weekday = weekdayNames[strings.ToLower(text[loc[4]:loc[5]])]
		if loc[2] >= 0 {
			switch strings.ToLower(text[loc[2]:loc[3]]) {
			case "this":
				expr.Qualifier = core.QualifierThis
			case "next":
				expr.Qualifier = core.QualifierNext
			}
		}
		mark(loc[:2])
	}

	// Clock component
	if loc := clockAmPmRe.FindStringSubmatchIndex(text); loc != nil {
		hour, _ := strconv.Atoi(text[loc[2]:loc[3]])
		minute := 0
		if loc[4] >= 0 {
			minute, _ = strconv.Atoi(text[loc[4]:loc[5]])
		}
		period := strings.ToLower(text[loc[6]:loc[7]])
		if period == "pm" && hour != 12 {
			hour += 12
		} else if period == "am" && hour == 12 {
			hour = 0
		}
		expr.HasClock = true
		expr.Hour = hour
		expr.Minute = minute
		mark(loc[:2])
	} else if loc := namedTimeRe.FindStringSubmatchIndex(text); loc != nil {
		expr.HasClock = true
		if strings.EqualFold(text[loc[2]:loc[3]], "midnight") {
			expr.Hour = 0
		} else {
			expr.Hour = 12
		}
		mark(loc[:2])
	} else if loc := clock24Re.FindStringSubmatchIndex(text); loc != nil {
		hour, _ := strconv.Atoi(text[loc[2]:loc[3]])
		minute, _ := strconv.Atoi(text[loc[4]:loc[5]])
		expr.HasClock = true
		expr.Hour = hour
		expr.Minute = minute
		mark(loc[:2])
	}

	if !found {
		return core.TimeExpression{}, Span{}, false
	}

	expr.Raw = strings.TrimSpace(text[span.Start:span.End])
	return expr, span, true
}

// Resolve converts a TimeExpression to an absolute window relative to now
// in loc. Expressions with no resolvable day or clock fail with
// core.ErrAmbiguousTime.
//
// Tie-breaks, all deterministic:
//   - "next <weekday>" is the next occurrence strictly after today.
//   - a bare clock time is the nearest future occurrence of that time-of-day.
//   - a bare weekday resolves to the nearest future occurrence and is
//     flagged Ambiguous with reduced confidence.
func Resolve(expr core.TimeExpression, now time.Time, loc *time.Location, opts Options) (Resolution, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	duration := opts.Duration
	if duration <= 0 {
		duration = 30 * time.Minute
	}

	res := Resolution{Confidence: 0.95}

	// Week ranges resolve to the whole span; a clock time inside a week
	// range has no single day to attach to.
	switch expr.Day {
	case core.DayThisWeek:
		start := startOfDay(now, loc)
		res.Window = core.Window{Start: start, End: nextMonday(now, loc)}
		res.Confidence = 0.8
		return res, nil
	case core.DayNextWeek:
		start := nextMonday(now, loc)
		res.Window = core.Window{Start: start, End: start.AddDate(0, 0, 7)}
		res.Confidence = 0.85
		return res, nil
	}

	day, conf, ambiguous, err := resolveDay(expr, now, loc)
	if err != nil {
		return Resolution{}, err
	}
	res.Confidence = conf
	res.Ambiguous = ambiguous

	if expr.HasClock {
		start := time.Date(day.Year(), day.Month(), day.Day(), expr.Hour, expr.Minute, 0, 0, loc)
		// Bare clock time: nearest future occurrence of that time-of-day
		if expr.Day == core.DayNone && !start.After(now) {
			start = start.AddDate(0, 0, 1)
		}
		res.Window = core.Window{Start: start, End: start.Add(duration)}
		return res, nil
	}

	// Day only: the whole day
	res.Window = core.Window{Start: day, End: day.AddDate(0, 0, 1)}
	if res.Confidence > 0.8 {
		res.Confidence = 0.8
	}
	return res, nil
}

// resolveDay returns midnight of the referenced day
func resolveDay(expr core.TimeExpression, now time.Time, loc *time.Location) (time.Time, float64, bool, error) {
	today := startOfDay(now, loc)

	switch expr.Day {
	case core.DayDate:
		d := expr.Date
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), 1.0, false, nil

	case core.DayToday:
		return today, 0.95, false, nil

	case core.DayTomorrow:
		return today.AddDate(0, 0, 1), 0.95, false, nil

	case core.DayAfterTomorrow:
		return today.AddDate(0, 0, 2), 0.95, false, nil

	case core.DayOffset:
		return today.AddDate(0, 0, expr.Offset), 0.9, false, nil

	case core.DayWeekday:
		delta := (int(expr.Weekday) - int(now.Weekday()) + 7) % 7

		switch expr.Qualifier {
		case core.QualifierNext:
			// Strictly after today, never today itself
			if delta == 0 {
				delta = 7
			}
			return today.AddDate(0, 0, delta), 0.9, false, nil

		case core.QualifierThis:
			// Within the current Monday-based week when still ahead;
			// otherwise nearest future occurrence, flagged ambiguous.
			sinceMonday := (int(now.Weekday()) + 6) % 7
			targetSinceMonday := (int(expr.Weekday) + 6) % 7
			if targetSinceMonday >= sinceMonday {
				return today.AddDate(0, 0, targetSinceMonday-sinceMonday), 0.9, false, nil
			}
			if delta == 0 {
				delta = 7
			}
			return today.AddDate(0, 0, delta), 0.6, true, nil

		default:
			// Bare weekday: both this-week and next-week readings are
			// plausible. Tie-break to the nearest future occurrence and
			// let the caller decide whether to re-prompt.
			if delta == 0 {
				delta = 7
			}
			return today.AddDate(0, 0, delta), 0.55, true, nil
		}

	case core.DayNone:
		if !expr.HasClock {
			return time.Time{}, 0, false,
				fmt.Errorf("%w: %q has no day or time of day", core.ErrAmbiguousTime, expr.Raw)
		}
		return today, 0.85, false, nil

	default:
		return time.Time{}, 0, false,
			fmt.Errorf("%w: unsupported expression %q", core.ErrAmbiguousTime, expr.Raw)
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func nextMonday(t time.Time, loc *time.Location) time.Time {
	day := startOfDay(t, loc)
	delta := (int(time.Monday) - int(day.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return day.AddDate(0, 0, delta)
}
