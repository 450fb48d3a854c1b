// Package intent classifies utterances into calendar operations and
// extracts their slots. Classification is keyword driven; slot extraction
// never fabricates a value the text does not contain.
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/core"
	"github.com/slotwise/slotwise/internal/timeparse"
)

var (
	rescheduleRe   = regexp.MustCompile(`(?i)\b(reschedule|move|shift)\b`)
	cancelRe       = regexp.MustCompile(`(?i)\b(cancel|remove|delete)\b`)
	availabilityRe = regexp.MustCompile(`(?i)\b(free|available|availability)\b`)
	findTimeRe     = regexp.MustCompile(`(?i)\bfind\b[\w\s-]*?\b(?:time|slot)s?\b`)
	scheduleRe     = regexp.MustCompile(`(?i)\b(schedule|book|set\s+up|arrange)\b`)
	findRe         = regexp.MustCompile(`(?i)\b(find|show|list|what|when)\b`)

	participantRe      = regexp.MustCompile(`\bwith\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)?)`)
	participantLooseRe = regexp.MustCompile(`(?i)\bwith\s+([a-z]+)`)
	durationRe         = regexp.MustCompile(`(?i)\b(\d+)[\s-]*(hours?|hrs?|minutes?|mins?)\b`)
	subjectRe          = regexp.MustCompile(`(?i)\b(?:about|regarding)\s+(.+)$`)
)

// Words that follow "with <Name>" but are not part of a name
var temporalWords = map[string]bool{
	"today": true, "tomorrow": true, "tonight": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"next": true, "this": true, "at": true, "on": true, "in": true, "for": true,
}

var looseStopwords = map[string]bool{
	"me": true, "my": true, "the": true, "a": true, "an": true,
	"him": true, "her": true, "them": true,
}

// Parse turns one utterance into a structured Intent. Utterances with no
// recognizable operation keyword fail with core.ErrUnrecognizedCommand;
// the caller should re-prompt.
func Parse(utterance string) (*core.Intent, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", core.ErrUnrecognizedCommand)
	}

	kind, ok := classify(text)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnrecognizedCommand, text)
	}

	in := &core.Intent{Kind: kind}

	if expr, _, found := timeparse.Extract(text); found {
		in.Time = &expr
	}

	// A duration only makes sense where a window length matters; a Cancel
	// or Find intent never carries one.
	switch kind {
	case core.IntentSchedule, core.IntentReschedule, core.IntentCheckAvailability:
		in.Duration = extractDuration(text)
	}

	in.Participant = extractParticipant(text)
	in.Subject = extractSubject(text, in)

	return in, nil
}

// classify picks the intent kind from operation keywords. Order matters:
// "reschedule" contains "schedule", and "find a time" is a scheduling
// request while "find my meetings" is a lookup.
func classify(text string) (core.IntentKind, bool) {
	switch {
	case rescheduleRe.MatchString(text):
		return core.IntentReschedule, true
	case cancelRe.MatchString(text):
		return core.IntentCancel, true
	case availabilityRe.MatchString(text):
		return core.IntentCheckAvailability, true
	case findTimeRe.MatchString(text), scheduleRe.MatchString(text):
		return core.IntentSchedule, true
	case findRe.MatchString(text):
		return core.IntentFind, true
	default:
		return "", false
	}
}

func extractDuration(text string) time.Duration {
	m := durationRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		return time.Duration(n) * time.Hour
	}
	return time.Duration(n) * time.Minute
}

func extractParticipant(text string) string {
	if m := participantRe.FindStringSubmatch(text); m != nil {
		return trimTemporalTail(m[1])
	}
	if m := participantLooseRe.FindStringSubmatch(text); m != nil {
		word := strings.ToLower(m[1])
		if !looseStopwords[word] && !temporalWords[word] {
			return m[1]
		}
	}
	return ""
}

// trimTemporalTail drops a capitalized temporal word that the proper-noun
// pattern swallowed, e.g. "with Alex Tomorrow".
func trimTemporalTail(name string) string {
	parts := strings.Fields(name)
	for len(parts) > 0 && temporalWords[strings.ToLower(parts[len(parts)-1])] {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}

func extractSubject(text string, in *core.Intent) string {
	m := subjectRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	subject := m[1]

	// The subject capture runs to end of line; strip any temporal phrase
	// or participant clause that follows it.
	if in.Time != nil && in.Time.Raw != "" {
		if idx := strings.Index(subject, in.Time.Raw); idx >= 0 {
			subject = subject[:idx]
		}
	}
	if in.Participant != "" {
		if idx := strings.Index(subject, "with "+in.Participant); idx >= 0 {
			subject = subject[:idx]
		}
	}
	return strings.Trim(subject, " ,.")
}
