package intent

import (
	"errors"
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/core"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name string
		text string
		want core.IntentKind
	}{
		{name: "schedule verb", text: "Schedule a meeting with Alex tomorrow at 2pm", want: core.IntentSchedule},
		{name: "book verb", text: "book a room for 30 minutes", want: core.IntentSchedule},
		{name: "set up verb", text: "set up a sync with Taylor next week", want: core.IntentSchedule},
		{name: "arrange verb", text: "arrange a call with Sam", want: core.IntentSchedule},
		{name: "find a time is scheduling", text: "find a time for a meeting with Jordan", want: core.IntentSchedule},
		{name: "find meetings is lookup", text: "find all meetings with Morgan", want: core.IntentFind},
		{name: "show is lookup", text: "show my calendar for next monday", want: core.IntentFind},
		{name: "what is lookup", text: "what do I have tomorrow", want: core.IntentFind},
		{name: "cancel", text: "cancel my meeting with Alex on friday", want: core.IntentCancel},
		{name: "remove", text: "remove the standup tomorrow", want: core.IntentCancel},
		{name: "reschedule", text: "reschedule my 1:1 with Sam to thursday at 4pm", want: core.IntentReschedule},
		{name: "move", text: "move the design review to tomorrow at 10am", want: core.IntentReschedule},
		{name: "free is availability", text: "when am I free tomorrow", want: core.IntentCheckAvailability},
		{name: "availability", text: "check my availability for friday", want: core.IntentCheckAvailability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.text, err)
			}
			if in.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", in.Kind, tt.want)
			}
		})
	}
}

func TestParseUnrecognized(t *testing.T) {
	for _, text := range []string{
		"",
		"hello there",
		"make me a sandwich",
	} {
		_, err := Parse(text)
		if !errors.Is(err, core.ErrUnrecognizedCommand) {
			t.Errorf("Parse(%q) err = %v, want ErrUnrecognizedCommand", text, err)
		}
	}
}

// The canonical slot-extraction example: participant and time reference
// extracted, duration left unset because the text has none.
func TestParseScheduleWithAlex(t *testing.T) {
	in, err := Parse("Schedule a meeting with Alex tomorrow at 2pm")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if in.Kind != core.IntentSchedule {
		t.Errorf("Kind = %q, want schedule", in.Kind)
	}
	if in.Participant != "Alex" {
		t.Errorf("Participant = %q, want Alex", in.Participant)
	}
	if in.Time == nil {
		t.Fatal("Time = nil, want extracted expression")
	}
	if in.Time.Raw != "tomorrow at 2pm" {
		t.Errorf("Time.Raw = %q, want %q", in.Time.Raw, "tomorrow at 2pm")
	}
	if in.Duration != 0 {
		t.Errorf("Duration = %v, want unset", in.Duration)
	}
}

func TestParseSlotExtraction(t *testing.T) {
	tests := []struct {
		name            string
		text            string
		wantParticipant string
		wantDuration    time.Duration
		wantSubject     string
	}{
		{
			name:            "full name",
			text:            "schedule a meeting with Alex Chen tomorrow",
			wantParticipant: "Alex Chen",
		},
		{
			name:            "lowercase participant",
			text:            "schedule a meeting with alex tomorrow",
			wantParticipant: "alex",
		},
		{
			name:         "duration in minutes",
			text:         "book a slot for 45 minutes tomorrow",
			wantDuration: 45 * time.Minute,
		},
		{
			name:         "duration in hours",
			text:         "schedule a review for 2 hours next monday",
			wantDuration: 2 * time.Hour,
		},
		{
			name:         "hyphenated duration",
			text:         "find a 1-hour slot next week",
			wantDuration: time.Hour,
		},
		{
			name:            "subject",
			text:            "schedule a meeting with Priya about the quarterly roadmap tomorrow at 3pm",
			wantParticipant: "Priya",
			wantSubject:     "the quarterly roadmap",
		},
		{
			name: "no participant is not fabricated",
			text: "what meetings do I have this week",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.text, err)
			}
			if in.Participant != tt.wantParticipant {
				t.Errorf("Participant = %q, want %q", in.Participant, tt.wantParticipant)
			}
			if in.Duration != tt.wantDuration {
				t.Errorf("Duration = %v, want %v", in.Duration, tt.wantDuration)
			}
			if in.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", in.Subject, tt.wantSubject)
			}
		})
	}
}

// A Cancel or Find intent never carries a duration, even when the text
// happens to contain one.
func TestParseNoImpossibleCombinations(t *testing.T) {
	in, err := Parse("cancel the 30 minutes sync with Alex tomorrow")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if in.Kind != core.IntentCancel {
		t.Fatalf("Kind = %q, want cancel", in.Kind)
	}
	if in.Duration != 0 {
		t.Errorf("Cancel intent carries Duration = %v, want unset", in.Duration)
	}
}
