// Package assistant orchestrates one request end to end: parse the
// utterance, snapshot the calendar, plan, execute the resulting mutation,
// and record history for preference learning.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/core"
	"github.com/slotwise/slotwise/internal/history"
	"github.com/slotwise/slotwise/internal/intent"
	"github.com/slotwise/slotwise/internal/logging"
	"github.com/slotwise/slotwise/internal/planner"
	"github.com/slotwise/slotwise/internal/preference"
)

// Config controls request handling
type Config struct {
	Lookahead    time.Duration // snapshot range from now
	StoreTimeout time.Duration // per backend call
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Lookahead:    7 * 24 * time.Hour,
		StoreTimeout: 10 * time.Second,
	}
}

// Request is one utterance to handle. A zero Now means time.Now; tests
// pin it for determinism.
type Request struct {
	Text string    `json:"text"`
	Now  time.Time `json:"now,omitempty"`
}

// Response reports what the assistant understood and did
type Response struct {
	Intent *core.Intent `json:"intent,omitempty"`
	Action core.Action  `json:"action"`
}

// Service handles natural-language calendar requests
type Service struct {
	store   calendar.Store
	history *history.Store
	prefs   *preference.Cache
	planner *planner.Planner
	cfg     Config
	log     *logging.Logger
}

// New creates the service. history and prefs may be nil, which disables
// learning but not planning.
func New(store calendar.Store, hist *history.Store, prefs *preference.Cache, pl *planner.Planner, cfg Config) *Service {
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 7 * 24 * time.Hour
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	return &Service{
		store:   store,
		history: hist,
		prefs:   prefs,
		planner: pl,
		cfg:     cfg,
		log:     logging.WithField("component", "assistant"),
	}
}

// Handle processes one utterance. Recoverable problems (unparseable
// text, ambiguous times, conflicts) come back as Failed or Conflicted
// actions, not errors; the error return is reserved for backend failures
// the caller may want to retry.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	in, err := intent.Parse(req.Text)
	if err != nil {
		if errors.Is(err, core.ErrUnrecognizedCommand) {
			return Response{
				Action: core.Failed(core.ReasonUnrecognized, "could not understand that; try \"schedule a meeting with Alex tomorrow at 2pm\""),
			}, nil
		}
		return Response{}, fmt.Errorf("failed to parse request: %w", err)
	}

	snap, err := s.snapshot(ctx, now)
	if err != nil {
		s.log.WithField("error", err.Error()).Error("calendar snapshot failed")
		return Response{
			Intent: in,
			Action: core.Failed(core.ReasonStoreError, "calendar backend unavailable"),
		}, err
	}

	action := s.planner.Plan(in, snap, s.profile())

	if action.Kind == core.ActionCommitted {
		action = s.execute(ctx, in, action)
	}

	s.log.WithFields(map[string]interface{}{
		"intent": string(in.Kind),
		"action": string(action.Kind),
	}).Info("request handled")

	return Response{Intent: in, Action: action}, nil
}

// snapshot fetches the planning window once; the planner never re-reads
func (s *Service) snapshot(ctx context.Context, now time.Time) (planner.Snapshot, error) {
	window := core.Window{Start: now, End: now.Add(s.cfg.Lookahead)}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	events, err := s.store.ListEvents(ctx, window, calendar.Filter{})
	if err != nil {
		return planner.Snapshot{}, fmt.Errorf("failed to list events: %w", err)
	}
	return planner.Snapshot{
		Now:    now,
		Window: window,
		Events: events,
		Busy:   calendar.BusyFrom(events),
	}, nil
}

func (s *Service) profile() *preference.Profile {
	if s.prefs == nil {
		return nil
	}
	return s.prefs.Profile()
}

// execute applies a committed plan's op to the store and fills in the
// resulting ref. Failures downgrade the action rather than erroring:
// the plan itself was sound.
func (s *Service) execute(ctx context.Context, in *core.Intent, action core.Action) core.Action {
	if err := ctx.Err(); err != nil {
		return core.Failed(core.ReasonStoreError, "request cancelled before commit")
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	op := action.Op
	switch op.Kind {
	case core.OpCreate:
		ref, err := s.store.CreateEvent(opCtx, calendar.CreateRequest{
			Summary:      op.Summary,
			Start:        op.Window.Start,
			End:          op.Window.End,
			Participants: op.Participants,
		})
		if err != nil {
			return s.storeFailure("create", err)
		}
		action.Ref = ref
		s.record(ctx, core.Event{
			Ref:          ref,
			Summary:      op.Summary,
			Start:        op.Window.Start,
			End:          op.Window.End,
			Participants: op.Participants,
		})

	case core.OpUpdate:
		if err := s.store.UpdateEvent(opCtx, op.Ref, op.Window); err != nil {
			return s.storeFailure("update", err)
		}
		action.Ref = op.Ref
		s.record(ctx, core.Event{
			Ref:          op.Ref,
			Summary:      op.Summary,
			Start:        op.Window.Start,
			End:          op.Window.End,
			Participants: op.Participants,
		})

	case core.OpDelete:
		if err := s.store.DeleteEvent(opCtx, op.Ref); err != nil {
			return s.storeFailure("delete", err)
		}
		action.Ref = op.Ref
		s.forget(ctx, op.Ref)
	}

	return action
}

func (s *Service) storeFailure(op string, err error) core.Action {
	switch {
	case errors.Is(err, core.ErrReadOnlyStore):
		return core.Failed(core.ReasonStoreError, "this calendar is read-only; booking is disabled")
	case errors.Is(err, core.ErrNotFound):
		return core.Failed(core.ReasonNotFound, "the event no longer exists")
	default:
		s.log.WithFields(map[string]interface{}{
			"op":    op,
			"error": err.Error(),
		}).Error("calendar mutation failed")
		return core.Failed(core.ReasonStoreError, fmt.Sprintf("failed to %s event", op))
	}
}

// record feeds the mutation into history; learning is best-effort and
// never fails the request
func (s *Service) record(ctx context.Context, ev core.Event) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, ev); err != nil {
		s.log.WithField("error", err.Error()).Warn("failed to record history")
	}
}

func (s *Service) forget(ctx context.Context, ref core.EventRef) {
	if s.history == nil {
		return
	}
	if err := s.history.Forget(ctx, ref); err != nil {
		s.log.WithField("error", err.Error()).Warn("failed to forget history")
	}
}
