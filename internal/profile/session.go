package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNoNextStep is returned by Next on the last step; use Submit there.
	ErrNoNextStep = errors.New("already on the last step")
	// ErrNotFinalStep is returned by Submit before the last step.
	ErrNotFinalStep = errors.New("submit is only allowed on the last step")
	// ErrSubmitInProgress is returned while another Submit has not returned.
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// Finalizer commits a completed record. Implemented by Manager.
type Finalizer interface {
	Finalize(ctx context.Context, r Record) (SavedProfile, error)
}

// Notifier is told about each successful submission. Implementations must
// not block: the call happens after the session has already reset.
type Notifier interface {
	NotifySubmitted(ctx context.Context, p SavedProfile)
}

// Session is one provider filling in the form. It owns the draft record, the
// last validation result and the current step. A Session is not safe for
// concurrent use; callers serialize access.
type Session struct {
	step       Step
	record     Record
	errors     ErrorMap
	dirty      map[string]bool
	submitting bool

	finalizer Finalizer
	notifier  Notifier
	logger    *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRecord starts the session from r instead of an empty record.
func WithRecord(r Record) SessionOption {
	return func(s *Session) {
		s.record = r.Clone()
	}
}

// WithNotifier sets the submission notifier.
func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates a session on the first step.
func NewSession(f Finalizer, opts ...SessionOption) *Session {
	s := &Session{
		step:      FirstStep,
		record:    NewRecord(),
		errors:    make(ErrorMap),
		dirty:     make(map[string]bool),
		finalizer: f,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Step returns the active step.
func (s *Session) Step() Step {
	return s.step
}

// Record returns a copy of the draft.
func (s *Session) Record() Record {
	return s.record.Clone()
}

// Field returns the current value of a single field.
func (s *Session) Field(name string) (any, error) {
	return s.record.Get(name)
}

// SetField updates one field and hides its error until the next validation.
// The validation result itself is left untouched, see ValidationErrors.
func (s *Session) SetField(name string, value any) error {
	if err := s.record.Set(name, value); err != nil {
		return err
	}
	s.dirty[name] = true
	return nil
}

// Errors returns the messages to display: the last validation result minus
// fields edited since.
func (s *Session) Errors() ErrorMap {
	visible := make(ErrorMap, len(s.errors))
	for field, msg := range s.errors {
		if !s.dirty[field] {
			visible[field] = msg
		}
	}
	return visible
}

// ValidationErrors returns the last validation result, including fields
// that were edited afterwards.
func (s *Session) ValidationErrors() ErrorMap {
	return s.errors.Clone()
}

// Validate checks the current step. The result replaces any previous one,
// including errors recorded for other steps.
func (s *Session) Validate() bool {
	s.errors = ValidateStep(s.step, s.record)
	clear(s.dirty)
	return len(s.errors) == 0
}

// Next moves to the following step if the current one validates. It reports
// whether the step changed.
func (s *Session) Next() (bool, error) {
	if s.step >= LastStep {
		return false, ErrNoNextStep
	}
	if !s.Validate() {
		return false, nil
	}
	s.step++
	return true, nil
}

// Previous moves back one step without validating. It reports whether the
// step changed; on the first step it does nothing.
func (s *Session) Previous() bool {
	if s.step <= FirstStep {
		return false
	}
	s.step--
	return true
}

// Submit validates the last step and finalizes the record. On success the
// session starts over on the first step with an empty record. ok is false
// when validation failed; the errors are then available from Errors.
func (s *Session) Submit(ctx context.Context) (saved SavedProfile, ok bool, err error) {
	if s.submitting {
		return SavedProfile{}, false, ErrSubmitInProgress
	}
	if s.step != LastStep {
		return SavedProfile{}, false, ErrNotFinalStep
	}

	s.submitting = true
	defer func() { s.submitting = false }()

	if !s.Validate() {
		return SavedProfile{}, false, nil
	}

	saved, err = s.finalizer.Finalize(ctx, s.record.Clone())
	if err != nil {
		s.logger.Error("finalizing profile failed", "error", err)
		return SavedProfile{}, false, fmt.Errorf("finalizing profile: %w", err)
	}

	s.reset()
	if s.notifier != nil {
		s.notifier.NotifySubmitted(ctx, saved)
	}
	return saved, true, nil
}

func (s *Session) reset() {
	s.step = FirstStep
	s.record = NewRecord()
	s.errors = make(ErrorMap)
	clear(s.dirty)
}

// State is a read-only snapshot of a session for rendering.
type State struct {
	Step     Step     `json:"step"`
	Title    string   `json:"title"`
	Progress int      `json:"progress"`
	Record   Record   `json:"record"`
	Errors   ErrorMap `json:"errors"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	return State{
		Step:     s.step,
		Title:    s.step.Title(),
		Progress: s.step.Progress(),
		Record:   s.record.Clone(),
		Errors:   s.Errors(),
	}
}
