package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// --- Mock finalizer / notifier ---

type mockFinalizer struct {
	records []Record
	err     error
	onCall  func()
}

func (f *mockFinalizer) Finalize(_ context.Context, r Record) (SavedProfile, error) {
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return SavedProfile{}, f.err
	}
	f.records = append(f.records, r)
	return SavedProfile{Record: r, ID: "p-1"}, nil
}

type mockNotifier struct {
	saved []SavedProfile
}

func (n *mockNotifier) NotifySubmitted(_ context.Context, p SavedProfile) {
	n.saved = append(n.saved, p)
}

func fillStep(t *testing.T, s *Session, step Step) {
	t.Helper()
	var fields map[string]any
	switch step {
	case StepBasicInfo:
		fields = map[string]any{
			FieldName:           "Jane Doe",
			FieldBio:            "Reading specialist",
			FieldProfilePicture: testPicture,
		}
	case StepExpertise:
		fields = map[string]any{
			FieldSpecializations:   []string{"Dyslexia"},
			FieldServices:          []string{"Tutoring", "Assessment"},
			FieldYearsOfExperience: "8",
		}
	case StepContact:
		fields = map[string]any{
			FieldEmail:        "jane@example.com",
			FieldPhone:        "555-123-4567",
			FieldWorkingHours: []string{"Monday", "Friday"},
		}
	}
	for name, v := range fields {
		if err := s.SetField(name, v); err != nil {
			t.Fatalf("SetField(%s): %v", name, err)
		}
	}
}

// --- Tests ---

func TestSession_InitialState(t *testing.T) {
	s := NewSession(&mockFinalizer{})

	if s.Step() != StepBasicInfo {
		t.Errorf("Step = %d, want %d", s.Step(), StepBasicInfo)
	}
	if diff := cmp.Diff(NewRecord(), s.Record()); diff != "" {
		t.Errorf("initial record mismatch (-want +got):\n%s", diff)
	}
	if len(s.Errors()) != 0 {
		t.Errorf("expected no errors, got %v", s.Errors())
	}
}

func TestSession_NextFromEmptyStep1(t *testing.T) {
	s := NewSession(&mockFinalizer{})

	moved, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if moved {
		t.Error("Next moved despite validation failure")
	}
	if s.Step() != StepBasicInfo {
		t.Errorf("Step = %d, want 1", s.Step())
	}

	want := ErrorMap{
		FieldName:           MsgNameRequired,
		FieldBio:            MsgBioRequired,
		FieldProfilePicture: MsgPictureRequired,
	}
	if diff := cmp.Diff(want, s.Errors()); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}

	fillStep(t, s, StepBasicInfo)
	moved, err = s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !moved || s.Step() != StepExpertise {
		t.Fatalf("moved=%v step=%d, want moved to step 2", moved, s.Step())
	}
	if len(s.Errors()) != 0 {
		t.Errorf("expected empty errors after successful Next, got %v", s.Errors())
	}
}

func TestSession_NextAdvancesExactlyOneStep(t *testing.T) {
	s := NewSession(&mockFinalizer{})

	fillStep(t, s, StepBasicInfo)
	fillStep(t, s, StepExpertise)
	fillStep(t, s, StepContact)

	for want := StepExpertise; want <= StepContact; want++ {
		if _, err := s.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
		if s.Step() != want {
			t.Fatalf("Step = %d, want %d", s.Step(), want)
		}
	}

	if _, err := s.Next(); !errors.Is(err, ErrNoNextStep) {
		t.Errorf("Next on last step error = %v, want ErrNoNextStep", err)
	}
	if s.Step() != StepContact {
		t.Errorf("Step = %d, want 3", s.Step())
	}
}

func TestSession_PreviousIgnoresValidation(t *testing.T) {
	s := NewSession(&mockFinalizer{})
	fillStep(t, s, StepBasicInfo)
	s.Next()

	// Step 2 is empty and invalid; going back must still work.
	if !s.Previous() {
		t.Fatal("Previous did not move from step 2")
	}
	if s.Step() != StepBasicInfo {
		t.Errorf("Step = %d, want 1", s.Step())
	}

	if s.Previous() {
		t.Error("Previous moved past step 1")
	}
	if s.Step() != StepBasicInfo {
		t.Errorf("Step = %d, want 1", s.Step())
	}
}

func TestSession_SetFieldReadBack(t *testing.T) {
	s := NewSession(&mockFinalizer{})

	values := map[string]any{
		FieldName:              "Jane",
		FieldBio:               "bio",
		FieldProfilePicture:    testPicture,
		FieldSpecializations:   []string{"ADHD", "Dyslexia"},
		FieldServices:          []string{"Coaching"},
		FieldYearsOfExperience: "3",
		FieldEmail:             "a@b.c",
		FieldPhone:             "5551234567",
		FieldWorkingHours:      []Weekday{Tuesday, Sunday},
	}
	for name, v := range values {
		if err := s.SetField(name, v); err != nil {
			t.Fatalf("SetField(%s): %v", name, err)
		}
		got, err := s.Field(name)
		if err != nil {
			t.Fatalf("Field(%s): %v", name, err)
		}
		if diff := cmp.Diff(v, got); diff != "" {
			t.Errorf("Field(%s) mismatch (-set +got):\n%s", name, diff)
		}
	}
}

func TestSession_SetFieldFromJSONValues(t *testing.T) {
	s := NewSession(&mockFinalizer{})

	if err := s.SetField(FieldServices, []any{"Therapy"}); err != nil {
		t.Fatalf("SetField(services): %v", err)
	}
	if err := s.SetField(FieldYearsOfExperience, float64(4)); err != nil {
		t.Fatalf("SetField(yearsOfExperience): %v", err)
	}
	if err := s.SetField(FieldWorkingHours, []any{"monday"}); err != nil {
		t.Fatalf("SetField(workingHours): %v", err)
	}

	r := s.Record()
	if diff := cmp.Diff([]string{"Therapy"}, r.Services); diff != "" {
		t.Errorf("services mismatch: %s", diff)
	}
	if r.YearsOfExperience != "4" {
		t.Errorf("YearsOfExperience = %q, want %q", r.YearsOfExperience, "4")
	}
	if diff := cmp.Diff([]Weekday{Monday}, r.WorkingHours); diff != "" {
		t.Errorf("workingHours mismatch: %s", diff)
	}
}

func TestSession_SetFieldErrors(t *testing.T) {
	s := NewSession(&mockFinalizer{})

	if err := s.SetField("nickname", "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field error = %v, want ErrUnknownField", err)
	}

	var typeErr *FieldTypeError
	if err := s.SetField(FieldName, 42); !errors.As(err, &typeErr) {
		t.Errorf("wrong type error = %v, want *FieldTypeError", err)
	}
	if err := s.SetField(FieldWorkingHours, []string{"Someday"}); !errors.As(err, &typeErr) {
		t.Errorf("bad weekday error = %v, want *FieldTypeError", err)
	}
}

func TestSession_SetFieldClearsOnlyThatError(t *testing.T) {
	s := NewSession(&mockFinalizer{})
	s.Next()

	if err := s.SetField(FieldName, ""); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	want := ErrorMap{
		FieldBio:            MsgBioRequired,
		FieldProfilePicture: MsgPictureRequired,
	}
	if diff := cmp.Diff(want, s.Errors()); diff != "" {
		t.Errorf("visible errors mismatch (-want +got):\n%s", diff)
	}

	// The authoritative result still knows the name is invalid.
	if s.ValidationErrors()[FieldName] != MsgNameRequired {
		t.Errorf("ValidationErrors lost the name error: %v", s.ValidationErrors())
	}

	// The next gate check shows it again.
	s.Next()
	if s.Errors()[FieldName] != MsgNameRequired {
		t.Errorf("name error not restored after re-validation: %v", s.Errors())
	}
}

func TestSession_ValidationReplacesErrors(t *testing.T) {
	s := NewSession(&mockFinalizer{})
	fillStep(t, s, StepBasicInfo)
	s.Next()

	// Fail step 2, go back, and validate step 1 again.
	s.Next()
	if len(s.Errors()) == 0 {
		t.Fatal("expected step 2 errors")
	}
	s.Previous()
	s.Next()

	if len(s.Errors()) != 0 {
		t.Errorf("step 2 errors should have been replaced, got %v", s.Errors())
	}
}

func TestSession_SubmitFinalizesAndResets(t *testing.T) {
	fin := &mockFinalizer{}
	notif := &mockNotifier{}
	s := NewSession(fin, WithNotifier(notif))

	for step := FirstStep; step <= LastStep; step++ {
		fillStep(t, s, step)
	}
	s.Next()
	s.Next()

	saved, ok, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !ok {
		t.Fatalf("Submit failed validation: %v", s.Errors())
	}
	if saved.ID != "p-1" {
		t.Errorf("saved.ID = %q, want p-1", saved.ID)
	}
	if len(fin.records) != 1 {
		t.Fatalf("finalized %d records, want 1", len(fin.records))
	}
	if fin.records[0].Email != "jane@example.com" {
		t.Errorf("finalized email = %q", fin.records[0].Email)
	}
	if len(notif.saved) != 1 {
		t.Errorf("notified %d times, want 1", len(notif.saved))
	}

	if s.Step() != StepBasicInfo {
		t.Errorf("Step after submit = %d, want 1", s.Step())
	}
	if diff := cmp.Diff(NewRecord(), s.Record()); diff != "" {
		t.Errorf("record not reset (-want +got):\n%s", diff)
	}
}

func TestSession_SubmitValidationFailure(t *testing.T) {
	fin := &mockFinalizer{}
	s := NewSession(fin)
	fillStep(t, s, StepBasicInfo)
	fillStep(t, s, StepExpertise)
	s.Next()
	s.Next()

	s.SetField(FieldEmail, "not-an-email")
	_, ok, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ok {
		t.Fatal("Submit succeeded with invalid step 3")
	}
	if len(fin.records) != 0 {
		t.Errorf("finalizer called %d times, want 0", len(fin.records))
	}
	if s.Errors()[FieldEmail] != MsgEmailInvalid {
		t.Errorf("email error = %q, want %q", s.Errors()[FieldEmail], MsgEmailInvalid)
	}
	if s.Step() != StepContact {
		t.Errorf("Step = %d, want 3", s.Step())
	}
}

func TestSession_SubmitBeforeLastStep(t *testing.T) {
	s := NewSession(&mockFinalizer{})
	if _, _, err := s.Submit(context.Background()); !errors.Is(err, ErrNotFinalStep) {
		t.Errorf("error = %v, want ErrNotFinalStep", err)
	}
}

func TestSession_SubmitFinalizeErrorKeepsDraft(t *testing.T) {
	fin := &mockFinalizer{err: errors.New("disk full")}
	s := NewSession(fin)
	for step := FirstStep; step <= LastStep; step++ {
		fillStep(t, s, step)
	}
	s.Next()
	s.Next()

	_, ok, err := s.Submit(context.Background())
	if err == nil || ok {
		t.Fatalf("Submit ok=%v err=%v, want failure", ok, err)
	}
	if s.Step() != StepContact {
		t.Errorf("Step = %d, want 3", s.Step())
	}
	if s.Record().Name != "Jane Doe" {
		t.Errorf("draft lost after failed finalize")
	}

	// The latch is released: a retry reaches the finalizer again.
	fin.err = nil
	if _, ok, err := s.Submit(context.Background()); err != nil || !ok {
		t.Errorf("retry ok=%v err=%v", ok, err)
	}
}

func TestSession_SubmitLatch(t *testing.T) {
	fin := &mockFinalizer{}
	s := NewSession(fin)
	for step := FirstStep; step <= LastStep; step++ {
		fillStep(t, s, step)
	}
	s.Next()
	s.Next()

	var reentrant error
	fin.onCall = func() {
		_, _, reentrant = s.Submit(context.Background())
	}

	if _, ok, err := s.Submit(context.Background()); err != nil || !ok {
		t.Fatalf("Submit ok=%v err=%v", ok, err)
	}
	if !errors.Is(reentrant, ErrSubmitInProgress) {
		t.Errorf("re-entrant Submit error = %v, want ErrSubmitInProgress", reentrant)
	}
}

func TestSession_State(t *testing.T) {
	s := NewSession(&mockFinalizer{})
	fillStep(t, s, StepBasicInfo)
	s.Next()

	st := s.State()
	if st.Step != StepExpertise || st.Title != "Services & Expertise" || st.Progress != 50 {
		t.Errorf("State = step %d title %q progress %d", st.Step, st.Title, st.Progress)
	}
	if st.Record.Name != "Jane Doe" {
		t.Errorf("State.Record.Name = %q", st.Record.Name)
	}
}
