package profile

import (
	"strings"
	"testing"
)

func TestDiffSaved_Identical(t *testing.T) {
	a := SavedProfile{Record: completeRecord(), ID: "a"}
	b := SavedProfile{Record: completeRecord(), ID: "b"}

	if got := DiffSaved(a, b); got != "" {
		t.Errorf("expected empty diff, got:\n%s", got)
	}
}

func TestDiffSaved_ChangedFields(t *testing.T) {
	a := SavedProfile{Record: completeRecord(), ID: "a"}
	changed := completeRecord()
	changed.Email = "new@example.com"
	changed.WorkingHours = []Weekday{Saturday}
	b := SavedProfile{Record: changed, ID: "b"}

	got := DiffSaved(a, b)

	for _, want := range []string{
		"--- a\n+++ b\n",
		"-email: jane@example.com\n",
		"+email: new@example.com\n",
		"-workingHours: Monday, Wednesday\n",
		"+workingHours: Saturday\n",
		" name: Jane Doe\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("diff missing %q:\n%s", want, got)
		}
	}
}

func TestDiffSaved_PictureShownAsSize(t *testing.T) {
	a := SavedProfile{Record: completeRecord(), ID: "a"}
	b := SavedProfile{Record: completeRecord(), ID: "b"}
	b.ProfilePicture = nil

	got := DiffSaved(a, b)
	if strings.Contains(got, "base64") {
		t.Errorf("picture payload leaked into diff:\n%s", got)
	}
	if !strings.Contains(got, "+profilePicture: -\n") {
		t.Errorf("missing picture removal line:\n%s", got)
	}
}
