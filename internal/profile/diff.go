package profile

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffSaved renders a line diff between two saved profiles. Lines only in a
// are prefixed with "-", lines only in b with "+". Returns "" when the
// records are identical.
func DiffSaved(a, b SavedProfile) string {
	before := renderRecord(a.Record)
	after := renderRecord(b.Record)
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n+++ %s\n", a.ID, b.ID)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix + line)
		}
	}
	return out.String()
}

// renderRecord prints one field per line in form order. Pictures are
// reduced to their size so diffs stay readable.
func renderRecord(r Record) string {
	var b strings.Builder
	for _, field := range Fields() {
		v, _ := r.Get(field)
		switch val := v.(type) {
		case nil:
			fmt.Fprintf(&b, "%s: -\n", field)
		case string:
			if field == FieldProfilePicture {
				fmt.Fprintf(&b, "%s: <%d bytes>\n", field, len(val))
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", field, strings.ReplaceAll(val, "\n", " "))
		case []string:
			fmt.Fprintf(&b, "%s: %s\n", field, strings.Join(val, ", "))
		case []Weekday:
			fmt.Fprintf(&b, "%s: %s\n", field, strings.Join(weekdayStrings(val), ", "))
		}
	}
	return b.String()
}
