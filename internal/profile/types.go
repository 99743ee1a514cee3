package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Step identifies one of the three sections of the form.
type Step int

const (
	StepBasicInfo Step = iota + 1
	StepExpertise
	StepContact
)

const (
	FirstStep = StepBasicInfo
	LastStep  = StepContact
)

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// Title is the section heading shown in the progress bar.
func (s Step) Title() string {
	switch s {
	case StepBasicInfo:
		return "Basic Information"
	case StepExpertise:
		return "Services & Expertise"
	case StepContact:
		return "Contact & Availability"
	default:
		return ""
	}
}

// Progress returns how far along the form s is, from 0 to 100.
func (s Step) Progress() int {
	if !s.Valid() {
		return 0
	}
	return int(s-FirstStep) * 100 / int(LastStep-FirstStep)
}

// Weekday is a day a provider is available to work.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays lists all days in display order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday matches s against the known day names, ignoring case and
// surrounding whitespace.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.TrimSpace(s)
	for _, d := range Weekdays {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return "", false
}

// Experience holds the raw years-of-experience input. Drafts written by
// browsers store it as a string, other clients send a number; both decode.
type Experience string

func (e *Experience) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = Experience(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("yearsOfExperience: %w", err)
	}
	*e = Experience(n.String())
	return nil
}

// Record is the provider profile draft across all steps.
type Record struct {
	// Basic information
	Name           string  `json:"name"`
	Bio            string  `json:"bio"`
	ProfilePicture *string `json:"profilePicture"` // data URI

	// Services & expertise
	Specializations   []string   `json:"specializations"`
	Services          []string   `json:"services"`
	YearsOfExperience Experience `json:"yearsOfExperience"`

	// Contact & availability
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	WorkingHours []Weekday `json:"workingHours"`
}

// NewRecord returns the initial empty record. Collections are non-nil so the
// encoded form always carries empty arrays.
func NewRecord() Record {
	return Record{
		Specializations: []string{},
		Services:        []string{},
		WorkingHours:    []Weekday{},
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	cp := r
	if r.ProfilePicture != nil {
		pic := *r.ProfilePicture
		cp.ProfilePicture = &pic
	}
	cp.Specializations = append([]string{}, r.Specializations...)
	cp.Services = append([]string{}, r.Services...)
	cp.WorkingHours = append([]Weekday{}, r.WorkingHours...)
	return cp
}

// normalize replaces nil collections left behind by decoding.
func (r *Record) normalize() {
	if r.Specializations == nil {
		r.Specializations = []string{}
	}
	if r.Services == nil {
		r.Services = []string{}
	}
	if r.WorkingHours == nil {
		r.WorkingHours = []Weekday{}
	}
}

// SavedProfile is a finalized record as stored in the saved collection.
type SavedProfile struct {
	Record
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ErrorMap holds validation messages keyed by field name. An empty map means
// the validated step passed.
type ErrorMap map[string]string

// Clone returns a copy of m; a nil map clones to an empty one.
func (m ErrorMap) Clone() ErrorMap {
	cp := make(ErrorMap, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Field names as they appear in the persisted draft.
const (
	FieldName              = "name"
	FieldBio               = "bio"
	FieldProfilePicture    = "profilePicture"
	FieldSpecializations   = "specializations"
	FieldServices          = "services"
	FieldYearsOfExperience = "yearsOfExperience"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldWorkingHours      = "workingHours"
)

var stepFields = map[Step][]string{
	StepBasicInfo: {FieldName, FieldBio, FieldProfilePicture},
	StepExpertise: {FieldSpecializations, FieldServices, FieldYearsOfExperience},
	StepContact:   {FieldEmail, FieldPhone, FieldWorkingHours},
}

// StepFields returns the fields validated together on step s.
func StepFields(s Step) []string {
	return append([]string(nil), stepFields[s]...)
}

// Fields returns every field name in form order.
func Fields() []string {
	var out []string
	for s := FirstStep; s <= LastStep; s++ {
		out = append(out, stepFields[s]...)
	}
	return out
}
