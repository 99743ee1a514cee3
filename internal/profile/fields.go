package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownField is returned when a field name is not part of the record.
var ErrUnknownField = errors.New("unknown field")

// FieldTypeError reports a value whose shape does not fit the field.
type FieldTypeError struct {
	Field string
	Value any
	Want  string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q: cannot use %T as %s", e.Field, e.Value, e.Want)
}

// Get returns the current value of the named field. Collections are copied.
func (r Record) Get(name string) (any, error) {
	switch name {
	case FieldName:
		return r.Name, nil
	case FieldBio:
		return r.Bio, nil
	case FieldProfilePicture:
		if r.ProfilePicture == nil {
			return nil, nil
		}
		return *r.ProfilePicture, nil
	case FieldSpecializations:
		return append([]string{}, r.Specializations...), nil
	case FieldServices:
		return append([]string{}, r.Services...), nil
	case FieldYearsOfExperience:
		return string(r.YearsOfExperience), nil
	case FieldEmail:
		return r.Email, nil
	case FieldPhone:
		return r.Phone, nil
	case FieldWorkingHours:
		return append([]Weekday{}, r.WorkingHours...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// Set assigns value to the named field. Values decoded from JSON ([]any,
// float64, json.Number) are accepted alongside native Go types.
func (r *Record) Set(name string, value any) error {
	switch name {
	case FieldName, FieldBio, FieldEmail, FieldPhone:
		s, ok := value.(string)
		if !ok {
			return &FieldTypeError{Field: name, Value: value, Want: "string"}
		}
		switch name {
		case FieldName:
			r.Name = s
		case FieldBio:
			r.Bio = s
		case FieldEmail:
			r.Email = s
		case FieldPhone:
			r.Phone = s
		}
	case FieldProfilePicture:
		switch v := value.(type) {
		case nil:
			r.ProfilePicture = nil
		case string:
			r.ProfilePicture = &v
		case *string:
			if v == nil {
				r.ProfilePicture = nil
				return nil
			}
			pic := *v
			r.ProfilePicture = &pic
		default:
			return &FieldTypeError{Field: name, Value: value, Want: "data URI string"}
		}
	case FieldSpecializations, FieldServices:
		list, err := stringList(name, value)
		if err != nil {
			return err
		}
		if name == FieldSpecializations {
			r.Specializations = list
		} else {
			r.Services = list
		}
	case FieldYearsOfExperience:
		exp, err := experienceValue(value)
		if err != nil {
			return err
		}
		r.YearsOfExperience = exp
	case FieldWorkingHours:
		days, err := weekdayList(value)
		if err != nil {
			return err
		}
		r.WorkingHours = days
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

func stringList(field string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string{}, v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &FieldTypeError{Field: field, Value: value, Want: "list of strings"}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &FieldTypeError{Field: field, Value: value, Want: "list of strings"}
	}
}

func weekdayList(value any) ([]Weekday, error) {
	if days, ok := value.([]Weekday); ok {
		value = weekdayStrings(days)
	}
	names, err := stringList(FieldWorkingHours, value)
	if err != nil {
		return nil, err
	}
	out := make([]Weekday, 0, len(names))
	for _, n := range names {
		d, ok := ParseWeekday(n)
		if !ok {
			return nil, &FieldTypeError{Field: FieldWorkingHours, Value: n, Want: "weekday name"}
		}
		out = append(out, d)
	}
	return out, nil
}

func weekdayStrings(days []Weekday) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

func experienceValue(value any) (Experience, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return Experience(v), nil
	case Experience:
		return v, nil
	case int:
		return Experience(strconv.Itoa(v)), nil
	case int64:
		return Experience(strconv.FormatInt(v, 10)), nil
	case float64:
		return Experience(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case json.Number:
		return Experience(v.String()), nil
	default:
		return "", &FieldTypeError{Field: FieldYearsOfExperience, Value: value, Want: "number"}
	}
}
