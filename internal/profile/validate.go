package profile

import (
	"encoding/base64"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// MaxPictureBytes caps the decoded size of a profile picture.
const MaxPictureBytes = 5 << 20

// Validation messages.
const (
	MsgNameRequired            = "Name is required"
	MsgBioRequired             = "Bio is required"
	MsgPictureRequired         = "Profile picture is required"
	MsgPictureNotImage         = "Please upload an image file"
	MsgPictureTooLarge         = "File size should be less than 5MB"
	MsgSpecializationsRequired = "Please select at least one specialization"
	MsgServicesRequired        = "Please select at least one service"
	MsgExperienceRequired      = "Years of experience is required"
	MsgExperienceNegative      = "Years of experience cannot be negative"
	MsgEmailRequired           = "Email is required"
	MsgEmailInvalid            = "Please enter a valid email"
	MsgPhoneRequired           = "Phone number is required"
	MsgPhoneInvalid            = "Please enter a valid 10-digit phone number"
	MsgWorkingHoursRequired    = "Please select at least one working day"
)

// emailPattern is unanchored: any substring of the form x@y.z passes.
var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// Each validator returns "" when the value passes, otherwise the message
// to show next to the field.

func ValidateName(name string) string {
	if strings.TrimSpace(name) == "" {
		return MsgNameRequired
	}
	return ""
}

func ValidateBio(bio string) string {
	if strings.TrimSpace(bio) == "" {
		return MsgBioRequired
	}
	return ""
}

// ValidateProfilePicture checks presence, media type and decoded size of a
// data URI reference.
func ValidateProfilePicture(ref *string) string {
	if ref == nil || *ref == "" {
		return MsgPictureRequired
	}
	mediaType, size, ok := inspectDataURI(*ref)
	if !ok || !strings.HasPrefix(mediaType, "image/") {
		return MsgPictureNotImage
	}
	if size > MaxPictureBytes {
		return MsgPictureTooLarge
	}
	return ""
}

func ValidateSpecializations(v []string) string {
	if len(v) == 0 {
		return MsgSpecializationsRequired
	}
	return ""
}

func ValidateServices(v []string) string {
	if len(v) == 0 {
		return MsgServicesRequired
	}
	return ""
}

// ValidateYearsOfExperience only rejects empty and negative values. There is
// no upper bound and fractional or non-numeric input is let through.
func ValidateYearsOfExperience(v Experience) string {
	raw := strings.TrimSpace(string(v))
	if raw == "" {
		return MsgExperienceRequired
	}
	// Out-of-range input still parses to ±Inf, which compares like any number.
	n, err := strconv.ParseFloat(raw, 64)
	if (err == nil || errors.Is(err, strconv.ErrRange)) && n < 0 {
		return MsgExperienceNegative
	}
	return ""
}

func ValidateEmail(email string) string {
	if email == "" {
		return MsgEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return MsgEmailInvalid
	}
	return ""
}

func ValidatePhone(phone string) string {
	if phone == "" {
		return MsgPhoneRequired
	}
	if len(NormalizePhone(phone)) != 10 {
		return MsgPhoneInvalid
	}
	return ""
}

// NormalizePhone strips every non-digit character.
func NormalizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

func ValidateWorkingHours(v []Weekday) string {
	if len(v) == 0 {
		return MsgWorkingHoursRequired
	}
	return ""
}

// ValidateStep runs every validator belonging to step against r and collects
// all failures. Unknown steps produce an empty map.
func ValidateStep(step Step, r Record) ErrorMap {
	errs := make(ErrorMap)
	add := func(field, msg string) {
		if msg != "" {
			errs[field] = msg
		}
	}

	switch step {
	case StepBasicInfo:
		add(FieldName, ValidateName(r.Name))
		add(FieldBio, ValidateBio(r.Bio))
		add(FieldProfilePicture, ValidateProfilePicture(r.ProfilePicture))
	case StepExpertise:
		add(FieldSpecializations, ValidateSpecializations(r.Specializations))
		add(FieldServices, ValidateServices(r.Services))
		add(FieldYearsOfExperience, ValidateYearsOfExperience(r.YearsOfExperience))
	case StepContact:
		add(FieldEmail, ValidateEmail(r.Email))
		add(FieldPhone, ValidatePhone(r.Phone))
		add(FieldWorkingHours, ValidateWorkingHours(r.WorkingHours))
	}
	return errs
}

// inspectDataURI returns the media type and decoded payload size of a
// "data:[<mediatype>][;base64],<data>" reference.
func inspectDataURI(ref string) (mediaType string, size int, ok bool) {
	rest, found := strings.CutPrefix(ref, "data:")
	if !found {
		return "", 0, false
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return "", 0, false
	}

	params := strings.Split(meta, ";")
	mediaType = strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return "", 0, false
		}
		return mediaType, len(decoded), true
	}
	decoded, err := url.PathUnescape(data)
	if err != nil {
		return "", 0, false
	}
	return mediaType, len(decoded), true
}
