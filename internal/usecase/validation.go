package usecase

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength  = 200
	maxNotesLength = 2000
	maxServices    = 20
	maxServiceLen  = 64
	maxPhotoURLs   = 10
)

var (
	zipCodePattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	statePattern   = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateInstantQuoteInput checks a normalized intake before any quoting
// work happens.
func ValidateInstantQuoteInput(input InstantQuoteInput) []ValidationError {
	var errors []ValidationError
	c := input.Contact
	in := input.Intake

	name := c.FullName()
	if name == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	} else if utf8.RuneCountInString(name) > maxNameLength {
		errors = append(errors, ValidationError{"name", "must not exceed 200 characters"})
	}

	if c.Email == "" && c.PhoneRaw == "" {
		errors = append(errors, ValidationError{"contact", "email or phone is required"})
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			errors = append(errors, ValidationError{"email", "is invalid"})
		}
	}
	if c.PhoneRaw != "" && c.PhoneE164 == "" {
		errors = append(errors, ValidationError{"phone", "must be a valid phone number"})
	}

	if strings.TrimSpace(in.PostalCode) == "" {
		errors = append(errors, ValidationError{"postal_code", "is required"})
	} else if !isValidZipCode(in.PostalCode) {
		errors = append(errors, ValidationError{"postal_code", "must be a valid zip code (XXXXX or XXXXX-XXXX)"})
	}

	if len(in.Services) > maxServices {
		errors = append(errors, ValidationError{"services", "must not exceed 20 entries"})
	}
	for _, s := range in.Services {
		if s == "" || len(s) > maxServiceLen {
			errors = append(errors, ValidationError{"services", "entries must be 1-64 characters"})
			break
		}
	}

	if utf8.RuneCountInString(in.Notes) > maxNotesLength {
		errors = append(errors, ValidationError{"notes", "must not exceed 2000 characters"})
	}

	if len(in.PhotoURLs) > maxPhotoURLs {
		errors = append(errors, ValidationError{"photo_urls", "must not exceed 10 entries"})
	}
	for _, raw := range in.PhotoURLs {
		if !isValidPhotoURL(raw) {
			errors = append(errors, ValidationError{"photo_urls", "must be absolute http(s) URLs"})
			break
		}
	}

	if a := in.Address; a != nil {
		if strings.TrimSpace(a.Line1) == "" {
			errors = append(errors, ValidationError{"address.line1", "is required"})
		}
		if !statePattern.MatchString(strings.TrimSpace(a.State)) {
			errors = append(errors, ValidationError{"address.state", "must be a two-letter state code"})
		}
		if !isValidZipCode(a.PostalCode) {
			errors = append(errors, ValidationError{"address.postal_code", "must be a valid zip code (XXXXX or XXXXX-XXXX)"})
		}
	}

	return errors
}

func isValidZipCode(zipcode string) bool {
	return zipCodePattern.MatchString(strings.TrimSpace(zipcode))
}

func isValidPhotoURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
