package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Regex patterns
var (
	// Letters, spaces, hyphens and apostrophes
	nameRegex = regexp.MustCompile(`^[A-Za-z '-]+$`)

	// local@domain.tld with no whitespace and a single @
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("contact_name", ContactName)
	_ = v.RegisterValidation("contact_email", ContactEmail)
}

// ContactName validates that a name holds only letters, spaces, hyphens and apostrophes
func ContactName(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true // Optional, use required if needed
	}
	return nameRegex.MatchString(val)
}

// ContactEmail validates the simple local@domain.tld shape used by the contact form.
// It is not an RFC validator.
func ContactEmail(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return emailRegex.MatchString(val)
}
