package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Contact form field names, as they appear in JSON bodies and error maps.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldMessage = "message"
)

// Rule describes how a single contact field is validated.
// Pattern is the name of a custom validator registered by RegisterValidators.
type Rule struct {
	Field    string
	Min      int
	Max      int
	Pattern  string
	Messages map[string]string // keyed by validator tag
}

// Tag renders the rule as a go-playground validator tag.
func (r Rule) Tag() string {
	parts := []string{"required"}
	if r.Min > 0 {
		parts = append(parts, fmt.Sprintf("min=%d", r.Min))
	}
	if r.Max > 0 {
		parts = append(parts, fmt.Sprintf("max=%d", r.Max))
	}
	if r.Pattern != "" {
		parts = append(parts, r.Pattern)
	}
	return strings.Join(parts, ",")
}

func (r Rule) message(tag string) string {
	if msg, ok := r.Messages[tag]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", strings.ToUpper(r.Field[:1])+r.Field[1:])
}

// Rules is the single contact form contract. The endpoint and the form client both bind to it.
var Rules = []Rule{
	{
		Field:   FieldName,
		Min:     2,
		Max:     100,
		Pattern: "contact_name",
		Messages: map[string]string{
			"required":     "Name is required",
			"min":          "Name must be at least 2 characters",
			"max":          "Name must be less than 100 characters",
			"contact_name": "Name can only contain letters, spaces, hyphens, and apostrophes",
		},
	},
	{
		Field:   FieldEmail,
		Max:     254,
		Pattern: "contact_email",
		Messages: map[string]string{
			"required":      "Email is required",
			"max":           "Email address is too long",
			"contact_email": "Please enter a valid email address",
		},
	},
	{
		Field: FieldMessage,
		Min:   10,
		Max:   2000,
		Messages: map[string]string{
			"required": "Message is required",
			"min":      "Message must be at least 10 characters",
			"max":      "Message must be less than 2000 characters",
		},
	},
}

var validate = New()

// New returns a validator with the contact validators registered.
func New() *validator.Validate {
	v := validator.New()
	RegisterValidators(v)
	return v
}

// RuleFor returns the rule for a field.
func RuleFor(field string) (Rule, bool) {
	for _, r := range Rules {
		if r.Field == field {
			return r, true
		}
	}
	return Rule{}, false
}

// FieldErrors maps a field name to a user-facing message. Only failing fields are present.
type FieldErrors map[string]string

// HasErrors reports whether any field failed.
func (fe FieldErrors) HasErrors() bool {
	return len(fe) > 0
}

// Fields lists the failing field names in form order.
func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for _, rule := range Rules {
		if _, ok := fe[rule.Field]; ok {
			names = append(names, rule.Field)
		}
	}
	return names
}

// ValidateField trims and validates a single field. It returns "" when the value is valid
// or the field is unknown.
func ValidateField(field, value string) string {
	rule, ok := RuleFor(field)
	if !ok {
		return ""
	}

	err := validate.Var(strings.TrimSpace(value), rule.Tag())
	if err == nil {
		return ""
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		return rule.message(validationErrors[0].Tag())
	}
	return rule.message("")
}

// ValidateSubmission validates all three contact fields.
func ValidateSubmission(name, email, message string) FieldErrors {
	values := map[string]string{
		FieldName:    name,
		FieldEmail:   email,
		FieldMessage: message,
	}

	errs := FieldErrors{}
	for _, rule := range Rules {
		if msg := ValidateField(rule.Field, values[rule.Field]); msg != "" {
			errs[rule.Field] = msg
		}
	}
	return errs
}
