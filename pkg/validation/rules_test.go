package validation_test

import (
	"strings"
	"testing"

	"ekuphumuleni-api/pkg/validation"

	"github.com/stretchr/testify/assert"
)

func TestValidateFieldName(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", "Name is required"},
		{"whitespace only", "   ", "Name is required"},
		{"one character", "J", "Name must be at least 2 characters"},
		{"too long", strings.Repeat("a", 101), "Name must be less than 100 characters"},
		{"digits", "Jo3", "Name can only contain letters, spaces, hyphens, and apostrophes"},
		{"markup", "<b>Jo</b>", "Name can only contain letters, spaces, hyphens, and apostrophes"},
		{"two characters", "Jo", ""},
		{"exactly 100", strings.Repeat("a", 100), ""},
		{"hyphen and apostrophe", "Mary-Jane O'Neil", ""},
		{"trimmed", "  Thandi  ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, validation.ValidateField(validation.FieldName, tc.value))
		})
	}
}

func TestValidateFieldEmail(t *testing.T) {
	longLocal := strings.Repeat("a", 250) + "@x.co"

	cases := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", "Email is required"},
		{"no at", "jo.x.co", "Please enter a valid email address"},
		{"no tld", "jo@x", "Please enter a valid email address"},
		{"inner space", "jo @x.co", "Please enter a valid email address"},
		{"double at", "jo@@x.co", "Please enter a valid email address"},
		{"too long", longLocal, "Email address is too long"},
		{"simple", "jo@x.co", ""},
		{"subdomain", "care.team@mail.ekuphumuleni.org", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, validation.ValidateField(validation.FieldEmail, tc.value))
		})
	}
}

func TestValidateFieldMessage(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", "Message is required"},
		{"short", "Hello", "Message must be at least 10 characters"},
		{"short after trim", "   Hello    ", "Message must be at least 10 characters"},
		{"too long", strings.Repeat("x", 2001), "Message must be less than 2000 characters"},
		{"minimum", "0123456789", ""},
		{"maximum", strings.Repeat("x", 2000), ""},
		{"multiline", "Hello,\nI would like to visit.", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, validation.ValidateField(validation.FieldMessage, tc.value))
		})
	}
}

func TestValidateFieldUnknown(t *testing.T) {
	assert.Empty(t, validation.ValidateField("phone", ""))
}

func TestValidateSubmission(t *testing.T) {
	t.Run("Should return no errors for a valid submission", func(t *testing.T) {
		errs := validation.ValidateSubmission("Jo", "jo@x.co", "Hello, I have a question about visiting hours.")
		assert.False(t, errs.HasErrors())
	})

	t.Run("Should be idempotent on valid input", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			errs := validation.ValidateSubmission("Jo", "jo@x.co", "Hello, I have a question about visiting hours.")
			assert.Empty(t, errs)
		}
	})

	t.Run("Should only report the failing field", func(t *testing.T) {
		errs := validation.ValidateSubmission("Jo", "jo@x.co", "")
		assert.True(t, errs.HasErrors())
		assert.Equal(t, "Message is required", errs[validation.FieldMessage])
		assert.NotContains(t, errs, validation.FieldName)
		assert.NotContains(t, errs, validation.FieldEmail)
	})

	t.Run("Should report every failing field", func(t *testing.T) {
		errs := validation.ValidateSubmission("", "nope", "short")
		assert.Len(t, errs, 3)
		assert.Equal(t, []string{"name", "email", "message"}, errs.Fields())
	})

	t.Run("Should list failing fields in form order", func(t *testing.T) {
		errs := validation.ValidateSubmission("J", "nope", "Hello, I have a question about visiting hours.")
		assert.Equal(t, []string{validation.FieldName, validation.FieldEmail}, errs.Fields())
		assert.Empty(t, validation.FieldErrors{}.Fields())
	})
}

func TestRuleTag(t *testing.T) {
	rule, ok := validation.RuleFor(validation.FieldName)
	assert.True(t, ok)
	assert.Equal(t, "required,min=2,max=100,contact_name", rule.Tag())

	rule, ok = validation.RuleFor(validation.FieldMessage)
	assert.True(t, ok)
	assert.Equal(t, "required,min=10,max=2000", rule.Tag())
}
