package forms

import (
	"strings"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/dsl"
)

// DraftFields is the keyword template used when no generator can draft a form.
// Every draft asks for a name and an email; "phone", "contact" and "address" in the
// description each add the matching question.
func DraftFields(description string) []domain.Field {
	d := strings.ToLower(description)
	b := dsl.NewForm("draft").
		Ask("fullName", "What's your full name?").
		Email("email", "What's your email address?")
	if strings.Contains(d, "phone") {
		b.Phone("phone", "What's your phone number with country code?")
	}
	if strings.Contains(d, "contact") {
		b.Choice("preferredContact", "Do you prefer to be contacted by phone or email?", "Phone", "Email")
	}
	if strings.Contains(d, "address") {
		b.Ask("address", "What's your address?")
	}
	return b.MustBuild().Fields
}
