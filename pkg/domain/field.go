package domain

import (
	"fmt"
	"strings"
)

// FieldType is the closed set of answer kinds a form field may declare.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldChoice   FieldType = "choice"
	FieldMultiple FieldType = "multiple"
	FieldNumber   FieldType = "number"
	FieldText     FieldType = "text"
	FieldYesNo    FieldType = "yesno"
)

var knownFieldTypes = map[FieldType]struct{}{
	FieldString:   {},
	FieldEmail:    {},
	FieldPhone:    {},
	FieldChoice:   {},
	FieldMultiple: {},
	FieldNumber:   {},
	FieldText:     {},
	FieldYesNo:    {},
}

// ParseFieldType maps a declared type name onto a FieldType.
// Matching is case-insensitive; unknown names are rejected.
func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownFieldTypes[t]; !ok {
		return "", fmt.Errorf("%w: unknown field type %q", ErrInvalidForm, s)
	}
	return t, nil
}

// HasOptions reports whether the type answers from a declared option list.
func (t FieldType) HasOptions() bool {
	return t == FieldChoice || t == FieldMultiple
}

// Field is a single question of a form.
type Field struct {
	Name     string    `json:"name" yaml:"name" mapstructure:"name"`
	Type     FieldType `json:"type" yaml:"type" mapstructure:"type"`
	Prompt   string    `json:"prompt" yaml:"prompt" mapstructure:"prompt"`
	Required bool      `json:"required" yaml:"required" mapstructure:"required"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
}

// Hint returns the short guidance appended to a prompt for typed fields.
func (f Field) Hint() string {
	switch f.Type {
	case FieldEmail:
		return "This should be a valid email address."
	case FieldPhone:
		return "This should be a valid phone number with country code."
	case FieldChoice, FieldMultiple:
		return "Please choose from: " + strings.Join(f.Options, ", ") + "."
	case FieldNumber:
		return "Please answer with a whole number from 1 to 10."
	case FieldYesNo:
		return "Please answer yes or no."
	}
	return ""
}

// Validate checks the field in isolation.
func (f Field) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: field name is required", ErrInvalidForm)
	}
	if _, ok := knownFieldTypes[f.Type]; !ok {
		return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidForm, f.Name, f.Type)
	}
	if strings.TrimSpace(f.Prompt) == "" {
		return fmt.Errorf("%w: field %q has no prompt", ErrInvalidForm, f.Name)
	}
	if f.Type.HasOptions() && len(f.Options) == 0 {
		return fmt.Errorf("%w: field %q of type %s needs options", ErrInvalidForm, f.Name, f.Type)
	}
	if !f.Type.HasOptions() && len(f.Options) > 0 {
		return fmt.Errorf("%w: field %q of type %s cannot declare options", ErrInvalidForm, f.Name, f.Type)
	}
	return nil
}
