package domain

import (
	"fmt"
	"strings"
)

// Form is an immutable, ordered questionnaire.
type Form struct {
	ID     string  `json:"id" yaml:"id" mapstructure:"id"`
	Name   string  `json:"name" yaml:"name" mapstructure:"name"`
	Fields []Field `json:"fields" yaml:"fields" mapstructure:"fields"`
}

// DraftSource tells where the fields of a FormDraft came from.
type DraftSource string

const (
	DraftGenerated DraftSource = "generated"
	DraftTemplate  DraftSource = "template"
)

// FormDraft is a proposed field list for a form described in plain language.
type FormDraft struct {
	Fields []Field     `json:"fields"`
	Source DraftSource `json:"source"`
}

// Validate ensures the form can be driven by the orchestrator.
func (f *Form) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: form id is required", ErrInvalidForm)
	}
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: form %q has no name", ErrInvalidForm, f.ID)
	}
	if len(f.Fields) == 0 {
		return fmt.Errorf("%w: form %q has no fields", ErrInvalidForm, f.ID)
	}
	seen := make(map[string]struct{}, len(f.Fields))
	for _, field := range f.Fields {
		if err := field.Validate(); err != nil {
			return fmt.Errorf("form %q: %w", f.ID, err)
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("%w: form %q declares field %q twice", ErrInvalidForm, f.ID, field.Name)
		}
		seen[field.Name] = struct{}{}
	}
	return nil
}

// FieldAt returns the field at index i, or false when i is out of range.
func (f *Form) FieldAt(i int) (Field, bool) {
	if i < 0 || i >= len(f.Fields) {
		return Field{}, false
	}
	return f.Fields[i], true
}

// Summary lists the collected answers in definition order, one "name: value" per line.
func (f *Form) Summary(answers map[string]string) string {
	var b strings.Builder
	for _, field := range f.Fields {
		v, ok := answers[field.Name]
		if !ok {
			continue
		}
		b.WriteString(field.Name)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	return b.String()
}
