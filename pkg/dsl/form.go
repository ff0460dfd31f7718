package dsl

import "github.com/aretw0/formbot/pkg/domain"

// FormBuilder provides a fluent API for declaring one form.
// Fields are required unless Optional follows them.
type FormBuilder struct {
	form domain.Form
}

// NewForm starts a standalone form. Its name defaults to the id.
func NewForm(id string) *FormBuilder {
	return &FormBuilder{form: domain.Form{ID: id, Name: id}}
}

// Name sets the human-readable form name used in intros and summaries.
func (f *FormBuilder) Name(name string) *FormBuilder {
	f.form.Name = name
	return f
}

// Field appends a question of any type.
func (f *FormBuilder) Field(name string, typ domain.FieldType, prompt string, options ...string) *FormBuilder {
	f.form.Fields = append(f.form.Fields, domain.Field{
		Name:     name,
		Type:     typ,
		Prompt:   prompt,
		Required: true,
		Options:  options,
	})
	return f
}

// Ask appends a free-form short answer.
func (f *FormBuilder) Ask(name, prompt string) *FormBuilder {
	return f.Field(name, domain.FieldString, prompt)
}

// Text appends a free-form long answer.
func (f *FormBuilder) Text(name, prompt string) *FormBuilder {
	return f.Field(name, domain.FieldText, prompt)
}

func (f *FormBuilder) Email(name, prompt string) *FormBuilder {
	return f.Field(name, domain.FieldEmail, prompt)
}

func (f *FormBuilder) Phone(name, prompt string) *FormBuilder {
	return f.Field(name, domain.FieldPhone, prompt)
}

// Number appends a 1 to 10 rating.
func (f *FormBuilder) Number(name, prompt string) *FormBuilder {
	return f.Field(name, domain.FieldNumber, prompt)
}

func (f *FormBuilder) YesNo(name, prompt string) *FormBuilder {
	return f.Field(name, domain.FieldYesNo, prompt)
}

// Choice appends a single pick from options.
func (f *FormBuilder) Choice(name, prompt string, options ...string) *FormBuilder {
	return f.Field(name, domain.FieldChoice, prompt, options...)
}

// Multiple appends a pick of one or more options.
func (f *FormBuilder) Multiple(name, prompt string, options ...string) *FormBuilder {
	return f.Field(name, domain.FieldMultiple, prompt, options...)
}

// Optional marks the most recently added field as not required.
func (f *FormBuilder) Optional() *FormBuilder {
	if n := len(f.form.Fields); n > 0 {
		f.form.Fields[n-1].Required = false
	}
	return f
}

// Build validates the form and returns a copy of it.
func (f *FormBuilder) Build() (*domain.Form, error) {
	out := f.form
	out.Fields = make([]domain.Field, len(f.form.Fields))
	for i, field := range f.form.Fields {
		field.Options = append([]string(nil), field.Options...)
		out.Fields[i] = field
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// MustBuild is Build for forms declared in code; it panics on an invalid form.
func (f *FormBuilder) MustBuild() *domain.Form {
	form, err := f.Build()
	if err != nil {
		panic(err)
	}
	return form
}
