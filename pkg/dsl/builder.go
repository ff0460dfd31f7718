package dsl

import (
	"fmt"

	"github.com/aretw0/formbot/pkg/adapters/memory"
	"github.com/aretw0/formbot/pkg/domain"
)

// Builder manages the construction of a set of forms.
type Builder struct {
	order []string
	forms map[string]*FormBuilder
}

// New creates a new form set builder.
func New() *Builder {
	return &Builder{
		forms: make(map[string]*FormBuilder),
	}
}

// Add starts a form with the given id.
// If the form already exists, it returns the existing builder.
func (b *Builder) Add(id string) *FormBuilder {
	if fb, ok := b.forms[id]; ok {
		return fb
	}
	fb := NewForm(id)
	b.forms[id] = fb
	b.order = append(b.order, id)
	return fb
}

// Build validates every form and compiles them into a memory Loader.
func (b *Builder) Build() (*memory.Loader, error) {
	forms := make([]*domain.Form, 0, len(b.order))
	for _, id := range b.order {
		f, err := b.forms[id].Build()
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}

	loader, err := memory.NewLoader(forms...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
