package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/formbot/pkg/domain"
)

// Loader implements ports.FormLoader using an in-memory map.
type Loader struct {
	mu    sync.RWMutex
	forms map[string]*domain.Form
}

// NewLoader creates a Loader holding the given forms.
// Every form is validated; duplicate ids are rejected.
func NewLoader(forms ...*domain.Form) (*Loader, error) {
	l := &Loader{forms: make(map[string]*domain.Form, len(forms))}
	for _, f := range forms {
		if err := l.Add(f); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add registers one more form.
func (l *Loader) Add(f *domain.Form) error {
	if f == nil {
		return fmt.Errorf("%w: nil form", domain.ErrInvalidForm)
	}
	if err := f.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.forms[f.ID]; exists {
		return fmt.Errorf("%w: %w: duplicate form id %q", domain.ErrInvalidForm, domain.ErrFormExists, f.ID)
	}
	l.forms[f.ID] = f
	return nil
}

// GetForm retrieves a form by id.
func (l *Loader) GetForm(id string) (*domain.Form, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, ok := l.forms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownForm, id)
	}
	return f, nil
}

// ListForms returns all forms ordered by id.
func (l *Loader) ListForms() ([]*domain.Form, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Form, 0, len(l.forms))
	for _, f := range l.forms {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
