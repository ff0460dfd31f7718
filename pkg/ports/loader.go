package ports

import "github.com/aretw0/formbot/pkg/domain"

// FormLoader defines how the orchestrator retrieves form definitions.
type FormLoader interface {
	// GetForm returns the form with the given id.
	// Returns domain.ErrUnknownForm if it is not registered.
	GetForm(id string) (*domain.Form, error)

	// ListForms returns every registered form, ordered by id.
	ListForms() ([]*domain.Form, error)
}
