package ports

import (
	"context"

	"github.com/aretw0/formbot/pkg/domain"
)

// StateStore defines the interface for persisting user records.
// Save must be durable and all-or-nothing before it returns.
type StateStore interface {
	// Save persists the record under record.ID, replacing any previous version.
	Save(ctx context.Context, record *domain.Record) error

	// Load retrieves the record for a given user ID.
	// Returns domain.ErrUserNotFound if the user has no record.
	Load(ctx context.Context, userID string) (*domain.Record, error)

	// Delete removes the record for a given user ID. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error

	// List returns the IDs of all stored records.
	List(ctx context.Context) ([]string, error)
}
