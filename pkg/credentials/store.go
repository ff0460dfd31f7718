// Package credentials implements registration and authentication on top of the
// per-user record, hashing secrets with bcrypt.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/session"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptySecret is returned when registering without a secret.
var ErrEmptySecret = errors.New("secret must not be empty")

// Store registers and authenticates users.
type Store struct {
	sessions *session.Manager
	cost     int
}

// Option configures the Store.
type Option func(*Store)

// WithCost sets the bcrypt cost (default bcrypt.DefaultCost).
func WithCost(cost int) Option {
	return func(s *Store) {
		s.cost = cost
	}
}

// NewStore creates a credential store sharing the record persistence of sessions.
func NewStore(sessions *session.Manager, opts ...Option) *Store {
	s := &Store{sessions: sessions, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register stores a hash of secret for userID.
// It fails with domain.ErrUserExists if the user already holds a credential;
// a record created by an earlier anonymous form session is upgraded in place.
func (s *Store) Register(ctx context.Context, userID, name, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrEmptySecret
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}

	return s.sessions.Update(ctx, userID, func(rec *domain.Record, exists bool) (bool, error) {
		if rec.Registered() {
			return false, domain.ErrUserExists
		}
		rec.Name = name
		rec.CredentialHash = string(hash)
		return true, nil
	})
}

// Authenticate reports whether secret matches the stored hash.
// Unknown users and users without a credential authenticate as false.
func (s *Store) Authenticate(ctx context.Context, userID, secret string) (bool, error) {
	rec, err := s.sessions.Load(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !rec.Registered() {
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.CredentialHash), []byte(secret)); err != nil {
		return false, nil
	}
	return true, nil
}
