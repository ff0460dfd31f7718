package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/formbot/internal/logging"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a user's distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates record access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu, and call release(userID) after unlocking.
func (m *Manager) acquire(userID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		entry = &lockEntry{}
		m.locks[userID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, userID)
	}
}

// WithLock executes fn while holding the lock for the user.
func (m *Manager) WithLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	entry := m.acquire(userID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(userID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, userID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The caller's ctx may already be cancelled; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"user_id", userID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves the user's record.
// Returns domain.ErrUserNotFound when missing; other store errors wrap domain.ErrPersistence.
func (m *Manager) Load(ctx context.Context, userID string) (*domain.Record, error) {
	var rec *domain.Record
	err := m.WithLock(ctx, userID, func(ctx context.Context) error {
		var err error
		rec, err = m.load(ctx, userID)
		return err
	})
	return rec, err
}

// UpdateFunc mutates a record in place. exists is false when the record was freshly
// created. Returning changed=false skips the write.
type UpdateFunc func(rec *domain.Record, exists bool) (changed bool, err error)

// Update runs a locked read-modify-write of the user's record.
// The record is persisted only if fn reports a change and returns no error.
func (m *Manager) Update(ctx context.Context, userID string, fn UpdateFunc) error {
	return m.WithLock(ctx, userID, func(ctx context.Context) error {
		rec, err := m.load(ctx, userID)
		exists := true
		if errors.Is(err, domain.ErrUserNotFound) {
			rec, exists = domain.NewRecord(userID), false
		} else if err != nil {
			return err
		}

		changed, err := fn(rec, exists)
		if err != nil || !changed {
			return err
		}

		rec.UpdatedAt = time.Now().UTC()
		if err := m.store.Save(ctx, rec); err != nil {
			return fmt.Errorf("%w: save record %s: %w", domain.ErrPersistence, userID, err)
		}
		return nil
	})
}

// Delete removes the user's record from the store.
func (m *Manager) Delete(ctx context.Context, userID string) error {
	return m.WithLock(ctx, userID, func(ctx context.Context) error {
		if err := m.store.Delete(ctx, userID); err != nil {
			return fmt.Errorf("%w: delete record %s: %w", domain.ErrPersistence, userID, err)
		}
		return nil
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", domain.ErrPersistence, err)
	}
	return ids, nil
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

func (m *Manager) load(ctx context.Context, userID string) (*domain.Record, error) {
	rec, err := m.store.Load(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: load record %s: %w", domain.ErrPersistence, userID, err)
}
