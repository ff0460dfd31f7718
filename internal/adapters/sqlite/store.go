// Package sqlite implements ports.StateStore on SQLite (modernc.org/sqlite, no cgo).
//
// Users and their sessions live in two tables; a partial unique index enforces
// at most one in_progress session per user at the database level.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/formbot/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	credential_hash TEXT NOT NULL DEFAULT '',
	session_seq INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS form_sessions (
	user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	form_id TEXT NOT NULL,
	status TEXT NOT NULL,
	current_field INTEGER NOT NULL DEFAULT 0,
	answers_json TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	closed_at INTEGER,
	PRIMARY KEY (user_id, session_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_form_sessions_one_active
	ON form_sessions(user_id) WHERE status = 'in_progress';
`

// Store implements ports.StateStore using SQLite.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the user row and rewrites its sessions in one transaction.
func (s *Store) Save(ctx context.Context, record *domain.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO users (user_id, name, credential_hash, session_seq, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		name = excluded.name,
		credential_hash = excluded.credential_hash,
		session_seq = excluded.session_seq,
		updated_at = excluded.updated_at`,
		record.ID, record.Name, record.CredentialHash, record.SessionSeq,
		record.CreatedAt.UnixMilli(), record.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	// The session set is replaced wholesale so Save mirrors the record exactly.
	if _, err := tx.ExecContext(ctx, `DELETE FROM form_sessions WHERE user_id = ?`, record.ID); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	for _, sess := range record.SortedSessions() {
		answers, err := json.Marshal(sess.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		var closedAt any
		if sess.ClosedAt != nil {
			closedAt = sess.ClosedAt.UnixMilli()
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO form_sessions (user_id, session_id, seq, form_id, status, current_field, answers_json, created_at, updated_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID, sess.ID, sess.Seq, sess.FormID, string(sess.Status), sess.CurrentField, string(answers),
			sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(), closedAt,
		)
		if err != nil {
			return fmt.Errorf("insert session %s: %w", sess.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Load reads the user row and its sessions.
func (s *Store) Load(ctx context.Context, userID string) (*domain.Record, error) {
	var (
		rec                  domain.Record
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, name, credential_hash, session_seq, created_at, updated_at
		FROM users WHERE user_id = ?`, userID,
	).Scan(&rec.ID, &rec.Name, &rec.CredentialHash, &rec.SessionSeq, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	rec.Sessions = make(map[string]*domain.Session)

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, form_id, status, current_field, answers_json, created_at, updated_at, closed_at
		FROM form_sessions WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sess         domain.Session
			status       string
			answers      string
			created, upd int64
			closed       sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &sess.Seq, &sess.FormID, &status, &sess.CurrentField, &answers, &created, &upd, &closed); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.Status = domain.SessionStatus(status)
		if err := json.Unmarshal([]byte(answers), &sess.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers of %s: %w", sess.ID, err)
		}
		if sess.Answers == nil {
			sess.Answers = make(map[string]string)
		}
		sess.CreatedAt = time.UnixMilli(created).UTC()
		sess.UpdatedAt = time.UnixMilli(upd).UTC()
		if closed.Valid {
			t := time.UnixMilli(closed.Int64).UTC()
			sess.ClosedAt = &t
		}
		rec.Sessions[sess.ID] = &sess
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return &rec, nil
}

// Delete removes the user and, by cascade, their sessions.
func (s *Store) Delete(ctx context.Context, userID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM form_sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return tx.Commit()
}

// List returns all user ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
