package domain

import (
	"fmt"
	"sort"
	"time"
)

// SessionStatus is the lifecycle position of a Session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// Session is one user's traversal of a form.
// Only in_progress sessions are mutable.
type Session struct {
	ID           string            `json:"id"`
	Seq          int               `json:"seq"`
	FormID       string            `json:"form_id"`
	Status       SessionStatus     `json:"status"`
	CurrentField int               `json:"current_field"`
	Answers      map[string]string `json:"answers"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ClosedAt     *time.Time        `json:"closed_at,omitempty"`
}

// Active reports whether the session still accepts answers.
func (s *Session) Active() bool {
	return s.Status == SessionInProgress
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// User is the identity part of a Record.
type User struct {
	ID             string    `json:"user_id"`
	Name           string    `json:"name,omitempty"`
	CredentialHash string    `json:"credential_hash,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Registered reports whether the user holds a credential.
func (u User) Registered() bool {
	return u.CredentialHash != ""
}

// Record is the unit of persistence: one per user.
type Record struct {
	User
	Sessions   map[string]*Session `json:"sessions"`
	SessionSeq int                 `json:"session_seq"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// NewRecord creates an empty record for userID.
func NewRecord(userID string) *Record {
	now := time.Now().UTC()
	return &Record{
		User: User{
			ID:        userID,
			CreatedAt: now,
		},
		Sessions:  make(map[string]*Session),
		UpdatedAt: now,
	}
}

// ActiveSession returns the in_progress session, if any.
func (r *Record) ActiveSession() *Session {
	for _, s := range r.Sessions {
		if s.Active() {
			return s
		}
	}
	return nil
}

// OpenSession allocates the next session id and attaches a fresh session for formID.
func (r *Record) OpenSession(formID string, now time.Time) *Session {
	if r.Sessions == nil {
		r.Sessions = make(map[string]*Session)
	}
	r.SessionSeq++
	s := &Session{
		ID:        fmt.Sprintf("session_%d", r.SessionSeq),
		Seq:       r.SessionSeq,
		FormID:    formID,
		Status:    SessionInProgress,
		Answers:   make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Sessions[s.ID] = s
	r.UpdatedAt = now
	return s
}

// SortedSessions returns the sessions in allocation order.
func (r *Record) SortedSessions() []*Session {
	out := make([]*Session, 0, len(r.Sessions))
	for _, s := range r.Sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Sessions = make(map[string]*Session, len(r.Sessions))
	for id, s := range r.Sessions {
		c.Sessions[id] = s.Clone()
	}
	return &c
}
