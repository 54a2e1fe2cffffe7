// Package audit is the append-only trail of security-relevant actions.
// Entries are write-once: every other module appends, nothing mutates.
package audit

import (
	"context"
	"time"
)

// Action names the security-relevant operation an entry records.
type Action string

const (
	ActionLogin                 Action = "login"
	ActionAccessRequestCreated  Action = "access_request_created"
	ActionAccessRequestApproved Action = "access_request_approved"
	ActionAccessRequestRejected Action = "access_request_rejected"
	ActionSessionTerminated     Action = "session_terminated"
	ActionSessionExpired        Action = "session_expired"
	ActionUserCreated           Action = "user_created"
)

// Status is the outcome recorded with an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Entry is one audit record. SessionID and ResourceID are zero when the
// action has no session or resource context. Ordering by Timestamp,
// descending, is the canonical read order.
type Entry struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	SessionID  int64     `json:"sessionId,omitempty"`
	ResourceID int64     `json:"resourceId,omitempty"`
	Action     Action    `json:"action"`
	Command    string    `json:"command,omitempty"`
	Output     string    `json:"output,omitempty"`
	Status     Status    `json:"status"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e Entry) Key() int64 { return e.ID }

func (e Entry) WithKey(id int64) Entry {
	e.ID = id
	return e
}

// Store persists audit entries. Implementations must treat entries as
// immutable once appended.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	ListByUser(ctx context.Context, userID int64) ([]Entry, error)
}
