package models

import (
	"time"

	dErrors "gatekeep/pkg/domain-errors"
)

// Status is the session lifecycle state. Terminated and expired are both
// terminal; a session never moves out of either.
type Status string

const (
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
	StatusExpired    Status = "expired"
)

// Session is the time-bounded grant spawned by an approved access request,
// 1:1 with the request that approved it.
//
// Invariants:
//   - ExpiresAt is fixed at creation (= the approving request's ExpiresAt)
//   - EndTime is set iff Status is terminated or expired
//   - Sessions are never physically deleted, only transitioned
type Session struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	ResourceID      int64      `json:"resourceId"`
	AccessRequestID int64      `json:"accessRequestId"`
	AccessType      string     `json:"accessType"`
	Status          Status     `json:"status"`
	CommandCount    int        `json:"commandCount"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	ExpiresAt       time.Time  `json:"expiresAt"`
}

func (s Session) Key() int64 { return s.ID }

func (s Session) WithKey(id int64) Session {
	s.ID = id
	return s
}

// NewSession builds an active session for an approved request.
func NewSession(userID, resourceID, requestID int64, accessType string, now, expiresAt time.Time) Session {
	return Session{
		UserID:          userID,
		ResourceID:      resourceID,
		AccessRequestID: requestID,
		AccessType:      accessType,
		Status:          StatusActive,
		StartTime:       now,
		ExpiresAt:       expiresAt,
	}
}

// CanTransition checks that the session is still active. Both terminal
// transitions (terminate, expire) share this gate, which is what makes a
// terminate/sweep race resolve to exactly one winner: the loser sees a
// non-active status under the same lock and backs off.
func (s Session) CanTransition() error {
	if s.Status != StatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "session is already "+string(s.Status))
	}
	return nil
}

// ApplyTermination flips the session to its terminated terminal state.
func (s *Session) ApplyTermination(now time.Time) {
	s.Status = StatusTerminated
	s.EndTime = &now
}

// ApplyExpiry flips the session to its expired terminal state.
func (s *Session) ApplyExpiry(now time.Time) {
	s.Status = StatusExpired
	s.EndTime = &now
}

// Due reports whether an active session has outlived its grant at now.
func (s Session) Due(now time.Time) bool {
	return s.Status == StatusActive && !s.ExpiresAt.After(now)
}
