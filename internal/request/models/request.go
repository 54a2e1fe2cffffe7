package models

import (
	"time"

	dErrors "gatekeep/pkg/domain-errors"
)

// AccessType is the kind of grant being requested. Emergency (break-glass)
// access flows through the lifecycle exactly like the other types; nothing
// special-cases it.
type AccessType string

const (
	AccessReadOnly  AccessType = "read-only"
	AccessReadWrite AccessType = "read-write"
	AccessEmergency AccessType = "emergency"
)

// Valid reports whether t is a recognized access type.
func (t AccessType) Valid() bool {
	switch t {
	case AccessReadOnly, AccessReadWrite, AccessEmergency:
		return true
	}
	return false
}

// Status is the request lifecycle state. Approved and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// AllowedDurations is the fixed set of grant lengths a requester may ask
// for, in minutes.
var AllowedDurations = []int{15, 30, 60, 120}

// DurationAllowed reports whether minutes is one of the allowed grant
// lengths.
func DurationAllowed(minutes int) bool {
	for _, d := range AllowedDurations {
		if minutes == d {
			return true
		}
	}
	return false
}

// AccessRequest is a user's petition for temporary access to a resource.
//
// Invariants:
//   - Status is pending iff ApprovedBy is zero
//   - Once approved or rejected the record is immutable
//   - ExpiresAt is set on approval only; rejection leaves it nil
type AccessRequest struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	ApplicationID   int64      `json:"applicationId"`
	ResourceID      int64      `json:"resourceId"`
	AccessType      AccessType `json:"accessType"`
	DurationMinutes int        `json:"duration"`
	Justification   string     `json:"justification"`
	Status          Status     `json:"status"`
	ApprovedBy      int64      `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (r AccessRequest) Key() int64 { return r.ID }

func (r AccessRequest) WithKey(id int64) AccessRequest {
	r.ID = id
	return r
}

// NewAccessRequest validates the submission and builds a pending request.
func NewAccessRequest(userID, applicationID, resourceID int64, accessType AccessType, durationMinutes int, justification string, now time.Time) (AccessRequest, error) {
	if !accessType.Valid() {
		return AccessRequest{}, dErrors.New(dErrors.CodeValidation, "unrecognized access type")
	}
	if !DurationAllowed(durationMinutes) {
		return AccessRequest{}, dErrors.New(dErrors.CodeValidation, "duration must be one of 15, 30, 60 or 120 minutes")
	}
	if justification == "" {
		return AccessRequest{}, dErrors.New(dErrors.CodeValidation, "justification is required")
	}
	return AccessRequest{
		UserID:          userID,
		ApplicationID:   applicationID,
		ResourceID:      resourceID,
		AccessType:      accessType,
		DurationMinutes: durationMinutes,
		Justification:   justification,
		Status:          StatusPending,
		CreatedAt:       now,
	}, nil
}

// CanDecide checks that the request is still pending. Use with
// ApplyApproval/ApplyRejection in Execute callbacks so the check and the
// flip happen under one lock.
func (r AccessRequest) CanDecide() error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is already "+string(r.Status))
	}
	return nil
}

// ApplyApproval flips the request to its approved terminal state.
// Call CanDecide first to validate the transition.
func (r *AccessRequest) ApplyApproval(approverID int64, now, expiresAt time.Time) {
	r.Status = StatusApproved
	r.ApprovedBy = approverID
	r.ApprovedAt = &now
	r.ExpiresAt = &expiresAt
}

// ApplyRejection flips the request to its rejected terminal state.
// ExpiresAt intentionally stays nil: a rejected request never had a grant
// window.
func (r *AccessRequest) ApplyRejection(approverID int64, now time.Time) {
	r.Status = StatusRejected
	r.ApprovedBy = approverID
	r.ApprovedAt = &now
}
