package models

import "time"

// Role is the fixed set of roles recognized by the role checks. There is no
// configurable policy layer; the access package hard-codes what each role
// may do.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleTPO       Role = "TPO"
	RoleDeveloper Role = "Developer"
	RoleQA        Role = "QA"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTPO, RoleDeveloper, RoleQA:
		return true
	}
	return false
}

// User is the identity referenced by requests, sessions, and audit entries.
// Other modules hold user ids, never embedded users. PasswordHash is a
// bcrypt hash and is never serialized.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         Role      `json:"role"`
	Email        string    `json:"email"`
	Active       bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Key() int64 { return u.ID }

func (u User) WithKey(id int64) User {
	u.ID = id
	return u
}
