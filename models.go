package tasks

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser UserRole = "user"
	// RoleAdmin grants access to the user management routes
	RoleAdmin UserRole = "admin"
)

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(role UserRole) bool {
	switch role {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is the user model. PasswordHash is never serialized and is
// excluded from default selects; repositories expose explicit
// *WithPassword lookups for the flows that verify or replace it.
type User struct {
	bun.BaseModel       `bun:"table:users,alias:usr"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email               string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash        string     `bun:"password_hash" json:"-"`
	IsActive            bool       `bun:"is_active" json:"is_active"`
	Role                UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	ResetToken          string     `bun:"reset_token,nullzero" json:"-"`
	ResetTokenExpiresAt *time.Time `bun:"reset_token_expires_at,nullzero" json:"-"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasOpenReset reports whether the user carries a reset token whose
// window has not yet expired at the given instant.
func (u *User) HasOpenReset(now time.Time) bool {
	if u.ResetToken == "" || u.ResetTokenExpiresAt == nil {
		return false
	}
	return now.Before(*u.ResetTokenExpiresAt)
}

// UserUpdate names exactly the fields an admin update may mutate. Nil
// pointers leave the stored value untouched.
type UserUpdate struct {
	Email    *string   `json:"email,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
	Role     *UserRole `json:"user_role,omitempty"`
	Password *string   `json:"password,omitempty"`
}

// IsZero reports whether the update would change nothing.
func (u UserUpdate) IsZero() bool {
	return u.Email == nil && u.IsActive == nil && u.Role == nil && u.Password == nil
}

// Task is the owned resource. The owner is stamped at creation from the
// authenticated identity and is immutable afterwards.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:tsk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Title         string     `bun:"title,notnull" json:"title,omitempty"`
	OwnerID       uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsOwnedBy reports whether the task belongs to the given user id.
func (t *Task) IsOwnedBy(id uuid.UUID) bool {
	return t.OwnerID == id
}

// TaskUpdate names exactly the fields a task update may mutate.
type TaskUpdate struct {
	Title *string `json:"title,omitempty"`
}
