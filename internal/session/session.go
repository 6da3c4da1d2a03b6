// Package session carries the authenticated identity of a request into services and repositories.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/brovoice-api/internal/models"
)

var (
	// ErrUnauthenticated indicates the caller carries no identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the caller's role does not permit the operation.
	ErrForbidden = errors.New("insufficient permissions")
)

// Session is the explicit identity passed into every data access call.
type Session struct {
	UserID    string
	Role      string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// New builds a session with a normalised role.
func New(userID, role, email string) Session {
	return Session{
		UserID: strings.TrimSpace(userID),
		Role:   NormalizeRole(role),
		Email:  strings.ToLower(strings.TrimSpace(email)),
	}
}

// Authenticated reports whether the session identifies a user with a known role.
func (s Session) Authenticated() bool {
	return s.UserID != "" && models.IsValidRole(s.Role)
}

// IsStudent reports whether the session belongs to a student.
func (s Session) IsStudent() bool {
	return s.Role == models.RoleStudent
}

// IsStaff reports whether the session belongs to staff or an administrator.
func (s Session) IsStaff() bool {
	return s.Role == models.RoleStaff || s.Role == models.RoleAdmin
}

// IsAdmin reports whether the session belongs to an administrator.
func (s Session) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

// Require returns ErrUnauthenticated for anonymous sessions and ErrForbidden when the role is not listed.
func (s Session) Require(roles ...string) error {
	if !s.Authenticated() {
		return ErrUnauthenticated
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if NormalizeRole(role) == s.Role {
			return nil
		}
	}
	return ErrForbidden
}

// RequireStaff is shorthand for Require(staff, admin).
func (s Session) RequireStaff() error {
	return s.Require(models.RoleStaff, models.RoleAdmin)
}

// NormalizeRole lower-cases and trims a role name.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

type sessionKey struct{}

// WithSession attaches the session to ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext extracts the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
