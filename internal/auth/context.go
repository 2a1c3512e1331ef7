package auth

import "context"

// Role names recognised by the API.
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RoleStaff   = "staff"
	RolePatient = "patient"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID    string
	Role      string
	PatientID string // set only for patient tokens
}

type ctxKey string

const identityKey ctxKey = "clinic.identity"

// WithIdentity stores the identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the identity if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// IsStaff reports whether the identity may act on any appointment.
func (id Identity) IsStaff() bool {
	return id.Role == RoleAdmin || id.Role == RoleStaff || id.Role == RoleDoctor
}
