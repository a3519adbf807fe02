package auth

import "context"

type contextKey string

const contextKeyIdentity contextKey = "auth.identity"

// Identity describes the authenticated caller.
type Identity struct {
	UserID string
	OrgID  string
	Role   Role
}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	if !ok || identity.UserID == "" {
		return Identity{}, false
	}
	return identity, true
}
