package auth

import (
	"context"

	"github.com/procurebot/procurement-backend/pkg/enums"
)

// Identity used when unsafe dev access is enabled.
const (
	DevUserID   = "dev"
	DevUserName = "Dev User"
)

// Principal is the caller identity the domain services consume.
type Principal struct {
	UserID string         `json:"id"`
	Name   string         `json:"name"`
	Role   enums.UserRole `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == enums.UserRoleAdmin
}

type principalKey struct{}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}
