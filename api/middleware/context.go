package middleware

import (
	"context"

	"github.com/procurebot/procurement-backend/pkg/auth"
)

// PrincipalFromContext returns the caller resolved by TelegramAuth.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	if ctx == nil {
		return auth.Principal{}, false
	}
	return auth.PrincipalFromContext(ctx)
}

func UserIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

func RoleFromContext(ctx context.Context) string {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return string(p.Role)
}
