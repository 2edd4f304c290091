package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/procurebot/procurement-backend/pkg/auth"
	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
)

type store interface {
	Upsert(ctx context.Context, user *models.User) error
}

// AdminLookup decides whether a Telegram id is an administrator.
type AdminLookup interface {
	IsAdmin(tgUserID string) bool
}

// Service turns verified Telegram identities into principals and keeps the
// users table current.
type Service struct {
	repo   store
	admins AdminLookup
}

func NewService(repo store, admins AdminLookup) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if admins == nil {
		return nil, fmt.Errorf("admin lookup required")
	}
	return &Service{repo: repo, admins: admins}, nil
}

// EnsurePrincipal upserts the user row and returns the resolved principal.
// The role is recomputed from the admin list on every call.
func (s *Service) EnsurePrincipal(ctx context.Context, tgUserID, name string) (auth.Principal, error) {
	id := strings.TrimSpace(tgUserID)
	if id == "" {
		return auth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "telegram user id missing")
	}
	role := enums.UserRoleStaff
	if s.admins.IsAdmin(id) {
		role = enums.UserRoleAdmin
	}
	user := &models.User{TGUserID: id, Name: strings.TrimSpace(name), Role: role}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return auth.Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert user")
	}
	return auth.Principal{UserID: id, Name: user.Name, Role: role}, nil
}

// EnsureDevPrincipal upserts the local development user. It is only reachable
// when the unsafe dev bypass is enabled and is granted the admin role so the
// whole API can be exercised without Telegram.
func (s *Service) EnsureDevPrincipal(ctx context.Context) (auth.Principal, error) {
	user := &models.User{TGUserID: auth.DevUserID, Name: auth.DevUserName, Role: enums.UserRoleAdmin}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return auth.Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert dev user")
	}
	return auth.Principal{UserID: user.TGUserID, Name: user.Name, Role: user.Role}, nil
}
