package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/procurebot/procurement-backend/api/responses"
	"github.com/procurebot/procurement-backend/pkg/auth"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/logger"
)

const (
	InitDataHeader = "X-TG-INIT-DATA"
	initDataQuery  = "initData"
)

type initDataVerifier interface {
	Verify(raw string) (*auth.InitData, error)
}

type principalResolver interface {
	EnsurePrincipal(ctx context.Context, tgUserID, name string) (auth.Principal, error)
	EnsureDevPrincipal(ctx context.Context) (auth.Principal, error)
}

// TelegramAuth validates Telegram WebApp init data and seeds the request
// context with the resolved principal. With devAllowUnsafe set, requests
// without init data are served as the dev user.
func TelegramAuth(verifier initDataVerifier, users principalResolver, devAllowUnsafe bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := pickInitData(r)

			var (
				principal auth.Principal
				err       error
			)
			switch {
			case raw == "" && devAllowUnsafe:
				principal, err = users.EnsureDevPrincipal(ctx)
			case raw == "":
				err = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing init data")
			case verifier == nil:
				err = pkgerrors.New(pkgerrors.CodeUnauthorized, "telegram verification unavailable")
			default:
				principal, err = resolveTelegram(ctx, verifier, users, raw)
			}
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = auth.WithPrincipal(ctx, principal)
			if logg != nil {
				ctx = logg.WithUserID(ctx, principal.UserID)
				ctx = logg.WithActorRole(ctx, string(principal.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveTelegram(ctx context.Context, verifier initDataVerifier, users principalResolver, raw string) (auth.Principal, error) {
	data, err := verifier.Verify(raw)
	if err != nil {
		msg := "invalid init data"
		switch {
		case errors.Is(err, auth.ErrBadHash):
			msg = "bad hash"
		case errors.Is(err, auth.ErrExpiredInitData):
			msg = "init data expired"
		case errors.Is(err, auth.ErrMissingUser):
			msg = "init data has no user"
		}
		return auth.Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg)
	}
	return users.EnsurePrincipal(ctx, strconv.FormatInt(data.User.ID, 10), data.User.DisplayName())
}

func pickInitData(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(InitDataHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get(initDataQuery))
}
