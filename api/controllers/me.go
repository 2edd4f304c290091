package controllers

import (
	"net/http"

	"github.com/procurebot/procurement-backend/api/middleware"
	"github.com/procurebot/procurement-backend/api/responses"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/logger"
)

// Me returns the principal resolved from the Telegram init data.
func Me(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		responses.WriteSuccess(w, principal)
	}
}
