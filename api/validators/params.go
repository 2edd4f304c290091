package validators

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/types"
)

// ParseIDParam reads a snowflake id from a chi URL parameter.
func ParseIDParam(r *http.Request, name string) (types.ID, error) {
	id, err := types.ParseID(chi.URLParam(r, name))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid path parameter").
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
