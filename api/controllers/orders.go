package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/procurebot/procurement-backend/api/middleware"
	"github.com/procurebot/procurement-backend/api/responses"
	"github.com/procurebot/procurement-backend/api/validators"
	"github.com/procurebot/procurement-backend/internal/orders"
	"github.com/procurebot/procurement-backend/pkg/auth"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/types"
)

// OrderService exposes the pending-order views and line reconciliation.
type OrderService interface {
	ListActiveOrders(ctx context.Context, principal auth.Principal) ([]orders.SupplierOrders, error)
	AdjustItem(ctx context.Context, itemID types.ID, input orders.AdjustItemInput) (*orders.OrderItemDTO, error)
}

type adjustItemRequest struct {
	QtyFinal *decimal.Decimal `json:"qty_final" validate:"required"`
	Note     *string          `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ListActiveOrders returns pending orders grouped by supplier.
func ListActiveOrders(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		groups, err := svc.ListActiveOrders(r.Context(), principal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, groups)
	}
}

func AdminAdjustOrderItem(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AdjustItem(r.Context(), itemID, orders.AdjustItemInput{
			QtyFinal: *payload.QtyFinal,
			Note:     payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
