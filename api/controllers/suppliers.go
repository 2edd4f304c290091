package controllers

import (
	"context"
	"net/http"

	"github.com/procurebot/procurement-backend/api/middleware"
	"github.com/procurebot/procurement-backend/api/responses"
	"github.com/procurebot/procurement-backend/api/validators"
	"github.com/procurebot/procurement-backend/internal/catalog"
	"github.com/procurebot/procurement-backend/internal/orders"
	"github.com/procurebot/procurement-backend/pkg/auth"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/types"
)

// SupplierService is the admin supplier surface of the catalog.
type SupplierService interface {
	CreateSupplier(ctx context.Context, input catalog.CreateSupplierInput) (*catalog.SupplierDTO, error)
	UpdateSupplier(ctx context.Context, id types.ID, input catalog.UpdateSupplierInput) (*catalog.SupplierDTO, error)
	DeleteSupplier(ctx context.Context, id types.ID) (*catalog.DeleteSupplierResult, error)
	ListSuppliers(ctx context.Context) ([]catalog.SupplierDTO, error)
}

// DeliveryService acknowledges supplier deliveries.
type DeliveryService interface {
	MarkDelivered(ctx context.Context, supplierID types.ID, actor auth.Principal) (*orders.DeliveryResult, error)
}

type createSupplierRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=200"`
	ContactNote *string `json:"contact_note,omitempty" validate:"omitempty,max=1000"`
}

type updateSupplierRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	ContactNote *string `json:"contact_note,omitempty" validate:"omitempty,max=1000"`
	Active      *bool   `json:"active,omitempty"`
}

func AdminListSuppliers(svc SupplierService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListSuppliers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminCreateSupplier(svc SupplierService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createSupplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		supplier, err := svc.CreateSupplier(r.Context(), catalog.CreateSupplierInput{
			Name:        payload.Name,
			ContactNote: payload.ContactNote,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, supplier)
	}
}

func AdminUpdateSupplier(svc SupplierService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, "supplierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateSupplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		supplier, err := svc.UpdateSupplier(r.Context(), id, catalog.UpdateSupplierInput{
			Name:        payload.Name,
			ContactNote: payload.ContactNote,
			Active:      payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, supplier)
	}
}

func AdminDeleteSupplier(svc SupplierService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, "supplierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.DeleteSupplier(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminMarkDelivered closes every pending order of the supplier in one call.
func AdminMarkDelivered(svc DeliveryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		id, err := validators.ParseIDParam(r, "supplierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.MarkDelivered(r.Context(), id, principal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
