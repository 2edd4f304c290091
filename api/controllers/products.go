package controllers

import (
	"context"
	"net/http"

	"github.com/procurebot/procurement-backend/api/responses"
	"github.com/procurebot/procurement-backend/api/validators"
	"github.com/procurebot/procurement-backend/internal/catalog"
	"github.com/procurebot/procurement-backend/internal/sourcing"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/types"
)

// ProductService is the product surface of the catalog.
type ProductService interface {
	CreateProduct(ctx context.Context, input catalog.CreateProductInput) (*catalog.ProductDTO, error)
	UpdateProduct(ctx context.Context, id types.ID, input catalog.UpdateProductInput) (*catalog.ProductDTO, error)
	DeleteProduct(ctx context.Context, id types.ID) error
	ListProducts(ctx context.Context) ([]catalog.ProductDTO, error)
	ListOrderableProducts(ctx context.Context) ([]catalog.OrderableProduct, error)
}

// RankingService edits a product's ranked supplier list.
type RankingService interface {
	Attach(ctx context.Context, productID, supplierID types.ID) ([]sourcing.RankedSupplier, error)
	Detach(ctx context.Context, productID, supplierID types.ID) ([]sourcing.RankedSupplier, error)
	SetPrimary(ctx context.Context, productID, supplierID types.ID) ([]sourcing.RankedSupplier, error)
	ListSuppliers(ctx context.Context, productID types.ID) ([]sourcing.RankedSupplier, error)
}

type createProductRequest struct {
	Name     string  `json:"name" validate:"required,min=2,max=200"`
	Unit     string  `json:"unit" validate:"required,max=32"`
	Category *string `json:"category,omitempty" validate:"omitempty,max=100"`
	// SupplierID is the single-supplier shorthand; it is ranked first.
	SupplierID  *types.ID  `json:"supplier_id,omitempty"`
	SupplierIDs []types.ID `json:"supplier_ids,omitempty" validate:"omitempty,max=50"`
}

func (p createProductRequest) toInput() catalog.CreateProductInput {
	ids := make([]types.ID, 0, len(p.SupplierIDs)+1)
	if p.SupplierID != nil {
		ids = append(ids, *p.SupplierID)
	}
	ids = append(ids, p.SupplierIDs...)
	return catalog.CreateProductInput{
		Name:        p.Name,
		Unit:        p.Unit,
		Category:    p.Category,
		SupplierIDs: ids,
	}
}

type updateProductRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Unit     *string `json:"unit,omitempty" validate:"omitempty,min=1,max=32"`
	Category *string `json:"category,omitempty" validate:"omitempty,max=100"`
	Active   *bool   `json:"active,omitempty"`
}

type attachSupplierRequest struct {
	SupplierID types.ID `json:"supplier_id" validate:"required"`
}

func ListOrderableProducts(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListOrderableProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminListProducts(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminCreateProduct(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func AdminUpdateProduct(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), id, catalog.UpdateProductInput{
			Name:     payload.Name,
			Unit:     payload.Unit,
			Category: payload.Category,
			Active:   payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminDeleteProduct(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func AdminListProductSuppliers(svc RankingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListSuppliers(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminAttachSupplier appends the supplier to the ranking. Attaching an
// already linked supplier returns the unchanged list.
func AdminAttachSupplier(svc RankingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload attachSupplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.Attach(r.Context(), productID, payload.SupplierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminDetachSupplier(svc RankingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, supplierID, ok := rankingParams(w, r, logg)
		if !ok {
			return
		}

		list, err := svc.Detach(r.Context(), productID, supplierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminSetPrimarySupplier(svc RankingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, supplierID, ok := rankingParams(w, r, logg)
		if !ok {
			return
		}

		list, err := svc.SetPrimary(r.Context(), productID, supplierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func rankingParams(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (types.ID, types.ID, bool) {
	productID, err := validators.ParseIDParam(r, "productId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return 0, 0, false
	}
	supplierID, err := validators.ParseIDParam(r, "supplierId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return 0, 0, false
	}
	return productID, supplierID, true
}
