package catalog

import (
	"time"

	"github.com/procurebot/procurement-backend/internal/sourcing"
	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/types"
)

// DefaultCategory is assigned to products created without a category.
const DefaultCategory = "Общее"

const minNameLength = 2

// CreateSupplierInput carries the fields accepted when creating a supplier.
type CreateSupplierInput struct {
	Name        string
	ContactNote *string
}

// UpdateSupplierInput is a partial update; nil fields are left unchanged.
type UpdateSupplierInput struct {
	Name        *string
	ContactNote *string
	Active      *bool
}

type CreateProductInput struct {
	Name     string
	Unit     string
	Category *string
	// SupplierIDs is the initial ranking, primary first.
	SupplierIDs []types.ID
}

type UpdateProductInput struct {
	Name     *string
	Unit     *string
	Category *string
	Active   *bool
}

type SupplierDTO struct {
	ID          types.ID  `json:"id"`
	Name        string    `json:"name"`
	ContactNote *string   `json:"contact_note,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductDTO struct {
	ID        types.ID                  `json:"id"`
	Name      string                    `json:"name"`
	Unit      string                    `json:"unit"`
	Category  string                    `json:"category"`
	Active    bool                      `json:"active"`
	Suppliers []sourcing.RankedSupplier `json:"suppliers"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// OrderableProduct is the staff view of a product that can be requested now.
type OrderableProduct struct {
	ID           types.ID `json:"id"`
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	Category     string   `json:"category"`
	SupplierID   types.ID `json:"supplier_id"`
	SupplierName string   `json:"supplier_name"`
	OnOrder      bool     `json:"on_order"`
}

// DeleteSupplierResult reports what the cascade removed.
type DeleteSupplierResult struct {
	SupplierID      types.ID   `json:"supplier_id"`
	DeletedOrders   int64      `json:"deleted_orders"`
	DeletedProducts []types.ID `json:"deleted_products"`
}

func newSupplierDTO(s models.Supplier) SupplierDTO {
	return SupplierDTO{
		ID:          s.ID,
		Name:        s.Name,
		ContactNote: s.ContactNote,
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func newProductDTO(p models.Product, suppliers []sourcing.RankedSupplier) ProductDTO {
	if suppliers == nil {
		suppliers = []sourcing.RankedSupplier{}
	}
	return ProductDTO{
		ID:        p.ID,
		Name:      p.Name,
		Unit:      p.Unit,
		Category:  p.Category,
		Active:    p.Active,
		Suppliers: suppliers,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
