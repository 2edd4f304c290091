package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/procurebot/procurement-backend/internal/sourcing"
	dbpkg "github.com/procurebot/procurement-backend/pkg/db"
	"github.com/procurebot/procurement-backend/pkg/db/models"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/idgen"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/types"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// rankingStore is the slice of the supplier resolver the catalog needs.
type rankingStore interface {
	AttachTx(ctx context.Context, tx *gorm.DB, productID, supplierID types.ID) error
	ListRankedTx(ctx context.Context, tx *gorm.DB, productIDs []types.ID) (map[types.ID][]sourcing.RankedSupplier, error)
	RemoveSupplierTx(ctx context.Context, tx *gorm.DB, supplierID types.ID) ([]types.ID, error)
}

type pendingProducts interface {
	PendingProductIDs(ctx context.Context) (map[types.ID]struct{}, error)
}

// Service implements supplier and product administration plus the staff
// product listing.
type Service struct {
	tx       txRunner
	repo     Repository
	rankings rankingStore
	pending  pendingProducts
	ids      idgen.Generator
	logg     *logger.Logger
}

// NewService builds the catalog service. pending may be nil, in which case
// staff listings never flag products as already on order.
func NewService(tx txRunner, repo Repository, rankings rankingStore, pending pendingProducts, ids idgen.Generator, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if rankings == nil {
		return nil, fmt.Errorf("ranking store required")
	}
	if ids == nil {
		ids = idgen.Default()
	}
	return &Service{tx: tx, repo: repo, rankings: rankings, pending: pending, ids: ids, logg: logg}, nil
}

func (s *Service) CreateSupplier(ctx context.Context, input CreateSupplierInput) (*SupplierDTO, error) {
	name, err := normalizeName(input.Name, "supplier")
	if err != nil {
		return nil, err
	}
	supplier := models.Supplier{
		ID:          s.ids.Next(),
		Name:        name,
		ContactNote: trimOptional(input.ContactNote),
		Active:      true,
	}
	if err := s.repo.CreateSupplier(ctx, &supplier); err != nil {
		return nil, mapWriteError(err, "supplier name already exists", "create supplier")
	}
	dto := newSupplierDTO(supplier)
	return &dto, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id types.ID, input UpdateSupplierInput) (*SupplierDTO, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name, err := normalizeName(*input.Name, "supplier")
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if input.ContactNote != nil {
		updates["contact_note"] = trimOptional(input.ContactNote)
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}

	var result *models.Supplier
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.findSupplier(ctx, repo, id); err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := repo.UpdateSupplier(ctx, id, updates); err != nil {
				return mapWriteError(err, "supplier name already exists", "update supplier")
			}
		}
		updated, err := s.findSupplier(ctx, repo, id)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newSupplierDTO(*result)
	return &dto, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]SupplierDTO, error) {
	rows, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
	}
	out := make([]SupplierDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newSupplierDTO(row))
	}
	return out, nil
}

// DeleteSupplier removes the supplier with its orders and rankings. Products
// whose only supplier it was are deleted as well; other products keep their
// remaining suppliers, renumbered.
func (s *Service) DeleteSupplier(ctx context.Context, id types.ID) (*DeleteSupplierResult, error) {
	result := &DeleteSupplierResult{SupplierID: id, DeletedProducts: []types.ID{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.findSupplier(ctx, repo, id); err != nil {
			return err
		}
		deletedOrders, err := repo.DeleteSupplierOrders(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete supplier orders")
		}
		result.DeletedOrders = deletedOrders

		orphaned, err := s.rankings.RemoveSupplierTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := repo.DeleteProducts(ctx, orphaned); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete orphaned products")
		}
		if len(orphaned) > 0 {
			result.DeletedProducts = orphaned
		}
		if err := repo.DeleteSupplier(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete supplier")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithSupplierID(ctx, id.Int64())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"deleted_orders":   result.DeletedOrders,
			"deleted_products": len(result.DeletedProducts),
		})
		s.logg.Info(logCtx, "supplier deleted")
	}
	return result, nil
}

func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name, err := normalizeName(input.Name, "product")
	if err != nil {
		return nil, err
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit is required").
			WithDetails(map[string]any{"field": "unit"})
	}
	product := models.Product{
		ID:       s.ids.Next(),
		Name:     name,
		Unit:     unit,
		Category: normalizeCategory(input.Category),
		Active:   true,
	}

	var dto ProductDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, supplierID := range input.SupplierIDs {
			supplier, err := s.findSupplier(ctx, repo, supplierID)
			if err != nil {
				return err
			}
			if !supplier.Active {
				return pkgerrors.New(pkgerrors.CodeValidation, "supplier is deactivated").
					WithDetails(map[string]any{"supplier_id": supplierID})
			}
		}
		if err := repo.CreateProduct(ctx, &product); err != nil {
			return mapWriteError(err, "product name already exists", "create product")
		}
		for _, supplierID := range input.SupplierIDs {
			if err := s.rankings.AttachTx(ctx, tx, product.ID, supplierID); err != nil {
				return err
			}
		}
		ranked, err := s.rankings.ListRankedTx(ctx, tx, []types.ID{product.ID})
		if err != nil {
			return err
		}
		dto = newProductDTO(product, ranked[product.ID])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id types.ID, input UpdateProductInput) (*ProductDTO, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name, err := normalizeName(*input.Name, "product")
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if input.Unit != nil {
		unit := strings.TrimSpace(*input.Unit)
		if unit == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit is required").
				WithDetails(map[string]any{"field": "unit"})
		}
		updates["unit"] = unit
	}
	if input.Category != nil {
		updates["category"] = normalizeCategory(input.Category)
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}

	var dto ProductDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.findProduct(ctx, repo, id); err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := repo.UpdateProduct(ctx, id, updates); err != nil {
				return mapWriteError(err, "product name already exists", "update product")
			}
		}
		product, err := s.findProduct(ctx, repo, id)
		if err != nil {
			return err
		}
		ranked, err := s.rankings.ListRankedTx(ctx, tx, []types.ID{id})
		if err != nil {
			return err
		}
		dto = newProductDTO(*product, ranked[id])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteProduct removes the product with its rankings and line items.
func (s *Service) DeleteProduct(ctx context.Context, id types.ID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.findProduct(ctx, repo, id); err != nil {
			return err
		}
		if err := repo.DeleteProducts(ctx, []types.ID{id}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		return nil
	})
}

// ListProducts is the admin view: every product with its ranked suppliers.
func (s *Service) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	ranked, err := s.rankings.ListRankedTx(ctx, nil, productIDs(rows))
	if err != nil {
		return nil, err
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newProductDTO(row, ranked[row.ID]))
	}
	return out, nil
}

// ListOrderableProducts is the staff view: active products that resolve to
// an active supplier, flagged when already waiting in a pending order.
func (s *Service) ListOrderableProducts(ctx context.Context) ([]OrderableProduct, error) {
	rows, err := s.repo.ListProducts(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	ranked, err := s.rankings.ListRankedTx(ctx, nil, productIDs(rows))
	if err != nil {
		return nil, err
	}
	onOrder := map[types.ID]struct{}{}
	if s.pending != nil {
		onOrder, err = s.pending.PendingProductIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	out := make([]OrderableProduct, 0, len(rows))
	for _, row := range rows {
		supplier, ok := firstActive(ranked[row.ID])
		if !ok {
			continue
		}
		_, pending := onOrder[row.ID]
		out = append(out, OrderableProduct{
			ID:           row.ID,
			Name:         row.Name,
			Unit:         row.Unit,
			Category:     row.Category,
			SupplierID:   supplier.SupplierID,
			SupplierName: supplier.Name,
			OnOrder:      pending,
		})
	}
	return out, nil
}

func (s *Service) findSupplier(ctx context.Context, repo Repository, id types.ID) (*models.Supplier, error) {
	supplier, err := repo.FindSupplier(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found").
				WithDetails(map[string]any{"supplier_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier")
	}
	return supplier, nil
}

func (s *Service) findProduct(ctx context.Context, repo Repository, id types.ID) (*models.Product, error) {
	product, err := repo.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func firstActive(list []sourcing.RankedSupplier) (sourcing.RankedSupplier, bool) {
	for _, candidate := range list {
		if candidate.Active {
			return candidate, true
		}
	}
	return sourcing.RankedSupplier{}, false
}

func productIDs(rows []models.Product) []types.ID {
	ids := make([]types.ID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids
}

func normalizeName(raw, entity string) (string, error) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) < minNameLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, entity+" name is too short").
			WithDetails(map[string]any{"field": "name", "min_length": minNameLength})
	}
	return name, nil
}

func normalizeCategory(raw *string) string {
	if raw == nil {
		return DefaultCategory
	}
	category := strings.TrimSpace(*raw)
	if category == "" {
		return DefaultCategory
	}
	return category
}

func trimOptional(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapWriteError(err error, conflictMsg, op string) error {
	if dbpkg.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, conflictMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
