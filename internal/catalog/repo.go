package catalog

import (
	"context"

	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists suppliers and products.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSupplier(ctx context.Context, supplier *models.Supplier) error
	FindSupplier(ctx context.Context, id types.ID) (*models.Supplier, error)
	UpdateSupplier(ctx context.Context, id types.ID, updates map[string]any) error
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	DeleteSupplierOrders(ctx context.Context, supplierID types.ID) (int64, error)
	DeleteSupplier(ctx context.Context, id types.ID) error

	CreateProduct(ctx context.Context, product *models.Product) error
	FindProduct(ctx context.Context, id types.ID) (*models.Product, error)
	FindProductsByIDs(ctx context.Context, ids []types.ID) (map[types.ID]models.Product, error)
	LockProductsByIDs(ctx context.Context, ids []types.ID) (map[types.ID]models.Product, error)
	UpdateProduct(ctx context.Context, id types.ID, updates map[string]any) error
	ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error)
	DeleteProducts(ctx context.Context, ids []types.ID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

func (r *repository) FindSupplier(ctx context.Context, id types.ID) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *repository) UpdateSupplier(ctx context.Context, id types.ID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Supplier{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var rows []models.Supplier
	err := r.db.WithContext(ctx).
		Order("active DESC").
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// DeleteSupplierOrders removes every order addressed to the supplier along
// with its items.
func (r *repository) DeleteSupplierOrders(ctx context.Context, supplierID types.ID) (int64, error) {
	db := r.db.WithContext(ctx)
	orderIDs := db.Model(&models.Order{}).Select("id").Where("supplier_id = ?", supplierID)
	if err := db.Where("order_id IN (?)", orderIDs).Delete(&models.OrderItem{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("supplier_id = ?", supplierID).Delete(&models.Order{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteSupplier(ctx context.Context, id types.ID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Supplier{}).Error
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Suppliers").Create(product).Error
}

func (r *repository) FindProduct(ctx context.Context, id types.ID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProductsByIDs(ctx context.Context, ids []types.ID) (map[types.ID]models.Product, error) {
	out := make(map[types.ID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// LockProductsByIDs loads the products and, on Postgres, holds their rows
// FOR UPDATE until the transaction ends. Rows are locked in id order. SQLite
// transactions already hold the database write lock.
func (r *repository) LockProductsByIDs(ctx context.Context, ids []types.ID) (map[types.ID]models.Product, error) {
	out := make(map[types.ID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := productsForUpdate(r.db.WithContext(ctx), ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func productsForUpdate(db *gorm.DB, ids []types.ID) *gorm.DB {
	query := db.Model(&models.Product{}).Where("id IN ?", ids).Order("id ASC")
	if db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return query
}

func (r *repository) UpdateProduct(ctx context.Context, id types.ID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("active = ?", true).Order("category ASC").Order("name ASC")
	} else {
		query = query.Order("active DESC").Order("name ASC")
	}
	var rows []models.Product
	err := query.Find(&rows).Error
	return rows, err
}

// DeleteProducts removes the products with their rankings, requisition
// items and order items. Orders emptied by the removal are deleted too.
func (r *repository) DeleteProducts(ctx context.Context, ids []types.ID) error {
	if len(ids) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)

	var touched []types.ID
	if err := db.Model(&models.OrderItem{}).
		Distinct("order_id").
		Where("product_id IN ?", ids).
		Pluck("order_id", &touched).Error; err != nil {
		return err
	}

	if err := db.Where("product_id IN ?", ids).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	if err := db.Where("product_id IN ?", ids).Delete(&models.RequisitionItem{}).Error; err != nil {
		return err
	}
	if err := db.Where("product_id IN ?", ids).Delete(&models.ProductSupplier{}).Error; err != nil {
		return err
	}
	if len(touched) > 0 {
		remaining := db.Model(&models.OrderItem{}).Select("order_id")
		if err := db.Where("id IN ? AND id NOT IN (?)", touched, remaining).
			Delete(&models.Order{}).Error; err != nil {
			return err
		}
	}
	return db.Where("id IN ?", ids).Delete(&models.Product{}).Error
}
