package sourcing

import (
	"context"

	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/types"
	"gorm.io/gorm"
)

// RankedSupplier is one entry of a product's supplier list joined with the
// supplier row.
type RankedSupplier struct {
	ProductID   types.ID `json:"-"`
	SupplierID  types.ID `json:"supplier_id"`
	Name        string   `json:"name"`
	ContactNote *string  `json:"contact_note,omitempty"`
	Active      bool     `json:"active"`
	SortOrder   int      `json:"sort_order"`
	Primary     bool     `json:"primary"`
}

// Repository persists product-supplier rankings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LoadRanking(ctx context.Context, productID types.ID) (Ranking, error)
	SaveRanking(ctx context.Context, ranking Ranking) error
	ListRanked(ctx context.Context, productIDs []types.ID) (map[types.ID][]RankedSupplier, error)
	ProductIDsForSupplier(ctx context.Context, supplierID types.ID) ([]types.ID, error)
	ProductExists(ctx context.Context, productID types.ID) (bool, error)
	SupplierExists(ctx context.Context, supplierID types.ID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ranking repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LoadRanking(ctx context.Context, productID types.ID) (Ranking, error) {
	var rows []models.ProductSupplier
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("sort_order ASC").
		Order("supplier_id ASC").
		Find(&rows).Error
	if err != nil {
		return Ranking{}, err
	}
	return NewRanking(productID, rows), nil
}

// SaveRanking reconciles stored rows with the ranking: rows no longer ranked
// are deleted, the rest are renumbered 1..N and new suppliers inserted.
func (r *repository) SaveRanking(ctx context.Context, ranking Ranking) error {
	db := r.db.WithContext(ctx)

	var existing []models.ProductSupplier
	if err := db.Where("product_id = ?", ranking.ProductID()).Find(&existing).Error; err != nil {
		return err
	}
	stored := make(map[types.ID]int, len(existing))
	for _, row := range existing {
		stored[row.SupplierID] = row.SortOrder
	}

	for supplierID := range stored {
		if ranking.Contains(supplierID) {
			continue
		}
		if err := db.Where("product_id = ? AND supplier_id = ?", ranking.ProductID(), supplierID).
			Delete(&models.ProductSupplier{}).Error; err != nil {
			return err
		}
	}

	for _, row := range ranking.Rows() {
		current, ok := stored[row.SupplierID]
		if !ok {
			insert := row
			if err := db.Create(&insert).Error; err != nil {
				return err
			}
			continue
		}
		if current == row.SortOrder {
			continue
		}
		if err := db.Model(&models.ProductSupplier{}).
			Where("product_id = ? AND supplier_id = ?", row.ProductID, row.SupplierID).
			Update("sort_order", row.SortOrder).Error; err != nil {
			return err
		}
	}
	return nil
}

type rankedRow struct {
	ProductID   types.ID
	SupplierID  types.ID
	Name        string
	ContactNote *string
	Active      bool
	SortOrder   int
}

func (r *repository) ListRanked(ctx context.Context, productIDs []types.ID) (map[types.ID][]RankedSupplier, error) {
	out := make(map[types.ID][]RankedSupplier, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []rankedRow
	err := r.db.WithContext(ctx).
		Table("product_suppliers AS ps").
		Select("ps.product_id, ps.supplier_id, s.name, s.contact_note, s.active, ps.sort_order").
		Joins("JOIN suppliers AS s ON s.id = ps.supplier_id").
		Where("ps.product_id IN ?", productIDs).
		Order("ps.product_id ASC").
		Order("ps.sort_order ASC").
		Order("ps.supplier_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		list := out[row.ProductID]
		out[row.ProductID] = append(list, RankedSupplier{
			ProductID:   row.ProductID,
			SupplierID:  row.SupplierID,
			Name:        row.Name,
			ContactNote: row.ContactNote,
			Active:      row.Active,
			SortOrder:   row.SortOrder,
			Primary:     len(list) == 0,
		})
	}
	return out, nil
}

func (r *repository) ProductIDsForSupplier(ctx context.Context, supplierID types.ID) ([]types.ID, error) {
	var ids []types.ID
	err := r.db.WithContext(ctx).
		Model(&models.ProductSupplier{}).
		Where("supplier_id = ?", supplierID).
		Order("product_id ASC").
		Pluck("product_id", &ids).Error
	return ids, err
}

func (r *repository) ProductExists(ctx context.Context, productID types.ID) (bool, error) {
	return exists(r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID))
}

func (r *repository) SupplierExists(ctx context.Context, supplierID types.ID) (bool, error) {
	return exists(r.db.WithContext(ctx).Model(&models.Supplier{}).Where("id = ?", supplierID))
}

func exists(query *gorm.DB) (bool, error) {
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
