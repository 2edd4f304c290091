package requisitions

import (
	"context"
	"time"

	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository persists requisitions and reads their split results.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, requisition *models.Requisition) error
	CreateItem(ctx context.Context, item *models.RequisitionItem) error
	UpdateStatus(ctx context.Context, id types.ID, status enums.RequisitionStatus) error
	UserName(ctx context.Context, userID string) (string, error)

	List(ctx context.Context, limit int) ([]Summary, error)
	Find(ctx context.Context, id types.ID) (*Summary, error)
	ListOrderLines(ctx context.Context, requisitionID types.ID) ([]OrderLine, error)
}

// Summary is a requisition row with submitter name and split counts.
type Summary struct {
	ID         types.ID                `json:"id"`
	UserID     string                  `json:"user_id"`
	UserName   string                  `json:"user_name"`
	Status     enums.RequisitionStatus `json:"status"`
	OrderCount int                     `json:"order_count"`
	ItemCount  int                     `json:"item_count"`
	CreatedAt  time.Time               `json:"created_at"`
}

// OrderLine is one order item of a requisition joined with its order,
// supplier and product.
type OrderLine struct {
	OrderID      types.ID
	SupplierID   types.ID
	SupplierName string
	Status       enums.OrderStatus
	DeliveredAt  *time.Time
	ItemID       types.ID
	ProductID    types.ID
	ProductName  string
	Unit         string
	QtyRequested decimal.Decimal
	QtyFinal     decimal.Decimal
	Note         *string
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a requisitions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, requisition *models.Requisition) error {
	return r.db.WithContext(ctx).Omit("Items", "Orders").Create(requisition).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.RequisitionItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id types.ID, status enums.RequisitionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Requisition{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// UserName returns the stored display name, or an empty string for unknown
// users.
func (r *repository) UserName(ctx context.Context, userID string) (string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("tg_user_id = ?", userID).
		Limit(1).
		Pluck("name", &names).Error
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[0], nil
}

func (r *repository) summaryQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("requisitions AS r").
		Select(`r.id, r.user_id, COALESCE(u.name, '') AS user_name, r.status, r.created_at,
			(SELECT COUNT(*) FROM orders AS o WHERE o.requisition_id = r.id) AS order_count,
			(SELECT COUNT(*) FROM requisition_items AS ri WHERE ri.requisition_id = r.id) AS item_count`).
		Joins("LEFT JOIN users AS u ON u.tg_user_id = r.user_id")
}

func (r *repository) List(ctx context.Context, limit int) ([]Summary, error) {
	var rows []Summary
	err := r.summaryQuery(ctx).
		Order("r.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) Find(ctx context.Context, id types.ID) (*Summary, error) {
	var rows []Summary
	if err := r.summaryQuery(ctx).Where("r.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// ListOrderLines returns the requisition's order items ordered by supplier
// name and product name.
func (r *repository) ListOrderLines(ctx context.Context, requisitionID types.ID) ([]OrderLine, error) {
	var rows []OrderLine
	err := r.db.WithContext(ctx).
		Table("orders AS o").
		Select(`o.id AS order_id, o.supplier_id, s.name AS supplier_name, o.status, o.delivered_at,
			oi.id AS item_id, oi.product_id, p.name AS product_name, p.unit,
			oi.qty_requested, oi.qty_final, oi.note`).
		Joins("JOIN suppliers AS s ON s.id = o.supplier_id").
		Joins("JOIN order_items AS oi ON oi.order_id = o.id").
		Joins("JOIN products AS p ON p.id = oi.product_id").
		Where("o.requisition_id = ?", requisitionID).
		Order("s.name ASC").
		Order("o.id ASC").
		Order("p.name ASC").
		Order("oi.id ASC").
		Scan(&rows).Error
	return rows, err
}
