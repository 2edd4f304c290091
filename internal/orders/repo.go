package orders

import (
	"context"
	"time"

	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository persists per-supplier orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error

	ListPendingLines(ctx context.Context, submitterID string) ([]PendingLine, error)
	PendingProductIDs(ctx context.Context, productIDs []types.ID) ([]types.ID, error)

	FindSupplier(ctx context.Context, supplierID types.ID) (*models.Supplier, error)
	PendingOrderIDs(ctx context.Context, supplierID types.ID) ([]types.ID, error)
	MarkDelivered(ctx context.Context, orderIDs []types.ID, at time.Time) (int64, error)

	FindItem(ctx context.Context, itemID types.ID) (*ItemWithStatus, error)
	UpdateItem(ctx context.Context, itemID types.ID, updates map[string]any) error
}

// PendingLine is one order item of a pending order joined with its supplier
// and product.
type PendingLine struct {
	OrderItemID   types.ID
	OrderID       types.ID
	RequisitionID types.ID
	SupplierID    types.ID
	SupplierName  string
	ProductID     types.ID
	ProductName   string
	Unit          string
	QtyRequested  decimal.Decimal
	QtyFinal      decimal.Decimal
	Note          *string
	CreatedAt     time.Time
}

// ItemWithStatus is an order item together with its parent order status.
type ItemWithStatus struct {
	models.OrderItem
	OrderStatus enums.OrderStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Supplier").Create(order).Error
}

func (r *repository) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// ListPendingLines returns items of pending orders ordered by supplier name,
// product name and order age. A non-empty submitterID restricts the result to
// that user's requisitions.
func (r *repository) ListPendingLines(ctx context.Context, submitterID string) ([]PendingLine, error) {
	query := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select(`oi.id AS order_item_id, oi.order_id, o.requisition_id, o.supplier_id,
			s.name AS supplier_name, oi.product_id, p.name AS product_name, p.unit,
			oi.qty_requested, oi.qty_final, oi.note, o.created_at`).
		Joins("JOIN orders AS o ON o.id = oi.order_id").
		Joins("JOIN suppliers AS s ON s.id = o.supplier_id").
		Joins("JOIN products AS p ON p.id = oi.product_id").
		Where("o.status = ?", enums.OrderStatusPending)
	if submitterID != "" {
		query = query.
			Joins("JOIN requisitions AS r ON r.id = o.requisition_id").
			Where("r.user_id = ?", submitterID)
	}
	var rows []PendingLine
	err := query.
		Order("s.name ASC").
		Order("o.supplier_id ASC").
		Order("p.name ASC").
		Order("o.created_at ASC").
		Order("oi.id ASC").
		Scan(&rows).Error
	return rows, err
}

// PendingProductIDs returns the distinct products that sit in pending orders.
// A nil filter scans every product.
func (r *repository) PendingProductIDs(ctx context.Context, productIDs []types.ID) ([]types.ID, error) {
	query := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Joins("JOIN orders AS o ON o.id = oi.order_id").
		Where("o.status = ?", enums.OrderStatusPending)
	if productIDs != nil {
		if len(productIDs) == 0 {
			return nil, nil
		}
		query = query.Where("oi.product_id IN ?", productIDs)
	}
	var ids []types.ID
	err := query.Distinct().Order("oi.product_id ASC").Pluck("oi.product_id", &ids).Error
	return ids, err
}

func (r *repository) FindSupplier(ctx context.Context, supplierID types.ID) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := r.db.WithContext(ctx).Where("id = ?", supplierID).First(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *repository) PendingOrderIDs(ctx context.Context, supplierID types.ID) ([]types.ID, error) {
	var ids []types.ID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("supplier_id = ? AND status = ?", supplierID, enums.OrderStatusPending).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// MarkDelivered flips the listed orders to delivered. Orders that are no
// longer pending are left untouched and not counted.
func (r *repository) MarkDelivered(ctx context.Context, orderIDs []types.ID, at time.Time) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND status = ?", orderIDs, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) FindItem(ctx context.Context, itemID types.ID) (*ItemWithStatus, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	var order models.Order
	if err := r.db.WithContext(ctx).Select("id", "status").Where("id = ?", item.OrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &ItemWithStatus{OrderItem: item, OrderStatus: order.Status}, nil
}

func (r *repository) UpdateItem(ctx context.Context, itemID types.ID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("id = ?", itemID).Updates(updates).Error
}
