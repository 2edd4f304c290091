package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/procurebot/procurement-backend/pkg/auth"
	"github.com/procurebot/procurement-backend/pkg/enums"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	"github.com/procurebot/procurement-backend/pkg/outbox/payloads"
	"github.com/procurebot/procurement-backend/pkg/types"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type deliveryRecorder interface {
	OrdersDelivered(count int64)
}

// Scope selects which pending orders a staff member sees.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeSubmitter Scope = "submitter"
)

const maxNoteLength = 500

// Options carries the optional collaborators of the tracker.
type Options struct {
	Scope   Scope
	Metrics deliveryRecorder
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service tracks the pending to delivered lifecycle of supplier orders.
type Service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	scope   Scope
	metrics deliveryRecorder
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the order tracker with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, opts Options) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	scope := opts.Scope
	switch scope {
	case "":
		scope = ScopeGlobal
	case ScopeGlobal, ScopeSubmitter:
	default:
		return nil, fmt.Errorf("unknown active orders scope %q", scope)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		scope:   scope,
		metrics: opts.Metrics,
		logg:    opts.Logger,
		now:     now,
	}, nil
}

// ListActiveOrders returns pending items grouped by supplier. Under the
// submitter scope staff see only their own requisitions; admins always see
// the warehouse-wide view.
func (s *Service) ListActiveOrders(ctx context.Context, principal auth.Principal) ([]SupplierOrders, error) {
	submitter := ""
	if s.scope == ScopeSubmitter && !principal.IsAdmin() {
		if strings.TrimSpace(principal.UserID) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
		}
		submitter = principal.UserID
	}
	lines, err := s.repo.ListPendingLines(ctx, submitter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
	}
	return groupBySupplier(lines), nil
}

// PendingProductIDs returns the set of products sitting in pending orders.
func (s *Service) PendingProductIDs(ctx context.Context) (map[types.ID]struct{}, error) {
	ids, err := s.repo.PendingProductIDs(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending products")
	}
	out := make(map[types.ID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// MarkDelivered moves every pending order of the supplier to delivered.
// Repeating the call affects zero rows and is not an error.
func (s *Service) MarkDelivered(ctx context.Context, supplierID types.ID, actor auth.Principal) (*DeliveryResult, error) {
	if supplierID.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	result := &DeliveryResult{SupplierID: supplierID, OrderIDs: []types.ID{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		supplier, err := repo.FindSupplier(ctx, supplierID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found").
					WithDetails(map[string]any{"supplier_id": supplierID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier")
		}
		orderIDs, err := repo.PendingOrderIDs(ctx, supplierID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
		}
		at := s.now().UTC()
		affected, err := repo.MarkDelivered(ctx, orderIDs, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders delivered")
		}
		result.Affected = affected
		if affected == 0 {
			return nil
		}
		result.OrderIDs = orderIDs
		result.DeliveredAt = &at

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSupplierOrdersDelivered,
			AggregateType: enums.AggregateSupplier,
			AggregateID:   supplierID,
			Actor:         actorRef(actor),
			OccurredAt:    at,
			Data: payloads.SupplierOrdersDeliveredEvent{
				SupplierID:   supplierID,
				SupplierName: supplier.Name,
				OrderIDs:     orderIDs,
				DeliveredAt:  at,
				DeliveredBy:  actor.UserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersDelivered(result.Affected)
	}
	if s.logg != nil {
		logCtx := s.logg.WithSupplierID(ctx, supplierID.Int64())
		logCtx = s.logg.WithField(logCtx, "affected", result.Affected)
		s.logg.Info(logCtx, "supplier orders marked delivered")
	}
	return result, nil
}

// AdjustItem reconciles qty_final and the note of a line while its order is
// still pending.
func (s *Service) AdjustItem(ctx context.Context, itemID types.ID, input AdjustItemInput) (*OrderItemDTO, error) {
	if itemID.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}
	if input.QtyFinal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty_final must be zero or greater")
	}
	if !types.QuantityFits(input.QtyFinal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty_final is out of range").
			WithDetails(map[string]any{"max_exclusive": types.MaxQuantity.String(), "max_scale": types.QuantityScale})
	}
	var note *string
	if input.Note != nil {
		trimmed := strings.TrimSpace(*input.Note)
		if len([]rune(trimmed)) > maxNoteLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is too long").
				WithDetails(map[string]any{"max": maxNoteLength})
		}
		note = &trimmed
	}

	var out *OrderItemDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found").
					WithDetails(map[string]any{"order_item_id": itemID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if item.OrderStatus != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already delivered").
				WithDetails(map[string]any{"order_id": item.OrderID})
		}

		updates := map[string]any{"qty_final": input.QtyFinal}
		if note != nil {
			if *note == "" {
				updates["note"] = nil
				item.Note = nil
			} else {
				updates["note"] = *note
				item.Note = note
			}
		}
		if err := repo.UpdateItem(ctx, itemID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		item.QtyFinal = input.QtyFinal
		out = &OrderItemDTO{
			ID:           item.ID,
			OrderID:      item.OrderID,
			ProductID:    item.ProductID,
			QtyRequested: item.QtyRequested,
			QtyFinal:     item.QtyFinal,
			Note:         item.Note,
			OrderStatus:  item.OrderStatus,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func actorRef(p auth.Principal) *outbox.ActorRef {
	if p.UserID == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: p.UserID, Role: string(p.Role)}
}
