package requisitions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/procurebot/procurement-backend/internal/catalog"
	"github.com/procurebot/procurement-backend/internal/orders"
	"github.com/procurebot/procurement-backend/internal/sourcing"
	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/idgen"
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

// supplierResolver is the slice of the sourcing service the splitter needs.
type supplierResolver interface {
	ResolvePrimary(ctx context.Context, tx *gorm.DB, productID types.ID) (*sourcing.ResolvedSupplier, error)
	ListRankedTx(ctx context.Context, tx *gorm.DB, productIDs []types.ID) (map[types.ID][]sourcing.RankedSupplier, error)
}

type submissionRecorder interface {
	RequisitionSubmitted(orders, fallbacks int)
}

// Params wires the splitter's collaborators.
type Params struct {
	TX       txRunner
	Repo     Repository
	Catalog  catalog.Repository
	Orders   orders.Repository
	Resolver supplierResolver
	Outbox   outboxPublisher
	IDs      idgen.Generator
	Metrics  submissionRecorder
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service splits requisitions into per-supplier orders and serves the admin
// requisition views.
type Service struct {
	tx       txRunner
	repo     Repository
	catalog  catalog.Repository
	orders   orders.Repository
	resolver supplierResolver
	outbox   outboxPublisher
	ids      idgen.Generator
	metrics  submissionRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p Params) (*Service, error) {
	switch {
	case p.TX == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("requisitions repository required")
	case p.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Resolver == nil:
		return nil, fmt.Errorf("supplier resolver required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	ids := p.IDs
	if ids == nil {
		ids = idgen.Default()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:       p.TX,
		repo:     p.Repo,
		catalog:  p.Catalog,
		orders:   p.Orders,
		resolver: p.Resolver,
		outbox:   p.Outbox,
		ids:      ids,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      now,
	}, nil
}

// Submit records the requisition and splits it into one pending order per
// resolved supplier. Everything happens in a single transaction: any failure
// leaves no requisition, order or item behind.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	productIDs, err := validateItems(input.Items)
	if err != nil {
		return nil, err
	}

	var (
		result    *SubmitResult
		fallbacks int
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		products, err := s.checkOrderable(ctx, tx, productIDs)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)
		userName, err := repo.UserName(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load submitter")
		}

		now := s.now().UTC()
		requisition := models.Requisition{
			ID:        s.ids.Next(),
			UserID:    userID,
			Status:    enums.RequisitionStatusCreated,
			CreatedAt: now,
		}
		if err := repo.Create(ctx, &requisition); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create requisition")
		}

		var split []*payloads.SupplierOrderLine
		bySupplier := make(map[types.ID]*payloads.SupplierOrderLine)
		for _, item := range input.Items {
			if err := repo.CreateItem(ctx, &models.RequisitionItem{
				ID:            s.ids.Next(),
				RequisitionID: requisition.ID,
				ProductID:     item.ProductID,
				QtyRequested:  item.Qty,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create requisition item")
			}

			supplier, err := s.resolver.ResolvePrimary(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}

			line, ok := bySupplier[supplier.ID]
			if !ok {
				order := models.Order{
					ID:            s.ids.Next(),
					RequisitionID: requisition.ID,
					SupplierID:    supplier.ID,
					Status:        enums.OrderStatusPending,
					CreatedAt:     now,
				}
				if err := orderRepo.CreateOrder(ctx, &order); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
				}
				line = &payloads.SupplierOrderLine{
					OrderID:         order.ID,
					SupplierID:      supplier.ID,
					SupplierName:    supplier.Name,
					SupplierContact: supplier.ContactNote,
				}
				bySupplier[supplier.ID] = line
				split = append(split, line)
			}

			if err := orderRepo.CreateOrderItem(ctx, &models.OrderItem{
				ID:           s.ids.Next(),
				OrderID:      line.OrderID,
				ProductID:    item.ProductID,
				QtyRequested: item.Qty,
				QtyFinal:     item.Qty,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order item")
			}

			product := products[item.ProductID]
			line.Items = append(line.Items, payloads.OrderedItem{
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Unit:        product.Unit,
				Qty:         item.Qty,
				Fallback:    supplier.Fallback,
			})
			if supplier.Fallback {
				fallbacks++
			}
		}

		if err := repo.UpdateStatus(ctx, requisition.ID, enums.RequisitionStatusProcessed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark requisition processed")
		}

		event := payloads.RequisitionSubmittedEvent{
			RequisitionID: requisition.ID,
			UserID:        userID,
			UserName:      userName,
			SubmittedAt:   now,
			Orders:        make([]payloads.SupplierOrderLine, 0, len(split)),
		}
		result = &SubmitResult{RequisitionID: requisition.ID, Orders: make([]SubmittedOrder, 0, len(split))}
		for _, line := range split {
			event.Orders = append(event.Orders, *line)
			result.Orders = append(result.Orders, SubmittedOrder{
				OrderID:      line.OrderID,
				SupplierID:   line.SupplierID,
				SupplierName: line.SupplierName,
				ItemCount:    len(line.Items),
			})
		}

		var actor *outbox.ActorRef
		if input.Role != "" {
			actor = &outbox.ActorRef{UserID: userID, Role: string(input.Role)}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequisitionSubmitted,
			AggregateType: enums.AggregateRequisition,
			AggregateID:   requisition.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data:          event,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RequisitionSubmitted(len(result.Orders), fallbacks)
	}
	if s.logg != nil {
		logCtx := s.logg.WithRequisitionID(ctx, result.RequisitionID.Int64())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"orders":    len(result.Orders),
			"items":     len(input.Items),
			"fallbacks": fallbacks,
		})
		s.logg.Info(logCtx, "requisition submitted")
	}
	return result, nil
}

// checkOrderable enforces existence, the active flag and the re-order
// policy: a product already sitting in a pending order cannot be ordered
// again until that order is delivered. The product rows stay locked until
// commit so concurrent submissions of the same product serialize.
func (s *Service) checkOrderable(ctx context.Context, tx *gorm.DB, productIDs []types.ID) (map[types.ID]models.Product, error) {
	products, err := s.catalog.WithTx(tx).LockProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	for _, id := range productIDs {
		product, ok := products[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not active").
				WithDetails(map[string]any{"product_id": id})
		}
	}

	pending, err := s.orders.WithTx(tx).PendingProductIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending orders")
	}
	if len(pending) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product already on order").
			WithDetails(map[string]any{"product_ids": pending})
	}
	return products, nil
}

// List returns the latest requisitions, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	rows, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requisitions")
	}
	if rows == nil {
		rows = []Summary{}
	}
	return rows, nil
}

// Detail returns the requisition's orders with their items and the
// alternative suppliers of every product.
func (s *Service) Detail(ctx context.Context, id types.ID) (*Detail, error) {
	summary, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "requisition not found").
				WithDetails(map[string]any{"requisition_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requisition")
	}
	lines, err := s.repo.ListOrderLines(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requisition orders")
	}
	seen := make(map[types.ID]struct{}, len(lines))
	productIDs := make([]types.ID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		productIDs = append(productIDs, line.ProductID)
	}
	ranked, err := s.resolver.ListRankedTx(ctx, nil, productIDs)
	if err != nil {
		return nil, err
	}
	return buildDetail(*summary, lines, ranked), nil
}

func validateItems(items []SubmitItem) ([]types.ID, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items required")
	}
	if len(items) > maxItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many items").
			WithDetails(map[string]any{"max": maxItems})
	}
	ids := make([]types.ID, 0, len(items))
	seen := make(map[types.ID]struct{}, len(items))
	for i, item := range items {
		if item.ProductID.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required").
				WithDetails(map[string]any{"index": i})
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product listed twice").
				WithDetails(map[string]any{"index": i, "product_id": item.ProductID})
		}
		seen[item.ProductID] = struct{}{}
		if !item.Qty.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be greater than zero").
				WithDetails(map[string]any{"index": i, "product_id": item.ProductID})
		}
		if !item.Qty.Equal(item.Qty.Truncate(maxQtyScale)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty has too many decimal places").
				WithDetails(map[string]any{"index": i, "max_scale": maxQtyScale})
		}
		if !types.QuantityFits(item.Qty) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty is too large").
				WithDetails(map[string]any{"index": i, "max_exclusive": types.MaxQuantity.String()})
		}
		ids = append(ids, item.ProductID)
	}
	return ids, nil
}
