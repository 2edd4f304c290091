package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/procurebot/procurement-backend/pkg/auth"
	"github.com/procurebot/procurement-backend/pkg/db"
	"github.com/procurebot/procurement-backend/pkg/db/dbtest"
	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/idgen"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	"github.com/procurebot/procurement-backend/pkg/outbox/payloads"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	delivered int64
}

func (c *countingMetrics) OrdersDelivered(n int64) { c.delivered += n }

type fixture struct {
	client  *db.Client
	svc     *Service
	metrics *countingMetrics
	now     time.Time
}

func newFixture(t *testing.T, scope Scope) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	f := &fixture{client: client, metrics: &countingMetrics{}, now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(
		NewRepository(client.DB()),
		client,
		outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Options{Scope: scope, Metrics: f.metrics, Now: func() time.Time { return f.now }},
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) supplier(t *testing.T, name string) types.ID {
	t.Helper()
	s := models.Supplier{ID: idgen.New(), Name: name, Active: true}
	require.NoError(t, f.client.DB().Create(&s).Error)
	return s.ID
}

func (f *fixture) product(t *testing.T, name, unit string) types.ID {
	t.Helper()
	p := models.Product{ID: idgen.New(), Name: name, Unit: unit, Category: "Общее", Active: true}
	require.NoError(t, f.client.DB().Omit("Suppliers").Create(&p).Error)
	return p.ID
}

// order creates a requisition by user with one pending order for the supplier.
func (f *fixture) order(t *testing.T, user string, supplierID types.ID, lines map[types.ID]int64) (types.ID, []types.ID) {
	t.Helper()
	ctx := context.Background()
	repo := NewRepository(f.client.DB())
	req := models.Requisition{ID: idgen.New(), UserID: user, Status: enums.RequisitionStatusProcessed}
	require.NoError(t, f.client.DB().Omit("Items", "Orders").Create(&req).Error)
	order := models.Order{ID: idgen.New(), RequisitionID: req.ID, SupplierID: supplierID, Status: enums.OrderStatusPending}
	require.NoError(t, repo.CreateOrder(ctx, &order))
	var items []types.ID
	for productID, qty := range lines {
		item := models.OrderItem{
			ID:           idgen.New(),
			OrderID:      order.ID,
			ProductID:    productID,
			QtyRequested: decimal.NewFromInt(qty),
			QtyFinal:     decimal.NewFromInt(qty),
		}
		require.NoError(t, repo.CreateOrderItem(ctx, &item))
		items = append(items, item.ID)
	}
	return order.ID, items
}

func TestListActiveOrdersGroupsBySupplier(t *testing.T) {
	f := newFixture(t, ScopeGlobal)
	ctx := context.Background()
	s1 := f.supplier(t, "Alpha")
	s2 := f.supplier(t, "Beta")
	p1 := f.product(t, "Flour", "kg")
	p2 := f.product(t, "Eggs", "pcs")

	f.order(t, "100", s1, map[types.ID]int64{p1: 5})
	f.order(t, "200", s1, map[types.ID]int64{p1: 2})
	f.order(t, "100", s2, map[types.ID]int64{p2: 3})

	groups, err := f.svc.ListActiveOrders(ctx, auth.Principal{UserID: "300", Role: enums.UserRoleStaff})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, s1, groups[0].SupplierID)
	assert.Equal(t, "Alpha", groups[0].SupplierName)
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, "Flour", groups[0].Items[0].Name)
	assert.True(t, groups[0].Items[0].Qty.Equal(decimal.NewFromInt(5)))
	assert.True(t, groups[0].Items[1].Qty.Equal(decimal.NewFromInt(2)))

	assert.Equal(t, s2, groups[1].SupplierID)
	require.Len(t, groups[1].Items, 1)
	assert.Equal(t, "pcs", groups[1].Items[0].Unit)
}

func TestListActiveOrdersSubmitterScope(t *testing.T) {
	f := newFixture(t, ScopeSubmitter)
	ctx := context.Background()
	s1 := f.supplier(t, "Alpha")
	p1 := f.product(t, "Flour", "kg")
	f.order(t, "100", s1, map[types.ID]int64{p1: 5})
	f.order(t, "200", s1, map[types.ID]int64{p1: 2})

	own, err := f.svc.ListActiveOrders(ctx, auth.Principal{UserID: "200", Role: enums.UserRoleStaff})
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Len(t, own[0].Items, 1)
	assert.True(t, own[0].Items[0].Qty.Equal(decimal.NewFromInt(2)))

	none, err := f.svc.ListActiveOrders(ctx, auth.Principal{UserID: "999", Role: enums.UserRoleStaff})
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := f.svc.ListActiveOrders(ctx, auth.Principal{UserID: "1", Role: enums.UserRoleAdmin})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Items, 2)
}

func TestMarkDeliveredIsTerminal(t *testing.T) {
	f := newFixture(t, ScopeGlobal)
	ctx := context.Background()
	s1 := f.supplier(t, "Alpha")
	s2 := f.supplier(t, "Beta")
	p1 := f.product(t, "Flour", "kg")
	p2 := f.product(t, "Eggs", "pcs")
	o1, _ := f.order(t, "100", s1, map[types.ID]int64{p1: 5})
	o2, _ := f.order(t, "200", s1, map[types.ID]int64{p1: 1})
	f.order(t, "100", s2, map[types.ID]int64{p2: 3})

	actor := auth.Principal{UserID: "42", Role: enums.UserRoleAdmin}
	res, err := f.svc.MarkDelivered(ctx, s1, actor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Affected)
	assert.ElementsMatch(t, []types.ID{o1, o2}, res.OrderIDs)
	require.NotNil(t, res.DeliveredAt)
	assert.True(t, res.DeliveredAt.Equal(f.now))

	var delivered models.Order
	require.NoError(t, f.client.DB().First(&delivered, "id = ?", o1).Error)
	assert.Equal(t, enums.OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	again, err := f.svc.MarkDelivered(ctx, s1, actor)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Affected)
	assert.Empty(t, again.OrderIDs)
	assert.Equal(t, int64(2), f.metrics.delivered)

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventSupplierOrdersDelivered, events[0].EventType)
	assert.Equal(t, s1, events[0].AggregateID)

	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal([]byte(events[0].Payload), &env))
	var payload payloads.SupplierOrdersDeliveredEvent
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "Alpha", payload.SupplierName)
	assert.Equal(t, "42", payload.DeliveredBy)

	pending, err := f.svc.PendingProductIDs(ctx)
	require.NoError(t, err)
	_, flourPending := pending[p1]
	_, eggsPending := pending[p2]
	assert.False(t, flourPending)
	assert.True(t, eggsPending)
}

func TestMarkDeliveredUnknownSupplier(t *testing.T) {
	f := newFixture(t, ScopeGlobal)
	_, err := f.svc.MarkDelivered(context.Background(), idgen.New(), auth.Principal{UserID: "1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestMarkDeliveredWithoutPendingOrders(t *testing.T) {
	f := newFixture(t, ScopeGlobal)
	s1 := f.supplier(t, "Alpha")
	res, err := f.svc.MarkDelivered(context.Background(), s1, auth.Principal{UserID: "1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Affected)
	assert.Nil(t, res.DeliveredAt)
	assert.Equal(t, int64(0), dbtest.Count(t, f.client, "outbox_events"))
}

func TestAdjustItem(t *testing.T) {
	f := newFixture(t, ScopeGlobal)
	ctx := context.Background()
	s1 := f.supplier(t, "Alpha")
	p1 := f.product(t, "Flour", "kg")
	_, items := f.order(t, "100", s1, map[types.ID]int64{p1: 5})

	note := "  short delivery "
	updated, err := f.svc.AdjustItem(ctx, items[0], AdjustItemInput{QtyFinal: decimal.RequireFromString("4.5"), Note: &note})
	require.NoError(t, err)
	assert.True(t, updated.QtyFinal.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, updated.QtyRequested.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, updated.Note)
	assert.Equal(t, "short delivery", *updated.Note)

	groups, err := f.svc.ListActiveOrders(ctx, auth.Principal{UserID: "100"})
	require.NoError(t, err)
	assert.True(t, groups[0].Items[0].Qty.Equal(decimal.RequireFromString("4.5")))

	_, err = f.svc.AdjustItem(ctx, items[0], AdjustItemInput{QtyFinal: decimal.NewFromInt(-1)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.AdjustItem(ctx, items[0], AdjustItemInput{QtyFinal: decimal.RequireFromString("123456789012345678.1234")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.AdjustItem(ctx, items[0], AdjustItemInput{QtyFinal: decimal.RequireFromString("1.00001")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.AdjustItem(ctx, idgen.New(), AdjustItemInput{QtyFinal: decimal.Zero})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.MarkDelivered(ctx, s1, auth.Principal{UserID: "42", Role: enums.UserRoleAdmin})
	require.NoError(t, err)
	_, err = f.svc.AdjustItem(ctx, items[0], AdjustItemInput{QtyFinal: decimal.Zero})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestNewServiceRejectsUnknownScope(t *testing.T) {
	client := dbtest.Open(t)
	_, err := NewService(NewRepository(client.DB()), client, outbox.NewService(outbox.NewRepository(client.DB()), nil), Options{Scope: "team"})
	require.Error(t, err)
}
