package catalog

import (
	"context"
	"testing"

	"github.com/procurebot/procurement-backend/internal/sourcing"
	"github.com/procurebot/procurement-backend/pkg/db"
	"github.com/procurebot/procurement-backend/pkg/db/dbtest"
	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/enums"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/idgen"
	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPending map[types.ID]struct{}

func (s stubPending) PendingProductIDs(context.Context) (map[types.ID]struct{}, error) {
	return s, nil
}

func newTestService(t *testing.T, pending pendingProducts) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	rankings, err := sourcing.NewService(client, sourcing.NewRepository(client.DB()), nil)
	require.NoError(t, err)
	svc, err := NewService(client, NewRepository(client.DB()), rankings, pending, nil, nil)
	require.NoError(t, err)
	return svc, client
}

func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func mustSupplier(t *testing.T, svc *Service, name string) types.ID {
	t.Helper()
	s, err := svc.CreateSupplier(context.Background(), CreateSupplierInput{Name: name})
	require.NoError(t, err)
	return s.ID
}

func seedPendingOrder(t *testing.T, client *db.Client, supplierID, productID types.ID) types.ID {
	t.Helper()
	qty := decimal.NewFromInt(2)
	req := models.Requisition{ID: idgen.New(), UserID: "100", Status: enums.RequisitionStatusProcessed}
	require.NoError(t, client.DB().Create(&req).Error)
	require.NoError(t, client.DB().Create(&models.RequisitionItem{
		ID: idgen.New(), RequisitionID: req.ID, ProductID: productID, QtyRequested: qty,
	}).Error)
	order := models.Order{ID: idgen.New(), RequisitionID: req.ID, SupplierID: supplierID, Status: enums.OrderStatusPending}
	require.NoError(t, client.DB().Create(&order).Error)
	require.NoError(t, client.DB().Create(&models.OrderItem{
		ID: idgen.New(), OrderID: order.ID, ProductID: productID, QtyRequested: qty, QtyFinal: qty,
	}).Error)
	return order.ID
}

func TestCreateSupplierValidatesName(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateSupplier(ctx, CreateSupplierInput{Name: "  A "})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	created, err := svc.CreateSupplier(ctx, CreateSupplierInput{Name: "  Metro  ", ContactNote: strPtr("  ")})
	require.NoError(t, err)
	assert.Equal(t, "Metro", created.Name)
	assert.Nil(t, created.ContactNote)
	assert.True(t, created.Active)

	_, err = svc.CreateSupplier(ctx, CreateSupplierInput{Name: "Metro"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestUpdateSupplier(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	id := mustSupplier(t, svc, "Metro")

	updated, err := svc.UpdateSupplier(ctx, id, UpdateSupplierInput{Active: boolPtr(false), ContactNote: strPtr("call Ivan")})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.ContactNote)
	assert.Equal(t, "call Ivan", *updated.ContactNote)
	assert.Equal(t, "Metro", updated.Name)

	_, err = svc.UpdateSupplier(ctx, idgen.New(), UpdateSupplierInput{Active: boolPtr(true)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestListSuppliersActiveFirst(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	zeta := mustSupplier(t, svc, "Zeta")
	alpha := mustSupplier(t, svc, "Alpha")
	_, err := svc.UpdateSupplier(ctx, alpha, UpdateSupplierInput{Active: boolPtr(false)})
	require.NoError(t, err)

	list, err := svc.ListSuppliers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, zeta, list[0].ID)
	assert.Equal(t, alpha, list[1].ID)
}

func TestCreateProductDefaultsAndRanking(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	s1 := mustSupplier(t, svc, "Metro")
	s2 := mustSupplier(t, svc, "Auchan")

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:        "Flour",
		Unit:        "kg",
		Category:    strPtr("   "),
		SupplierIDs: []types.ID{s2, s1},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, product.Category)
	require.Len(t, product.Suppliers, 2)
	assert.Equal(t, s2, product.Suppliers[0].SupplierID)
	assert.True(t, product.Suppliers[0].Primary)
	assert.Equal(t, 1, product.Suppliers[0].SortOrder)
	assert.Equal(t, 2, product.Suppliers[1].SortOrder)

	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Sugar", Unit: " "})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Flour", Unit: "kg"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestCreateProductRejectsInactiveSupplier(t *testing.T) {
	svc, client := newTestService(t, nil)
	ctx := context.Background()
	s1 := mustSupplier(t, svc, "Metro")
	_, err := svc.UpdateSupplier(ctx, s1, UpdateSupplierInput{Active: boolPtr(false)})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Flour", Unit: "kg", SupplierIDs: []types.ID{s1}})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, dbtest.Count(t, client, "products"))
}

func TestDeleteSupplierCascade(t *testing.T) {
	svc, client := newTestService(t, nil)
	ctx := context.Background()
	s1 := mustSupplier(t, svc, "Metro")
	s2 := mustSupplier(t, svc, "Auchan")

	exclusive, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Flour", Unit: "kg", SupplierIDs: []types.ID{s1}})
	require.NoError(t, err)
	shared, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Sugar", Unit: "kg", SupplierIDs: []types.ID{s1, s2}})
	require.NoError(t, err)
	seedPendingOrder(t, client, s1, exclusive.ID)
	seedPendingOrder(t, client, s2, exclusive.ID)

	result, err := svc.DeleteSupplier(ctx, s1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.DeletedOrders)
	assert.Equal(t, []types.ID{exclusive.ID}, result.DeletedProducts)

	// the s2 order only contained the orphaned product and goes away too
	assert.Zero(t, dbtest.Count(t, client, "orders"))
	assert.Zero(t, dbtest.Count(t, client, "order_items"))
	assert.Zero(t, dbtest.Count(t, client, "requisition_items"))
	assert.Equal(t, int64(1), dbtest.Count(t, client, "suppliers"))

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, shared.ID, products[0].ID)
	require.Len(t, products[0].Suppliers, 1)
	assert.Equal(t, s2, products[0].Suppliers[0].SupplierID)
	assert.Equal(t, 1, products[0].Suppliers[0].SortOrder)

	_, err = svc.DeleteSupplier(ctx, s1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestDeleteProductRemovesLines(t *testing.T) {
	svc, client := newTestService(t, nil)
	ctx := context.Background()
	s1 := mustSupplier(t, svc, "Metro")
	flour, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Flour", Unit: "kg", SupplierIDs: []types.ID{s1}})
	require.NoError(t, err)
	seedPendingOrder(t, client, s1, flour.ID)

	require.NoError(t, svc.DeleteProduct(ctx, flour.ID))
	assert.Zero(t, dbtest.Count(t, client, "products"))
	assert.Zero(t, dbtest.Count(t, client, "product_suppliers"))
	assert.Zero(t, dbtest.Count(t, client, "order_items"))
	assert.Zero(t, dbtest.Count(t, client, "orders"))

	err = svc.DeleteProduct(ctx, flour.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestListOrderableProducts(t *testing.T) {
	client := dbtest.Open(t)
	rankings, err := sourcing.NewService(client, sourcing.NewRepository(client.DB()), nil)
	require.NoError(t, err)
	pending := stubPending{}
	svc, err := NewService(client, NewRepository(client.DB()), rankings, pending, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	metro := mustSupplier(t, svc, "Metro")
	auchan := mustSupplier(t, svc, "Auchan")
	flour, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Flour", Unit: "kg", Category: strPtr("Bakery"), SupplierIDs: []types.ID{metro, auchan}})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Salt", Unit: "kg", Category: strPtr("Bakery")})
	require.NoError(t, err)
	sugar, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Sugar", Unit: "kg", Category: strPtr("Bakery"), SupplierIDs: []types.ID{auchan}})
	require.NoError(t, err)
	_, err = svc.UpdateProduct(ctx, sugar.ID, UpdateProductInput{Active: boolPtr(false)})
	require.NoError(t, err)
	_, err = svc.UpdateSupplier(ctx, metro, UpdateSupplierInput{Active: boolPtr(false)})
	require.NoError(t, err)
	pending[flour.ID] = struct{}{}

	list, err := svc.ListOrderableProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, flour.ID, list[0].ID)
	assert.Equal(t, auchan, list[0].SupplierID)
	assert.Equal(t, "Auchan", list[0].SupplierName)
	assert.True(t, list[0].OnOrder)
}
