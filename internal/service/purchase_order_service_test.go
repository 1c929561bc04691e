package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"erp/internal/apperror"
	"erp/internal/model"
	"erp/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// confirmedPO creates, sends and confirms a purchase order for the given lines.
func confirmedPO(t *testing.T, env *testEnv, svc PurchaseOrderService, items ...PurchaseOrderItemRequest) *PurchaseOrderResponse {
	t.Helper()
	ctx := context.Background()
	supplier := env.seedSupplier(t, true)

	po, err := svc.CreatePurchaseOrder(ctx, "", PurchaseOrderRequest{SupplierID: supplier.ID.String(), Items: items})
	require.NoError(t, err)
	require.Equal(t, model.POStatusDraft, po.Status)

	po, err = svc.SendPurchaseOrder(ctx, "", po.ID)
	require.NoError(t, err)
	require.Equal(t, model.POStatusSent, po.Status)

	po, err = svc.ConfirmPurchaseOrder(ctx, "", po.ID, ConfirmPurchaseOrderRequest{SupplierReference: "SR-1", Notes: "confirmed by phone"})
	require.NoError(t, err)
	require.Equal(t, model.POStatusConfirmed, po.Status)
	return po
}

func TestCreatePurchaseOrderPricesLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier := env.seedSupplier(t, true)
	p := env.seedProduct(t, "P-1", "4.00", 0)
	cost := decimal.RequireFromString("3.50")

	po, err := env.purchaseOrderService().CreatePurchaseOrder(ctx, "", PurchaseOrderRequest{
		SupplierID:   supplier.ID.String(),
		ShippingCost: decimal.RequireFromString("5.00"),
		Items: []PurchaseOrderItemRequest{
			{ProductID: p.ID.String(), Quantity: 10, UnitCost: &cost, DiscountAmount: decimal.RequireFromString("5.00")},
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(po.OrderNumber, "PO-"))
	assert.Equal(t, "Acme Supply", po.SupplierName)
	require.Len(t, po.Items, 1)
	assert.Equal(t, "30.00", po.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "3.60", po.Items[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "30.00", po.Subtotal.StringFixed(2))
	assert.Equal(t, "38.60", po.TotalAmount.StringFixed(2))
	require.NotNil(t, po.ExpectedDeliveryDate)
	assert.Equal(t, po.OrderDate.AddDate(0, 0, 7).Unix(), po.ExpectedDeliveryDate.Unix())
	assert.Equal(t, p.Name, po.Items[0].Description)
}

func TestCreatePurchaseOrderRejectsInactiveSupplier(t *testing.T) {
	env := newTestEnv(t)
	supplier := env.seedSupplier(t, false)
	p := env.seedProduct(t, "P-1", "4.00", 0)

	_, err := env.purchaseOrderService().CreatePurchaseOrder(context.Background(), "", PurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items:      []PurchaseOrderItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestReceiveInTwoSteps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	p := env.seedProduct(t, "P-1", "4.00", 0)

	po := confirmedPO(t, env, svc, PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 10})
	itemID := po.Items[0].ID

	po, err := svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: itemID, Quantity: 4}}})
	require.NoError(t, err)
	assert.Equal(t, model.POStatusPartiallyReceived, po.Status)
	assert.Equal(t, 4, po.Items[0].QuantityReceived)
	assert.Nil(t, po.ActualDeliveryDate)
	assert.Equal(t, 4, env.stockOf(t, p))

	po, err = svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: itemID, Quantity: 6}}})
	require.NoError(t, err)
	assert.Equal(t, model.POStatusReceived, po.Status)
	assert.NotNil(t, po.ActualDeliveryDate)
	assert.Equal(t, 10, env.stockOf(t, p))

	movements, err := env.movements.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, model.MovementIncrease, m.Direction)
		assert.Equal(t, "Purchase Order "+po.OrderNumber+" - Item received", m.Reason)
	}
	assert.Equal(t, 4, movements[0].StockAfter)
	assert.Equal(t, 10, movements[1].StockAfter)

	// RECEIVED is terminal
	_, err = svc.CancelPurchaseOrder(ctx, "", po.ID, CancelPurchaseOrderRequest{Reason: "late"})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
	_, err = svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: itemID, Quantity: 1}}})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
}

func TestCancelReversesReceivedStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	p := env.seedProduct(t, "P-1", "4.00", 0)

	po := confirmedPO(t, env, svc, PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 10})
	po, err := svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: po.Items[0].ID, Quantity: 4}}})
	require.NoError(t, err)
	require.Equal(t, 4, env.stockOf(t, p))

	po, err = svc.CancelPurchaseOrder(ctx, "", po.ID, CancelPurchaseOrderRequest{Reason: "supplier out of business"})
	require.NoError(t, err)
	assert.Equal(t, model.POStatusCancelled, po.Status)
	assert.Contains(t, po.Notes, "Cancelled: supplier out of business")
	assert.Equal(t, 4, po.Items[0].QuantityReceived)
	assert.Equal(t, 0, env.stockOf(t, p))

	movements, err := env.movements.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	reversal := movements[1]
	assert.Equal(t, model.MovementDecrease, reversal.Direction)
	assert.Equal(t, 4, reversal.Quantity)
	assert.Equal(t, "Purchase Order "+po.OrderNumber+" - Cancelled (reversal)", reversal.Reason)

	// CANCELLED is terminal
	_, err = svc.CancelPurchaseOrder(ctx, "", po.ID, CancelPurchaseOrderRequest{})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
}

func TestCancelFailsWhenReceivedStockWasConsumed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	p := env.seedProduct(t, "P-1", "4.00", 0)

	po := confirmedPO(t, env, svc, PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 10})
	po, err := svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: po.Items[0].ID, Quantity: 4}}})
	require.NoError(t, err)

	fresh, err := env.products.FindByID(ctx, p.ID, repository.VisibleOnly)
	require.NoError(t, err)
	require.NoError(t, env.products.AdjustStock(ctx, p.ID, fresh.Version, -3))

	_, err = svc.CancelPurchaseOrder(ctx, "", po.ID, CancelPurchaseOrderRequest{})
	assert.Equal(t, apperror.KindStockInsufficient, apperror.KindOf(err))

	got, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusPartiallyReceived, got.Status)
	assert.Equal(t, 1, env.stockOf(t, p))
}

func TestOverReceiptRejectsWholeBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	a := env.seedProduct(t, "P-A", "1.00", 0)
	b := env.seedProduct(t, "P-B", "1.00", 0)

	po := confirmedPO(t, env, svc,
		PurchaseOrderItemRequest{ProductID: a.ID.String(), Quantity: 5},
		PurchaseOrderItemRequest{ProductID: b.ID.String(), Quantity: 2},
	)

	_, err := svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, Quantity: 5},
		{ItemID: po.Items[1].ID, Quantity: 3},
	}})
	assert.Equal(t, apperror.KindOverReceipt, apperror.KindOf(err))

	got, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusConfirmed, got.Status)
	for _, item := range got.Items {
		assert.Zero(t, item.QuantityReceived)
	}
	assert.Zero(t, env.stockOf(t, a))
	assert.Zero(t, env.stockOf(t, b))
}

func TestReceiveValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	p := env.seedProduct(t, "P-1", "1.00", 0)
	po := confirmedPO(t, env, svc, PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 5})

	_, err := svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: uuid.NewString(), Quantity: 1}}})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: po.Items[0].ID, Quantity: 0}}})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestReceiveSameProductOnTwoLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	p := env.seedProduct(t, "P-1", "1.00", 1)

	po := confirmedPO(t, env, svc,
		PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 3},
		PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 2, SupplierSKU: "ALT"},
	)
	po, err := svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{
		{ItemID: po.Items[0].ID, Quantity: 3},
		{ItemID: po.Items[1].ID, Quantity: 2},
	}})
	require.NoError(t, err)
	assert.Equal(t, model.POStatusReceived, po.Status)
	assert.Equal(t, 6, env.stockOf(t, p))
}

func TestDraftOnlyOperations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	supplier := env.seedSupplier(t, true)
	p := env.seedProduct(t, "P-1", "2.00", 0)

	draft, err := svc.CreatePurchaseOrder(ctx, "", PurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items:      []PurchaseOrderItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)

	// receiving before confirmation is not allowed
	_, err = svc.ReceiveItems(ctx, "", draft.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: draft.Items[0].ID, Quantity: 1}}})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
	_, err = svc.ConfirmPurchaseOrder(ctx, "", draft.ID, ConfirmPurchaseOrderRequest{})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	updated, err := svc.UpdatePurchaseOrder(ctx, "", draft.ID, PurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items: []PurchaseOrderItemRequest{
			{ProductID: p.ID.String(), Quantity: 2},
			{ProductID: p.ID.String(), Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "10.00", updated.Subtotal.StringFixed(2))

	sent, err := svc.SendPurchaseOrder(ctx, "", draft.ID)
	require.NoError(t, err)
	_, err = svc.UpdatePurchaseOrder(ctx, "", sent.ID, PurchaseOrderRequest{SupplierID: supplier.ID.String(),
		Items: []PurchaseOrderItemRequest{{ProductID: p.ID.String(), Quantity: 1}}})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(svc.DeletePurchaseOrder(ctx, "", sent.ID)))

	other, err := svc.CreatePurchaseOrder(ctx, "", PurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items:      []PurchaseOrderItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeletePurchaseOrder(ctx, "", other.ID))
	_, err = svc.GetPurchaseOrder(ctx, other.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	list, total, err := svc.ListPurchaseOrders(ctx, PurchaseOrderListRequest{Status: string(model.POStatusSent)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, sent.OrderNumber, list[0].OrderNumber)
}

func TestPurchaseOrderCancelBeforeReceiptMovesNoStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	p := env.seedProduct(t, "P-1", "1.00", 3)
	po := confirmedPO(t, env, svc, PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 5})

	po, err := svc.CancelPurchaseOrder(ctx, "", po.ID, CancelPurchaseOrderRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.POStatusCancelled, po.Status)
	assert.Equal(t, 3, env.stockOf(t, p))
	assert.Empty(t, env.events.Stock())
}

// stalePurchaseOrders saves every header with the version it had before
// another writer got there first, so the save always loses.
type stalePurchaseOrders struct {
	repository.PurchaseOrderRepository
}

func (r stalePurchaseOrders) Update(ctx context.Context, po *model.PurchaseOrder) error {
	stale := *po
	stale.Version--
	return r.PurchaseOrderRepository.Update(ctx, &stale)
}

func TestReceiveRollsBackWhenHeaderSaveConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	p := env.seedProduct(t, "P-1", "4.00", 0)
	po := confirmedPO(t, env, svc, PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 10})

	env.pos = stalePurchaseOrders{env.pos}
	_, err := env.purchaseOrderService().ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{
		Items: []ReceiveItemRequest{{ItemID: po.Items[0].ID, Quantity: 4}},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindConcurrency, apperror.KindOf(err))

	got, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusConfirmed, got.Status)
	assert.Equal(t, 0, got.Items[0].QuantityReceived)
	assert.Equal(t, po.Version, got.Version)
	assert.Equal(t, 0, env.stockOf(t, p))

	movements, err := env.movements.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
	env.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCancelRollsBackWhenHeaderSaveConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	p := env.seedProduct(t, "P-1", "4.00", 0)
	po := confirmedPO(t, env, svc, PurchaseOrderItemRequest{ProductID: p.ID.String(), Quantity: 10})
	po, err := svc.ReceiveItems(ctx, "", po.ID, ReceivePurchaseOrderRequest{Items: []ReceiveItemRequest{{ItemID: po.Items[0].ID, Quantity: 4}}})
	require.NoError(t, err)
	require.Equal(t, 4, env.stockOf(t, p))

	env.pos = stalePurchaseOrders{env.pos}
	_, err = env.purchaseOrderService().CancelPurchaseOrder(ctx, "", po.ID, CancelPurchaseOrderRequest{Reason: "duplicate"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindConcurrency, apperror.KindOf(err))

	got, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusPartiallyReceived, got.Status)
	assert.Equal(t, 4, got.Items[0].QuantityReceived)
	assert.NotContains(t, got.Notes, "Cancelled")
	assert.Equal(t, 4, env.stockOf(t, p))

	movements, err := env.movements.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementIncrease, movements[0].Direction)
}

// takenNumber hands out a number another order already holds.
type takenNumber struct {
	repository.PurchaseOrderRepository
	number string
}

func (r takenNumber) NextOrderNumber(ctx context.Context, year int) (string, error) {
	return r.number, nil
}

func TestCreatePurchaseOrderNumberClashIsConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier := env.seedSupplier(t, true)
	p := env.seedProduct(t, "P-1", "4.00", 0)
	req := PurchaseOrderRequest{
		SupplierID: supplier.ID.String(),
		Items:      []PurchaseOrderItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
	}

	first, err := env.purchaseOrderService().CreatePurchaseOrder(ctx, "", req)
	require.NoError(t, err)

	env.pos = takenNumber{PurchaseOrderRepository: env.pos, number: first.OrderNumber}
	_, err = env.purchaseOrderService().CreatePurchaseOrder(ctx, "", req)
	require.Error(t, err)
	assert.Equal(t, apperror.KindConcurrency, apperror.KindOf(err))

	_, total, err := env.purchaseOrderService().ListPurchaseOrders(ctx, PurchaseOrderListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestOverduePurchaseOrdersAndSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	supplier := env.seedSupplier(t, true)
	p := env.seedProduct(t, "P-1", "4.00", 0)
	items := []PurchaseOrderItemRequest{{ProductID: p.ID.String(), Quantity: 10}}

	ordered := time.Now().AddDate(0, 0, -30)
	due := time.Now().AddDate(0, 0, -14)
	late, err := svc.CreatePurchaseOrder(ctx, "", PurchaseOrderRequest{
		SupplierID: supplier.ID.String(), OrderDate: &ordered, ExpectedDeliveryDate: &due, Items: items,
	})
	require.NoError(t, err)
	_, err = svc.SendPurchaseOrder(ctx, "", late.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmPurchaseOrder(ctx, "", late.ID, ConfirmPurchaseOrderRequest{})
	require.NoError(t, err)

	_, err = svc.CreatePurchaseOrder(ctx, "", PurchaseOrderRequest{SupplierID: supplier.ID.String(), Items: items})
	require.NoError(t, err)

	dropped, err := svc.CreatePurchaseOrder(ctx, "", PurchaseOrderRequest{
		SupplierID: supplier.ID.String(), OrderDate: &ordered, ExpectedDeliveryDate: &due, Items: items,
	})
	require.NoError(t, err)
	_, err = svc.CancelPurchaseOrder(ctx, "", dropped.ID, CancelPurchaseOrderRequest{Reason: "not needed"})
	require.NoError(t, err)

	overdue, err := svc.ListOverduePurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.OrderNumber, overdue[0].OrderNumber)
	assert.Equal(t, "Acme Supply", overdue[0].SupplierName)
	assert.Equal(t, model.POStatusConfirmed, overdue[0].Status)
	assert.InDelta(t, 14, overdue[0].DaysOverdue, 1)
	assert.Equal(t, "44.80", overdue[0].TotalAmount.StringFixed(2))

	summary, err := svc.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalOrders)
	assert.Equal(t, int64(1), summary.DraftOrders)
	assert.Equal(t, int64(1), summary.ConfirmedOrders)
	assert.Equal(t, int64(1), summary.CancelledOrders)
	assert.Zero(t, summary.ReceivedOrders)
	assert.Equal(t, int64(1), summary.OverdueOrders)
	assert.Equal(t, "89.60", summary.TotalAmount.StringFixed(2))
	assert.Equal(t, "0.00", summary.TotalPaid.StringFixed(2))
	assert.Equal(t, "89.60", summary.TotalOutstanding.StringFixed(2))
}

func TestReorderSuggestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.purchaseOrderService()
	empty := env.seedProduct(t, "A-1", "4.00", 0)
	short := env.seedProduct(t, "B-1", "4.00", 1)
	env.seedProduct(t, "C-1", "4.00", 10)
	supplier := env.seedSupplier(t, true)

	moq := 6
	links := env.productSupplierService()
	_, err := links.AssignSupplier(ctx, AssignSupplierRequest{
		ProductID: empty.ID.String(), SupplierID: supplier.ID.String(),
		SupplierPrice: decimal.RequireFromString("1.50"), IsPreferred: true, MinimumOrderQuantity: &moq,
	})
	require.NoError(t, err)
	_, err = links.AssignSupplier(ctx, AssignSupplierRequest{
		ProductID: short.ID.String(), SupplierID: supplier.ID.String(), SupplierPrice: decimal.RequireFromString("2.00"),
	})
	require.NoError(t, err)

	got, err := svc.ReorderSuggestions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "A-1", got[0].SKU)
	assert.Equal(t, 2, got[0].ReorderLevel)
	assert.Equal(t, moq, got[0].SuggestedQuantity)
	assert.Equal(t, supplier.ID.String(), got[0].PreferredSupplierID)
	assert.Equal(t, "Acme Supply", got[0].PreferredSupplierName)
	require.NotNil(t, got[0].EstimatedCost)
	assert.Equal(t, "9.00", got[0].EstimatedCost.StringFixed(2))

	assert.Equal(t, "B-1", got[1].SKU)
	assert.Equal(t, 3, got[1].SuggestedQuantity)
	assert.Empty(t, got[1].PreferredSupplierID)
	assert.Nil(t, got[1].EstimatedCost)

	got, err = svc.ReorderSuggestions(ctx, 12)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "C-1", got[2].SKU)
	assert.Equal(t, 12, got[2].ReorderLevel)
	assert.Equal(t, 14, got[2].SuggestedQuantity)

	_, err = svc.ReorderSuggestions(ctx, -1)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
