package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"erp/internal/apperror"
	"erp/internal/config"
	"erp/internal/model"
	"erp/internal/repository"
	"erp/internal/tax"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PurchaseOrderItemRequest struct {
	ProductID      string           `json:"product_id" binding:"required"`
	Quantity       int              `json:"quantity"`
	UnitCost       *decimal.Decimal `json:"unit_cost"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	Description    string           `json:"description"`
	SupplierSKU    string           `json:"supplier_sku"`
}

type PurchaseOrderRequest struct {
	SupplierID           string                     `json:"supplier_id" binding:"required"`
	OrderDate            *time.Time                 `json:"order_date"`
	ExpectedDeliveryDate *time.Time                 `json:"expected_delivery_date"`
	DiscountAmount       decimal.Decimal            `json:"discount_amount"`
	ShippingCost         decimal.Decimal            `json:"shipping_cost"`
	PaymentTerms         string                     `json:"payment_terms"`
	SupplierReference    string                     `json:"supplier_reference"`
	Notes                string                     `json:"notes"`
	Items                []PurchaseOrderItemRequest `json:"items"`
}

type ConfirmPurchaseOrderRequest struct {
	SupplierReference    string     `json:"supplier_reference"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	Notes                string     `json:"notes"`
}

type ReceiveItemRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

type ReceivePurchaseOrderRequest struct {
	Items []ReceiveItemRequest `json:"items"`
	Notes string               `json:"notes"`
}

type CancelPurchaseOrderRequest struct {
	Reason string `json:"reason"`
}

type PurchaseOrderItemResponse struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	Description      string          `json:"description"`
	SupplierSKU      string          `json:"supplier_sku"`
	QuantityOrdered  int             `json:"quantity_ordered"`
	QuantityReceived int             `json:"quantity_received"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	Total            decimal.Decimal `json:"total"`
}

type PurchaseOrderResponse struct {
	ID                   string                      `json:"id"`
	OrderNumber          string                      `json:"order_number"`
	SupplierID           string                      `json:"supplier_id"`
	SupplierName         string                      `json:"supplier_name"`
	Status               model.PurchaseOrderStatus   `json:"status"`
	OrderDate            time.Time                   `json:"order_date"`
	ExpectedDeliveryDate *time.Time                  `json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time                  `json:"actual_delivery_date,omitempty"`
	Subtotal             decimal.Decimal             `json:"subtotal"`
	TaxAmount            decimal.Decimal             `json:"tax_amount"`
	DiscountAmount       decimal.Decimal             `json:"discount_amount"`
	ShippingCost         decimal.Decimal             `json:"shipping_cost"`
	TotalAmount          decimal.Decimal             `json:"total_amount"`
	PaymentTerms         string                      `json:"payment_terms"`
	SupplierReference    string                      `json:"supplier_reference"`
	Notes                string                      `json:"notes"`
	Version              int64                       `json:"version"`
	Items                []PurchaseOrderItemResponse `json:"items"`
}

type PurchaseOrderListRequest struct {
	Status     string
	SupplierID string
	Search     string
	Page       int
	Limit      int
}

type OverduePurchaseOrderResponse struct {
	ID                   string                    `json:"id"`
	OrderNumber          string                    `json:"order_number"`
	SupplierName         string                    `json:"supplier_name"`
	Status               model.PurchaseOrderStatus `json:"status"`
	OrderDate            time.Time                 `json:"order_date"`
	ExpectedDeliveryDate time.Time                 `json:"expected_delivery_date"`
	DaysOverdue          int                       `json:"days_overdue"`
	TotalAmount          decimal.Decimal           `json:"total_amount"`
}

// PurchaseOrderSummaryResponse counts orders per status. Amounts leave out
// cancelled orders.
type PurchaseOrderSummaryResponse struct {
	TotalOrders             int64           `json:"total_orders"`
	DraftOrders             int64           `json:"draft_orders"`
	SentOrders              int64           `json:"sent_orders"`
	ConfirmedOrders         int64           `json:"confirmed_orders"`
	PartiallyReceivedOrders int64           `json:"partially_received_orders"`
	ReceivedOrders          int64           `json:"received_orders"`
	CancelledOrders         int64           `json:"cancelled_orders"`
	OverdueOrders           int64           `json:"overdue_orders"`
	TotalAmount             decimal.Decimal `json:"total_amount"`
	TotalPaid               decimal.Decimal `json:"total_paid"`
	TotalOutstanding        decimal.Decimal `json:"total_outstanding"`
}

type ReorderSuggestionResponse struct {
	ProductID             string           `json:"product_id"`
	SKU                   string           `json:"sku"`
	ProductName           string           `json:"product_name"`
	CurrentStock          int              `json:"current_stock"`
	ReorderLevel          int              `json:"reorder_level"`
	SuggestedQuantity     int              `json:"suggested_quantity"`
	PreferredSupplierID   string           `json:"preferred_supplier_id,omitempty"`
	PreferredSupplierName string           `json:"preferred_supplier_name,omitempty"`
	SupplierPrice         *decimal.Decimal `json:"supplier_price,omitempty"`
	EstimatedCost         *decimal.Decimal `json:"estimated_cost,omitempty"`
}

type PurchaseOrderService interface {
	CreatePurchaseOrder(ctx context.Context, userID string, req PurchaseOrderRequest) (*PurchaseOrderResponse, error)
	UpdatePurchaseOrder(ctx context.Context, userID, id string, req PurchaseOrderRequest) (*PurchaseOrderResponse, error)
	DeletePurchaseOrder(ctx context.Context, userID, id string) error
	SendPurchaseOrder(ctx context.Context, userID, id string) (*PurchaseOrderResponse, error)
	ConfirmPurchaseOrder(ctx context.Context, userID, id string, req ConfirmPurchaseOrderRequest) (*PurchaseOrderResponse, error)
	// ReceiveItems books a batch of receipts. The batch is validated up front and
	// applied atomically: one bad line rejects all of them.
	ReceiveItems(ctx context.Context, userID, id string, req ReceivePurchaseOrderRequest) (*PurchaseOrderResponse, error)
	// CancelPurchaseOrder reverses any stock already received before marking the
	// order cancelled.
	CancelPurchaseOrder(ctx context.Context, userID, id string, req CancelPurchaseOrderRequest) (*PurchaseOrderResponse, error)
	GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrderResponse, error)
	ListPurchaseOrders(ctx context.Context, req PurchaseOrderListRequest) ([]PurchaseOrderResponse, int64, error)
	ListOverduePurchaseOrders(ctx context.Context) ([]OverduePurchaseOrderResponse, error)
	GetSummary(ctx context.Context) (PurchaseOrderSummaryResponse, error)
	// ReorderSuggestions lists products at or below their reorder level. A
	// positive threshold replaces each product's own low-stock threshold.
	ReorderSuggestions(ctx context.Context, threshold int) ([]ReorderSuggestionResponse, error)
}

type purchaseOrderService struct {
	poRepo       repository.PurchaseOrderRepository
	supplierRepo repository.SupplierRepository
	linkRepo     repository.ProductSupplierRepository
	productRepo  repository.ProductRepository
	movementRepo repository.MovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	calc         *tax.Calculator
	limits       config.PurchaseOrderConfig
	events       EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

func NewPurchaseOrderService(
	poRepo repository.PurchaseOrderRepository,
	supplierRepo repository.SupplierRepository,
	linkRepo repository.ProductSupplierRepository,
	productRepo repository.ProductRepository,
	movementRepo repository.MovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	calc *tax.Calculator,
	limits config.PurchaseOrderConfig,
	events EventPublisher,
	logger *zap.Logger,
) PurchaseOrderService {
	return &purchaseOrderService{
		poRepo:       poRepo,
		supplierRepo: supplierRepo,
		linkRepo:     linkRepo,
		productRepo:  productRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		calc:         calc,
		limits:       limits,
		events:       publisherOrNoop(events),
		logger:       logger,
		now:          time.Now,
	}
}

func transition(po *model.PurchaseOrder, action model.PurchaseOrderAction) (model.PurchaseOrderStatus, error) {
	next, ok := model.NextPurchaseOrderStatus(po.Status, action)
	if !ok {
		return "", apperror.InvalidState("cannot %s purchase order %s in status %s", action, po.OrderNumber, po.Status)
	}
	return next, nil
}

func (s *purchaseOrderService) load(ctx context.Context, id string) (*model.PurchaseOrder, error) {
	poID, err := parseID("purchase order", id)
	if err != nil {
		return nil, err
	}
	po, err := s.poRepo.FindByID(ctx, poID, repository.VisibleOnly)
	if err != nil {
		return nil, lookupErr(err, "purchase order", id)
	}
	return po, nil
}

func (s *purchaseOrderService) activeSupplier(ctx context.Context, raw string) (*model.Supplier, error) {
	supplierID, err := parseID("supplier", raw)
	if err != nil {
		return nil, err
	}
	supplier, err := s.supplierRepo.FindByID(ctx, supplierID, repository.VisibleOnly)
	if err != nil {
		return nil, lookupErr(err, "supplier", raw)
	}
	if !supplier.IsActive {
		return nil, apperror.Validation("supplier %s is inactive", supplier.Name)
	}
	return supplier, nil
}

// buildItems validates requested lines and prices them: subtotal is
// quantity x cost - discount and each line carries its own tax.
func (s *purchaseOrderService) buildItems(ctx context.Context, reqs []PurchaseOrderItemRequest) ([]model.PurchaseOrderItem, error) {
	if len(reqs) == 0 {
		return nil, apperror.Validation("purchase order must contain at least one item")
	}
	if len(reqs) > s.limits.MaxItems {
		return nil, apperror.Validation("purchase order cannot contain more than %d items", s.limits.MaxItems)
	}

	ids := make([]uuid.UUID, 0, len(reqs))
	parsed := make([]uuid.UUID, len(reqs))
	for i, r := range reqs {
		pid, err := parseID("product", r.ProductID)
		if err != nil {
			return nil, err
		}
		if r.Quantity < 1 || r.Quantity > s.limits.MaxQuantityPerItem {
			return nil, apperror.Validation("quantity for product %s must be between 1 and %d", r.ProductID, s.limits.MaxQuantityPerItem)
		}
		parsed[i] = pid
		ids = append(ids, pid)
	}

	products, err := s.productRepo.FindByIDs(ctx, ids, repository.VisibleOnly)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]model.PurchaseOrderItem, 0, len(reqs))
	for i, r := range reqs {
		p, ok := byID[parsed[i]]
		if !ok {
			return nil, apperror.NotFound("product", r.ProductID)
		}
		cost := p.Price
		if r.UnitCost != nil {
			cost = *r.UnitCost
		}
		if cost.IsNegative() {
			return nil, apperror.Validation("unit cost for product %s cannot be negative", p.SKU)
		}
		gross := cost.Mul(decimal.NewFromInt(int64(r.Quantity))).Round(2)
		if r.DiscountAmount.IsNegative() || r.DiscountAmount.GreaterThan(gross) {
			return nil, apperror.Validation("discount for product %s must be between 0 and %s", p.SKU, gross.StringFixed(2))
		}
		subtotal := gross.Sub(r.DiscountAmount)
		lineTax := s.calc.Tax(subtotal)
		description := r.Description
		if description == "" {
			description = p.Name
		}
		items = append(items, model.PurchaseOrderItem{
			ProductID:       p.ID,
			Description:     description,
			SupplierSKU:     r.SupplierSKU,
			QuantityOrdered: r.Quantity,
			UnitCost:        cost,
			DiscountAmount:  r.DiscountAmount,
			Subtotal:        subtotal,
			TaxAmount:       lineTax,
			Total:           subtotal.Add(lineTax),
			SortOrder:       i,
		})
	}
	return items, nil
}

// applyTotals sets the header amounts: subtotal + tax + shipping - discount.
func applyTotals(po *model.PurchaseOrder) error {
	if po.DiscountAmount.IsNegative() || po.ShippingCost.IsNegative() {
		return apperror.Validation("discount and shipping cost cannot be negative")
	}
	subtotal, taxAmount := decimal.Zero, decimal.Zero
	for _, item := range po.Items {
		subtotal = subtotal.Add(item.Subtotal)
		taxAmount = taxAmount.Add(item.TaxAmount)
	}
	total := subtotal.Add(taxAmount).Add(po.ShippingCost).Sub(po.DiscountAmount)
	if total.IsNegative() {
		return apperror.Validation("discount cannot exceed the order total")
	}
	po.Subtotal = subtotal
	po.TaxAmount = taxAmount
	po.TotalAmount = total
	return nil
}

func (s *purchaseOrderService) CreatePurchaseOrder(ctx context.Context, userID string, req PurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	supplier, err := s.activeSupplier(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	orderDate := s.now()
	if req.OrderDate != nil {
		orderDate = *req.OrderDate
	}
	expected := orderDate.AddDate(0, 0, s.limits.DefaultDeliveryDays)
	if req.ExpectedDeliveryDate != nil {
		expected = *req.ExpectedDeliveryDate
	}
	if expected.Before(orderDate) {
		return nil, apperror.Validation("expected delivery date cannot be before the order date")
	}

	po := &model.PurchaseOrder{
		SupplierID:           supplier.ID,
		Status:               model.POStatusDraft,
		OrderDate:            orderDate,
		ExpectedDeliveryDate: &expected,
		DiscountAmount:       req.DiscountAmount,
		ShippingCost:         req.ShippingCost,
		PaidAmount:           decimal.Zero,
		PaymentTerms:         req.PaymentTerms,
		SupplierReference:    req.SupplierReference,
		Notes:                req.Notes,
		Items:                items,
		CreatedBy:            actorID(userID),
	}
	if err := applyTotals(po); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, err := s.poRepo.NextOrderNumber(txCtx, orderDate.Year())
		if err != nil {
			return fmt.Errorf("failed to generate order number: %w", err)
		}
		po.OrderNumber = number
		if err := s.poRepo.Create(txCtx, po); err != nil {
			return insertErr(err, "purchase order")
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreatePurchaseOrder, po.ID.String(), po.OrderNumber, map[string]interface{}{
			"supplier_id": supplier.ID.String(),
			"items":       len(items),
			"total":       po.TotalAmount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase order created", zap.String("order_number", po.OrderNumber), zap.String("supplier", supplier.Name))
	return s.GetPurchaseOrder(ctx, po.ID.String())
}

func (s *purchaseOrderService) UpdatePurchaseOrder(ctx context.Context, userID, id string, req PurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	po, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := transition(po, model.POActionEdit); err != nil {
		return nil, err
	}
	supplier, err := s.activeSupplier(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	po.SupplierID = supplier.ID
	if req.OrderDate != nil {
		po.OrderDate = *req.OrderDate
	}
	if req.ExpectedDeliveryDate != nil {
		po.ExpectedDeliveryDate = req.ExpectedDeliveryDate
	}
	po.DiscountAmount = req.DiscountAmount
	po.ShippingCost = req.ShippingCost
	po.PaymentTerms = req.PaymentTerms
	po.SupplierReference = req.SupplierReference
	po.Notes = req.Notes
	po.Items = items
	if err := applyTotals(po); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.poRepo.Update(txCtx, po); err != nil {
			return err
		}
		if err := s.poRepo.ReplaceItems(txCtx, po.ID, items); err != nil {
			return fmt.Errorf("failed to replace purchase order items: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdatePurchaseOrder, po.ID.String(), po.OrderNumber, map[string]interface{}{
			"items": len(items),
			"total": po.TotalAmount,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetPurchaseOrder(ctx, id)
}

func (s *purchaseOrderService) DeletePurchaseOrder(ctx context.Context, userID, id string) error {
	po, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := transition(po, model.POActionDelete); err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.poRepo.SoftDelete(txCtx, po.ID, po.Version); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeletePurchaseOrder, po.ID.String(), po.OrderNumber, map[string]bool{"deleted": true})
	})
}

func (s *purchaseOrderService) SendPurchaseOrder(ctx context.Context, userID, id string) (*PurchaseOrderResponse, error) {
	po, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := transition(po, model.POActionSend)
	if err != nil {
		return nil, err
	}
	if len(po.Items) == 0 {
		return nil, apperror.Validation("cannot send purchase order %s without items", po.OrderNumber)
	}
	po.Status = next
	return s.saveHeader(ctx, userID, po, model.ActionSendPurchaseOrder, nil)
}

func (s *purchaseOrderService) ConfirmPurchaseOrder(ctx context.Context, userID, id string, req ConfirmPurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	po, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := transition(po, model.POActionConfirm)
	if err != nil {
		return nil, err
	}
	po.Status = next
	if req.SupplierReference != "" {
		po.SupplierReference = req.SupplierReference
	}
	if req.ExpectedDeliveryDate != nil {
		po.ExpectedDeliveryDate = req.ExpectedDeliveryDate
	}
	po.AppendNote(req.Notes)
	return s.saveHeader(ctx, userID, po, model.ActionConfirmPurchaseOrder, req)
}

func (s *purchaseOrderService) saveHeader(ctx context.Context, userID string, po *model.PurchaseOrder, action string, details interface{}) (*PurchaseOrderResponse, error) {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.poRepo.Update(txCtx, po); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, action, po.ID.String(), po.OrderNumber, map[string]interface{}{
			"status":  po.Status,
			"details": details,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("purchase order status changed", zap.String("order_number", po.OrderNumber), zap.String("status", string(po.Status)))
	res := toPurchaseOrderResponse(po)
	return &res, nil
}

// stockDelta is one product's share of a receipt or reversal.
type stockDelta struct {
	product  *model.Product
	quantity int
	itemIDs  []uuid.UUID
}

// loadStockDeltas collects per-product quantities in the order products first
// appear, so a product listed on several lines gets one running version.
func (s *purchaseOrderService) loadStockDeltas(ctx context.Context, items []model.PurchaseOrderItem, qty func(model.PurchaseOrderItem) int) ([]*stockDelta, error) {
	var order []uuid.UUID
	byProduct := map[uuid.UUID]*stockDelta{}
	for _, item := range items {
		q := qty(item)
		if q <= 0 {
			continue
		}
		d, ok := byProduct[item.ProductID]
		if !ok {
			d = &stockDelta{}
			byProduct[item.ProductID] = d
			order = append(order, item.ProductID)
		}
		d.quantity += q
		d.itemIDs = append(d.itemIDs, item.ID)
	}

	products, err := s.productRepo.FindByIDs(ctx, order, repository.VisibleOnly)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for i := range products {
		byProduct[products[i].ID].product = &products[i]
	}

	deltas := make([]*stockDelta, 0, len(order))
	for _, pid := range order {
		d := byProduct[pid]
		if d.product == nil {
			return nil, apperror.NotFound("product", pid.String())
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

func (s *purchaseOrderService) ReceiveItems(ctx context.Context, userID, id string, req ReceivePurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	po, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := transition(po, model.POActionReceivePartial); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, apperror.Validation("at least one item must be received")
	}

	itemIndex := make(map[uuid.UUID]int, len(po.Items))
	for i, item := range po.Items {
		itemIndex[item.ID] = i
	}

	received := make(map[uuid.UUID]int, len(req.Items))
	for _, r := range req.Items {
		itemID, err := parseID("purchase order item", r.ItemID)
		if err != nil {
			return nil, err
		}
		if _, ok := itemIndex[itemID]; !ok {
			return nil, apperror.NotFound("purchase order item", r.ItemID)
		}
		if r.Quantity <= 0 {
			return nil, apperror.Validation("received quantity for item %s must be positive", r.ItemID)
		}
		received[itemID] += r.Quantity
	}
	for itemID, q := range received {
		item := po.Items[itemIndex[itemID]]
		if item.QuantityReceived+q > item.QuantityOrdered {
			return nil, &apperror.Error{
				Kind: apperror.KindOverReceipt,
				Message: fmt.Sprintf("cannot receive %d of %s: ordered %d, already received %d",
					q, item.Description, item.QuantityOrdered, item.QuantityReceived),
				Details: map[string]interface{}{
					"item_id":  itemID.String(),
					"ordered":  item.QuantityOrdered,
					"received": item.QuantityReceived,
					"incoming": q,
				},
			}
		}
	}

	before := make([]model.PurchaseOrderItem, len(po.Items))
	copy(before, po.Items)
	for itemID, q := range received {
		po.Items[itemIndex[itemID]].QuantityReceived += q
	}

	action := model.POActionReceivePartial
	if po.FullyReceived() {
		action = model.POActionReceiveAll
	}
	next, err := transition(po, action)
	if err != nil {
		return nil, err
	}
	po.Status = next
	if next == model.POStatusReceived {
		now := s.now()
		po.ActualDeliveryDate = &now
	}
	po.AppendNote(req.Notes)

	deltas, err := s.loadStockDeltas(ctx, before, func(item model.PurchaseOrderItem) int { return received[item.ID] })
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("Purchase Order %s - Item received", po.OrderNumber)
	events, err := s.applyStock(ctx, po, deltas, model.MovementIncrease, reason, userID, func(txCtx context.Context) error {
		for itemID := range received {
			item := po.Items[itemIndex[itemID]]
			if err := s.poRepo.UpdateItemReceived(txCtx, item.ID, item.QuantityReceived); err != nil {
				return fmt.Errorf("failed to update received quantity: %w", err)
			}
		}
		if err := s.poRepo.Update(txCtx, po); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionReceivePurchaseOrder, po.ID.String(), po.OrderNumber, map[string]interface{}{
			"items":  req.Items,
			"status": po.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(events)
	s.logger.Info("purchase order received",
		zap.String("order_number", po.OrderNumber), zap.String("status", string(po.Status)), zap.Int("lines", len(received)))
	return s.GetPurchaseOrder(ctx, id)
}

func (s *purchaseOrderService) CancelPurchaseOrder(ctx context.Context, userID, id string, req CancelPurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	po, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := transition(po, model.POActionCancel)
	if err != nil {
		return nil, err
	}

	var deltas []*stockDelta
	if po.HasReceipts() {
		deltas, err = s.loadStockDeltas(ctx, po.Items, func(item model.PurchaseOrderItem) int { return item.QuantityReceived })
		if err != nil {
			return nil, err
		}
		for _, d := range deltas {
			if d.product.Stock < d.quantity {
				return nil, apperror.StockInsufficient(apperror.StockShortage{
					ProductID:   d.product.ID.String(),
					ProductName: d.product.Name,
					Available:   d.product.Stock,
					Required:    d.quantity,
				})
			}
		}
	}

	po.Status = next
	if req.Reason != "" {
		po.AppendNote("Cancelled: " + req.Reason)
	}

	reason := fmt.Sprintf("Purchase Order %s - Cancelled (reversal)", po.OrderNumber)
	events, err := s.applyStock(ctx, po, deltas, model.MovementDecrease, reason, userID, func(txCtx context.Context) error {
		if err := s.poRepo.Update(txCtx, po); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCancelPurchaseOrder, po.ID.String(), po.OrderNumber, map[string]interface{}{
			"reason":   req.Reason,
			"reversed": len(deltas),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(events)
	s.logger.Info("purchase order cancelled", zap.String("order_number", po.OrderNumber), zap.Int("reversed_products", len(deltas)))
	return s.GetPurchaseOrder(ctx, id)
}

// applyStock moves stock for every delta and runs then inside the same
// transaction. Any failure rolls back all of it.
func (s *purchaseOrderService) applyStock(
	ctx context.Context,
	po *model.PurchaseOrder,
	deltas []*stockDelta,
	direction model.MovementDirection,
	reason, userID string,
	then func(txCtx context.Context) error,
) ([]StockChangedEvent, error) {
	var events []StockChangedEvent
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		events = events[:0]
		movements := make([]*model.InventoryMovement, 0, len(deltas))
		for _, d := range deltas {
			signed := d.quantity
			if direction == model.MovementDecrease {
				signed = -d.quantity
			}
			if err := s.productRepo.AdjustStock(txCtx, d.product.ID, d.product.Version, signed); err != nil {
				return err
			}
			stockAfter := d.product.Stock + signed
			movements = append(movements, &model.InventoryMovement{
				ProductID:       d.product.ID,
				Direction:       direction,
				Quantity:        d.quantity,
				StockAfter:      stockAfter,
				Reason:          reason,
				PurchaseOrderID: &po.ID,
				CreatedBy:       actorID(userID),
			})
			events = append(events, StockChangedEvent{
				ProductID: d.product.ID.String(), SKU: d.product.SKU, Name: d.product.Name,
				Stock: stockAfter, Delta: signed, Reason: reason,
			})
		}
		if err := s.movementRepo.Append(txCtx, movements...); err != nil {
			return fmt.Errorf("failed to record stock movements: %w", err)
		}
		return then(txCtx)
	})
	if err != nil && apperror.Is(err, apperror.KindConcurrency) {
		s.logger.Warn("purchase order aborted by concurrent update", zap.String("order_number", po.OrderNumber), zap.Error(err))
	}
	return events, err
}

func (s *purchaseOrderService) publish(events []StockChangedEvent) {
	for _, e := range events {
		s.events.Publish(EventStockChanged, e)
	}
}

func (s *purchaseOrderService) GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrderResponse, error) {
	po, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res := toPurchaseOrderResponse(po)
	return &res, nil
}

func (s *purchaseOrderService) ListPurchaseOrders(ctx context.Context, req PurchaseOrderListRequest) ([]PurchaseOrderResponse, int64, error) {
	page, limit := normalizePage(req.Page, req.Limit)
	filter := repository.PurchaseOrderFilter{Search: req.Search, Page: page, Limit: limit}
	if req.Status != "" {
		status := model.PurchaseOrderStatus(req.Status)
		if !status.Valid() {
			return nil, 0, apperror.Validation("unknown purchase order status %q", req.Status)
		}
		filter.Status = status
	}
	if req.SupplierID != "" {
		sid, err := parseID("supplier", req.SupplierID)
		if err != nil {
			return nil, 0, err
		}
		filter.SupplierID = &sid
	}

	orders, total, err := s.poRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	res := make([]PurchaseOrderResponse, 0, len(orders))
	for i := range orders {
		res = append(res, toPurchaseOrderResponse(&orders[i]))
	}
	return res, total, nil
}

func (s *purchaseOrderService) ListOverduePurchaseOrders(ctx context.Context) ([]OverduePurchaseOrderResponse, error) {
	now := s.now()
	orders, err := s.poRepo.ListOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch overdue purchase orders: %w", err)
	}
	res := make([]OverduePurchaseOrderResponse, 0, len(orders))
	for _, po := range orders {
		r := OverduePurchaseOrderResponse{
			ID:                   po.ID.String(),
			OrderNumber:          po.OrderNumber,
			Status:               po.Status,
			OrderDate:            po.OrderDate,
			ExpectedDeliveryDate: *po.ExpectedDeliveryDate,
			DaysOverdue:          daysSince(*po.ExpectedDeliveryDate, now),
			TotalAmount:          po.TotalAmount,
		}
		if po.Supplier != nil {
			r.SupplierName = po.Supplier.Name
		}
		res = append(res, r)
	}
	return res, nil
}

func (s *purchaseOrderService) GetSummary(ctx context.Context) (PurchaseOrderSummaryResponse, error) {
	rows, err := s.poRepo.TotalsByStatus(ctx)
	if err != nil {
		return PurchaseOrderSummaryResponse{}, fmt.Errorf("failed to total purchase orders: %w", err)
	}
	overdue, err := s.poRepo.ListOverdue(ctx, s.now())
	if err != nil {
		return PurchaseOrderSummaryResponse{}, fmt.Errorf("failed to fetch overdue purchase orders: %w", err)
	}

	res := PurchaseOrderSummaryResponse{TotalAmount: decimal.Zero, TotalPaid: decimal.Zero}
	for _, r := range rows {
		res.TotalOrders += r.Count
		switch model.PurchaseOrderStatus(r.Status) {
		case model.POStatusDraft:
			res.DraftOrders = r.Count
		case model.POStatusSent:
			res.SentOrders = r.Count
		case model.POStatusConfirmed:
			res.ConfirmedOrders = r.Count
		case model.POStatusPartiallyReceived:
			res.PartiallyReceivedOrders = r.Count
		case model.POStatusReceived:
			res.ReceivedOrders = r.Count
		case model.POStatusCancelled:
			res.CancelledOrders = r.Count
			continue
		}
		res.TotalAmount = res.TotalAmount.Add(r.Total)
		res.TotalPaid = res.TotalPaid.Add(r.Paid)
	}
	res.TotalOutstanding = res.TotalAmount.Sub(res.TotalPaid)
	res.OverdueOrders = int64(len(overdue))
	return res, nil
}

func (s *purchaseOrderService) ReorderSuggestions(ctx context.Context, threshold int) ([]ReorderSuggestionResponse, error) {
	if threshold < 0 {
		return nil, apperror.Validation("threshold must not be negative")
	}
	products, err := s.productRepo.ListReorderCandidates(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reorder candidates: %w", err)
	}
	if len(products) == 0 {
		return []ReorderSuggestionResponse{}, nil
	}

	ids := make([]uuid.UUID, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	links, err := s.linkRepo.FindPreferred(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preferred suppliers: %w", err)
	}
	preferred := make(map[uuid.UUID]model.ProductSupplier, len(links))
	for _, l := range links {
		preferred[l.ProductID] = l
	}

	res := make([]ReorderSuggestionResponse, 0, len(products))
	for _, p := range products {
		level := p.LowStockThreshold
		if threshold > 0 {
			level = threshold
		}
		qty := 2*level - p.Stock
		if qty < 1 {
			qty = 1
		}
		r := ReorderSuggestionResponse{
			ProductID:    p.ID.String(),
			SKU:          p.SKU,
			ProductName:  p.Name,
			CurrentStock: p.Stock,
			ReorderLevel: level,
		}
		if link, ok := preferred[p.ID]; ok {
			if link.MinimumOrderQuantity != nil && *link.MinimumOrderQuantity > qty {
				qty = *link.MinimumOrderQuantity
			}
			price := link.SupplierPrice
			cost := price.Mul(decimal.NewFromInt(int64(qty)))
			r.PreferredSupplierID = link.SupplierID.String()
			if link.Supplier != nil {
				r.PreferredSupplierName = link.Supplier.Name
			}
			r.SupplierPrice = &price
			r.EstimatedCost = &cost
		}
		r.SuggestedQuantity = qty
		res = append(res, r)
	}
	return res, nil
}

func toPurchaseOrderResponse(po *model.PurchaseOrder) PurchaseOrderResponse {
	res := PurchaseOrderResponse{
		ID:                   po.ID.String(),
		OrderNumber:          po.OrderNumber,
		SupplierID:           po.SupplierID.String(),
		Status:               po.Status,
		OrderDate:            po.OrderDate,
		ExpectedDeliveryDate: po.ExpectedDeliveryDate,
		ActualDeliveryDate:   po.ActualDeliveryDate,
		Subtotal:             po.Subtotal,
		TaxAmount:            po.TaxAmount,
		DiscountAmount:       po.DiscountAmount,
		ShippingCost:         po.ShippingCost,
		TotalAmount:          po.TotalAmount,
		PaymentTerms:         po.PaymentTerms,
		SupplierReference:    po.SupplierReference,
		Notes:                po.Notes,
		Version:              po.Version,
		Items:                make([]PurchaseOrderItemResponse, 0, len(po.Items)),
	}
	if po.Supplier != nil {
		res.SupplierName = po.Supplier.Name
	}
	items := make([]model.PurchaseOrderItem, len(po.Items))
	copy(items, po.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })
	for _, item := range items {
		ir := PurchaseOrderItemResponse{
			ID:               item.ID.String(),
			ProductID:        item.ProductID.String(),
			Description:      item.Description,
			SupplierSKU:      item.SupplierSKU,
			QuantityOrdered:  item.QuantityOrdered,
			QuantityReceived: item.QuantityReceived,
			UnitCost:         item.UnitCost,
			DiscountAmount:   item.DiscountAmount,
			Subtotal:         item.Subtotal,
			TaxAmount:        item.TaxAmount,
			Total:            item.Total,
		}
		if item.Product != nil {
			ir.ProductName = item.Product.Name
		}
		res.Items = append(res.Items, ir)
	}
	return res
}
