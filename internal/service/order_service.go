package service

import (
	"context"
	"fmt"
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

// DTOs
type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	CustomerID string             `json:"customer_id" binding:"required"`
	Notes      string             `json:"notes"`
	Items      []OrderItemRequest `json:"items"`
}

type OrderItemResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type OrderResponse struct {
	ID           string              `json:"id"`
	CustomerID   string              `json:"customer_id"`
	CustomerName string              `json:"customer_name"`
	Items        []OrderItemResponse `json:"items"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	Tax          decimal.Decimal     `json:"tax"`
	Total        decimal.Decimal     `json:"total"`
	Notes        string              `json:"notes"`
	CreatedAt    time.Time           `json:"created_at"`
}

type OrderService interface {
	// CreateOrder reserves stock for every line and persists the order as one
	// unit. A Concurrency error means another writer changed a product between
	// the read and the write; callers retry the whole call.
	CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, id string) (*OrderResponse, error)
	ListOrders(ctx context.Context, customerID string, page, limit int) ([]OrderResponse, int64, error)
}

type orderService struct {
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
	orderRepo    repository.OrderRepository
	movementRepo repository.MovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	calc         *tax.Calculator
	limits       config.OrderConfig
	events       EventPublisher
	logger       *zap.Logger
}

func NewOrderService(
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	movementRepo repository.MovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	calc *tax.Calculator,
	limits config.OrderConfig,
	events EventPublisher,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		customerRepo: customerRepo,
		productRepo:  productRepo,
		orderRepo:    orderRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		calc:         calc,
		limits:       limits,
		events:       publisherOrNoop(events),
		logger:       logger,
	}
}

type orderLine struct {
	productID uuid.UUID
	quantity  int
}

// normalizeLines validates the requested lines and merges repeated products,
// keeping first-seen order.
func (s *orderService) normalizeLines(items []OrderItemRequest) ([]orderLine, error) {
	if len(items) == 0 {
		return nil, apperror.Validation("order must contain at least one item")
	}
	if len(items) > s.limits.MaxItems {
		return nil, apperror.Validation("order cannot contain more than %d items", s.limits.MaxItems)
	}

	lines := make([]orderLine, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		pid, err := parseID("product", item.ProductID)
		if err != nil {
			return nil, err
		}
		if item.Quantity < 1 || item.Quantity > s.limits.MaxQuantityPerItem {
			return nil, apperror.Validation("quantity for product %s must be between 1 and %d", item.ProductID, s.limits.MaxQuantityPerItem)
		}
		if i, ok := index[pid]; ok {
			lines[i].quantity += item.Quantity
			if lines[i].quantity > s.limits.MaxQuantityPerItem {
				return nil, apperror.Validation("quantity for product %s must be between 1 and %d", item.ProductID, s.limits.MaxQuantityPerItem)
			}
			continue
		}
		index[pid] = len(lines)
		lines = append(lines, orderLine{productID: pid, quantity: item.Quantity})
	}
	return lines, nil
}

func (s *orderService) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*OrderResponse, error) {
	customerID, err := parseID("customer", req.CustomerID)
	if err != nil {
		return nil, err
	}
	lines, err := s.normalizeLines(req.Items)
	if err != nil {
		return nil, err
	}

	if _, err := s.customerRepo.FindByID(ctx, customerID, repository.VisibleOnly); err != nil {
		return nil, lookupErr(err, "customer", req.CustomerID)
	}

	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.productID
	}
	products, err := s.productRepo.FindByIDs(ctx, ids, repository.VisibleOnly)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, &apperror.Error{Kind: apperror.KindNotFound, Message: "product not found", Details: map[string][]string{"ids": missing}}
	}

	// Nothing is written unless every line can be served.
	for _, l := range lines {
		p := byID[l.productID]
		if p.Stock < l.quantity {
			s.logger.Warn("order rejected: insufficient stock",
				zap.String("product_id", p.ID.String()), zap.Int("available", p.Stock), zap.Int("required", l.quantity))
			return nil, apperror.StockInsufficient(apperror.StockShortage{
				ProductID:   p.ID.String(),
				ProductName: p.Name,
				Available:   p.Stock,
				Required:    l.quantity,
			})
		}
	}

	order := &model.Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Notes:      req.Notes,
		CreatedBy:  actorID(userID),
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		p := byID[l.productID]
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		order.Items = append(order.Items, model.OrderItem{
			ProductID: p.ID,
			Quantity:  l.quantity,
			UnitPrice: p.Price,
			LineTotal: lineTotal,
		})
	}
	order.Subtotal = subtotal
	order.Tax = s.calc.Tax(subtotal)
	order.Total = subtotal.Add(order.Tax)

	reason := fmt.Sprintf("Order %s", order.ID)
	events := make([]StockChangedEvent, 0, len(lines))

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		movements := make([]*model.InventoryMovement, 0, len(lines))
		for _, l := range lines {
			p := byID[l.productID]
			if err := s.productRepo.AdjustStock(txCtx, p.ID, p.Version, -l.quantity); err != nil {
				return err
			}
			movements = append(movements, &model.InventoryMovement{
				ProductID:  p.ID,
				Direction:  model.MovementDecrease,
				Quantity:   l.quantity,
				StockAfter: p.Stock - l.quantity,
				Reason:     reason,
				OrderID:    &order.ID,
				CreatedBy:  order.CreatedBy,
			})
			events = append(events, StockChangedEvent{
				ProductID: p.ID.String(), SKU: p.SKU, Name: p.Name,
				Stock: p.Stock - l.quantity, Delta: -l.quantity, Reason: reason,
			})
		}
		if err := s.movementRepo.Append(txCtx, movements...); err != nil {
			return fmt.Errorf("failed to record stock movements: %w", err)
		}
		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateOrder, order.ID.String(), req.CustomerID, map[string]interface{}{
			"customer_id": req.CustomerID,
			"items":       req.Items,
			"total":       order.Total,
		})
	})
	if err != nil {
		if apperror.Is(err, apperror.KindConcurrency) {
			s.logger.Warn("order aborted by concurrent stock change", zap.String("customer_id", req.CustomerID), zap.Error(err))
		}
		return nil, err
	}

	for _, e := range events {
		s.events.Publish(EventStockChanged, e)
	}
	s.logger.Info("order created", zap.String("order_id", order.ID.String()), zap.String("total", order.Total.StringFixed(2)))

	return s.GetOrder(ctx, order.ID.String())
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*OrderResponse, error) {
	orderID, err := parseID("order", id)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		return nil, lookupErr(err, "order", id)
	}
	res := toOrderResponse(order)
	return &res, nil
}

func (s *orderService) ListOrders(ctx context.Context, customerID string, page, limit int) ([]OrderResponse, int64, error) {
	page, limit = normalizePage(page, limit)

	var cid *uuid.UUID
	if customerID != "" {
		parsed, err := parseID("customer", customerID)
		if err != nil {
			return nil, 0, err
		}
		cid = &parsed
	}

	orders, total, err := s.orderRepo.List(ctx, cid, page, limit)
	if err != nil {
		return nil, 0, err
	}
	res := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		res = append(res, toOrderResponse(&orders[i]))
	}
	return res, total, nil
}

func toOrderResponse(o *model.Order) OrderResponse {
	res := OrderResponse{
		ID:         o.ID.String(),
		CustomerID: o.CustomerID.String(),
		Items:      make([]OrderItemResponse, 0, len(o.Items)),
		Subtotal:   o.Subtotal,
		Tax:        o.Tax,
		Total:      o.Total,
		Notes:      o.Notes,
		CreatedAt:  o.CreatedAt,
	}
	if o.Customer != nil {
		res.CustomerName = o.Customer.Name
	}
	for _, item := range o.Items {
		ir := OrderItemResponse{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
		if item.Product != nil {
			ir.ProductName = item.Product.Name
			ir.ProductSKU = item.Product.SKU
		}
		res.Items = append(res.Items, ir)
	}
	return res
}
