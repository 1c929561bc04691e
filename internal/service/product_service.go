package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"erp/internal/apperror"
	"erp/internal/model"
	"erp/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateProductRequest struct {
	SKU               string          `json:"sku" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold *int            `json:"low_stock_threshold"`
}

type UpdateProductRequest struct {
	SKU               string          `json:"sku" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Version           int64           `json:"version" binding:"required"`
}

type AdjustStockRequest struct {
	ProductID string                  `json:"product_id" binding:"required"`
	Direction model.MovementDirection `json:"direction" binding:"required"`
	Quantity  int                     `json:"quantity"`
	Reason    string                  `json:"reason" binding:"required"`
}

type ProductListRequest struct {
	Search         string
	LowStock       bool
	IncludeDeleted bool
	Page           int
	Limit          int
}

type MovementListRequest struct {
	ProductID string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

type ProductResponse struct {
	ID                string          `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	LowStock          bool            `json:"low_stock"`
	Version           int64           `json:"version"`
	IsDeleted         bool            `json:"is_deleted"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// LowStockResponse suggests topping a product back up to twice its threshold.
type LowStockResponse struct {
	ProductResponse
	SuggestedReorder int `json:"suggested_reorder"`
}

type MovementResponse struct {
	ID              string                  `json:"id"`
	ProductID       string                  `json:"product_id"`
	ProductName     string                  `json:"product_name"`
	Direction       model.MovementDirection `json:"direction"`
	Quantity        int                     `json:"quantity"`
	StockAfter      int                     `json:"stock_after"`
	Reason          string                  `json:"reason"`
	OrderID         *string                 `json:"order_id,omitempty"`
	PurchaseOrderID *string                 `json:"purchase_order_id,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (*ProductResponse, error)
	UpdateProduct(ctx context.Context, userID, id string, req UpdateProductRequest) (*ProductResponse, error)
	DeleteProduct(ctx context.Context, userID, id string) error
	RestoreProduct(ctx context.Context, userID, id string) (*ProductResponse, error)
	GetProduct(ctx context.Context, id string) (*ProductResponse, error)
	ListProducts(ctx context.Context, req ProductListRequest) ([]ProductResponse, int64, error)
	ListLowStock(ctx context.Context) ([]LowStockResponse, error)
	// AdjustStock books a manual movement through the same version-checked
	// path orders and receipts use.
	AdjustStock(ctx context.Context, userID string, req AdjustStockRequest) (*MovementResponse, error)
	ListMovements(ctx context.Context, req MovementListRequest) ([]MovementResponse, int64, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	movementRepo repository.MovementRepository
	poRepo       repository.PurchaseOrderRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	events       EventPublisher
	logger       *zap.Logger
}

func NewProductService(
	productRepo repository.ProductRepository,
	movementRepo repository.MovementRepository,
	poRepo repository.PurchaseOrderRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		movementRepo: movementRepo,
		poRepo:       poRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		events:       publisherOrNoop(events),
		logger:       logger,
	}
}

func validateProductFields(sku, name string, price decimal.Decimal, threshold int) error {
	if strings.TrimSpace(sku) == "" || strings.TrimSpace(name) == "" {
		return apperror.Validation("sku and name are required")
	}
	if !price.IsPositive() {
		return apperror.Validation("price must be greater than zero")
	}
	if threshold < 0 {
		return apperror.Validation("low stock threshold cannot be negative")
	}
	return nil
}

func (s *productService) ensureUniqueSKU(ctx context.Context, sku string, self uuid.UUID) error {
	existing, err := s.productRepo.FindBySKU(ctx, sku, repository.IncludeDeleted)
	if err == nil && existing.ID != self {
		return apperror.Validation("sku %s already exists", sku)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check sku: %w", err)
	}
	return nil
}

func (s *productService) CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (*ProductResponse, error) {
	threshold := model.DefaultLowStockThreshold
	if req.LowStockThreshold != nil {
		threshold = *req.LowStockThreshold
	}
	sku := strings.TrimSpace(req.SKU)
	if err := validateProductFields(sku, req.Name, req.Price, threshold); err != nil {
		return nil, err
	}
	if req.Stock < 0 {
		return nil, apperror.Validation("initial stock cannot be negative")
	}
	if err := s.ensureUniqueSKU(ctx, sku, uuid.Nil); err != nil {
		return nil, err
	}

	product := &model.Product{
		SKU:               sku,
		Name:              strings.TrimSpace(req.Name),
		Description:       req.Description,
		Price:             req.Price,
		Stock:             req.Stock,
		LowStockThreshold: threshold,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		if product.Stock > 0 {
			if err := s.movementRepo.Append(txCtx, &model.InventoryMovement{
				ProductID:  product.ID,
				Direction:  model.MovementIncrease,
				Quantity:   product.Stock,
				StockAfter: product.Stock,
				Reason:     "Initial stock",
				CreatedBy:  actorID(userID),
			}); err != nil {
				return fmt.Errorf("failed to record initial stock: %w", err)
			}
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product created", zap.String("sku", product.SKU), zap.Int("stock", product.Stock))
	res := toProductResponse(product)
	return &res, nil
}

func (s *productService) UpdateProduct(ctx context.Context, userID, id string, req UpdateProductRequest) (*ProductResponse, error) {
	product, err := s.find(ctx, id, repository.VisibleOnly)
	if err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(req.SKU)
	if err := validateProductFields(sku, req.Name, req.Price, req.LowStockThreshold); err != nil {
		return nil, err
	}
	if sku != product.SKU {
		if err := s.ensureUniqueSKU(ctx, sku, product.ID); err != nil {
			return nil, err
		}
	}

	before := toProductResponse(product)
	product.SKU = sku
	product.Name = strings.TrimSpace(req.Name)
	product.Description = req.Description
	product.Price = req.Price
	product.LowStockThreshold = req.LowStockThreshold
	// the caller's version wins the CAS or loses it
	product.Version = req.Version

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Update(txCtx, product); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateProduct, product.ID.String(), product.Name, map[string]interface{}{
			"before": before,
			"after":  req,
		})
	})
	if err != nil {
		return nil, err
	}
	res := toProductResponse(product)
	return &res, nil
}

func (s *productService) DeleteProduct(ctx context.Context, userID, id string) error {
	product, err := s.find(ctx, id, repository.VisibleOnly)
	if err != nil {
		return err
	}
	open, err := s.poRepo.HasOpenOrdersForProduct(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("check open purchase orders: %w", err)
	}
	if open {
		return apperror.InvalidState("product %s is on an open purchase order", product.SKU)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.SoftDelete(txCtx, product.ID, product.Version); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteProduct, product.ID.String(), product.Name, map[string]string{"sku": product.SKU})
	})
}

func (s *productService) RestoreProduct(ctx context.Context, userID, id string) (*ProductResponse, error) {
	product, err := s.find(ctx, id, repository.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	if !product.IsDeleted {
		return nil, apperror.InvalidState("product %s is not deleted", product.SKU)
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Restore(txCtx, product.ID); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionRestoreProduct, product.ID.String(), product.Name, map[string]string{"sku": product.SKU})
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *productService) find(ctx context.Context, id string, vis repository.Visibility) (*model.Product, error) {
	pid, err := parseID("product", id)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindByID(ctx, pid, vis)
	if err != nil {
		return nil, lookupErr(err, "product", id)
	}
	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (*ProductResponse, error) {
	product, err := s.find(ctx, id, repository.VisibleOnly)
	if err != nil {
		return nil, err
	}
	res := toProductResponse(product)
	return &res, nil
}

func (s *productService) ListProducts(ctx context.Context, req ProductListRequest) ([]ProductResponse, int64, error) {
	page, limit := normalizePage(req.Page, req.Limit)
	filter := repository.ProductFilter{Search: req.Search, LowStock: req.LowStock, Page: page, Limit: limit}
	if req.IncludeDeleted {
		filter.Visibility = repository.IncludeDeleted
	}

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	res := make([]ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, toProductResponse(&products[i]))
	}
	return res, total, nil
}

func (s *productService) ListLowStock(ctx context.Context) ([]LowStockResponse, error) {
	products, _, err := s.productRepo.List(ctx, repository.ProductFilter{LowStock: true, Limit: 500})
	if err != nil {
		return nil, err
	}
	res := make([]LowStockResponse, 0, len(products))
	for i := range products {
		p := &products[i]
		reorder := 2*p.LowStockThreshold - p.Stock
		if reorder < 0 {
			reorder = 0
		}
		res = append(res, LowStockResponse{ProductResponse: toProductResponse(p), SuggestedReorder: reorder})
	}
	return res, nil
}

func (s *productService) AdjustStock(ctx context.Context, userID string, req AdjustStockRequest) (*MovementResponse, error) {
	if !req.Direction.Valid() {
		return nil, apperror.Validation("direction must be %s or %s", model.MovementIncrease, model.MovementDecrease)
	}
	if req.Quantity <= 0 {
		return nil, apperror.Validation("quantity must be positive")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperror.Validation("reason is required")
	}
	product, err := s.find(ctx, req.ProductID, repository.VisibleOnly)
	if err != nil {
		return nil, err
	}

	delta := req.Quantity
	if req.Direction == model.MovementDecrease {
		if product.Stock < req.Quantity {
			return nil, apperror.StockInsufficient(apperror.StockShortage{
				ProductID:   product.ID.String(),
				ProductName: product.Name,
				Available:   product.Stock,
				Required:    req.Quantity,
			})
		}
		delta = -req.Quantity
	}

	movement := &model.InventoryMovement{
		ProductID:  product.ID,
		Direction:  req.Direction,
		Quantity:   req.Quantity,
		StockAfter: product.Stock + delta,
		Reason:     req.Reason,
		CreatedBy:  actorID(userID),
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.AdjustStock(txCtx, product.ID, product.Version, delta); err != nil {
			return err
		}
		if err := s.movementRepo.Append(txCtx, movement); err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionAdjustStock, product.ID.String(), product.Name, req)
	})
	if err != nil {
		if apperror.Is(err, apperror.KindConcurrency) {
			s.logger.Warn("stock adjustment lost to a concurrent update", zap.String("sku", product.SKU))
		}
		return nil, err
	}

	s.events.Publish(EventStockChanged, StockChangedEvent{
		ProductID: product.ID.String(), SKU: product.SKU, Name: product.Name,
		Stock: movement.StockAfter, Delta: delta, Reason: req.Reason,
	})
	movement.Product = product
	res := toMovementResponse(movement)
	return &res, nil
}

func (s *productService) ListMovements(ctx context.Context, req MovementListRequest) ([]MovementResponse, int64, error) {
	page, limit := normalizePage(req.Page, req.Limit)
	filter := repository.MovementFilter{From: req.From, To: req.To, Page: page, Limit: limit}
	if req.ProductID != "" {
		pid, err := parseID("product", req.ProductID)
		if err != nil {
			return nil, 0, err
		}
		filter.ProductID = &pid
	}

	movements, total, err := s.movementRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	res := make([]MovementResponse, 0, len(movements))
	for i := range movements {
		res = append(res, toMovementResponse(&movements[i]))
	}
	return res, total, nil
}

func toProductResponse(p *model.Product) ProductResponse {
	return ProductResponse{
		ID:                p.ID.String(),
		SKU:               p.SKU,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price,
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
		LowStock:          p.IsLowStock(),
		Version:           p.Version,
		IsDeleted:         p.IsDeleted,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toMovementResponse(m *model.InventoryMovement) MovementResponse {
	res := MovementResponse{
		ID:         m.ID.String(),
		ProductID:  m.ProductID.String(),
		Direction:  m.Direction,
		Quantity:   m.Quantity,
		StockAfter: m.StockAfter,
		Reason:     m.Reason,
		CreatedAt:  m.CreatedAt,
	}
	if m.Product != nil {
		res.ProductName = m.Product.Name
	}
	if m.OrderID != nil {
		id := m.OrderID.String()
		res.OrderID = &id
	}
	if m.PurchaseOrderID != nil {
		id := m.PurchaseOrderID.String()
		res.PurchaseOrderID = &id
	}
	return res
}
