package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"erp/internal/apperror"
	"erp/internal/model"
	"erp/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AssignSupplierRequest struct {
	ProductID            string          `json:"product_id" binding:"required"`
	SupplierID           string          `json:"supplier_id" binding:"required"`
	SupplierPrice        decimal.Decimal `json:"supplier_price"`
	SupplierSKU          string          `json:"supplier_sku"`
	IsPreferred          bool            `json:"is_preferred"`
	LeadTimeDays         *int            `json:"lead_time_days"`
	MinimumOrderQuantity *int            `json:"minimum_order_quantity"`
}

type UpdateProductSupplierRequest struct {
	SupplierPrice        *decimal.Decimal `json:"supplier_price"`
	SupplierSKU          *string          `json:"supplier_sku"`
	IsPreferred          *bool            `json:"is_preferred"`
	LeadTimeDays         *int             `json:"lead_time_days"`
	MinimumOrderQuantity *int             `json:"minimum_order_quantity"`
}

type ProductSupplierResponse struct {
	ID                   string          `json:"id"`
	ProductID            string          `json:"product_id"`
	ProductSKU           string          `json:"product_sku"`
	ProductName          string          `json:"product_name"`
	SupplierID           string          `json:"supplier_id"`
	SupplierName         string          `json:"supplier_name"`
	SupplierPrice        decimal.Decimal `json:"supplier_price"`
	SupplierSKU          string          `json:"supplier_sku"`
	IsPreferred          bool            `json:"is_preferred"`
	LeadTimeDays         *int            `json:"lead_time_days,omitempty"`
	MinimumOrderQuantity *int            `json:"minimum_order_quantity,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ProductSupplierService manages which suppliers offer which products. A
// product has at most one preferred supplier; marking a link preferred
// clears the flag on the product's other links.
type ProductSupplierService interface {
	AssignSupplier(ctx context.Context, req AssignSupplierRequest) (ProductSupplierResponse, error)
	UpdateLink(ctx context.Context, id string, req UpdateProductSupplierRequest) (ProductSupplierResponse, error)
	DeleteLink(ctx context.Context, id string) error
	GetLink(ctx context.Context, id string) (ProductSupplierResponse, error)
	ListProductsBySupplier(ctx context.Context, supplierID string) ([]ProductSupplierResponse, error)
	ListSuppliersByProduct(ctx context.Context, productID string) ([]ProductSupplierResponse, error)
}

type productSupplierService struct {
	linkRepo     repository.ProductSupplierRepository
	productRepo  repository.ProductRepository
	supplierRepo repository.SupplierRepository
	txManager    repository.TransactionManager
}

func NewProductSupplierService(
	linkRepo repository.ProductSupplierRepository,
	productRepo repository.ProductRepository,
	supplierRepo repository.SupplierRepository,
	txManager repository.TransactionManager,
) ProductSupplierService {
	return &productSupplierService{
		linkRepo:     linkRepo,
		productRepo:  productRepo,
		supplierRepo: supplierRepo,
		txManager:    txManager,
	}
}

func validateLinkTerms(price decimal.Decimal, leadTime, moq *int) error {
	if price.IsNegative() {
		return apperror.Validation("supplier price must not be negative")
	}
	if leadTime != nil && *leadTime < 0 {
		return apperror.Validation("lead time must not be negative")
	}
	if moq != nil && *moq < 1 {
		return apperror.Validation("minimum order quantity must be at least 1")
	}
	return nil
}

func (s *productSupplierService) AssignSupplier(ctx context.Context, req AssignSupplierRequest) (ProductSupplierResponse, error) {
	productID, err := parseID("product", req.ProductID)
	if err != nil {
		return ProductSupplierResponse{}, err
	}
	supplierID, err := parseID("supplier", req.SupplierID)
	if err != nil {
		return ProductSupplierResponse{}, err
	}
	if err := validateLinkTerms(req.SupplierPrice, req.LeadTimeDays, req.MinimumOrderQuantity); err != nil {
		return ProductSupplierResponse{}, err
	}
	if _, err := s.productRepo.FindByID(ctx, productID, repository.VisibleOnly); err != nil {
		return ProductSupplierResponse{}, lookupErr(err, "product", req.ProductID)
	}
	if _, err := s.supplierRepo.FindByID(ctx, supplierID, repository.VisibleOnly); err != nil {
		return ProductSupplierResponse{}, lookupErr(err, "supplier", req.SupplierID)
	}

	link := &model.ProductSupplier{
		ProductID:            productID,
		SupplierID:           supplierID,
		SupplierPrice:        req.SupplierPrice,
		SupplierSKU:          req.SupplierSKU,
		IsPreferred:          req.IsPreferred,
		LeadTimeDays:         req.LeadTimeDays,
		MinimumOrderQuantity: req.MinimumOrderQuantity,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.linkRepo.Exists(txCtx, productID, supplierID)
		if err != nil {
			return fmt.Errorf("check product supplier link: %w", err)
		}
		if exists {
			return apperror.Validation("supplier %s already supplies product %s", req.SupplierID, req.ProductID)
		}
		if err := s.linkRepo.Create(txCtx, link); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Validation("supplier %s already supplies product %s", req.SupplierID, req.ProductID)
			}
			return fmt.Errorf("failed to link supplier: %w", err)
		}
		if link.IsPreferred {
			return s.linkRepo.ClearPreferred(txCtx, productID, link.ID)
		}
		return nil
	})
	if err != nil {
		return ProductSupplierResponse{}, err
	}
	return s.GetLink(ctx, link.ID.String())
}

func (s *productSupplierService) find(ctx context.Context, id string) (*model.ProductSupplier, error) {
	lid, err := parseID("product supplier", id)
	if err != nil {
		return nil, err
	}
	link, err := s.linkRepo.FindByID(ctx, lid)
	if err != nil {
		return nil, lookupErr(err, "product supplier", id)
	}
	return link, nil
}

func (s *productSupplierService) UpdateLink(ctx context.Context, id string, req UpdateProductSupplierRequest) (ProductSupplierResponse, error) {
	link, err := s.find(ctx, id)
	if err != nil {
		return ProductSupplierResponse{}, err
	}
	if req.SupplierPrice != nil {
		link.SupplierPrice = *req.SupplierPrice
	}
	if req.SupplierSKU != nil {
		link.SupplierSKU = *req.SupplierSKU
	}
	if req.IsPreferred != nil {
		link.IsPreferred = *req.IsPreferred
	}
	if req.LeadTimeDays != nil {
		link.LeadTimeDays = req.LeadTimeDays
	}
	if req.MinimumOrderQuantity != nil {
		link.MinimumOrderQuantity = req.MinimumOrderQuantity
	}
	if err := validateLinkTerms(link.SupplierPrice, link.LeadTimeDays, link.MinimumOrderQuantity); err != nil {
		return ProductSupplierResponse{}, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.linkRepo.Update(txCtx, link); err != nil {
			return lookupErr(err, "product supplier", id)
		}
		if link.IsPreferred {
			return s.linkRepo.ClearPreferred(txCtx, link.ProductID, link.ID)
		}
		return nil
	})
	if err != nil {
		return ProductSupplierResponse{}, err
	}
	return s.GetLink(ctx, id)
}

func (s *productSupplierService) DeleteLink(ctx context.Context, id string) error {
	lid, err := parseID("product supplier", id)
	if err != nil {
		return err
	}
	if err := s.linkRepo.Delete(ctx, lid); err != nil {
		return lookupErr(err, "product supplier", id)
	}
	return nil
}

func (s *productSupplierService) GetLink(ctx context.Context, id string) (ProductSupplierResponse, error) {
	link, err := s.find(ctx, id)
	if err != nil {
		return ProductSupplierResponse{}, err
	}
	return toProductSupplierResponse(link), nil
}

func (s *productSupplierService) ListProductsBySupplier(ctx context.Context, supplierID string) ([]ProductSupplierResponse, error) {
	sid, err := parseID("supplier", supplierID)
	if err != nil {
		return nil, err
	}
	if _, err := s.supplierRepo.FindByID(ctx, sid, repository.IncludeDeleted); err != nil {
		return nil, lookupErr(err, "supplier", supplierID)
	}
	links, err := s.linkRepo.ListBySupplier(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch supplier products: %w", err)
	}
	return toProductSupplierResponses(links), nil
}

func (s *productSupplierService) ListSuppliersByProduct(ctx context.Context, productID string) ([]ProductSupplierResponse, error) {
	pid, err := parseID("product", productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.productRepo.FindByID(ctx, pid, repository.IncludeDeleted); err != nil {
		return nil, lookupErr(err, "product", productID)
	}
	links, err := s.linkRepo.ListByProduct(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product suppliers: %w", err)
	}
	return toProductSupplierResponses(links), nil
}

func toProductSupplierResponses(links []model.ProductSupplier) []ProductSupplierResponse {
	res := make([]ProductSupplierResponse, 0, len(links))
	for i := range links {
		res = append(res, toProductSupplierResponse(&links[i]))
	}
	return res
}

func toProductSupplierResponse(link *model.ProductSupplier) ProductSupplierResponse {
	res := ProductSupplierResponse{
		ID:                   link.ID.String(),
		ProductID:            link.ProductID.String(),
		SupplierID:           link.SupplierID.String(),
		SupplierPrice:        link.SupplierPrice,
		SupplierSKU:          link.SupplierSKU,
		IsPreferred:          link.IsPreferred,
		LeadTimeDays:         link.LeadTimeDays,
		MinimumOrderQuantity: link.MinimumOrderQuantity,
		CreatedAt:            link.CreatedAt,
		UpdatedAt:            link.UpdatedAt,
	}
	if link.Product != nil {
		res.ProductSKU = link.Product.SKU
		res.ProductName = link.Product.Name
	}
	if link.Supplier != nil {
		res.SupplierName = link.Supplier.Name
	}
	return res
}
