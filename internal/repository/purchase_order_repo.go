package repository

import (
	"context"
	"fmt"
	"time"

	"erp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PurchaseOrderFilter struct {
	Status     model.PurchaseOrderStatus
	SupplierID *uuid.UUID
	Search     string
	Page       int
	Limit      int
}

type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *model.PurchaseOrder) error
	// Update writes the header when po.Version still matches, then bumps it.
	Update(ctx context.Context, po *model.PurchaseOrder) error
	ReplaceItems(ctx context.Context, poID uuid.UUID, items []model.PurchaseOrderItem) error
	UpdateItemReceived(ctx context.Context, itemID uuid.UUID, received int) error
	SoftDelete(ctx context.Context, id uuid.UUID, version int64) error
	FindByID(ctx context.Context, id uuid.UUID, vis Visibility) (*model.PurchaseOrder, error)
	List(ctx context.Context, filter PurchaseOrderFilter) ([]model.PurchaseOrder, int64, error)
	NextOrderNumber(ctx context.Context, year int) (string, error)
	HasOpenOrdersForProduct(ctx context.Context, productID uuid.UUID) (bool, error)
	CountOpen(ctx context.Context) (int64, error)
	// ListOverdue returns open orders whose expected delivery is before now.
	ListOverdue(ctx context.Context, now time.Time) ([]model.PurchaseOrder, error)
	TotalsByStatus(ctx context.Context) ([]StatusTotal, error)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

var openPurchaseOrderStatuses = []model.PurchaseOrderStatus{
	model.POStatusDraft, model.POStatusSent, model.POStatusConfirmed, model.POStatusPartiallyReceived,
}

func (r *purchaseOrderRepository) Create(ctx context.Context, po *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Omit("Supplier").Create(po).Error
}

func (r *purchaseOrderRepository) Update(ctx context.Context, po *model.PurchaseOrder) error {
	now := time.Now()
	res := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).
		Where("id = ? AND version = ? AND is_deleted = ?", po.ID, po.Version, false).
		Updates(map[string]interface{}{
			"supplier_id":            po.SupplierID,
			"status":                 po.Status,
			"order_date":             po.OrderDate,
			"expected_delivery_date": po.ExpectedDeliveryDate,
			"actual_delivery_date":   po.ActualDeliveryDate,
			"subtotal":               po.Subtotal,
			"tax_amount":             po.TaxAmount,
			"discount_amount":        po.DiscountAmount,
			"shipping_cost":          po.ShippingCost,
			"total_amount":           po.TotalAmount,
			"paid_amount":            po.PaidAmount,
			"payment_terms":          po.PaymentTerms,
			"supplier_reference":     po.SupplierReference,
			"notes":                  po.Notes,
			"version":                gorm.Expr("version + 1"),
			"updated_at":             now,
		})
	if err := casResult(res, "purchase order", po.ID); err != nil {
		return err
	}
	po.Version++
	po.UpdatedAt = now
	return nil
}

func (r *purchaseOrderRepository) ReplaceItems(ctx context.Context, poID uuid.UUID, items []model.PurchaseOrderItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("purchase_order_id = ?", poID).Delete(&model.PurchaseOrderItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].PurchaseOrderID = poID
	}
	return db.Omit("Product").Create(&items).Error
}

func (r *purchaseOrderRepository) UpdateItemReceived(ctx context.Context, itemID uuid.UUID, received int) error {
	res := GetDB(ctx, r.db).Model(&model.PurchaseOrderItem{}).
		Where("id = ?", itemID).Update("quantity_received", received)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *purchaseOrderRepository) SoftDelete(ctx context.Context, id uuid.UUID, version int64) error {
	now := time.Now()
	res := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, version, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	return casResult(res, "purchase order", id)
}

func (r *purchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID, vis Visibility) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := GetDB(ctx, r.db).Scopes(visible(vis)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		Preload("Items.Product").
		Preload("Supplier").
		First(&po, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) List(ctx context.Context, filter PurchaseOrderFilter) ([]model.PurchaseOrder, int64, error) {
	var orders []model.PurchaseOrder
	var total int64

	db := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).Scopes(visible(VisibleOnly))
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.SupplierID != nil {
		db = db.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.Search != "" {
		db = db.Where("LOWER(order_number) LIKE ?", likePattern(filter.Search))
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Preload("Supplier").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		Order("created_at desc").
		Scopes(paginate(filter.Page, filter.Limit)).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// NextOrderNumber returns PO-{year}-{NNNN}. Deleted orders keep their numbers,
// so they are counted too.
func (r *purchaseOrderRepository) NextOrderNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("PO-%d-", year)
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).
		Where("order_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (r *purchaseOrderRepository) HasOpenOrdersForProduct(ctx context.Context, productID uuid.UUID) (bool, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.PurchaseOrderItem{}).
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_items.purchase_order_id").
		Where("purchase_order_items.product_id = ?", productID).
		Where("purchase_orders.is_deleted = ? AND purchase_orders.status IN ?", false, openPurchaseOrderStatuses).
		Count(&n).Error
	return n > 0, err
}

func (r *purchaseOrderRepository) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).Scopes(visible(VisibleOnly)).
		Where("status IN ?", openPurchaseOrderStatuses).Count(&n).Error
	return n, err
}

func (r *purchaseOrderRepository) ListOverdue(ctx context.Context, now time.Time) ([]model.PurchaseOrder, error) {
	var orders []model.PurchaseOrder
	err := GetDB(ctx, r.db).Scopes(visible(VisibleOnly)).
		Where("expected_delivery_date < ? AND status IN ?", now, openPurchaseOrderStatuses).
		Preload("Supplier").
		Order("expected_delivery_date asc").
		Find(&orders).Error
	return orders, err
}

func (r *purchaseOrderRepository) TotalsByStatus(ctx context.Context) ([]StatusTotal, error) {
	var rows []StatusTotal
	err := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).Scopes(visible(VisibleOnly)).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total, COALESCE(SUM(paid_amount), 0) AS paid").
		Group("status").
		Scan(&rows).Error
	return rows, err
}
