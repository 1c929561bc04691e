package repository

import (
	"context"
	"time"

	"erp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductFilter struct {
	Search     string
	LowStock   bool
	Visibility Visibility
	Page       int
	Limit      int
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	// Update writes the editable fields when product.Version still matches the
	// stored row, then bumps product.Version.
	Update(ctx context.Context, product *model.Product) error
	SoftDelete(ctx context.Context, id uuid.UUID, version int64) error
	Restore(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID, vis Visibility) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID, vis Visibility) ([]model.Product, error)
	FindBySKU(ctx context.Context, sku string, vis Visibility) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	// AdjustStock applies delta with a compare-and-swap on version. A decrease
	// also requires stock >= -delta. No row matched means another writer got
	// there first.
	AdjustStock(ctx context.Context, id uuid.UUID, version int64, delta int) error
	CountLowStock(ctx context.Context) (int64, error)
	// ListReorderCandidates returns products with stock below the given level,
	// or at or below their own threshold when below is zero. Lowest stock first.
	ListReorderCandidates(ctx context.Context, below int) ([]model.Product, error)
	Count(ctx context.Context) (int64, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	now := time.Now()
	res := GetDB(ctx, r.db).Model(&model.Product{}).
		Where("id = ? AND version = ? AND is_deleted = ?", product.ID, product.Version, false).
		Updates(map[string]interface{}{
			"sku":                 product.SKU,
			"name":                product.Name,
			"description":         product.Description,
			"price":               product.Price,
			"low_stock_threshold": product.LowStockThreshold,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          now,
		})
	if err := casResult(res, "product", product.ID); err != nil {
		return err
	}
	product.Version++
	product.UpdatedAt = now
	return nil
}

func (r *productRepository) SoftDelete(ctx context.Context, id uuid.UUID, version int64) error {
	now := time.Now()
	res := GetDB(ctx, r.db).Model(&model.Product{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, version, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	return casResult(res, "product", id)
}

func (r *productRepository) Restore(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Model(&model.Product{}).
		Where("id = ? AND is_deleted = ?", id, true).
		Updates(map[string]interface{}{
			"is_deleted": false,
			"deleted_at": nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID, vis Visibility) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).Scopes(visible(vis)).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID, vis Visibility) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := GetDB(ctx, r.db).Scopes(visible(vis)).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindBySKU(ctx context.Context, sku string, vis Visibility) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).Scopes(visible(vis)).Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Product{}).Scopes(visible(filter.Visibility))
	if filter.Search != "" {
		p := likePattern(filter.Search)
		db = db.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", p, p)
	}
	if filter.LowStock {
		db = db.Where("stock <= low_stock_threshold")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at desc"
	if filter.LowStock {
		order = "stock asc"
	}
	if err := db.Order(order).Scopes(paginate(filter.Page, filter.Limit)).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id uuid.UUID, version int64, delta int) error {
	db := GetDB(ctx, r.db).Model(&model.Product{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, version, false)
	if delta < 0 {
		db = db.Where("stock >= ?", -delta)
	}
	res := db.Updates(map[string]interface{}{
		"stock":      gorm.Expr("stock + ?", delta),
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	})
	return casResult(res, "product", id)
}

func (r *productRepository) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Product{}).Scopes(visible(VisibleOnly)).
		Where("stock <= low_stock_threshold").Count(&n).Error
	return n, err
}

func (r *productRepository) ListReorderCandidates(ctx context.Context, below int) ([]model.Product, error) {
	var products []model.Product
	db := GetDB(ctx, r.db).Scopes(visible(VisibleOnly))
	if below > 0 {
		db = db.Where("stock < ?", below)
	} else {
		db = db.Where("stock <= low_stock_threshold")
	}
	err := db.Order("stock asc").Order("sku asc").Find(&products).Error
	return products, err
}

func (r *productRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Product{}).Scopes(visible(VisibleOnly)).Count(&n).Error
	return n, err
}
