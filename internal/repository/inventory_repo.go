package repository

import (
	"context"
	"time"

	"erp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MovementFilter struct {
	ProductID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// MovementRepository is append-only: movements are never updated or removed.
type MovementRepository interface {
	Append(ctx context.Context, movements ...*model.InventoryMovement) error
	List(ctx context.Context, filter MovementFilter) ([]model.InventoryMovement, int64, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.InventoryMovement, error)
}

type movementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) MovementRepository {
	return &movementRepository{db: db}
}

func (r *movementRepository) Append(ctx context.Context, movements ...*model.InventoryMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit("Product").Create(movements).Error
}

func (r *movementRepository) List(ctx context.Context, filter MovementFilter) ([]model.InventoryMovement, int64, error) {
	var movements []model.InventoryMovement
	var total int64

	db := GetDB(ctx, r.db).Model(&model.InventoryMovement{})
	if filter.ProductID != nil {
		db = db.Where("product_id = ?", *filter.ProductID)
	}
	if filter.From != nil {
		db = db.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("created_at <= ?", *filter.To)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Preload("Product").Order("created_at desc").
		Scopes(paginate(filter.Page, filter.Limit)).Find(&movements).Error; err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *movementRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.InventoryMovement, error) {
	var movements []model.InventoryMovement
	err := GetDB(ctx, r.db).Where("product_id = ?", productID).Order("created_at asc").Find(&movements).Error
	return movements, err
}
