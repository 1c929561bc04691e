package repository

import (
	"context"

	"erp/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRepository interface {
	// Create inserts the order together with its items.
	Create(ctx context.Context, order *model.Order) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context, customerID *uuid.UUID, page, limit int) ([]model.Order, int64, error)
	Count(ctx context.Context) (int64, error)
	SumTotal(ctx context.Context) (decimal.Decimal, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return GetDB(ctx, r.db).Omit("Customer").Create(order).Error
}

func (r *orderRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items.Product").
		Preload("Customer").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, customerID *uuid.UUID, page, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Order{})
	if customerID != nil {
		db = db.Where("customer_id = ?", *customerID)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.
		Preload("Items.Product").
		Preload("Customer").
		Order("created_at DESC").
		Scopes(paginate(page, limit)).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Order{}).Count(&n).Error
	return n, err
}

func (r *orderRepository) SumTotal(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := GetDB(ctx, r.db).Model(&model.Order{}).Select("COALESCE(SUM(total), 0)").Row().Scan(&total)
	return total, err
}
