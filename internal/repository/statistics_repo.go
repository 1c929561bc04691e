package repository

import (
	"context"
	"fmt"
	"time"

	"erp/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository interface {
	GetTopProducts(ctx context.Context, start, end time.Time, limit int) ([]model.ProductRanking, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) GetTopProducts(ctx context.Context, start, end time.Time, limit int) ([]model.ProductRanking, error) {
	var rankings []model.ProductRanking
	if err := GetDB(ctx, r.db).Table("order_items").
		Select("products.id as product_id, products.name as product_name, products.sku as product_sku, SUM(order_items.quantity) as total_quantity, SUM(order_items.line_total) as total_value").
		Joins("JOIN products ON products.id = order_items.product_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.created_at >= ? AND orders.created_at <= ?", start, end).
		Group("products.id, products.name, products.sku").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	return rankings, nil
}
