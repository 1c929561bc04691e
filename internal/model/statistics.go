package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardSummary aggregates the headline numbers shown on the dashboard
type DashboardSummary struct {
	ProductCount       int64            `json:"product_count"`
	CustomerCount      int64            `json:"customer_count"`
	OrderCount         int64            `json:"order_count"`
	Revenue            decimal.Decimal  `json:"revenue"`
	LowStockCount      int64            `json:"low_stock_count"`
	OutstandingBalance decimal.Decimal  `json:"outstanding_balance"`
	OpenPurchaseOrders int64            `json:"open_purchase_orders"`
	TopProducts        []ProductRanking `json:"top_products"`
	TimeRangeStartDate time.Time        `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time        `json:"time_range_end_date"`
}

// ProductRanking represents a ranked product based on accumulated quantities
type ProductRanking struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	ProductSKU    string          `json:"product_sku"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}
