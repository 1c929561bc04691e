package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is a sales order. It is immutable once created: prices and line
// totals are snapshots taken when stock was reserved.
type Order struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer   *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Items      []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	Tax        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"tax"`
	Total      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
	Notes      string          `gorm:"type:text" json:"notes"`
	Version    int64           `gorm:"not null;default:1" json:"version"`
	CreatedBy  *uuid.UUID      `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// OrderItem represents a line item within an Order
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"-"`
	Quantity  int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"line_total"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
