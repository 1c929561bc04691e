package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultLowStockThreshold is used when a product is created without one.
const DefaultLowStockThreshold = 10

// Product is a stock-keeping unit. Stock is only ever changed through a
// version-checked update that also appends an InventoryMovement.
type Product struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SKU               string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Description       string          `gorm:"type:text" json:"description"`
	Price             decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Stock             int             `gorm:"type:int;default:0;not null" json:"stock"`
	LowStockThreshold int             `gorm:"type:int;not null" json:"low_stock_threshold"`
	Version           int64           `gorm:"not null;default:1" json:"version"`
	IsDeleted         bool            `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt         *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}

// IsLowStock reports whether stock has fallen to or below the product's threshold.
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.LowStockThreshold
}

// MovementDirection Enum Simulation
type MovementDirection string

const (
	MovementIncrease MovementDirection = "INCREASE"
	MovementDecrease MovementDirection = "DECREASE"
)

func (d MovementDirection) Valid() bool {
	return d == MovementIncrease || d == MovementDecrease
}

// InventoryMovement is the append-only stock ledger. Quantity is always a
// positive magnitude; Direction gives the sign.
type InventoryMovement struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"product_id"`
	Product         *Product          `gorm:"foreignKey:ProductID" json:"-"`
	Direction       MovementDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Quantity        int               `gorm:"type:int;not null" json:"quantity"`
	StockAfter      int               `gorm:"type:int;not null" json:"stock_after"`
	Reason          string            `gorm:"type:varchar(255);not null" json:"reason"`
	OrderID         *uuid.UUID        `gorm:"type:uuid;index" json:"order_id,omitempty"`
	PurchaseOrderID *uuid.UUID        `gorm:"type:uuid;index" json:"purchase_order_id,omitempty"`
	CreatedBy       *uuid.UUID        `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
}

func (m *InventoryMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Signed returns the quantity with the direction applied.
func (m *InventoryMovement) Signed() int {
	if m.Direction == MovementDecrease {
		return -m.Quantity
	}
	return m.Quantity
}
