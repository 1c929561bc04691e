package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is the buyer side of orders and invoices.
type Customer struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Email     string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone     string     `gorm:"type:varchar(30)" json:"phone"`
	Address   string     `gorm:"type:text" json:"address"`
	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Supplier is the vendor side of purchase orders.
type Supplier struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	ContactName string     `gorm:"type:varchar(255)" json:"contact_name"`
	Email       string     `gorm:"type:varchar(255);index" json:"email"`
	Phone       string     `gorm:"type:varchar(30)" json:"phone"`
	Address     string     `gorm:"type:text" json:"address"`
	City        string     `gorm:"type:varchar(100)" json:"city"`
	Country     string     `gorm:"type:varchar(100)" json:"country"`
	TaxID       string     `gorm:"type:varchar(50)" json:"tax_id"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	Notes       string     `gorm:"type:text" json:"notes"`
	IsDeleted   bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *Supplier) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ProductSupplier is one supplier's offer for a product. At most one offer per
// product is preferred; reorder suggestions are priced from it.
type ProductSupplier struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_supplier" json:"product_id"`
	Product              *Product        `gorm:"foreignKey:ProductID" json:"-"`
	SupplierID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_supplier;index" json:"supplier_id"`
	Supplier             *Supplier       `gorm:"foreignKey:SupplierID" json:"-"`
	SupplierPrice        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"supplier_price"`
	SupplierSKU          string          `gorm:"type:varchar(100)" json:"supplier_sku"`
	IsPreferred          bool            `gorm:"not null;default:false" json:"is_preferred"`
	LeadTimeDays         *int            `json:"lead_time_days,omitempty"`
	MinimumOrderQuantity *int            `json:"minimum_order_quantity,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (ps *ProductSupplier) BeforeCreate(tx *gorm.DB) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	return nil
}
