package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// OpenInvoiceStatuses are the statuses an invoice can be overdue in.
var OpenInvoiceStatuses = []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCheck        PaymentMethod = "CHECK"
	PaymentOther        PaymentMethod = "OTHER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCreditCard, PaymentBankTransfer, PaymentCheck, PaymentOther:
		return true
	}
	return false
}

// Invoice bills a customer, optionally for a single order. Balance is always
// TotalAmount - PaidAmount and never negative.
type Invoice struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber  string           `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_number"`
	CustomerID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer       *Customer        `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	OrderID        *uuid.UUID       `gorm:"type:uuid;index" json:"order_id,omitempty"`
	IssueDate      time.Time        `gorm:"not null" json:"issue_date"`
	DueDate        time.Time        `gorm:"not null" json:"due_date"`
	Status         InvoiceStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal       decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	TaxAmount      decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	DiscountAmount decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"discount_amount"`
	TotalAmount    decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	PaidAmount     decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"paid_amount"`
	PaymentTerms   string           `gorm:"type:varchar(100)" json:"payment_terms"`
	Notes          string           `gorm:"type:text" json:"notes"`
	Items          []InvoiceItem    `gorm:"foreignKey:InvoiceID" json:"items"`
	Payments       []InvoicePayment `gorm:"foreignKey:InvoiceID" json:"payments"`
	Version        int64            `gorm:"not null;default:1" json:"version"`
	IsDeleted      bool             `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt      *time.Time       `json:"deleted_at,omitempty"`
	CreatedBy      *uuid.UUID       `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (inv *Invoice) BeforeCreate(tx *gorm.DB) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.Version == 0 {
		inv.Version = 1
	}
	return nil
}

func (inv *Invoice) Balance() decimal.Decimal {
	b := inv.TotalAmount.Sub(inv.PaidAmount)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// IsOverdue reports whether the due date has passed while the invoice is
// neither paid nor cancelled.
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.DueDate.Before(now) && inv.Status != InvoiceStatusPaid && inv.Status != InvoiceStatusCancelled
}

// RefreshPaymentStatus derives the status from the paid amount. Draft and
// cancelled invoices are left alone.
func (inv *Invoice) RefreshPaymentStatus() {
	if inv.Status == InvoiceStatusDraft || inv.Status == InvoiceStatusCancelled {
		return
	}
	if inv.PaidAmount.GreaterThanOrEqual(inv.TotalAmount) {
		inv.Status = InvoiceStatusPaid
	} else {
		inv.Status = InvoiceStatusSent
	}
}

type InvoiceItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid;index" json:"product_id,omitempty"`
	Description string          `gorm:"type:varchar(255);not null" json:"description"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"line_total"`
	SortOrder   int             `gorm:"type:int;not null;default:0" json:"sort_order"`
}

func (i *InvoiceItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type InvoicePayment struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	Method      PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Reference   string          `gorm:"type:varchar(100)" json:"reference"`
	Notes       string          `gorm:"type:text" json:"notes"`
	CreatedBy   *uuid.UUID      `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (p *InvoicePayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
