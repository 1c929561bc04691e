package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrderStatus string

const (
	POStatusDraft             PurchaseOrderStatus = "DRAFT"
	POStatusSent              PurchaseOrderStatus = "SENT"
	POStatusConfirmed         PurchaseOrderStatus = "CONFIRMED"
	POStatusPartiallyReceived PurchaseOrderStatus = "PARTIALLY_RECEIVED"
	POStatusReceived          PurchaseOrderStatus = "RECEIVED"
	POStatusCancelled         PurchaseOrderStatus = "CANCELLED"
)

type PurchaseOrderAction string

const (
	POActionEdit           PurchaseOrderAction = "edit"
	POActionDelete         PurchaseOrderAction = "delete"
	POActionSend           PurchaseOrderAction = "send"
	POActionConfirm        PurchaseOrderAction = "confirm"
	POActionReceivePartial PurchaseOrderAction = "receive_partial"
	POActionReceiveAll     PurchaseOrderAction = "receive_all"
	POActionCancel         PurchaseOrderAction = "cancel"
)

// purchaseOrderTransitions lists every allowed (status, action) pair. Anything
// missing is rejected. RECEIVED and CANCELLED have no outgoing edges.
var purchaseOrderTransitions = map[PurchaseOrderStatus]map[PurchaseOrderAction]PurchaseOrderStatus{
	POStatusDraft: {
		POActionEdit:   POStatusDraft,
		POActionDelete: POStatusDraft,
		POActionSend:   POStatusSent,
		POActionCancel: POStatusCancelled,
	},
	POStatusSent: {
		POActionConfirm: POStatusConfirmed,
		POActionCancel:  POStatusCancelled,
	},
	POStatusConfirmed: {
		POActionReceivePartial: POStatusPartiallyReceived,
		POActionReceiveAll:     POStatusReceived,
		POActionCancel:         POStatusCancelled,
	},
	POStatusPartiallyReceived: {
		POActionReceivePartial: POStatusPartiallyReceived,
		POActionReceiveAll:     POStatusReceived,
		POActionCancel:         POStatusCancelled,
	},
}

// NextPurchaseOrderStatus returns the status reached by applying action in
// status from, and false when the transition is not allowed.
func NextPurchaseOrderStatus(from PurchaseOrderStatus, action PurchaseOrderAction) (PurchaseOrderStatus, bool) {
	next, ok := purchaseOrderTransitions[from][action]
	return next, ok
}

func (s PurchaseOrderStatus) Terminal() bool {
	return s == POStatusReceived || s == POStatusCancelled
}

func (s PurchaseOrderStatus) Valid() bool {
	switch s {
	case POStatusDraft, POStatusSent, POStatusConfirmed, POStatusPartiallyReceived, POStatusReceived, POStatusCancelled:
		return true
	}
	return false
}

type PurchaseOrder struct {
	ID                   uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber          string              `gorm:"type:varchar(30);uniqueIndex;not null" json:"order_number"`
	SupplierID           uuid.UUID           `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier             *Supplier           `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Status               PurchaseOrderStatus `gorm:"type:varchar(30);not null;index" json:"status"`
	OrderDate            time.Time           `gorm:"not null" json:"order_date"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time          `json:"actual_delivery_date,omitempty"`
	Subtotal             decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	TaxAmount            decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	DiscountAmount       decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"discount_amount"`
	ShippingCost         decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"shipping_cost"`
	TotalAmount          decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	PaidAmount           decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"paid_amount"`
	PaymentTerms         string              `gorm:"type:varchar(100)" json:"payment_terms"`
	SupplierReference    string              `gorm:"type:varchar(100)" json:"supplier_reference"`
	Notes                string              `gorm:"type:text" json:"notes"`
	Items                []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID" json:"items"`
	Version              int64               `gorm:"not null;default:1" json:"version"`
	IsDeleted            bool                `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt            *time.Time          `json:"deleted_at,omitempty"`
	CreatedBy            *uuid.UUID          `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func (po *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	if po.Version == 0 {
		po.Version = 1
	}
	return nil
}

// FullyReceived reports whether every line has been received in full.
func (po *PurchaseOrder) FullyReceived() bool {
	if len(po.Items) == 0 {
		return false
	}
	for _, item := range po.Items {
		if item.QuantityReceived < item.QuantityOrdered {
			return false
		}
	}
	return true
}

func (po *PurchaseOrder) HasReceipts() bool {
	for _, item := range po.Items {
		if item.QuantityReceived > 0 {
			return true
		}
	}
	return false
}

// IsOverdue reports whether the expected delivery date has passed before the
// order was fully received or cancelled.
func (po *PurchaseOrder) IsOverdue(now time.Time) bool {
	return po.ExpectedDeliveryDate != nil && po.ExpectedDeliveryDate.Before(now) && !po.Status.Terminal()
}

// Balance is what is still owed to the supplier.
func (po *PurchaseOrder) Balance() decimal.Decimal {
	b := po.TotalAmount.Sub(po.PaidAmount)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// AppendNote adds a line to Notes without discarding what is already there.
func (po *PurchaseOrder) AppendNote(note string) {
	if note == "" {
		return
	}
	if po.Notes == "" {
		po.Notes = note
		return
	}
	po.Notes += "\n" + note
}

type PurchaseOrderItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product          *Product        `gorm:"foreignKey:ProductID" json:"-"`
	Description      string          `gorm:"type:varchar(255)" json:"description"`
	SupplierSKU      string          `gorm:"type:varchar(100)" json:"supplier_sku"`
	QuantityOrdered  int             `gorm:"type:int;not null" json:"quantity_ordered"`
	QuantityReceived int             `gorm:"type:int;not null;default:0" json:"quantity_received"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_cost"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"discount_amount"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	TaxAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	Total            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
	SortOrder        int             `gorm:"type:int;not null;default:0" json:"sort_order"`
}

func (i *PurchaseOrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *PurchaseOrderItem) Remaining() int {
	return i.QuantityOrdered - i.QuantityReceived
}
