package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateProduct  = "CREATE_PRODUCT"
	ActionUpdateProduct  = "UPDATE_PRODUCT"
	ActionDeleteProduct  = "DELETE_PRODUCT"
	ActionRestoreProduct = "RESTORE_PRODUCT"
	ActionAdjustStock    = "ADJUST_STOCK"

	ActionCreateOrder = "CREATE_ORDER"

	ActionCreatePurchaseOrder  = "CREATE_PURCHASE_ORDER"
	ActionUpdatePurchaseOrder  = "UPDATE_PURCHASE_ORDER"
	ActionDeletePurchaseOrder  = "DELETE_PURCHASE_ORDER"
	ActionSendPurchaseOrder    = "SEND_PURCHASE_ORDER"
	ActionConfirmPurchaseOrder = "CONFIRM_PURCHASE_ORDER"
	ActionReceivePurchaseOrder = "RECEIVE_PURCHASE_ORDER"
	ActionCancelPurchaseOrder  = "CANCEL_PURCHASE_ORDER"

	ActionCreateInvoice = "CREATE_INVOICE"
	ActionUpdateInvoice = "UPDATE_INVOICE"
	ActionSendInvoice   = "SEND_INVOICE"
	ActionCancelInvoice = "CANCEL_INVOICE"
	ActionDeleteInvoice = "DELETE_INVOICE"
	ActionAddPayment    = "ADD_INVOICE_PAYMENT"
	ActionDeletePayment = "DELETE_INVOICE_PAYMENT"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:text" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
