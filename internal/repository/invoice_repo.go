package repository

import (
	"context"
	"time"

	"erp/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceFilter struct {
	Status     model.InvoiceStatus
	CustomerID *uuid.UUID
	Search     string
	Page       int
	Limit      int
}

// StatusTotal is one row of a per-status rollup of document amounts.
type StatusTotal struct {
	Status string
	Count  int64
	Total  decimal.Decimal
	Paid   decimal.Decimal
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	// Update writes the header when invoice.Version still matches, then bumps it.
	Update(ctx context.Context, invoice *model.Invoice) error
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceItem) error
	SoftDelete(ctx context.Context, id uuid.UUID, version int64) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
	SumOutstanding(ctx context.Context) (decimal.Decimal, error)
	// ListOverdue returns open invoices whose due date is before now, oldest first.
	ListOverdue(ctx context.Context, now time.Time) ([]model.Invoice, error)
	TotalsByStatus(ctx context.Context) ([]StatusTotal, error)

	CreatePayment(ctx context.Context, payment *model.InvoicePayment) error
	DeletePayment(ctx context.Context, paymentID uuid.UUID) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoicePayment, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Omit("Customer", "Payments").Create(invoice).Error
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	now := time.Now()
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND version = ? AND is_deleted = ?", invoice.ID, invoice.Version, false).
		Updates(map[string]interface{}{
			"status":          invoice.Status,
			"issue_date":      invoice.IssueDate,
			"due_date":        invoice.DueDate,
			"subtotal":        invoice.Subtotal,
			"tax_amount":      invoice.TaxAmount,
			"discount_amount": invoice.DiscountAmount,
			"total_amount":    invoice.TotalAmount,
			"paid_amount":     invoice.PaidAmount,
			"payment_terms":   invoice.PaymentTerms,
			"notes":           invoice.Notes,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		})
	if err := casResult(res, "invoice", invoice.ID); err != nil {
		return err
	}
	invoice.Version++
	invoice.UpdatedAt = now
	return nil
}

func (r *invoiceRepository) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
	}
	return db.Create(&items).Error
}

func (r *invoiceRepository) SoftDelete(ctx context.Context, id uuid.UUID, version int64) error {
	now := time.Now()
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, version, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	return casResult(res, "invoice", id)
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Scopes(visible(VisibleOnly)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date asc") }).
		Preload("Customer").
		First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Scopes(visible(VisibleOnly)).
		First(&invoice, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Invoice{}).Scopes(visible(VisibleOnly))
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Search != "" {
		db = db.Where("LOWER(invoice_number) LIKE ?", likePattern(filter.Search))
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Preload("Customer").Order("created_at desc").
		Scopes(paginate(filter.Page, filter.Limit)).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *invoiceRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("invoice_number LIKE ?", prefix+"%").Count(&count).Error
	return count, err
}

// SumOutstanding totals the open balance of sent invoices.
func (r *invoiceRepository) SumOutstanding(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).Scopes(visible(VisibleOnly)).
		Where("status = ?", model.InvoiceStatusSent).
		Select("COALESCE(SUM(total_amount - paid_amount), 0)").Row().Scan(&total)
	return total, err
}

func (r *invoiceRepository) ListOverdue(ctx context.Context, now time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := GetDB(ctx, r.db).Scopes(visible(VisibleOnly)).
		Where("due_date < ? AND status IN ?", now, model.OpenInvoiceStatuses).
		Preload("Customer").
		Order("due_date asc").
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) TotalsByStatus(ctx context.Context) ([]StatusTotal, error) {
	var rows []StatusTotal
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).Scopes(visible(VisibleOnly)).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total, COALESCE(SUM(paid_amount), 0) AS paid").
		Group("status").
		Scan(&rows).Error
	return rows, err
}

func (r *invoiceRepository) CreatePayment(ctx context.Context, payment *model.InvoicePayment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *invoiceRepository) DeletePayment(ctx context.Context, paymentID uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", paymentID).Delete(&model.InvoicePayment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *invoiceRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoicePayment, error) {
	var payments []model.InvoicePayment
	err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("payment_date asc").Find(&payments).Error
	return payments, err
}
