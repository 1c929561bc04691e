package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"erp/internal/apperror"
	"erp/internal/config"
	"erp/internal/model"
	"erp/internal/repository"
	"erp/internal/tax"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type InvoiceItemRequest struct {
	ProductID   string           `json:"product_id"`
	Description string           `json:"description"`
	Quantity    int              `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

type CreateInvoiceRequest struct {
	CustomerID     string               `json:"customer_id" binding:"required"`
	IssueDate      *time.Time           `json:"issue_date"`
	PaymentDays    int                  `json:"payment_days"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	PaymentTerms   string               `json:"payment_terms"`
	Notes          string               `json:"notes"`
	Items          []InvoiceItemRequest `json:"items"`
}

type CreateInvoiceFromOrderRequest struct {
	OrderID        string          `json:"order_id" binding:"required"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentTerms   string          `json:"payment_terms"`
	PaymentDays    int             `json:"payment_days"`
	Notes          string          `json:"notes"`
}

// UpdateInvoiceRequest edits a DRAFT invoice. Nil fields are left as they are;
// a non-empty Items replaces every line.
type UpdateInvoiceRequest struct {
	DueDate        *time.Time           `json:"due_date"`
	DiscountAmount *decimal.Decimal     `json:"discount_amount"`
	PaymentTerms   *string              `json:"payment_terms"`
	Notes          *string              `json:"notes"`
	Items          []InvoiceItemRequest `json:"items"`
}

type AddPaymentRequest struct {
	Amount      decimal.Decimal     `json:"amount"`
	Method      model.PaymentMethod `json:"method" binding:"required"`
	Reference   string              `json:"reference"`
	Notes       string              `json:"notes"`
	PaymentDate *time.Time          `json:"payment_date"`
}

type InvoiceFilter struct {
	Status     string
	CustomerID string
	Search     string
	Page       int
	Limit      int
}

type InvoiceItemResponse struct {
	ID          string  `json:"id"`
	ProductID   *string `json:"product_id"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	TaxAmount   string  `json:"tax_amount"`
	LineTotal   string  `json:"line_total"`
}

type PaymentResponse struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	PaymentDate string `json:"payment_date"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
	Notes       string `json:"notes"`
}

type InvoiceResponse struct {
	ID             string                `json:"id"`
	InvoiceNumber  string                `json:"invoice_number"`
	CustomerID     string                `json:"customer_id"`
	CustomerName   string                `json:"customer_name"`
	OrderID        *string               `json:"order_id"`
	Status         string                `json:"status"`
	IssueDate      string                `json:"issue_date"`
	DueDate        string                `json:"due_date"`
	Subtotal       string                `json:"subtotal"`
	TaxAmount      string                `json:"tax_amount"`
	DiscountAmount string                `json:"discount_amount"`
	TotalAmount    string                `json:"total_amount"`
	PaidAmount     string                `json:"paid_amount"`
	Balance        string                `json:"balance"`
	PaymentTerms   string                `json:"payment_terms"`
	Notes          string                `json:"notes"`
	Version        int64                 `json:"version"`
	Items          []InvoiceItemResponse `json:"items"`
	Payments       []PaymentResponse     `json:"payments"`
	CreatedAt      string                `json:"created_at"`
}

type OverdueInvoiceResponse struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	CustomerName  string `json:"customer_name"`
	Status        string `json:"status"`
	IssueDate     string `json:"issue_date"`
	DueDate       string `json:"due_date"`
	DaysOverdue   int    `json:"days_overdue"`
	TotalAmount   string `json:"total_amount"`
	Balance       string `json:"balance"`
}

// InvoiceSummaryResponse rolls up every visible invoice. Amounts leave out
// cancelled invoices.
type InvoiceSummaryResponse struct {
	TotalInvoices     int64  `json:"total_invoices"`
	DraftInvoices     int64  `json:"draft_invoices"`
	SentInvoices      int64  `json:"sent_invoices"`
	PaidInvoices      int64  `json:"paid_invoices"`
	CancelledInvoices int64  `json:"cancelled_invoices"`
	OverdueInvoices   int64  `json:"overdue_invoices"`
	TotalAmount       string `json:"total_amount"`
	TotalPaid         string `json:"total_paid"`
	TotalOutstanding  string `json:"total_outstanding"`
	OverdueAmount     string `json:"overdue_amount"`
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, userID string, req CreateInvoiceRequest) (InvoiceResponse, error)
	// CreateInvoiceFromOrder bills an order. An order can be invoiced once.
	CreateInvoiceFromOrder(ctx context.Context, userID string, req CreateInvoiceFromOrderRequest) (InvoiceResponse, error)
	UpdateInvoice(ctx context.Context, userID, id string, req UpdateInvoiceRequest) (InvoiceResponse, error)
	SendInvoice(ctx context.Context, userID, id string) (InvoiceResponse, error)
	CancelInvoice(ctx context.Context, userID, id string) (InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, userID, id string) error
	GetInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	ListOverdueInvoices(ctx context.Context) ([]OverdueInvoiceResponse, error)
	GetSummary(ctx context.Context) (InvoiceSummaryResponse, error)

	AddPayment(ctx context.Context, userID, invoiceID string, req AddPaymentRequest) (InvoiceResponse, error)
	DeletePayment(ctx context.Context, userID, invoiceID, paymentID string) (InvoiceResponse, error)
	ListPayments(ctx context.Context, invoiceID string) ([]PaymentResponse, error)
}

type invoiceService struct {
	invoiceRepo  repository.InvoiceRepository
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	calc         *tax.Calculator
	cfg          config.InvoiceConfig
	logger       *zap.Logger
	now          func() time.Time
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	calc *tax.Calculator,
	cfg config.InvoiceConfig,
	logger *zap.Logger,
) InvoiceService {
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		productRepo:  productRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		calc:         calc,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// --- Implementation ---

func (s *invoiceService) dueDate(issue time.Time, days int) time.Time {
	if days <= 0 {
		days = s.cfg.DefaultPaymentDays
	}
	return issue.AddDate(0, 0, days)
}

func (s *invoiceService) buildItems(ctx context.Context, reqs []InvoiceItemRequest) ([]model.InvoiceItem, error) {
	if len(reqs) == 0 {
		return nil, apperror.Validation("invoice must contain at least one item")
	}
	items := make([]model.InvoiceItem, 0, len(reqs))
	for i, r := range reqs {
		if r.Quantity < 1 {
			return nil, apperror.Validation("quantity on line %d must be positive", i+1)
		}
		item := model.InvoiceItem{Description: r.Description, Quantity: r.Quantity, SortOrder: i}

		if r.ProductID != "" {
			pid, err := parseID("product", r.ProductID)
			if err != nil {
				return nil, err
			}
			p, err := s.productRepo.FindByID(ctx, pid, repository.VisibleOnly)
			if err != nil {
				return nil, lookupErr(err, "product", r.ProductID)
			}
			item.ProductID = &p.ID
			if item.Description == "" {
				item.Description = p.Name
			}
			item.UnitPrice = p.Price
		}
		if r.UnitPrice != nil {
			item.UnitPrice = *r.UnitPrice
		} else if item.ProductID == nil {
			return nil, apperror.Validation("line %d needs a product or a unit price", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return nil, apperror.Validation("unit price on line %d cannot be negative", i+1)
		}
		if item.Description == "" {
			return nil, apperror.Validation("description on line %d is required", i+1)
		}

		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		item.TaxAmount = s.calc.Tax(item.LineTotal)
		items = append(items, item)
	}
	return items, nil
}

// allocate splits amount across lines in proportion to weights, rounding each
// share to cents. The last line takes the remainder so the shares always sum
// to amount.
func allocate(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	if len(weights) == 0 {
		return shares
	}
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	given := decimal.Zero
	for i := 0; i < len(weights)-1; i++ {
		if sum.IsZero() {
			shares[i] = decimal.Zero
			continue
		}
		shares[i] = amount.Mul(weights[i]).Div(sum).Round(2)
		given = given.Add(shares[i])
	}
	shares[len(weights)-1] = amount.Sub(given)
	return shares
}

// applyInvoiceTotals derives header amounts from the lines:
// total = subtotal + tax - discount.
func applyInvoiceTotals(inv *model.Invoice) error {
	subtotal, taxAmount := decimal.Zero, decimal.Zero
	for _, item := range inv.Items {
		subtotal = subtotal.Add(item.LineTotal)
		taxAmount = taxAmount.Add(item.TaxAmount)
	}
	return setInvoiceHeader(inv, subtotal, taxAmount)
}

func setInvoiceHeader(inv *model.Invoice, subtotal, taxAmount decimal.Decimal) error {
	if inv.DiscountAmount.IsNegative() {
		return apperror.Validation("discount cannot be negative")
	}
	total := subtotal.Add(taxAmount).Sub(inv.DiscountAmount)
	if total.IsNegative() {
		return apperror.Validation("discount cannot exceed the invoice total")
	}
	inv.Subtotal = subtotal
	inv.TaxAmount = taxAmount
	inv.TotalAmount = total
	return nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, userID string, req CreateInvoiceRequest) (InvoiceResponse, error) {
	customerID, err := parseID("customer", req.CustomerID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if _, err := s.customerRepo.FindByID(ctx, customerID, repository.VisibleOnly); err != nil {
		return InvoiceResponse{}, lookupErr(err, "customer", req.CustomerID)
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return InvoiceResponse{}, err
	}

	issue := s.now()
	if req.IssueDate != nil {
		issue = *req.IssueDate
	}
	invoice := &model.Invoice{
		CustomerID:     customerID,
		IssueDate:      issue,
		DueDate:        s.dueDate(issue, req.PaymentDays),
		Status:         model.InvoiceStatusDraft,
		DiscountAmount: req.DiscountAmount,
		PaidAmount:     decimal.Zero,
		PaymentTerms:   req.PaymentTerms,
		Notes:          req.Notes,
		Items:          items,
		CreatedBy:      actorID(userID),
	}
	if err := applyInvoiceTotals(invoice); err != nil {
		return InvoiceResponse{}, err
	}
	return s.create(ctx, userID, invoice)
}

func (s *invoiceService) CreateInvoiceFromOrder(ctx context.Context, userID string, req CreateInvoiceFromOrderRequest) (InvoiceResponse, error) {
	orderID, err := parseID("order", req.OrderID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	order, err := s.orderRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		return InvoiceResponse{}, lookupErr(err, "order", req.OrderID)
	}
	existing, err := s.invoiceRepo.FindByOrderID(ctx, orderID)
	switch {
	case err == nil:
		return InvoiceResponse{}, apperror.InvalidState("order %s is already invoiced by %s", req.OrderID, existing.InvoiceNumber)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return InvoiceResponse{}, fmt.Errorf("failed to check existing invoice: %w", err)
	}

	lineTotals := make([]decimal.Decimal, len(order.Items))
	for i, oi := range order.Items {
		lineTotals[i] = oi.LineTotal
	}
	lineTax := allocate(order.Tax, lineTotals)

	items := make([]model.InvoiceItem, 0, len(order.Items))
	for i, oi := range order.Items {
		productID := oi.ProductID
		description := productID.String()
		if oi.Product != nil {
			description = oi.Product.Name
		}
		items = append(items, model.InvoiceItem{
			ProductID:   &productID,
			Description: description,
			Quantity:    oi.Quantity,
			UnitPrice:   oi.UnitPrice,
			TaxAmount:   lineTax[i],
			LineTotal:   oi.LineTotal,
			SortOrder:   i,
		})
	}

	issue := s.now()
	invoice := &model.Invoice{
		CustomerID:     order.CustomerID,
		OrderID:        &order.ID,
		IssueDate:      issue,
		DueDate:        s.dueDate(issue, req.PaymentDays),
		Status:         model.InvoiceStatusDraft,
		DiscountAmount: req.DiscountAmount,
		PaidAmount:     decimal.Zero,
		PaymentTerms:   req.PaymentTerms,
		Notes:          req.Notes,
		Items:          items,
		CreatedBy:      actorID(userID),
	}
	if err := setInvoiceHeader(invoice, order.Subtotal, order.Tax); err != nil {
		return InvoiceResponse{}, err
	}
	return s.create(ctx, userID, invoice)
}

func (s *invoiceService) create(ctx context.Context, userID string, invoice *model.Invoice) (InvoiceResponse, error) {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoiceNo, err := s.generateInvoiceNo(txCtx, invoice.IssueDate)
		if err != nil {
			return fmt.Errorf("failed to generate invoice number: %w", err)
		}
		invoice.InvoiceNumber = invoiceNo
		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return insertErr(err, "invoice")
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateInvoice, invoice.ID.String(), invoice.InvoiceNumber, map[string]interface{}{
			"customer_id": invoice.CustomerID.String(),
			"order_id":    invoice.OrderID,
			"total":       invoice.TotalAmount,
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	s.logger.Info("invoice created", zap.String("invoice_number", invoice.InvoiceNumber), zap.String("total", invoice.TotalAmount.StringFixed(2)))
	return s.GetInvoice(ctx, invoice.ID.String())
}

func (s *invoiceService) generateInvoiceNo(ctx context.Context, issue time.Time) (string, error) {
	prefix := "INV-" + issue.Format("20060102") + "-"

	count, err := s.invoiceRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (s *invoiceService) load(ctx context.Context, id string) (*model.Invoice, error) {
	invoiceID, err := parseID("invoice", id)
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, lookupErr(err, "invoice", id)
	}
	return invoice, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, userID, id string, req UpdateInvoiceRequest) (InvoiceResponse, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if invoice.Status != model.InvoiceStatusDraft {
		return InvoiceResponse{}, apperror.InvalidState("cannot edit invoice %s with status %s", invoice.InvoiceNumber, invoice.Status)
	}

	if req.DueDate != nil {
		if req.DueDate.Before(invoice.IssueDate) {
			return InvoiceResponse{}, apperror.Validation("due date cannot be before the issue date")
		}
		invoice.DueDate = *req.DueDate
	}
	if req.DiscountAmount != nil {
		invoice.DiscountAmount = *req.DiscountAmount
	}
	if req.PaymentTerms != nil {
		invoice.PaymentTerms = *req.PaymentTerms
	}
	if req.Notes != nil {
		invoice.Notes = *req.Notes
	}

	var items []model.InvoiceItem
	if len(req.Items) > 0 {
		if items, err = s.buildItems(ctx, req.Items); err != nil {
			return InvoiceResponse{}, err
		}
		invoice.Items = items
		err = applyInvoiceTotals(invoice)
	} else {
		err = setInvoiceHeader(invoice, invoice.Subtotal, invoice.TaxAmount)
	}
	if err != nil {
		return InvoiceResponse{}, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return err
		}
		if items != nil {
			if err := s.invoiceRepo.ReplaceItems(txCtx, invoice.ID, items); err != nil {
				return fmt.Errorf("failed to replace invoice items: %w", err)
			}
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateInvoice, invoice.ID.String(), invoice.InvoiceNumber, req)
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.GetInvoice(ctx, id)
}

func (s *invoiceService) SendInvoice(ctx context.Context, userID, id string) (InvoiceResponse, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if invoice.Status != model.InvoiceStatusDraft {
		return InvoiceResponse{}, apperror.InvalidState("only draft invoices can be sent, %s is %s", invoice.InvoiceNumber, invoice.Status)
	}
	if len(invoice.Items) == 0 {
		return InvoiceResponse{}, apperror.Validation("cannot send invoice %s without items", invoice.InvoiceNumber)
	}
	invoice.Status = model.InvoiceStatusSent
	return s.saveStatus(ctx, userID, invoice, model.ActionSendInvoice)
}

func (s *invoiceService) CancelInvoice(ctx context.Context, userID, id string) (InvoiceResponse, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if err := checkRemovable(invoice, "cancel"); err != nil {
		return InvoiceResponse{}, err
	}
	if invoice.Status == model.InvoiceStatusCancelled {
		return InvoiceResponse{}, apperror.InvalidState("invoice %s is already cancelled", invoice.InvoiceNumber)
	}
	invoice.Status = model.InvoiceStatusCancelled
	return s.saveStatus(ctx, userID, invoice, model.ActionCancelInvoice)
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, userID, id string) error {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := checkRemovable(invoice, "delete"); err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.SoftDelete(txCtx, invoice.ID, invoice.Version); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteInvoice, invoice.ID.String(), invoice.InvoiceNumber, map[string]bool{"deleted": true})
	})
}

// checkRemovable rejects cancel or delete once money has been booked.
func checkRemovable(invoice *model.Invoice, verb string) error {
	if invoice.Status == model.InvoiceStatusPaid {
		return apperror.InvalidState("cannot %s paid invoice %s", verb, invoice.InvoiceNumber)
	}
	if len(invoice.Payments) > 0 {
		return apperror.InvalidState("cannot %s invoice %s with %d payment(s)", verb, invoice.InvoiceNumber, len(invoice.Payments))
	}
	return nil
}

func (s *invoiceService) saveStatus(ctx context.Context, userID string, invoice *model.Invoice, action string) (InvoiceResponse, error) {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, action, invoice.ID.String(), invoice.InvoiceNumber, map[string]interface{}{"status": invoice.Status})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	s.logger.Info("invoice status changed", zap.String("invoice_number", invoice.InvoiceNumber), zap.String("status", string(invoice.Status)))
	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) AddPayment(ctx context.Context, userID, invoiceID string, req AddPaymentRequest) (InvoiceResponse, error) {
	id, err := parseID("invoice", invoiceID)
	if err != nil {
		return InvoiceResponse{}, err
	}

	if !req.Amount.IsPositive() {
		return InvoiceResponse{}, apperror.Validation("payment amount must be positive")
	}
	if !req.Method.Valid() {
		return InvoiceResponse{}, apperror.Validation("unknown payment method %q", req.Method)
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByID(txCtx, id)
		if findErr != nil {
			return lookupErr(findErr, "invoice", invoiceID)
		}

		if invoice.Status == model.InvoiceStatusDraft || invoice.Status == model.InvoiceStatusCancelled {
			return apperror.InvalidState("cannot record a payment on %s invoice %s", invoice.Status, invoice.InvoiceNumber)
		}
		balance := invoice.Balance()
		if req.Amount.GreaterThan(balance) {
			return &apperror.Error{
				Kind:    apperror.KindExceedsBalance,
				Message: fmt.Sprintf("payment %s exceeds balance %s", req.Amount.StringFixed(2), balance.StringFixed(2)),
				Details: map[string]string{"balance": balance.StringFixed(2), "amount": req.Amount.StringFixed(2)},
			}
		}

		paidOn := s.now()
		if req.PaymentDate != nil {
			paidOn = *req.PaymentDate
		}
		payment := &model.InvoicePayment{
			InvoiceID:   invoice.ID,
			Amount:      req.Amount,
			PaymentDate: paidOn,
			Method:      req.Method,
			Reference:   req.Reference,
			Notes:       req.Notes,
			CreatedBy:   actorID(userID),
		}
		if err := s.invoiceRepo.CreatePayment(txCtx, payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		invoice.PaidAmount = invoice.PaidAmount.Add(req.Amount)
		invoice.RefreshPaymentStatus()
		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionAddPayment, invoice.ID.String(), invoice.InvoiceNumber, map[string]interface{}{
			"payment_id": payment.ID.String(),
			"amount":     req.Amount,
			"method":     req.Method,
			"status":     invoice.Status,
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.logger.Info("payment recorded",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("status", string(invoice.Status)))
	return s.GetInvoice(ctx, invoiceID)
}

func (s *invoiceService) DeletePayment(ctx context.Context, userID, invoiceID, paymentID string) (InvoiceResponse, error) {
	id, err := parseID("invoice", invoiceID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	pid, err := parseID("payment", paymentID)
	if err != nil {
		return InvoiceResponse{}, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err := s.invoiceRepo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "invoice", invoiceID)
		}
		var payment *model.InvoicePayment
		for i := range invoice.Payments {
			if invoice.Payments[i].ID == pid {
				payment = &invoice.Payments[i]
				break
			}
		}
		if payment == nil {
			return apperror.NotFound("payment", paymentID)
		}

		if err := s.invoiceRepo.DeletePayment(txCtx, pid); err != nil {
			return lookupErr(err, "payment", paymentID)
		}
		invoice.PaidAmount = invoice.PaidAmount.Sub(payment.Amount)
		if invoice.PaidAmount.IsNegative() {
			invoice.PaidAmount = decimal.Zero
		}
		invoice.RefreshPaymentStatus()
		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeletePayment, invoice.ID.String(), invoice.InvoiceNumber, map[string]interface{}{
			"payment_id": paymentID,
			"amount":     payment.Amount,
			"status":     invoice.Status,
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.GetInvoice(ctx, invoiceID)
}

func (s *invoiceService) ListPayments(ctx context.Context, invoiceID string) ([]PaymentResponse, error) {
	invoice, err := s.load(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	payments, err := s.invoiceRepo.ListPayments(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %w", err)
	}
	res := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		res = append(res, toPaymentResponse(p))
	}
	return res, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	invoice, err := s.load(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	repoFilter := repository.InvoiceFilter{Search: filter.Search, Page: page, Limit: limit}
	if filter.Status != "" {
		status := model.InvoiceStatus(filter.Status)
		if !status.Valid() {
			return nil, 0, apperror.Validation("unknown invoice status %q", filter.Status)
		}
		repoFilter.Status = status
	}
	if filter.CustomerID != "" {
		cid, err := parseID("customer", filter.CustomerID)
		if err != nil {
			return nil, 0, err
		}
		repoFilter.CustomerID = &cid
	}

	invoices, total, err := s.invoiceRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	result := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, toInvoiceResponse(inv))
	}
	return result, total, nil
}

func (s *invoiceService) ListOverdueInvoices(ctx context.Context) ([]OverdueInvoiceResponse, error) {
	now := s.now()
	invoices, err := s.invoiceRepo.ListOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch overdue invoices: %w", err)
	}
	res := make([]OverdueInvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		r := OverdueInvoiceResponse{
			ID:            inv.ID.String(),
			InvoiceNumber: inv.InvoiceNumber,
			Status:        string(inv.Status),
			IssueDate:     inv.IssueDate.Format(time.RFC3339),
			DueDate:       inv.DueDate.Format(time.RFC3339),
			DaysOverdue:   daysSince(inv.DueDate, now),
			TotalAmount:   inv.TotalAmount.StringFixed(2),
			Balance:       inv.Balance().StringFixed(2),
		}
		if inv.Customer != nil {
			r.CustomerName = inv.Customer.Name
		}
		res = append(res, r)
	}
	return res, nil
}

func (s *invoiceService) GetSummary(ctx context.Context) (InvoiceSummaryResponse, error) {
	rows, err := s.invoiceRepo.TotalsByStatus(ctx)
	if err != nil {
		return InvoiceSummaryResponse{}, fmt.Errorf("failed to total invoices: %w", err)
	}
	overdue, err := s.invoiceRepo.ListOverdue(ctx, s.now())
	if err != nil {
		return InvoiceSummaryResponse{}, fmt.Errorf("failed to fetch overdue invoices: %w", err)
	}

	var sum InvoiceSummaryResponse
	total, paid := decimal.Zero, decimal.Zero
	for _, r := range rows {
		sum.TotalInvoices += r.Count
		switch model.InvoiceStatus(r.Status) {
		case model.InvoiceStatusDraft:
			sum.DraftInvoices = r.Count
		case model.InvoiceStatusSent:
			sum.SentInvoices = r.Count
		case model.InvoiceStatusPaid:
			sum.PaidInvoices = r.Count
		case model.InvoiceStatusCancelled:
			sum.CancelledInvoices = r.Count
			continue
		}
		total = total.Add(r.Total)
		paid = paid.Add(r.Paid)
	}
	overdueAmount := decimal.Zero
	for i := range overdue {
		overdueAmount = overdueAmount.Add(overdue[i].Balance())
	}

	sum.OverdueInvoices = int64(len(overdue))
	sum.TotalAmount = total.StringFixed(2)
	sum.TotalPaid = paid.StringFixed(2)
	sum.TotalOutstanding = total.Sub(paid).StringFixed(2)
	sum.OverdueAmount = overdueAmount.StringFixed(2)
	return sum, nil
}

// --- Mapping ---

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:             inv.ID.String(),
		InvoiceNumber:  inv.InvoiceNumber,
		CustomerID:     inv.CustomerID.String(),
		Status:         string(inv.Status),
		IssueDate:      inv.IssueDate.Format(time.RFC3339),
		DueDate:        inv.DueDate.Format(time.RFC3339),
		Subtotal:       inv.Subtotal.StringFixed(2),
		TaxAmount:      inv.TaxAmount.StringFixed(2),
		DiscountAmount: inv.DiscountAmount.StringFixed(2),
		TotalAmount:    inv.TotalAmount.StringFixed(2),
		PaidAmount:     inv.PaidAmount.StringFixed(2),
		Balance:        inv.Balance().StringFixed(2),
		PaymentTerms:   inv.PaymentTerms,
		Notes:          inv.Notes,
		Version:        inv.Version,
		Items:          make([]InvoiceItemResponse, 0, len(inv.Items)),
		Payments:       make([]PaymentResponse, 0, len(inv.Payments)),
		CreatedAt:      inv.CreatedAt.Format(time.RFC3339),
	}

	if inv.Customer != nil {
		resp.CustomerName = inv.Customer.Name
	}
	if inv.OrderID != nil {
		s := inv.OrderID.String()
		resp.OrderID = &s
	}
	for _, item := range inv.Items {
		ir := InvoiceItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			TaxAmount:   item.TaxAmount.StringFixed(2),
			LineTotal:   item.LineTotal.StringFixed(2),
		}
		if item.ProductID != nil {
			s := item.ProductID.String()
			ir.ProductID = &s
		}
		resp.Items = append(resp.Items, ir)
	}
	for _, p := range inv.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}

	return resp
}

func toPaymentResponse(p model.InvoicePayment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID.String(),
		Amount:      p.Amount.StringFixed(2),
		PaymentDate: p.PaymentDate.Format(time.RFC3339),
		Method:      string(p.Method),
		Reference:   p.Reference,
		Notes:       p.Notes,
	}
}
