package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"erp/internal/apperror"
	"erp/internal/model"
	"erp/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentInvoice(t *testing.T, svc InvoiceService, customer *model.Customer, price string) InvoiceResponse {
	t.Helper()
	ctx := context.Background()
	unit := decimal.RequireFromString(price)

	inv, err := svc.CreateInvoice(ctx, "", CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Items:      []InvoiceItemRequest{{Description: "Consulting", Quantity: 1, UnitPrice: &unit}},
	})
	require.NoError(t, err)
	inv, err = svc.SendInvoice(ctx, "", inv.ID)
	require.NoError(t, err)
	require.Equal(t, string(model.InvoiceStatusSent), inv.Status)
	return inv
}

func TestCreateInvoiceFromOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	p := env.seedProduct(t, "P-1", "10.00", 5)

	order, err := env.orderService().CreateOrder(ctx, "", CreateOrderRequest{
		CustomerID: customer.ID.String(),
		Items:      []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 3}},
	})
	require.NoError(t, err)

	svc := env.invoiceService()
	inv, err := svc.CreateInvoiceFromOrder(ctx, "", CreateInvoiceFromOrderRequest{OrderID: order.ID})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(inv.InvoiceNumber, "INV-"))
	assert.Equal(t, string(model.InvoiceStatusDraft), inv.Status)
	require.NotNil(t, inv.OrderID)
	assert.Equal(t, order.ID, *inv.OrderID)
	assert.Equal(t, "30.00", inv.Subtotal)
	assert.Equal(t, "3.60", inv.TaxAmount)
	assert.Equal(t, "33.60", inv.TotalAmount)
	assert.Equal(t, "33.60", inv.Balance)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, p.Name, inv.Items[0].Description)
	assert.Equal(t, 3, inv.Items[0].Quantity)

	_, err = svc.CreateInvoiceFromOrder(ctx, "", CreateInvoiceFromOrderRequest{OrderID: order.ID})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
}

func TestInvoiceNumbersAreSequential(t *testing.T) {
	env := newTestEnv(t)
	svc := env.invoiceService()

	customer := env.seedCustomer(t)
	first := sentInvoice(t, svc, customer, "1.00")
	second := sentInvoice(t, svc, customer, "1.00")
	assert.True(t, strings.HasSuffix(first.InvoiceNumber, "-00001"), first.InvoiceNumber)
	assert.True(t, strings.HasSuffix(second.InvoiceNumber, "-00002"), second.InvoiceNumber)
}

func TestPaymentsSettleInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.invoiceService()
	inv := sentInvoice(t, svc, env.seedCustomer(t), "100.00")
	require.Equal(t, "112.00", inv.TotalAmount)

	inv, err := svc.AddPayment(ctx, "", inv.ID, AddPaymentRequest{Amount: decimal.RequireFromString("50.00"), Method: model.PaymentBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, string(model.InvoiceStatusSent), inv.Status)
	assert.Equal(t, "50.00", inv.PaidAmount)
	assert.Equal(t, "62.00", inv.Balance)

	_, err = svc.AddPayment(ctx, "", inv.ID, AddPaymentRequest{Amount: decimal.RequireFromString("62.01"), Method: model.PaymentCash})
	require.Error(t, err)
	assert.Equal(t, apperror.KindExceedsBalance, apperror.KindOf(err))

	inv, err = svc.AddPayment(ctx, "", inv.ID, AddPaymentRequest{Amount: decimal.RequireFromString("62.00"), Method: model.PaymentCash, Reference: "R-2"})
	require.NoError(t, err)
	assert.Equal(t, string(model.InvoiceStatusPaid), inv.Status)
	assert.Equal(t, "0.00", inv.Balance)
	assert.Len(t, inv.Payments, 2)

	payments, err := svc.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	// paid invoices cannot be cancelled or deleted
	_, err = svc.CancelInvoice(ctx, "", inv.ID)
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(svc.DeleteInvoice(ctx, "", inv.ID)))

	var lastID string
	for _, p := range inv.Payments {
		if p.Reference == "R-2" {
			lastID = p.ID
		}
	}
	require.NotEmpty(t, lastID)
	inv, err = svc.DeletePayment(ctx, "", inv.ID, lastID)
	require.NoError(t, err)
	assert.Equal(t, string(model.InvoiceStatusSent), inv.Status)
	assert.Equal(t, "62.00", inv.Balance)

	// still blocked by the remaining payment
	_, err = svc.CancelInvoice(ctx, "", inv.ID)
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
}

func TestAddPaymentRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.invoiceService()
	customer := env.seedCustomer(t)
	unit := decimal.RequireFromString("10.00")

	draft, err := svc.CreateInvoice(ctx, "", CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Items:      []InvoiceItemRequest{{Description: "Setup", Quantity: 2, UnitPrice: &unit}},
	})
	require.NoError(t, err)

	_, err = svc.AddPayment(ctx, "", draft.ID, AddPaymentRequest{Amount: decimal.NewFromInt(1), Method: model.PaymentCash})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	sent, err := svc.SendInvoice(ctx, "", draft.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  AddPaymentRequest
		kind apperror.Kind
	}{
		{"zero amount", AddPaymentRequest{Amount: decimal.Zero, Method: model.PaymentCash}, apperror.KindValidation},
		{"negative amount", AddPaymentRequest{Amount: decimal.NewFromInt(-5), Method: model.PaymentCash}, apperror.KindValidation},
		{"unknown method", AddPaymentRequest{Amount: decimal.NewFromInt(1), Method: "BARTER"}, apperror.KindValidation},
		{"above balance", AddPaymentRequest{Amount: decimal.NewFromInt(1000), Method: model.PaymentCheck}, apperror.KindExceedsBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddPayment(ctx, "", sent.ID, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}

	got, err := svc.GetInvoice(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", got.PaidAmount)
	assert.Empty(t, got.Payments)
}

func TestDraftInvoiceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.invoiceService()
	customer := env.seedCustomer(t)
	p := env.seedProduct(t, "P-1", "5.00", 0)

	inv, err := svc.CreateInvoice(ctx, "", CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Items:      []InvoiceItemRequest{{ProductID: p.ID.String(), Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "10.00", inv.Subtotal)

	discount := decimal.RequireFromString("1.20")
	notes := "repeat customer"
	inv, err = svc.UpdateInvoice(ctx, "", inv.ID, UpdateInvoiceRequest{DiscountAmount: &discount, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "10.00", inv.TotalAmount)
	assert.Equal(t, notes, inv.Notes)

	inv, err = svc.CancelInvoice(ctx, "", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.InvoiceStatusCancelled), inv.Status)

	_, err = svc.UpdateInvoice(ctx, "", inv.ID, UpdateInvoiceRequest{Notes: &notes})
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
	_, err = svc.SendInvoice(ctx, "", inv.ID)
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	require.NoError(t, svc.DeleteInvoice(ctx, "", inv.ID))
	_, err = svc.GetInvoice(ctx, inv.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestCreateInvoiceValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.invoiceService()
	customer := env.seedCustomer(t)

	_, err := svc.CreateInvoice(context.Background(), "", CreateInvoiceRequest{CustomerID: customer.ID.String()})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.CreateInvoice(context.Background(), "", CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Items:      []InvoiceItemRequest{{Description: "no price", Quantity: 1}},
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestCreateInvoiceFromOrderSpreadsOrderTax(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	a := env.seedProduct(t, "P-A", "0.05", 5)
	b := env.seedProduct(t, "P-B", "0.05", 5)

	order, err := env.orderService().CreateOrder(ctx, "", CreateOrderRequest{
		CustomerID: customer.ID.String(),
		Items: []OrderItemRequest{
			{ProductID: a.ID.String(), Quantity: 1},
			{ProductID: b.ID.String(), Quantity: 1},
		},
	})
	require.NoError(t, err)

	inv, err := env.invoiceService().CreateInvoiceFromOrder(ctx, "", CreateInvoiceFromOrderRequest{OrderID: order.ID})
	require.NoError(t, err)
	// taxing each 0.05 line alone would give 0.01 + 0.01
	assert.Equal(t, "0.01", inv.TaxAmount)
	require.Len(t, inv.Items, 2)
	lineTax := decimal.Zero
	for _, item := range inv.Items {
		lineTax = lineTax.Add(decimal.RequireFromString(item.TaxAmount))
	}
	assert.Equal(t, inv.TaxAmount, lineTax.StringFixed(2))
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		weights []string
		want    []string
	}{
		{"single line takes all", "1.20", []string{"10"}, []string{"1.20"}},
		{"even split", "2.40", []string{"10", "10"}, []string{"1.20", "1.20"}},
		{"remainder lands on last line", "0.10", []string{"1", "1", "1"}, []string{"0.03", "0.03", "0.04"}},
		{"zero weights", "0.50", []string{"0", "0"}, []string{"0.00", "0.50"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := make([]decimal.Decimal, len(tt.weights))
			for i, w := range tt.weights {
				weights[i] = decimal.RequireFromString(w)
			}
			got := allocate(decimal.RequireFromString(tt.amount), weights)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.Equal(t, tt.want[i], got[i].StringFixed(2))
			}
		})
	}
}

// staleInvoices saves every header with the version it had before another
// writer got there first, so the save always loses.
type staleInvoices struct {
	repository.InvoiceRepository
}

func (r staleInvoices) Update(ctx context.Context, invoice *model.Invoice) error {
	stale := *invoice
	stale.Version--
	return r.InvoiceRepository.Update(ctx, &stale)
}

func TestAddPaymentRollsBackWhenHeaderSaveConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.invoiceService()
	inv := sentInvoice(t, svc, env.seedCustomer(t), "100.00")

	env.invoices = staleInvoices{env.invoices}
	_, err := env.invoiceService().AddPayment(ctx, "", inv.ID, AddPaymentRequest{Amount: decimal.RequireFromString("50.00"), Method: model.PaymentCash})
	require.Error(t, err)
	assert.Equal(t, apperror.KindConcurrency, apperror.KindOf(err))

	got, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.InvoiceStatusSent), got.Status)
	assert.Equal(t, "0.00", got.PaidAmount)
	assert.Equal(t, "112.00", got.Balance)
	payments, err := svc.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

// countingTx counts the transactions a service opens.
type countingTx struct {
	repository.TransactionManager
	calls int
}

func (c *countingTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	c.calls++
	return c.TransactionManager.RunInTx(ctx, fn)
}

func TestAddPaymentValidatesBeforeOpeningTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv := sentInvoice(t, env.invoiceService(), env.seedCustomer(t), "10.00")

	tx := &countingTx{TransactionManager: env.tx}
	env.tx = tx
	svc := env.invoiceService()

	_, err := svc.AddPayment(ctx, "", inv.ID, AddPaymentRequest{Amount: decimal.Zero, Method: model.PaymentCash})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	_, err = svc.AddPayment(ctx, "", inv.ID, AddPaymentRequest{Amount: decimal.NewFromInt(1), Method: "BARTER"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Zero(t, tx.calls)

	_, err = svc.AddPayment(ctx, "", inv.ID, AddPaymentRequest{Amount: decimal.NewFromInt(1), Method: model.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, 1, tx.calls)
}

// reusedInvoiceNumbers always counts zero invoices for a prefix, as a writer
// that has not yet seen a concurrent insert would.
type reusedInvoiceNumbers struct {
	repository.InvoiceRepository
}

func (r reusedInvoiceNumbers) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	return 0, nil
}

func TestCreateInvoiceNumberClashIsConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t)
	first := sentInvoice(t, env.invoiceService(), customer, "1.00")
	require.True(t, strings.HasSuffix(first.InvoiceNumber, "-00001"), first.InvoiceNumber)

	env.invoices = reusedInvoiceNumbers{env.invoices}
	unit := decimal.RequireFromString("1.00")
	_, err := env.invoiceService().CreateInvoice(ctx, "", CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Items:      []InvoiceItemRequest{{Description: "Consulting", Quantity: 1, UnitPrice: &unit}},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindConcurrency, apperror.KindOf(err))

	_, total, err := env.invoiceService().ListInvoices(ctx, InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestListInvoicesRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	svc := env.invoiceService()
	sentInvoice(t, svc, env.seedCustomer(t), "1.00")

	_, _, err := svc.ListInvoices(context.Background(), InvoiceFilter{Status: "OVERDUE"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	items, total, err := svc.ListInvoices(context.Background(), InvoiceFilter{Status: string(model.InvoiceStatusSent)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, items, 1)
}

func issuedInvoice(t *testing.T, svc InvoiceService, customer *model.Customer, price string, issued time.Time) InvoiceResponse {
	t.Helper()
	ctx := context.Background()
	unit := decimal.RequireFromString(price)
	inv, err := svc.CreateInvoice(ctx, "", CreateInvoiceRequest{
		CustomerID:  customer.ID.String(),
		IssueDate:   &issued,
		PaymentDays: 30,
		Items:       []InvoiceItemRequest{{Description: "Consulting", Quantity: 1, UnitPrice: &unit}},
	})
	require.NoError(t, err)
	inv, err = svc.SendInvoice(ctx, "", inv.ID)
	require.NoError(t, err)
	return inv
}

func TestOverdueInvoicesAndSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.invoiceService()
	customer := env.seedCustomer(t)
	twoMonthsAgo := time.Now().AddDate(0, 0, -60)

	late := issuedInvoice(t, svc, customer, "100.00", twoMonthsAgo)

	settled := issuedInvoice(t, svc, customer, "10.00", twoMonthsAgo)
	_, err := svc.AddPayment(ctx, "", settled.ID, AddPaymentRequest{Amount: decimal.RequireFromString("11.20"), Method: model.PaymentCash})
	require.NoError(t, err)

	current := sentInvoice(t, svc, customer, "50.00")
	_, err = svc.AddPayment(ctx, "", current.ID, AddPaymentRequest{Amount: decimal.RequireFromString("20.00"), Method: model.PaymentCash})
	require.NoError(t, err)

	unit := decimal.RequireFromString("5.00")
	dropped, err := svc.CreateInvoice(ctx, "", CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		IssueDate:  &twoMonthsAgo,
		Items:      []InvoiceItemRequest{{Description: "Setup", Quantity: 1, UnitPrice: &unit}},
	})
	require.NoError(t, err)
	_, err = svc.CancelInvoice(ctx, "", dropped.ID)
	require.NoError(t, err)

	overdue, err := svc.ListOverdueInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.InvoiceNumber, overdue[0].InvoiceNumber)
	assert.Equal(t, customer.Name, overdue[0].CustomerName)
	assert.InDelta(t, 30, overdue[0].DaysOverdue, 1)
	assert.Equal(t, "112.00", overdue[0].TotalAmount)
	assert.Equal(t, "112.00", overdue[0].Balance)

	summary, err := svc.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.TotalInvoices)
	assert.Zero(t, summary.DraftInvoices)
	assert.Equal(t, int64(2), summary.SentInvoices)
	assert.Equal(t, int64(1), summary.PaidInvoices)
	assert.Equal(t, int64(1), summary.CancelledInvoices)
	assert.Equal(t, int64(1), summary.OverdueInvoices)
	assert.Equal(t, "179.20", summary.TotalAmount)
	assert.Equal(t, "31.20", summary.TotalPaid)
	assert.Equal(t, "148.00", summary.TotalOutstanding)
	assert.Equal(t, "112.00", summary.OverdueAmount)
}
