package service

import (
	"context"
	"sync"
	"testing"

	"erp/internal/config"
	"erp/internal/database/dbtest"
	"erp/internal/model"
	"erp/internal/repository"
	"erp/internal/tax"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
	mu     sync.Mutex
	events []StockChangedEvent
}

func (m *MockPublisher) Publish(event string, data interface{}) {
	m.Called(event, data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := data.(StockChangedEvent); ok {
		m.events = append(m.events, e)
	}
}

func (m *MockPublisher) Stock() []StockChangedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StockChangedEvent(nil), m.events...)
}

type testEnv struct {
	db        *gorm.DB
	products  repository.ProductRepository
	movements repository.MovementRepository
	customers repository.CustomerRepository
	suppliers repository.SupplierRepository
	links     repository.ProductSupplierRepository
	orders    repository.OrderRepository
	pos       repository.PurchaseOrderRepository
	invoices  repository.InvoiceRepository
	audit     repository.AuditRepository
	stats     repository.StatisticsRepository
	tx        repository.TransactionManager
	calc      *tax.Calculator
	events    *MockPublisher
	logger    *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	calc, err := tax.NewCalculator(tax.DefaultRate)
	require.NoError(t, err)

	events := &MockPublisher{}
	events.On("Publish", mock.Anything, mock.Anything).Return()

	return &testEnv{
		db:        db,
		products:  repository.NewProductRepository(db),
		movements: repository.NewMovementRepository(db),
		customers: repository.NewCustomerRepository(db),
		suppliers: repository.NewSupplierRepository(db),
		links:     repository.NewProductSupplierRepository(db),
		orders:    repository.NewOrderRepository(db),
		pos:       repository.NewPurchaseOrderRepository(db),
		invoices:  repository.NewInvoiceRepository(db),
		audit:     repository.NewAuditRepository(db),
		stats:     repository.NewStatisticsRepository(db),
		tx:        repository.NewTransactionManager(db),
		calc:      calc,
		events:    events,
		logger:    zap.NewNop(),
	}
}

func (e *testEnv) orderService() OrderService {
	return NewOrderService(e.customers, e.products, e.orders, e.movements, e.audit, e.tx, e.calc,
		config.OrderConfig{MaxItems: 10, MaxQuantityPerItem: 1000}, e.events, e.logger)
}

func (e *testEnv) purchaseOrderService() PurchaseOrderService {
	return NewPurchaseOrderService(e.pos, e.suppliers, e.links, e.products, e.movements, e.audit, e.tx, e.calc,
		config.PurchaseOrderConfig{MaxItems: 10, MaxQuantityPerItem: 1000, DefaultDeliveryDays: 7}, e.events, e.logger)
}

func (e *testEnv) invoiceService() InvoiceService {
	return NewInvoiceService(e.invoices, e.orders, e.customers, e.products, e.audit, e.tx, e.calc,
		config.InvoiceConfig{DefaultPaymentDays: 30}, e.logger)
}

func (e *testEnv) productSupplierService() ProductSupplierService {
	return NewProductSupplierService(e.links, e.products, e.suppliers, e.tx)
}

func (e *testEnv) productService() ProductService {
	return NewProductService(e.products, e.movements, e.pos, e.audit, e.tx, e.events, e.logger)
}

func (e *testEnv) seedProduct(t *testing.T, sku string, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{SKU: sku, Name: "Product " + sku, Price: decimal.RequireFromString(price), Stock: stock, LowStockThreshold: 2}
	require.NoError(t, e.products.Create(context.Background(), p))
	return p
}

func (e *testEnv) seedCustomer(t *testing.T) *model.Customer {
	t.Helper()
	c := &model.Customer{Name: "Globex", Email: "buyer@globex.test"}
	require.NoError(t, e.customers.Create(context.Background(), c))
	return c
}

func (e *testEnv) seedSupplier(t *testing.T, active bool) *model.Supplier {
	t.Helper()
	s := &model.Supplier{Name: "Acme Supply", IsActive: active}
	require.NoError(t, e.suppliers.Create(context.Background(), s))
	return s
}

func (e *testEnv) stockOf(t *testing.T, p *model.Product) int {
	t.Helper()
	got, err := e.products.FindByID(context.Background(), p.ID, repository.IncludeDeleted)
	require.NoError(t, err)
	return got.Stock
}
