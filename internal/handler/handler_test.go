package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"erp/internal/config"
	"erp/internal/database/dbtest"
	"erp/internal/middleware"
	"erp/internal/model"
	"erp/internal/repository"
	"erp/internal/service"
	"erp/internal/tax"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var jwtCfg = config.JWTConfig{Secret: "handler-secret", TTLHours: 1}

type apiEnv struct {
	router    *gin.Engine
	products  repository.ProductRepository
	customers repository.CustomerRepository
	suppliers repository.SupplierRepository
	users     service.UserService

	adminToken string
	userToken  string
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Details    json.RawMessage `json:"details"`
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	log := zap.NewNop()

	calc, err := tax.NewCalculator(tax.DefaultRate)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	linkRepo := repository.NewProductSupplierRepository(db)
	productRepo := repository.NewProductRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)
	txManager := repository.NewTransactionManager(db)

	users := service.NewUserService(userRepo, jwtCfg, log)
	guard := middleware.NewGuard(jwtCfg.SigningKey())

	router := gin.New()
	router.Use(middleware.Recovery(log))
	for _, h := range []interface{ RegisterRoutes(*gin.RouterGroup) }{
		NewUserHandler(users, guard, middleware.CookieOptions{}, log),
		NewInventoryHandler(service.NewProductService(productRepo, movementRepo, poRepo, auditRepo, txManager, nil, log), guard, log),
		NewPartnerHandler(service.NewCustomerService(customerRepo), service.NewSupplierService(supplierRepo),
			service.NewProductSupplierService(linkRepo, productRepo, supplierRepo, txManager), guard, log),
		NewOrderHandler(service.NewOrderService(customerRepo, productRepo, orderRepo, movementRepo, auditRepo, txManager, calc,
			config.OrderConfig{MaxItems: 10, MaxQuantityPerItem: 1000}, nil, log), guard, log),
		NewPurchaseOrderHandler(service.NewPurchaseOrderService(poRepo, supplierRepo, linkRepo, productRepo, movementRepo, auditRepo, txManager, calc,
			config.PurchaseOrderConfig{MaxItems: 10, MaxQuantityPerItem: 1000, DefaultDeliveryDays: 7}, nil, log), guard, log),
		NewInvoiceHandler(service.NewInvoiceService(invoiceRepo, orderRepo, customerRepo, productRepo, auditRepo, txManager, calc,
			config.InvoiceConfig{DefaultPaymentDays: 30}, log), guard, log),
		NewAuditHandler(service.NewAuditService(auditRepo), guard, log),
		NewDashboardHandler(service.NewDashboardService(productRepo, customerRepo, orderRepo, invoiceRepo, poRepo, statsRepo), guard, log),
		NewTaxHandler(calc, guard),
	} {
		h.RegisterRoutes(router.Group(""))
	}

	env := &apiEnv{router: router, products: productRepo, customers: customerRepo, suppliers: supplierRepo, users: users}
	env.adminToken = env.login(t, model.RoleAdmin, "boss@erp.test")
	env.userToken = env.login(t, model.RoleUser, "clerk@erp.test")
	return env
}

func (e *apiEnv) login(t *testing.T, role, email string) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.users.CreateUser(ctx, service.CreateUserRequest{Username: email, Email: email, Password: "secret123", Role: role})
	require.NoError(t, err)
	tok, err := e.users.Login(ctx, service.LoginUserRequest{Email: email, Password: "secret123"})
	require.NoError(t, err)
	return tok.Token
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (e *apiEnv) seedProduct(t *testing.T, sku, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{SKU: sku, Name: "Product " + sku, Price: decimal.RequireFromString(price), Stock: stock, LowStockThreshold: 2}
	require.NoError(t, e.products.Create(context.Background(), p))
	return p
}

func (e *apiEnv) seedCustomer(t *testing.T) *model.Customer {
	t.Helper()
	c := &model.Customer{Name: "Globex", Email: "ap@globex.test"}
	require.NoError(t, e.customers.Create(context.Background(), c))
	return c
}

func (e *apiEnv) seedSupplier(t *testing.T) *model.Supplier {
	t.Helper()
	s := &model.Supplier{Name: "Acme Supply", IsActive: true}
	require.NoError(t, e.suppliers.Create(context.Background(), s))
	return s
}

func (e *apiEnv) stockOf(t *testing.T, p *model.Product) int {
	t.Helper()
	got, err := e.products.FindByID(context.Background(), p.ID, repository.IncludeDeleted)
	require.NoError(t, err)
	return got.Stock
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), string(raw))
}
