package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "erp/api/swagger" // swagger docs
	"erp/internal/config"
	"erp/internal/database"
	"erp/internal/handler"
	"erp/internal/logger"
	"erp/internal/middleware"
	"erp/internal/repository"
	"erp/internal/service"
	"erp/internal/tax"
	"erp/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           ERP API
// @version         1.0
// @description     Orders, purchasing, invoicing and inventory for a small trading business.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg := config.LoadEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Server.AppEnv, cfg.Logger)
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Postgres, zlog)
	if err != nil {
		return err
	}
	zlog.Info("Connected to PostgreSQL successfully.")

	calc, err := tax.NewCalculator(decimal.NewFromFloat(cfg.Tax.Rate))
	if err != nil {
		return err
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zlog)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
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

	userService := service.NewUserService(userRepo, cfg.JWT, zlog)
	customerService := service.NewCustomerService(customerRepo)
	supplierService := service.NewSupplierService(supplierRepo)
	linkService := service.NewProductSupplierService(linkRepo, productRepo, supplierRepo, txManager)
	productService := service.NewProductService(productRepo, movementRepo, poRepo, auditRepo, txManager, wsHub, zlog)
	orderService := service.NewOrderService(customerRepo, productRepo, orderRepo, movementRepo, auditRepo, txManager, calc, cfg.Orders, wsHub, zlog)
	poService := service.NewPurchaseOrderService(poRepo, supplierRepo, linkRepo, productRepo, movementRepo, auditRepo, txManager, calc, cfg.PurchaseOrders, wsHub, zlog)
	invoiceService := service.NewInvoiceService(invoiceRepo, orderRepo, customerRepo, productRepo, auditRepo, txManager, calc, cfg.Invoices, zlog)
	auditService := service.NewAuditService(auditRepo)
	dashboardService := service.NewDashboardService(productRepo, customerRepo, orderRepo, invoiceRepo, poRepo, statsRepo)

	if err := userService.EnsureAdmin(ctx, cfg.Admin); err != nil {
		return err
	}

	// Initialize Handlers
	guard := middleware.NewGuard(cfg.JWTSecret())
	cookie := middleware.CookieOptions{Secure: cfg.Server.CookieSecure, MaxAge: cfg.JWT.TTLHours * 3600}
	handlers := []interface{ RegisterRoutes(*gin.RouterGroup) }{
		handler.NewUserHandler(userService, guard, cookie, zlog),
		handler.NewInventoryHandler(productService, guard, zlog),
		handler.NewPartnerHandler(customerService, supplierService, linkService, guard, zlog),
		handler.NewOrderHandler(orderService, guard, zlog),
		handler.NewPurchaseOrderHandler(poService, guard, zlog),
		handler.NewInvoiceHandler(invoiceService, guard, zlog),
		handler.NewAuditHandler(auditService, guard, zlog),
		handler.NewDashboardHandler(dashboardService, guard, zlog),
		handler.NewTaxHandler(calc, guard),
	}

	// Set up Gin Router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(middleware.Recovery(zlog), middleware.RequestLogger(zlog))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, cfg.JWTSecret())
	})

	for _, h := range handlers {
		h.RegisterRoutes(router.Group(""))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("Server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zlog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
