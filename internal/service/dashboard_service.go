package service

import (
	"context"
	"fmt"
	"time"

	"erp/internal/model"
	"erp/internal/repository"

	"golang.org/x/sync/errgroup"
)

const topProductsLimit = 5

type DashboardService interface {
	// GetSummary reads the headline counts plus the best sellers between
	// startDate and endDate.
	GetSummary(ctx context.Context, startDate, endDate time.Time) (model.DashboardSummary, error)
}

type dashboardService struct {
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	orderRepo    repository.OrderRepository
	invoiceRepo  repository.InvoiceRepository
	poRepo       repository.PurchaseOrderRepository
	statsRepo    repository.StatisticsRepository
}

func NewDashboardService(
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	orderRepo repository.OrderRepository,
	invoiceRepo repository.InvoiceRepository,
	poRepo repository.PurchaseOrderRepository,
	statsRepo repository.StatisticsRepository,
) DashboardService {
	return &dashboardService{
		productRepo:  productRepo,
		customerRepo: customerRepo,
		orderRepo:    orderRepo,
		invoiceRepo:  invoiceRepo,
		poRepo:       poRepo,
		statsRepo:    statsRepo,
	}
}

func (s *dashboardService) GetSummary(ctx context.Context, startDate, endDate time.Time) (model.DashboardSummary, error) {
	summary := model.DashboardSummary{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	// each query writes its own field, so they can run side by side
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.ProductCount, err = s.productRepo.Count(gctx)
		return wrapStat("products", err)
	})
	g.Go(func() (err error) {
		summary.CustomerCount, err = s.customerRepo.Count(gctx)
		return wrapStat("customers", err)
	})
	g.Go(func() (err error) {
		summary.OrderCount, err = s.orderRepo.Count(gctx)
		return wrapStat("orders", err)
	})
	g.Go(func() (err error) {
		summary.Revenue, err = s.orderRepo.SumTotal(gctx)
		return wrapStat("revenue", err)
	})
	g.Go(func() (err error) {
		summary.LowStockCount, err = s.productRepo.CountLowStock(gctx)
		return wrapStat("low stock", err)
	})
	g.Go(func() (err error) {
		summary.OutstandingBalance, err = s.invoiceRepo.SumOutstanding(gctx)
		return wrapStat("outstanding balance", err)
	})
	g.Go(func() (err error) {
		summary.OpenPurchaseOrders, err = s.poRepo.CountOpen(gctx)
		return wrapStat("open purchase orders", err)
	})
	g.Go(func() (err error) {
		summary.TopProducts, err = s.statsRepo.GetTopProducts(gctx, startDate, endDate, topProductsLimit)
		return wrapStat("top products", err)
	})

	if err := g.Wait(); err != nil {
		return model.DashboardSummary{}, err
	}
	if summary.TopProducts == nil {
		summary.TopProducts = []model.ProductRanking{}
	}
	return summary, nil
}

func wrapStat(name string, err error) error {
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}
