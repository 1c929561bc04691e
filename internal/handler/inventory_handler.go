package handler

import (
	"net/http"
	"strconv"
	"time"

	"erp/internal/middleware"
	"erp/internal/model"
	"erp/internal/service"
	"erp/pkg/pagination"
	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	productService service.ProductService
	guard          middleware.Guard
	log            *zap.Logger
}

func NewInventoryHandler(productService service.ProductService, guard middleware.Guard, log *zap.Logger) *InventoryHandler {
	return &InventoryHandler{productService: productService, guard: guard, log: log}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyUser := h.guard()
	admin := h.guard(model.RoleAdmin)

	products := router.Group("/api/products")
	{
		products.GET("", anyUser, h.GetProducts)
		products.GET("/low-stock", anyUser, h.GetLowStock)
		products.GET("/:id", anyUser, h.GetProduct)
		products.POST("", admin, h.CreateProduct)
		products.PUT("/:id", admin, h.UpdateProduct)
		products.DELETE("/:id", admin, h.DeleteProduct)
		products.POST("/:id/restore", admin, h.RestoreProduct)
	}

	movements := router.Group("/api/inventory/movements")
	{
		movements.GET("", anyUser, h.GetMovements)
		movements.POST("", admin, h.AdjustStock)
	}
}

// GetProducts handles retrieving paginated products
// @Summary      Get products
// @Description  Retrieves a paginated list of products with current stock
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        page             query     int     false  "Page number (default 1)"
// @Param        limit            query     int     false  "Number of items per page (default 20)"
// @Param        search           query     string  false  "Search by name or SKU"
// @Param        low_stock        query     bool    false  "Only products at or below their threshold"
// @Param        include_deleted  query     bool    false  "Include soft-deleted products"
// @Success      200    {object}  response.Response{data=response.List}
// @Failure      500    {object}  response.Response
// @Router       /api/products [get]
func (h *InventoryHandler) GetProducts(c *gin.Context) {
	p := pagination.Parse(c)
	lowStock, _ := strconv.ParseBool(c.Query("low_stock"))
	includeDeleted, _ := strconv.ParseBool(c.Query("include_deleted"))

	products, total, err := h.productService.ListProducts(c.Request.Context(), service.ProductListRequest{
		Search:         c.Query("search"),
		LowStock:       lowStock,
		IncludeDeleted: includeDeleted,
		Page:           p.Page,
		Limit:          p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.List(products, total)))
}

// GetProduct returns one product
// @Summary      Get product
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response{data=service.ProductResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id} [get]
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// GetLowStock lists products at or below their low stock threshold with a
// suggested reorder quantity
// @Summary      Low stock report
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.LowStockResponse}
// @Router       /api/products/low-stock [get]
func (h *InventoryHandler) GetLowStock(c *gin.Context) {
	items, err := h.productService.ListLowStock(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// CreateProduct creates a new product and books its opening stock
// @Summary      Create product
// @Description  Creates a product; a positive opening stock is recorded as an INCREASE movement
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProductRequest  true  "Create Product Payload"
// @Success      201      {object}  response.Response{data=service.ProductResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/products [post]
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// UpdateProduct updates an existing product's metadata
// @Summary      Update product
// @Description  Updates product details; the request must carry the version it was read at
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Product ID"
// @Param        payload  body      service.UpdateProductRequest  true  "Update Product Payload"
// @Success      200      {object}  response.Response{data=service.ProductResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/products/{id} [put]
func (h *InventoryHandler) UpdateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// DeleteProduct removes a product entry softly
// @Summary      Delete product
// @Description  Soft deletes a product; refused while an open purchase order references it
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/products/{id} [delete]
func (h *InventoryHandler) DeleteProduct(c *gin.Context) {
	if err := h.productService.DeleteProduct(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Product deleted successfully"))
}

// RestoreProduct undoes a soft delete
// @Summary      Restore product
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response{data=service.ProductResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id}/restore [post]
func (h *InventoryHandler) RestoreProduct(c *gin.Context) {
	product, err := h.productService.RestoreProduct(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// AdjustStock books a manual stock movement
// @Summary      Adjust stock
// @Description  Records a manual INCREASE or DECREASE movement for a product
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AdjustStockRequest  true  "Adjustment"
// @Success      201      {object}  response.Response{data=service.MovementResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	movement, err := h.productService.AdjustStock(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, movement))
}

// GetMovements lists the stock ledger
// @Summary      List stock movements
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        product_id  query     string  false  "Filter by product"
// @Param        from        query     string  false  "From (RFC3339)"
// @Param        to          query     string  false  "To (RFC3339)"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200  {object}  response.Response{data=response.List}
// @Failure      400  {object}  response.Response
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	p := pagination.Parse(c)
	req := service.MovementListRequest{ProductID: c.Query("product_id"), Page: p.Page, Limit: p.Limit}

	for key, dst := range map[string]**time.Time{"from": &req.From, "to": &req.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid "+key+" format, expected RFC3339"))
			return
		}
		*dst = &t
	}

	movements, total, err := h.productService.ListMovements(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.List(movements, total)))
}
