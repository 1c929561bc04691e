package handler

import (
	"net/http"
	"strconv"

	"erp/internal/middleware"
	"erp/internal/model"
	"erp/internal/service"
	"erp/pkg/pagination"
	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PartnerHandler serves both sides of the business: customers, suppliers and
// the products each supplier offers.
type PartnerHandler struct {
	customerService service.CustomerService
	supplierService service.SupplierService
	linkService     service.ProductSupplierService
	guard           middleware.Guard
	log             *zap.Logger
}

func NewPartnerHandler(
	customerService service.CustomerService,
	supplierService service.SupplierService,
	linkService service.ProductSupplierService,
	guard middleware.Guard,
	log *zap.Logger,
) *PartnerHandler {
	return &PartnerHandler{
		customerService: customerService,
		supplierService: supplierService,
		linkService:     linkService,
		guard:           guard,
		log:             log,
	}
}

func (h *PartnerHandler) RegisterRoutes(router *gin.RouterGroup) {
	customers := router.Group("/api/customers")
	customers.Use(h.guard())
	{
		customers.GET("", h.ListCustomers)
		customers.GET("/:id", h.GetCustomer)
		customers.POST("", h.CreateCustomer)
		customers.PUT("/:id", h.UpdateCustomer)
		customers.DELETE("/:id", h.DeleteCustomer)
	}

	suppliers := router.Group("/api/suppliers")
	suppliers.Use(h.guard())
	{
		suppliers.GET("", h.ListSuppliers)
		suppliers.GET("/:id", h.GetSupplier)
		suppliers.POST("", h.CreateSupplier)
		suppliers.PUT("/:id", h.UpdateSupplier)
		suppliers.DELETE("/:id", h.guard(model.RoleAdmin), h.DeleteSupplier)
		suppliers.POST("/:id/restore", h.guard(model.RoleAdmin), h.RestoreSupplier)
		suppliers.GET("/:id/products", h.ListSupplierProducts)
	}

	router.GET("/api/products/:id/suppliers", h.guard(), h.ListProductSuppliers)

	links := router.Group("/api/product-suppliers")
	links.Use(h.guard())
	{
		links.POST("", h.AssignSupplier)
		links.GET("/:id", h.GetProductSupplier)
		links.PUT("/:id", h.UpdateProductSupplier)
		links.DELETE("/:id", h.guard(model.RoleAdmin), h.DeleteProductSupplier)
	}
}

// ListCustomers returns paginated customers
// @Summary      List customers
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        search  query     string  false  "Search by name or email"
// @Success      200     {object}  response.Response{data=response.List}
// @Router       /api/customers [get]
func (h *PartnerHandler) ListCustomers(c *gin.Context) {
	p := pagination.Parse(c)
	customers, total, err := h.customerService.ListCustomers(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.List(customers, total)))
}

// @Summary      Get customer
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string  true  "Customer ID"
// @Success      200  {object}  response.Response{data=service.CustomerResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/customers/{id} [get]
func (h *PartnerHandler) GetCustomer(c *gin.Context) {
	customer, err := h.customerService.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, customer))
}

// @Summary      Create customer
// @Tags         partners
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CustomerRequest  true  "Customer payload"
// @Success      201  {object}  response.Response{data=service.CustomerResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/customers [post]
func (h *PartnerHandler) CreateCustomer(c *gin.Context) {
	var req service.CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	customer, err := h.customerService.CreateCustomer(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, customer))
}

// @Summary      Update customer
// @Tags         partners
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                   true  "Customer ID"
// @Param        payload  body  service.CustomerRequest  true  "Customer payload"
// @Success      200  {object}  response.Response{data=service.CustomerResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/customers/{id} [put]
func (h *PartnerHandler) UpdateCustomer(c *gin.Context) {
	var req service.CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	customer, err := h.customerService.UpdateCustomer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, customer))
}

// @Summary      Delete customer
// @Tags         partners
// @Security     BearerAuth
// @Param        id   path  string  true  "Customer ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/customers/{id} [delete]
func (h *PartnerHandler) DeleteCustomer(c *gin.Context) {
	if err := h.customerService.DeleteCustomer(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Customer deleted successfully"))
}

// ListSuppliers returns paginated suppliers
// @Summary      List suppliers
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        page             query  int     false  "Page number (default: 1)"
// @Param        limit            query  int     false  "Items per page (default: 20)"
// @Param        search           query  string  false  "Search by name, contact or email"
// @Param        active           query  bool    false  "Only active suppliers"
// @Param        include_deleted  query  bool    false  "Include soft-deleted suppliers"
// @Success      200     {object}  response.Response{data=response.List}
// @Router       /api/suppliers [get]
func (h *PartnerHandler) ListSuppliers(c *gin.Context) {
	p := pagination.Parse(c)
	activeOnly, _ := strconv.ParseBool(c.Query("active"))
	includeDeleted, _ := strconv.ParseBool(c.Query("include_deleted"))

	suppliers, total, err := h.supplierService.ListSuppliers(c.Request.Context(), service.SupplierListRequest{
		Search:         c.Query("search"),
		ActiveOnly:     activeOnly,
		IncludeDeleted: includeDeleted,
		Page:           p.Page,
		Limit:          p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.List(suppliers, total)))
}

// @Summary      Get supplier
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=service.SupplierResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/suppliers/{id} [get]
func (h *PartnerHandler) GetSupplier(c *gin.Context) {
	supplier, err := h.supplierService.GetSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, supplier))
}

// @Summary      Create supplier
// @Tags         partners
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateSupplierRequest  true  "Supplier payload"
// @Success      201  {object}  response.Response{data=service.SupplierResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/suppliers [post]
func (h *PartnerHandler) CreateSupplier(c *gin.Context) {
	var req service.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	supplier, err := h.supplierService.CreateSupplier(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, supplier))
}

// UpdateSupplier applies a partial update; omitted fields keep their value.
// @Summary      Update supplier
// @Tags         partners
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                         true  "Supplier ID"
// @Param        payload  body  service.UpdateSupplierRequest  true  "Supplier payload"
// @Success      200  {object}  response.Response{data=service.SupplierResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/suppliers/{id} [put]
func (h *PartnerHandler) UpdateSupplier(c *gin.Context) {
	var req service.UpdateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	supplier, err := h.supplierService.UpdateSupplier(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, supplier))
}

// @Summary      Delete supplier
// @Tags         partners
// @Security     BearerAuth
// @Param        id   path  string  true  "Supplier ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/suppliers/{id} [delete]
func (h *PartnerHandler) DeleteSupplier(c *gin.Context) {
	if err := h.supplierService.DeleteSupplier(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Supplier deleted successfully"))
}

// @Summary      Restore supplier
// @Tags         partners
// @Security     BearerAuth
// @Param        id   path  string  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=service.SupplierResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/suppliers/{id}/restore [post]
func (h *PartnerHandler) RestoreSupplier(c *gin.Context) {
	supplier, err := h.supplierService.RestoreSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, supplier))
}

// @Summary      List products offered by a supplier
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=[]service.ProductSupplierResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/suppliers/{id}/products [get]
func (h *PartnerHandler) ListSupplierProducts(c *gin.Context) {
	links, err := h.linkService.ListProductsBySupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, links))
}

// ListProductSuppliers returns the suppliers of a product, preferred first then cheapest.
// @Summary      List suppliers of a product
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string  true  "Product ID"
// @Success      200  {object}  response.Response{data=[]service.ProductSupplierResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id}/suppliers [get]
func (h *PartnerHandler) ListProductSuppliers(c *gin.Context) {
	links, err := h.linkService.ListSuppliersByProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, links))
}

// @Summary      Link a supplier to a product
// @Tags         partners
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.AssignSupplierRequest  true  "Link payload"
// @Success      201  {object}  response.Response{data=service.ProductSupplierResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/product-suppliers [post]
func (h *PartnerHandler) AssignSupplier(c *gin.Context) {
	var req service.AssignSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	link, err := h.linkService.AssignSupplier(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, link))
}

// @Summary      Get product supplier link
// @Tags         partners
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string  true  "Link ID"
// @Success      200  {object}  response.Response{data=service.ProductSupplierResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/product-suppliers/{id} [get]
func (h *PartnerHandler) GetProductSupplier(c *gin.Context) {
	link, err := h.linkService.GetLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, link))
}

// @Summary      Update product supplier link
// @Tags         partners
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                                true  "Link ID"
// @Param        payload  body  service.UpdateProductSupplierRequest  true  "Fields to change"
// @Success      200  {object}  response.Response{data=service.ProductSupplierResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/product-suppliers/{id} [put]
func (h *PartnerHandler) UpdateProductSupplier(c *gin.Context) {
	var req service.UpdateProductSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	link, err := h.linkService.UpdateLink(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, link))
}

// @Summary      Remove product supplier link
// @Tags         partners
// @Security     BearerAuth
// @Param        id   path  string  true  "Link ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/product-suppliers/{id} [delete]
func (h *PartnerHandler) DeleteProductSupplier(c *gin.Context) {
	if err := h.linkService.DeleteLink(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Supplier unlinked successfully"))
}
