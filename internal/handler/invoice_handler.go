package handler

import (
	"net/http"

	"erp/internal/middleware"
	"erp/internal/service"
	"erp/pkg/pagination"
	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	guard          middleware.Guard
	log            *zap.Logger
}

func NewInvoiceHandler(invoiceService service.InvoiceService, guard middleware.Guard, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, guard: guard, log: log}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	invoices.Use(h.guard())
	{
		invoices.GET("", h.ListInvoices)
		invoices.POST("", h.CreateInvoice)
		invoices.POST("/from-order", h.CreateInvoiceFromOrder)
		invoices.GET("/overdue", h.ListOverdueInvoices)
		invoices.GET("/summary", h.GetSummary)
		invoices.GET("/:id", h.GetInvoice)
		invoices.PUT("/:id", h.UpdateInvoice)
		invoices.DELETE("/:id", h.DeleteInvoice)
		invoices.POST("/:id/send", h.SendInvoice)
		invoices.POST("/:id/cancel", h.CancelInvoice)
		invoices.GET("/:id/payments", h.ListPayments)
		invoices.POST("/:id/payments", h.AddPayment)
		invoices.DELETE("/:id/payments/:paymentId", h.DeletePayment)
	}
}

// ListInvoices returns paginated invoices with optional filters
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status       query  string  false  "DRAFT, SENT, PAID or CANCELLED"
// @Param        customer_id  query  string  false  "Filter by customer"
// @Param        search       query  string  false  "Search by invoice number"
// @Param        page         query  int     false  "Page number (default 1)"
// @Param        limit        query  int     false  "Items per page (default 20)"
// @Success      200  {object}  response.Response{data=response.List}
// @Failure      400  {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), service.InvoiceFilter{
		Status:     c.Query("status"),
		CustomerID: c.Query("customer_id"),
		Search:     c.Query("search"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.List(invoices, total)))
}

// ListOverdueInvoices returns unpaid invoices past their due date, oldest first
// @Summary      List overdue invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.OverdueInvoiceResponse}
// @Router       /api/invoices/overdue [get]
func (h *InvoiceHandler) ListOverdueInvoices(c *gin.Context) {
	invoices, err := h.invoiceService.ListOverdueInvoices(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// @Summary      Invoice summary
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.InvoiceSummaryResponse}
// @Router       /api/invoices/summary [get]
func (h *InvoiceHandler) GetSummary(c *gin.Context) {
	summary, err := h.invoiceService.GetSummary(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// CreateInvoice creates a draft invoice from free-form lines
// @Summary      Create invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateInvoiceRequest  true  "Invoice payload"
// @Success      201  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inv, err := h.invoiceService.CreateInvoice(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, inv))
}

// CreateInvoiceFromOrder bills an existing sales order
// @Summary      Create invoice from order
// @Description  Copies the order lines onto a new draft invoice. An order can be invoiced once.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateInvoiceFromOrderRequest  true  "Order reference"
// @Success      201  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/from-order [post]
func (h *InvoiceHandler) CreateInvoiceFromOrder(c *gin.Context) {
	var req service.CreateInvoiceFromOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inv, err := h.invoiceService.CreateInvoiceFromOrder(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, inv))
}

// GetInvoice returns a single invoice by ID
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	inv, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// UpdateInvoice edits a draft invoice
// @Summary      Update invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                        true  "Invoice ID"
// @Param        payload  body  service.UpdateInvoiceRequest  true  "Fields to change"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req service.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inv, err := h.invoiceService.UpdateInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// @Summary      Delete invoice
// @Tags         invoices
// @Security     BearerAuth
// @Param        id   path  string  true  "Invoice ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Invoice deleted successfully"))
}

// @Summary      Send invoice
// @Tags         invoices
// @Security     BearerAuth
// @Param        id   path  string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/send [post]
func (h *InvoiceHandler) SendInvoice(c *gin.Context) {
	inv, err := h.invoiceService.SendInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// @Summary      Cancel invoice
// @Tags         invoices
// @Security     BearerAuth
// @Param        id   path  string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/cancel [post]
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	inv, err := h.invoiceService.CancelInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// @Summary      List payments of an invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.PaymentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	payments, err := h.invoiceService.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payments))
}

// AddPayment records a payment against a sent invoice
// @Summary      Add payment
// @Description  The amount may not exceed the balance due. The invoice becomes PAID when the balance reaches zero.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                     true  "Invoice ID"
// @Param        payload  body  service.AddPaymentRequest  true  "Payment"
// @Success      201  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/payments [post]
func (h *InvoiceHandler) AddPayment(c *gin.Context) {
	var req service.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inv, err := h.invoiceService.AddPayment(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, inv))
}

// @Summary      Delete payment
// @Tags         invoices
// @Security     BearerAuth
// @Param        id         path  string  true  "Invoice ID"
// @Param        paymentId  path  string  true  "Payment ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/payments/{paymentId} [delete]
func (h *InvoiceHandler) DeletePayment(c *gin.Context) {
	inv, err := h.invoiceService.DeletePayment(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Param("paymentId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}
