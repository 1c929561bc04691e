package handler

import (
	"net/http"
	"strconv"

	"erp/internal/apperror"
	"erp/internal/middleware"
	"erp/internal/model"
	"erp/internal/service"
	"erp/pkg/pagination"
	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PurchaseOrderHandler struct {
	poService service.PurchaseOrderService
	guard     middleware.Guard
	log       *zap.Logger
}

func NewPurchaseOrderHandler(poService service.PurchaseOrderService, guard middleware.Guard, log *zap.Logger) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{poService: poService, guard: guard, log: log}
}

func (h *PurchaseOrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	pos := router.Group("/api/purchase-orders")
	pos.Use(h.guard())
	{
		pos.GET("", h.ListPurchaseOrders)
		pos.POST("", h.CreatePurchaseOrder)
		pos.GET("/overdue", h.ListOverduePurchaseOrders)
		pos.GET("/summary", h.GetSummary)
		pos.GET("/reorder-suggestions", h.ReorderSuggestions)
		pos.GET("/:id", h.GetPurchaseOrder)
		pos.PUT("/:id", h.UpdatePurchaseOrder)
		pos.DELETE("/:id", h.DeletePurchaseOrder)
		pos.POST("/:id/send", h.SendPurchaseOrder)
		pos.POST("/:id/confirm", h.ConfirmPurchaseOrder)
		pos.POST("/:id/receive", h.ReceiveItems)
		pos.POST("/:id/cancel", h.guard(model.RoleAdmin), h.CancelPurchaseOrder)
	}
}

// ListPurchaseOrders returns purchase orders newest first
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        status       query     string  false  "DRAFT, SENT, CONFIRMED, PARTIALLY_RECEIVED, RECEIVED or CANCELLED"
// @Param        supplier_id  query     string  false  "Filter by supplier"
// @Param        search       query     string  false  "Search by order number or supplier reference"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=response.List}
// @Failure      400          {object}  response.Response
// @Router       /api/purchase-orders [get]
func (h *PurchaseOrderHandler) ListPurchaseOrders(c *gin.Context) {
	p := pagination.Parse(c)
	orders, total, err := h.poService.ListPurchaseOrders(c.Request.Context(), service.PurchaseOrderListRequest{
		Status:     c.Query("status"),
		SupplierID: c.Query("supplier_id"),
		Search:     c.Query("search"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.List(orders, total)))
}

// @Summary      List overdue purchase orders
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.OverduePurchaseOrderResponse}
// @Router       /api/purchase-orders/overdue [get]
func (h *PurchaseOrderHandler) ListOverduePurchaseOrders(c *gin.Context) {
	orders, err := h.poService.ListOverduePurchaseOrders(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, orders))
}

// @Summary      Purchase order summary
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.PurchaseOrderSummaryResponse}
// @Router       /api/purchase-orders/summary [get]
func (h *PurchaseOrderHandler) GetSummary(c *gin.Context) {
	summary, err := h.poService.GetSummary(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// ReorderSuggestions proposes quantities to restock, priced at the preferred supplier
// @Summary      Reorder suggestions
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        threshold  query     int  false  "Stock level to reorder below; defaults to each product's low-stock threshold"
// @Success      200        {object}  response.Response{data=[]service.ReorderSuggestionResponse}
// @Failure      400        {object}  response.Response
// @Router       /api/purchase-orders/reorder-suggestions [get]
func (h *PurchaseOrderHandler) ReorderSuggestions(c *gin.Context) {
	threshold := 0
	if raw := c.Query("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, h.log, apperror.Validation("threshold must be an integer"))
			return
		}
		threshold = n
	}
	items, err := h.poService.ReorderSuggestions(c.Request.Context(), threshold)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// CreatePurchaseOrder drafts a purchase order for an active supplier
// @Summary      Create purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.PurchaseOrderRequest  true  "Purchase order"
// @Success      201      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/purchase-orders [post]
func (h *PurchaseOrderHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.PurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	po, err := h.poService.CreatePurchaseOrder(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, po))
}

// @Summary      Get purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.poService.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// UpdatePurchaseOrder replaces a draft's header and lines
// @Summary      Update purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Purchase order ID"
// @Param        payload  body      service.PurchaseOrderRequest  true  "Purchase order"
// @Success      200      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/purchase-orders/{id} [put]
func (h *PurchaseOrderHandler) UpdatePurchaseOrder(c *gin.Context) {
	var req service.PurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	po, err := h.poService.UpdatePurchaseOrder(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// @Summary      Delete draft purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/purchase-orders/{id} [delete]
func (h *PurchaseOrderHandler) DeletePurchaseOrder(c *gin.Context) {
	if err := h.poService.DeletePurchaseOrder(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Purchase order deleted successfully"))
}

// @Summary      Send purchase order to supplier
// @Tags         purchase-orders
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/purchase-orders/{id}/send [post]
func (h *PurchaseOrderHandler) SendPurchaseOrder(c *gin.Context) {
	po, err := h.poService.SendPurchaseOrder(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// ConfirmPurchaseOrder records the supplier's acceptance. The body is optional.
// @Summary      Confirm purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Param        id       path      string                               true   "Purchase order ID"
// @Param        payload  body      service.ConfirmPurchaseOrderRequest  false  "Supplier reference and delivery date"
// @Success      200      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/purchase-orders/{id}/confirm [post]
func (h *PurchaseOrderHandler) ConfirmPurchaseOrder(c *gin.Context) {
	var req service.ConfirmPurchaseOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	po, err := h.poService.ConfirmPurchaseOrder(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// ReceiveItems books delivered quantities into stock
// @Summary      Receive purchase order items
// @Description  Applies every line of the batch or none of them. Receiving more than is outstanding on a line is rejected.
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                               true  "Purchase order ID"
// @Param        payload  body      service.ReceivePurchaseOrderRequest  true  "Received quantities per line"
// @Success      200      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/purchase-orders/{id}/receive [post]
func (h *PurchaseOrderHandler) ReceiveItems(c *gin.Context) {
	var req service.ReceivePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	po, err := h.poService.ReceiveItems(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// CancelPurchaseOrder cancels the order and takes back any stock it put on hand
// @Summary      Cancel purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Param        id       path      string                              true   "Purchase order ID"
// @Param        payload  body      service.CancelPurchaseOrderRequest  false  "Reason"
// @Success      200      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response{details=apperror.StockShortage}
// @Router       /api/purchase-orders/{id}/cancel [post]
func (h *PurchaseOrderHandler) CancelPurchaseOrder(c *gin.Context) {
	var req service.CancelPurchaseOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	po, err := h.poService.CancelPurchaseOrder(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}
