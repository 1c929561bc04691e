package handler

import (
	"net/http"

	"erp/internal/middleware"
	"erp/internal/model"
	"erp/internal/service"
	"erp/pkg/pagination"
	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuditHandler struct {
	auditService service.AuditService
	guard        middleware.Guard
	log          *zap.Logger
}

func NewAuditHandler(auditService service.AuditService, guard middleware.Guard, log *zap.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, guard: guard, log: log}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.guard(model.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves paginated audit records, newest first
// @Summary      Get audit logs
// @Description  Every state-changing workflow writes one entry in the same transaction as the change
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action     query     string  false  "Filter by action, e.g. CREATE_ORDER"
// @Param        entity_id  query     string  false  "Filter by the affected entity"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.List}
// @Failure      403    {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("action"), c.Query("entity_id"), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.List(logs, total)))
}
