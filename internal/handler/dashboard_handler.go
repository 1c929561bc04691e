package handler

import (
	"net/http"
	"time"

	"erp/internal/middleware"
	"erp/internal/service"
	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
	guard            middleware.Guard
	log              *zap.Logger
}

func NewDashboardHandler(dashboardService service.DashboardService, guard middleware.Guard, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, guard: guard, log: log}
}

func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/dashboard", h.guard(), h.GetSummary)
}

// @Summary      Get dashboard summary
// @Description  Headline counts, revenue, outstanding balance and top selling products bounded by time
// @Tags         dashboard
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339), defaults to the first day of the current month"
// @Param        end_date   query string false "End Date (RFC3339), defaults to now"
// @Success      200 {object} response.Response{data=model.DashboardSummary}
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      401 {object} response.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /api/dashboard [get]
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	startDateStr := c.Query("start_date")
	endDateStr := c.Query("end_date")

	var startDate, endDate time.Time
	var err error

	// Default to current month if no dates are provided
	now := time.Now()
	if startDateStr == "" {
		startDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	} else {
		startDate, err = time.Parse(time.RFC3339, startDateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
			return
		}
	}

	if endDateStr == "" {
		endDate = now
	} else {
		endDate, err = time.Parse(time.RFC3339, endDateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
			return
		}
	}
	if endDate.Before(startDate) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "end_date must not be before start_date"))
		return
	}

	summary, err := h.dashboardService.GetSummary(c.Request.Context(), startDate, endDate)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
