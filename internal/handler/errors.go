package handler

import (
	"net/http"

	"erp/internal/apperror"
	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindNotFound:          http.StatusNotFound,
	apperror.KindValidation:        http.StatusBadRequest,
	apperror.KindOverReceipt:       http.StatusBadRequest,
	apperror.KindExceedsBalance:    http.StatusBadRequest,
	apperror.KindStockInsufficient: http.StatusConflict,
	apperror.KindInvalidState:      http.StatusConflict,
	apperror.KindConcurrency:       http.StatusConflict,
	apperror.KindUnauthorized:      http.StatusUnauthorized,
	apperror.KindForbidden:         http.StatusForbidden,
}

// respondError writes the envelope for a service error. Anything without a
// known kind is logged in full and reported as a bare 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	appErr, ok := apperror.As(err)
	status, known := http.StatusInternalServerError, false
	if ok {
		status, known = kindStatus[appErr.Kind]
	}
	if !known {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
		return
	}

	if status == http.StatusConflict {
		log.Warn("request conflict", zap.String("kind", string(appErr.Kind)), zap.String("path", c.FullPath()), zap.Error(err))
	}
	if appErr.Details != nil {
		c.JSON(status, response.ErrorWithDetails(status, appErr.Message, appErr.Details))
		return
	}
	c.JSON(status, response.Error(status, appErr.Message))
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
