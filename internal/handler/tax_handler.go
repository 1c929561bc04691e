package handler

import (
	"net/http"

	"erp/internal/middleware"
	"erp/internal/tax"
	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TaxQuote is the breakdown returned for an amount.
type TaxQuote struct {
	Rate     decimal.Decimal `json:"rate"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type TaxHandler struct {
	calc  *tax.Calculator
	guard middleware.Guard
}

func NewTaxHandler(calc *tax.Calculator, guard middleware.Guard) *TaxHandler {
	return &TaxHandler{calc: calc, guard: guard}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/tax/quote", h.guard(), h.Quote)
}

// Quote prices an amount with the configured rate. With inclusive=true the
// amount is treated as a tax-inclusive total and split back into its parts.
// @Summary      Tax quote
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Param        amount     query     string  true   "Amount, e.g. 30.00"
// @Param        inclusive  query     bool    false  "Amount already includes tax"
// @Success      200  {object}  response.Response{data=handler.TaxQuote}
// @Failure      400  {object}  response.Response
// @Router       /api/tax/quote [get]
func (h *TaxHandler) Quote(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || amount.IsNegative() {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "amount must be a non-negative number"))
		return
	}

	var subtotal, taxAmount, total decimal.Decimal
	if c.Query("inclusive") == "true" {
		total = amount.Round(2)
		subtotal = h.calc.SubtotalFromTotal(total)
		taxAmount = total.Sub(subtotal)
	} else {
		subtotal = amount.Round(2)
		taxAmount = h.calc.Tax(subtotal)
		total = subtotal.Add(taxAmount)
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, TaxQuote{
		Rate:     h.calc.Rate(),
		Subtotal: subtotal,
		Tax:      taxAmount,
		Total:    total,
	}))
}
