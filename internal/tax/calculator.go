package tax

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultRate is the flat sales tax (IVA) applied when no rate is configured.
var DefaultRate = decimal.RequireFromString("0.12")

// Calculator applies a single flat rate. Results are rounded to two decimal
// places, half away from zero.
type Calculator struct {
	rate decimal.Decimal
}

func NewCalculator(rate decimal.Decimal) (*Calculator, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate must be between 0 and 1, got %s", rate)
	}
	return &Calculator{rate: rate}, nil
}

func (c *Calculator) Rate() decimal.Decimal { return c.rate }

// Tax returns the tax owed on amount. Negative amounts yield zero.
func (c *Calculator) Tax(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Mul(c.rate).Round(2)
}

// SubtotalFromTotal recovers the pre-tax amount from a tax-inclusive total.
func (c *Calculator) SubtotalFromTotal(total decimal.Decimal) decimal.Decimal {
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(1).Add(c.rate)).Round(2)
}
