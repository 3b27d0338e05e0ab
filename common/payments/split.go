// Package payments collects order payments and pays businesses out through Stripe.
package payments

import (
	"errors"
	"fmt"

	"podmarket/common/app"

	"github.com/shopspring/decimal"
)

var ErrNegativePayout = errors.New("payout would be negative")

var hundred = decimal.NewFromInt(100)

// Split is how a storefront order's gross amount is divided, in cents.
type Split struct {
	GrossCents       int64 `json:"gross_cents"`
	ProductionCents  int64 `json:"production_cents"`
	PlatformFeeCents int64 `json:"platform_fee_cents"`
	PayoutCents      int64 `json:"payout_cents"`
}

// FeePercent reads PLATFORM_FEE_PERCENT, 10 when unset.
func FeePercent() (decimal.Decimal, error) {
	raw := app.EnvString("PLATFORM_FEE_PERCENT", "10")
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid PLATFORM_FEE_PERCENT %q:\n>>> %w", raw, err)
	}
	return pct, nil
}

// ComputeSplit takes the platform fee (rounded half up to the cent) and the production cost out of gross.
func ComputeSplit(grossCents, productionCents int64, feePercent decimal.Decimal) (Split, error) {
	if feePercent.IsNegative() || feePercent.GreaterThan(hundred) {
		return Split{}, fmt.Errorf("platform fee percent must be between 0 and 100, got %s", feePercent)
	}
	if grossCents < 0 || productionCents < 0 {
		return Split{}, fmt.Errorf("amounts must not be negative: gross %d, production %d", grossCents, productionCents)
	}
	fee := decimal.NewFromInt(grossCents).Mul(feePercent).Div(hundred).Round(0).IntPart()
	split := Split{
		GrossCents:       grossCents,
		ProductionCents:  productionCents,
		PlatformFeeCents: fee,
		PayoutCents:      grossCents - productionCents - fee,
	}
	if split.PayoutCents < 0 {
		return split, fmt.Errorf("%w: gross %d, production %d, fee %d", ErrNegativePayout, grossCents, productionCents, fee)
	}
	return split, nil
}
