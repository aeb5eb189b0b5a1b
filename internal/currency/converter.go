// Package currency converts provider settlement amounts into shop currencies.
package currency

import (
	"context"
	"fmt"

	"molliebridge/internal/controller/apperror"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source converter.go -destination mock_converter.go -package currency

// RateSource looks up a currency's conversion rate relative to the shop
// default currency. ok is false when the currency is not configured.
type RateSource interface {
	Rate(ctx context.Context, iso string) (rate decimal.Decimal, ok bool, err error)
}

// Converter converts amounts between configured currencies. Results are
// rounded to 2 decimals, half away from zero.
type Converter struct {
	rates RateSource
}

func NewConverter(rates RateSource) *Converter {
	return &Converter{rates: rates}
}

const roundPlaces = 2

func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	// The source rate is checked even for same-currency conversions: a shop
	// without the settlement currency configured must refuse the payment
	// whatever currency the cart happens to use.
	fromRate, ok, err := c.rates.Rate(ctx, from)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate for %s: %w", from, err)
	}
	if !ok || fromRate.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s", apperror.ErrCurrencyNotConfigured, from)
	}

	if from == to {
		return amount.Round(roundPlaces), nil
	}

	toRate, ok, err := c.rates.Rate(ctx, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate for %s: %w", to, err)
	}
	if !ok || toRate.IsZero() {
		return decimal.Zero, fmt.Errorf("no conversion rate for %s", to)
	}

	// Rates are expressed against the shop default currency, so convert
	// through it: amount / fromRate * toRate.
	converted := amount.Div(fromRate).Mul(toRate)
	return converted.Round(roundPlaces), nil
}
