package currency

import (
	"context"
	"errors"
	"testing"

	"molliebridge/internal/controller/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func converter(t *testing.T) (*Converter, *MockRateSource) {
	t.Helper()

	ctrl := gomock.NewController(t)
	rates := NewMockRateSource(ctrl)
	return NewConverter(rates), rates
}

func TestConverter_Convert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("should only round when source and target currency match", func(t *testing.T) {
		// given
		c, rates := converter(t)
		rates.EXPECT().Rate(ctx, "EUR").Return(decimal.NewFromInt(1), true, nil)

		// when
		got, err := c.Convert(ctx, decimal.RequireFromString("10.005"), "EUR", "EUR")

		// then
		require.NoError(t, err)
		assert.Equal(t, "10.01", got.StringFixed(2))
	})

	t.Run("should refuse a same-currency conversion when the rate is not configured", func(t *testing.T) {
		// given
		c, rates := converter(t)
		rates.EXPECT().Rate(ctx, "EUR").Return(decimal.Zero, false, nil)

		// when
		_, err := c.Convert(ctx, decimal.NewFromInt(5), "EUR", "EUR")

		// then
		assert.ErrorIs(t, err, apperror.ErrCurrencyNotConfigured)
	})

	t.Run("should convert through the shop default currency", func(t *testing.T) {
		// given: rates against the shop default, EUR at 1.0, USD at 1.0895
		c, rates := converter(t)
		rates.EXPECT().Rate(ctx, "EUR").Return(decimal.NewFromInt(1), true, nil)
		rates.EXPECT().Rate(ctx, "USD").Return(decimal.RequireFromString("1.0895"), true, nil)

		// when
		got, err := c.Convert(ctx, decimal.RequireFromString("100.00"), "EUR", "USD")

		// then
		require.NoError(t, err)
		assert.Equal(t, "108.95", got.StringFixed(2))
	})

	t.Run("should round half away from zero to two decimals", func(t *testing.T) {
		// given
		c, rates := converter(t)
		rates.EXPECT().Rate(ctx, "EUR").Return(decimal.NewFromInt(1), true, nil)
		rates.EXPECT().Rate(ctx, "GBP").Return(decimal.RequireFromString("0.8575"), true, nil)

		// when: 19.99 * 0.8575 = 17.141425
		got, err := c.Convert(ctx, decimal.RequireFromString("19.99"), "EUR", "GBP")

		// then
		require.NoError(t, err)
		assert.Equal(t, "17.14", got.StringFixed(2))
	})

	t.Run("should report the source currency as not configured when its rate is missing", func(t *testing.T) {
		// given
		c, rates := converter(t)
		rates.EXPECT().Rate(ctx, "EUR").Return(decimal.Zero, false, nil)

		// when
		_, err := c.Convert(ctx, decimal.NewFromInt(5), "EUR", "USD")

		// then
		assert.ErrorIs(t, err, apperror.ErrCurrencyNotConfigured)
	})

	t.Run("should treat a zero rate as not configured", func(t *testing.T) {
		// given
		c, rates := converter(t)
		rates.EXPECT().Rate(ctx, "EUR").Return(decimal.Zero, true, nil)

		// when
		_, err := c.Convert(ctx, decimal.NewFromInt(5), "EUR", "USD")

		// then
		assert.ErrorIs(t, err, apperror.ErrCurrencyNotConfigured)
	})

	t.Run("should fail plainly when the target rate is missing", func(t *testing.T) {
		// given
		c, rates := converter(t)
		rates.EXPECT().Rate(ctx, "EUR").Return(decimal.NewFromInt(1), true, nil)
		rates.EXPECT().Rate(ctx, "XXX").Return(decimal.Zero, false, nil)

		// when
		_, err := c.Convert(ctx, decimal.NewFromInt(5), "EUR", "XXX")

		// then
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperror.ErrCurrencyNotConfigured)
	})

	t.Run("should wrap lookup failures", func(t *testing.T) {
		// given
		c, rates := converter(t)
		rates.EXPECT().Rate(ctx, "EUR").Return(decimal.Zero, false, errors.New("connection reset"))

		// when
		_, err := c.Convert(ctx, decimal.NewFromInt(5), "EUR", "USD")

		// then
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperror.ErrCurrencyNotConfigured)
	})
}
