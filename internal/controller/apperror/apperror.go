package apperror

import "errors"

// ErrCurrencyNotConfigured means the shop has no Euro rate configured;
// provider settlement amounts cannot be converted without it.
var ErrCurrencyNotConfigured = errors.New("euro currency not configured")

var ErrCartNotFound = errors.New("cart not found")
