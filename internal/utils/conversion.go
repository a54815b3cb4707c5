/*
This file contains helpers for moving token amounts between raw on-chain units
(arbitrary precision integers) and human readable decimal values.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInvalidDecimals  = errors.New("token decimals are invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// MaxDecimals is the largest precision supported by LegacyDec.
const MaxDecimals = 18

// AmountToFloat64 converts raw token units into a decimal value, e.g. 1_500_000 with 6 decimals is 1.5.
func AmountToFloat64(amount sdkmath.Int, decimals int) (float64, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return 0, fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidDecimals, decimals, MaxDecimals)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	value, err := sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(decimals)).Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, value)
	}
	return value, nil
}

// Float64ToAmount converts a decimal value into raw token units, truncating below the token precision.
func Float64ToAmount(value float64, decimals int) (sdkmath.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidDecimals, decimals, MaxDecimals)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, value)
	}
	if value < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if value == 0 {
		return sdkmath.ZeroInt(), nil
	}

	// Go through the string form so the float's binary noise is cut at the token precision.
	dec, err := sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(value, 'f', decimals, 64))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return dec.MulInt(sdkmath.NewIntWithDecimal(1, decimals)).TruncateInt(), nil
}

// FormatAmount renders raw units for humans, falling back to the raw integer when conversion fails.
func FormatAmount(amount sdkmath.Int, decimals int, symbol string) string {
	if amount.IsNil() {
		return "0 " + symbol
	}
	value, err := AmountToFloat64(amount, decimals)
	if err != nil {
		return amount.String() + " " + symbol
	}
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + symbol
}
