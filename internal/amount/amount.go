// Package amount converts between human decimal strings and integer base units.
// All arithmetic is exact; no floating point is used anywhere in the pipeline.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"swapdesk/internal/model"
)

var (
	ten = big.NewInt(10)

	// 10^dec for the common ERC20 range.
	scales [19]*big.Int
)

func init() {
	scales[0] = big.NewInt(1)
	for i := 1; i < len(scales); i++ {
		scales[i] = new(big.Int).Mul(scales[i-1], ten)
	}
}

// Pow10 returns 10^decimals. The result must not be modified.
func Pow10(decimals uint8) *big.Int {
	if int(decimals) < len(scales) {
		return scales[decimals]
	}
	return new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
}

// ToBaseUnits scales a decimal string by 10^decimals.
//
// Empty or unparseable input yields zero so that partially typed values keep
// the quote pipeline alive. Negative values fail with model.ErrInvalidAmount.
// Digits beyond the token precision are truncated toward zero.
func ToBaseUnits(input string, decimals uint8) (*big.Int, error) {
	d, ok := parse(input)
	if !ok {
		return new(big.Int), nil
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %q", model.ErrInvalidAmount, input)
	}
	return d.Shift(int32(decimals)).BigInt(), nil
}

// ParseStrict is the validating counterpart of ToBaseUnits. It rejects empty
// input, malformed numbers, negatives, and precision the token cannot hold.
func ParseStrict(input string, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty value", model.ErrInvalidAmount)
	}
	d, ok := parse(trimmed)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a number", model.ErrInvalidAmount, input)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %q", model.ErrInvalidAmount, input)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", model.ErrInvalidAmount, input, decimals)
	}
	return scaled.BigInt(), nil
}

func parse(input string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.ContainsAny(trimmed, "eE") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ToDecimalString renders base units as a decimal string without trailing
// zeros. It is the exact inverse of ToBaseUnits for non-negative values.
func ToDecimalString(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}

	abs := new(big.Int).Abs(value)
	whole, frac := new(big.Int).QuoRem(abs, Pow10(decimals), new(big.Int))

	text := whole.String()
	if frac.Sign() != 0 {
		fracText := frac.String()
		fracText = strings.Repeat("0", int(decimals)-len(fracText)) + fracText
		text += "." + strings.TrimRight(fracText, "0")
	}
	if value.Sign() < 0 {
		return "-" + text
	}
	return text
}

// Format renders a TokenAmount using its own precision.
func Format(a model.TokenAmount) string {
	return ToDecimalString(a.Value, a.Decimals)
}
