// Package slippage derives trade bounds and deadlines from a basis-point
// tolerance.
package slippage

import (
	"fmt"
	"math/big"
	"time"

	"swapdesk/internal/model"
)

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

var bpsDenominator = big.NewInt(BpsDenominator)

// Validate rejects tolerances that would demand a zero or negative minimum.
func Validate(toleranceBps uint32) error {
	if toleranceBps >= BpsDenominator {
		return fmt.Errorf("%w: %d bps", model.ErrInvalidTolerance, toleranceBps)
	}
	return nil
}

// MinOut is floor(expectedOut * (10000 - bps) / 10000).
func MinOut(expectedOut *big.Int, toleranceBps uint32) (*big.Int, error) {
	if err := Validate(toleranceBps); err != nil {
		return nil, err
	}
	if expectedOut == nil || expectedOut.Sign() <= 0 {
		return new(big.Int), nil
	}
	out := new(big.Int).Mul(expectedOut, big.NewInt(int64(BpsDenominator-toleranceBps)))
	return out.Quo(out, bpsDenominator), nil
}

// MaxIn is ceil(expectedIn * (10000 + bps) / 10000), the bound for exact-output
// trades.
func MaxIn(expectedIn *big.Int, toleranceBps uint32) (*big.Int, error) {
	if err := Validate(toleranceBps); err != nil {
		return nil, err
	}
	if expectedIn == nil || expectedIn.Sign() <= 0 {
		return new(big.Int), nil
	}
	num := new(big.Int).Mul(expectedIn, big.NewInt(int64(BpsDenominator+toleranceBps)))
	q, r := new(big.Int).QuoRem(num, bpsDenominator, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

// LiquidityBounds computes independent minimums for both deposit sides.
// The protocol call fails atomically if either is not met.
func LiquidityBounds(amountA, amountB *big.Int, toleranceBps uint32) (minA, minB *big.Int, err error) {
	if minA, err = MinOut(amountA, toleranceBps); err != nil {
		return nil, nil, err
	}
	if minB, err = MinOut(amountB, toleranceBps); err != nil {
		return nil, nil, err
	}
	return minA, minB, nil
}

// Deadline is the absolute expiry (unix seconds) for an intent submitted at now.
// The protocol enforces it; the client only sets it.
func Deadline(now time.Time, window time.Duration) uint64 {
	return uint64(now.Add(window).Unix())
}
