// Package quote implements constant-product quoting over pool reserve snapshots.
package quote

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapdesk/internal/model"
)

// Output is floor(amountIn * reserveOut / reserveIn) for a single pool.
//
// Protocol fees are not modeled here; callers that want them must supply
// fee-adjusted reserves.
func Output(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if isZero(amountIn) || isZero(reserveIn) || isZero(reserveOut) {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amountIn, reserveOut)
	return out.Quo(out, reserveIn)
}

// OptimalPairedAmount suggests the B-side deposit matching amountADesired at
// the pool's current price. An uninitialized pool has no price, so the
// caller sets both amounts freely and zero is returned.
func OptimalPairedAmount(amountADesired *big.Int, reserves model.PoolReserves) *big.Int {
	if !reserves.Initialized() || isZero(amountADesired) || isZero(reserves.ReserveA) {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amountADesired, reserves.ReserveB)
	return out.Quo(out, reserves.ReserveA)
}

// Hop is one pool along a path, with reserves in trade direction.
type Hop struct {
	TokenIn    common.Address
	TokenOut   common.Address
	ReserveIn  *big.Int
	ReserveOut *big.Int
}

// Compose runs Output along hops and returns the amount after every hop,
// starting with amountIn itself.
func Compose(amountIn *big.Int, hops []Hop) ([]*big.Int, error) {
	if len(hops) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	amounts := make([]*big.Int, 0, len(hops)+1)
	amounts = append(amounts, new(big.Int).Set(amountIn))
	current := amountIn
	for i, hop := range hops {
		if hop.TokenIn == hop.TokenOut {
			return nil, fmt.Errorf("hop %d %s: %w", i, hop.TokenIn.Hex(), model.ErrDegeneratePair)
		}
		current = Output(current, hop.ReserveIn, hop.ReserveOut)
		amounts = append(amounts, current)
	}
	return amounts, nil
}

// IsWrap reports whether the trade is a 1:1 native/wrapped-native conversion.
func IsWrap(tokenIn, tokenOut model.Token, wrapped common.Address) bool {
	if tokenIn.Native && !tokenOut.Native {
		return tokenOut.Address == wrapped
	}
	if tokenOut.Native && !tokenIn.Native {
		return tokenIn.Address == wrapped
	}
	return false
}

// CheckStale fails with model.ErrStaleQuote when a fresh quote no longer meets
// the minimum bound computed from an earlier one.
func CheckStale(amountOutMin, freshOut *big.Int) error {
	if freshOut == nil || amountOutMin == nil {
		return nil
	}
	if freshOut.Cmp(amountOutMin) < 0 {
		return fmt.Errorf("%w: fresh output %s below minimum %s", model.ErrStaleQuote, freshOut, amountOutMin)
	}
	return nil
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}
