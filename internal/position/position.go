// Package position values LP share balances against pool reserves.
package position

import (
	"math/big"

	"swapdesk/internal/model"
)

var bpsDenominator = big.NewInt(10_000)

// ShareBps is floor(liquidityBalance * 10000 / totalShares), 0 for an empty pool.
func ShareBps(liquidityBalance, totalShares *big.Int) uint64 {
	if isZero(totalShares) || isZero(liquidityBalance) {
		return 0
	}
	share := new(big.Int).Mul(liquidityBalance, bpsDenominator)
	share.Quo(share, totalShares)
	if !share.IsUint64() {
		return 0
	}
	return share.Uint64()
}

// Underlying is floor(reserve * liquidityBalance / totalShares). Rounding
// always favors the pool so a holder's claim is never over-reported.
func Underlying(reserve, liquidityBalance, totalShares *big.Int) *big.Int {
	if isZero(totalShares) || isZero(reserve) || isZero(liquidityBalance) {
		return new(big.Int)
	}
	out := new(big.Int).Mul(reserve, liquidityBalance)
	return out.Quo(out, totalShares)
}

// Compute derives a Position from a pair snapshot and an LP balance.
func Compute(state model.PairState, token0, token1 model.Token, liquidityBalance *big.Int) model.Position {
	balance := new(big.Int)
	if liquidityBalance != nil {
		balance.Set(liquidityBalance)
	}
	return model.Position{
		Pair:             state.Pair,
		Token0:           token0,
		Token1:           token1,
		LiquidityBalance: balance,
		TotalShares:      orZero(state.TotalSupply),
		Reserve0:         orZero(state.Reserve0),
		Reserve1:         orZero(state.Reserve1),
		ShareBps:         ShareBps(balance, state.TotalSupply),
		Underlying0:      Underlying(state.Reserve0, balance, state.TotalSupply),
		Underlying1:      Underlying(state.Reserve1, balance, state.TotalSupply),
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}
