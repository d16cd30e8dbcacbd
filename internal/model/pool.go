package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolReserves is a snapshot of one pair's reserves ordered to the caller's
// (TokenA, TokenB) selection. TotalShares == 0 marks an uninitialized pool.
type PoolReserves struct {
	Pair        common.Address `json:"pair"`
	TokenA      common.Address `json:"token_a"`
	TokenB      common.Address `json:"token_b"`
	ReserveA    *big.Int       `json:"reserve_a"`
	ReserveB    *big.Int       `json:"reserve_b"`
	TotalShares *big.Int       `json:"total_shares"`
}

// Exists reports whether the factory returned a deployed pair.
func (p PoolReserves) Exists() bool {
	return p.Pair != (common.Address{})
}

// Initialized reports whether liquidity has ever been minted.
func (p PoolReserves) Initialized() bool {
	return p.TotalShares != nil && p.TotalShares.Sign() > 0
}

// Flip returns the same snapshot in (TokenB, TokenA) order.
func (p PoolReserves) Flip() PoolReserves {
	return PoolReserves{
		Pair:        p.Pair,
		TokenA:      p.TokenB,
		TokenB:      p.TokenA,
		ReserveA:    p.ReserveB,
		ReserveB:    p.ReserveA,
		TotalShares: p.TotalShares,
	}
}

// PairState is the raw pair view in token0/token1 order.
type PairState struct {
	Pair        common.Address `json:"pair"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Reserve0    *big.Int       `json:"reserve0"`
	Reserve1    *big.Int       `json:"reserve1"`
	TotalSupply *big.Int       `json:"total_supply"`
}

// Ordered maps the pair state to the caller's token order.
func (s PairState) Ordered(tokenA common.Address) PoolReserves {
	out := PoolReserves{
		Pair:        s.Pair,
		TokenA:      s.Token0,
		TokenB:      s.Token1,
		ReserveA:    s.Reserve0,
		ReserveB:    s.Reserve1,
		TotalShares: s.TotalSupply,
	}
	if s.Token0 != tokenA {
		return out.Flip()
	}
	return out
}
