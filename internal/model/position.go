package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is a holder's derived claim on one pair. It is recomputed from
// reserves and balances and never persisted.
type Position struct {
	Pair             common.Address `json:"pair"`
	Token0           Token          `json:"token0"`
	Token1           Token          `json:"token1"`
	LiquidityBalance *big.Int       `json:"liquidity_balance"`
	TotalShares      *big.Int       `json:"total_shares"`
	Reserve0         *big.Int       `json:"reserve0"`
	Reserve1         *big.Int       `json:"reserve1"`
	ShareBps         uint64         `json:"share_bps"`
	Underlying0      *big.Int       `json:"underlying0"`
	Underlying1      *big.Int       `json:"underlying1"`
}
