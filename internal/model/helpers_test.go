package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func addr(hex string) common.Address {
	return common.HexToAddress(hex)
}

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}
