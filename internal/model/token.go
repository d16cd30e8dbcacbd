package model

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the precision of the chain's native asset.
const NativeDecimals = 18

// Token identifies an ERC20 token or the chain's native asset.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name,omitempty"`
	Decimals uint8          `json:"decimals"`
	Native   bool           `json:"native,omitempty"`
}

// NativeToken is the sentinel for the native asset. It has no contract address
// and bypasses metadata lookups.
var NativeToken = Token{Symbol: "ETH", Name: "Ether", Decimals: NativeDecimals, Native: true}

// ERC20 builds a token reference from an address and its metadata.
func ERC20(address common.Address, symbol string, decimals uint8) Token {
	return Token{Address: address, Symbol: symbol, Decimals: decimals}
}

// Same reports whether both values reference the same asset.
func (t Token) Same(other Token) bool {
	if t.Native || other.Native {
		return t.Native == other.Native
	}
	return t.Address == other.Address
}

// Key is a stable cache key for the token.
func (t Token) Key() string {
	if t.Native {
		return "native"
	}
	return strings.ToLower(t.Address.Hex())
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	if t.Native {
		return "native"
	}
	return t.Address.Hex()
}

// TokenAmount is an unsigned base-unit amount tagged with its token precision.
type TokenAmount struct {
	Value    *big.Int `json:"value"`
	Decimals uint8    `json:"decimals"`
}

// NewTokenAmount copies value so the caller can keep mutating its own int.
func NewTokenAmount(value *big.Int, decimals uint8) TokenAmount {
	v := new(big.Int)
	if value != nil {
		v.Set(value)
	}
	return TokenAmount{Value: v, Decimals: decimals}
}

// IsZero reports whether the amount is nil or zero.
func (a TokenAmount) IsZero() bool {
	return a.Value == nil || a.Value.Sign() == 0
}
