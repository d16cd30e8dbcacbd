package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// IntentKind names a user-initiated action.
type IntentKind string

const (
	KindApprove         IntentKind = "approve"
	KindSwap            IntentKind = "swap"
	KindAddLiquidity    IntentKind = "add_liquidity"
	KindRemoveLiquidity IntentKind = "remove_liquidity"
)

// Intent is an immutable description of one value-moving or approval action.
type Intent interface {
	Kind() IntentKind
	// Primary intents clear the user's input when they confirm.
	Primary() bool
	// Touches lists every token whose balance may change.
	Touches() []Token
	// ChangesPool reports whether pool reserves or share supply may change.
	ChangesPool() bool
}

// ApproveIntent grants Spender an allowance over Token.
type ApproveIntent struct {
	Token   Token
	Spender common.Address
	Amount  *big.Int
}

func (ApproveIntent) Kind() IntentKind { return KindApprove }
func (ApproveIntent) Primary() bool { return false }
func (i ApproveIntent) Touches() []Token { return []Token{i.Token} }
func (ApproveIntent) ChangesPool() bool { return false }

// SwapIntent sells an exact AmountIn for at least AmountOutMin.
type SwapIntent struct {
	TokenIn      Token
	TokenOut     Token
	AmountIn     *big.Int
	AmountOutMin *big.Int
	// Path is the router path with the native asset mapped to its wrapped
	// form. Empty means a direct hop between TokenIn and TokenOut.
	Path      []common.Address
	Recipient common.Address
	Deadline  uint64
}

func (SwapIntent) Kind() IntentKind { return KindSwap }
func (SwapIntent) Primary() bool { return true }
func (i SwapIntent) Touches() []Token { return []Token{i.TokenIn, i.TokenOut} }
func (SwapIntent) ChangesPool() bool { return true }

// AddLiquidityIntent deposits both sides of a pair.
type AddLiquidityIntent struct {
	TokenA         Token
	TokenB         Token
	AmountADesired *big.Int
	AmountBDesired *big.Int
	AmountAMin     *big.Int
	AmountBMin     *big.Int
	Recipient      common.Address
	Deadline       uint64
}

func (AddLiquidityIntent) Kind() IntentKind { return KindAddLiquidity }
func (AddLiquidityIntent) Primary() bool { return true }
func (i AddLiquidityIntent) Touches() []Token { return []Token{i.TokenA, i.TokenB} }
func (AddLiquidityIntent) ChangesPool() bool { return true }

// RemoveLiquidityIntent burns Liquidity LP tokens of Pair.
type RemoveLiquidityIntent struct {
	TokenA       Token
	TokenB       Token
	Pair         common.Address
	Liquidity    *big.Int
	AmountAMin   *big.Int
	AmountBMin   *big.Int
	Recipient    common.Address
	Deadline     uint64
	UnwrapNative bool
}

func (RemoveLiquidityIntent) Kind() IntentKind { return KindRemoveLiquidity }
func (RemoveLiquidityIntent) Primary() bool { return true }

func (i RemoveLiquidityIntent) Touches() []Token {
	return []Token{i.TokenA, i.TokenB, LPToken(i.Pair)}
}

func (RemoveLiquidityIntent) ChangesPool() bool { return true }

// LPToken is the pair's liquidity share token.
func LPToken(pair common.Address) Token {
	return Token{Address: pair, Symbol: "LP", Decimals: 18}
}
