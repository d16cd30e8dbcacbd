package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"swapdesk/internal/model"
)

// Addresses are the deployed contracts intents are routed through.
type Addresses struct {
	Router  common.Address
	Factory common.Address
	WETH    common.Address
}

// Call is an unsigned contract call ready for a wallet.
type Call struct {
	To     common.Address
	Method string
	Data   []byte
	Value  *big.Int
}

// Encode chooses the contract entry point for intent and packs its calldata.
func Encode(intent model.Intent, addrs Addresses) (Call, error) {
	switch in := intent.(type) {
	case model.ApproveIntent:
		return encodeApprove(in)
	case model.SwapIntent:
		return encodeSwap(in, addrs)
	case model.AddLiquidityIntent:
		return encodeAddLiquidity(in, addrs)
	case model.RemoveLiquidityIntent:
		return encodeRemoveLiquidity(in, addrs)
	default:
		return Call{}, fmt.Errorf("encode intent: unsupported type %T", intent)
	}
}

func encodeApprove(in model.ApproveIntent) (Call, error) {
	if in.Token.Native {
		return Call{}, fmt.Errorf("encode approve: native asset has no allowance")
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return Call{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return pack(parsed, in.Token.Address, nil, "approve", in.Spender, in.Amount)
}

func encodeSwap(in model.SwapIntent, addrs Addresses) (Call, error) {
	switch {
	case in.TokenIn.Native && !in.TokenOut.Native && in.TokenOut.Address == addrs.WETH:
		parsed, err := WETHABI()
		if err != nil {
			return Call{}, fmt.Errorf("parse weth abi: %w", err)
		}
		return pack(parsed, addrs.WETH, in.AmountIn, "deposit")
	case in.TokenOut.Native && !in.TokenIn.Native && in.TokenIn.Address == addrs.WETH:
		parsed, err := WETHABI()
		if err != nil {
			return Call{}, fmt.Errorf("parse weth abi: %w", err)
		}
		return pack(parsed, addrs.WETH, nil, "withdraw", in.AmountIn)
	case in.TokenIn.Native && in.TokenOut.Native:
		return Call{}, fmt.Errorf("encode swap: %w", model.ErrDegeneratePair)
	}

	path := in.Path
	if len(path) == 0 {
		path = []common.Address{routeAddress(in.TokenIn, addrs.WETH), routeAddress(in.TokenOut, addrs.WETH)}
	}
	if len(path) < 2 {
		return Call{}, fmt.Errorf("encode swap: path needs two tokens, got %d", len(path))
	}

	parsed, err := RouterABI()
	if err != nil {
		return Call{}, fmt.Errorf("parse router abi: %w", err)
	}
	deadline := new(big.Int).SetUint64(in.Deadline)
	switch {
	case in.TokenIn.Native:
		return pack(parsed, addrs.Router, in.AmountIn, "swapExactETHForTokens",
			in.AmountOutMin, path, in.Recipient, deadline)
	case in.TokenOut.Native:
		return pack(parsed, addrs.Router, nil, "swapExactTokensForETH",
			in.AmountIn, in.AmountOutMin, path, in.Recipient, deadline)
	default:
		return pack(parsed, addrs.Router, nil, "swapExactTokensForTokens",
			in.AmountIn, in.AmountOutMin, path, in.Recipient, deadline)
	}
}

func encodeAddLiquidity(in model.AddLiquidityIntent, addrs Addresses) (Call, error) {
	if in.TokenA.Native && in.TokenB.Native {
		return Call{}, fmt.Errorf("encode add liquidity: %w", model.ErrUnsupportedPair)
	}
	parsed, err := RouterABI()
	if err != nil {
		return Call{}, fmt.Errorf("parse router abi: %w", err)
	}
	deadline := new(big.Int).SetUint64(in.Deadline)
	switch {
	case in.TokenA.Native:
		return pack(parsed, addrs.Router, in.AmountADesired, "addLiquidityETH",
			in.TokenB.Address, in.AmountBDesired, in.AmountBMin, in.AmountAMin, in.Recipient, deadline)
	case in.TokenB.Native:
		return pack(parsed, addrs.Router, in.AmountBDesired, "addLiquidityETH",
			in.TokenA.Address, in.AmountADesired, in.AmountAMin, in.AmountBMin, in.Recipient, deadline)
	default:
		return pack(parsed, addrs.Router, nil, "addLiquidity",
			in.TokenA.Address, in.TokenB.Address, in.AmountADesired, in.AmountBDesired,
			in.AmountAMin, in.AmountBMin, in.Recipient, deadline)
	}
}

// encodeRemoveLiquidity pays out native when asked to unwrap, or when the
// caller selected the native asset itself as one side.
func encodeRemoveLiquidity(in model.RemoveLiquidityIntent, addrs Addresses) (Call, error) {
	if in.TokenA.Native && in.TokenB.Native {
		return Call{}, fmt.Errorf("encode remove liquidity: %w", model.ErrUnsupportedPair)
	}
	parsed, err := RouterABI()
	if err != nil {
		return Call{}, fmt.Errorf("parse router abi: %w", err)
	}
	deadline := new(big.Int).SetUint64(in.Deadline)

	aIsNative := in.TokenA.Native || (in.UnwrapNative && in.TokenA.Address == addrs.WETH)
	bIsNative := in.TokenB.Native || (in.UnwrapNative && in.TokenB.Address == addrs.WETH)
	switch {
	case bIsNative:
		return pack(parsed, addrs.Router, nil, "removeLiquidityETH",
			in.TokenA.Address, in.Liquidity, in.AmountAMin, in.AmountBMin, in.Recipient, deadline)
	case aIsNative:
		return pack(parsed, addrs.Router, nil, "removeLiquidityETH",
			in.TokenB.Address, in.Liquidity, in.AmountBMin, in.AmountAMin, in.Recipient, deadline)
	default:
		return pack(parsed, addrs.Router, nil, "removeLiquidity",
			in.TokenA.Address, in.TokenB.Address, in.Liquidity,
			in.AmountAMin, in.AmountBMin, in.Recipient, deadline)
	}
}

func pack(parsed abi.ABI, to common.Address, value *big.Int, method string, args ...interface{}) (Call, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	return Call{To: to, Method: method, Data: data, Value: new(big.Int).Set(value)}, nil
}

func routeAddress(tok model.Token, weth common.Address) common.Address {
	if tok.Native {
		return weth
	}
	return tok.Address
}
