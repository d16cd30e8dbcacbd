package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/model"
)

var (
	testAddrs = Addresses{
		Router:  common.HexToAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d"),
		Factory: common.HexToAddress("0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"),
		WETH:    common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
	}
	daiToken  = model.ERC20(common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"), "DAI", 18)
	usdcToken = model.ERC20(common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), "USDC", 6)
	wethToken = model.ERC20(testAddrs.WETH, "WETH", 18)
	recipient = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func unpackArgs(t *testing.T, parsed abi.ABI, call Call) []interface{} {
	t.Helper()
	method, err := parsed.MethodById(call.Data[:4])
	require.NoError(t, err)
	require.Equal(t, call.Method, method.Name)
	args, err := method.Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	return args
}

func TestEncodeSwapRoutes(t *testing.T) {
	router, err := RouterABI()
	require.NoError(t, err)

	base := model.SwapIntent{
		AmountIn:     big.NewInt(1_000),
		AmountOutMin: big.NewInt(900),
		Recipient:    recipient,
		Deadline:     1_700_000_300,
	}

	tests := []struct {
		name   string
		in     model.Token
		out    model.Token
		method string
		value  int64
		path   []common.Address
	}{
		{"tokens", daiToken, usdcToken, "swapExactTokensForTokens", 0, []common.Address{daiToken.Address, usdcToken.Address}},
		{"native in", model.NativeToken, usdcToken, "swapExactETHForTokens", 1_000, []common.Address{testAddrs.WETH, usdcToken.Address}},
		{"native out", daiToken, model.NativeToken, "swapExactTokensForETH", 0, []common.Address{daiToken.Address, testAddrs.WETH}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			intent := base
			intent.TokenIn, intent.TokenOut = tc.in, tc.out

			call, err := Encode(intent, testAddrs)
			require.NoError(t, err)
			assert.Equal(t, testAddrs.Router, call.To)
			assert.Equal(t, tc.method, call.Method)
			assert.Equal(t, tc.value, call.Value.Int64())

			args := unpackArgs(t, router, call)
			assert.Contains(t, args, tc.path)
			assert.Contains(t, args, recipient)
		})
	}
}

func TestEncodeSwapUsesQuotedPath(t *testing.T) {
	path := []common.Address{daiToken.Address, testAddrs.WETH, usdcToken.Address}
	call, err := Encode(model.SwapIntent{
		TokenIn: daiToken, TokenOut: usdcToken,
		AmountIn: big.NewInt(5), AmountOutMin: big.NewInt(1),
		Path: path, Recipient: recipient, Deadline: 1,
	}, testAddrs)
	require.NoError(t, err)

	router, _ := RouterABI()
	args := unpackArgs(t, router, call)
	assert.Equal(t, path, args[2])
}

func TestEncodeWrapUnwrap(t *testing.T) {
	weth, err := WETHABI()
	require.NoError(t, err)

	wrap, err := Encode(model.SwapIntent{
		TokenIn: model.NativeToken, TokenOut: wethToken,
		AmountIn: big.NewInt(42), AmountOutMin: big.NewInt(42),
	}, testAddrs)
	require.NoError(t, err)
	assert.Equal(t, "deposit", wrap.Method)
	assert.Equal(t, testAddrs.WETH, wrap.To)
	assert.Equal(t, int64(42), wrap.Value.Int64())

	unwrap, err := Encode(model.SwapIntent{
		TokenIn: wethToken, TokenOut: model.NativeToken,
		AmountIn: big.NewInt(42), AmountOutMin: big.NewInt(42),
	}, testAddrs)
	require.NoError(t, err)
	assert.Equal(t, "withdraw", unwrap.Method)
	assert.Zero(t, unwrap.Value.Sign())
	args := unpackArgs(t, weth, unwrap)
	assert.Equal(t, big.NewInt(42), args[0])
}

func TestEncodeAddLiquidity(t *testing.T) {
	router, _ := RouterABI()
	intent := model.AddLiquidityIntent{
		TokenA: daiToken, TokenB: usdcToken,
		AmountADesired: big.NewInt(100), AmountBDesired: big.NewInt(200),
		AmountAMin: big.NewInt(99), AmountBMin: big.NewInt(198),
		Recipient: recipient, Deadline: 10,
	}

	call, err := Encode(intent, testAddrs)
	require.NoError(t, err)
	assert.Equal(t, "addLiquidity", call.Method)

	intent.TokenA = model.NativeToken
	call, err = Encode(intent, testAddrs)
	require.NoError(t, err)
	assert.Equal(t, "addLiquidityETH", call.Method)
	assert.Equal(t, int64(100), call.Value.Int64())
	args := unpackArgs(t, router, call)
	assert.Equal(t, usdcToken.Address, args[0])
	assert.Equal(t, big.NewInt(200), args[1])
	assert.Equal(t, big.NewInt(198), args[2])
	assert.Equal(t, big.NewInt(99), args[3])

	intent.TokenB = model.NativeToken
	_, err = Encode(intent, testAddrs)
	require.ErrorIs(t, err, model.ErrUnsupportedPair)
}

func TestEncodeRemoveLiquidity(t *testing.T) {
	router, _ := RouterABI()
	pair := common.HexToAddress("0x2222222222222222222222222222222222222222")
	intent := model.RemoveLiquidityIntent{
		TokenA: wethToken, TokenB: daiToken, Pair: pair,
		Liquidity:  big.NewInt(50),
		AmountAMin: big.NewInt(1), AmountBMin: big.NewInt(2),
		Recipient: recipient, Deadline: 10,
	}

	call, err := Encode(intent, testAddrs)
	require.NoError(t, err)
	assert.Equal(t, "removeLiquidity", call.Method)

	intent.UnwrapNative = true
	call, err = Encode(intent, testAddrs)
	require.NoError(t, err)
	assert.Equal(t, "removeLiquidityETH", call.Method)
	args := unpackArgs(t, router, call)
	assert.Equal(t, daiToken.Address, args[0])
	assert.Equal(t, big.NewInt(2), args[2])
	assert.Equal(t, big.NewInt(1), args[3])
}

func TestEncodeApprove(t *testing.T) {
	erc20, _ := ERC20ABI()
	call, err := Encode(model.ApproveIntent{Token: daiToken, Spender: testAddrs.Router, Amount: big.NewInt(7)}, testAddrs)
	require.NoError(t, err)
	assert.Equal(t, daiToken.Address, call.To)
	args := unpackArgs(t, erc20, call)
	assert.Equal(t, testAddrs.Router, args[0])
	assert.Equal(t, big.NewInt(7), args[1])

	_, err = Encode(model.ApproveIntent{Token: model.NativeToken, Spender: testAddrs.Router, Amount: big.NewInt(7)}, testAddrs)
	require.Error(t, err)
}
