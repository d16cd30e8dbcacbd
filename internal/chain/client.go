package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"swapdesk/internal/dex"
	"swapdesk/internal/model"
)

// Options tune read behavior.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client wraps go-ethereum RPC and exposes the pool, token and account reads
// the engine needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	addrs     dex.Addresses
	opts      Options
	tokens    *dex.TokenCache
	logger    *zap.Logger
}

// Dial creates a chain client from the RPC URL.
func Dial(ctx context.Context, rpcURL string, addrs dex.Addresses, opts Options, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w: %v", model.ErrNetworkUnavailable, err)
	}
	return NewClient(rpcClient, addrs, opts, logger), nil
}

// NewClient wraps an established RPC connection.
func NewClient(rpcClient *rpc.Client, addrs dex.Addresses, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		addrs:     addrs,
		opts:      opts,
		tokens:    dex.NewTokenCache(),
		logger:    logger,
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// RPC exposes the raw connection for wallets that submit through the node.
func (c *Client) RPC() *rpc.Client { return c.rpcClient }

// Addresses returns the configured router, factory and wrapped-native addresses.
func (c *Client) Addresses() dex.Addresses { return c.addrs }

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.retry(ctx, "chain id", func(ctx context.Context) error {
		var err error
		id, err = c.ethClient.ChainID(ctx)
		return err
	})
	return id, err
}

// CallContract performs an eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// PairFor returns the factory's pair for two tokens; the zero address means
// no pool exists yet.
func (c *Client) PairFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	factory, err := dex.FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := c.view(ctx, c.addrs.Factory, factory, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	return dex.AsAddress(values[0])
}

// PairState reads token order, reserves and LP supply of a pair.
func (c *Client) PairState(ctx context.Context, pair common.Address) (model.PairState, error) {
	pairABI, err := dex.PairABI()
	if err != nil {
		return model.PairState{}, fmt.Errorf("parse pair abi: %w", err)
	}
	state := model.PairState{Pair: pair}

	values, err := c.view(ctx, pair, pairABI, "token0")
	if err != nil {
		return model.PairState{}, err
	}
	if state.Token0, err = dex.AsAddress(values[0]); err != nil {
		return model.PairState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = c.view(ctx, pair, pairABI, "token1")
	if err != nil {
		return model.PairState{}, err
	}
	if state.Token1, err = dex.AsAddress(values[0]); err != nil {
		return model.PairState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = c.view(ctx, pair, pairABI, "getReserves")
	if err != nil {
		return model.PairState{}, err
	}
	if len(values) < 2 {
		return model.PairState{}, fmt.Errorf("getReserves: unexpected values: %d", len(values))
	}
	if state.Reserve0, err = dex.AsBigInt(values[0]); err != nil {
		return model.PairState{}, fmt.Errorf("reserve0: %w", err)
	}
	if state.Reserve1, err = dex.AsBigInt(values[1]); err != nil {
		return model.PairState{}, fmt.Errorf("reserve1: %w", err)
	}

	values, err = c.view(ctx, pair, pairABI, "totalSupply")
	if err != nil {
		return model.PairState{}, err
	}
	if state.TotalSupply, err = dex.AsBigInt(values[0]); err != nil {
		return model.PairState{}, fmt.Errorf("total supply: %w", err)
	}
	return state, nil
}

// Reserves resolves the pair for (tokenA, tokenB) and returns its reserves in
// that order. A missing pool yields zero reserves and a zero Pair.
func (c *Client) Reserves(ctx context.Context, tokenA, tokenB common.Address) (model.PoolReserves, error) {
	pair, err := c.PairFor(ctx, tokenA, tokenB)
	if err != nil {
		return model.PoolReserves{}, err
	}
	if pair == (common.Address{}) {
		return model.PoolReserves{
			TokenA:      tokenA,
			TokenB:      tokenB,
			ReserveA:    new(big.Int),
			ReserveB:    new(big.Int),
			TotalShares: new(big.Int),
		}, nil
	}
	state, err := c.PairState(ctx, pair)
	if err != nil {
		return model.PoolReserves{}, err
	}
	return state.Ordered(tokenA), nil
}

// AllPairs enumerates every pair the factory has created.
func (c *Client) AllPairs(ctx context.Context) ([]common.Address, error) {
	factory, err := dex.FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := c.view(ctx, c.addrs.Factory, factory, "allPairsLength")
	if err != nil {
		return nil, err
	}
	length, err := dex.AsBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("all pairs length: %w", err)
	}
	if !length.IsUint64() {
		return nil, fmt.Errorf("all pairs length overflows: %s", length)
	}

	n := length.Uint64()
	pairs := make([]common.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		values, err := c.view(ctx, c.addrs.Factory, factory, "allPairs", new(big.Int).SetUint64(i))
		if err != nil {
			return nil, fmt.Errorf("all pairs %d: %w", i, err)
		}
		pair, err := dex.AsAddress(values[0])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// Allowance reads the ERC20 allowance of spender over owner's balance.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	erc20, err := dex.ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := c.view(ctx, token, erc20, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return dex.AsBigInt(values[0])
}

// BalanceOf reads an ERC20 (or LP) balance.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	erc20, err := dex.ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := c.view(ctx, token, erc20, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return dex.AsBigInt(values[0])
}

// NativeBalance reads the account's native balance.
func (c *Client) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.retry(ctx, "native balance", func(ctx context.Context) error {
		var err error
		balance, err = c.ethClient.BalanceAt(ctx, owner, nil)
		return err
	})
	return balance, err
}

// Balance reads the balance of any token, native included.
func (c *Client) Balance(ctx context.Context, token model.Token, owner common.Address) (*big.Int, error) {
	if token.Native {
		return c.NativeBalance(ctx, owner)
	}
	return c.BalanceOf(ctx, token.Address, owner)
}

// Token returns cached token metadata, fetching it on first use.
func (c *Client) Token(ctx context.Context, address common.Address) (model.Token, error) {
	if tok, ok := c.tokens.Get(address); ok {
		return tok, nil
	}
	tok, err := dex.FetchToken(ctx, c, address, c.logger)
	if err != nil {
		return tok, fmt.Errorf("token metadata %s: %w", address.Hex(), err)
	}
	c.tokens.Set(address, tok)
	return tok, nil
}

// TransactionReceipt returns the receipt, or ethereum.NotFound while pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.ethClient.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		return nil, classify(err)
	}
	return receipt, nil
}

func (c *Client) view(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	var values []interface{}
	err := c.retry(ctx, method, func(ctx context.Context) error {
		var err error
		values, err = dex.CallView(ctx, c, contract, parsed, method, args...)
		return err
	})
	return values, err
}

// retry repeats transport failures only; contract errors surface immediately.
func (c *Client) retry(ctx context.Context, what string, fn func(context.Context) error) error {
	retryable := func(err error) bool {
		if !errors.Is(err, model.ErrNetworkUnavailable) {
			return false
		}
		c.logger.Debug("rpc read failed", zap.String("call", what), zap.Error(err))
		return true
	}
	err := withRetry(ctx, c.opts.MaxRetries, c.opts.RetryBackoff, retryable, func(ctx context.Context) error {
		return classify(fn(ctx))
	})
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
