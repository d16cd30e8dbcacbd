// Package readstate caches ledger reads (reserves, allowances, balances) and
// keeps them fresh through explicit invalidation and a periodic refetch.
package readstate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/model"
)

// DefaultRefreshInterval matches the allowance polling cadence.
const DefaultRefreshInterval = 10 * time.Second

// Source is the uncached ledger.
type Source interface {
	Reserves(ctx context.Context, tokenA, tokenB common.Address) (model.PoolReserves, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Balance(ctx context.Context, token model.Token, owner common.Address) (*big.Int, error)
}

type pairKey struct{ a, b common.Address }

type allowanceKey struct{ token, owner, spender common.Address }

type balanceKey struct {
	token string
	owner common.Address
}

// Cache is a read-through cache over Source. Values are snapshots; callers
// re-read after invalidation rather than trusting a stale entry.
type Cache struct {
	src    Source
	logger *zap.Logger

	reserves   *store[pairKey, model.PoolReserves]
	allowances *store[allowanceKey, *big.Int]
	balances   *store[balanceKey, *big.Int]
	tokens     *store[string, model.Token]
}

func New(src Source, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		src:        src,
		logger:     logger,
		reserves:   newStore[pairKey, model.PoolReserves](),
		allowances: newStore[allowanceKey, *big.Int](),
		balances:   newStore[balanceKey, *big.Int](),
		tokens:     newStore[string, model.Token](),
	}
}

// Reserves returns the pool snapshot for (tokenA, tokenB) in that order.
func (c *Cache) Reserves(ctx context.Context, tokenA, tokenB common.Address) (model.PoolReserves, error) {
	if r, ok := c.reserves.Get(pairKey{tokenA, tokenB}); ok {
		return r, nil
	}
	if r, ok := c.reserves.Get(pairKey{tokenB, tokenA}); ok {
		return r.Flip(), nil
	}
	return c.fetchReserves(ctx, tokenA, tokenB)
}

// fetch* helpers drop their result when the key was invalidated while the
// source read was in flight.
func (c *Cache) fetchReserves(ctx context.Context, tokenA, tokenB common.Address) (model.PoolReserves, error) {
	key := pairKey{tokenA, tokenB}
	gen := c.reserves.Gen(key)
	r, err := c.src.Reserves(ctx, tokenA, tokenB)
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("read reserves: %w", err)
	}
	if !c.reserves.SetIfGen(key, r, gen) {
		c.logger.Debug("dropped superseded reserves read", zap.Stringer("token_a", tokenA), zap.Stringer("token_b", tokenB))
	}
	return r, nil
}

// Allowance returns the cached allowance of spender over owner's token.
func (c *Cache) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	key := allowanceKey{token, owner, spender}
	if v, ok := c.allowances.Get(key); ok {
		return new(big.Int).Set(v), nil
	}
	return c.fetchAllowance(ctx, key)
}

func (c *Cache) fetchAllowance(ctx context.Context, key allowanceKey) (*big.Int, error) {
	gen := c.allowances.Gen(key)
	v, err := c.src.Allowance(ctx, key.token, key.owner, key.spender)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if !c.allowances.SetIfGen(key, v, gen) {
		c.logger.Debug("dropped superseded allowance read", zap.Stringer("token", key.token))
	}
	return new(big.Int).Set(v), nil
}

// Balance returns owner's cached balance of token.
func (c *Cache) Balance(ctx context.Context, token model.Token, owner common.Address) (*big.Int, error) {
	key := balanceKey{token.Key(), owner}
	if v, ok := c.balances.Get(key); ok {
		return new(big.Int).Set(v), nil
	}
	c.tokens.Set(token.Key(), token)
	return c.fetchBalance(ctx, token, owner)
}

func (c *Cache) fetchBalance(ctx context.Context, token model.Token, owner common.Address) (*big.Int, error) {
	key := balanceKey{token.Key(), owner}
	gen := c.balances.Gen(key)
	v, err := c.src.Balance(ctx, token, owner)
	if err != nil {
		return nil, fmt.Errorf("read balance %s: %w", token, err)
	}
	if !c.balances.SetIfGen(key, v, gen) {
		c.logger.Debug("dropped superseded balance read", zap.String("token", token.String()))
	}
	return new(big.Int).Set(v), nil
}

// InvalidateBalances drops owner's balances of tokens.
func (c *Cache) InvalidateBalances(owner common.Address, tokens ...model.Token) {
	for _, tok := range tokens {
		c.balances.Delete(balanceKey{tok.Key(), owner})
	}
}

// InvalidateAllowance drops one allowance entry.
func (c *Cache) InvalidateAllowance(token, owner, spender common.Address) {
	c.allowances.Delete(allowanceKey{token, owner, spender})
}

// InvalidateReserves drops the snapshot of the pool between two tokens.
func (c *Cache) InvalidateReserves(tokenA, tokenB common.Address) {
	c.reserves.Delete(pairKey{tokenA, tokenB})
	c.reserves.Delete(pairKey{tokenB, tokenA})
}

// InvalidatePair drops every reserve snapshot of pair.
func (c *Cache) InvalidatePair(pair common.Address) int {
	return c.reserves.DeleteFunc(func(_ pairKey, r model.PoolReserves) bool {
		return r.Pair == pair
	})
}

// Refresh refetches every cached entry. A failed refetch keeps the previous
// snapshot and is reported in the joined error.
func (c *Cache) Refresh(ctx context.Context) error {
	var errs []error
	for _, k := range c.allowances.Keys() {
		if _, err := c.fetchAllowance(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	for _, k := range c.reserves.Keys() {
		if _, err := c.fetchReserves(ctx, k.a, k.b); err != nil {
			errs = append(errs, err)
		}
	}
	for _, k := range c.balances.Keys() {
		tok, ok := c.tokens.Get(k.token)
		if !ok {
			continue
		}
		if _, err := c.fetchBalance(ctx, tok, k.owner); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run refreshes the cache every interval until ctx ends.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("state refresh failed", zap.Error(err))
			}
		}
	}
}
