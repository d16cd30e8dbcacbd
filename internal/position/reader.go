package position

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/model"
)

// Ledger is the read capability the position reader needs.
type Ledger interface {
	AllPairs(ctx context.Context) ([]common.Address, error)
	PairState(ctx context.Context, pair common.Address) (model.PairState, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// TokenResolver returns token metadata, falling back to placeholders on failure.
type TokenResolver interface {
	Token(ctx context.Context, address common.Address) (model.Token, error)
}

// Reader lists the positions an owner holds across factory pairs.
type Reader struct {
	ledger Ledger
	tokens TokenResolver
	logger *zap.Logger
}

func NewReader(ledger Ledger, tokens TokenResolver, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{ledger: ledger, tokens: tokens, logger: logger}
}

// Positions returns positions with a non-zero LP balance. When pairs is empty
// the factory's full pair list is scanned.
func (r *Reader) Positions(ctx context.Context, owner common.Address, pairs []common.Address) ([]model.Position, error) {
	if len(pairs) == 0 {
		all, err := r.ledger.AllPairs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list pairs: %w", err)
		}
		pairs = all
	}

	out := make([]model.Position, 0)
	for _, pair := range pairs {
		balance, err := r.ledger.BalanceOf(ctx, pair, owner)
		if err != nil {
			r.logger.Warn("lp balance fetch failed", zap.String("pair", pair.Hex()), zap.Error(err))
			continue
		}
		if balance.Sign() == 0 {
			continue
		}
		state, err := r.ledger.PairState(ctx, pair)
		if err != nil {
			r.logger.Warn("pair state fetch failed", zap.String("pair", pair.Hex()), zap.Error(err))
			continue
		}
		token0 := r.resolve(ctx, state.Token0, "T0")
		token1 := r.resolve(ctx, state.Token1, "T1")
		out = append(out, Compute(state, token0, token1, balance))
	}
	return out, nil
}

func (r *Reader) resolve(ctx context.Context, address common.Address, placeholder string) model.Token {
	if r.tokens != nil {
		tok, err := r.tokens.Token(ctx, address)
		if err == nil {
			return tok
		}
		r.logger.Debug("token metadata fetch failed", zap.String("token", address.Hex()), zap.Error(err))
	}
	return model.ERC20(address, placeholder, 18)
}
