package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
)

// Invalidator drops cached reads so the next access refetches them.
type Invalidator interface {
	InvalidateBalances(owner common.Address, tokens ...model.Token)
	InvalidateAllowance(token, owner, spender common.Address)
	InvalidateReserves(tokenA, tokenB common.Address)
	InvalidatePair(pair common.Address) int
}

// InputClearer resets the user's input for a slot.
type InputClearer interface {
	ClearInput(slot string)
}

// Effects applies the consequences of a confirmed transaction to the read
// caches. A failed lifecycle leaves every cache untouched.
type Effects struct {
	cache   Invalidator
	account common.Address
	weth    common.Address
	clearer InputClearer
	logger  *zap.Logger
}

func NewEffects(cache Invalidator, account, weth common.Address, clearer InputClearer, logger *zap.Logger) *Effects {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Effects{cache: cache, account: account, weth: weth, clearer: clearer, logger: logger}
}

func (x *Effects) OnConfirmed(e lifecycle.Event) {
	in := e.Intent
	// Gas always moves the native balance.
	touched := append([]model.Token{model.NativeToken}, in.Touches()...)
	x.cache.InvalidateBalances(x.account, touched...)

	if it, ok := in.(model.ApproveIntent); ok {
		x.cache.InvalidateAllowance(it.Token.Address, x.account, it.Spender)
	}
	pairs := 0
	if in.ChangesPool() {
		pairs = x.invalidatePools(in)
	}

	x.logger.Debug("caches invalidated",
		zap.String("slot", e.Slot),
		zap.String("kind", string(in.Kind())),
		zap.Int("tokens", len(touched)),
		zap.Int("pairs", pairs),
	)
	if in.Primary() && x.clearer != nil {
		x.clearer.ClearInput(e.Slot)
	}
}

func (x *Effects) OnFailed(e lifecycle.Event) {
	x.logger.Debug("lifecycle failed, caches kept",
		zap.String("slot", e.Slot),
		zap.Error(e.Err),
	)
}

// invalidatePools drops the reserve snapshots of the pools the intent moves.
func (x *Effects) invalidatePools(in model.Intent) int {
	pairs := 0
	switch it := in.(type) {
	case model.SwapIntent:
		path := it.Path
		if len(path) == 0 {
			path = []common.Address{x.route(it.TokenIn), x.route(it.TokenOut)}
		}
		for i := 0; i+1 < len(path); i++ {
			pairs += x.invalidateReserves(path[i], path[i+1])
		}
	case model.AddLiquidityIntent:
		pairs += x.invalidateReserves(x.route(it.TokenA), x.route(it.TokenB))
	case model.RemoveLiquidityIntent:
		pairs += x.invalidateReserves(x.route(it.TokenA), x.route(it.TokenB))
		pairs += x.cache.InvalidatePair(it.Pair)
	}
	return pairs
}

func (x *Effects) invalidateReserves(a, b common.Address) int {
	if a == b {
		return 0
	}
	x.cache.InvalidateReserves(a, b)
	return 1
}

func (x *Effects) route(t model.Token) common.Address {
	if t.Native {
		return x.weth
	}
	return t.Address
}
