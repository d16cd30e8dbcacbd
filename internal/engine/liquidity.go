package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapdesk/internal/approval"
	"swapdesk/internal/config"
	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
	"swapdesk/internal/position"
	"swapdesk/internal/quote"
	"swapdesk/internal/slippage"
)

// AddLiquidityRequest deposits AmountA of TokenA. A nil AmountB is derived
// from current reserves; a new pool needs both amounts since the deposit sets
// its initial price.
type AddLiquidityRequest struct {
	TokenA    model.Token
	TokenB    model.Token
	AmountA   *big.Int
	AmountB   *big.Int
	Recipient common.Address
}

type AddLiquidityPlan struct {
	Settings  config.Settings
	Reserves  model.PoolReserves
	NewPool   bool
	Intent    model.AddLiquidityIntent
	Approvals []approval.Step
}

// PlanAddLiquidity validates the pair before any read, then sizes both sides.
func (e *Engine) PlanAddLiquidity(ctx context.Context, req AddLiquidityRequest) (AddLiquidityPlan, error) {
	s := e.settings()
	if err := approval.ValidatePair(req.TokenA, req.TokenB, e.addrs.WETH); err != nil {
		return AddLiquidityPlan{}, err
	}
	if !positive(req.AmountA) {
		return AddLiquidityPlan{}, fmt.Errorf("plan add liquidity: %w", model.ErrInvalidAmount)
	}

	reserves, err := e.reads.Reserves(ctx, e.route(req.TokenA), e.route(req.TokenB))
	if err != nil {
		return AddLiquidityPlan{}, fmt.Errorf("plan add liquidity: %w", err)
	}
	newPool := !reserves.Initialized()

	amountB := req.AmountB
	if amountB == nil {
		if newPool {
			return AddLiquidityPlan{}, fmt.Errorf("%w: new pool needs both amounts", model.ErrInvalidAmount)
		}
		amountB = quote.OptimalPairedAmount(req.AmountA, reserves)
	}
	if !positive(amountB) {
		return AddLiquidityPlan{}, fmt.Errorf("plan add liquidity: paired %w", model.ErrInvalidAmount)
	}

	minA, minB, err := slippage.LiquidityBounds(req.AmountA, amountB, s.SlippageBps)
	if err != nil {
		return AddLiquidityPlan{}, err
	}
	if err := e.requireBalance(ctx, req.TokenA, req.AmountA); err != nil {
		return AddLiquidityPlan{}, err
	}
	if err := e.requireBalance(ctx, req.TokenB, amountB); err != nil {
		return AddLiquidityPlan{}, err
	}

	steps, err := e.approvals.Plan(ctx, e.account, e.addrs.Router, s.ApprovalPolicy,
		approval.Side{Slot: SlotApproveA, Token: req.TokenA, Required: req.AmountA},
		approval.Side{Slot: SlotApproveB, Token: req.TokenB, Required: amountB},
	)
	if err != nil {
		return AddLiquidityPlan{}, fmt.Errorf("plan add liquidity approvals: %w", err)
	}
	return AddLiquidityPlan{
		Settings: s,
		Reserves: reserves,
		NewPool:  newPool,
		Intent: model.AddLiquidityIntent{
			TokenA:         req.TokenA,
			TokenB:         req.TokenB,
			AmountADesired: new(big.Int).Set(req.AmountA),
			AmountBDesired: new(big.Int).Set(amountB),
			AmountAMin:     minA,
			AmountBMin:     minB,
			Recipient:      e.recipient(req.Recipient),
			Deadline:       slippage.Deadline(e.clock(), s.LiquidityDeadline),
		},
		Approvals: steps,
	}, nil
}

func (e *Engine) ExecuteAddLiquidity(ctx context.Context, plan AddLiquidityPlan) (*lifecycle.Lifecycle, error) {
	if err := e.runApprovals(ctx, plan.Approvals); err != nil {
		return nil, err
	}
	return e.runner.Run(ctx, SlotAddLiquidity, plan.Intent)
}

func (e *Engine) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*lifecycle.Lifecycle, error) {
	plan, err := e.PlanAddLiquidity(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.ExecuteAddLiquidity(ctx, plan)
}

// RemoveLiquidityRequest burns Liquidity LP tokens; nil burns the whole
// balance. UnwrapNative pays the wrapped side out as the native asset.
type RemoveLiquidityRequest struct {
	TokenA       model.Token
	TokenB       model.Token
	Liquidity    *big.Int
	UnwrapNative bool
	Recipient    common.Address
}

type RemoveLiquidityPlan struct {
	Settings  config.Settings
	Reserves  model.PoolReserves
	ExpectedA *big.Int
	ExpectedB *big.Int
	Intent    model.RemoveLiquidityIntent
	Approvals []approval.Step
}

// PlanRemoveLiquidity sizes the expected payout from the LP share and bounds
// both sides by the slippage tolerance.
func (e *Engine) PlanRemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (RemoveLiquidityPlan, error) {
	s := e.settings()
	if err := approval.ValidatePair(req.TokenA, req.TokenB, e.addrs.WETH); err != nil {
		return RemoveLiquidityPlan{}, err
	}
	reserves, err := e.reads.Reserves(ctx, e.route(req.TokenA), e.route(req.TokenB))
	if err != nil {
		return RemoveLiquidityPlan{}, fmt.Errorf("plan remove liquidity: %w", err)
	}
	if !reserves.Exists() || !reserves.Initialized() {
		return RemoveLiquidityPlan{}, fmt.Errorf("plan remove liquidity %s/%s: %w", req.TokenA, req.TokenB, ErrNoLiquidity)
	}

	lp := model.LPToken(reserves.Pair)
	held, err := e.reads.Balance(ctx, lp, e.account)
	if err != nil {
		return RemoveLiquidityPlan{}, fmt.Errorf("read lp balance: %w", err)
	}
	liquidity := req.Liquidity
	if liquidity == nil {
		liquidity = held
	}
	if !positive(liquidity) {
		return RemoveLiquidityPlan{}, fmt.Errorf("plan remove liquidity: %w", model.ErrInvalidAmount)
	}
	if held.Cmp(liquidity) < 0 {
		return RemoveLiquidityPlan{}, fmt.Errorf("%w: lp balance %s, needs %s", model.ErrInsufficientBalance, held, liquidity)
	}

	expectedA := position.Underlying(reserves.ReserveA, liquidity, reserves.TotalShares)
	expectedB := position.Underlying(reserves.ReserveB, liquidity, reserves.TotalShares)
	minA, minB, err := slippage.LiquidityBounds(expectedA, expectedB, s.SlippageBps)
	if err != nil {
		return RemoveLiquidityPlan{}, err
	}

	steps, err := e.approvals.Plan(ctx, e.account, e.addrs.Router, s.ApprovalPolicy,
		approval.Side{Slot: SlotApproveLP, Token: lp, Required: liquidity},
	)
	if err != nil {
		return RemoveLiquidityPlan{}, fmt.Errorf("plan remove liquidity approvals: %w", err)
	}
	return RemoveLiquidityPlan{
		Settings:  s,
		Reserves:  reserves,
		ExpectedA: expectedA,
		ExpectedB: expectedB,
		Intent: model.RemoveLiquidityIntent{
			TokenA:       req.TokenA,
			TokenB:       req.TokenB,
			Pair:         reserves.Pair,
			Liquidity:    new(big.Int).Set(liquidity),
			AmountAMin:   minA,
			AmountBMin:   minB,
			Recipient:    e.recipient(req.Recipient),
			Deadline:     slippage.Deadline(e.clock(), s.LiquidityDeadline),
			UnwrapNative: req.UnwrapNative,
		},
		Approvals: steps,
	}, nil
}

func (e *Engine) ExecuteRemoveLiquidity(ctx context.Context, plan RemoveLiquidityPlan) (*lifecycle.Lifecycle, error) {
	if err := e.runApprovals(ctx, plan.Approvals); err != nil {
		return nil, err
	}
	return e.runner.Run(ctx, SlotRemoveLiquidity, plan.Intent)
}

func (e *Engine) RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (*lifecycle.Lifecycle, error) {
	plan, err := e.PlanRemoveLiquidity(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.ExecuteRemoveLiquidity(ctx, plan)
}
