package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/approval"
	"swapdesk/internal/config"
	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
	"swapdesk/internal/quote"
	"swapdesk/internal/slippage"
)

// SwapRequest is an exact-input swap as entered by the user.
type SwapRequest struct {
	TokenIn   model.Token
	TokenOut  model.Token
	Via       []model.Token
	AmountIn  *big.Int
	Recipient common.Address
}

// SwapPlan is everything decided before the first signature request.
type SwapPlan struct {
	Settings  config.Settings
	Quote     quote.Quote
	Intent    model.SwapIntent
	Approvals []approval.Step
}

// PlanSwap quotes req and derives its minimum output, deadline and approvals.
func (e *Engine) PlanSwap(ctx context.Context, req SwapRequest) (SwapPlan, error) {
	s := e.settings()
	if !positive(req.AmountIn) {
		return SwapPlan{}, fmt.Errorf("plan swap: %w", model.ErrInvalidAmount)
	}
	if req.TokenIn.Same(req.TokenOut) {
		return SwapPlan{}, fmt.Errorf("plan swap %s: %w", req.TokenIn, model.ErrDegeneratePair)
	}

	q, err := e.quoter.Quote(ctx, quote.Request{
		TokenIn:  req.TokenIn,
		TokenOut: req.TokenOut,
		Via:      req.Via,
		AmountIn: req.AmountIn,
	})
	if err != nil {
		return SwapPlan{}, fmt.Errorf("plan swap: %w", err)
	}
	if q.AmountOut.Sign() == 0 {
		return SwapPlan{}, fmt.Errorf("plan swap %s>%s: %w", req.TokenIn, req.TokenOut, ErrNoLiquidity)
	}

	minOut := new(big.Int).Set(q.AmountOut)
	if !q.Wrap {
		if minOut, err = slippage.MinOut(q.AmountOut, s.SlippageBps); err != nil {
			return SwapPlan{}, err
		}
	}
	if err := e.requireBalance(ctx, req.TokenIn, req.AmountIn); err != nil {
		return SwapPlan{}, err
	}

	plan := SwapPlan{
		Settings: s,
		Quote:    q,
		Intent: model.SwapIntent{
			TokenIn:      req.TokenIn,
			TokenOut:     req.TokenOut,
			AmountIn:     new(big.Int).Set(req.AmountIn),
			AmountOutMin: minOut,
			Path:         q.Path,
			Recipient:    e.recipient(req.Recipient),
			Deadline:     slippage.Deadline(e.clock(), s.Deadline),
		},
	}
	if q.Wrap {
		return plan, nil
	}
	plan.Approvals, err = e.approvals.Plan(ctx, e.account, e.addrs.Router, s.ApprovalPolicy, approval.Side{
		Slot:     SlotApproveA,
		Token:    req.TokenIn,
		Required: req.AmountIn,
	})
	if err != nil {
		return SwapPlan{}, fmt.Errorf("plan swap approvals: %w", err)
	}
	return plan, nil
}

// ExecuteSwap runs the plan's approvals, re-quotes on fresh reserves and
// submits the swap only while the fresh output still meets the minimum.
func (e *Engine) ExecuteSwap(ctx context.Context, plan SwapPlan) (*lifecycle.Lifecycle, error) {
	if err := e.runApprovals(ctx, plan.Approvals); err != nil {
		return nil, err
	}
	if !plan.Quote.Wrap {
		fresh, err := e.fresh.Quote(ctx, plan.Quote.Request)
		if err != nil {
			return nil, fmt.Errorf("requote swap: %w", err)
		}
		if err := quote.CheckStale(plan.Intent.AmountOutMin, fresh.AmountOut); err != nil {
			e.logger.Warn("swap quote went stale",
				zap.String("request", plan.Quote.Request.Fingerprint()),
				zap.String("min_out", plan.Intent.AmountOutMin.String()),
				zap.String("fresh_out", fresh.AmountOut.String()),
			)
			return nil, err
		}
	}
	return e.runner.Run(ctx, SlotSwap, plan.Intent)
}

// Swap plans and executes req in one call.
func (e *Engine) Swap(ctx context.Context, req SwapRequest) (*lifecycle.Lifecycle, error) {
	plan, err := e.PlanSwap(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.ExecuteSwap(ctx, plan)
}
