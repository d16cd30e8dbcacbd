package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"swapdesk/internal/amount"
	"swapdesk/internal/approval"
	"swapdesk/internal/engine"
	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
	"swapdesk/internal/notify"
	"swapdesk/internal/quote"
	"swapdesk/internal/slippage"
)

// lpDecimals is the precision of pair share tokens.
const lpDecimals = 18

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote an exact-input swap against live reserves",
		RunE:  runQuote,
	}
	addSwapFlags(cmd)
	cmd.Flags().Bool("watch", false, "re-quote every refresh interval until interrupted")
	addTradeFlags(cmd)
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap an exact input amount",
		RunE:  runSwap,
	}
	addSwapFlags(cmd)
	cmd.Flags().String("recipient", "", "recipient of the output, defaults to the account")
	cmd.Flags().Bool("dry-run", false, "print the plan without submitting")
	addTradeFlags(cmd)
	return cmd
}

func addSwapFlags(cmd *cobra.Command) {
	cmd.Flags().String("in", "", "token sold (address or eth)")
	cmd.Flags().String("out", "", "token bought (address or eth)")
	cmd.Flags().StringSlice("via", nil, "intermediate route tokens (comma-separated)")
	cmd.Flags().String("amount", "", "exact input amount in token units")
}

func newAddLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Deposit both sides of a pair",
		RunE:  runAddLiquidity,
	}
	cmd.Flags().String("a", "", "first token (address or eth)")
	cmd.Flags().String("b", "", "second token (address or eth)")
	cmd.Flags().String("amount-a", "", "amount of the first token")
	cmd.Flags().String("amount-b", "", "amount of the second token, derived from reserves when empty")
	cmd.Flags().String("recipient", "", "recipient of the LP tokens, defaults to the account")
	cmd.Flags().Bool("dry-run", false, "print the plan without submitting")
	addTradeFlags(cmd)
	return cmd
}

func newRemoveLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-liquidity",
		Short: "Burn LP tokens for the underlying pair",
		RunE:  runRemoveLiquidity,
	}
	cmd.Flags().String("a", "", "first token (address or eth)")
	cmd.Flags().String("b", "", "second token (address or eth)")
	cmd.Flags().String("liquidity", "", "LP amount to burn, the whole balance when empty")
	cmd.Flags().Bool("unwrap", false, "pay the wrapped side out as the native asset")
	cmd.Flags().String("recipient", "", "recipient of the payout, defaults to the account")
	cmd.Flags().Bool("dry-run", false, "print the plan without submitting")
	addTradeFlags(cmd)
	return cmd
}

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve the router to spend a token",
		RunE:  runApprove,
	}
	cmd.Flags().String("token", "", "token address")
	cmd.Flags().String("amount", "", "allowance in token units, follows approval-mode when empty")
	addTradeFlags(cmd)
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runQuote(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	req, err := a.swapRequest(ctx, cmd)
	if err != nil {
		return err
	}
	settings, err := a.cfg.Settings()
	if err != nil {
		return err
	}
	watch, _ := cmd.Flags().GetBool("watch")
	qreq := quote.Request{TokenIn: req.TokenIn, TokenOut: req.TokenOut, Via: req.Via, AmountIn: req.AmountIn}
	for {
		q, ok, err := a.engine.LiveQuote(ctx, qreq)
		if err != nil {
			return err
		}
		if ok {
			if err := printQuote(cmd, req, q, settings.SlippageBps); err != nil {
				return err
			}
		}
		if !watch {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.cfg.RefreshInterval):
		}
	}
}

func printQuote(cmd *cobra.Command, req engine.SwapRequest, q quote.Quote, bps uint32) error {
	minOut := q.AmountOut
	if !q.Wrap {
		var err error
		if minOut, err = slippage.MinOut(q.AmountOut, bps); err != nil {
			return err
		}
	}
	return printJSON(cmd, map[string]interface{}{
		"in":         req.TokenIn.String(),
		"out":        req.TokenOut.String(),
		"amount_in":  amount.ToDecimalString(req.AmountIn, req.TokenIn.Decimals),
		"amount_out": amount.ToDecimalString(q.AmountOut, req.TokenOut.Decimals),
		"min_out":    amount.ToDecimalString(minOut, req.TokenOut.Decimals),
		"path":       q.Path,
		"wrap":       q.Wrap,
	})
}

func runSwap(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	req, err := a.swapRequest(ctx, cmd)
	if err != nil {
		return err
	}
	if req.Recipient, err = addressFlag(cmd, "recipient"); err != nil {
		return err
	}
	plan, err := a.engine.PlanSwap(ctx, req)
	if err != nil {
		return err
	}
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return printJSON(cmd, map[string]interface{}{
			"amount_out": amount.ToDecimalString(plan.Quote.AmountOut, req.TokenOut.Decimals),
			"min_out":    amount.ToDecimalString(plan.Intent.AmountOutMin, req.TokenOut.Decimals),
			"deadline":   plan.Intent.Deadline,
			"approvals":  describeSteps(plan.Approvals),
		})
	}
	lc, err := a.engine.ExecuteSwap(ctx, plan)
	return a.report(cmd, lc, err)
}

func (a *app) swapRequest(ctx context.Context, cmd *cobra.Command) (engine.SwapRequest, error) {
	inArg, _ := cmd.Flags().GetString("in")
	outArg, _ := cmd.Flags().GetString("out")
	viaArgs, _ := cmd.Flags().GetStringSlice("via")
	amountArg, _ := cmd.Flags().GetString("amount")

	in, err := a.token(ctx, inArg)
	if err != nil {
		return engine.SwapRequest{}, err
	}
	out, err := a.token(ctx, outArg)
	if err != nil {
		return engine.SwapRequest{}, err
	}
	via := make([]model.Token, 0, len(viaArgs))
	for _, arg := range viaArgs {
		tok, err := a.token(ctx, arg)
		if err != nil {
			return engine.SwapRequest{}, err
		}
		via = append(via, tok)
	}
	amountIn, err := amount.ParseStrict(amountArg, in.Decimals)
	if err != nil {
		return engine.SwapRequest{}, err
	}
	return engine.SwapRequest{TokenIn: in, TokenOut: out, Via: via, AmountIn: amountIn}, nil
}

func runAddLiquidity(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	tokA, tokB, err := a.tokenPair(ctx, cmd)
	if err != nil {
		return err
	}
	amountAArg, _ := cmd.Flags().GetString("amount-a")
	amountBArg, _ := cmd.Flags().GetString("amount-b")
	req := engine.AddLiquidityRequest{TokenA: tokA, TokenB: tokB}
	if req.AmountA, err = amount.ParseStrict(amountAArg, tokA.Decimals); err != nil {
		return err
	}
	if amountBArg != "" {
		if req.AmountB, err = amount.ParseStrict(amountBArg, tokB.Decimals); err != nil {
			return err
		}
	}
	if req.Recipient, err = addressFlag(cmd, "recipient"); err != nil {
		return err
	}

	plan, err := a.engine.PlanAddLiquidity(ctx, req)
	if err != nil {
		return err
	}
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return printJSON(cmd, map[string]interface{}{
			"new_pool":  plan.NewPool,
			"amount_a":  amount.ToDecimalString(plan.Intent.AmountADesired, tokA.Decimals),
			"amount_b":  amount.ToDecimalString(plan.Intent.AmountBDesired, tokB.Decimals),
			"min_a":     amount.ToDecimalString(plan.Intent.AmountAMin, tokA.Decimals),
			"min_b":     amount.ToDecimalString(plan.Intent.AmountBMin, tokB.Decimals),
			"deadline":  plan.Intent.Deadline,
			"approvals": describeSteps(plan.Approvals),
		})
	}
	lc, err := a.engine.ExecuteAddLiquidity(ctx, plan)
	return a.report(cmd, lc, err)
}

func runRemoveLiquidity(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	tokA, tokB, err := a.tokenPair(ctx, cmd)
	if err != nil {
		return err
	}
	liquidityArg, _ := cmd.Flags().GetString("liquidity")
	unwrap, _ := cmd.Flags().GetBool("unwrap")
	req := engine.RemoveLiquidityRequest{TokenA: tokA, TokenB: tokB, UnwrapNative: unwrap}
	if liquidityArg != "" {
		if req.Liquidity, err = amount.ParseStrict(liquidityArg, lpDecimals); err != nil {
			return err
		}
	}
	if req.Recipient, err = addressFlag(cmd, "recipient"); err != nil {
		return err
	}

	plan, err := a.engine.PlanRemoveLiquidity(ctx, req)
	if err != nil {
		return err
	}
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return printJSON(cmd, map[string]interface{}{
			"pair":       plan.Intent.Pair,
			"liquidity":  amount.ToDecimalString(plan.Intent.Liquidity, lpDecimals),
			"expected_a": amount.ToDecimalString(plan.ExpectedA, tokA.Decimals),
			"expected_b": amount.ToDecimalString(plan.ExpectedB, tokB.Decimals),
			"min_a":      amount.ToDecimalString(plan.Intent.AmountAMin, tokA.Decimals),
			"min_b":      amount.ToDecimalString(plan.Intent.AmountBMin, tokB.Decimals),
			"deadline":   plan.Intent.Deadline,
			"approvals":  describeSteps(plan.Approvals),
		})
	}
	lc, err := a.engine.ExecuteRemoveLiquidity(ctx, plan)
	return a.report(cmd, lc, err)
}

func runApprove(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	tokenArg, _ := cmd.Flags().GetString("token")
	amountArg, _ := cmd.Flags().GetString("amount")
	tok, err := a.token(ctx, tokenArg)
	if err != nil {
		return err
	}
	var value *big.Int
	if amountArg != "" {
		if value, err = amount.ParseStrict(amountArg, tok.Decimals); err != nil {
			return err
		}
	}
	lc, err := a.engine.Approve(ctx, tok, value)
	return a.report(cmd, lc, err)
}

func (a *app) tokenPair(ctx context.Context, cmd *cobra.Command) (model.Token, model.Token, error) {
	aArg, _ := cmd.Flags().GetString("a")
	bArg, _ := cmd.Flags().GetString("b")
	tokA, err := a.token(ctx, aArg)
	if err != nil {
		return model.Token{}, model.Token{}, err
	}
	tokB, err := a.token(ctx, bArg)
	if err != nil {
		return model.Token{}, model.Token{}, err
	}
	return tokA, tokB, nil
}

type outcome struct {
	Slot          string                `json:"slot,omitempty"`
	State         string                `json:"state"`
	Tx            string                `json:"tx,omitempty"`
	Block         uint64                `json:"block,omitempty"`
	Error         string                `json:"error,omitempty"`
	Events        []model.ReceiptEvent  `json:"events,omitempty"`
	Notifications []notify.Notification `json:"notifications,omitempty"`
}

// report prints the lifecycle outcome and returns err so the exit status
// reflects a failure.
func (a *app) report(cmd *cobra.Command, lc *lifecycle.Lifecycle, err error) error {
	out := outcome{State: lifecycle.Idle.String(), Notifications: a.dedup.Active()}
	if lc != nil {
		out.Slot = lc.Slot()
		out.State = lc.State().String()
		if lc.Hash() != (common.Hash{}) {
			out.Tx = lc.Hash().Hex()
		}
		if r := lc.Receipt(); r != nil {
			out.Block = r.BlockNumber
			out.Events = r.Events
		}
	}
	if err != nil {
		out.Error = model.HumanError(err)
	}
	if perr := printJSON(cmd, out); perr != nil {
		return perr
	}
	return err
}

func describeSteps(steps []approval.Step) []map[string]string {
	out := make([]map[string]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, map[string]string{
			"slot":      s.Side.Slot,
			"token":     s.Side.Token.String(),
			"allowance": s.Current.String(),
			"amount":    s.Intent.Amount.String(),
		})
	}
	return out
}

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
