// Package engine runs the user-facing flows: swap, add liquidity, remove
// liquidity and standalone approvals. Each flow quotes against cached reads,
// derives its bounds from one settings snapshot, resolves approvals on their
// own slots and then drives the main intent through its lifecycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapdesk/internal/approval"
	"swapdesk/internal/config"
	"swapdesk/internal/dex"
	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
	"swapdesk/internal/position"
	"swapdesk/internal/quote"
)

// Lifecycle slots. Approval slots are per side so one pending approval never
// blocks the other side of a deposit.
const (
	SlotSwap            = "swap"
	SlotAddLiquidity    = "liquidity:add"
	SlotRemoveLiquidity = "liquidity:remove"
	SlotApproveA        = "approve:A"
	SlotApproveB        = "approve:B"
	SlotApproveLP       = "approve:lp"
)

// ApproveSlot is the slot of a standalone approval of token. Each token gets
// its own so independent approvals never contend.
func ApproveSlot(token model.Token) string {
	return "approve:" + token.Key()
}

var (
	// ErrNoLiquidity is returned when a route has no pool to trade against.
	ErrNoLiquidity = errors.New("no liquidity")
	// ErrNothingToApprove is returned for approvals of the native asset.
	ErrNothingToApprove = errors.New("nothing to approve")
)

// Reads is the cached read capability the flows quote and validate against.
type Reads interface {
	Reserves(ctx context.Context, tokenA, tokenB common.Address) (model.PoolReserves, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Balance(ctx context.Context, token model.Token, owner common.Address) (*big.Int, error)
}

// Runner drives one intent on a slot to a terminal state.
type Runner interface {
	Run(ctx context.Context, slot string, intent model.Intent) (*lifecycle.Lifecycle, error)
}

type Options struct {
	Addresses dex.Addresses
	Account   common.Address
	// Settings returns the current preferences snapshot.
	Settings func() config.Settings
	// Fresh bypasses the cache for the pre-submission stale check.
	Fresh quote.ReserveReader
	// Positions lists LP positions; optional.
	Positions *position.Reader
	Clock     func() time.Time
}

type Engine struct {
	reads     Reads
	runner    Runner
	quoter    *quote.Quoter
	fresh     *quote.Quoter
	tracker   *quote.Tracker
	approvals *approval.Orchestrator
	positions *position.Reader
	addrs     dex.Addresses
	account   common.Address
	settings  func() config.Settings
	clock     func() time.Time
	logger    *zap.Logger
}

func New(reads Reads, runner Runner, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := opts.Settings
	if settings == nil {
		settings = config.DefaultSettings
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	var fresh quote.ReserveReader = reads
	if opts.Fresh != nil {
		fresh = opts.Fresh
	}
	return &Engine{
		reads:     reads,
		runner:    runner,
		quoter:    quote.NewQuoter(reads, opts.Addresses.WETH, logger),
		fresh:     quote.NewQuoter(fresh, opts.Addresses.WETH, logger),
		tracker:   quote.NewTracker(),
		approvals: approval.NewOrchestrator(reads, logger),
		positions: opts.Positions,
		addrs:     opts.Addresses,
		account:   opts.Account,
		settings:  settings,
		clock:     clock,
		logger:    logger,
	}
}

// Account is the address flows spend from.
func (e *Engine) Account() common.Address { return e.account }

// LiveQuote quotes req as the user's latest input. ok is false when a newer
// input began while this quote was in flight; the result is then stale.
func (e *Engine) LiveQuote(ctx context.Context, req quote.Request) (q quote.Quote, ok bool, err error) {
	ticket := e.tracker.Begin(req)
	q, err = e.quoter.Quote(ctx, req)
	if err != nil {
		return quote.Quote{}, false, err
	}
	return q, e.tracker.Apply(ticket, q), nil
}

// Approve grants the router an allowance over token. A nil amount follows the
// approval preference.
func (e *Engine) Approve(ctx context.Context, token model.Token, amount *big.Int) (*lifecycle.Lifecycle, error) {
	if token.Native {
		return nil, fmt.Errorf("approve %s: %w", token, ErrNothingToApprove)
	}
	s := e.settings()
	if amount == nil {
		var err error
		if amount, err = approval.Amount(nil, s.ApprovalPolicy); err != nil {
			return nil, err
		}
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("approve %s: %w", token, model.ErrInvalidAmount)
	}
	return e.runner.Run(ctx, ApproveSlot(token), model.ApproveIntent{
		Token:   token,
		Spender: e.addrs.Router,
		Amount:  amount,
	})
}

// Positions lists the account's LP positions. Empty pairs scans the factory.
func (e *Engine) Positions(ctx context.Context, pairs []common.Address) ([]model.Position, error) {
	if e.positions == nil {
		return nil, fmt.Errorf("positions: no reader configured")
	}
	return e.positions.Positions(ctx, e.account, pairs)
}

// runApprovals drives every step on its own slot. Steps run concurrently and
// the first failure is returned once all have settled.
func (e *Engine) runApprovals(ctx context.Context, steps []approval.Step) error {
	if len(steps) == 0 {
		return nil
	}
	var g errgroup.Group
	for _, step := range steps {
		step := step
		g.Go(func() error {
			e.logger.Info("approval requested",
				zap.String("slot", step.Side.Slot),
				zap.String("token", step.Side.Token.String()),
				zap.String("amount", step.Intent.Amount.String()),
			)
			if _, err := e.runner.Run(ctx, step.Side.Slot, step.Intent); err != nil {
				return fmt.Errorf("approve %s: %w", step.Side.Token, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// requireBalance fails with model.ErrInsufficientBalance when the account
// holds less than amount of token.
func (e *Engine) requireBalance(ctx context.Context, token model.Token, amount *big.Int) error {
	balance, err := e.reads.Balance(ctx, token, e.account)
	if err != nil {
		return fmt.Errorf("read balance %s: %w", token, err)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", model.ErrInsufficientBalance, token, balance, amount)
	}
	return nil
}

func (e *Engine) recipient(to common.Address) common.Address {
	if to == (common.Address{}) {
		return e.account
	}
	return to
}

func (e *Engine) route(t model.Token) common.Address {
	if t.Native {
		return e.addrs.WETH
	}
	return t.Address
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
