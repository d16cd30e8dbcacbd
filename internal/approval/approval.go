// Package approval decides whether a spend needs a prior ERC20 approval and
// for how much. Swap, both add-liquidity sides, and the LP-token side of
// remove-liquidity all go through the same decision.
package approval

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapdesk/internal/model"
)

var maxUint256 = new(uint256.Int).SetAllOne()

// MaxAmount returns 2^256-1, the unlimited allowance.
func MaxAmount() *big.Int {
	return maxUint256.ToBig()
}

// NeedsApproval is false for native value transfers; otherwise it is true iff
// required > 0 and the current allowance is below it.
func NeedsApproval(currentAllowance, required *big.Int, isNative bool) bool {
	if isNative {
		return false
	}
	if required == nil || required.Sign() <= 0 {
		return false
	}
	if currentAllowance == nil {
		return true
	}
	return currentAllowance.Cmp(required) < 0
}

// Amount is the allowance an approval should grant under policy.
func Amount(required *big.Int, policy model.ApprovalPolicy) (*big.Int, error) {
	if policy == model.ApprovalUnlimited {
		return MaxAmount(), nil
	}
	if required == nil || required.Sign() < 0 {
		return nil, fmt.Errorf("%w: approval amount", model.ErrInvalidAmount)
	}
	if _, overflow := uint256.FromBig(required); overflow {
		return nil, fmt.Errorf("%w: approval amount exceeds uint256", model.ErrInvalidAmount)
	}
	return new(big.Int).Set(required), nil
}

// ValidatePair rejects pairings that are not a meaningful two-asset pool:
// the same token twice, both sides native, or native against its own wrapped form.
func ValidatePair(a, b model.Token, wrapped common.Address) error {
	if a.Native && b.Native {
		return fmt.Errorf("%w: both sides are native", model.ErrUnsupportedPair)
	}
	if (a.Native && b.Address == wrapped) || (b.Native && a.Address == wrapped) {
		return fmt.Errorf("%w: native and its wrapped form", model.ErrUnsupportedPair)
	}
	if a.Same(b) {
		return fmt.Errorf("%w: %s", model.ErrDegeneratePair, a)
	}
	return nil
}

// AllowanceReader returns the allowance of spender over owner's token.
type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Side is one spend that may need approval, bound to its own lifecycle slot.
type Side struct {
	Slot     string
	Token    model.Token
	Required *big.Int
}

// Step is an approval that must confirm before its side may proceed.
type Step struct {
	Side    Side
	Current *big.Int
	Intent  model.ApproveIntent
}

// Orchestrator plans approval steps for the sides of an action.
type Orchestrator struct {
	reader AllowanceReader
	logger *zap.Logger
}

func NewOrchestrator(reader AllowanceReader, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{reader: reader, logger: logger}
}

// Plan returns one step per side that needs approval. Sides are independent:
// a pending approval on one never blocks another.
func (o *Orchestrator) Plan(ctx context.Context, owner, spender common.Address, policy model.ApprovalPolicy, sides ...Side) ([]Step, error) {
	steps := make([]Step, 0, len(sides))
	for _, side := range sides {
		if side.Token.Native {
			continue
		}
		current, err := o.reader.Allowance(ctx, side.Token.Address, owner, spender)
		if err != nil {
			return nil, fmt.Errorf("read allowance %s: %w", side.Token, err)
		}
		if !NeedsApproval(current, side.Required, false) {
			continue
		}
		amount, err := Amount(side.Required, policy)
		if err != nil {
			return nil, err
		}
		o.logger.Debug("approval required",
			zap.String("slot", side.Slot),
			zap.String("token", side.Token.String()),
			zap.String("allowance", current.String()),
			zap.String("required", side.Required.String()),
			zap.String("policy", string(policy)),
		)
		steps = append(steps, Step{
			Side:    side,
			Current: current,
			Intent: model.ApproveIntent{
				Token:   side.Token,
				Spender: spender,
				Amount:  amount,
			},
		})
	}
	return steps, nil
}
