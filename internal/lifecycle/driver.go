package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/model"
)

// Writer submits intents and waits for their receipts.
type Writer interface {
	// Submit requests a signature and broadcasts the call. A user rejection
	// must be reported as model.ErrSignatureRejected.
	Submit(ctx context.Context, intent model.Intent) (common.Hash, error)
	// Wait blocks until the transaction is included. A reverted transaction
	// must be reported as model.ErrExecutionReverted.
	Wait(ctx context.Context, hash common.Hash) (model.ReceiptSummary, error)
}

// Driver runs intents through a Writer under slot exclusion.
type Driver struct {
	slots          *Slots
	writer         Writer
	receiptTimeout time.Duration
	logger         *zap.Logger
}

func NewDriver(slots *Slots, writer Writer, receiptTimeout time.Duration, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		slots:          slots,
		writer:         writer,
		receiptTimeout: receiptTimeout,
		logger:         logger,
	}
}

// Run drives one intent to a terminal state. The returned error is the
// lifecycle failure cause, or the reason the lifecycle could not start.
// Submission is attempted once; a failed broadcast is never retried.
func (d *Driver) Run(ctx context.Context, slot string, intent model.Intent) (*Lifecycle, error) {
	lc, err := d.slots.Start(slot, intent)
	if err != nil {
		return nil, err
	}
	if err := lc.RequestSignature(); err != nil {
		return lc, err
	}

	hash, err := d.writer.Submit(ctx, intent)
	if err != nil {
		cause := classifySubmit(err)
		d.logger.Warn("submit failed",
			zap.String("slot", slot),
			zap.String("kind", string(intent.Kind())),
			zap.Error(cause),
		)
		_ = lc.Fail(cause)
		return lc, cause
	}
	if err := lc.MarkSubmitted(hash); err != nil {
		return lc, err
	}
	d.logger.Info("transaction submitted",
		zap.String("slot", slot),
		zap.String("kind", string(intent.Kind())),
		zap.String("tx", hash.Hex()),
	)

	waitCtx := ctx
	if d.receiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.receiptTimeout)
		defer cancel()
	}
	receipt, err := d.writer.Wait(waitCtx, hash)
	if err != nil {
		cause := err
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			cause = fmt.Errorf("wait receipt %s: %w", hash.Hex(), model.ErrReceiptTimeout)
		}
		d.logger.Warn("transaction failed",
			zap.String("slot", slot),
			zap.String("tx", hash.Hex()),
			zap.Error(cause),
		)
		_ = lc.Fail(cause)
		return lc, cause
	}
	if err := lc.Confirm(receipt); err != nil {
		return lc, err
	}
	d.logger.Info("transaction confirmed",
		zap.String("slot", slot),
		zap.String("tx", hash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
	)
	return lc, nil
}

func classifySubmit(err error) error {
	switch {
	case errors.Is(err, model.ErrSignatureRejected),
		errors.Is(err, model.ErrExecutionReverted),
		errors.Is(err, model.ErrInsufficientBalance),
		errors.Is(err, model.ErrNetworkUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", model.ErrNetworkUnavailable, err)
	}
}
