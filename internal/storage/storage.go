package storage

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
)

// Journal is a sink for terminal transaction records.
type Journal interface {
	Append(ctx context.Context, records []model.TxRecord) error
}

// Recorder journals every terminal lifecycle event.
type Recorder struct {
	journal Journal
	chainID uint64
	account common.Address
	timeout time.Duration
	logger  *zap.Logger
}

func NewRecorder(journal Journal, chainID uint64, account common.Address, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		journal: journal,
		chainID: chainID,
		account: account,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (r *Recorder) OnConfirmed(e lifecycle.Event) { r.record(e) }
func (r *Recorder) OnFailed(e lifecycle.Event) { r.record(e) }

// Record converts a terminal event into a journal row.
func Record(chainID uint64, account common.Address, e lifecycle.Event) model.TxRecord {
	rec := model.TxRecord{
		ChainID:    chainID,
		Slot:       e.Slot,
		Kind:       e.Intent.Kind(),
		Account:    account.Hex(),
		State:      e.State.String(),
		StartedAt:  e.Started.UTC().Format(time.RFC3339Nano),
		FinishedAt: e.Finished.UTC().Format(time.RFC3339Nano),
	}
	if e.Hash != (common.Hash{}) {
		rec.TxHash = e.Hash.Hex()
	}
	if e.Receipt != nil {
		rec.BlockNumber = e.Receipt.BlockNumber
	}
	if e.Err != nil {
		rec.Reason = model.HumanError(e.Err)
	}
	return rec
}

// Journal writes are best-effort: a storage failure is logged and never
// changes the lifecycle outcome.
func (r *Recorder) record(e lifecycle.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	rec := Record(r.chainID, r.account, e)
	if err := r.journal.Append(ctx, []model.TxRecord{rec}); err != nil {
		r.logger.Warn("journal append failed", zap.String("slot", e.Slot), zap.Error(err))
	}
}
