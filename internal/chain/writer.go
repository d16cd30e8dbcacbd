package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/dex"
	"swapdesk/internal/model"
)

const defaultReceiptPoll = 2 * time.Second

// Writer encodes intents, hands them to the wallet, and polls for receipts.
type Writer struct {
	client  *Client
	wallet  Wallet
	decoder *dex.ReceiptDecoder
	poll    time.Duration
	logger  *zap.Logger
}

func NewWriter(client *Client, wallet Wallet, poll time.Duration, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if poll <= 0 {
		poll = defaultReceiptPoll
	}
	decoder, err := dex.NewReceiptDecoder(logger)
	if err != nil {
		return nil, err
	}
	return &Writer{
		client:  client,
		wallet:  wallet,
		decoder: decoder,
		poll:    poll,
		logger:  logger,
	}, nil
}

// Account is the address intents are sent from.
func (w *Writer) Account() common.Address { return w.wallet.Address() }

// Submit encodes intent and broadcasts it once.
func (w *Writer) Submit(ctx context.Context, intent model.Intent) (common.Hash, error) {
	call, err := dex.Encode(intent, w.client.Addresses())
	if err != nil {
		return common.Hash{}, err
	}
	w.logger.Debug("sending call",
		zap.String("method", call.Method),
		zap.String("to", call.To.Hex()),
		zap.String("value", call.Value.String()),
	)
	hash, err := w.wallet.SendTransaction(ctx, call)
	if err != nil {
		return common.Hash{}, classify(err)
	}
	return hash, nil
}

// Wait polls until the transaction is included or ctx ends. Transport errors
// while polling are logged and polled through.
func (w *Writer) Wait(ctx context.Context, hash common.Hash) (model.ReceiptSummary, error) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			summary := w.decoder.Summarize(receipt)
			if summary.Reverted {
				return summary, fmt.Errorf("tx %s: %w", hash.Hex(), model.ErrExecutionReverted)
			}
			return summary, nil
		case errors.Is(err, ethereum.NotFound):
		case errors.Is(err, model.ErrNetworkUnavailable):
			w.logger.Debug("receipt poll failed", zap.String("tx", hash.Hex()), zap.Error(err))
		default:
			return model.ReceiptSummary{}, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return model.ReceiptSummary{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
