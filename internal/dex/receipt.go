package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapdesk/internal/model"
)

// ReceiptDecoder extracts approval and pair events from a transaction receipt.
type ReceiptDecoder struct {
	byTopic map[common.Hash]abi.Event
	logger  *zap.Logger
}

func NewReceiptDecoder(logger *zap.Logger) (*ReceiptDecoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pair, err := PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	byTopic := map[common.Hash]abi.Event{
		erc20.Events["Approval"].ID: erc20.Events["Approval"],
	}
	for _, name := range []string{"Swap", "Mint", "Burn", "Sync"} {
		byTopic[pair.Events[name].ID] = pair.Events[name]
	}

	return &ReceiptDecoder{byTopic: byTopic, logger: logger}, nil
}

// Summarize decodes every recognised log. Logs that fail to decode are
// skipped; a receipt never fails to summarize.
func (d *ReceiptDecoder) Summarize(receipt *types.Receipt) model.ReceiptSummary {
	summary := model.ReceiptSummary{
		TxHash:   receipt.TxHash.Hex(),
		GasUsed:  receipt.GasUsed,
		Reverted: receipt.Status != types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		summary.BlockNumber = receipt.BlockNumber.Uint64()
	}
	for _, log := range receipt.Logs {
		if log == nil {
			continue
		}
		event, err := d.Decode(*log)
		if err != nil {
			d.logger.Debug("skip receipt log",
				zap.String("tx", receipt.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err),
			)
			continue
		}
		summary.Events = append(summary.Events, event)
	}
	return summary
}

// Decode converts one log into a ReceiptEvent.
func (d *ReceiptDecoder) Decode(log types.Log) (model.ReceiptEvent, error) {
	if len(log.Topics) == 0 {
		return model.ReceiptEvent{}, fmt.Errorf("missing topics")
	}
	event, ok := d.byTopic[log.Topics[0]]
	if !ok {
		return model.ReceiptEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	var (
		decoded any
		err     error
	)
	switch event.Name {
	case "Approval":
		decoded, err = decodeApproval(event, log)
	case "Swap":
		decoded, err = decodeSwap(event, log)
	case "Mint":
		decoded, err = decodeMint(event, log)
	case "Burn":
		decoded, err = decodeBurn(event, log)
	case "Sync":
		decoded, err = decodeSync(event, log)
	}
	if err != nil {
		return model.ReceiptEvent{}, fmt.Errorf("decode %s: %w", event.Name, err)
	}

	return model.ReceiptEvent{
		LogIndex:  uint64(log.Index),
		Address:   log.Address.Hex(),
		EventName: event.Name,
		Decoded:   decoded,
	}, nil
}

func decodeApproval(event abi.Event, log types.Log) (model.ApprovalEventData, error) {
	var indexed struct {
		Owner   common.Address
		Spender common.Address
	}
	if err := parseTopics(&indexed, event, log.Topics); err != nil {
		return model.ApprovalEventData{}, err
	}
	values, err := unpackNonIndexed(event, log.Data, 1)
	if err != nil {
		return model.ApprovalEventData{}, err
	}
	return model.ApprovalEventData{
		Owner:   indexed.Owner.Hex(),
		Spender: indexed.Spender.Hex(),
		Value:   values[0],
	}, nil
}

func decodeSwap(event abi.Event, log types.Log) (model.SwapEventData, error) {
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseTopics(&indexed, event, log.Topics); err != nil {
		return model.SwapEventData{}, err
	}
	values, err := unpackNonIndexed(event, log.Data, 4)
	if err != nil {
		return model.SwapEventData{}, err
	}
	return model.SwapEventData{
		Sender:     indexed.Sender.Hex(),
		To:         indexed.To.Hex(),
		Amount0In:  values[0],
		Amount1In:  values[1],
		Amount0Out: values[2],
		Amount1Out: values[3],
	}, nil
}

func decodeMint(event abi.Event, log types.Log) (model.MintEventData, error) {
	var indexed struct {
		Sender common.Address
	}
	if err := parseTopics(&indexed, event, log.Topics); err != nil {
		return model.MintEventData{}, err
	}
	values, err := unpackNonIndexed(event, log.Data, 2)
	if err != nil {
		return model.MintEventData{}, err
	}
	return model.MintEventData{
		Sender:  indexed.Sender.Hex(),
		Amount0: values[0],
		Amount1: values[1],
	}, nil
}

func decodeBurn(event abi.Event, log types.Log) (model.BurnEventData, error) {
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseTopics(&indexed, event, log.Topics); err != nil {
		return model.BurnEventData{}, err
	}
	values, err := unpackNonIndexed(event, log.Data, 2)
	if err != nil {
		return model.BurnEventData{}, err
	}
	return model.BurnEventData{
		Sender:  indexed.Sender.Hex(),
		To:      indexed.To.Hex(),
		Amount0: values[0],
		Amount1: values[1],
	}, nil
}

func decodeSync(event abi.Event, log types.Log) (model.SyncEventData, error) {
	values, err := unpackNonIndexed(event, log.Data, 2)
	if err != nil {
		return model.SyncEventData{}, err
	}
	return model.SyncEventData{Reserve0: values[0], Reserve1: values[1]}, nil
}

func parseTopics(out interface{}, event abi.Event, topics []common.Hash) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

// unpackNonIndexed returns the non-indexed integer fields as decimal strings.
func unpackNonIndexed(event abi.Event, data []byte, want int) ([]string, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	out := make([]string, len(values))
	for i, v := range values {
		n, err := AsBigInt(v)
		if err != nil {
			return nil, err
		}
		out[i] = n.String()
	}
	return out, nil
}
