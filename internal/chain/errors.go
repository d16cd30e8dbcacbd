package chain

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"swapdesk/internal/model"
)

// codeUserRejected is the EIP-1193 provider error for a declined request.
const codeUserRejected = 4001

// classify maps transport and node errors onto the model error taxonomy.
// Errors it cannot place are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		model.ErrSignatureRejected,
		model.ErrExecutionReverted,
		model.ErrNetworkUnavailable,
		model.ErrInsufficientBalance,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Error())
		switch {
		case rpcErr.ErrorCode() == codeUserRejected || strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied"):
			return fmt.Errorf("%w: %v", model.ErrSignatureRejected, err)
		case strings.Contains(msg, "insufficient funds"):
			return fmt.Errorf("%w: %v", model.ErrInsufficientBalance, err)
		case strings.Contains(msg, "execution reverted"):
			return fmt.Errorf("%w: %s", model.ErrExecutionReverted, revertReason(err))
		}
		return err
	}
	if isTransport(err) {
		return fmt.Errorf("%w: %v", model.ErrNetworkUnavailable, err)
	}
	return err
}

func isTransport(err error) bool {
	var netErr net.Error
	var httpErr rpc.HTTPError
	return errors.As(err, &netErr) ||
		errors.As(err, &httpErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, rpc.ErrClientQuit)
}

// revertReason prefers the ABI-encoded Error(string) payload and falls back
// to the text after the node's "execution reverted:" prefix.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(raw); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	msg := err.Error()
	const prefix = "execution reverted: "
	if idx := strings.Index(strings.ToLower(msg), prefix); idx >= 0 {
		return msg[idx+len(prefix):]
	}
	return "unknown reason"
}
