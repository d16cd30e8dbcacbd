package model

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidAmount marks unparseable or negative user input.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrDegeneratePair marks a pool or path hop between identical tokens.
	ErrDegeneratePair = errors.New("degenerate pair")
	// ErrUnsupportedPair marks a pairing that is not a meaningful two-asset pool.
	ErrUnsupportedPair = errors.New("unsupported pair")
	// ErrInsufficientBalance blocks submission before any lifecycle starts.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance is resolved by an approval step.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrSignatureRejected is returned when the wallet declines to sign.
	ErrSignatureRejected = errors.New("signature rejected")
	// ErrExecutionReverted is returned for an included but failed transaction.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrStaleQuote is returned when fresh reserves no longer meet the minimum bound.
	ErrStaleQuote = errors.New("stale quote")
	// ErrNetworkUnavailable marks an unreachable ledger capability.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrInvalidTolerance marks a slippage tolerance at or above 100%.
	ErrInvalidTolerance = errors.New("invalid slippage tolerance")
	// ErrSlotBusy is returned when a slot already has a live lifecycle.
	ErrSlotBusy = errors.New("slot busy")
	// ErrReceiptTimeout is returned when no receipt arrives within the wait window.
	ErrReceiptTimeout = errors.New("receipt timeout")
)

var humanMessages = []struct {
	err  error
	text string
}{
	{ErrSignatureRejected, "Request rejected in wallet"},
	{ErrExecutionReverted, "Transaction reverted"},
	{ErrReceiptTimeout, "Transaction not confirmed in time"},
	{ErrNetworkUnavailable, "Network unavailable"},
	{ErrStaleQuote, "Price moved beyond slippage tolerance"},
	{ErrInsufficientBalance, "Insufficient balance"},
	{ErrUnsupportedPair, "Unsupported token pair"},
	{ErrDegeneratePair, "Select two different tokens"},
	{ErrInvalidTolerance, "Slippage tolerance must be below 100%"},
	{ErrInvalidAmount, "Invalid amount"},
	{ErrSlotBusy, "Another transaction is still pending"},
}

// HumanError renders a short user-facing cause. A revert keeps its reason.
func HumanError(err error) string {
	if err == nil {
		return "Unknown error"
	}
	for _, m := range humanMessages {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.err == ErrExecutionReverted {
			if reason := revertReason(err); reason != "" {
				return m.text + ": " + reason
			}
		}
		return m.text
	}
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		return msg[idx+2:]
	}
	return msg
}

func revertReason(err error) string {
	msg := err.Error()
	marker := ErrExecutionReverted.Error() + ": "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}
	return msg[idx+len(marker):]
}
