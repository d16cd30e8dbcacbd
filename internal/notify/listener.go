package notify

import (
	"fmt"
	"time"

	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
)

// Notifier turns terminal lifecycle events into notifications, one per
// lifecycle. Events are keyed by slot, lifecycle ID and transaction hash so a
// repeated delivery of the same outcome is collapsed while distinct lifecycles
// on one slot each surface.
type Notifier struct {
	dedup  *Deduplicator
	window time.Duration
}

func NewNotifier(dedup *Deduplicator, window time.Duration) *Notifier {
	return &Notifier{dedup: dedup, window: window}
}

func (n *Notifier) OnConfirmed(e lifecycle.Event) {
	n.dedup.Push(Notification{Kind: KindSuccess, Text: SuccessText(e)}, eventKey(e), n.window)
}

func (n *Notifier) OnFailed(e lifecycle.Event) {
	n.dedup.Push(Notification{Kind: KindError, Text: model.HumanError(e.Err)}, eventKey(e), n.window)
}

func eventKey(e lifecycle.Event) string {
	return fmt.Sprintf("%s:%d:%s", e.Slot, e.ID, e.Hash.Hex())
}

// SuccessText describes a confirmed intent.
func SuccessText(e lifecycle.Event) string {
	switch intent := e.Intent.(type) {
	case model.ApproveIntent:
		return fmt.Sprintf("Approved %s", intent.Token)
	case model.SwapIntent:
		return fmt.Sprintf("Swapped %s for %s", intent.TokenIn, intent.TokenOut)
	case model.AddLiquidityIntent:
		return fmt.Sprintf("Added %s/%s liquidity", intent.TokenA, intent.TokenB)
	case model.RemoveLiquidityIntent:
		return fmt.Sprintf("Removed %s/%s liquidity", intent.TokenA, intent.TokenB)
	default:
		return "Transaction confirmed"
	}
}
