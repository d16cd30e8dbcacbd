package config

import (
	"time"

	"swapdesk/internal/model"
)

const (
	DefaultSlippageBps       = 50
	DefaultDeadline          = 5 * time.Minute
	DefaultLiquidityDeadline = 10 * time.Minute
)

// Settings is an immutable snapshot of user preferences. Flows copy it at
// the start so a preference change never alters an operation in flight.
type Settings struct {
	SlippageBps       uint32
	Deadline          time.Duration
	LiquidityDeadline time.Duration
	ApprovalPolicy    model.ApprovalPolicy
}

// DefaultSettings are the values used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		SlippageBps:       DefaultSlippageBps,
		Deadline:          DefaultDeadline,
		LiquidityDeadline: DefaultLiquidityDeadline,
		ApprovalPolicy:    model.ApprovalUnlimited,
	}
}
