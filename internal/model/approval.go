package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ApprovalPolicy selects how much allowance an approval grants.
type ApprovalPolicy string

const (
	// ApprovalExact approves precisely the amount the pending action needs.
	ApprovalExact ApprovalPolicy = "exact"
	// ApprovalUnlimited approves the maximum uint256 once.
	ApprovalUnlimited ApprovalPolicy = "unlimited"
)

// ParseApprovalPolicy converts a preference string into a policy.
func ParseApprovalPolicy(input string) (ApprovalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", string(ApprovalUnlimited):
		return ApprovalUnlimited, nil
	case string(ApprovalExact):
		return ApprovalExact, nil
	default:
		return "", fmt.Errorf("unknown approval mode %q", input)
	}
}

// ApprovalState is the allowance of spender over owner's token balance.
type ApprovalState struct {
	Owner            common.Address `json:"owner"`
	Spender          common.Address `json:"spender"`
	Token            common.Address `json:"token"`
	CurrentAllowance *big.Int       `json:"current_allowance"`
}
