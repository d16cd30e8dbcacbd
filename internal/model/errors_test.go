package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "Unknown error"},
		{"rejected", fmt.Errorf("submit swap: %w", ErrSignatureRejected), "Request rejected in wallet"},
		{"revert with reason", fmt.Errorf("wait: %w: %s", ErrExecutionReverted, "UniswapV2Router: EXPIRED"), "Transaction reverted: UniswapV2Router: EXPIRED"},
		{"revert bare", ErrExecutionReverted, "Transaction reverted"},
		{"unknown wrapped", fmt.Errorf("call getReserves: %w", errors.New("connection refused")), "connection refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HumanError(tc.err))
		})
	}
}

func TestPairStateOrdered(t *testing.T) {
	state := PairState{
		Token0:      addr("0x01"),
		Token1:      addr("0x02"),
		Reserve0:    bigInt(1000),
		Reserve1:    bigInt(2000),
		TotalSupply: bigInt(10),
	}

	same := state.Ordered(addr("0x01"))
	assert.Equal(t, int64(1000), same.ReserveA.Int64())
	assert.Equal(t, int64(2000), same.ReserveB.Int64())

	flipped := state.Ordered(addr("0x02"))
	assert.Equal(t, int64(2000), flipped.ReserveA.Int64())
	assert.Equal(t, int64(1000), flipped.ReserveB.Int64())
	assert.Equal(t, addr("0x02"), flipped.TokenA)
	assert.True(t, flipped.Initialized())
}

func TestTokenSame(t *testing.T) {
	weth := ERC20(addr("0xc0"), "WETH", 18)
	assert.True(t, NativeToken.Same(NativeToken))
	assert.False(t, NativeToken.Same(weth))
	assert.True(t, weth.Same(ERC20(addr("0xc0"), "", 18)))
}

func TestParseApprovalPolicy(t *testing.T) {
	p, err := ParseApprovalPolicy("")
	assert.NoError(t, err)
	assert.Equal(t, ApprovalUnlimited, p)

	p, err = ParseApprovalPolicy(" Exact ")
	assert.NoError(t, err)
	assert.Equal(t, ApprovalExact, p)

	_, err = ParseApprovalPolicy("forever")
	assert.Error(t, err)
}
