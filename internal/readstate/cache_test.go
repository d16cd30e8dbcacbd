package readstate

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/model"
)

var (
	tokA  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokB  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	pair  = common.HexToAddress("0x0000000000000000000000000000000000000abc")
	owner = common.HexToAddress("0x0000000000000000000000000000000000000111")
	spend = common.HexToAddress("0x0000000000000000000000000000000000000222")
)

type countingSource struct {
	mu        sync.Mutex
	reads     map[string]int
	allowance int64
	balance   int64
	fail      bool
}

func newSource() *countingSource {
	return &countingSource{reads: make(map[string]int), allowance: 10, balance: 100}
}

func (s *countingSource) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[kind]
}

func (s *countingSource) hit(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[kind]++
	if s.fail {
		return errors.New("rpc down")
	}
	return nil
}

func (s *countingSource) Reserves(ctx context.Context, a, b common.Address) (model.PoolReserves, error) {
	if err := s.hit("reserves"); err != nil {
		return model.PoolReserves{}, err
	}
	state := model.PairState{Pair: pair, Token0: tokA, Token1: tokB,
		Reserve0: big.NewInt(1_000), Reserve1: big.NewInt(2_000), TotalSupply: big.NewInt(1)}
	return state.Ordered(a), nil
}

func (s *countingSource) Allowance(ctx context.Context, token, o, sp common.Address) (*big.Int, error) {
	if err := s.hit("allowance"); err != nil {
		return nil, err
	}
	return big.NewInt(s.allowance), nil
}

func (s *countingSource) Balance(ctx context.Context, token model.Token, o common.Address) (*big.Int, error) {
	if err := s.hit("balance"); err != nil {
		return nil, err
	}
	return big.NewInt(s.balance), nil
}

func TestReservesCachedInBothOrders(t *testing.T) {
	src := newSource()
	c := New(src, nil)
	ctx := context.Background()

	ab, err := c.Reserves(ctx, tokA, tokB)
	require.NoError(t, err)
	ba, err := c.Reserves(ctx, tokB, tokA)
	require.NoError(t, err)

	assert.Equal(t, 1, src.count("reserves"))
	assert.Equal(t, ab.ReserveA, ba.ReserveB)

	assert.Equal(t, 1, c.InvalidatePair(pair))
	_, err = c.Reserves(ctx, tokB, tokA)
	require.NoError(t, err)
	assert.Equal(t, 2, src.count("reserves"))
}

func TestInvalidateForcesRefetch(t *testing.T) {
	src := newSource()
	c := New(src, nil)
	ctx := context.Background()
	token := model.ERC20(tokA, "A", 18)

	v, err := c.Allowance(ctx, tokA, owner, spend)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.Int64())

	src.allowance = 99
	v, _ = c.Allowance(ctx, tokA, owner, spend)
	assert.Equal(t, int64(10), v.Int64(), "served from cache")

	c.InvalidateAllowance(tokA, owner, spend)
	v, _ = c.Allowance(ctx, tokA, owner, spend)
	assert.Equal(t, int64(99), v.Int64())

	_, _ = c.Balance(ctx, token, owner)
	_, _ = c.Balance(ctx, token, owner)
	assert.Equal(t, 1, src.count("balance"))
	c.InvalidateBalances(owner, token)
	_, _ = c.Balance(ctx, token, owner)
	assert.Equal(t, 2, src.count("balance"))
}

func TestCachedValuesAreCopies(t *testing.T) {
	c := New(newSource(), nil)
	v, err := c.Allowance(context.Background(), tokA, owner, spend)
	require.NoError(t, err)
	v.SetInt64(0)

	again, _ := c.Allowance(context.Background(), tokA, owner, spend)
	assert.Equal(t, int64(10), again.Int64())
}

func TestRefreshKeepsStaleOnFailure(t *testing.T) {
	src := newSource()
	c := New(src, nil)
	ctx := context.Background()

	_, _ = c.Allowance(ctx, tokA, owner, spend)
	_, _ = c.Balance(ctx, model.NativeToken, owner)

	src.allowance, src.balance = 20, 200
	require.NoError(t, c.Refresh(ctx))
	v, _ := c.Allowance(ctx, tokA, owner, spend)
	assert.Equal(t, int64(20), v.Int64())
	b, _ := c.Balance(ctx, model.NativeToken, owner)
	assert.Equal(t, int64(200), b.Int64())

	src.fail = true
	require.Error(t, c.Refresh(ctx))
	v, _ = c.Allowance(ctx, tokA, owner, spend)
	assert.Equal(t, int64(20), v.Int64())
}

func TestRunPollsUntilCancelled(t *testing.T) {
	src := newSource()
	c := New(src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = c.Allowance(ctx, tokA, owner, spend)

	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.count("allowance") >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

// stallingSource holds allowance reads after they have sampled the chain value.
type stallingSource struct {
	*countingSource
	sampled chan struct{}
	release chan struct{}
	stall   bool
}

func (s *stallingSource) Allowance(ctx context.Context, token, o, sp common.Address) (*big.Int, error) {
	s.mu.Lock()
	v := big.NewInt(s.allowance)
	stall := s.stall
	s.stall = false
	s.mu.Unlock()
	if stall {
		close(s.sampled)
		<-s.release
	}
	return v, nil
}

func TestInvalidationWinsOverInFlightRefresh(t *testing.T) {
	src := &stallingSource{
		countingSource: newSource(),
		sampled:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	c := New(src, nil)
	ctx := context.Background()

	v, err := c.Allowance(ctx, tokA, owner, spend)
	require.NoError(t, err)
	require.Equal(t, int64(10), v.Int64())

	src.mu.Lock()
	src.stall = true
	src.mu.Unlock()
	refreshed := make(chan error, 1)
	go func() { refreshed <- c.Refresh(ctx) }()
	<-src.sampled

	// the approval confirms while the refresh still holds the old value
	src.mu.Lock()
	src.allowance = 1_000_000
	src.mu.Unlock()
	c.InvalidateAllowance(tokA, owner, spend)
	close(src.release)
	require.NoError(t, <-refreshed)

	v, err = c.Allowance(ctx, tokA, owner, spend)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), v.Int64())
}

func TestInvalidatePairDropsInFlightReserves(t *testing.T) {
	c := New(newSource(), nil)
	key := pairKey{tokA, tokB}
	gen := c.reserves.Gen(key)
	c.reserves.Set(key, model.PoolReserves{Pair: pair})

	assert.Equal(t, 1, c.InvalidatePair(pair))
	assert.False(t, c.reserves.SetIfGen(key, model.PoolReserves{Pair: pair}, gen))
	_, ok := c.reserves.Get(key)
	assert.False(t, ok)
}
