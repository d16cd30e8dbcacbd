package engine

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/approval"
	"swapdesk/internal/config"
	"swapdesk/internal/dex"
	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
	"swapdesk/internal/quote"
	"swapdesk/internal/readstate"
)

var (
	account = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	addrs   = dex.Addresses{
		Router:  common.HexToAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d"),
		Factory: common.HexToAddress("0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"),
		WETH:    common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
	}
	dai      = model.ERC20(common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"), "DAI", 18)
	usdc     = model.ERC20(common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), "USDC", 6)
	weth     = model.ERC20(addrs.WETH, "WETH", 18)
	pairAddr = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	now      = time.Unix(1_700_000_000, 0)
)

// ledger is an in-memory chain that counts every read.
type ledger struct {
	mu         sync.Mutex
	reads      map[string]int
	pairs      []model.PairState
	allowances map[common.Address]*big.Int
	balances   map[string]*big.Int
}

func newLedger() *ledger {
	return &ledger{
		reads:      make(map[string]int),
		allowances: make(map[common.Address]*big.Int),
		balances:   make(map[string]*big.Int),
	}
}

func (l *ledger) addPair(token0, token1 common.Address, r0, r1, supply int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pairs = append(l.pairs, model.PairState{
		Pair: pairAddr, Token0: token0, Token1: token1,
		Reserve0: big.NewInt(r0), Reserve1: big.NewInt(r1), TotalSupply: big.NewInt(supply),
	})
}

func (l *ledger) setPair(r0, r1 int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pairs[0].Reserve0 = big.NewInt(r0)
	l.pairs[0].Reserve1 = big.NewInt(r1)
}

func (l *ledger) setBalance(tok model.Token, v *big.Int) {
	l.mu.Lock()
	l.balances[tok.Key()] = v
	l.mu.Unlock()
}

func (l *ledger) setAllowance(token common.Address, v *big.Int) {
	l.mu.Lock()
	l.allowances[token] = v
	l.mu.Unlock()
}

func (l *ledger) count(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads[kind]
}

func (l *ledger) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.reads {
		n += c
	}
	return n
}

func (l *ledger) Reserves(_ context.Context, a, b common.Address) (model.PoolReserves, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads["reserves"]++
	for _, p := range l.pairs {
		if (p.Token0 == a && p.Token1 == b) || (p.Token0 == b && p.Token1 == a) {
			return p.Ordered(a), nil
		}
	}
	return model.PoolReserves{TokenA: a, TokenB: b, ReserveA: new(big.Int), ReserveB: new(big.Int), TotalShares: new(big.Int)}, nil
}

func (l *ledger) Allowance(_ context.Context, token, _, _ common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads["allowance"]++
	if v, ok := l.allowances[token]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (l *ledger) Balance(_ context.Context, token model.Token, _ common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads["balance"]++
	if v, ok := l.balances[token.Key()]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

type wallet struct {
	mu        sync.Mutex
	reject    bool
	submitted []model.Intent
}

func (w *wallet) Submit(_ context.Context, intent model.Intent) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reject {
		return common.Hash{}, model.ErrSignatureRejected
	}
	w.submitted = append(w.submitted, intent)
	return common.BigToHash(big.NewInt(int64(len(w.submitted)))), nil
}

func (w *wallet) Wait(_ context.Context, hash common.Hash) (model.ReceiptSummary, error) {
	return model.ReceiptSummary{TxHash: hash.Hex(), BlockNumber: 7}, nil
}

func (w *wallet) intents() []model.Intent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Intent(nil), w.submitted...)
}

type clearer struct {
	mu    sync.Mutex
	slots []string
}

func (c *clearer) ClearInput(slot string) {
	c.mu.Lock()
	c.slots = append(c.slots, slot)
	c.mu.Unlock()
}

func (c *clearer) cleared() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.slots...)
}

type harness struct {
	eng     *Engine
	src     *ledger
	cache   *readstate.Cache
	slots   *lifecycle.Slots
	wallet  *wallet
	clearer *clearer
}

func newHarness(t *testing.T, settings config.Settings) *harness {
	t.Helper()
	src := newLedger()
	cache := readstate.New(src, nil)
	w := &wallet{}
	cl := &clearer{}
	slots := lifecycle.NewSlots()
	slots.Subscribe(NewEffects(cache, account, addrs.WETH, cl, nil))
	driver := lifecycle.NewDriver(slots, w, time.Second, nil)
	eng := New(cache, driver, Options{
		Addresses: addrs,
		Account:   account,
		Settings:  func() config.Settings { return settings },
		Fresh:     src,
		Clock:     func() time.Time { return now },
	}, nil)
	return &harness{eng: eng, src: src, cache: cache, slots: slots, wallet: w, clearer: cl}
}

func TestSwapApprovesThenSubmits(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 1)
	h.src.setBalance(dai, big.NewInt(1_000))

	lc, err := h.eng.Swap(context.Background(), SwapRequest{TokenIn: dai, TokenOut: usdc, AmountIn: big.NewInt(100)})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Confirmed, lc.State())

	intents := h.wallet.intents()
	require.Len(t, intents, 2)
	approve, ok := intents[0].(model.ApproveIntent)
	require.True(t, ok)
	assert.Equal(t, addrs.Router, approve.Spender)
	assert.Equal(t, approval.MaxAmount(), approve.Amount)

	swap, ok := intents[1].(model.SwapIntent)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(199), swap.AmountOutMin)
	assert.Equal(t, []common.Address{dai.Address, usdc.Address}, swap.Path)
	assert.Equal(t, account, swap.Recipient)
	assert.Equal(t, uint64(now.Add(5*time.Minute).Unix()), swap.Deadline)

	assert.Equal(t, []string{SlotSwap}, h.clearer.cleared())
}

func TestSwapUsesSettingsSnapshot(t *testing.T) {
	s := config.DefaultSettings()
	s.SlippageBps = 100
	h := newHarness(t, s)
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 1)
	h.src.setBalance(dai, big.NewInt(1_000))

	plan, err := h.eng.PlanSwap(context.Background(), SwapRequest{TokenIn: dai, TokenOut: usdc, AmountIn: big.NewInt(100)})
	require.NoError(t, err)
	assert.Equal(t, uint32(100), plan.Settings.SlippageBps)
	assert.Equal(t, big.NewInt(198), plan.Intent.AmountOutMin)
}

func TestSwapWrapBypassesPoolAndApproval(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.setBalance(model.NativeToken, big.NewInt(5))

	_, err := h.eng.Swap(context.Background(), SwapRequest{TokenIn: model.NativeToken, TokenOut: weth, AmountIn: big.NewInt(5)})
	require.NoError(t, err)

	intents := h.wallet.intents()
	require.Len(t, intents, 1)
	swap := intents[0].(model.SwapIntent)
	assert.Equal(t, big.NewInt(5), swap.AmountOutMin)
	assert.Empty(t, swap.Path)
	assert.Zero(t, h.src.count("reserves"))
	assert.Zero(t, h.src.count("allowance"))
}

func TestSwapInsufficientBalance(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 1)
	h.src.setBalance(dai, big.NewInt(50))

	_, err := h.eng.Swap(context.Background(), SwapRequest{TokenIn: dai, TokenOut: usdc, AmountIn: big.NewInt(100)})
	require.ErrorIs(t, err, model.ErrInsufficientBalance)
	assert.Empty(t, h.wallet.intents())
}

func TestSwapNoLiquidity(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.setBalance(dai, big.NewInt(1_000))

	_, err := h.eng.Swap(context.Background(), SwapRequest{TokenIn: dai, TokenOut: usdc, AmountIn: big.NewInt(100)})
	require.ErrorIs(t, err, ErrNoLiquidity)
}

func TestSwapRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	ctx := context.Background()

	_, err := h.eng.Swap(ctx, SwapRequest{TokenIn: dai, TokenOut: usdc})
	require.ErrorIs(t, err, model.ErrInvalidAmount)
	_, err = h.eng.Swap(ctx, SwapRequest{TokenIn: dai, TokenOut: dai, AmountIn: big.NewInt(1)})
	require.ErrorIs(t, err, model.ErrDegeneratePair)
	assert.Zero(t, h.src.total())
}

func TestSwapStaleQuoteBlocksSubmission(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 1)
	h.src.setBalance(dai, big.NewInt(1_000))
	h.src.setAllowance(dai.Address, approval.MaxAmount())
	ctx := context.Background()

	plan, err := h.eng.PlanSwap(ctx, SwapRequest{TokenIn: dai, TokenOut: usdc, AmountIn: big.NewInt(100)})
	require.NoError(t, err)
	assert.Empty(t, plan.Approvals)

	h.src.setPair(1_000, 1_000)
	_, err = h.eng.ExecuteSwap(ctx, plan)
	require.ErrorIs(t, err, model.ErrStaleQuote)
	assert.Empty(t, h.wallet.intents())
}

func TestRejectedSignatureKeepsCaches(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 1)
	h.src.setBalance(dai, big.NewInt(1_000))
	h.src.setAllowance(dai.Address, approval.MaxAmount())
	h.wallet.reject = true
	ctx := context.Background()

	lc, err := h.eng.Swap(ctx, SwapRequest{TokenIn: dai, TokenOut: usdc, AmountIn: big.NewInt(100)})
	require.ErrorIs(t, err, model.ErrSignatureRejected)
	assert.Equal(t, lifecycle.Failed, lc.State())

	reads := h.src.total()
	balance, err := h.cache.Balance(ctx, dai, account)
	require.NoError(t, err)
	allowance, err := h.cache.Allowance(ctx, dai.Address, account, addrs.Router)
	require.NoError(t, err)
	reserves, err := h.cache.Reserves(ctx, dai.Address, usdc.Address)
	require.NoError(t, err)

	assert.Equal(t, reads, h.src.total())
	assert.Equal(t, big.NewInt(1_000), balance)
	assert.Equal(t, approval.MaxAmount(), allowance)
	assert.Equal(t, big.NewInt(2_000), reserves.ReserveB)
	assert.Empty(t, h.clearer.cleared())
}

func TestConfirmedSwapInvalidatesCaches(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 1)
	h.src.setBalance(dai, big.NewInt(1_000))
	h.src.setAllowance(dai.Address, approval.MaxAmount())
	ctx := context.Background()

	_, err := h.eng.Swap(ctx, SwapRequest{TokenIn: dai, TokenOut: usdc, AmountIn: big.NewInt(100)})
	require.NoError(t, err)

	balances, allowances, reserves := h.src.count("balance"), h.src.count("allowance"), h.src.count("reserves")
	_, err = h.cache.Balance(ctx, dai, account)
	require.NoError(t, err)
	_, err = h.cache.Reserves(ctx, usdc.Address, dai.Address)
	require.NoError(t, err)
	_, err = h.cache.Allowance(ctx, dai.Address, account, addrs.Router)
	require.NoError(t, err)

	assert.Equal(t, balances+1, h.src.count("balance"))
	assert.Equal(t, reserves+1, h.src.count("reserves"))
	assert.Equal(t, allowances, h.src.count("allowance"))
}

func TestApproveInvalidatesAllowanceOnly(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	ctx := context.Background()
	_, err := h.cache.Allowance(ctx, dai.Address, account, addrs.Router)
	require.NoError(t, err)

	lc, err := h.eng.Approve(ctx, dai, big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, ApproveSlot(dai), lc.Slot())

	before := h.src.count("allowance")
	_, err = h.cache.Allowance(ctx, dai.Address, account, addrs.Router)
	require.NoError(t, err)
	assert.Equal(t, before+1, h.src.count("allowance"))
	assert.Empty(t, h.clearer.cleared())

	_, err = h.eng.Approve(ctx, model.NativeToken, nil)
	require.ErrorIs(t, err, ErrNothingToApprove)
}

func TestStandaloneApprovalsUseTokenSlots(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	ctx := context.Background()

	// a deposit's side-A approval is still pending
	_, err := h.slots.Start(SlotApproveA, model.ApproveIntent{Token: dai, Spender: addrs.Router, Amount: big.NewInt(1)})
	require.NoError(t, err)

	lc, err := h.eng.Approve(ctx, usdc, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Confirmed, lc.State())
	assert.Equal(t, "approve:"+usdc.Key(), lc.Slot())

	_, err = h.slots.Start(ApproveSlot(dai), model.ApproveIntent{Token: dai, Spender: addrs.Router, Amount: big.NewInt(1)})
	require.NoError(t, err)
	_, err = h.eng.Approve(ctx, dai, big.NewInt(7))
	require.ErrorIs(t, err, model.ErrSlotBusy)
}

func TestAddLiquidityNativeAndWrappedRejected(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())

	_, err := h.eng.AddLiquidity(context.Background(), AddLiquidityRequest{
		TokenA: model.NativeToken, TokenB: weth,
		AmountA: big.NewInt(1), AmountB: big.NewInt(1),
	})
	require.ErrorIs(t, err, model.ErrUnsupportedPair)
	assert.Zero(t, h.src.total())
	assert.Empty(t, h.wallet.intents())
}

func TestAddLiquidityPairsFromReserves(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 500)
	h.src.setBalance(dai, big.NewInt(1_000))
	h.src.setBalance(usdc, big.NewInt(1_000))
	h.src.setAllowance(dai.Address, approval.MaxAmount())
	h.src.setAllowance(usdc.Address, approval.MaxAmount())

	plan, err := h.eng.PlanAddLiquidity(context.Background(), AddLiquidityRequest{TokenA: dai, TokenB: usdc, AmountA: big.NewInt(100)})
	require.NoError(t, err)
	assert.False(t, plan.NewPool)
	assert.Empty(t, plan.Approvals)
	assert.Equal(t, big.NewInt(200), plan.Intent.AmountBDesired)
	assert.Equal(t, big.NewInt(99), plan.Intent.AmountAMin)
	assert.Equal(t, big.NewInt(199), plan.Intent.AmountBMin)
	assert.Equal(t, uint64(now.Add(10*time.Minute).Unix()), plan.Intent.Deadline)

	lc, err := h.eng.ExecuteAddLiquidity(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, SlotAddLiquidity, lc.Slot())
	assert.Len(t, h.wallet.intents(), 1)
}

func TestAddLiquidityApprovesEachSide(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 500)
	h.src.setBalance(dai, big.NewInt(1_000))
	h.src.setBalance(usdc, big.NewInt(1_000))

	plan, err := h.eng.PlanAddLiquidity(context.Background(), AddLiquidityRequest{TokenA: dai, TokenB: usdc, AmountA: big.NewInt(100)})
	require.NoError(t, err)
	require.Len(t, plan.Approvals, 2)
	assert.Equal(t, SlotApproveA, plan.Approvals[0].Side.Slot)
	assert.Equal(t, SlotApproveB, plan.Approvals[1].Side.Slot)

	_, err = h.eng.ExecuteAddLiquidity(context.Background(), plan)
	require.NoError(t, err)
	assert.Len(t, h.wallet.intents(), 3)
}

func TestAddLiquidityNewPoolNeedsBothAmounts(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.setBalance(dai, big.NewInt(1_000))
	h.src.setBalance(model.NativeToken, big.NewInt(1_000))
	ctx := context.Background()

	_, err := h.eng.PlanAddLiquidity(ctx, AddLiquidityRequest{TokenA: dai, TokenB: model.NativeToken, AmountA: big.NewInt(100)})
	require.ErrorIs(t, err, model.ErrInvalidAmount)

	plan, err := h.eng.PlanAddLiquidity(ctx, AddLiquidityRequest{
		TokenA: dai, TokenB: model.NativeToken, AmountA: big.NewInt(100), AmountB: big.NewInt(3),
	})
	require.NoError(t, err)
	assert.True(t, plan.NewPool)
	require.Len(t, plan.Approvals, 1)
	assert.Equal(t, dai, plan.Approvals[0].Side.Token)
}

func TestRemoveLiquidityApprovesLPToken(t *testing.T) {
	h := newHarness(t, config.DefaultSettings())
	h.src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 1_000)
	h.src.setBalance(model.LPToken(pairAddr), big.NewInt(100))
	ctx := context.Background()

	plan, err := h.eng.PlanRemoveLiquidity(ctx, RemoveLiquidityRequest{TokenA: dai, TokenB: usdc})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), plan.ExpectedA)
	assert.Equal(t, big.NewInt(200), plan.ExpectedB)
	assert.Equal(t, big.NewInt(99), plan.Intent.AmountAMin)
	assert.Equal(t, big.NewInt(199), plan.Intent.AmountBMin)
	require.Len(t, plan.Approvals, 1)
	assert.Equal(t, SlotApproveLP, plan.Approvals[0].Side.Slot)

	_, err = h.eng.ExecuteRemoveLiquidity(ctx, plan)
	require.NoError(t, err)
	intents := h.wallet.intents()
	require.Len(t, intents, 2)
	assert.Equal(t, pairAddr, intents[0].(model.ApproveIntent).Token.Address)
	assert.Equal(t, model.KindRemoveLiquidity, intents[1].Kind())

	_, err = h.eng.PlanRemoveLiquidity(ctx, RemoveLiquidityRequest{TokenA: dai, TokenB: usdc, Liquidity: big.NewInt(101)})
	require.ErrorIs(t, err, model.ErrInsufficientBalance)
}

// gatedReads holds the first reserves read until released.
type gatedReads struct {
	*ledger
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedReads) Reserves(ctx context.Context, a, b common.Address) (model.PoolReserves, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.ledger.Reserves(ctx, a, b)
}

func TestLiveQuoteDropsSupersededResult(t *testing.T) {
	src := newLedger()
	src.addPair(dai.Address, usdc.Address, 1_000, 2_000, 1)
	reads := &gatedReads{ledger: src, entered: make(chan struct{}), release: make(chan struct{})}
	eng := New(reads, nil, Options{Addresses: addrs, Account: account}, nil)
	ctx := context.Background()

	type result struct {
		ok  bool
		err error
	}
	first := make(chan result, 1)
	go func() {
		_, ok, err := eng.LiveQuote(ctx, quoteRequest(100))
		first <- result{ok, err}
	}()
	<-reads.entered

	q, ok, err := eng.LiveQuote(ctx, quoteRequest(50))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, big.NewInt(100), q.AmountOut)

	close(reads.release)
	r := <-first
	require.NoError(t, r.err)
	assert.False(t, r.ok)
}

func quoteRequest(in int64) quote.Request {
	return quote.Request{TokenIn: dai, TokenOut: usdc, AmountIn: big.NewInt(in)}
}
