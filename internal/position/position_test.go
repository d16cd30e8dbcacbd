package position

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/model"
)

func TestShareBps(t *testing.T) {
	total := big.NewInt(1_000_000)
	assert.Equal(t, uint64(10_000), ShareBps(total, total))
	assert.Equal(t, uint64(0), ShareBps(big.NewInt(0), total))
	assert.Equal(t, uint64(0), ShareBps(big.NewInt(5), big.NewInt(0)))
	assert.Equal(t, uint64(3333), ShareBps(big.NewInt(1), big.NewInt(3)))
}

func TestUnderlyingFloors(t *testing.T) {
	assert.Equal(t, int64(333), Underlying(big.NewInt(1000), big.NewInt(1), big.NewInt(3)).Int64())
	assert.Zero(t, Underlying(big.NewInt(1000), big.NewInt(1), big.NewInt(0)).Sign())
}

func TestCompute(t *testing.T) {
	state := model.PairState{
		Pair:        common.HexToAddress("0x0000000000000000000000000000000000000abc"),
		Reserve0:    big.NewInt(1000),
		Reserve1:    big.NewInt(4000),
		TotalSupply: big.NewInt(2000),
	}
	pos := Compute(state, model.Token{Symbol: "A"}, model.Token{Symbol: "B"}, big.NewInt(500))
	assert.Equal(t, uint64(2500), pos.ShareBps)
	assert.Equal(t, int64(250), pos.Underlying0.Int64())
	assert.Equal(t, int64(1000), pos.Underlying1.Int64())
}

type fakeLedger struct {
	pairs    []common.Address
	states   map[common.Address]model.PairState
	balances map[common.Address]*big.Int
}

func (f *fakeLedger) AllPairs(context.Context) ([]common.Address, error) { return f.pairs, nil }

func (f *fakeLedger) PairState(_ context.Context, pair common.Address) (model.PairState, error) {
	s, ok := f.states[pair]
	if !ok {
		return model.PairState{}, errors.New("no pair")
	}
	return s, nil
}

func (f *fakeLedger) BalanceOf(_ context.Context, token, _ common.Address) (*big.Int, error) {
	if b, ok := f.balances[token]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func TestReaderSkipsEmptyPositions(t *testing.T) {
	held := common.HexToAddress("0x0000000000000000000000000000000000000001")
	empty := common.HexToAddress("0x0000000000000000000000000000000000000002")
	ledger := &fakeLedger{
		pairs: []common.Address{held, empty},
		states: map[common.Address]model.PairState{
			held: {Pair: held, Reserve0: big.NewInt(100), Reserve1: big.NewInt(100), TotalSupply: big.NewInt(100)},
		},
		balances: map[common.Address]*big.Int{held: big.NewInt(100)},
	}

	positions, err := NewReader(ledger, nil, nil).Positions(context.Background(), common.Address{}, nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, held, positions[0].Pair)
	assert.Equal(t, uint64(10_000), positions[0].ShareBps)
	assert.Equal(t, "T0", positions[0].Token0.Symbol)
}
