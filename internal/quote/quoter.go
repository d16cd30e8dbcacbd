package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/model"
)

// ReserveReader returns a reserves snapshot ordered to (tokenA, tokenB).
type ReserveReader interface {
	Reserves(ctx context.Context, tokenA, tokenB common.Address) (model.PoolReserves, error)
}

// Request is one quote input as typed by the user.
type Request struct {
	TokenIn  model.Token
	TokenOut model.Token
	// Via lists intermediate tokens for multi-hop routes.
	Via      []model.Token
	AmountIn *big.Int
}

// Fingerprint identifies the inputs that produced a quote.
func (r Request) Fingerprint() string {
	parts := []string{r.TokenIn.Key()}
	for _, t := range r.Via {
		parts = append(parts, t.Key())
	}
	parts = append(parts, r.TokenOut.Key())
	amount := "0"
	if r.AmountIn != nil {
		amount = r.AmountIn.String()
	}
	return strings.Join(parts, ">") + "@" + amount
}

// Quote is the result of quoting a Request against one reserves snapshot.
type Quote struct {
	Request   Request
	AmountOut *big.Int
	Amounts   []*big.Int
	Path      []common.Address
	Reserves  []model.PoolReserves
	Wrap      bool
}

// Quoter resolves reserves for a route and applies constant-product math.
type Quoter struct {
	reader  ReserveReader
	wrapped common.Address
	logger  *zap.Logger
}

func NewQuoter(reader ReserveReader, wrapped common.Address, logger *zap.Logger) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quoter{reader: reader, wrapped: wrapped, logger: logger}
}

// Quote prices req. Native/wrapped conversions bypass pool math entirely.
func (q *Quoter) Quote(ctx context.Context, req Request) (Quote, error) {
	amountIn := req.AmountIn
	if amountIn == nil {
		amountIn = new(big.Int)
	}

	if len(req.Via) == 0 && IsWrap(req.TokenIn, req.TokenOut, q.wrapped) {
		return Quote{
			Request:   req,
			AmountOut: new(big.Int).Set(amountIn),
			Amounts:   []*big.Int{new(big.Int).Set(amountIn), new(big.Int).Set(amountIn)},
			Wrap:      true,
		}, nil
	}

	path := q.routePath(req)
	hops := make([]Hop, 0, len(path)-1)
	snapshots := make([]model.PoolReserves, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		if path[i] == path[i+1] {
			return Quote{}, fmt.Errorf("hop %d %s: %w", i, path[i].Hex(), model.ErrDegeneratePair)
		}
		if amountIn.Sign() == 0 {
			continue
		}
		reserves, err := q.reader.Reserves(ctx, path[i], path[i+1])
		if err != nil {
			return Quote{}, fmt.Errorf("read reserves %s/%s: %w", path[i].Hex(), path[i+1].Hex(), err)
		}
		snapshots = append(snapshots, reserves)
		hops = append(hops, Hop{
			TokenIn:    path[i],
			TokenOut:   path[i+1],
			ReserveIn:  reserves.ReserveA,
			ReserveOut: reserves.ReserveB,
		})
	}

	if amountIn.Sign() == 0 {
		amounts := make([]*big.Int, len(path))
		for i := range amounts {
			amounts[i] = new(big.Int)
		}
		return Quote{Request: req, AmountOut: new(big.Int), Amounts: amounts, Path: path}, nil
	}

	amounts, err := Compose(amountIn, hops)
	if err != nil {
		return Quote{}, err
	}
	out := amounts[len(amounts)-1]
	q.logger.Debug("quote computed",
		zap.String("request", req.Fingerprint()),
		zap.String("amount_out", out.String()),
		zap.Int("hops", len(hops)),
	)
	return Quote{Request: req, AmountOut: out, Amounts: amounts, Path: path, Reserves: snapshots}, nil
}

// routePath maps the native sentinel to its wrapped form for pool lookups.
func (q *Quoter) routePath(req Request) []common.Address {
	path := make([]common.Address, 0, len(req.Via)+2)
	path = append(path, q.routeAddress(req.TokenIn))
	for _, t := range req.Via {
		path = append(path, q.routeAddress(t))
	}
	return append(path, q.routeAddress(req.TokenOut))
}

func (q *Quoter) routeAddress(t model.Token) common.Address {
	if t.Native {
		return q.wrapped
	}
	return t.Address
}
