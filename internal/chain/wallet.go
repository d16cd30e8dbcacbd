package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"swapdesk/internal/dex"
)

// Wallet is the external signer. Implementations report a declined request
// as model.ErrSignatureRejected.
type Wallet interface {
	Address() common.Address
	SendTransaction(ctx context.Context, call dex.Call) (common.Hash, error)
}

// NodeWallet submits through eth_sendTransaction so the node (or a wallet
// provider behind it) signs with an account it manages.
type NodeWallet struct {
	rpc  *rpc.Client
	from common.Address
}

func NewNodeWallet(rpcClient *rpc.Client, from common.Address) *NodeWallet {
	return &NodeWallet{rpc: rpcClient, from: from}
}

func (w *NodeWallet) Address() common.Address { return w.from }

type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

func (w *NodeWallet) SendTransaction(ctx context.Context, call dex.Call) (common.Hash, error) {
	to := call.To
	args := sendTxArgs{From: w.from, To: &to, Data: call.Data}
	if call.Value != nil && call.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(call.Value)
	}
	var hash common.Hash
	if err := w.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", call.Method, classify(err))
	}
	return hash, nil
}
