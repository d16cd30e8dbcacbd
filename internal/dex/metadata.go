package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapdesk/internal/model"
)

// TokenCache caches token metadata by address. Metadata is immutable so
// entries never expire.
type TokenCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{data: make(map[common.Address]model.Token)}
}

func (c *TokenCache) Get(address common.Address) (model.Token, bool) {
	c.mu.RLock()
	tok, ok := c.data[address]
	c.mu.RUnlock()
	return tok, ok
}

func (c *TokenCache) Set(address common.Address, tok model.Token) {
	c.mu.Lock()
	c.data[address] = tok
	c.mu.Unlock()
}

// CallView packs method, runs an eth_call against contract and unpacks the
// outputs.
func CallView(ctx context.Context, caller ethereum.ContractCaller, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// FetchToken loads token metadata via ERC20 calls. Decimals are required;
// symbol and name fall back to the bytes32 encoding and are otherwise left
// empty.
func FetchToken(ctx context.Context, caller ethereum.ContractCaller, token common.Address, logger *zap.Logger) (model.Token, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tok := model.Token{Address: token}

	stringABI, err := erc20ABIString.get()
	if err != nil {
		return tok, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32.get()
	if err != nil {
		return tok, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := CallView(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return tok, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return tok, err
	}
	tok.Decimals = decimals

	tok.Symbol = fetchText(ctx, caller, token, "symbol", stringABI, bytes32ABI, logger)
	tok.Name = fetchText(ctx, caller, token, "name", stringABI, bytes32ABI, logger)
	return tok, nil
}

func fetchText(ctx context.Context, caller ethereum.ContractCaller, token common.Address, method string, stringABI, bytes32ABI abi.ABI, logger *zap.Logger) string {
	if values, err := CallView(ctx, caller, token, stringABI, method); err == nil {
		if text, ok := values[0].(string); ok {
			return text
		}
	}
	values, err := CallView(ctx, caller, token, bytes32ABI, method)
	if err != nil {
		logger.Debug(method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
		return ""
	}
	text, _ := bytes32ToString(values[0])
	return text
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

// AsAddress converts an unpacked ABI value to an address.
func AsAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

// AsBigInt converts an unpacked ABI integer to a fresh *big.Int.
func AsBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
