package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const defaultResolverCacheSize = 4096

// TokenPair holds a pool's token legs as lower-case hex addresses.
type TokenPair struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
}

// TokenResolver resolves the token legs of a pool. Implementations may call out to
// the chain; decoders treat any error as "unavailable".
type TokenResolver interface {
	ResolveTokens(ctx context.Context, pool common.Address) (TokenPair, error)
}

// ContractCaller performs eth_call. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainTokenResolver reads token0/token1 from the pool contract and caches the
// result, since both are immutable for V3 pools.
type ChainTokenResolver struct {
	caller ContractCaller
	cache  *lru.Cache[common.Address, TokenPair]
	logger *zap.Logger
}

// NewChainTokenResolver builds a resolver with an LRU cache of cacheSize pools.
func NewChainTokenResolver(caller ContractCaller, cacheSize int, logger *zap.Logger) (*ChainTokenResolver, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	if cacheSize <= 0 {
		cacheSize = defaultResolverCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[common.Address, TokenPair](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolver cache: %w", err)
	}
	return &ChainTokenResolver{caller: caller, cache: cache, logger: logger}, nil
}

// ResolveTokens implements TokenResolver.
func (r *ChainTokenResolver) ResolveTokens(ctx context.Context, pool common.Address) (TokenPair, error) {
	if pair, ok := r.cache.Get(pool); ok {
		return pair, nil
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return TokenPair{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callPoolMethod(ctx, r.caller, pool, poolABI, "token0", nil)
	if err != nil {
		return TokenPair{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return TokenPair{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callPoolMethod(ctx, r.caller, pool, poolABI, "token1", nil)
	if err != nil {
		return TokenPair{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return TokenPair{}, fmt.Errorf("token1: %w", err)
	}

	pair := TokenPair{Token0: lowerHex(token0), Token1: lowerHex(token1)}
	r.cache.Add(pool, pair)
	r.logger.Debug("pool tokens resolved",
		zap.String("pool", pool.Hex()),
		zap.String("token0", pair.Token0),
		zap.String("token1", pair.Token1),
	)
	return pair, nil
}

func callPoolMethod(ctx context.Context, caller ContractCaller, pool common.Address, poolABI abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := poolABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pool, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := poolABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
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
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
