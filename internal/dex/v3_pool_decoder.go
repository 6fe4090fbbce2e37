package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"tradeScope/internal/amount"
	"tradeScope/internal/model"
)

const (
	UniswapV3SwapType     = "uniswap_v3_swap"
	PancakeSwapV3SwapType = "pancakeswap_v3_swap"
)

// V3PoolDecoder decodes Uniswap V3 style pool Swap events. Forks whose Swap event
// extends the V3 data layout are decoded through the same ABI under their own topic0.
type V3PoolDecoder struct {
	name    string
	typeTag string
	topic0  common.Hash
	poolABI abi.ABI
}

// NewUniswapV3Decoder builds a decoder for the canonical V3 Swap event.
func NewUniswapV3Decoder() (*V3PoolDecoder, error) {
	return NewV3PoolDecoder("uniswap_v3", UniswapV3SwapType, SwapTopic)
}

// NewPancakeSwapV3Decoder builds a decoder for PancakeSwap V3 pools.
func NewPancakeSwapV3Decoder() (*V3PoolDecoder, error) {
	return NewV3PoolDecoder("pancakeswap_v3", PancakeSwapV3SwapType, PancakeSwapV3SwapTopic)
}

// NewV3PoolDecoder builds a V3 pool decoder bound to topic0.
func NewV3PoolDecoder(name, typeTag string, topic0 common.Hash) (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	return &V3PoolDecoder{
		name:    name,
		typeTag: typeTag,
		topic0:  topic0,
		poolABI: poolABI,
	}, nil
}

func (d *V3PoolDecoder) Name() string {
	return d.name
}

func (d *V3PoolDecoder) Topic0() common.Hash {
	return d.topic0
}

// CanDecode checks if the topic0 is the decoder's event signature.
func (d *V3PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	hash, err := parseTopicHash(topic0)
	if err != nil {
		return false
	}
	return hash == d.topic0
}

// DecodeLog converts a Swap log into a TradeEvent.
func (d *V3PoolDecoder) DecodeLog(in LogInput, ctx DecodeContext) (*model.TradeEvent, error) {
	log := in.Log
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	if !d.CanDecode(log.Topics[0]) {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	swap, err := d.decodeSwap(log)
	if err != nil {
		return nil, err
	}
	ctx.logger().Debug("v3 swap",
		zap.String("pool", log.Address),
		zap.String("sqrt_price_x96", swap.sqrtPriceX96.String()),
		zap.String("liquidity", swap.liquidity.String()),
		zap.Int32("tick", swap.tick),
	)

	tokens := resolveTokens(ctx, pool)
	poolAddr := lowerHex(pool)

	// amount0/amount1 are pool-side deltas; the user side is their negation.
	trade := &model.Trade{
		TokenAAddress:            tokens.Token0,
		TokenBAddress:            tokens.Token1,
		UserATokenAccountAddress: swap.sender,
		UserAAccountOwnerAddress: swap.sender,
		UserBTokenAccountAddress: swap.recipient,
		UserBAccountOwnerAddress: swap.recipient,
		UserAAmount:              amount.String(amount.Neg(swap.amount0)),
		UserBAmount:              amount.String(amount.Neg(swap.amount1)),
		UserAPreAmount:           "0",
		UserAPostAmount:          "0",
		UserBPreAmount:           "0",
		UserBPostAmount:          "0",
		WasOriginalDirection:     true,
		PoolAddress:              poolAddr,
		VaultA:                   tokens.Token0,
		VaultB:                   tokens.Token1,
		VaultAOwnerAddress:       poolAddr,
		VaultBOwnerAddress:       poolAddr,
		VaultAAmount:             amount.String(swap.amount0),
		VaultBAmount:             amount.String(swap.amount1),
		VaultAPreAmount:          "0",
		VaultBPreAmount:          "0",
		VaultAPostAmount:         "0",
		VaultBPostAmount:         "0",
	}

	return &model.TradeEvent{
		Instruction: &model.Instruction{
			Index: uint32(log.LogIndex),
			Type:  d.typeTag,
		},
		Block:       buildLogBlock(in),
		Transaction: buildLogTransaction(in),
		DApp: &model.DApp{
			ProgramAddress: poolAddr,
			Chain:          in.Chain,
		},
		Trade: trade,
	}, nil
}

func buildLogBlock(in LogInput) *model.Block {
	block := in.Block
	if block.Hash == "" {
		block.Hash = in.Log.BlockHash
	}
	if block.Height == 0 {
		block.Height = in.Log.BlockNumber
	}
	if block.Timestamp == 0 {
		block.Timestamp = int64(in.Log.Timestamp)
	}
	return &block
}

func buildLogTransaction(in LogInput) *model.Transaction {
	tx := &model.Transaction{
		Index:     uint32(in.Log.TxIndex),
		Signature: in.Log.TxHash,
		Status:    model.TxStatusSuccess,
	}
	if in.Transaction != nil {
		from := strings.ToLower(in.Transaction.From)
		tx.Fee = in.Transaction.GasUsed
		tx.FeePayer = from
		tx.Signer = from
		tx.Index = uint32(in.Transaction.Index)
		if in.Transaction.Hash != "" {
			tx.Signature = in.Transaction.Hash
		}
	}
	return tx
}

// resolveTokens asks the resolver for the pool's token legs, falling back to the
// pool address for both legs when no answer is available.
func resolveTokens(ctx DecodeContext, pool common.Address) TokenPair {
	fallback := TokenPair{Token0: lowerHex(pool), Token1: lowerHex(pool)}
	if ctx.Resolver == nil {
		ctx.Warnings.Add(model.DecodeWarning{
			Kind:    model.WarningTokenFallback,
			Field:   "token_a_address,token_b_address",
			Address: fallback.Token0,
			Reason:  "no token resolver",
		})
		return fallback
	}

	pair, err := ctx.Resolver.ResolveTokens(ctx.ctx(), pool)
	if err != nil {
		ctx.logger().Warn("token resolve failed", zap.String("pool", pool.Hex()), zap.Error(err))
		ctx.Warnings.Add(model.DecodeWarning{
			Kind:    model.WarningTokenFallback,
			Field:   "token_a_address,token_b_address",
			Address: fallback.Token0,
			Reason:  err.Error(),
		})
		return fallback
	}
	return pair
}

// v3Swap is a decoded Swap payload. Amounts are pool-side deltas.
type v3Swap struct {
	sender       string
	recipient    string
	amount0      *big.Int
	amount1      *big.Int
	sqrtPriceX96 *big.Int
	liquidity    *big.Int
	tick         int32
}

func (d *V3PoolDecoder) decodeSwap(log model.LogRecord) (v3Swap, error) {
	event := d.poolABI.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return v3Swap{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return v3Swap{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return v3Swap{}, err
	}
	if len(values) != 5 {
		return v3Swap{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	ints := make([]*big.Int, len(values))
	for i, value := range values {
		if ints[i], err = asBigInt(value); err != nil {
			return v3Swap{}, err
		}
	}
	tick, err := int24FromBig(ints[4])
	if err != nil {
		return v3Swap{}, err
	}

	return v3Swap{
		sender:       lowerHex(indexed.Sender),
		recipient:    lowerHex(indexed.Recipient),
		amount0:      ints[0],
		amount1:      ints[1],
		sqrtPriceX96: ints[2],
		liquidity:    ints[3],
		tick:         tick,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		hash, err := parseTopicHash(topic)
		if err != nil {
			return nil, err
		}
		out = append(out, hash)
	}
	return out, nil
}

func parseTopicHash(topic string) (common.Hash, error) {
	data, err := hexutil.Decode(topic)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid topic: %w", err)
	}
	if len(data) > 32 {
		return common.Hash{}, fmt.Errorf("topic length %d", len(data))
	}
	return common.BytesToHash(data), nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
