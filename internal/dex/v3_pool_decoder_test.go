package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradeScope/internal/model"
)

type staticResolver struct {
	pair  TokenPair
	err   error
	calls int
}

func (r *staticResolver) ResolveTokens(ctx context.Context, pool common.Address) (TokenPair, error) {
	r.calls++
	if r.err != nil {
		return TokenPair{}, r.err
	}
	return r.pair, nil
}

func TestSwapTopicMatchesABI(t *testing.T) {
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	assert.Equal(t, SwapTopic, poolABI.Events["Swap"].ID)
	assert.Equal(t, "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67", SwapTopic.Hex())
}

func TestV3PoolDecoderSwap(t *testing.T) {
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	decoder, err := NewUniswapV3Decoder()
	require.NoError(t, err)
	resolver := &staticResolver{pair: TokenPair{
		Token0: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Token1: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}}
	warnings := &Warnings{}
	ctx := DecodeContext{Resolver: resolver, Logger: zap.NewNop(), Warnings: warnings}

	logRecord := swapLog(t, pool, sender, recipient, big.NewInt(-1000), big.NewInt(2000))
	in := LogInput{
		Chain: model.ChainBSC,
		Block: model.Block{Timestamp: 1700000000, Hash: "0xabc", Height: 12345},
		Transaction: &model.EVMTransaction{
			Hash:    "0xdef",
			From:    "0x4444444444444444444444444444444444444ABC",
			Index:   7,
			GasUsed: 21000,
		},
		Log: logRecord,
	}

	event, err := decoder.DecodeLog(in, ctx)
	require.NoError(t, err)
	require.NoError(t, event.Validate())

	trade := event.Trade
	assert.Equal(t, resolver.pair.Token0, trade.TokenAAddress)
	assert.Equal(t, resolver.pair.Token1, trade.TokenBAddress)
	assert.Equal(t, "-1000", trade.VaultAAmount)
	assert.Equal(t, "2000", trade.VaultBAmount)
	assert.Equal(t, "1000", trade.UserAAmount)
	assert.Equal(t, "-2000", trade.UserBAmount)
	assert.Equal(t, lowerHex(sender), trade.UserATokenAccountAddress)
	assert.Equal(t, lowerHex(recipient), trade.UserBTokenAccountAddress)
	assert.Equal(t, lowerHex(pool), trade.PoolAddress)
	assert.Equal(t, lowerHex(pool), trade.VaultAOwnerAddress)
	assert.Equal(t, "0", trade.VaultAPreAmount)
	assert.Equal(t, "0", trade.UserBPostAmount)

	assert.Equal(t, UniswapV3SwapType, event.Instruction.Type)
	assert.Equal(t, uint32(1), event.Instruction.Index)
	assert.Equal(t, lowerHex(pool), event.DApp.ProgramAddress)
	assert.Equal(t, model.ChainBSC, event.DApp.Chain)
	assert.Equal(t, uint64(12345), event.Block.Height)
	assert.Equal(t, "0xabc", event.Block.Hash)
	assert.Zero(t, event.Block.Slot)

	tx := event.Transaction
	assert.Equal(t, uint64(21000), tx.Fee)
	assert.Equal(t, "0x4444444444444444444444444444444444444abc", tx.Signer)
	assert.Equal(t, tx.Signer, tx.FeePayer)
	assert.Equal(t, uint32(7), tx.Index)
	assert.Equal(t, "0xdef", tx.Signature)
	assert.Equal(t, model.TxStatusSuccess, tx.Status)
	assert.Zero(t, warnings.Len())
}

func TestV3PoolDecoderBlockFromLog(t *testing.T) {
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	decoder, err := NewUniswapV3Decoder()
	require.NoError(t, err)

	logRecord := swapLog(t, pool, pool, pool, big.NewInt(1), big.NewInt(-1))
	event, err := decoder.DecodeLog(LogInput{Log: logRecord}, DecodeContext{
		Resolver: &staticResolver{pair: TokenPair{Token0: "0xa", Token1: "0xb"}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), event.Block.Height)
	assert.Equal(t, "0xabc", event.Block.Hash)
	assert.Equal(t, int64(1700000000), event.Block.Timestamp)
	assert.Equal(t, "0xdef", event.Transaction.Signature)
}

func TestV3PoolDecoderTokenFallback(t *testing.T) {
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	decoder, err := NewUniswapV3Decoder()
	require.NoError(t, err)
	logRecord := swapLog(t, pool, pool, pool, big.NewInt(5), big.NewInt(-6))

	cases := []struct {
		name     string
		resolver TokenResolver
	}{
		{name: "no resolver"},
		{name: "failing resolver", resolver: &staticResolver{err: errors.New("rpc down")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			warnings := &Warnings{}
			event, err := decoder.DecodeLog(LogInput{Log: logRecord}, DecodeContext{
				Resolver: tc.resolver,
				Warnings: warnings,
			})
			require.NoError(t, err)
			assert.Equal(t, lowerHex(pool), event.Trade.TokenAAddress)
			assert.Equal(t, lowerHex(pool), event.Trade.TokenBAddress)
			require.Equal(t, 1, warnings.Len())
			assert.Equal(t, model.WarningTokenFallback, warnings.Items()[0].Kind)
		})
	}
}

func TestV3PoolDecoderMalformed(t *testing.T) {
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	decoder, err := NewUniswapV3Decoder()
	require.NoError(t, err)
	valid := swapLog(t, pool, pool, pool, big.NewInt(1), big.NewInt(2))

	truncated := valid
	truncated.Data = valid.Data[:66]

	missingTopic := valid
	missingTopic.Topics = valid.Topics[:2]

	badAddress := valid
	badAddress.Address = "not-an-address"

	badData := valid
	badData.Data = "0xzz"

	cases := map[string]model.LogRecord{
		"truncated data": truncated,
		"missing topic":  missingTopic,
		"bad address":    badAddress,
		"bad data":       badData,
		"no topics":      {Address: pool.Hex()},
	}
	for name, logRecord := range cases {
		_, err := decoder.DecodeLog(LogInput{Log: logRecord}, DecodeContext{})
		assert.Error(t, err, name)
	}
}

func TestV3PoolDecoderCanDecode(t *testing.T) {
	decoder, err := NewUniswapV3Decoder()
	require.NoError(t, err)
	assert.True(t, decoder.CanDecode(SwapTopic.Hex()))
	assert.False(t, decoder.CanDecode(PancakeSwapV3SwapTopic.Hex()), "pancakeswap topic")
	assert.False(t, decoder.CanDecode(""))
	assert.False(t, decoder.CanDecode("0xnothex"))
}

func TestPancakeSwapV3DecoderExtendedData(t *testing.T) {
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	pool := common.HexToAddress("0x5555555555555555555555555555555555555555")
	decoder, err := NewPancakeSwapV3Decoder()
	require.NoError(t, err)

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(300),
		big.NewInt(-400),
		big.NewInt(1),
		big.NewInt(1),
		big.NewInt(10),
	)
	require.NoError(t, err)
	// protocolFeesToken0, protocolFeesToken1
	data = append(data, common.BigToHash(big.NewInt(3)).Bytes()...)
	data = append(data, common.BigToHash(big.NewInt(4)).Bytes()...)

	logRecord := buildLogRecord(pool, PancakeSwapV3SwapTopic, data, []common.Hash{
		topicFromAddress(pool),
		topicFromAddress(pool),
	})
	event, err := decoder.DecodeLog(LogInput{Log: logRecord}, DecodeContext{})
	require.NoError(t, err)
	assert.Equal(t, PancakeSwapV3SwapType, event.Instruction.Type)
	assert.Equal(t, "300", event.Trade.VaultAAmount)
	assert.Equal(t, "-400", event.Trade.VaultBAmount)
}

func TestV3PoolDecoderDecodeSwapFields(t *testing.T) {
	decoder, err := NewUniswapV3Decoder()
	require.NoError(t, err)
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa")
	recipient := common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")

	swap, err := decoder.decodeSwap(swapLog(t, pool, sender, recipient, big.NewInt(-7), big.NewInt(9)))
	require.NoError(t, err)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", swap.sender)
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", swap.recipient)
	assert.Equal(t, int64(-7), swap.amount0.Int64())
	assert.Equal(t, int64(9), swap.amount1.Int64())
	assert.Equal(t, int64(123456789), swap.sqrtPriceX96.Int64())
	assert.Equal(t, int64(987654321), swap.liquidity.Int64())
	assert.Equal(t, int32(-15), swap.tick)
}

func swapLog(t *testing.T, pool, sender, recipient common.Address, amount0, amount1 *big.Int) model.LogRecord {
	t.Helper()
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		amount0,
		amount1,
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	require.NoError(t, err)
	return buildLogRecord(pool, SwapTopic, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(recipient),
	})
}

func buildLogRecord(pool common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     pool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
