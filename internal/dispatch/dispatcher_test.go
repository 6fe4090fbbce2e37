package dispatch

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeScope/internal/dex"
	"tradeScope/internal/model"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	registry, err := dex.NewDefaultRegistry(dex.DefaultProtocolConfig())
	require.NoError(t, err)
	d, err := New(registry, nil, nil)
	require.NoError(t, err)
	return d
}

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, solana.PublicKeyLength)
}

func keyString(b byte) string {
	return solana.PublicKeyFromBytes(testKey(b)).String()
}

func TestDispatchSolanaOrder(t *testing.T) {
	d := newTestDispatcher(t)
	raydium := solana.MustPublicKeyFromBase58(dex.RaydiumV4ProgramID)
	router := solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")

	// 0 payer, 1..4 swap accounts, 5 raydium, 6 router
	keys := [][]byte{testKey(1), testKey(2), testKey(3), testKey(4), testKey(5), raydium.Bytes(), router.Bytes()}
	swapIx := model.SolanaInstruction{ProgramIDIndex: 5, Accounts: []uint32{1, 2, 3, 4}}

	tx := model.SolanaTransaction{
		Index:       0,
		Signature:   bytes.Repeat([]byte{9}, 64),
		AccountKeys: keys,
		Fee:         5000,
		Instructions: []model.SolanaInstruction{
			{ProgramIDIndex: 6, Accounts: []uint32{0}},
			swapIx,
		},
		InnerInstructions: []model.InnerInstructions{
			{Index: 0, Instructions: []model.SolanaInstruction{swapIx, swapIx}},
		},
		PreTokenBalances: []model.TokenBalance{
			{Account: keyString(4), Mint: "MintA", Amount: "100"},
			{Account: keyString(5), Mint: "MintB", Amount: "50"},
		},
		PostTokenBalances: []model.TokenBalance{
			{Account: keyString(4), Mint: "MintA", Amount: "80"},
			{Account: keyString(5), Mint: "MintB", Amount: "70"},
		},
	}
	failed := tx
	failed.Failed = true

	block := model.SolanaBlock{Slot: 42, Height: 40, Hash: "hash", Timestamp: 1700000000,
		Transactions: []model.SolanaTransaction{tx, failed}}

	events, report := d.DispatchSolana(context.Background(), block)
	require.Equal(t, 3, events.Len())
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 3, report.Decoded)
	assert.Zero(t, report.Failed)

	first, second, third := events.Events[0], events.Events[1], events.Events[2]
	assert.True(t, first.Instruction.IsInnerInstruction)
	assert.Equal(t, uint32(0), first.Instruction.Index)
	assert.Equal(t, uint32(0), first.Instruction.InnerInstructionIndex)
	assert.Equal(t, router.String(), first.DApp.ProgramAddress)
	assert.Equal(t, dex.RaydiumV4ProgramID, first.DApp.InnerProgramAddress)

	assert.True(t, second.Instruction.IsInnerInstruction)
	assert.Equal(t, uint32(1), second.Instruction.InnerInstructionIndex)

	assert.False(t, third.Instruction.IsInnerInstruction)
	assert.Equal(t, uint32(1), third.Instruction.Index)
	assert.Equal(t, dex.RaydiumV4ProgramID, third.DApp.ProgramAddress)
	assert.Empty(t, third.DApp.InnerProgramAddress)

	assert.Equal(t, "-20", third.Trade.VaultAAmount)
	assert.Equal(t, "20", third.Trade.VaultBAmount)
	assert.Equal(t, uint64(42), third.Block.Slot)
	assert.Equal(t, keyString(1), third.Transaction.FeePayer)
	assert.Equal(t, solana.SignatureFromBytes(tx.Signature).String(), third.Transaction.Signature)
}

func TestDispatchSolanaIsolatesBadInstruction(t *testing.T) {
	d := newTestDispatcher(t)
	raydium := solana.MustPublicKeyFromBase58(dex.RaydiumV4ProgramID)
	keys := [][]byte{testKey(1), testKey(2), testKey(3), testKey(4), raydium.Bytes()}

	tx := model.SolanaTransaction{
		Signature:   bytes.Repeat([]byte{1}, 64),
		AccountKeys: keys,
		Instructions: []model.SolanaInstruction{
			{ProgramIDIndex: 4, Accounts: []uint32{0, 1, 2, 99}},
			{ProgramIDIndex: 77},
			{ProgramIDIndex: 4, Accounts: []uint32{0, 1}},
			{ProgramIDIndex: 4, Accounts: []uint32{0, 1, 2, 3}},
		},
	}
	bad := model.SolanaTransaction{AccountKeys: [][]byte{{1, 2, 3}}}

	events, report := d.DispatchSolana(context.Background(), model.SolanaBlock{
		Slot:         7,
		Transactions: []model.SolanaTransaction{bad, tx},
	})
	require.Equal(t, 1, events.Len())
	assert.Equal(t, uint32(3), events.Events[0].Instruction.Index)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 1, report.Decoded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 3, report.Failed)
	require.Len(t, report.Errors, 3)
	assert.Equal(t, uint64(7), report.Errors[0].BlockNumber)
}

func TestDispatchSolanaWarnings(t *testing.T) {
	d := newTestDispatcher(t)
	raydium := solana.MustPublicKeyFromBase58(dex.RaydiumV4ProgramID)
	keys := [][]byte{testKey(1), testKey(2), testKey(3), testKey(4), raydium.Bytes()}

	tx := model.SolanaTransaction{
		AccountKeys:      keys,
		Instructions:     []model.SolanaInstruction{{ProgramIDIndex: 4, Accounts: []uint32{0, 1, 2, 3}}},
		PreTokenBalances: []model.TokenBalance{{Account: keyString(3), Amount: "1.5"}},
	}
	events, report := d.DispatchSolana(context.Background(), model.SolanaBlock{Transactions: []model.SolanaTransaction{tx}})
	require.Equal(t, 1, events.Len())
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, model.WarningAmountFallback, report.Warnings[0].Kind)
	assert.Equal(t, "0", events.Events[0].Trade.VaultAPreAmount)
}

func TestDispatchEVM(t *testing.T) {
	d := newTestDispatcher(t)
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	filter, err := NewPoolFilter(strings.ToUpper(pool.Hex()[2:]))
	require.NoError(t, err)

	good := swapLog(t, pool, dex.SwapTopic, 1)
	unrelated := swapLog(t, pool, common.HexToHash("0x01"), 2)
	otherPool := swapLog(t, other, dex.SwapTopic, 3)
	malformed := swapLog(t, pool, dex.SwapTopic, 4)
	malformed.Data = "0x"
	second := swapLog(t, pool, dex.PancakeSwapV3SwapTopic, 5)

	block := model.EVMBlock{
		ChainID:   56,
		Number:    100,
		Hash:      "0xblock",
		Timestamp: 1700000000,
		Transactions: []model.EVMTransaction{
			{Hash: "0xTX", From: "0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD", GasUsed: 150000},
		},
		Logs: []model.LogRecord{good, unrelated, otherPool, malformed, second},
	}

	events, report, err := d.DispatchEVM(context.Background(), block, filter)
	require.NoError(t, err)
	require.Equal(t, 2, events.Len())
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 2, report.Decoded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, uint64(4), report.Errors[0].LogIndex)
	assert.Equal(t, "CHAIN_BSC", report.Errors[0].Chain)

	first := events.Events[0]
	assert.Equal(t, strings.ToLower(pool.Hex()), first.DApp.ProgramAddress)
	assert.Equal(t, model.ChainBSC, first.DApp.Chain)
	assert.Equal(t, dex.UniswapV3SwapType, first.Instruction.Type)
	assert.Equal(t, uint64(150000), first.Transaction.Fee)
	assert.Equal(t, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", first.Transaction.Signer)
	assert.Equal(t, uint64(100), first.Block.Height)
	assert.Equal(t, dex.PancakeSwapV3SwapType, events.Events[1].Instruction.Type)

	// Token legs degrade to the pool without a resolver.
	require.NotEmpty(t, report.Warnings)
	assert.Equal(t, model.WarningTokenFallback, report.Warnings[0].Kind)
}

func TestDispatchEVMNoCandidates(t *testing.T) {
	d := newTestDispatcher(t)
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	filter, err := NewPoolFilter(pool.Hex())
	require.NoError(t, err)

	block := model.EVMBlock{ChainID: 1, Logs: []model.LogRecord{swapLog(t, pool, common.HexToHash("0x02"), 0)}}
	events, report, err := d.DispatchEVM(context.Background(), block, filter)
	require.NoError(t, err)
	assert.Zero(t, events.Len())
	assert.Zero(t, report.Candidates)

	_, _, err = d.DispatchEVM(context.Background(), block, PoolFilter{})
	assert.ErrorIs(t, err, ErrNoPools)
}

func TestNewPoolFilter(t *testing.T) {
	filter, err := NewPoolFilter("0x1111111111111111111111111111111111111111", " ", "0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	assert.Len(t, filter.Addresses(), 2)
	assert.True(t, filter.Match("0x1111111111111111111111111111111111111111"))
	assert.False(t, filter.Match("0x3333333333333333333333333333333333333333"))
	assert.False(t, filter.Match("garbage"))

	_, err = NewPoolFilter("0x1234")
	assert.Error(t, err)
}

func swapLog(t *testing.T, pool common.Address, topic0 common.Hash, logIndex uint64) model.LogRecord {
	t.Helper()
	poolABI, err := dex.V3PoolABI()
	require.NoError(t, err)
	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(1),
		big.NewInt(1),
		big.NewInt(0),
	)
	require.NoError(t, err)
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 100,
		BlockHash:   "0xblock",
		TxHash:      "0xtx",
		LogIndex:    logIndex,
		Address:     pool.Hex(),
		Topics: []string{
			topic0.Hex(),
			common.BytesToHash(sender.Bytes()).Hex(),
			common.BytesToHash(sender.Bytes()).Hex(),
		},
		Data: hexutil.Encode(data),
	}
}

// brokenDecoder emits a trade with an empty amount field.
type brokenDecoder struct {
	programID string
	topic0    common.Hash
}

func (b brokenDecoder) Name() string        { return "broken" }
func (b brokenDecoder) ProgramID() string   { return b.programID }
func (b brokenDecoder) Topic0() common.Hash { return b.topic0 }

func (b brokenDecoder) CanDecode(topic0 string) bool {
	return strings.EqualFold(topic0, b.topic0.Hex())
}

func (b brokenDecoder) event() *model.TradeEvent {
	return &model.TradeEvent{
		Instruction: &model.Instruction{Type: "broken_swap"},
		Trade:       &model.Trade{UserAAmount: ""},
	}
}

func (b brokenDecoder) DecodeInstruction(dex.InstructionInput, dex.DecodeContext) *model.TradeEvent {
	return b.event()
}

func (b brokenDecoder) DecodeLog(dex.LogInput, dex.DecodeContext) (*model.TradeEvent, error) {
	return b.event(), nil
}

func TestDispatchRejectsInvalidEvents(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	topic0 := common.HexToHash("0x0b")
	decoder := brokenDecoder{programID: program.String(), topic0: topic0}

	registry := dex.NewRegistry()
	require.NoError(t, registry.RegisterInstruction(decoder))
	require.NoError(t, registry.RegisterLog(decoder))
	d, err := New(registry, nil, nil)
	require.NoError(t, err)

	tx := model.SolanaTransaction{
		Signature:    bytes.Repeat([]byte{3}, 64),
		AccountKeys:  [][]byte{testKey(1), program.Bytes()},
		Instructions: []model.SolanaInstruction{{ProgramIDIndex: 1, Accounts: []uint32{0}}},
	}
	events, report := d.DispatchSolana(context.Background(), model.SolanaBlock{Slot: 9, Transactions: []model.SolanaTransaction{tx}})
	assert.Zero(t, events.Len())
	assert.Equal(t, 1, report.Candidates)
	assert.Zero(t, report.Decoded)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error, "invalid event")
	assert.Equal(t, uint64(9), report.Errors[0].BlockNumber)

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	filter, err := NewPoolFilter(pool.Hex())
	require.NoError(t, err)
	logs := []model.LogRecord{swapLog(t, pool, topic0, 6)}
	evmEvents, evmReport, err := d.DispatchEVM(context.Background(), model.EVMBlock{ChainID: 56, Number: 5, Logs: logs}, filter)
	require.NoError(t, err)
	assert.Zero(t, evmEvents.Len())
	require.Len(t, evmReport.Errors, 1)
	assert.Equal(t, uint64(6), evmReport.Errors[0].LogIndex)
	assert.Contains(t, evmReport.Errors[0].Error, "is empty")
}

func TestDispatchSolanaZeroWithHugeExponent(t *testing.T) {
	d := newTestDispatcher(t)
	raydium := solana.MustPublicKeyFromBase58(dex.RaydiumV4ProgramID)
	keys := [][]byte{testKey(1), testKey(2), testKey(3), testKey(4), raydium.Bytes()}

	tx := model.SolanaTransaction{
		AccountKeys:       keys,
		Instructions:      []model.SolanaInstruction{{ProgramIDIndex: 4, Accounts: []uint32{0, 1, 2, 3}}},
		PreTokenBalances:  []model.TokenBalance{{Account: keyString(3), Amount: "0e-100000000"}},
		PostTokenBalances: []model.TokenBalance{{Account: keyString(3), Amount: "5e-100000000"}},
	}

	start := time.Now()
	events, report := d.DispatchSolana(context.Background(), model.SolanaBlock{Transactions: []model.SolanaTransaction{tx}})
	assert.Less(t, time.Since(start), time.Second)
	require.Equal(t, 1, events.Len())
	assert.Equal(t, "0", events.Events[0].Trade.VaultAPreAmount)
	assert.Equal(t, "0", events.Events[0].Trade.VaultAPostAmount)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "vault_a_post_amount", report.Warnings[0].Field)
}
