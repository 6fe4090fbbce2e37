package dex

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegistry(t *testing.T) {
	registry, err := NewDefaultRegistry(DefaultProtocolConfig())
	require.NoError(t, err)

	decoder, ok := registry.Instruction(RaydiumV4ProgramID)
	require.True(t, ok, "raydium not registered")
	assert.Equal(t, "raydium", decoder.Name())
	_, ok = registry.Instruction("11111111111111111111111111111111")
	assert.False(t, ok)

	logDecoder, ok := registry.Log(SwapTopic.Hex())
	require.True(t, ok, "uniswap v3 not registered")
	assert.Equal(t, "uniswap_v3", logDecoder.Name())
	pancake, ok := registry.Log(PancakeSwapV3SwapTopic.Hex())
	require.True(t, ok, "pancakeswap v3 not registered")
	assert.Equal(t, "pancakeswap_v3", pancake.Name())
	_, ok = registry.Log("0x1234")
	assert.False(t, ok)

	assert.Len(t, registry.Topics(), 2)
	assert.Equal(t, []string{RaydiumV4ProgramID}, registry.ProgramIDs())
}

func TestRegistryDuplicates(t *testing.T) {
	registry := NewRegistry()

	raydium, err := NewRaydiumDecoder("")
	require.NoError(t, err)
	require.NoError(t, registry.RegisterInstruction(raydium))
	assert.Error(t, registry.RegisterInstruction(raydium), "duplicate program")

	uniswap, err := NewUniswapV3Decoder()
	require.NoError(t, err)
	require.NoError(t, registry.RegisterLog(uniswap))
	assert.Error(t, registry.RegisterLog(uniswap), "duplicate topic")
}

func TestNewDefaultRegistryAliases(t *testing.T) {
	custom := crypto.Keccak256Hash([]byte("Swap(address,address,int256,int256,uint160,uint128,int24,uint24)"))

	_, err := NewDefaultRegistry(ProtocolConfig{
		Topic0Aliases: map[string]string{"sushiswap": custom.Hex()},
	})
	assert.Error(t, err, "unsupported venue")

	_, err = NewDefaultRegistry(ProtocolConfig{
		Topic0Aliases: map[string]string{"uniswap_v3": SwapTopic.Hex()},
	})
	assert.Error(t, err, "duplicate topic")

	registry, err := NewDefaultRegistry(ProtocolConfig{
		Topic0Aliases: map[string]string{"Uniswap": custom.Hex()},
	})
	require.NoError(t, err)
	decoder, ok := registry.Log(custom.Hex())
	require.True(t, ok, "alias not registered")
	assert.Equal(t, "uniswap_v3", decoder.Name())
	_, ok = registry.Instruction(RaydiumV4ProgramID)
	assert.True(t, ok, "raydium default missing")

	_, err = NewDefaultRegistry(ProtocolConfig{RaydiumProgramIDs: []string{"bad id"}})
	assert.Error(t, err, "invalid program id")
}
