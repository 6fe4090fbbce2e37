package dex

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// ProtocolConfig lists the protocol constants decoders are registered under.
// Topic0Aliases maps a venue name to an extra topic0 decoded with the V3 pool ABI.
type ProtocolConfig struct {
	RaydiumProgramIDs []string
	Topic0Aliases     map[string]string
}

// DefaultProtocolConfig registers Raydium v4, Uniswap V3 and PancakeSwap V3.
func DefaultProtocolConfig() ProtocolConfig {
	return ProtocolConfig{
		RaydiumProgramIDs: []string{RaydiumV4ProgramID},
		Topic0Aliases: map[string]string{
			"pancakeswap_v3": PancakeSwapV3SwapTopic.Hex(),
		},
	}
}

// Registry routes program ids and topic0 values to decoders.
type Registry struct {
	mu           sync.RWMutex
	instructions map[string]InstructionDecoder
	logs         map[common.Hash]LogDecoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		instructions: make(map[string]InstructionDecoder),
		logs:         make(map[common.Hash]LogDecoder),
	}
}

// NewDefaultRegistry builds a registry holding the canonical V3 decoder plus
// every decoder named by cfg.
func NewDefaultRegistry(cfg ProtocolConfig) (*Registry, error) {
	r := NewRegistry()

	programIDs := cfg.RaydiumProgramIDs
	if len(programIDs) == 0 {
		programIDs = []string{RaydiumV4ProgramID}
	}
	for _, id := range programIDs {
		decoder, err := NewRaydiumDecoder(strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		if err := r.RegisterInstruction(decoder); err != nil {
			return nil, err
		}
	}

	uniswap, err := NewUniswapV3Decoder()
	if err != nil {
		return nil, err
	}
	if err := r.RegisterLog(uniswap); err != nil {
		return nil, err
	}

	venues := make([]string, 0, len(cfg.Topic0Aliases))
	for venue := range cfg.Topic0Aliases {
		venues = append(venues, venue)
	}
	sort.Strings(venues)
	for _, venue := range venues {
		topic0 := strings.TrimSpace(cfg.Topic0Aliases[venue])
		if topic0 == "" {
			continue
		}
		hash, err := parseTopicHash(topic0)
		if err != nil {
			return nil, fmt.Errorf("topic0 alias %s: %w", venue, err)
		}
		name, typeTag := normalizeVenue(venue)
		if name == "" {
			return nil, fmt.Errorf("unsupported venue in topic0 aliases: %s", venue)
		}
		decoder, err := NewV3PoolDecoder(name, typeTag, hash)
		if err != nil {
			return nil, err
		}
		if err := r.RegisterLog(decoder); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// normalizeVenue maps a configured venue name to a decoder name and instruction type.
func normalizeVenue(venue string) (string, string) {
	switch strings.ToLower(strings.TrimSpace(venue)) {
	case "uniswap_v3", "uniswapv3", "uniswap":
		return "uniswap_v3", UniswapV3SwapType
	case "pancakeswap_v3", "pancakeswapv3", "pancakeswap", "pancake":
		return "pancakeswap_v3", PancakeSwapV3SwapType
	default:
		return "", ""
	}
}

// RegisterInstruction adds an account-model decoder under its program id.
func (r *Registry) RegisterInstruction(decoder InstructionDecoder) error {
	if decoder == nil {
		return fmt.Errorf("instruction decoder is nil")
	}
	key, err := solana.PublicKeyFromBase58(decoder.ProgramID())
	if err != nil {
		return fmt.Errorf("invalid program id %q: %w", decoder.ProgramID(), err)
	}
	programID := key.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.instructions[programID]; ok {
		return fmt.Errorf("program %s already registered to %s", programID, existing.Name())
	}
	r.instructions[programID] = decoder
	return nil
}

// RegisterLog adds a log-model decoder under its topic0.
func (r *Registry) RegisterLog(decoder LogDecoder) error {
	if decoder == nil {
		return fmt.Errorf("log decoder is nil")
	}
	topic0 := decoder.Topic0()
	if topic0 == (common.Hash{}) {
		return fmt.Errorf("decoder %s has empty topic0", decoder.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.logs[topic0]; ok {
		return fmt.Errorf("topic0 %s already registered to %s", topic0.Hex(), existing.Name())
	}
	r.logs[topic0] = decoder
	return nil
}

// Instruction returns the decoder for programID.
func (r *Registry) Instruction(programID string) (InstructionDecoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decoder, ok := r.instructions[programID]
	return decoder, ok
}

// Log returns the decoder for a hex topic0.
func (r *Registry) Log(topic0 string) (LogDecoder, bool) {
	hash, err := parseTopicHash(topic0)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	decoder, ok := r.logs[hash]
	return decoder, ok
}

// ProgramIDs returns the registered program ids in sorted order.
func (r *Registry) ProgramIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.instructions))
	for id := range r.instructions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Topics returns the registered topic0 values, used as the log filter.
func (r *Registry) Topics() []common.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Hash, 0, len(r.logs))
	for topic := range r.logs {
		out = append(out, topic)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hex() < out[j].Hex()
	})
	return out
}
