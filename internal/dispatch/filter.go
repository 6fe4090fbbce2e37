package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPools is returned when an EVM block is dispatched without any pool to match.
var ErrNoPools = errors.New("pool filter is empty")

// PoolFilter selects logs by emitting contract, case-insensitively.
type PoolFilter struct {
	pools map[common.Address]struct{}
}

// NewPoolFilter builds a filter from hex addresses.
func NewPoolFilter(addresses ...string) (PoolFilter, error) {
	pools := make(map[common.Address]struct{}, len(addresses))
	for _, raw := range addresses {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		if !common.IsHexAddress(addr) {
			return PoolFilter{}, fmt.Errorf("invalid pool address: %s", raw)
		}
		pools[common.HexToAddress(addr)] = struct{}{}
	}
	return PoolFilter{pools: pools}, nil
}

func (f PoolFilter) Empty() bool {
	return len(f.pools) == 0
}

// Match reports whether address is one of the filtered pools.
func (f PoolFilter) Match(address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	_, ok := f.pools[common.HexToAddress(address)]
	return ok
}

// Addresses returns the pools in a stable order, for use as an eth_getLogs filter.
func (f PoolFilter) Addresses() []common.Address {
	out := make([]common.Address, 0, len(f.pools))
	for addr := range f.pools {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hex() < out[j].Hex()
	})
	return out
}
