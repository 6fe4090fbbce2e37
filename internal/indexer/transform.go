package indexer

import (
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"tradeScope/internal/model"
)

func buildLogRecord(chainID uint64, log types.Log, timestamp uint64, ingestedAt time.Time) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}
}

// groupLogsByBlock orders logs by block and log index and splits them per block.
func groupLogsByBlock(logs []types.Log) [][]types.Log {
	sorted := make([]types.Log, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BlockNumber != sorted[j].BlockNumber {
			return sorted[i].BlockNumber < sorted[j].BlockNumber
		}
		return sorted[i].Index < sorted[j].Index
	})

	var groups [][]types.Log
	for i, log := range sorted {
		if i == 0 || log.BlockNumber != sorted[i-1].BlockNumber {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], log)
	}
	return groups
}

// uniqueTxs returns the distinct transactions of a block's logs in first-seen order.
func uniqueTxs(logs []types.Log) []types.Log {
	seen := make(map[string]struct{}, len(logs))
	out := make([]types.Log, 0, len(logs))
	for _, log := range logs {
		key := strings.ToLower(log.TxHash.Hex())
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, log)
	}
	return out
}
