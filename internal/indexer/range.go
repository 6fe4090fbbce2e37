package indexer

import (
	"errors"
	"fmt"
)

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	return r.To - r.From + 1
}

// SplitRange cuts [from, to] into consecutive ranges of at most batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, errors.New("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("invalid range %d..%d", from, to)
	}

	out := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == to {
			return out, nil
		}
	}
}

// resumeFrom moves from past a checkpoint that already covers it.
func resumeFrom(from uint64, cp Checkpoint, ok bool) uint64 {
	if ok && cp.LastProcessedBlock >= from {
		return cp.LastProcessedBlock + 1
	}
	return from
}
