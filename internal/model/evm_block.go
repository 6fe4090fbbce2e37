package model

// EVMBlock is the log-model input for one block.
type EVMBlock struct {
	ChainID      uint64           `json:"chain_id"`
	Number       uint64           `json:"number"`
	Hash         string           `json:"hash"`
	Timestamp    uint64           `json:"timestamp"`
	Transactions []EVMTransaction `json:"transactions"`
	Logs         []LogRecord      `json:"logs"`
}

// EVMTransaction is the subset of transaction and receipt data the decoders use.
// Only successful transactions emit logs, so no status is carried.
type EVMTransaction struct {
	Hash    string `json:"hash"`
	From    string `json:"from"`
	Index   uint64 `json:"index"`
	GasUsed uint64 `json:"gas_used"`
}

// Header returns the block context in canonical form.
func (b EVMBlock) Header() Block {
	return Block{
		Timestamp: int64(b.Timestamp),
		Hash:      b.Hash,
		Height:    b.Number,
	}
}
