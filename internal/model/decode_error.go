package model

// DecodeError records a decode failure for one candidate log or instruction.
type DecodeError struct {
	Chain            string `json:"chain"`
	ChainID          uint64 `json:"chain_id,omitempty"`
	BlockNumber      uint64 `json:"block_number"`
	TxHash           string `json:"tx_hash"`
	LogIndex         uint64 `json:"log_index,omitempty"`
	InstructionIndex uint32 `json:"instruction_index,omitempty"`
	Address          string `json:"address"`
	Topic0           string `json:"topic0,omitempty"`
	Line             uint64 `json:"line,omitempty"`
	Error            string `json:"error"`
}

// Warning kinds.
const (
	WarningAmountFallback = "amount_fallback"
	WarningTokenFallback  = "token_fallback"
)

// DecodeWarning flags a degraded but non-fatal decode, such as an unparseable
// balance that was read as zero.
type DecodeWarning struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	Address string `json:"address"`
	Value   string `json:"value"`
	Reason  string `json:"reason"`
}
