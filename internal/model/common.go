package model

// Chain identifies the source chain of an event.
type Chain int32

const (
	ChainUnspecified Chain = 0
	ChainSolana      Chain = 1
	ChainEthereum    Chain = 2
	ChainBSC         Chain = 3
)

var chainNames = map[Chain]string{
	ChainUnspecified: "CHAIN_UNSPECIFIED",
	ChainSolana:      "CHAIN_SOLANA",
	ChainEthereum:    "CHAIN_ETHEREUM",
	ChainBSC:         "CHAIN_BSC",
}

func (c Chain) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return "CHAIN_UNSPECIFIED"
}

// EVMChain maps an EVM chain id to a Chain. A zero id means the host did not
// supply one and defaults to BSC.
func EVMChain(chainID uint64) Chain {
	switch chainID {
	case 0, 56:
		return ChainBSC
	case 1:
		return ChainEthereum
	default:
		return ChainUnspecified
	}
}

// Instruction locates the decoded call inside its transaction.
type Instruction struct {
	Index                 uint32 `json:"index"`
	IsInnerInstruction    bool   `json:"is_inner_instruction"`
	InnerInstructionIndex uint32 `json:"inner_instruction_index"`
	Type                  string `json:"type"`
}

// Block carries block context. Slot is zero on chains without slots.
type Block struct {
	Timestamp int64  `json:"timestamp"`
	Hash      string `json:"hash"`
	Height    uint64 `json:"height"`
	Slot      uint64 `json:"slot"`
}

// Transaction carries transaction context. Status is 1 on success and 0 on failure.
type Transaction struct {
	Fee       uint64 `json:"fee"`
	FeePayer  string `json:"fee_payer"`
	Index     uint32 `json:"index"`
	Signature string `json:"signature"`
	Signer    string `json:"signer"`
	Status    int32  `json:"status"`
}

const (
	TxStatusFailed  int32 = 0
	TxStatusSuccess int32 = 1
)

// DApp identifies the invoked program or contract.
type DApp struct {
	ProgramAddress      string `json:"program_address"`
	InnerProgramAddress string `json:"inner_program_address"`
	Chain               Chain  `json:"chain"`
}
