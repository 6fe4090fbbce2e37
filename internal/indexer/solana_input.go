package indexer

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"

	"tradeScope/internal/model"
)

// solanaBlockJSON is the line format read by the Solana runner. Keys,
// signatures and instruction data are base58 strings as RPC nodes print them.
type solanaBlockJSON struct {
	Slot         uint64                  `json:"slot"`
	Height       uint64                  `json:"height"`
	Hash         string                  `json:"hash"`
	Timestamp    int64                   `json:"timestamp"`
	Transactions []solanaTransactionJSON `json:"transactions"`
}

type solanaTransactionJSON struct {
	Index             uint32                  `json:"index"`
	Signature         string                  `json:"signature"`
	AccountKeys       []string                `json:"account_keys"`
	Fee               uint64                  `json:"fee"`
	Failed            bool                    `json:"failed"`
	Instructions      []solanaInstructionJSON `json:"instructions"`
	InnerInstructions []innerInstructionsJSON `json:"inner_instructions"`
	PreTokenBalances  []model.TokenBalance    `json:"pre_token_balances"`
	PostTokenBalances []model.TokenBalance    `json:"post_token_balances"`
}

type solanaInstructionJSON struct {
	ProgramIDIndex uint32   `json:"program_id_index"`
	Accounts       []uint32 `json:"accounts"`
	Data           string   `json:"data"`
}

type innerInstructionsJSON struct {
	Index        uint32                  `json:"index"`
	Instructions []solanaInstructionJSON `json:"instructions"`
}

// ParseSolanaBlock decodes one JSON line into a SolanaBlock.
func ParseSolanaBlock(line []byte) (model.SolanaBlock, error) {
	var raw solanaBlockJSON
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.SolanaBlock{}, fmt.Errorf("parse block: %w", err)
	}

	block := model.SolanaBlock{
		Slot:         raw.Slot,
		Height:       raw.Height,
		Hash:         raw.Hash,
		Timestamp:    raw.Timestamp,
		Transactions: make([]model.SolanaTransaction, 0, len(raw.Transactions)),
	}
	for i, rawTx := range raw.Transactions {
		tx, err := convertSolanaTransaction(rawTx)
		if err != nil {
			return model.SolanaBlock{}, fmt.Errorf("slot %d tx %d: %w", raw.Slot, i, err)
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

func convertSolanaTransaction(raw solanaTransactionJSON) (model.SolanaTransaction, error) {
	signature, err := base58.Decode(raw.Signature)
	if err != nil {
		return model.SolanaTransaction{}, fmt.Errorf("signature: %w", err)
	}
	keys := make([][]byte, 0, len(raw.AccountKeys))
	for i, key := range raw.AccountKeys {
		decoded, err := base58.Decode(key)
		if err != nil {
			return model.SolanaTransaction{}, fmt.Errorf("account key %d: %w", i, err)
		}
		keys = append(keys, decoded)
	}
	instructions, err := convertInstructions(raw.Instructions)
	if err != nil {
		return model.SolanaTransaction{}, err
	}
	inner := make([]model.InnerInstructions, 0, len(raw.InnerInstructions))
	for _, group := range raw.InnerInstructions {
		converted, err := convertInstructions(group.Instructions)
		if err != nil {
			return model.SolanaTransaction{}, fmt.Errorf("inner %d: %w", group.Index, err)
		}
		inner = append(inner, model.InnerInstructions{Index: group.Index, Instructions: converted})
	}

	return model.SolanaTransaction{
		Index:             raw.Index,
		Signature:         signature,
		AccountKeys:       keys,
		Fee:               raw.Fee,
		Failed:            raw.Failed,
		Instructions:      instructions,
		InnerInstructions: inner,
		PreTokenBalances:  raw.PreTokenBalances,
		PostTokenBalances: raw.PostTokenBalances,
	}, nil
}

func convertInstructions(raw []solanaInstructionJSON) ([]model.SolanaInstruction, error) {
	out := make([]model.SolanaInstruction, 0, len(raw))
	for i, ix := range raw {
		var data []byte
		if ix.Data != "" {
			decoded, err := base58.Decode(ix.Data)
			if err != nil {
				return nil, fmt.Errorf("instruction %d data: %w", i, err)
			}
			data = decoded
		}
		out = append(out, model.SolanaInstruction{
			ProgramIDIndex: ix.ProgramIDIndex,
			Accounts:       ix.Accounts,
			Data:           data,
		})
	}
	return out, nil
}
