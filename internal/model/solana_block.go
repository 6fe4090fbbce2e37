package model

// SolanaBlock is the account-model input for one block.
type SolanaBlock struct {
	Slot         uint64              `json:"slot"`
	Height       uint64              `json:"height"`
	Hash         string              `json:"hash"`
	Timestamp    int64               `json:"timestamp"`
	Transactions []SolanaTransaction `json:"transactions"`
}

// SolanaTransaction holds one transaction with its resolved account table
// (static keys followed by loaded writable and readonly addresses).
type SolanaTransaction struct {
	Index             uint32              `json:"index"`
	Signature         []byte              `json:"signature"`
	AccountKeys       [][]byte            `json:"account_keys"`
	Fee               uint64              `json:"fee"`
	Failed            bool                `json:"failed"`
	Instructions      []SolanaInstruction `json:"instructions"`
	InnerInstructions []InnerInstructions `json:"inner_instructions"`
	PreTokenBalances  []TokenBalance      `json:"pre_token_balances"`
	PostTokenBalances []TokenBalance      `json:"post_token_balances"`
}

// SolanaInstruction references its program and accounts by account table index.
type SolanaInstruction struct {
	ProgramIDIndex uint32   `json:"program_id_index"`
	Accounts       []uint32 `json:"accounts"`
	Data           []byte   `json:"data"`
}

// InnerInstructions groups the CPI calls made by the outer instruction at Index.
type InnerInstructions struct {
	Index        uint32              `json:"index"`
	Instructions []SolanaInstruction `json:"instructions"`
}

// TokenBalance is one token account balance snapshot. Amount is the raw
// base-unit amount as reported by the node.
type TokenBalance struct {
	Account string `json:"account"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  string `json:"amount"`
}
