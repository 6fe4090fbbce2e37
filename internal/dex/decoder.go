package dex

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tradeScope/internal/model"
)

// InstructionDecoder turns one account-model instruction into at most one trade.
// A nil result means the instruction is not a trade for this protocol.
type InstructionDecoder interface {
	Name() string
	ProgramID() string
	DecodeInstruction(in InstructionInput, ctx DecodeContext) *model.TradeEvent
}

// LogDecoder turns one event log into a trade. Callers only pass logs whose
// topic0 satisfies CanDecode; an error means the matched log was malformed.
type LogDecoder interface {
	Name() string
	Topic0() common.Hash
	CanDecode(topic0 string) bool
	DecodeLog(in LogInput, ctx DecodeContext) (*model.TradeEvent, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context  context.Context
	Resolver TokenResolver
	Logger   *zap.Logger
	Warnings *Warnings
}

func (c DecodeContext) ctx() context.Context {
	if c.Context == nil {
		return context.Background()
	}
	return c.Context
}

func (c DecodeContext) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// InstructionInput is one candidate instruction with its transaction context.
// Accounts are the instruction's accounts resolved through the account table.
// OuterProgramID is set when the instruction was invoked through another program.
type InstructionInput struct {
	Block          model.Block
	Transaction    model.Transaction
	Instruction    model.Instruction
	ProgramID      string
	OuterProgramID string
	Data           []byte
	Accounts       []string
	PreBalances    []model.TokenBalance
	PostBalances   []model.TokenBalance
}

// LogInput is one candidate log with its enclosing block and transaction.
// Transaction is nil when the host did not supply it.
type LogInput struct {
	Chain       model.Chain
	Block       model.Block
	Transaction *model.EVMTransaction
	Log         model.LogRecord
}

// Warnings collects degraded decodes for one block.
type Warnings struct {
	items []model.DecodeWarning
}

// Add records a warning. It is a no-op on a nil receiver.
func (w *Warnings) Add(warning model.DecodeWarning) {
	if w == nil {
		return
	}
	w.items = append(w.items, warning)
}

// Items returns the recorded warnings in order.
func (w *Warnings) Items() []model.DecodeWarning {
	if w == nil {
		return nil
	}
	return w.items
}

func (w *Warnings) Len() int {
	if w == nil {
		return 0
	}
	return len(w.items)
}
