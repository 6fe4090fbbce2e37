// Package dispatch walks a block in source order and routes each candidate
// instruction or log to the decoder registered for it.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"tradeScope/internal/dex"
	"tradeScope/internal/model"
)

// Report summarizes one dispatched block. A failed candidate never aborts the block.
type Report struct {
	Candidates int                   `json:"candidates"`
	Decoded    int                   `json:"decoded"`
	Skipped    int                   `json:"skipped"`
	Failed     int                   `json:"failed"`
	Errors     []model.DecodeError   `json:"errors,omitempty"`
	Warnings   []model.DecodeWarning `json:"warnings,omitempty"`
}

func (r *Report) fail(record model.DecodeError) {
	r.Failed++
	r.Errors = append(r.Errors, record)
}

// Dispatcher routes block contents to registered decoders.
type Dispatcher struct {
	registry *dex.Registry
	resolver dex.TokenResolver
	logger   *zap.Logger
}

// New builds a dispatcher. resolver may be nil, in which case EVM token legs
// fall back to the pool address.
func New(registry *dex.Registry, resolver dex.TokenResolver, logger *zap.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, resolver: resolver, logger: logger}, nil
}

func (d *Dispatcher) Registry() *dex.Registry {
	return d.registry
}

func (d *Dispatcher) decodeContext(ctx context.Context, warnings *dex.Warnings) dex.DecodeContext {
	return dex.DecodeContext{
		Context:  ctx,
		Resolver: d.resolver,
		Logger:   d.logger,
		Warnings: warnings,
	}
}

// DispatchSolana decodes every registered instruction of the block. Outer
// instructions come first, each followed by its inner instructions. Failed
// transactions are skipped since they moved no balances.
func (d *Dispatcher) DispatchSolana(ctx context.Context, block model.SolanaBlock) (model.TradeEvents, Report) {
	var (
		events   model.TradeEvents
		report   Report
		warnings = &dex.Warnings{}
	)
	decodeCtx := d.decodeContext(ctx, warnings)
	header := model.Block{
		Timestamp: block.Timestamp,
		Hash:      block.Hash,
		Height:    block.Height,
		Slot:      block.Slot,
	}

	for _, tx := range block.Transactions {
		if tx.Failed {
			continue
		}
		signature := solana.SignatureFromBytes(tx.Signature).String()

		keys, err := accountTable(tx.AccountKeys)
		if err != nil {
			report.fail(solanaError(header, signature, 0, "", err))
			continue
		}
		var feePayer string
		if len(keys) > 0 {
			feePayer = keys[0]
		}
		txCtx := model.Transaction{
			Fee:       tx.Fee,
			FeePayer:  feePayer,
			Index:     tx.Index,
			Signature: signature,
			Signer:    feePayer,
			Status:    model.TxStatusSuccess,
		}

		inner := make(map[uint32][]model.SolanaInstruction, len(tx.InnerInstructions))
		for _, group := range tx.InnerInstructions {
			inner[group.Index] = append(inner[group.Index], group.Instructions...)
		}

		for i, ix := range tx.Instructions {
			outerProgram, err := lookup(keys, ix.ProgramIDIndex)
			if err != nil {
				report.fail(solanaError(header, signature, uint32(i), "", fmt.Errorf("program id: %w", err)))
				continue
			}
			in := dex.InstructionInput{
				Block:        header,
				Transaction:  txCtx,
				Instruction:  model.Instruction{Index: uint32(i)},
				ProgramID:    outerProgram,
				Data:         ix.Data,
				PreBalances:  tx.PreTokenBalances,
				PostBalances: tx.PostTokenBalances,
			}
			d.dispatchInstruction(&events, &report, decodeCtx, keys, ix, in)

			for j, innerIx := range inner[uint32(i)] {
				program, err := lookup(keys, innerIx.ProgramIDIndex)
				if err != nil {
					report.fail(solanaError(header, signature, uint32(i), "", fmt.Errorf("inner %d program id: %w", j, err)))
					continue
				}
				innerIn := in
				innerIn.ProgramID = program
				innerIn.OuterProgramID = outerProgram
				innerIn.Data = innerIx.Data
				innerIn.Instruction = model.Instruction{
					Index:                 uint32(i),
					IsInnerInstruction:    true,
					InnerInstructionIndex: uint32(j),
				}
				d.dispatchInstruction(&events, &report, decodeCtx, keys, innerIx, innerIn)
			}
		}
	}

	report.Warnings = warnings.Items()
	return events, report
}

func (d *Dispatcher) dispatchInstruction(events *model.TradeEvents, report *Report, decodeCtx dex.DecodeContext, keys []string, ix model.SolanaInstruction, in dex.InstructionInput) {
	decoder, ok := d.registry.Instruction(in.ProgramID)
	if !ok {
		return
	}
	report.Candidates++

	accounts := make([]string, 0, len(ix.Accounts))
	for _, idx := range ix.Accounts {
		account, err := lookup(keys, idx)
		if err != nil {
			report.fail(solanaError(in.Block, in.Transaction.Signature, in.Instruction.Index, in.ProgramID, fmt.Errorf("account: %w", err)))
			return
		}
		accounts = append(accounts, account)
	}
	in.Accounts = accounts

	event := decoder.DecodeInstruction(in, decodeCtx)
	if event == nil {
		report.Skipped++
		return
	}
	if err := event.Validate(); err != nil {
		report.fail(solanaError(in.Block, in.Transaction.Signature, in.Instruction.Index, in.ProgramID, fmt.Errorf("invalid event: %w", err)))
		return
	}
	report.Decoded++
	events.Append(*event)
}

// DispatchEVM decodes the logs of the block emitted by a filtered pool whose
// topic0 has a registered decoder. Output follows log order.
func (d *Dispatcher) DispatchEVM(ctx context.Context, block model.EVMBlock, filter PoolFilter) (model.TradeEvents, Report, error) {
	if filter.Empty() {
		return model.TradeEvents{}, Report{}, ErrNoPools
	}

	var (
		events   model.TradeEvents
		report   Report
		warnings = &dex.Warnings{}
	)
	decodeCtx := d.decodeContext(ctx, warnings)
	chain := model.EVMChain(block.ChainID)
	header := block.Header()

	txByHash := make(map[string]*model.EVMTransaction, len(block.Transactions))
	for i := range block.Transactions {
		txByHash[strings.ToLower(block.Transactions[i].Hash)] = &block.Transactions[i]
	}

	for _, log := range block.Logs {
		if log.Removed || log.Topic0() == "" || !filter.Match(log.Address) {
			continue
		}
		decoder, ok := d.registry.Log(log.Topic0())
		if !ok {
			continue
		}
		report.Candidates++

		event, err := decoder.DecodeLog(dex.LogInput{
			Chain:       chain,
			Block:       header,
			Transaction: txByHash[strings.ToLower(log.TxHash)],
			Log:         log,
		}, decodeCtx)
		if err == nil {
			if verr := event.Validate(); verr != nil {
				err = fmt.Errorf("invalid event: %w", verr)
			}
		}
		if err != nil {
			d.logger.Debug("log decode failed",
				zap.String("decoder", decoder.Name()),
				zap.String("tx", log.TxHash),
				zap.Uint64("log_index", log.LogIndex),
				zap.Error(err),
			)
			report.fail(model.DecodeError{
				Chain:       chain.String(),
				ChainID:     block.ChainID,
				BlockNumber: block.Number,
				TxHash:      log.TxHash,
				LogIndex:    log.LogIndex,
				Address:     log.Address,
				Topic0:      log.Topic0(),
				Error:       err.Error(),
			})
			continue
		}
		report.Decoded++
		events.Append(*event)
	}

	report.Warnings = warnings.Items()
	return events, report, nil
}

func accountTable(raw [][]byte) ([]string, error) {
	keys := make([]string, 0, len(raw))
	for i, key := range raw {
		if len(key) != solana.PublicKeyLength {
			return nil, fmt.Errorf("account key %d has length %d", i, len(key))
		}
		keys = append(keys, solana.PublicKeyFromBytes(key).String())
	}
	return keys, nil
}

func lookup(keys []string, idx uint32) (string, error) {
	if int(idx) >= len(keys) {
		return "", fmt.Errorf("index %d out of range (%d keys)", idx, len(keys))
	}
	return keys[idx], nil
}

func solanaError(block model.Block, signature string, instruction uint32, program string, err error) model.DecodeError {
	return model.DecodeError{
		Chain:            model.ChainSolana.String(),
		BlockNumber:      block.Slot,
		TxHash:           signature,
		InstructionIndex: instruction,
		Address:          program,
		Error:            err.Error(),
	}
}
