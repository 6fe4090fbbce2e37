package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradeScope/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for trade events and runner state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// EventKey identifies an event by chain, transaction and instruction position,
// so re-running a block range does not duplicate rows.
func EventKey(event model.TradeEvent) int64 {
	h := xxhash.New()
	if event.DApp != nil {
		_, _ = h.WriteString(event.DApp.Chain.String())
	}
	_, _ = h.WriteString("|")
	if event.Transaction != nil {
		_, _ = h.WriteString(event.Transaction.Signature)
	}
	_, _ = h.WriteString("|")
	if event.Instruction != nil {
		_, _ = h.WriteString(strconv.FormatUint(uint64(event.Instruction.Index), 10))
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(strconv.FormatBool(event.Instruction.IsInnerInstruction))
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(strconv.FormatUint(uint64(event.Instruction.InnerInstructionIndex), 10))
	}
	return int64(h.Sum64())
}

// PutTradeEvents inserts a batch, ignoring events that were already stored.
func (s *Store) PutTradeEvents(ctx context.Context, events model.TradeEvents) error {
	if events.Len() == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events.Events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		row := eventRow(event)
		batch.Queue(`
			INSERT INTO trade_events (
				event_key, chain, block_height, block_slot, block_hash, block_timestamp,
				tx_signature, instruction_index, is_inner_instruction, inner_instruction_index,
				instruction_type, program_address, inner_program_address, pool_address,
				token_a_address, token_b_address, vault_a_amount, vault_b_amount, payload
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
			ON CONFLICT (event_key) DO NOTHING
		`,
			EventKey(event),
			row.chain,
			int64(row.block.Height),
			int64(row.block.Slot),
			row.block.Hash,
			row.block.Timestamp,
			row.tx.Signature,
			int32(row.instruction.Index),
			row.instruction.IsInnerInstruction,
			int32(row.instruction.InnerInstructionIndex),
			row.instruction.Type,
			row.dapp.ProgramAddress,
			row.dapp.InnerProgramAddress,
			row.trade.PoolAddress,
			row.trade.TokenAAddress,
			row.trade.TokenBAddress,
			zeroIfEmpty(row.trade.VaultAAmount),
			zeroIfEmpty(row.trade.VaultBAmount),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events.Events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

type tradeRow struct {
	chain       string
	block       model.Block
	tx          model.Transaction
	instruction model.Instruction
	dapp        model.DApp
	trade       model.Trade
}

func eventRow(event model.TradeEvent) tradeRow {
	row := tradeRow{chain: model.ChainUnspecified.String()}
	if event.Block != nil {
		row.block = *event.Block
	}
	if event.Transaction != nil {
		row.tx = *event.Transaction
	}
	if event.Instruction != nil {
		row.instruction = *event.Instruction
	}
	if event.DApp != nil {
		row.dapp = *event.DApp
		row.chain = event.DApp.Chain.String()
	}
	if event.Trade != nil {
		row.trade = *event.Trade
	}
	return row
}

func zeroIfEmpty(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
