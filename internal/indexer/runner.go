package indexer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"tradeScope/internal/chain"
	"tradeScope/internal/dispatch"
	"tradeScope/internal/model"
	"tradeScope/internal/storage"
)

// ChainReader is the RPC surface the EVM runner needs. *chain.Client satisfies it.
type ChainReader interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockHeader(ctx context.Context, number uint64) (chain.BlockHeader, error)
	ForgetBlock(number uint64)
	TransactionContext(ctx context.Context, txHash, blockHash common.Hash, index uint) (chain.TxContext, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Observer receives every dispatched block. *metrics.Recorder satisfies it.
type Observer interface {
	Observe(chain model.Chain, events model.TradeEvents, report dispatch.Report)
}

// RunConfig holds runtime settings for the EVM runner.
type RunConfig struct {
	FromBlock      uint64
	ToBlock        uint64
	Pools          dispatch.PoolFilter
	BatchSize      uint64
	FetchTxContext bool
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Runner pulls pool logs block range by block range, dispatches each block and
// writes the resulting trades.
type Runner struct {
	cfg        RunConfig
	chain      ChainReader
	dispatcher *dispatch.Dispatcher
	storage    storage.Storage
	errors     storage.ErrorSink
	observer   Observer
	checkpoint Checkpointer
	logger     *zap.Logger
	// seen holds the log ids of the current range only; ranges never overlap.
	seen map[string]struct{}
}

// RunnerDeps groups the collaborators of a Runner. Errors, Observer and
// Checkpoint are optional.
type RunnerDeps struct {
	Chain      ChainReader
	Dispatcher *dispatch.Dispatcher
	Storage    storage.Storage
	Errors     storage.ErrorSink
	Observer   Observer
	Checkpoint Checkpointer
	Logger     *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps RunnerDeps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      deps.Chain,
		dispatcher: deps.Dispatcher,
		storage:    deps.Storage,
		errors:     deps.Errors,
		observer:   deps.Observer,
		checkpoint: deps.Checkpoint,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.dispatcher == nil {
		return fmt.Errorf("dispatcher is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Pools.Empty() {
		return dispatch.ErrNoPools
	}

	chainID, err := withRetry(ctx, r.logger, "get chain id", r.cfg.MaxRetries, r.cfg.RetryBackoff, r.chain.GetChainID)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := withRetry(ctx, r.logger, "get latest block", r.cfg.MaxRetries, r.cfg.RetryBackoff, r.chain.LatestBlockNumber)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if resumed := resumeFrom(from, cp, ok); resumed != from {
			from = resumed
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	addresses := r.cfg.Pools.Addresses()
	topics := r.dispatcher.Registry().Topics()

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To), zap.Uint64("blocks", blockRange.Len()))

		logs, err := withRetry(ctx, r.logger, "filter logs", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) ([]types.Log, error) {
			return r.chain.FilterLogs(ctx, blockRange.From, blockRange.To, addresses, topics)
		})
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		clear(r.seen)
		var trades int
		for _, blockLogs := range groupLogsByBlock(logs) {
			n, err := r.processBlock(ctx, chainIDValue, blockLogs)
			if err != nil {
				return err
			}
			trades += n
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete",
			zap.Int("logs", len(logs)),
			zap.Int("trades", trades),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

func (r *Runner) processBlock(ctx context.Context, chainID uint64, logs []types.Log) (int, error) {
	number := logs[0].BlockNumber
	header, err := withRetry(ctx, r.logger, "block header", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) (chain.BlockHeader, error) {
		return r.chain.BlockHeader(ctx, number)
	})
	if err != nil {
		return 0, fmt.Errorf("block header %d: %w", number, err)
	}
	defer r.chain.ForgetBlock(number)

	ingestedAt := time.Now().UTC()
	block := model.EVMBlock{
		ChainID:   chainID,
		Number:    number,
		Hash:      header.Hash.Hex(),
		Timestamp: header.Timestamp,
	}
	for _, log := range logs {
		record := buildLogRecord(chainID, log, header.Timestamp, ingestedAt)
		if _, ok := r.seen[record.ID()]; ok {
			continue
		}
		r.seen[record.ID()] = struct{}{}
		block.Logs = append(block.Logs, record)
	}
	if len(block.Logs) == 0 {
		return 0, nil
	}

	if r.cfg.FetchTxContext {
		for _, log := range uniqueTxs(logs) {
			txCtx, err := withRetry(ctx, r.logger, "transaction context", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) (chain.TxContext, error) {
				return r.chain.TransactionContext(ctx, log.TxHash, log.BlockHash, log.TxIndex)
			})
			if err != nil {
				return 0, fmt.Errorf("transaction %s: %w", log.TxHash.Hex(), err)
			}
			block.Transactions = append(block.Transactions, model.EVMTransaction{
				Hash:    txCtx.Hash.Hex(),
				From:    strings.ToLower(txCtx.From.Hex()),
				Index:   uint64(txCtx.Index),
				GasUsed: txCtx.GasUsed,
			})
		}
	}

	events, report, err := r.dispatcher.DispatchEVM(ctx, block, r.cfg.Pools)
	if err != nil {
		return 0, fmt.Errorf("dispatch block %d: %w", number, err)
	}
	if r.observer != nil {
		r.observer.Observe(model.EVMChain(chainID), events, report)
	}

	if err := r.storage.PutTradeEvents(ctx, events); err != nil {
		return 0, fmt.Errorf("store trades: %w", err)
	}
	if r.errors != nil {
		if err := r.errors.PutDecodeErrors(ctx, report.Errors); err != nil {
			return 0, fmt.Errorf("store decode errors: %w", err)
		}
		if err := r.errors.PutDecodeWarnings(ctx, report.Warnings); err != nil {
			return 0, fmt.Errorf("store decode warnings: %w", err)
		}
	}

	if report.Failed > 0 {
		r.logger.Warn("block decoded with failures",
			zap.Uint64("block", number),
			zap.Int("failed", report.Failed),
			zap.Int("decoded", report.Decoded),
		)
	}
	return events.Len(), nil
}
