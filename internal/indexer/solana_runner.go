package indexer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradeScope/internal/dispatch"
	"tradeScope/internal/model"
	"tradeScope/internal/storage"
)

const defaultSolanaWorkers = 4

// SolanaRunConfig holds settings for decoding a file of Solana blocks.
type SolanaRunConfig struct {
	Workers int
}

// SolanaStats summarizes a Solana run.
type SolanaStats struct {
	Blocks    int
	Trades    int
	Failed    int
	Warnings  int
	BadBlocks int
}

// SolanaRunner decodes JSONL Solana blocks. Blocks in a window are decoded in
// parallel; results are written in input order.
type SolanaRunner struct {
	cfg        SolanaRunConfig
	dispatcher *dispatch.Dispatcher
	storage    storage.Storage
	errors     storage.ErrorSink
	observer   Observer
	logger     *zap.Logger
}

func NewSolanaRunner(cfg SolanaRunConfig, dispatcher *dispatch.Dispatcher, sink storage.Storage, errSink storage.ErrorSink, observer Observer, logger *zap.Logger) *SolanaRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultSolanaWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolanaRunner{
		cfg:        cfg,
		dispatcher: dispatcher,
		storage:    sink,
		errors:     errSink,
		observer:   observer,
		logger:     logger,
	}
}

// inputLine is one non-empty input line and its 1-based position.
type inputLine struct {
	number uint64
	data   []byte
}

type solanaResult struct {
	slot   uint64
	events model.TradeEvents
	report dispatch.Report
	err    error
}

// Run reads blocks from r until EOF.
func (s *SolanaRunner) Run(ctx context.Context, r io.Reader) (SolanaStats, error) {
	var stats SolanaStats
	if s.dispatcher == nil {
		return stats, fmt.Errorf("dispatcher is nil")
	}
	if s.storage == nil {
		return stats, fmt.Errorf("storage is nil")
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	window := make([]inputLine, 0, s.cfg.Workers*4)
	var number uint64
	for scanner.Scan() {
		number++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		window = append(window, inputLine{number: number, data: append([]byte(nil), line...)})
		if len(window) == cap(window) {
			if err := s.flush(ctx, window, &stats); err != nil {
				return stats, err
			}
			window = window[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	if err := s.flush(ctx, window, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *SolanaRunner) flush(ctx context.Context, lines []inputLine, stats *SolanaStats) error {
	if len(lines) == 0 {
		return nil
	}

	results := make([]solanaResult, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, line := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			block, err := ParseSolanaBlock(line.data)
			if err != nil {
				results[i] = solanaResult{err: err}
				return nil
			}
			events, report := s.dispatcher.DispatchSolana(gctx, block)
			results[i] = solanaResult{slot: block.Slot, events: events, report: report}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, res := range results {
		if res.err != nil {
			stats.BadBlocks++
			s.logger.Warn("skip unreadable block", zap.Uint64("line", lines[i].number), zap.Error(res.err))
			if s.errors != nil {
				record := model.DecodeError{Chain: model.ChainSolana.String(), Line: lines[i].number, Error: res.err.Error()}
				if err := s.errors.PutDecodeErrors(ctx, []model.DecodeError{record}); err != nil {
					return fmt.Errorf("store decode errors: %w", err)
				}
			}
			continue
		}

		if s.observer != nil {
			s.observer.Observe(model.ChainSolana, res.events, res.report)
		}
		if err := s.storage.PutTradeEvents(ctx, res.events); err != nil {
			return fmt.Errorf("store trades slot %d: %w", res.slot, err)
		}
		if s.errors != nil {
			if err := s.errors.PutDecodeErrors(ctx, res.report.Errors); err != nil {
				return fmt.Errorf("store decode errors: %w", err)
			}
			if err := s.errors.PutDecodeWarnings(ctx, res.report.Warnings); err != nil {
				return fmt.Errorf("store decode warnings: %w", err)
			}
		}

		stats.Blocks++
		stats.Trades += res.events.Len()
		stats.Failed += res.report.Failed
		stats.Warnings += len(res.report.Warnings)
		s.logger.Debug("block decoded",
			zap.Uint64("slot", res.slot),
			zap.Int("candidates", res.report.Candidates),
			zap.Int("trades", res.events.Len()),
		)
	}
	return nil
}
