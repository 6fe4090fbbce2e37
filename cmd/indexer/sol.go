package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradeScope/internal/config"
	"tradeScope/internal/dex"
	"tradeScope/internal/dispatch"
	"tradeScope/internal/indexer"
)

func newSolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sol",
		Short: "Decode Raydium swaps from a JSONL file of Solana blocks",
		RunE:  runSol,
	}

	cmd.Flags().String("in", "", "input Solana blocks JSONL (- for stdin)")
	cmd.Flags().String("out", "./data/sol_trades.jsonl", "output trade events JSONL")
	cmd.Flags().String("proto-out", "", "optional length-prefixed protobuf output")
	cmd.Flags().String("errors", "./data/sol_decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().Int("workers", 4, "blocks decoded in parallel")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for trades")
	cmd.Flags().StringSlice("raydium-program-id", nil, "Raydium program ids (comma-separated)")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runSol(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSol(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	input := os.Stdin
	if cfg.In != "-" {
		f, err := os.Open(cfg.In)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := dex.NewDefaultRegistry(cfg.Protocols)
	if err != nil {
		return err
	}
	dispatcher, err := dispatch.New(registry, nil, logger)
	if err != nil {
		return err
	}

	out, err := openSinks(ctx, cfg.Out, cfg.ProtoOut, cfg.Errors, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer out.Close()

	recorder, stopMetrics, err := startMetrics(cfg.MetricsAddr, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	logger.Info("sol decode start",
		zap.String("in", cfg.In),
		zap.Strings("programs", registry.ProgramIDs()),
		zap.Int("workers", cfg.Workers),
		zap.String("out", cfg.Out),
	)

	runner := indexer.NewSolanaRunner(indexer.SolanaRunConfig{Workers: cfg.Workers}, dispatcher, out.trades, out.errors, recorder, logger)
	stats, err := runner.Run(ctx, input)
	if err != nil {
		return err
	}

	logger.Info("sol decode complete",
		zap.Int("blocks", stats.Blocks),
		zap.Int("trades", stats.Trades),
		zap.Int("failed", stats.Failed),
		zap.Int("warnings", stats.Warnings),
		zap.Int("bad_blocks", stats.BadBlocks),
	)
	return nil
}
