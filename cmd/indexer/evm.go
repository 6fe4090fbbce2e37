package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradeScope/internal/chain"
	"tradeScope/internal/config"
	"tradeScope/internal/dex"
	"tradeScope/internal/dispatch"
	"tradeScope/internal/indexer"
)

func newEVMCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evm",
		Short: "Index V3 pool swaps over a block range",
		RunE:  runEVM,
	}

	cmd.Flags().String("rpc", "", "EVM RPC URL")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("pool", nil, "pool addresses to index (comma-separated)")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("out", "./data/trades.jsonl", "output trade events JSONL")
	cmd.Flags().String("proto-out", "", "optional length-prefixed protobuf output")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for trades and checkpoint")
	cmd.Flags().String("state-name", "evm", "checkpoint name when using Postgres")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Bool("fetch-tx", true, "load sender and gas used for each transaction")
	cmd.Flags().Int("resolver-cache-size", 4096, "pool token cache entries")
	cmd.Flags().StringSlice("topic0-alias", nil, "extra venue=topic0 V3 swap aliases (comma-separated)")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runEVM(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadEVM(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	pools, err := dispatch.NewPoolFilter(cfg.Pools...)
	if err != nil {
		return err
	}
	if pools.Empty() {
		return dispatch.ErrNoPools
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	resolver, err := dex.NewChainTokenResolver(chainClient, cfg.ResolverCacheSize, logger)
	if err != nil {
		return err
	}
	registry, err := dex.NewDefaultRegistry(cfg.Protocols)
	if err != nil {
		return err
	}
	dispatcher, err := dispatch.New(registry, resolver, logger)
	if err != nil {
		return err
	}

	out, err := openSinks(ctx, cfg.Out, cfg.ProtoOut, cfg.Errors, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer out.Close()

	var checkpoint indexer.Checkpointer
	switch {
	case !cfg.CheckpointEnabled:
	case out.store != nil:
		checkpoint = indexer.NewStateCheckpoint(out.store, cfg.StateName)
	default:
		checkpoint = indexer.NewCheckpointStore(cfg.Checkpoint, true)
	}

	recorder, stopMetrics, err := startMetrics(cfg.MetricsAddr, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:      cfg.FromBlock,
		ToBlock:        cfg.ToBlock,
		Pools:          pools,
		BatchSize:      cfg.BatchSize,
		FetchTxContext: cfg.FetchTxContext,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
	}, indexer.RunnerDeps{
		Chain:      chainClient,
		Dispatcher: dispatcher,
		Storage:    out.trades,
		Errors:     out.errors,
		Observer:   recorder,
		Checkpoint: checkpoint,
		Logger:     logger,
	})

	logger.Info("evm indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("pools", len(pools.Addresses())),
		zap.Int("topics", len(registry.Topics())),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", out.store != nil),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	return runner.Run(ctx)
}
