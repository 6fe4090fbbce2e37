package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tradeScope/internal/metrics"
	"tradeScope/internal/storage"
	"tradeScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Normalize DEX trades from Solana and EVM chains",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newEVMCommand())
	root.AddCommand(newSolCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("run_id", uuid.NewString())), nil
}

// sinks is the set of outputs shared by both commands.
type sinks struct {
	trades storage.Multi
	errors storage.ErrorSink
	store  *postgres.Store
}

func (s *sinks) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

func openSinks(ctx context.Context, out, protoOut, errorsOut, pgDSN string) (*sinks, error) {
	s := &sinks{}
	if out != "" {
		s.trades = append(s.trades, storage.NewJsonlStorage(out))
	}
	if protoOut != "" {
		s.trades = append(s.trades, storage.NewProtoFileStorage(protoOut))
	}
	if pgDSN != "" {
		store, err := postgres.NewStore(ctx, pgDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		s.store = store
		s.trades = append(s.trades, store)
	}
	if len(s.trades) == 0 {
		s.Close()
		return nil, fmt.Errorf("at least one of out, proto-out or pg-dsn is required")
	}
	if errorsOut != "" {
		s.errors = storage.NewJsonlStorage(errorsOut)
	}
	return s, nil
}

// startMetrics registers a recorder and, when addr is set, serves it.
// The returned stop function is always safe to call.
func startMetrics(addr string, logger *zap.Logger) (*metrics.Recorder, func(), error) {
	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, nil, err
	}
	if addr == "" {
		return recorder, func() {}, nil
	}

	server := metrics.NewServer(addr, registry, logger)
	server.Start()
	return recorder, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Warn("metrics server stop", zap.Error(err))
		}
	}, nil
}
