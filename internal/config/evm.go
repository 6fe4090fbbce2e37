package config

import (
	"time"

	"github.com/spf13/pflag"

	"tradeScope/internal/dex"
)

// EVMConfig holds configuration for the evm command.
type EVMConfig struct {
	RPCURL            string
	FromBlock         uint64
	ToBlock           uint64
	Pools             []string
	BatchSize         uint64
	Out               string
	ProtoOut          string
	Errors            string
	Checkpoint        string
	CheckpointEnabled bool
	PGDSN             string
	StateName         string
	FetchTxContext    bool
	ResolverCacheSize int
	MaxRetries        int
	RetryBackoff      time.Duration
	MetricsAddr       string
	LogLevel          string
	Protocols         dex.ProtocolConfig
}

// LoadEVM merges config file, environment variables, and flags into EVMConfig.
func LoadEVM(cfgFile string, flags *pflag.FlagSet) (EVMConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":          uint64(2000),
		"out":                 "./data/trades.jsonl",
		"errors":              "./data/decode_errors.jsonl",
		"checkpoint":          "./data/checkpoint.json",
		"checkpoint-enabled":  true,
		"state-name":          "evm",
		"fetch-tx":            true,
		"resolver-cache-size": 4096,
		"max-retries":         5,
		"retry-backoff":       500 * time.Millisecond,
		"log-level":           "info",
	})
	if err != nil {
		return EVMConfig{}, err
	}

	cfg := EVMConfig{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Pools:             getStringSlice(v, "pool"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		ProtoOut:          v.GetString("proto-out"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		PGDSN:             v.GetString("pg-dsn"),
		StateName:         v.GetString("state-name"),
		FetchTxContext:    v.GetBool("fetch-tx"),
		ResolverCacheSize: v.GetInt("resolver-cache-size"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
		Protocols:         loadProtocols(v),
	}

	return cfg, nil
}
