package config

import (
	"github.com/spf13/pflag"

	"tradeScope/internal/dex"
)

// SolConfig holds configuration for the sol command.
type SolConfig struct {
	In          string
	Out         string
	ProtoOut    string
	Errors      string
	Workers     int
	PGDSN       string
	MetricsAddr string
	LogLevel    string
	Protocols   dex.ProtocolConfig
}

// LoadSol merges config file, environment variables, and flags into SolConfig.
func LoadSol(cfgFile string, flags *pflag.FlagSet) (SolConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":       "./data/sol_trades.jsonl",
		"errors":    "./data/sol_decode_errors.jsonl",
		"workers":   4,
		"log-level": "info",
	})
	if err != nil {
		return SolConfig{}, err
	}

	cfg := SolConfig{
		In:          v.GetString("in"),
		Out:         v.GetString("out"),
		ProtoOut:    v.GetString("proto-out"),
		Errors:      v.GetString("errors"),
		Workers:     v.GetInt("workers"),
		PGDSN:       v.GetString("pg-dsn"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
		Protocols:   loadProtocols(v),
	}

	return cfg, nil
}
