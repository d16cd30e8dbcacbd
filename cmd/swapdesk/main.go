package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "swapdesk",
		Short:        "Quote, approve and submit constant-product AMM trades",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "JSON-RPC URL")
	root.PersistentFlags().String("router", "", "router contract address")
	root.PersistentFlags().String("factory", "", "factory contract address")
	root.PersistentFlags().String("weth", "", "wrapped native token address")
	root.PersistentFlags().String("account", "", "account the node signs for")
	root.PersistentFlags().Int("max-retries", 3, "maximum retry attempts for reads")
	root.PersistentFlags().Duration("retry-backoff", 250*time.Millisecond, "initial retry backoff")
	root.PersistentFlags().String("prefs", "./data/preferences.json", "preferences file path")
	root.PersistentFlags().String("journal", "./data/transactions.jsonl", "transaction journal JSONL path")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN for the transaction journal")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newQuoteCmd(),
		newSwapCmd(),
		newAddLiquidityCmd(),
		newRemoveLiquidityCmd(),
		newApproveCmd(),
		newPositionsCmd(),
		newPrefsCmd(),
		newHistoryCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// addTradeFlags registers the per-operation preference overrides and the
// lifecycle tuning shared by every command that submits transactions.
func addTradeFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32("slippage-bps", 50, "slippage tolerance in basis points")
	cmd.Flags().Duration("deadline", 5*time.Minute, "swap deadline window")
	cmd.Flags().Duration("liquidity-deadline", 10*time.Minute, "liquidity deadline window")
	cmd.Flags().String("approval-mode", "unlimited", "approval amount (unlimited, exact)")
	cmd.Flags().Duration("receipt-timeout", 3*time.Minute, "maximum wait for a receipt")
	cmd.Flags().Duration("receipt-poll", 2*time.Second, "receipt polling interval")
	cmd.Flags().Duration("refresh-interval", 10*time.Second, "cached read refresh interval")
	cmd.Flags().Duration("dedupe-window", 1500*time.Millisecond, "notification dedupe window")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
