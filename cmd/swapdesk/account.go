package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapdesk/internal/amount"
	"swapdesk/internal/config"
	"swapdesk/internal/model"
	"swapdesk/internal/storage"
	"swapdesk/internal/storage/postgres"
)

func newPositionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List the account's liquidity positions",
		RunE:  runPositions,
	}
	cmd.Flags().StringSlice("pair", nil, "pair addresses to inspect, all factory pairs when empty")
	return cmd
}

func newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change saved preferences",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE:  runPrefsShow,
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "Save preferences",
		RunE:  runPrefsSet,
	}
	set.Flags().Uint32("slippage-bps", 0, "slippage tolerance in basis points")
	set.Flags().Uint64("deadline-secs", 0, "swap deadline in seconds")
	set.Flags().String("approval-mode", "", "approval amount (unlimited, exact)")

	cmd.AddCommand(show, set)
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent journaled transactions",
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", 20, "maximum records")
	return cmd
}

type positionView struct {
	Pair        common.Address `json:"pair"`
	Token0      string         `json:"token0"`
	Token1      string         `json:"token1"`
	Liquidity   string         `json:"liquidity"`
	ShareBps    uint64         `json:"share_bps"`
	Underlying0 string         `json:"underlying0"`
	Underlying1 string         `json:"underlying1"`
}

func runPositions(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	pairArgs, _ := cmd.Flags().GetStringSlice("pair")
	pairs := make([]common.Address, 0, len(pairArgs))
	for _, arg := range pairArgs {
		if !common.IsHexAddress(arg) {
			return fmt.Errorf("invalid pair address: %q", arg)
		}
		pairs = append(pairs, common.HexToAddress(arg))
	}

	positions, err := a.engine.Positions(ctx, pairs)
	if err != nil {
		return err
	}
	out := make([]positionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionView{
			Pair:        p.Pair,
			Token0:      p.Token0.String(),
			Token1:      p.Token1.String(),
			Liquidity:   amount.ToDecimalString(p.LiquidityBalance, lpDecimals),
			ShareBps:    p.ShareBps,
			Underlying0: amount.ToDecimalString(p.Underlying0, p.Token0.Decimals),
			Underlying1: amount.ToDecimalString(p.Underlying1, p.Token1.Decimals),
		})
	}
	return printJSON(cmd, out)
}

func runPrefsShow(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"slippage_bps":       settings.SlippageBps,
		"deadline":           settings.Deadline.String(),
		"liquidity_deadline": settings.LiquidityDeadline.String(),
		"approval_mode":      settings.ApprovalPolicy,
		"prefs":              cfg.Prefs,
	})
}

func runPrefsSet(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var update config.Preferences
	flags := cmd.Flags()
	if flags.Changed("slippage-bps") {
		v, _ := flags.GetUint32("slippage-bps")
		update.SlippageBps = &v
	}
	if flags.Changed("deadline-secs") {
		v, _ := flags.GetUint64("deadline-secs")
		update.DeadlineSecs = &v
	}
	if flags.Changed("approval-mode") {
		v, _ := flags.GetString("approval-mode")
		update.ApprovalMode = &v
	}

	store := config.NewPrefsStore(cfg.Prefs)
	current, _, err := store.Load()
	if err != nil {
		return err
	}
	merged := current.Merge(update)
	if err := store.Save(merged); err != nil {
		return err
	}
	logger.Info("preferences saved", zap.String("path", cfg.Prefs))
	return printJSON(cmd, merged)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	limit, _ := cmd.Flags().GetInt("limit")
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var records []model.TxRecord
	if cfg.PGDSN == "" {
		records, err = storage.NewJsonlJournal(cfg.Journal).Recent(ctx, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, records)
	}

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()
	records, err = store.Recent(ctx, a.chainID, common.HexToAddress(cfg.Account).Hex(), limit)
	if err != nil {
		return err
	}
	return printJSON(cmd, records)
}
