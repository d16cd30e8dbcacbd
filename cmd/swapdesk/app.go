package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapdesk/internal/chain"
	"swapdesk/internal/config"
	"swapdesk/internal/dex"
	"swapdesk/internal/engine"
	"swapdesk/internal/lifecycle"
	"swapdesk/internal/metrics"
	"swapdesk/internal/model"
	"swapdesk/internal/notify"
	"swapdesk/internal/position"
	"swapdesk/internal/readstate"
	"swapdesk/internal/storage"
	"swapdesk/internal/storage/postgres"
)

// app is the wired engine for one command invocation.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *chain.Client
	cache   *readstate.Cache
	engine  *engine.Engine
	dedup   *notify.Deduplicator
	chainID uint64
	closers []func()
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// newApp connects to the chain and wires caches, lifecycle listeners and the
// engine. The refresh loop and metrics server live until ctx is done.
func newApp(ctx context.Context, cmd *cobra.Command, needAccount bool) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if cfg.RPCURL == "" {
		a.close()
		return nil, fmt.Errorf("rpc url is required")
	}
	router, factory, weth, err := cfg.Contracts()
	if err != nil {
		a.close()
		return nil, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		a.close()
		return nil, err
	}
	var account common.Address
	if needAccount || cfg.Account != "" {
		if !common.IsHexAddress(cfg.Account) {
			a.close()
			return nil, fmt.Errorf("invalid account address: %q", cfg.Account)
		}
		account = common.HexToAddress(cfg.Account)
	}

	addrs := dex.Addresses{Router: router, Factory: factory, WETH: weth}
	client, err := chain.Dial(ctx, cfg.RPCURL, addrs, chain.Options{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client
	a.closers = append(a.closers, client.Close)

	id, err := client.ChainID(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.chainID = id.Uint64()

	writer, err := chain.NewWriter(client, chain.NewNodeWallet(client.RPC(), account), cfg.ReceiptPoll, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.cache = readstate.New(client, logger)
	go a.cache.Run(ctx, cfg.RefreshInterval)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a.dedup = notify.NewDeduplicator(notify.NewLogSink(logger))

	slots := lifecycle.NewSlots()
	slots.Observe(m)
	slots.Subscribe(m)
	slots.Subscribe(engine.NewEffects(a.cache, account, weth, nil, logger))
	slots.Subscribe(notify.NewNotifier(a.dedup, cfg.DedupeWindow))

	journal, err := a.openJournal(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	slots.Subscribe(storage.NewRecorder(journal, a.chainID, account, logger))

	if cfg.MetricsAddr != "" {
		a.serveMetrics(reg)
	}

	snapshot := settings
	a.engine = engine.New(a.cache, lifecycle.NewDriver(slots, writer, cfg.ReceiptTimeout, logger), engine.Options{
		Addresses: addrs,
		Account:   account,
		Settings:  func() config.Settings { return snapshot },
		Fresh:     client,
		Positions: position.NewReader(client, client, logger),
	}, logger)

	logger.Info("swapdesk ready",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", a.chainID),
		zap.String("account", account.Hex()),
		zap.Uint32("slippage_bps", settings.SlippageBps),
		zap.String("approval_mode", string(settings.ApprovalPolicy)),
	)
	return a, nil
}

func (a *app) openJournal(ctx context.Context) (storage.Journal, error) {
	if a.cfg.PGDSN == "" {
		return storage.NewJsonlJournal(a.cfg.Journal), nil
	}
	store, err := postgres.NewStore(ctx, a.cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// token resolves "eth"/"native" to the native asset and anything else as a
// token contract address.
func (a *app) token(ctx context.Context, input string) (model.Token, error) {
	switch input {
	case "eth", "ETH", "native":
		return model.NativeToken, nil
	}
	if !common.IsHexAddress(input) {
		return model.Token{}, fmt.Errorf("invalid token: %q", input)
	}
	return a.client.Token(ctx, common.HexToAddress(input))
}
