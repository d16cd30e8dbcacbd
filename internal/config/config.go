package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"swapdesk/internal/model"
	"swapdesk/internal/slippage"
)

// Config holds configuration values loaded from flags, env, config file and
// the saved preferences file.
type Config struct {
	RPCURL            string
	Router            string
	Factory           string
	WETH              string
	Account           string
	SlippageBps       uint32
	Deadline          time.Duration
	LiquidityDeadline time.Duration
	ApprovalMode      string
	DedupeWindow      time.Duration
	RefreshInterval   time.Duration
	ReceiptTimeout    time.Duration
	ReceiptPoll       time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	Journal           string
	PGDSN             string
	Prefs             string
	MetricsAddr       string
	LogLevel          string
}

// Load merges config file, saved preferences, environment variables, and
// flags into Config. Flags win over env, env over preferences, preferences
// over the config file.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("slippage-bps", uint32(DefaultSlippageBps))
	v.SetDefault("deadline", DefaultDeadline)
	v.SetDefault("liquidity-deadline", DefaultLiquidityDeadline)
	v.SetDefault("approval-mode", string(model.ApprovalUnlimited))
	v.SetDefault("dedupe-window", 1500*time.Millisecond)
	v.SetDefault("refresh-interval", 10*time.Second)
	v.SetDefault("receipt-timeout", 3*time.Minute)
	v.SetDefault("receipt-poll", 2*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 250*time.Millisecond)
	v.SetDefault("journal", "./data/transactions.jsonl")
	v.SetDefault("prefs", "./data/preferences.json")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	prefs, ok, err := NewPrefsStore(v.GetString("prefs")).Load()
	if err != nil {
		return Config{}, err
	}
	if ok {
		if err := v.MergeConfigMap(prefs.asMap()); err != nil {
			return Config{}, fmt.Errorf("merge preferences: %w", err)
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		Router:            v.GetString("router"),
		Factory:           v.GetString("factory"),
		WETH:              v.GetString("weth"),
		Account:           v.GetString("account"),
		SlippageBps:       v.GetUint32("slippage-bps"),
		Deadline:          v.GetDuration("deadline"),
		LiquidityDeadline: v.GetDuration("liquidity-deadline"),
		ApprovalMode:      v.GetString("approval-mode"),
		DedupeWindow:      v.GetDuration("dedupe-window"),
		RefreshInterval:   v.GetDuration("refresh-interval"),
		ReceiptTimeout:    v.GetDuration("receipt-timeout"),
		ReceiptPoll:       v.GetDuration("receipt-poll"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Journal:           v.GetString("journal"),
		PGDSN:             v.GetString("pg-dsn"),
		Prefs:             v.GetString("prefs"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// Contracts parses the router, factory and wrapped-native addresses.
func (c Config) Contracts() (router, factory, weth common.Address, err error) {
	for _, item := range []struct {
		name  string
		value string
		out   *common.Address
	}{
		{"router", c.Router, &router},
		{"factory", c.Factory, &factory},
		{"weth", c.WETH, &weth},
	} {
		if !common.IsHexAddress(item.value) {
			return common.Address{}, common.Address{}, common.Address{}, fmt.Errorf("invalid %s address: %q", item.name, item.value)
		}
		*item.out = common.HexToAddress(item.value)
	}
	return router, factory, weth, nil
}

// Settings validates the user preferences and freezes them for one operation.
func (c Config) Settings() (Settings, error) {
	if err := slippage.Validate(c.SlippageBps); err != nil {
		return Settings{}, err
	}
	policy, err := model.ParseApprovalPolicy(c.ApprovalMode)
	if err != nil {
		return Settings{}, err
	}
	deadline := c.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	liquidityDeadline := c.LiquidityDeadline
	if liquidityDeadline <= 0 {
		liquidityDeadline = DefaultLiquidityDeadline
	}
	return Settings{
		SlippageBps:       c.SlippageBps,
		Deadline:          deadline,
		LiquidityDeadline: liquidityDeadline,
		ApprovalPolicy:    policy,
	}, nil
}
