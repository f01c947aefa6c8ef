// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"lifesim/internal/engine"
	"lifesim/internal/market"
	"lifesim/internal/store"
)

type StoreConfig struct {
	Kind        string `env:"LIFESIM_STORE" envDefault:"file"`
	DataDir     string `env:"LIFESIM_DATA_DIR" envDefault:".lifesim-data"`
	SQLitePath  string `env:"LIFESIM_SQLITE_PATH"`
	DatabaseURL string `env:"DATABASE_URL"`
}

type EngineConfig struct {
	Volatility        string  `env:"LIFESIM_VOLATILITY" envDefault:"mor"`
	EmergencyAPR      float64 `env:"LIFESIM_EMERGENCY_APR" envDefault:"0.02"`
	OverdraftFee      float64 `env:"LIFESIM_OVERDRAFT_FEE" envDefault:"35"`
	RandomEventChance float64 `env:"LIFESIM_RANDOM_EVENT_CHANCE" envDefault:"0"`
	FollowUpEvents    bool    `env:"LIFESIM_FOLLOWUP_EVENTS" envDefault:"true"`
	PriceSeries       string  `env:"LIFESIM_PRICE_SERIES"`
}

type APIConfig struct {
	Addr     string `env:"LIFESIM_API_ADDR" envDefault:":8080"`
	LogLevel string `env:"LIFESIM_LOG_LEVEL" envDefault:"info"`
	Store    StoreConfig
	Engine   EngineConfig
}

type WorkerConfig struct {
	TickEvery      time.Duration `env:"LIFESIM_WORKER_TICK_EVERY" envDefault:"5s"`
	RunOnce        bool          `env:"LIFESIM_WORKER_RUN_ONCE"`
	DiscordToken   string        `env:"LIFESIM_DISCORD_TOKEN"`
	DiscordChannel string        `env:"LIFESIM_DISCORD_CHANNEL"`
	LogLevel       string        `env:"LIFESIM_LOG_LEVEL" envDefault:"info"`
	Store          StoreConfig
	Engine         EngineConfig
}

type CLIConfig struct {
	APIBaseURL string `env:"LIFESIM_API_BASE_URL" envDefault:"http://localhost:8080"`
}

func parseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := parseEnv(&cfg); err != nil {
		return cfg, err
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.Engine.Volatility = volatility(cfg.Engine.Volatility)
	if err := cfg.Store.validate(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Engine.validate()
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := parseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Engine.Volatility = volatility(cfg.Engine.Volatility)
	if cfg.TickEvery <= 0 {
		return cfg, fmt.Errorf("LIFESIM_WORKER_TICK_EVERY must be > 0")
	}
	if (cfg.DiscordToken == "") != (cfg.DiscordChannel == "") {
		return cfg, fmt.Errorf("LIFESIM_DISCORD_TOKEN and LIFESIM_DISCORD_CHANNEL must be set together")
	}
	if cfg.Store.Kind == store.KindMemory {
		return cfg, fmt.Errorf("the worker needs a shared store, not %q", store.KindMemory)
	}
	if err := cfg.Store.validate(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Engine.validate()
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	if err := parseEnv(&cfg); err != nil {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg
}

// Options converts the settings for store.Open.
func (c StoreConfig) Options(logger *slog.Logger) store.Options {
	return store.Options{
		Kind:        c.Kind,
		DataDir:     c.DataDir,
		SQLitePath:  c.SQLitePath,
		DatabaseURL: c.DatabaseURL,
		Logger:      logger,
	}
}

// Build returns the engine configuration, loading the price series file when
// one is configured.
func (c EngineConfig) Build(logger *slog.Logger) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	cfg.Volatility = c.Volatility
	cfg.EmergencyFundAPR = decimal.NewFromFloat(c.EmergencyAPR)
	cfg.OverdraftFee = decimal.NewFromFloat(c.OverdraftFee)
	cfg.RandomEventChance = c.RandomEventChance
	cfg.FollowUpRandomEvents = c.FollowUpEvents
	cfg.Logger = logger
	if path := strings.TrimSpace(c.PriceSeries); path != "" {
		src, err := market.LoadSeriesFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load price series: %w", err)
		}
		cfg.Prices = src
	}
	return cfg, nil
}

func (c StoreConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Kind)) {
	case store.KindMemory, store.KindFile, store.KindSQLite:
		return nil
	case store.KindPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when LIFESIM_STORE=postgres")
		}
		return nil
	}
	return fmt.Errorf("LIFESIM_STORE must be memory, file, sqlite or postgres, got %q", c.Kind)
}

func (c EngineConfig) validate() error {
	if c.RandomEventChance < 0 || c.RandomEventChance > 1 {
		return fmt.Errorf("LIFESIM_RANDOM_EVENT_CHANCE must be between 0 and 1")
	}
	if c.EmergencyAPR < 0 {
		return fmt.Errorf("LIFESIM_EMERGENCY_APR must be >= 0")
	}
	if c.OverdraftFee < 0 {
		return fmt.Errorf("LIFESIM_OVERDRAFT_FEE must be >= 0")
	}
	return nil
}

// volatility prefers the short VOLATILITY variable over the prefixed one.
func volatility(fallback string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("VOLATILITY")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(fallback))
	}
	switch v {
	case "calm", "mor", "wild":
		return v
	default:
		return "mor"
	}
}

// ParseLogLevel maps debug, info, warn and error onto slog levels.
func ParseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
