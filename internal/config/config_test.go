package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("VOLATILITY", "")
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store.Kind != "file" || cfg.Engine.Volatility != "mor" {
		t.Fatalf("defaults %+v", cfg)
	}
	if !cfg.Engine.FollowUpEvents || cfg.Engine.OverdraftFee != 35 || cfg.Engine.EmergencyAPR != 0.02 {
		t.Fatalf("engine defaults %+v", cfg.Engine)
	}
}

func TestLoadAPIFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VOLATILITY", "WILD")
	t.Setenv("LIFESIM_VOLATILITY", "calm")
	t.Setenv("LIFESIM_STORE", "sqlite")
	t.Setenv("LIFESIM_RANDOM_EVENT_CHANCE", "0.25")
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Engine.Volatility != "wild" || cfg.Store.Kind != "sqlite" || cfg.Engine.RandomEventChance != 0.25 {
		t.Fatalf("overrides %+v", cfg)
	}
}

func TestLoadAPIFromEnvRejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"postgres without url", "LIFESIM_STORE", "postgres"},
		{"unknown store", "LIFESIM_STORE", "redis"},
		{"chance above one", "LIFESIM_RANDOM_EVENT_CHANCE", "1.5"},
		{"bad float", "LIFESIM_OVERDRAFT_FEE", "lots"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(tc.key, tc.val)
			if _, err := LoadAPIFromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadWorkerFromEnv(t *testing.T) {
	t.Setenv("LIFESIM_WORKER_TICK_EVERY", "250ms")
	t.Setenv("LIFESIM_WORKER_RUN_ONCE", "true")
	cfg, err := LoadWorkerFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickEvery != 250*time.Millisecond || !cfg.RunOnce {
		t.Fatalf("worker %+v", cfg)
	}

	t.Setenv("LIFESIM_DISCORD_TOKEN", "abc")
	if _, err := LoadWorkerFromEnv(); err == nil {
		t.Fatalf("expected token without channel to fail")
	}
	t.Setenv("LIFESIM_DISCORD_TOKEN", "")
	t.Setenv("LIFESIM_STORE", "memory")
	if _, err := LoadWorkerFromEnv(); err == nil {
		t.Fatalf("expected memory store to fail for the worker")
	}
}

func TestLoadCLIFromEnv(t *testing.T) {
	t.Setenv("LIFESIM_API_BASE_URL", "http://example.test:9000/")
	if got := LoadCLIFromEnv().APIBaseURL; got != "http://example.test:9000" {
		t.Fatalf("base url %q", got)
	}
}

func TestEngineBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.json")
	if err := os.WriteFile(path, []byte(`{"TECH":[{"date":"2009-01-01","close":"260.5"}]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := EngineConfig{Volatility: "calm", EmergencyAPR: 0.03, OverdraftFee: 20, PriceSeries: path}.Build(slog.Default())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.Volatility != "calm" || cfg.OverdraftFee.String() != "20" || cfg.EmergencyFundAPR.String() != "0.03" || cfg.Prices == nil {
		t.Fatalf("engine config %+v", cfg)
	}
	if _, err := (EngineConfig{PriceSeries: filepath.Join(t.TempDir(), "missing.json")}).Build(nil); err == nil {
		t.Fatalf("expected missing series to fail")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}
