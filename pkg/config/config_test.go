package config

import (
	"os"
	"path/filepath"
	"testing"

	"strategy-core/pkg/crypto"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutSettingsFile(t *testing.T) {
	t.Setenv("SETTINGS_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SettingsPath != "" {
		t.Fatalf("SettingsPath=%q, expected empty", cfg.SettingsPath)
	}
	if cfg.Symbol != "BTCUSDT" || cfg.Timeframe != "5m" {
		t.Fatalf("unexpected market defaults: %s %s", cfg.Symbol, cfg.Timeframe)
	}
	if cfg.Risk.FeeRate != 0.001 || cfg.Risk.StopLossPct != 2 || cfg.Risk.TakeProfitPct != 3 {
		t.Fatalf("unexpected risk defaults: %+v", cfg.Risk)
	}
	if cfg.Risk.CooldownSeconds != 90 || cfg.Risk.MaxDailyLoss != 150 {
		t.Fatalf("unexpected gate defaults: %+v", cfg.Risk)
	}
	if cfg.BacktestCash != 1000 || cfg.PollSeconds != 5 {
		t.Fatalf("unexpected runner defaults: cash=%v poll=%d", cfg.BacktestCash, cfg.PollSeconds)
	}
}

func TestLoadSettingsFileThenEnvOverride(t *testing.T) {
	path := writeSettings(t, `
symbol: ETHUSDT
strategy: Breakout
poll_seconds: 15
risk:
  stop_loss_pct: 4.5
  trade_size: 0.25
  use_atr_sizing: true
`)
	t.Setenv("SETTINGS_PATH", path)
	t.Setenv("TRADE_SIZE", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SettingsPath != path {
		t.Fatalf("SettingsPath=%q, expected %q", cfg.SettingsPath, path)
	}
	if cfg.Symbol != "ETHUSDT" || cfg.Strategy != "Breakout" || cfg.PollSeconds != 15 {
		t.Fatalf("YAML overlay not applied: %+v", cfg)
	}
	if cfg.Risk.StopLossPct != 4.5 || !cfg.Risk.UseATRSizing {
		t.Fatalf("YAML risk overlay not applied: %+v", cfg.Risk)
	}
	if cfg.Risk.TradeSize != 0.5 {
		t.Fatalf("TradeSize=%v, expected env override 0.5", cfg.Risk.TradeSize)
	}
	// untouched keys keep defaults
	if cfg.Risk.TakeProfitPct != 3 {
		t.Fatalf("TakeProfitPct=%v, expected default 3", cfg.Risk.TakeProfitPct)
	}
}

func TestLoadRejectsMalformedSettings(t *testing.T) {
	t.Setenv("SETTINGS_PATH", writeSettings(t, "risk: [not, a, map"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvParsingFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SETTINGS_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("POLL_SECONDS", "soon")
	t.Setenv("LIVE_TRADING", "yes please")
	t.Setenv("SYMBOL", "solusdt")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollSeconds != 5 {
		t.Fatalf("PollSeconds=%d, expected fallback 5", cfg.PollSeconds)
	}
	if cfg.LiveTrading {
		t.Fatalf("LiveTrading should stay false on unparsable value")
	}
	if cfg.Symbol != "SOLUSDT" {
		t.Fatalf("Symbol=%q, expected upper-cased", cfg.Symbol)
	}
}

func TestLoadOpensSealedCredentials(t *testing.T) {
	t.Setenv("SETTINGS_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	t.Setenv(crypto.MasterKeyEnv, key)
	sealer, err := crypto.SealerFromEnv()
	if err != nil {
		t.Fatalf("SealerFromEnv: %v", err)
	}
	sealed, err := sealer.Seal("s3cret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	t.Setenv("BINANCE_API_KEY", "plain-key")
	t.Setenv("BINANCE_API_SECRET", sealed)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BinanceAPIKey != "plain-key" || cfg.BinanceAPISecret != "s3cret" {
		t.Fatalf("credentials not opened: %q %q", cfg.BinanceAPIKey, cfg.BinanceAPISecret)
	}

	t.Setenv(crypto.MasterKeyEnv, "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without master key")
	}
}
