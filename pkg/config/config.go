package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"strategy-core/pkg/crypto"
)

// Config holds environment-driven settings for the strategy core.
type Config struct {
	Port   string
	DBPath string

	// Market / runner
	Symbol          string
	Timeframe       string
	Strategy        string
	PollSeconds     int
	EnableWebsocket bool
	UseMockFeed     bool

	// Market data rate limit (calls per period)
	MarketRateLimit         int
	MarketRatePeriodSeconds int

	// Binance
	BinanceTestnet   bool
	BinanceAPIKey    string
	BinanceAPISecret string

	// Execution
	LiveTrading bool

	// Backtest
	BacktestCash float64

	// Risk
	Risk Risk

	// Auth
	JWTSecret string
	// AdminPasswordHash is a bcrypt hash; login is disabled when empty.
	AdminPasswordHash string

	// SettingsPath is the YAML overlay that was applied ("" when none was found).
	SettingsPath string
}

// Risk mirrors the risk settings block; converted into risk.Config by callers.
type Risk struct {
	FeeRate         float64 `yaml:"fee_rate"`
	SlippagePct     float64 `yaml:"slippage_pct"`
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	CooldownSeconds int     `yaml:"cooldown_seconds"`
	MaxDailyLoss    float64 `yaml:"max_daily_loss"`
	TradeSize       float64 `yaml:"trade_size"`
	UseATRSizing    bool    `yaml:"use_atr_sizing"`
	RiskPerTradePct float64 `yaml:"risk_per_trade_pct"`
}

// settingsFile is the YAML layout of settings.yaml. Pointers distinguish
// "absent" from zero so a file only overrides what it names.
type settingsFile struct {
	Symbol          *string  `yaml:"symbol"`
	Timeframe       *string  `yaml:"timeframe"`
	Strategy        *string  `yaml:"strategy"`
	PollSeconds     *int     `yaml:"poll_seconds"`
	EnableWebsocket *bool    `yaml:"enable_websocket"`
	LiveTrading     *bool    `yaml:"live_trading"`
	BacktestCash    *float64 `yaml:"backtest_cash"`
	Risk            *struct {
		FeeRate         *float64 `yaml:"fee_rate"`
		SlippagePct     *float64 `yaml:"slippage_pct"`
		StopLossPct     *float64 `yaml:"stop_loss_pct"`
		TakeProfitPct   *float64 `yaml:"take_profit_pct"`
		CooldownSeconds *int     `yaml:"cooldown_seconds"`
		MaxDailyLoss    *float64 `yaml:"max_daily_loss"`
		TradeSize       *float64 `yaml:"trade_size"`
		UseATRSizing    *bool    `yaml:"use_atr_sizing"`
		RiskPerTradePct *float64 `yaml:"risk_per_trade_pct"`
	} `yaml:"risk"`
}

// Default returns the built-in settings before any file or env overlay.
func Default() *Config {
	return &Config{
		Port:                    "8080",
		DBPath:                  "./data/strategy.db",
		Symbol:                  "BTCUSDT",
		Timeframe:               "5m",
		Strategy:                "Momentum",
		PollSeconds:             5,
		EnableWebsocket:         true,
		UseMockFeed:             false,
		MarketRateLimit:         10,
		MarketRatePeriodSeconds: 60,
		BacktestCash:            1000,
		JWTSecret:               "dev-secret",
		Risk: Risk{
			FeeRate:         0.001,
			SlippagePct:     0.05,
			StopLossPct:     2.0,
			TakeProfitPct:   3.0,
			CooldownSeconds: 90,
			MaxDailyLoss:    150,
			TradeSize:       0.001,
			UseATRSizing:    false,
			RiskPerTradePct: 1.0,
		},
	}
}

// Load reads environment variables (optionally via .env), overlays the YAML
// settings file when present, and lets env vars win over both.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := Default()

	path := getEnv("SETTINGS_PATH", "settings.yaml")
	applied, err := cfg.applySettingsFile(path)
	if err != nil {
		return nil, err
	}
	if applied {
		cfg.SettingsPath = path
	}

	cfg.applyEnv()
	if err := cfg.openSealedCredentials(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSealedCredentials decrypts Binance credentials given in sealed form
// (ENC[v1]:...) with MASTER_ENCRYPTION_KEY.
func (c *Config) openSealedCredentials() error {
	if !crypto.IsSealed(c.BinanceAPIKey) && !crypto.IsSealed(c.BinanceAPISecret) {
		return nil
	}
	sealer, err := crypto.SealerFromEnv()
	if err != nil {
		return fmt.Errorf("sealed binance credentials: %w", err)
	}
	if c.BinanceAPIKey, err = sealer.Open(c.BinanceAPIKey); err != nil {
		return fmt.Errorf("open BINANCE_API_KEY: %w", err)
	}
	if c.BinanceAPISecret, err = sealer.Open(c.BinanceAPISecret); err != nil {
		return fmt.Errorf("open BINANCE_API_SECRET: %w", err)
	}
	return nil
}

// applySettingsFile overlays a YAML file; a missing file is not an error.
func (c *Config) applySettingsFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read settings %s: %w", path, err)
	}

	var f settingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return false, fmt.Errorf("parse settings %s: %w", path, err)
	}

	setString(&c.Symbol, f.Symbol)
	setString(&c.Timeframe, f.Timeframe)
	setString(&c.Strategy, f.Strategy)
	setInt(&c.PollSeconds, f.PollSeconds)
	setBool(&c.EnableWebsocket, f.EnableWebsocket)
	setBool(&c.LiveTrading, f.LiveTrading)
	setFloat(&c.BacktestCash, f.BacktestCash)
	if r := f.Risk; r != nil {
		setFloat(&c.Risk.FeeRate, r.FeeRate)
		setFloat(&c.Risk.SlippagePct, r.SlippagePct)
		setFloat(&c.Risk.StopLossPct, r.StopLossPct)
		setFloat(&c.Risk.TakeProfitPct, r.TakeProfitPct)
		setInt(&c.Risk.CooldownSeconds, r.CooldownSeconds)
		setFloat(&c.Risk.MaxDailyLoss, r.MaxDailyLoss)
		setFloat(&c.Risk.TradeSize, r.TradeSize)
		setBool(&c.Risk.UseATRSizing, r.UseATRSizing)
		setFloat(&c.Risk.RiskPerTradePct, r.RiskPerTradePct)
	}
	return true, nil
}

func (c *Config) applyEnv() {
	// Database path: prefer DB_PATH, then DATABASE_PATH for backward compatibility.
	dbPath := getEnv("DB_PATH", "")
	if dbPath == "" {
		dbPath = getEnv("DATABASE_PATH", c.DBPath)
	}
	c.DBPath = dbPath

	c.Port = getEnv("PORT", c.Port)
	c.Symbol = strings.ToUpper(getEnv("SYMBOL", c.Symbol))
	c.Timeframe = getEnv("TIMEFRAME", c.Timeframe)
	c.Strategy = getEnv("STRATEGY", c.Strategy)
	c.PollSeconds = getEnvInt("POLL_SECONDS", c.PollSeconds)
	c.EnableWebsocket = getEnvBool("ENABLE_WEBSOCKET", c.EnableWebsocket)
	c.UseMockFeed = getEnvBool("USE_MOCK_FEED", c.UseMockFeed)
	c.MarketRateLimit = getEnvInt("MARKET_RATE_LIMIT", c.MarketRateLimit)
	c.MarketRatePeriodSeconds = getEnvInt("MARKET_RATE_PERIOD_SECONDS", c.MarketRatePeriodSeconds)
	c.BinanceTestnet = getEnvBool("BINANCE_TESTNET", c.BinanceTestnet)
	c.BinanceAPIKey = os.Getenv("BINANCE_API_KEY")
	c.BinanceAPISecret = os.Getenv("BINANCE_API_SECRET")
	c.LiveTrading = getEnvBool("LIVE_TRADING", c.LiveTrading)
	c.BacktestCash = getEnvFloat("BACKTEST_CASH", c.BacktestCash)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", c.AdminPasswordHash)

	c.Risk.FeeRate = getEnvFloat("FEE_RATE", c.Risk.FeeRate)
	c.Risk.SlippagePct = getEnvFloat("SLIPPAGE_PCT", c.Risk.SlippagePct)
	c.Risk.StopLossPct = getEnvFloat("STOP_LOSS_PCT", c.Risk.StopLossPct)
	c.Risk.TakeProfitPct = getEnvFloat("TAKE_PROFIT_PCT", c.Risk.TakeProfitPct)
	c.Risk.CooldownSeconds = getEnvInt("COOLDOWN_SECONDS", c.Risk.CooldownSeconds)
	c.Risk.MaxDailyLoss = getEnvFloat("MAX_DAILY_LOSS", c.Risk.MaxDailyLoss)
	c.Risk.TradeSize = getEnvFloat("TRADE_SIZE", c.Risk.TradeSize)
	c.Risk.UseATRSizing = getEnvBool("USE_ATR_SIZING", c.Risk.UseATRSizing)
	c.Risk.RiskPerTradePct = getEnvFloat("RISK_PER_TRADE_PCT", c.Risk.RiskPerTradePct)
}

// HasBinanceCredentials reports whether signed endpoints can be used.
func (c *Config) HasBinanceCredentials() bool {
	return c.BinanceAPIKey != "" && c.BinanceAPISecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
