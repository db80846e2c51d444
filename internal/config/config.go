// Package config defines all configuration for the trading engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via SMC_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Risk      RiskConfig      `mapstructure:"risk"`
	SMC       SMCConfig       `mapstructure:"smc"`
	RSIVwap   RSIVwapConfig   `mapstructure:"rsi_vwap"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// BrokerConfig holds the broker session credentials and endpoints.
// AccountID 0 means "use the first account the token can reach".
type BrokerConfig struct {
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	AccessToken    string        `mapstructure:"access_token"`
	AccountID      int64         `mapstructure:"account_id"`
	Demo           bool          `mapstructure:"demo"`
	DemoEndpoint   string        `mapstructure:"demo_endpoint"`
	LiveEndpoint   string        `mapstructure:"live_endpoint"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	HeartbeatEvery time.Duration `mapstructure:"heartbeat_every"`
	ReconnectBase  time.Duration `mapstructure:"reconnect_base"`
	ReconnectMax   int           `mapstructure:"reconnect_max"`
}

// EngineConfig tunes the per-symbol analysis pipeline.
//
//   - Symbols: instruments to trade, canonical array form.
//   - AnalysisInterval: how often every symbol is analyzed (default 30s).
//   - RefreshInterval: how often bar history is refreshed (default 5m).
//   - CooldownMs: minimum gap between two trades on one symbol.
//   - MaxSpreadPips: reject orders when the live spread exceeds this.
//   - MinConfidence: signals below this confidence are dropped.
type EngineConfig struct {
	Symbols            []string      `mapstructure:"symbols"`
	AnalysisInterval   time.Duration `mapstructure:"analysis_interval"`
	RefreshInterval    time.Duration `mapstructure:"refresh_interval"`
	CooldownMs         int64         `mapstructure:"cooldown_ms"`
	MaxSpreadPips      float64       `mapstructure:"max_spread_pips"`
	MaxPositions       int           `mapstructure:"max_positions"`
	MaxTradesPerSymbol int           `mapstructure:"max_trades_per_symbol"`
	MinConfidence      int           `mapstructure:"min_confidence"`
	InFlightTTL        time.Duration `mapstructure:"in_flight_ttl"`
	HistoryRetries     int           `mapstructure:"history_retries"`
	HistoryBackoff     time.Duration `mapstructure:"history_backoff"`
}

// RiskConfig sets the circuit breaker and sizing limits.
//
//   - RiskPercent: equity fraction risked per trade.
//   - DailyLossLimitPercent: daily drawdown that trips the breaker.
//   - Session windows are Brasília (UTC-3) "HH:MM" pairs.
type RiskConfig struct {
	RiskPercent           float64 `mapstructure:"risk_percent"`
	DailyLossLimitPercent float64 `mapstructure:"daily_loss_limit_percent"`
	CircuitBreakerEnabled bool    `mapstructure:"circuit_breaker_enabled"`
	MaxOpenTrades         int     `mapstructure:"max_open_trades"`
	SessionFilterEnabled  bool    `mapstructure:"session_filter_enabled"`
	LondonStart           string  `mapstructure:"london_start"`
	LondonEnd             string  `mapstructure:"london_end"`
	NYStart               string  `mapstructure:"ny_start"`
	NYEnd                 string  `mapstructure:"ny_end"`
}

// SMCConfig tunes the institutional state machine.
type SMCConfig struct {
	ChochMinPips        float64       `mapstructure:"choch_min_pips"`
	MinGapPips          float64       `mapstructure:"min_gap_pips"`
	SwingLookback       int           `mapstructure:"swing_lookback"`
	MaxSwingsPerType    int           `mapstructure:"max_swings_per_type"`
	MaxTradesPerSession int           `mapstructure:"max_trades_per_session"`
	PoolTTL             time.Duration `mapstructure:"pool_ttl"`
	WaitSweepTimeout    time.Duration `mapstructure:"wait_sweep_timeout"`
	WaitChochTimeout    time.Duration `mapstructure:"wait_choch_timeout"`
	WaitFVGTimeout      time.Duration `mapstructure:"wait_fvg_timeout"`
	WaitMitigTimeout    time.Duration `mapstructure:"wait_mitigation_timeout"`
	WaitEntryTimeout    time.Duration `mapstructure:"wait_entry_timeout"`
	CooldownTimeout     time.Duration `mapstructure:"cooldown_timeout"`
	StopPips            float64       `mapstructure:"stop_pips"`
	TargetPips          float64       `mapstructure:"target_pips"`
}

// RSIVwapConfig tunes the confirmation strategy.
type RSIVwapConfig struct {
	RSIPeriod  int     `mapstructure:"rsi_period"`
	Oversold   float64 `mapstructure:"oversold"`
	Overbought float64 `mapstructure:"overbought"`
	StopPips   float64 `mapstructure:"stop_pips"`
	TargetPips float64 `mapstructure:"target_pips"`
}

// StoreConfig sets where positions, risk state, and the decision log live.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the status/admin HTTP server.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: SMC_CLIENT_ID, SMC_CLIENT_SECRET, SMC_ACCESS_TOKEN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SMC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if id := os.Getenv("SMC_CLIENT_ID"); id != "" {
		cfg.Broker.ClientID = id
	}
	if secret := os.Getenv("SMC_CLIENT_SECRET"); secret != "" {
		cfg.Broker.ClientSecret = secret
	}
	if token := os.Getenv("SMC_ACCESS_TOKEN"); token != "" {
		cfg.Broker.AccessToken = token
	}
	if os.Getenv("SMC_DRY_RUN") == "true" || os.Getenv("SMC_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.demo_endpoint", "wss://demo.ctraderapi.com:5035")
	v.SetDefault("broker.live_endpoint", "wss://live.ctraderapi.com:5035")
	v.SetDefault("broker.request_timeout", "10s")
	v.SetDefault("broker.heartbeat_every", "10s")
	v.SetDefault("broker.reconnect_base", "5s")
	v.SetDefault("broker.reconnect_max", 10)

	v.SetDefault("engine.analysis_interval", "30s")
	v.SetDefault("engine.refresh_interval", "5m")
	v.SetDefault("engine.cooldown_ms", 300000)
	v.SetDefault("engine.max_spread_pips", 3.0)
	v.SetDefault("engine.max_positions", 3)
	v.SetDefault("engine.max_trades_per_symbol", 1)
	v.SetDefault("engine.min_confidence", 50)
	v.SetDefault("engine.in_flight_ttl", "30s")
	v.SetDefault("engine.history_retries", 3)
	v.SetDefault("engine.history_backoff", "5s")

	v.SetDefault("risk.risk_percent", 1.0)
	v.SetDefault("risk.daily_loss_limit_percent", 3.0)
	v.SetDefault("risk.circuit_breaker_enabled", true)
	v.SetDefault("risk.max_open_trades", 3)
	v.SetDefault("risk.session_filter_enabled", true)
	v.SetDefault("risk.london_start", "04:00")
	v.SetDefault("risk.london_end", "09:00")
	v.SetDefault("risk.ny_start", "09:30")
	v.SetDefault("risk.ny_end", "14:00")

	v.SetDefault("smc.choch_min_pips", 5.0)
	v.SetDefault("smc.min_gap_pips", 2.0)
	v.SetDefault("smc.swing_lookback", 2)
	v.SetDefault("smc.max_swings_per_type", 3)
	v.SetDefault("smc.max_trades_per_session", 2)
	v.SetDefault("smc.pool_ttl", "24h")
	v.SetDefault("smc.wait_sweep_timeout", "90m")
	v.SetDefault("smc.wait_choch_timeout", "60m")
	v.SetDefault("smc.wait_fvg_timeout", "60m")
	v.SetDefault("smc.wait_mitigation_timeout", "60m")
	v.SetDefault("smc.wait_entry_timeout", "30m")
	v.SetDefault("smc.cooldown_timeout", "20m")
	v.SetDefault("smc.stop_pips", 15.0)
	v.SetDefault("smc.target_pips", 30.0)

	v.SetDefault("rsi_vwap.rsi_period", 14)
	v.SetDefault("rsi_vwap.oversold", 30.0)
	v.SetDefault("rsi_vwap.overbought", 70.0)
	v.SetDefault("rsi_vwap.stop_pips", 12.0)
	v.SetDefault("rsi_vwap.target_pips", 24.0)

	v.SetDefault("store.data_dir", "data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8089)
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Broker.ClientID == "" {
		return fmt.Errorf("broker.client_id is required (set SMC_CLIENT_ID)")
	}
	if c.Broker.ClientSecret == "" {
		return fmt.Errorf("broker.client_secret is required (set SMC_CLIENT_SECRET)")
	}
	if c.Broker.AccessToken == "" {
		return fmt.Errorf("broker.access_token is required (set SMC_ACCESS_TOKEN)")
	}
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("engine.symbols must list at least one symbol")
	}
	if c.Engine.MaxPositions <= 0 {
		return fmt.Errorf("engine.max_positions must be > 0")
	}
	if c.Engine.MaxTradesPerSymbol <= 0 {
		return fmt.Errorf("engine.max_trades_per_symbol must be > 0")
	}
	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 10 {
		return fmt.Errorf("risk.risk_percent must be in (0, 10]")
	}
	if c.Risk.DailyLossLimitPercent <= 0 {
		return fmt.Errorf("risk.daily_loss_limit_percent must be > 0")
	}
	for _, w := range []string{c.Risk.LondonStart, c.Risk.LondonEnd, c.Risk.NYStart, c.Risk.NYEnd} {
		if _, err := time.Parse("15:04", w); err != nil {
			return fmt.Errorf("risk session window %q must be HH:MM", w)
		}
	}
	if c.SMC.MinGapPips <= 0 {
		return fmt.Errorf("smc.min_gap_pips must be > 0")
	}
	return nil
}

// Endpoint returns the WS endpoint matching the demo flag.
func (c *BrokerConfig) Endpoint() string {
	if c.Demo {
		return c.DemoEndpoint
	}
	return c.LiveEndpoint
}
