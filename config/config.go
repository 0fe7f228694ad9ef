// Package config loads and validates the controller configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete controller configuration.
type Config struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Magic  int    `json:"magic" yaml:"magic"`

	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Orders    OrdersConfig    `json:"orders" yaml:"orders"`
	Manage    ManageConfig    `json:"manage" yaml:"manage"`
	Guards    GuardsConfig    `json:"guards" yaml:"guards"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Indicator IndicatorConfig `json:"indicator" yaml:"indicator"`
	Timer     TimerConfig     `json:"timer" yaml:"timer"`
	Heartbeat HeartbeatConfig `json:"heartbeat" yaml:"heartbeat"`
	Bridge    BridgeConfig    `json:"bridge" yaml:"bridge"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Ops       OpsConfig       `json:"ops" yaml:"ops"`
	Telegram  TelegramConfig  `json:"telegram" yaml:"telegram"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// RiskConfig controls position sizing.
type RiskConfig struct {
	Percent        float64 `json:"percent" yaml:"percent"`                 // % of equity risked per trade
	MaxLot         float64 `json:"max_lot" yaml:"max_lot"`                 // global volume cap
	MaxPositions   int     `json:"max_positions" yaml:"max_positions"`     // per strategy identity
	FallbackVolume float64 `json:"fallback_volume" yaml:"fallback_volume"` // used when simulation fails; 0 blocks
}

// OrdersConfig controls stop/take-profit/slippage computation and the
// multiplier guard.
type OrdersConfig struct {
	SLATRMult       float64          `json:"sl_atr_mult" yaml:"sl_atr_mult"`
	TPBaseDist      float64          `json:"tp_base_dist" yaml:"tp_base_dist"`
	Slippage        SlippageConfig   `json:"slippage" yaml:"slippage"`
	Multiplier      MultiplierConfig `json:"multiplier" yaml:"multiplier"`
	AllowDuringHalt bool             `json:"allow_during_halt" yaml:"allow_during_halt"` // validation only
}

// SlippageConfig bounds the execution deviation in points.
type SlippageConfig struct {
	Dynamic    bool    `json:"dynamic" yaml:"dynamic"`
	BasePoints int     `json:"base_points" yaml:"base_points"`
	MinPoints  int     `json:"min_points" yaml:"min_points"`
	MaxPoints  int     `json:"max_points" yaml:"max_points"`
	ATRFactor  float64 `json:"atr_factor" yaml:"atr_factor"` // deviation points per point of ATR
}

// MultiplierConfig bounds the command multiplier.
type MultiplierConfig struct {
	Min            float64 `json:"min" yaml:"min"`
	Max            float64 `json:"max" yaml:"max"`
	RejectAbnormal bool    `json:"reject_abnormal" yaml:"reject_abnormal"` // block instead of clamping
}

// ManageConfig controls the per-tick position management.
type ManageConfig struct {
	TrailingStartATR float64       `json:"trailing_start_atr" yaml:"trailing_start_atr"`
	TrailingDistATR  float64       `json:"trailing_dist_atr" yaml:"trailing_dist_atr"`
	TrailingStepATR  float64       `json:"trailing_step_atr" yaml:"trailing_step_atr"`
	TPTrailStepATR   float64       `json:"tp_trail_step_atr" yaml:"tp_trail_step_atr"`
	Partial          PartialConfig `json:"partial" yaml:"partial"`
	BreakevenPoints  float64       `json:"breakeven_points" yaml:"breakeven_points"` // stop offset beyond open after partial
	HoldWindowSec    int           `json:"hold_window_sec" yaml:"hold_window_sec"`
}

// PartialConfig controls partial profit-taking.
type PartialConfig struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	ATRMult float64 `json:"atr_mult" yaml:"atr_mult"`
	Percent float64 `json:"percent" yaml:"percent"` // % of volume to close
}

// GuardsConfig holds the account-level circuit breakers.
type GuardsConfig struct {
	DailyLossPct     float64         `json:"daily_loss_pct" yaml:"daily_loss_pct"`
	CloseOnDailyLoss bool            `json:"close_on_daily_loss" yaml:"close_on_daily_loss"`
	Emergency        EmergencyConfig `json:"emergency" yaml:"emergency"`
	Panic            PanicConfig     `json:"panic" yaml:"panic"`
}

// EmergencyConfig controls the once-per-day breaker.
type EmergencyConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	LossPct        float64 `json:"loss_pct" yaml:"loss_pct"`
	MarginLevelMin float64 `json:"margin_level_min" yaml:"margin_level_min"` // percent; 0 disables the margin leg
	LogOnly        bool    `json:"log_only" yaml:"log_only"`
	Persist        bool    `json:"persist" yaml:"persist"`
	KeyPrefix      string  `json:"key_prefix" yaml:"key_prefix"`
}

// PanicConfig controls panic-market detection.
type PanicConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	SpreadPoints float64 `json:"spread_points" yaml:"spread_points"`
	RangeATRMult float64 `json:"range_atr_mult" yaml:"range_atr_mult"`
	CooldownMin  int     `json:"cooldown_min" yaml:"cooldown_min"`
}

// SessionConfig is the time-of-day gating, all hours in venue server time.
type SessionConfig struct {
	TradingStartHour int         `json:"trading_start_hour" yaml:"trading_start_hour"`
	HardCloseStart   int         `json:"hard_close_start" yaml:"hard_close_start"` // hour; window [start,end)
	HardCloseEnd     int         `json:"hard_close_end" yaml:"hard_close_end"`     // start==end disables
	Hours            HoursConfig `json:"hours" yaml:"hours"`
}

// HoursConfig is the optional trading-hours filter.
type HoursConfig struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	StartHour int  `json:"start_hour" yaml:"start_hour"`
	EndHour   int  `json:"end_hour" yaml:"end_hour"` // window [start,end), may wrap midnight
}

// IndicatorConfig selects the volatility reference.
type IndicatorConfig struct {
	Timeframe string `json:"timeframe" yaml:"timeframe"` // M1|M5|M15
	Period    int    `json:"period" yaml:"period"`
}

// TimerConfig drives the control loop.
type TimerConfig struct {
	IntervalSec  int `json:"interval_sec" yaml:"interval_sec"`
	CommandBatch int `json:"command_batch" yaml:"command_batch"` // max messages drained per timer tick
	TickPollMs   int `json:"tick_poll_ms" yaml:"tick_poll_ms"`
}

// HeartbeatConfig throttles the liveness report.
type HeartbeatConfig struct {
	IntervalSec int `json:"interval_sec" yaml:"interval_sec"`
}

// BridgeConfig points at the decision-engine transport. Empty URLs keep the
// in-memory queue (sim/test mode).
type BridgeConfig struct {
	CommandURL   string `json:"command_url" yaml:"command_url"`
	HeartbeatURL string `json:"heartbeat_url" yaml:"heartbeat_url"`
}

// JournalConfig selects the trade journal database.
type JournalConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// StoreConfig selects the breaker-state database. Empty path keeps the
// in-memory store (breaker not restart-durable).
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// OpsConfig is the operations HTTP listener.
type OpsConfig struct {
	Addr string `json:"addr" yaml:"addr"` // empty disables
}

// TelegramConfig enables breaker alerts. Token usually comes from the
// TELEGRAM_TOKEN environment variable rather than the file.
type TelegramConfig struct {
	Token  string `json:"token" yaml:"token"`
	ChatID string `json:"chat_id" yaml:"chat_id"`
}

// LogConfig tunes noisy-path logging.
type LogConfig struct {
	DecodeSampleRate int `json:"decode_sample_rate" yaml:"decode_sample_rate"` // log every Nth decode failure; 0 silences
}

// LoadFromFile loads configuration from a file (YAML or JSON), layered over
// Default().
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks for values that would make the controller misbehave
// silently.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.Magic <= 0 {
		return fmt.Errorf("magic must be positive")
	}
	if c.Risk.Percent <= 0 || c.Risk.Percent > 100 {
		return fmt.Errorf("risk.percent must be in (0, 100]")
	}
	if c.Risk.MaxLot <= 0 {
		return fmt.Errorf("risk.max_lot must be positive")
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive")
	}
	if c.Orders.SLATRMult <= 0 {
		return fmt.Errorf("orders.sl_atr_mult must be positive")
	}
	if c.Orders.Multiplier.Min <= 0 || c.Orders.Multiplier.Max < c.Orders.Multiplier.Min {
		return fmt.Errorf("orders.multiplier bounds must satisfy 0 < min <= max")
	}
	if c.Orders.Slippage.MinPoints > c.Orders.Slippage.MaxPoints {
		return fmt.Errorf("orders.slippage min_points must not exceed max_points")
	}
	if c.Guards.DailyLossPct <= 0 || c.Guards.DailyLossPct >= 100 {
		return fmt.Errorf("guards.daily_loss_pct must be in (0, 100)")
	}
	if c.Guards.Emergency.Enabled && (c.Guards.Emergency.LossPct <= 0 || c.Guards.Emergency.LossPct >= 100) {
		return fmt.Errorf("guards.emergency.loss_pct must be in (0, 100)")
	}
	if c.Manage.Partial.Enabled && (c.Manage.Partial.Percent <= 0 || c.Manage.Partial.Percent >= 100) {
		return fmt.Errorf("manage.partial.percent must be in (0, 100)")
	}
	if h := c.Session.TradingStartHour; h < 0 || h > 23 {
		return fmt.Errorf("session.trading_start_hour must be in [0, 23]")
	}
	switch strings.ToUpper(c.Indicator.Timeframe) {
	case "M1", "M5", "M15":
	default:
		return fmt.Errorf("indicator.timeframe must be one of M1, M5, M15")
	}
	if c.Indicator.Period <= 0 {
		return fmt.Errorf("indicator.period must be positive")
	}
	if c.Timer.IntervalSec <= 0 {
		return fmt.Errorf("timer.interval_sec must be positive")
	}
	if c.Timer.CommandBatch <= 0 {
		return fmt.Errorf("timer.command_batch must be positive")
	}
	if c.Heartbeat.IntervalSec <= 0 {
		return fmt.Errorf("heartbeat.interval_sec must be positive")
	}
	if c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required")
	}
	return nil
}

// Default returns a configuration with the stock thresholds.
func Default() *Config {
	return &Config{
		Symbol: "GOLD",
		Magic:  260001,
		Risk: RiskConfig{
			Percent:        1.0,
			MaxLot:         5.0,
			MaxPositions:   3,
			FallbackVolume: 0.01,
		},
		Orders: OrdersConfig{
			SLATRMult:  1.5,
			TPBaseDist: 3.0,
			Slippage: SlippageConfig{
				Dynamic:    true,
				BasePoints: 20,
				MinPoints:  10,
				MaxPoints:  100,
				ATRFactor:  0.1,
			},
			Multiplier: MultiplierConfig{Min: 0.5, Max: 2.0},
		},
		Manage: ManageConfig{
			TrailingStartATR: 1.0,
			TrailingDistATR:  2.0,
			TrailingStepATR:  0.25,
			TPTrailStepATR:   0.25,
			Partial: PartialConfig{
				Enabled: true,
				ATRMult: 1.2,
				Percent: 50,
			},
			BreakevenPoints: 10,
			HoldWindowSec:   180,
		},
		Guards: GuardsConfig{
			DailyLossPct:     10,
			CloseOnDailyLoss: true,
			Emergency: EmergencyConfig{
				Enabled:        true,
				LossPct:        15,
				MarginLevelMin: 250,
				Persist:        true,
				KeyPrefix:      "pilot_emg",
			},
			Panic: PanicConfig{
				Enabled:      true,
				SpreadPoints: 100,
				RangeATRMult: 3.0,
				CooldownMin:  30,
			},
		},
		Session: SessionConfig{
			TradingStartHour: 1,
			HardCloseStart:   23,
			HardCloseEnd:     24,
		},
		Indicator: IndicatorConfig{Timeframe: "M5", Period: 14},
		Timer: TimerConfig{
			IntervalSec:  1,
			CommandBatch: 16,
			TickPollMs:   250,
		},
		Heartbeat: HeartbeatConfig{IntervalSec: 30},
		Journal:   JournalConfig{DBPath: "./pilot.sqlite"},
		Log:       LogConfig{DecodeSampleRate: 10},
	}
}
