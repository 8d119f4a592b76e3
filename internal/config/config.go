// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Engine      EngineConfig      `yaml:"engine"`
	Trading     TradingConfig     `yaml:"trading"`
	Inventory   InventoryConfig   `yaml:"inventory"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	RiskLimits  RiskLimitsConfig  `yaml:"risk_limits"`
	System      SystemConfig      `yaml:"system"`
	EventBus    EventBusConfig    `yaml:"event_bus"`
	Journal     JournalConfig     `yaml:"journal"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	LiveServer  LiveServerConfig  `yaml:"live_server"`
}

// EngineConfig contains engine-level settings
type EngineConfig struct {
	BotID              string   `yaml:"bot_id"`
	Exchange           string   `yaml:"exchange"`
	TradingPairs       []string `yaml:"trading_pairs"`
	MonitoringInterval int      `yaml:"monitoring_interval"`  // seconds between ticks
	ErrorRecoveryDelay int      `yaml:"error_recovery_delay"` // seconds after a failed tick
}

// TradingConfig contains order parameter bounds and execution settings
type TradingConfig struct {
	MinOrderSize        float64 `yaml:"min_order_size"`
	MaxOrderSize        float64 `yaml:"max_order_size"`
	MaxOrdersPerPair    int     `yaml:"max_orders_per_pair"`
	ExchangeCallTimeout int     `yaml:"exchange_call_timeout"` // seconds, per exchange call
	CancelTimeout       int     `yaml:"cancel_timeout"`        // seconds, per best-effort cancellation
	OrderRateLimit      float64 `yaml:"order_rate_limit"`      // exchange calls per second
	OrderRateBurst      int     `yaml:"order_rate_burst"`
}

// InventoryConfig contains rebalancing settings
type InventoryConfig struct {
	DefaultThreshold   float64            `yaml:"default_threshold"`
	PairThresholds     map[string]float64 `yaml:"pair_thresholds"`
	DefaultTargetRatio float64            `yaml:"default_target_ratio"`
	PairTargetRatios   map[string]float64 `yaml:"pair_target_ratios"`
	MinTradeValue      float64            `yaml:"min_trade_value"`
}

// StrategyConfig contains market classification thresholds and quoting bounds
type StrategyConfig struct {
	VolatilityHighThreshold float64            `yaml:"volatility_high_threshold"`
	LiquidityLowThreshold   float64            `yaml:"liquidity_low_threshold"`
	TrendStrongThreshold    float64            `yaml:"trend_strong_threshold"`
	BaseSpread              float64            `yaml:"base_spread"`
	BaseLevels              int                `yaml:"base_levels"`
	BaseSizePerLevel        float64            `yaml:"base_size_per_level"`
	AdaptationTolerance     float64            `yaml:"adaptation_tolerance"`
	PairTolerances          map[string]float64 `yaml:"pair_tolerances"`
	InventorySkewFactor     float64            `yaml:"inventory_skew_factor"`
}

// RiskLimitsConfig contains risk control settings
type RiskLimitsConfig struct {
	MaxPositionSize          float64 `yaml:"max_position_size"`
	MaxDailyLoss             float64 `yaml:"max_daily_loss"`
	InventoryDeviationLimit  float64 `yaml:"inventory_deviation_limit"`
	VolatilityPauseThreshold float64 `yaml:"volatility_pause_threshold"`
	PauseCooldown            int     `yaml:"pause_cooldown"` // seconds
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level"`
	CancelOnExit bool   `yaml:"cancel_on_exit"`
}

// EventBusConfig contains event publication settings
type EventBusConfig struct {
	KafkaEnabled bool     `yaml:"kafka_enabled"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	BufferSize   int      `yaml:"buffer_size"`
}

// JournalConfig contains fill/trade journal settings
type JournalConfig struct {
	Backend    string `yaml:"backend"` // "memory" or "sqlite"
	SQLitePath string `yaml:"sqlite_path"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	ExecutionPoolSize   int `yaml:"execution_pool_size"`
	ExecutionPoolBuffer int `yaml:"execution_pool_buffer"`
	TickPoolSize        int `yaml:"tick_pool_size"`
	TickPoolBuffer      int `yaml:"tick_pool_buffer"`
}

// LiveServerConfig contains WebSocket event stream settings
type LiveServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.BotID == "" {
		c.Engine.BotID = "mm-bot"
	}
	if c.Engine.MonitoringInterval <= 0 {
		c.Engine.MonitoringInterval = 10
	}
	if c.Engine.ErrorRecoveryDelay <= 0 {
		c.Engine.ErrorRecoveryDelay = 30
	}
	if c.Trading.MaxOrdersPerPair <= 0 {
		c.Trading.MaxOrdersPerPair = 20
	}
	if c.Trading.ExchangeCallTimeout <= 0 {
		c.Trading.ExchangeCallTimeout = 10
	}
	if c.Trading.CancelTimeout <= 0 {
		c.Trading.CancelTimeout = 5
	}
	if c.Trading.OrderRateLimit <= 0 {
		c.Trading.OrderRateLimit = 25
	}
	if c.Trading.OrderRateBurst <= 0 {
		c.Trading.OrderRateBurst = 30
	}
	if c.Inventory.DefaultTargetRatio <= 0 {
		c.Inventory.DefaultTargetRatio = 0.5
	}
	if c.Inventory.DefaultThreshold <= 0 {
		c.Inventory.DefaultThreshold = 0.1
	}
	if c.Strategy.AdaptationTolerance <= 0 {
		c.Strategy.AdaptationTolerance = 0.05
	}
	if c.Strategy.BaseLevels <= 0 {
		c.Strategy.BaseLevels = 3
	}
	if c.EventBus.BufferSize <= 0 {
		c.EventBus.BufferSize = 256
	}
	if c.Journal.Backend == "" {
		c.Journal.Backend = "memory"
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateEngineConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateTradingConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateInventoryConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateStrategyConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateRiskLimitsConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateJournalConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

func (c *Config) validateEngineConfig() error {
	if len(c.Engine.TradingPairs) == 0 {
		return ValidationError{
			Field:   "engine.trading_pairs",
			Message: "at least one trading pair must be configured",
		}
	}
	return nil
}

func (c *Config) validateTradingConfig() error {
	if c.Trading.MinOrderSize <= 0 {
		return ValidationError{
			Field:   "trading.min_order_size",
			Value:   c.Trading.MinOrderSize,
			Message: "must be positive",
		}
	}
	if c.Trading.MaxOrderSize < c.Trading.MinOrderSize {
		return ValidationError{
			Field:   "trading.max_order_size",
			Value:   c.Trading.MaxOrderSize,
			Message: "must be >= min_order_size",
		}
	}
	return nil
}

func (c *Config) validateInventoryConfig() error {
	if c.Inventory.DefaultTargetRatio < 0 || c.Inventory.DefaultTargetRatio > 1 {
		return ValidationError{
			Field:   "inventory.default_target_ratio",
			Value:   c.Inventory.DefaultTargetRatio,
			Message: "must be within [0, 1]",
		}
	}
	for pair, ratio := range c.Inventory.PairTargetRatios {
		if ratio < 0 || ratio > 1 {
			return ValidationError{
				Field:   fmt.Sprintf("inventory.pair_target_ratios.%s", pair),
				Value:   ratio,
				Message: "must be within [0, 1]",
			}
		}
	}
	if c.Inventory.MinTradeValue < 0 {
		return ValidationError{
			Field:   "inventory.min_trade_value",
			Value:   c.Inventory.MinTradeValue,
			Message: "must not be negative",
		}
	}
	return nil
}

func (c *Config) validateStrategyConfig() error {
	if c.Strategy.BaseSpread <= 0 {
		return ValidationError{
			Field:   "strategy.base_spread",
			Value:   c.Strategy.BaseSpread,
			Message: "must be positive",
		}
	}
	if c.Strategy.BaseSizePerLevel <= 0 {
		return ValidationError{
			Field:   "strategy.base_size_per_level",
			Value:   c.Strategy.BaseSizePerLevel,
			Message: "must be positive",
		}
	}
	return nil
}

func (c *Config) validateRiskLimitsConfig() error {
	if c.RiskLimits.MaxPositionSize <= 0 {
		return ValidationError{
			Field:   "risk_limits.max_position_size",
			Value:   c.RiskLimits.MaxPositionSize,
			Message: "must be positive",
		}
	}
	if c.RiskLimits.MaxDailyLoss <= 0 {
		return ValidationError{
			Field:   "risk_limits.max_daily_loss",
			Value:   c.RiskLimits.MaxDailyLoss,
			Message: "must be positive",
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateJournalConfig() error {
	if c.Journal.Backend != "memory" && c.Journal.Backend != "sqlite" {
		return ValidationError{
			Field:   "journal.backend",
			Value:   c.Journal.Backend,
			Message: "must be 'memory' or 'sqlite'",
		}
	}
	if c.Journal.Backend == "sqlite" && c.Journal.SQLitePath == "" {
		return ValidationError{
			Field:   "journal.sqlite_path",
			Message: "required when backend is sqlite",
		}
	}
	return nil
}

// MonitoringInterval returns the tick interval as a duration
func (c *Config) MonitoringInterval() time.Duration {
	return time.Duration(c.Engine.MonitoringInterval) * time.Second
}

// ErrorRecoveryDelay returns the post-failure delay as a duration
func (c *Config) ErrorRecoveryDelay() time.Duration {
	return time.Duration(c.Engine.ErrorRecoveryDelay) * time.Second
}

// ExchangeCallTimeout returns the per-call timeout as a duration
func (c *Config) ExchangeCallTimeout() time.Duration {
	return time.Duration(c.Trading.ExchangeCallTimeout) * time.Second
}

// CancelTimeout returns the per-cancellation timeout as a duration
func (c *Config) CancelTimeout() time.Duration {
	return time.Duration(c.Trading.CancelTimeout) * time.Second
}

// RebalanceThreshold returns the per-pair threshold with the default fallback
func (c *Config) RebalanceThreshold(pair string) decimal.Decimal {
	if t, ok := c.Inventory.PairThresholds[pair]; ok {
		return decimal.NewFromFloat(t)
	}
	return decimal.NewFromFloat(c.Inventory.DefaultThreshold)
}

// TargetRatio returns the per-pair target ratio with the default fallback
func (c *Config) TargetRatio(pair string) decimal.Decimal {
	if r, ok := c.Inventory.PairTargetRatios[pair]; ok {
		return decimal.NewFromFloat(r)
	}
	return decimal.NewFromFloat(c.Inventory.DefaultTargetRatio)
}

// AdaptationTolerance returns the per-pair tolerance with the global fallback
func (c *Config) AdaptationTolerance(pair string) decimal.Decimal {
	if t, ok := c.Strategy.PairTolerances[pair]; ok {
		return decimal.NewFromFloat(t)
	}
	return decimal.NewFromFloat(c.Strategy.AdaptationTolerance)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	cfg := &Config{
		Engine: EngineConfig{
			BotID:              "mm-bot-test",
			Exchange:           "mock",
			TradingPairs:       []string{"ETH/USDC", "BTC/USDT"},
			MonitoringInterval: 10,
			ErrorRecoveryDelay: 30,
		},
		Trading: TradingConfig{
			MinOrderSize:        10,
			MaxOrderSize:        10000,
			MaxOrdersPerPair:    20,
			ExchangeCallTimeout: 10,
			CancelTimeout:       5,
			OrderRateLimit:      25,
			OrderRateBurst:      30,
		},
		Inventory: InventoryConfig{
			DefaultThreshold:   0.1,
			DefaultTargetRatio: 0.5,
			MinTradeValue:      50,
		},
		Strategy: StrategyConfig{
			VolatilityHighThreshold: 0.05,
			LiquidityLowThreshold:   1000,
			TrendStrongThreshold:    0.7,
			BaseSpread:              0.002,
			BaseLevels:              3,
			BaseSizePerLevel:        100,
			AdaptationTolerance:     0.05,
			InventorySkewFactor:     0.5,
		},
		RiskLimits: RiskLimitsConfig{
			MaxPositionSize:          50000,
			MaxDailyLoss:             1000,
			InventoryDeviationLimit:  0.25,
			VolatilityPauseThreshold: 0.15,
			PauseCooldown:            300,
		},
		System: SystemConfig{
			LogLevel:     "INFO",
			CancelOnExit: true,
		},
		Journal: JournalConfig{
			Backend: "memory",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: false,
		},
	}
	cfg.applyDefaults()
	return cfg
}
