// Package core defines the domain types and component interfaces for the
// market making engine
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order or trade
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is the execution style requested from the exchange
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus models the order lifecycle. Transitions are monotonic:
// PENDING -> OPEN -> {FILLED | CANCELLED | FAILED}, terminal states never
// revert.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusOpen
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusFailed
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusOpen:
		return "OPEN"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the status admits no further transitions
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusFailed
}

// CanTransitionTo reports whether moving from s to next respects the order
// state machine
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case OrderStatusPending:
		return next == OrderStatusOpen || next == OrderStatusFailed || next == OrderStatusCancelled
	case OrderStatusOpen:
		return next.IsTerminal()
	}
	return false
}

// PlaceOrderRequest is the exchange-facing intent to open an order
type PlaceOrderRequest struct {
	Pair          string
	Side          OrderSide
	Type          OrderType
	Price         decimal.Decimal
	Size          decimal.Decimal
	PositionID    string
	ClientOrderID string
}

// Order is an exchange-facing order. Price and size are immutable once
// submitted; adjustment is always cancel-then-replace.
type Order struct {
	ID            string
	ClientOrderID string
	PositionID    string
	Pair          string
	Side          OrderSide
	Type          OrderType
	Price         decimal.Decimal
	Size          decimal.Decimal
	FilledSize    decimal.Decimal
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transition advances the order status, rejecting regressions from terminal
// states
func (o *Order) Transition(next OrderStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal order transition %s -> %s for order %s", o.Status, next, o.ID)
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	return nil
}

// MarketData is a point-in-time market snapshot for one pair
type MarketData struct {
	Pair       string
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	Depth      decimal.Decimal
	Volatility decimal.Decimal
	Timestamp  time.Time
}

// Mid returns the bid/ask midpoint
func (m *MarketData) Mid() decimal.Decimal {
	return m.Bid.Add(m.Ask).Div(decimal.NewFromInt(2))
}

// MarketAnalysis is the classified market character used for strategy
// selection
type MarketAnalysis struct {
	Pair           string
	Volatility     decimal.Decimal
	LiquidityDepth decimal.Decimal
	TrendStrength  decimal.Decimal
}

// StrategyType is a closed set of quoting policy variants
type StrategyType string

const (
	StrategyGridTrading        StrategyType = "GRID_TRADING"
	StrategyInventoryBased     StrategyType = "INVENTORY_BASED"
	StrategyTrendFollowing     StrategyType = "TREND_FOLLOWING"
	StrategyVolatilityAdaptive StrategyType = "VOLATILITY_ADAPTIVE"
)

// Strategy holds a policy variant and its numeric parameters. Strategies are
// immutable; adaptation replaces the whole value so readers never observe a
// partially-applied update.
type Strategy struct {
	Type         StrategyType
	Spread       decimal.Decimal
	Levels       int
	SizePerLevel decimal.Decimal
	CreatedAt    time.Time
}

// Validate checks the strategy invariants against the configured size bounds
func (s *Strategy) Validate(minSize, maxSize decimal.Decimal) error {
	if !s.Spread.IsPositive() {
		return fmt.Errorf("strategy spread must be positive, got %s", s.Spread)
	}
	if s.Levels <= 0 {
		return fmt.Errorf("strategy level count must be positive, got %d", s.Levels)
	}
	if s.SizePerLevel.LessThan(minSize) || s.SizePerLevel.GreaterThan(maxSize) {
		return fmt.Errorf("strategy size per level %s outside bounds [%s, %s]",
			s.SizePerLevel, minSize, maxSize)
	}
	return nil
}

// InventoryState is the per-pair holdings snapshot. CurrentRatio is the base
// asset's share of total position value, in [0, 1]. Written only by the
// inventory manager after confirmed execution.
type InventoryState struct {
	Pair               string
	BaseBalance        decimal.Decimal
	QuoteBalance       decimal.Decimal
	BaseValue          decimal.Decimal
	TotalValue         decimal.Decimal
	CurrentRatio       decimal.Decimal
	TargetRatio        decimal.Decimal
	RebalanceThreshold decimal.Decimal
}

// Deviation returns |current - target|
func (s *InventoryState) Deviation() decimal.Decimal {
	return s.CurrentRatio.Sub(s.TargetRatio).Abs()
}

// RiskEventType identifies the violated risk condition
type RiskEventType string

const (
	RiskEventNone                  RiskEventType = "NONE"
	RiskEventPositionLimitExceeded RiskEventType = "POSITION_LIMIT_EXCEEDED"
	RiskEventDailyLossLimit        RiskEventType = "DAILY_LOSS_LIMIT"
	RiskEventInventoryImbalance    RiskEventType = "INVENTORY_IMBALANCE"
	RiskEventVolatilitySpike       RiskEventType = "VOLATILITY_SPIKE"
)

// RiskAction is the remedial action a risk event demands
type RiskAction string

const (
	RiskActionNone                       RiskAction = "NONE"
	RiskActionReducePositionSizes        RiskAction = "REDUCE_POSITION_SIZES"
	RiskActionPauseTrading               RiskAction = "PAUSE_TRADING"
	RiskActionForceRebalance             RiskAction = "FORCE_REBALANCE"
	RiskActionAdjustSpreadsForVolatility RiskAction = "ADJUST_SPREADS_FOR_VOLATILITY"
)

// RiskStatus is a derived judgment produced fresh each monitoring tick. It is
// never persisted as authoritative state.
type RiskStatus struct {
	Event    RiskEventType
	Action   RiskAction
	Severity string
	Detail   string
}

// ActionRequired reports whether the status demands a remedial action
func (r *RiskStatus) ActionRequired() bool {
	return r != nil && r.Action != RiskActionNone
}

// RebalancingTrade is produced by the inventory manager, consumed once by the
// orchestrator, then discarded
type RebalancingTrade struct {
	Pair   string
	Side   OrderSide
	Size   decimal.Decimal
	Reason string
}

// Exposure is the open order size aggregated per side
type Exposure struct {
	BuySize  decimal.Decimal
	SellSize decimal.Decimal
}

// Gross returns the total open size across both sides
func (e Exposure) Gross() decimal.Decimal {
	return e.BuySize.Add(e.SellSize)
}

// PerformanceSummary aggregates activity over an engine run
type PerformanceSummary struct {
	TradesExecuted int
	OrdersPlaced   int
	Volume         decimal.Decimal
	RealizedPnL    decimal.Decimal
	StartedAt      time.Time
	StoppedAt      time.Time
}

// ValidTradingPair reports whether a pair string has the BASE/QUOTE form with
// non-empty uppercase alphanumeric legs
func ValidTradingPair(pair string) bool {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 {
		return false
	}
	for _, leg := range parts {
		if leg == "" {
			return false
		}
		for _, r := range leg {
			if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return false
			}
		}
	}
	return true
}

// SplitTradingPair returns the base and quote assets of a valid pair
func SplitTradingPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 {
		return pair, ""
	}
	return parts[0], parts[1]
}
