package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// IExchange is the adapter contract for one connected venue. Implementations
// own all wire-protocol concerns; every call must honor the context deadline.
type IExchange interface {
	GetName() string
	CheckHealth(ctx context.Context) error
	SupportsTradingPair(ctx context.Context, pair string) (bool, error)
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, pair string, orderID string) error
	GetOrder(ctx context.Context, pair string, orderID string) (*Order, error)
	GetMarketData(ctx context.Context, pair string) (*MarketData, error)
}

// IWallet provides asset balance queries for the inventory manager
type IWallet interface {
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}

// IEventBus is the fire-and-forget publish channel for lifecycle and
// operational events. Publish never blocks the caller and never returns an
// error to trading code paths.
type IEventBus interface {
	Publish(ctx context.Context, event Event)
}

// IStrategyEngine selects and adapts quoting strategies for a pair
type IStrategyEngine interface {
	SelectStrategy(pair string, analysis *MarketAnalysis) (*Strategy, error)
	ShouldAdapt(current *Strategy, analysis *MarketAnalysis) bool
	AdaptToConditions(current *Strategy, analysis *MarketAnalysis) (*Strategy, error)
	ComputeTargetOrders(positionID string, strategy *Strategy, market *MarketData, inventory *InventoryState) []*PlaceOrderRequest
}

// IInventoryManager tracks holdings across all pairs and produces rebalancing
// trade lists. It is the single authoritative writer of InventoryState.
type IInventoryManager interface {
	Assess(ctx context.Context, pair string, market *MarketData) (*InventoryState, error)
	GetState(pair string) (*InventoryState, bool)
	NeedsRebalancing() bool
	CalculateRebalancingTrades() []*RebalancingTrade
	ApplyConfirmedTrade(ctx context.Context, trade *RebalancingTrade, executionPrice decimal.Decimal) error
}

// RiskSnapshot is the input to one risk evaluation
type RiskSnapshot struct {
	PositionExposure map[string]decimal.Decimal
	DailyLoss        decimal.Decimal
	MaxInventoryDev  decimal.Decimal
	MaxVolatility    decimal.Decimal
}

// IRiskMonitor evaluates aggregate exposure, loss, and volatility and reports
// the first violated condition in fixed priority order
type IRiskMonitor interface {
	StartupClearance() error
	Evaluate(snapshot *RiskSnapshot) *RiskStatus
	RecordTrade(pnl decimal.Decimal)
	IsPaused() bool
	Pause(reason string)
	Resume()
}

// BatchResult summarizes one best-effort batch order operation
type BatchResult struct {
	Placed  []*Order
	Dropped int
	Failed  int
}

// IOrderCoordinator turns target order parameters into concrete exchange
// operations and maintains each position's open-order set
type IOrderCoordinator interface {
	PlaceOrders(ctx context.Context, position *LiquidityPosition, requests []*PlaceOrderRequest) (*BatchResult, error)
	AdjustOrders(ctx context.Context, position *LiquidityPosition, requests []*PlaceOrderRequest) (*BatchResult, error)
	ReplaceFilledOrders(ctx context.Context, position *LiquidityPosition, strategy *Strategy, market *MarketData) (*BatchResult, error)
	CancelAllOrders(ctx context.Context, position *LiquidityPosition) int
}

// ILogger is the structured logging contract shared by all components
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
