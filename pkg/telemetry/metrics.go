package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOrdersPlacedTotal    = "mm_engine_orders_placed_total"
	MetricOrdersFilledTotal    = "mm_engine_orders_filled_total"
	MetricOrdersCancelledTotal = "mm_engine_orders_cancelled_total"
	MetricOrdersDroppedTotal   = "mm_engine_orders_dropped_total"
	MetricRebalanceTradesTotal = "mm_engine_rebalance_trades_total"
	MetricRiskEventsTotal      = "mm_engine_risk_events_total"
	MetricStrategyChangesTotal = "mm_engine_strategy_changes_total"
	MetricTickDuration         = "mm_engine_tick_duration_ms"
	MetricActivePositions      = "mm_engine_active_positions"
	MetricTradingPaused        = "mm_engine_trading_paused"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	OrdersPlacedTotal    metric.Int64Counter
	OrdersFilledTotal    metric.Int64Counter
	OrdersCancelledTotal metric.Int64Counter
	OrdersDroppedTotal   metric.Int64Counter
	RebalanceTrades      metric.Int64Counter
	RiskEvents           metric.Int64Counter
	StrategyChanges      metric.Int64Counter
	TickDuration         metric.Float64Histogram
	ActivePositions      metric.Int64ObservableGauge
	TradingPaused        metric.Int64ObservableGauge

	// State for observable gauges
	mu              sync.RWMutex
	activePositions int64
	tradingPaused   int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
		// Instruments are initialized in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders placed"))
	if err != nil {
		return err
	}

	m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal, metric.WithDescription("Total orders observed filled"))
	if err != nil {
		return err
	}

	m.OrdersCancelledTotal, err = meter.Int64Counter(MetricOrdersCancelledTotal, metric.WithDescription("Total orders cancelled"))
	if err != nil {
		return err
	}

	m.OrdersDroppedTotal, err = meter.Int64Counter(MetricOrdersDroppedTotal, metric.WithDescription("Orders dropped by parameter validation"))
	if err != nil {
		return err
	}

	m.RebalanceTrades, err = meter.Int64Counter(MetricRebalanceTradesTotal, metric.WithDescription("Total inventory rebalancing trades executed"))
	if err != nil {
		return err
	}

	m.RiskEvents, err = meter.Int64Counter(MetricRiskEventsTotal, metric.WithDescription("Risk events handled, by type"))
	if err != nil {
		return err
	}

	m.StrategyChanges, err = meter.Int64Counter(MetricStrategyChangesTotal, metric.WithDescription("Strategy adaptations applied"))
	if err != nil {
		return err
	}

	m.TickDuration, err = meter.Float64Histogram(MetricTickDuration, metric.WithDescription("Duration of one monitoring loop iteration"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.ActivePositions, err = meter.Int64ObservableGauge(MetricActivePositions, metric.WithDescription("Liquidity positions currently active"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.activePositions)
			return nil
		}))
	if err != nil {
		return err
	}

	m.TradingPaused, err = meter.Int64ObservableGauge(MetricTradingPaused, metric.WithDescription("1 when trading is paused by risk policy"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.tradingPaused)
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// SetActivePositions records the active position count for the gauge
func (m *MetricsHolder) SetActivePositions(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activePositions = int64(count)
}

// SetTradingPaused records the paused flag for the gauge
func (m *MetricsHolder) SetTradingPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if paused {
		m.tradingPaused = 1
	} else {
		m.tradingPaused = 0
	}
}

// OrdersPlacedAdd increments the placed-order counter
func (m *MetricsHolder) OrdersPlacedAdd(ctx context.Context, n int) {
	if m.OrdersPlacedTotal == nil || n <= 0 {
		return
	}
	m.OrdersPlacedTotal.Add(ctx, int64(n))
}

// OrdersFilledAdd increments the filled-order counter
func (m *MetricsHolder) OrdersFilledAdd(ctx context.Context, n int) {
	if m.OrdersFilledTotal == nil || n <= 0 {
		return
	}
	m.OrdersFilledTotal.Add(ctx, int64(n))
}

// OrdersCancelledAdd increments the cancelled-order counter
func (m *MetricsHolder) OrdersCancelledAdd(ctx context.Context, n int) {
	if m.OrdersCancelledTotal == nil || n <= 0 {
		return
	}
	m.OrdersCancelledTotal.Add(ctx, int64(n))
}

// OrdersDroppedAdd increments the validation-dropped counter
func (m *MetricsHolder) OrdersDroppedAdd(ctx context.Context, n int) {
	if m.OrdersDroppedTotal == nil || n <= 0 {
		return
	}
	m.OrdersDroppedTotal.Add(ctx, int64(n))
}

// RebalanceTradesAdd increments the rebalance-trade counter
func (m *MetricsHolder) RebalanceTradesAdd(ctx context.Context, n int) {
	if m.RebalanceTrades == nil || n <= 0 {
		return
	}
	m.RebalanceTrades.Add(ctx, int64(n))
}

// StrategyChangesAdd increments the strategy-adaptation counter
func (m *MetricsHolder) StrategyChangesAdd(ctx context.Context, n int) {
	if m.StrategyChanges == nil || n <= 0 {
		return
	}
	m.StrategyChanges.Add(ctx, int64(n))
}

// RecordTickDuration records one monitoring loop iteration's duration
func (m *MetricsHolder) RecordTickDuration(ctx context.Context, ms float64) {
	if m.TickDuration == nil {
		return
	}
	m.TickDuration.Record(ctx, ms)
}

// AddRiskEvent increments the risk event counter for one event type
func (m *MetricsHolder) AddRiskEvent(ctx context.Context, eventType, action string) {
	if m.RiskEvents == nil {
		return
	}
	m.RiskEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("action", action),
	))
}
