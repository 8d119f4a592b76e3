// Package orchestrator owns the engine lifecycle: startup, the periodic
// monitoring loop, and shutdown
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mm_engine/internal/config"
	"mm_engine/internal/core"
	"mm_engine/internal/journal"
	"mm_engine/pkg/apperrors"
	"mm_engine/pkg/concurrency"
	"mm_engine/pkg/retry"
	"mm_engine/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// Orchestrator drives the market making engine. It owns the active position
// set; collaborators receive positions by reference under its single-writer
// discipline.
type Orchestrator struct {
	cfg         *config.Config
	exchange    core.IExchange
	strategy    core.IStrategyEngine
	inventory   core.IInventoryManager
	risk        core.IRiskMonitor
	coordinator core.IOrderCoordinator
	bus         core.IEventBus
	journal     journal.Store
	pool        *concurrency.WorkerPool
	logger      core.ILogger

	running   int32
	stopCh    chan struct{}
	loopDone  chan struct{}
	startedAt time.Time

	// written only by the monitoring loop
	lastRiskEvent core.RiskEventType

	mu        sync.RWMutex
	positions map[string]*core.LiquidityPosition
	markets   map[string]*core.MarketData
	trends    map[string]*trendTracker
}

// New creates an orchestrator wiring all engine components together
func New(
	cfg *config.Config,
	exchange core.IExchange,
	strategyEngine core.IStrategyEngine,
	inventoryManager core.IInventoryManager,
	riskMonitor core.IRiskMonitor,
	coordinator core.IOrderCoordinator,
	bus core.IEventBus,
	store journal.Store,
	pool *concurrency.WorkerPool,
	logger core.ILogger,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		exchange:    exchange,
		strategy:    strategyEngine,
		inventory:   inventoryManager,
		risk:        riskMonitor,
		coordinator: coordinator,
		bus:         bus,
		journal:     store,
		pool:        pool,
		logger:      logger.WithField("component", "orchestrator"),
		positions:   make(map[string]*core.LiquidityPosition),
		markets:     make(map[string]*core.MarketData),
		trends:      make(map[string]*trendTracker),
	}
}

// Start validates the requested pairs, opens one liquidity position per valid
// pair, and spawns the monitoring loop. Startup is all-or-nothing across the
// valid pair set: any per-pair failure unwinds everything already created.
// It returns the number of active pairs.
func (o *Orchestrator) Start(ctx context.Context, tradingPairs []string) (int, error) {
	if !atomic.CompareAndSwapInt32(&o.running, 0, 1) {
		return 0, apperrors.ErrEngineAlreadyRunning
	}

	validPairs, err := o.validatePairs(ctx, tradingPairs)
	if err != nil {
		atomic.StoreInt32(&o.running, 0)
		return 0, err
	}

	if err := o.risk.StartupClearance(); err != nil {
		atomic.StoreInt32(&o.running, 0)
		return 0, err
	}

	if err := o.exchange.CheckHealth(ctx); err != nil {
		atomic.StoreInt32(&o.running, 0)
		return 0, fmt.Errorf("exchange health check failed: %w", err)
	}
	o.bus.Publish(ctx, core.NewEvent(core.EventExchangeConnected, o.cfg.Engine.BotID, map[string]interface{}{
		"exchange_id": o.exchange.GetName(),
	}))

	for _, pair := range validPairs {
		if err := o.openPosition(ctx, pair); err != nil {
			o.logger.Error("Failed to start pair, unwinding startup",
				"pair", pair, "error", err.Error())
			o.unwindStartup(ctx)
			atomic.StoreInt32(&o.running, 0)
			return 0, fmt.Errorf("startup failed for pair %s: %w", pair, err)
		}
	}

	o.startedAt = time.Now()
	o.stopCh = make(chan struct{})
	o.loopDone = make(chan struct{})

	telemetry.GetGlobalMetrics().SetActivePositions(len(validPairs))
	o.bus.Publish(ctx, core.NewEvent(core.EventMarketMakingStarted, o.cfg.Engine.BotID, map[string]interface{}{
		"pairs": validPairs,
	}))
	o.logger.Info("Market making started", "pairs", validPairs)

	go o.monitoringLoop()

	return len(validPairs), nil
}

// validatePairs filters the requested pairs by format and exchange support.
// Rejected pairs are logged with a warning; the call fails only when no pair
// survives.
func (o *Orchestrator) validatePairs(ctx context.Context, tradingPairs []string) ([]string, error) {
	var valid []string
	for _, pair := range tradingPairs {
		if !core.ValidTradingPair(pair) {
			o.logger.Warn("Rejecting trading pair with invalid format", "pair", pair)
			continue
		}
		supported, err := o.exchange.SupportsTradingPair(ctx, pair)
		if err != nil {
			o.logger.Warn("Failed to query pair support, rejecting pair",
				"pair", pair, "error", err.Error())
			continue
		}
		if !supported {
			o.logger.Warn("Rejecting pair unsupported by exchange",
				"pair", pair, "exchange", o.exchange.GetName())
			continue
		}
		valid = append(valid, pair)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: none of %d requested pairs are tradeable",
			apperrors.ErrInvalidTradingPairs, len(tradingPairs))
	}
	return valid, nil
}

// openPosition brings one pair from nothing to an ACTIVE quoting position
func (o *Orchestrator) openPosition(ctx context.Context, pair string) error {
	market, err := o.fetchMarketData(ctx, pair)
	if err != nil {
		return fmt.Errorf("failed to get market data: %w", err)
	}

	inv, err := o.inventory.Assess(ctx, pair, market)
	if err != nil {
		return fmt.Errorf("failed to assess inventory: %w", err)
	}

	strategy, err := o.strategy.SelectStrategy(pair, o.analyze(pair, market))
	if err != nil {
		return err
	}

	position := core.NewLiquidityPosition(pair, strategy)

	o.mu.Lock()
	o.positions[pair] = position
	o.mu.Unlock()

	requests := o.strategy.ComputeTargetOrders(position.ID, strategy, market, inv)
	result, err := o.coordinator.PlaceOrders(ctx, position, requests)
	if err != nil {
		return err
	}

	position.SetState(core.PositionStateActive)
	o.bus.Publish(ctx, core.NewEvent(core.EventOrdersPlaced, o.cfg.Engine.BotID, map[string]interface{}{
		"position_id": position.ID,
		"order_count": len(result.Placed),
	}))
	o.logger.Info("Position active",
		"pair", pair,
		"strategy", string(strategy.Type),
		"orders", len(result.Placed))
	return nil
}

// unwindStartup cancels and discards every position created so far
func (o *Orchestrator) unwindStartup(ctx context.Context) {
	o.mu.Lock()
	positions := o.positions
	o.positions = make(map[string]*core.LiquidityPosition)
	o.mu.Unlock()

	for _, position := range positions {
		o.coordinator.CancelAllOrders(ctx, position)
		position.SetState(core.PositionStateStopped)
	}
}

// Stop halts the monitoring loop and cancels all open orders across all
// positions with best-effort semantics. It never fails; the return value
// reports whether every cancellation succeeded.
func (o *Orchestrator) Stop(ctx context.Context) bool {
	if !atomic.CompareAndSwapInt32(&o.running, 1, 0) {
		o.logger.Warn("Stop called while not running")
		return true
	}

	close(o.stopCh)
	select {
	case <-o.loopDone:
	case <-time.After(o.cfg.MonitoringInterval() + time.Second):
		o.logger.Warn("Monitoring loop did not confirm exit in time")
	}

	o.mu.Lock()
	positions := o.positions
	o.positions = make(map[string]*core.LiquidityPosition)
	o.mu.Unlock()

	var unclean int32
	var wg sync.WaitGroup
	for _, position := range positions {
		wg.Add(1)
		go func(p *core.LiquidityPosition) {
			defer wg.Done()
			openBefore := p.OpenOrderCount()
			cancelled := o.coordinator.CancelAllOrders(ctx, p)
			if cancelled < openBefore {
				o.logger.Warn("Some cancellations failed during shutdown",
					"pair", p.Pair, "open", openBefore, "cancelled", cancelled)
				atomic.StoreInt32(&unclean, 1)
			}
			p.SetState(core.PositionStateStopped)
		}(position)
	}
	wg.Wait()

	summary := o.finalSummary(ctx)
	finalInventory := make(map[string]string)
	for pair := range positions {
		if state, ok := o.inventory.GetState(pair); ok {
			finalInventory[pair] = state.CurrentRatio.StringFixed(4)
		}
	}

	telemetry.GetGlobalMetrics().SetActivePositions(0)
	o.bus.Publish(ctx, core.NewEvent(core.EventMarketMakingStopped, o.cfg.Engine.BotID, map[string]interface{}{
		"final_inventory":     finalInventory,
		"performance_summary": summary,
	}))
	o.logger.Info("Market making stopped",
		"trades_executed", summary.TradesExecuted,
		"realized_pnl", summary.RealizedPnL.StringFixed(2))
	return atomic.LoadInt32(&unclean) == 0
}

func (o *Orchestrator) finalSummary(ctx context.Context) *core.PerformanceSummary {
	records, err := o.journal.Records(ctx)
	if err != nil {
		o.logger.Error("Failed to read trade journal for summary", "error", err.Error())
		return &core.PerformanceSummary{StartedAt: o.startedAt, StoppedAt: time.Now()}
	}
	return journal.Summarize(records, o.startedAt)
}

// IsRunning reports whether the engine is started
func (o *Orchestrator) IsRunning() bool {
	return atomic.LoadInt32(&o.running) == 1
}

// Positions returns a snapshot of the active position set
func (o *Orchestrator) Positions() []*core.LiquidityPosition {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*core.LiquidityPosition, 0, len(o.positions))
	for _, p := range o.positions {
		out = append(out, p)
	}
	return out
}

// monitoringLoop runs one tick per configured interval until stopped. A
// failed tick is logged and followed by the error recovery delay; the loop
// never exits on its own.
func (o *Orchestrator) monitoringLoop() {
	defer close(o.loopDone)

	ticker := time.NewTicker(o.cfg.MonitoringInterval())
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			started := time.Now()
			if err := o.runTick(context.Background()); err != nil {
				o.logger.Error("Monitoring tick failed, backing off",
					"error", err.Error(),
					"recovery_delay", o.cfg.ErrorRecoveryDelay().String())
				select {
				case <-o.stopCh:
					return
				case <-time.After(o.cfg.ErrorRecoveryDelay()):
				}
			}
			telemetry.GetGlobalMetrics().RecordTickDuration(context.Background(),
				float64(time.Since(started).Milliseconds()))
		}
	}
}

// runTick performs one monitoring iteration: refresh market data, evaluate
// risk, adapt strategies, reconcile fills, and rebalance inventory
func (o *Orchestrator) runTick(ctx context.Context) error {
	positions := o.Positions()
	if len(positions) == 0 {
		return nil
	}

	o.refreshMarkets(ctx, positions)

	status := o.risk.Evaluate(o.riskSnapshot(positions))
	if status.ActionRequired() {
		o.dispatchRiskAction(ctx, status, positions)
	} else {
		o.lastRiskEvent = core.RiskEventNone
	}

	if o.risk.IsPaused() {
		// Resume only once the triggering condition has cleared
		if !status.ActionRequired() {
			o.risk.Resume()
		}
		if o.risk.IsPaused() {
			o.logger.Debug("Trading paused, skipping quoting work")
			return nil
		}
		o.resumePositions(ctx, positions)
	}

	o.reconcilePositions(ctx, positions)

	if o.inventory.NeedsRebalancing() {
		o.executeRebalancing(ctx)
	}

	return nil
}

// refreshMarkets fetches market data and inventory for all pairs in parallel
func (o *Orchestrator) refreshMarkets(ctx context.Context, positions []*core.LiquidityPosition) {
	tasks := make([]func(), len(positions))
	for i, position := range positions {
		position := position
		tasks[i] = func() {
			market, err := o.fetchMarketData(ctx, position.Pair)
			if err != nil {
				o.logger.Warn("Failed to refresh market data",
					"pair", position.Pair, "error", err.Error())
				return
			}
			if _, err := o.inventory.Assess(ctx, position.Pair, market); err != nil {
				o.logger.Warn("Failed to refresh inventory",
					"pair", position.Pair, "error", err.Error())
			}
		}
	}
	o.pool.SubmitAll(tasks)
}

// fetchMarketData queries the exchange with retries on transient failures
// and caches the result for the tick
func (o *Orchestrator) fetchMarketData(ctx context.Context, pair string) (*core.MarketData, error) {
	var market *core.MarketData
	err := retry.Do(ctx, retry.DefaultPolicy, apperrors.IsTransient, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.ExchangeCallTimeout())
		defer cancel()
		var err error
		market, err = o.exchange.GetMarketData(callCtx, pair)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.markets[pair] = market
	tracker, ok := o.trends[pair]
	if !ok {
		tracker = &trendTracker{}
		o.trends[pair] = tracker
	}
	tracker.observe(market.Mid())
	o.mu.Unlock()

	return market, nil
}

// analyze builds the market classification input for the strategy engine
func (o *Orchestrator) analyze(pair string, market *core.MarketData) *core.MarketAnalysis {
	o.mu.RLock()
	tracker := o.trends[pair]
	o.mu.RUnlock()

	trend := decimal.Zero
	if tracker != nil {
		trend = tracker.strength()
	}
	return &core.MarketAnalysis{
		Pair:           pair,
		Volatility:     market.Volatility,
		LiquidityDepth: market.Depth,
		TrendStrength:  trend,
	}
}

func (o *Orchestrator) cachedMarket(pair string) (*core.MarketData, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	market, ok := o.markets[pair]
	return market, ok
}

// riskSnapshot aggregates the tick's exposure, loss, and volatility inputs
func (o *Orchestrator) riskSnapshot(positions []*core.LiquidityPosition) *core.RiskSnapshot {
	snapshot := &core.RiskSnapshot{
		PositionExposure: make(map[string]decimal.Decimal, len(positions)),
	}

	for _, position := range positions {
		snapshot.PositionExposure[position.Pair] = position.OpenExposure().Gross()

		if state, ok := o.inventory.GetState(position.Pair); ok {
			if dev := state.Deviation(); dev.GreaterThan(snapshot.MaxInventoryDev) {
				snapshot.MaxInventoryDev = dev
			}
		}
		if market, ok := o.cachedMarket(position.Pair); ok {
			if market.Volatility.GreaterThan(snapshot.MaxVolatility) {
				snapshot.MaxVolatility = market.Volatility
			}
		}
	}

	if recorder, ok := o.risk.(interface{ DailyLoss() decimal.Decimal }); ok {
		snapshot.DailyLoss = recorder.DailyLoss()
	}
	return snapshot
}

// dispatchRiskAction applies the remedial action demanded by a risk status.
// Every action is idempotent; repeating one changes nothing.
func (o *Orchestrator) dispatchRiskAction(ctx context.Context, status *core.RiskStatus, positions []*core.LiquidityPosition) {
	switch status.Action {
	case core.RiskActionReducePositionSizes:
		o.reducePositionSizes(ctx, positions)
	case core.RiskActionPauseTrading:
		o.pauseTrading(ctx, status, positions)
	case core.RiskActionForceRebalance:
		o.executeRebalancing(ctx)
	case core.RiskActionAdjustSpreadsForVolatility:
		o.adjustForVolatility(ctx, positions)
	}

	// A violation persisting across ticks is reported once
	if status.Event == o.lastRiskEvent {
		return
	}
	o.lastRiskEvent = status.Event

	telemetry.GetGlobalMetrics().AddRiskEvent(ctx, string(status.Event), string(status.Action))
	o.bus.Publish(ctx, core.NewEvent(core.EventRiskEventHandled, o.cfg.Engine.BotID, map[string]interface{}{
		"event_type":   string(status.Event),
		"action_taken": string(status.Action),
	}))
}

// reducePositionSizes halves each position's size per level, bounded below
// by the minimum order size, and re-quotes
func (o *Orchestrator) reducePositionSizes(ctx context.Context, positions []*core.LiquidityPosition) {
	minSize := decimal.NewFromFloat(o.cfg.Trading.MinOrderSize)
	for _, position := range positions {
		current := position.Strategy()
		reduced := current.SizePerLevel.Div(decimal.NewFromInt(2))
		if reduced.LessThan(minSize) {
			reduced = minSize
		}
		if reduced.Equal(current.SizePerLevel) {
			continue
		}
		next := *current
		next.SizePerLevel = reduced
		next.CreatedAt = time.Now()
		o.applyStrategy(ctx, position, &next)
	}
}

// pauseTrading halts quoting and cancels all open orders
func (o *Orchestrator) pauseTrading(ctx context.Context, status *core.RiskStatus, positions []*core.LiquidityPosition) {
	if o.risk.IsPaused() {
		return
	}
	o.risk.Pause(status.Detail)
	for _, position := range positions {
		o.coordinator.CancelAllOrders(ctx, position)
		position.SetState(core.PositionStatePaused)
	}
}

// resumePositions re-quotes positions that were paused by a risk halt
func (o *Orchestrator) resumePositions(ctx context.Context, positions []*core.LiquidityPosition) {
	for _, position := range positions {
		if position.State() != core.PositionStatePaused {
			continue
		}
		market, ok := o.cachedMarket(position.Pair)
		if !ok {
			continue
		}
		inv, _ := o.inventory.GetState(position.Pair)
		strategy := position.Strategy()

		requests := o.strategy.ComputeTargetOrders(position.ID, strategy, market, inv)
		result, err := o.coordinator.PlaceOrders(ctx, position, requests)
		if err != nil {
			o.logger.Error("Failed to re-quote after pause",
				"pair", position.Pair, "error", err.Error())
			continue
		}
		position.SetState(core.PositionStateActive)
		o.bus.Publish(ctx, core.NewEvent(core.EventOrdersPlaced, o.cfg.Engine.BotID, map[string]interface{}{
			"position_id": position.ID,
			"order_count": len(result.Placed),
		}))
		o.logger.Info("Position resumed after pause", "pair", position.Pair)
	}
}

// adjustForVolatility re-selects strategies so spreads reflect the current
// volatility regime
func (o *Orchestrator) adjustForVolatility(ctx context.Context, positions []*core.LiquidityPosition) {
	for _, position := range positions {
		market, ok := o.cachedMarket(position.Pair)
		if !ok {
			continue
		}
		current := position.Strategy()
		analysis := o.analyze(position.Pair, market)
		if !o.strategy.ShouldAdapt(current, analysis) {
			continue
		}
		next, err := o.strategy.AdaptToConditions(current, analysis)
		if err != nil {
			o.logger.Error("Failed to adapt strategy for volatility",
				"pair", position.Pair, "error", err.Error())
			continue
		}
		o.applyStrategy(ctx, position, next)
	}
}

// applyStrategy swaps in a new strategy and re-quotes the position under the
// reconciliation claim
func (o *Orchestrator) applyStrategy(ctx context.Context, position *core.LiquidityPosition, next *core.Strategy) {
	if !position.TryBeginReconcile() {
		o.logger.Debug("Reconciliation in flight, skipping strategy apply",
			"pair", position.Pair)
		return
	}
	defer position.EndReconcile()

	market, ok := o.cachedMarket(position.Pair)
	if !ok {
		return
	}
	inv, _ := o.inventory.GetState(position.Pair)

	position.ReplaceStrategy(next)
	requests := o.strategy.ComputeTargetOrders(position.ID, next, market, inv)
	result, err := o.coordinator.AdjustOrders(ctx, position, requests)
	if err != nil {
		o.logger.Error("Failed to adjust orders",
			"pair", position.Pair, "error", err.Error())
		return
	}

	telemetry.GetGlobalMetrics().StrategyChangesAdd(ctx, 1)
	o.bus.Publish(ctx, core.NewEvent(core.EventOrdersAdjusted, o.cfg.Engine.BotID, map[string]interface{}{
		"position_id":     position.ID,
		"new_order_count": len(result.Placed),
	}))
}

// reconcilePositions runs per-position adaptation checks and fill
// replacement in parallel. Each position admits one reconciliation at a
// time; a busy position is skipped until the next tick.
func (o *Orchestrator) reconcilePositions(ctx context.Context, positions []*core.LiquidityPosition) {
	tasks := make([]func(), 0, len(positions))
	for _, position := range positions {
		position := position
		if position.State() != core.PositionStateActive {
			continue
		}
		tasks = append(tasks, func() {
			o.reconcileOne(ctx, position)
		})
	}
	o.pool.SubmitAll(tasks)
}

func (o *Orchestrator) reconcileOne(ctx context.Context, position *core.LiquidityPosition) {
	if !position.TryBeginReconcile() {
		o.logger.Debug("Reconciliation already running, skipping",
			"pair", position.Pair)
		return
	}
	defer position.EndReconcile()

	market, ok := o.cachedMarket(position.Pair)
	if !ok {
		return
	}

	current := position.Strategy()
	analysis := o.analyze(position.Pair, market)

	if o.strategy.ShouldAdapt(current, analysis) {
		next, err := o.strategy.AdaptToConditions(current, analysis)
		if err != nil {
			o.logger.Error("Failed to adapt strategy",
				"pair", position.Pair, "error", err.Error())
			return
		}
		inv, _ := o.inventory.GetState(position.Pair)
		position.ReplaceStrategy(next)

		requests := o.strategy.ComputeTargetOrders(position.ID, next, market, inv)
		result, err := o.coordinator.AdjustOrders(ctx, position, requests)
		if err != nil {
			o.logger.Error("Failed to adjust orders after adaptation",
				"pair", position.Pair, "error", err.Error())
			return
		}

		telemetry.GetGlobalMetrics().StrategyChangesAdd(ctx, 1)
		o.bus.Publish(ctx, core.NewEvent(core.EventOrdersAdjusted, o.cfg.Engine.BotID, map[string]interface{}{
			"position_id":     position.ID,
			"new_order_count": len(result.Placed),
		}))
		return
	}

	if _, err := o.coordinator.ReplaceFilledOrders(ctx, position, current, market); err != nil {
		o.logger.Warn("Failed to replace filled orders",
			"pair", position.Pair, "error", err.Error())
	}
}

// executeRebalancing runs inventory rebalancing trades sequentially per
// pair. A failed trade is logged and skipped; it does not block the rest.
func (o *Orchestrator) executeRebalancing(ctx context.Context) {
	trades := o.inventory.CalculateRebalancingTrades()
	if len(trades) == 0 {
		return
	}

	executed := 0
	for _, trade := range trades {
		if err := o.executeRebalanceTrade(ctx, trade); err != nil {
			o.logger.Error("Failed to execute rebalancing trade",
				"pair", trade.Pair, "side", string(trade.Side), "error", err.Error())
			continue
		}
		executed++
	}

	if executed == 0 {
		return
	}

	telemetry.GetGlobalMetrics().RebalanceTradesAdd(ctx, executed)
	o.bus.Publish(ctx, core.NewEvent(core.EventInventoryRebalanced, o.cfg.Engine.BotID, map[string]interface{}{
		"trades_executed": executed,
	}))
	o.logger.Info("Inventory rebalanced", "trades_executed", executed)
}

// executeRebalanceTrade places one market order and applies the confirmed
// result to inventory state
func (o *Orchestrator) executeRebalanceTrade(ctx context.Context, trade *core.RebalancingTrade) error {
	market, ok := o.cachedMarket(trade.Pair)
	if !ok {
		var err error
		market, err = o.fetchMarketData(ctx, trade.Pair)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInventoryRebalancing, err)
		}
	}
	mid := market.Mid()
	if !mid.IsPositive() {
		return fmt.Errorf("%w: no usable price for %s", apperrors.ErrInventoryRebalancing, trade.Pair)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ExchangeCallTimeout())
	defer cancel()

	order, err := o.exchange.PlaceOrder(callCtx, &core.PlaceOrderRequest{
		Pair:  trade.Pair,
		Side:  trade.Side,
		Type:  core.OrderTypeMarket,
		Price: mid,
		Size:  trade.Size,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInventoryRebalancing, err)
	}

	if err := o.inventory.ApplyConfirmedTrade(ctx, trade, mid); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInventoryRebalancing, err)
	}

	if err := o.journal.Append(ctx, &journal.TradeRecord{
		Kind:       journal.RecordRebalance,
		OrderID:    order.ID,
		Pair:       trade.Pair,
		Side:       trade.Side,
		Price:      mid,
		Size:       trade.Size,
		ExecutedAt: time.Now(),
	}); err != nil {
		o.logger.Error("Failed to journal rebalancing trade",
			"pair", trade.Pair, "error", err.Error())
	}
	return nil
}
