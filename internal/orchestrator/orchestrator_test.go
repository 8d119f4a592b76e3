package orchestrator

import (
	"context"
	"testing"

	"mm_engine/internal/config"
	"mm_engine/internal/core"
	"mm_engine/internal/eventbus"
	"mm_engine/internal/execution"
	"mm_engine/internal/inventory"
	"mm_engine/internal/journal"
	"mm_engine/internal/mock"
	"mm_engine/internal/risk"
	"mm_engine/internal/strategy"
	"mm_engine/pkg/apperrors"
	"mm_engine/pkg/concurrency"
	"mm_engine/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	orchestrator *Orchestrator
	exchange     *mock.Exchange
	risk         *risk.Monitor
	events       <-chan core.Event
}

func newFixture(t *testing.T, cfg *config.Config) *engineFixture {
	t.Helper()
	logger := logging.NopLogger{}

	exchange := mock.NewExchange("mock", "ETH/USDC", "BTC/USDT")
	wallet := mock.NewWallet(map[string]decimal.Decimal{
		"ETH":  decimal.NewFromInt(50),
		"BTC":  decimal.NewFromInt(1),
		"USDC": decimal.NewFromInt(5000),
		"USDT": decimal.NewFromInt(5000),
	})

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:       "test-pool",
		MaxWorkers: 4,
	}, logger)
	t.Cleanup(pool.Stop)

	store := journal.NewMemoryStore()
	bus := eventbus.NewBus(64, logger)
	events := bus.Subscribe()

	inventoryManager := inventory.NewManager(wallet, cfg, logger)
	strategyEngine := strategy.NewEngine(cfg, logger)
	riskMonitor := risk.NewMonitor(cfg, logger)
	coordinator := execution.NewCoordinator(exchange, cfg, pool, store, riskMonitor, logger)

	return &engineFixture{
		orchestrator: New(cfg, exchange, strategyEngine, inventoryManager,
			riskMonitor, coordinator, bus, store, pool, logger),
		exchange: exchange,
		risk:     riskMonitor,
		events:   events,
	}
}

func drainEvents(events <-chan core.Event) []core.Event {
	var out []core.Event
	for {
		select {
		case e := <-events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventOfType(events []core.Event, eventType core.EventType) (core.Event, bool) {
	for _, e := range events {
		if e.Type == eventType {
			return e, true
		}
	}
	return core.Event{}, false
}

// Starting with two valid pairs brings both positions to ACTIVE with open
// order sets and emits MarketMakingStarted listing both
func TestStart_TwoValidPairs(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	defer f.orchestrator.Stop(context.Background())

	active, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC", "BTC/USDT"})
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	positions := f.orchestrator.Positions()
	require.Len(t, positions, 2)
	for _, position := range positions {
		assert.Equal(t, core.PositionStateActive, position.State())
		assert.Greater(t, position.OpenOrderCount(), 0, "pair %s", position.Pair)
	}

	events := drainEvents(f.events)
	started, ok := eventOfType(events, core.EventMarketMakingStarted)
	require.True(t, ok, "MarketMakingStarted must be emitted")
	pairs, _ := started.Fields["pairs"].([]string)
	assert.ElementsMatch(t, []string{"ETH/USDC", "BTC/USDT"}, pairs)

	_, ok = eventOfType(events, core.EventExchangeConnected)
	assert.True(t, ok, "ExchangeConnected must be emitted")
}

// An invalid pair is skipped with a warning; the remaining valid pair still
// starts
func TestStart_SkipsInvalidPair(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	defer f.orchestrator.Stop(context.Background())

	active, err := f.orchestrator.Start(context.Background(), []string{"INVALID", "ETH/USDC"})
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	positions := f.orchestrator.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "ETH/USDC", positions[0].Pair)
}

func TestStart_FailsWhenNoPairValid(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())

	_, err := f.orchestrator.Start(context.Background(), []string{"INVALID", "", "ETHUSDC"})
	require.ErrorIs(t, err, apperrors.ErrInvalidTradingPairs)
	assert.False(t, f.orchestrator.IsRunning())
}

func TestStart_UnsupportedPairRejected(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	defer f.orchestrator.Stop(context.Background())

	// SOL/USD has valid format but the exchange does not list it
	active, err := f.orchestrator.Start(context.Background(), []string{"SOL/USD", "ETH/USDC"})
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestStart_BlockedByRiskClearance(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	f.risk.Pause("manual halt")

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC"})
	require.ErrorIs(t, err, apperrors.ErrRiskLimitViolation)
	assert.False(t, f.orchestrator.IsRunning())
}

func TestStart_SecondCallRejected(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	defer f.orchestrator.Stop(context.Background())

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC"})
	require.NoError(t, err)

	_, err = f.orchestrator.Start(context.Background(), []string{"BTC/USDT"})
	require.ErrorIs(t, err, apperrors.ErrEngineAlreadyRunning)
}

// A per-pair failure during startup unwinds every already-created position
func TestStart_AllOrNothing(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())

	// Every placement fails, so the first pair's batch errors out
	f.exchange.FailNextPlacements(100)

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC", "BTC/USDT"})
	require.Error(t, err)
	assert.False(t, f.orchestrator.IsRunning())
	assert.Empty(t, f.orchestrator.Positions(), "failed startup must discard all positions")
}

// Stop attempts every cancellation and emits MarketMakingStopped even when
// cancellations fail
func TestStop_BestEffortCancellation(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC", "BTC/USDT"})
	require.NoError(t, err)

	openTotal := 0
	for _, position := range f.orchestrator.Positions() {
		openTotal += position.OpenOrderCount()
	}
	require.Greater(t, openTotal, 0)

	var tracked []*core.Order
	for _, position := range f.orchestrator.Positions() {
		tracked = append(tracked, position.OpenOrders()...)
	}

	f.exchange.SetFailCancel(true)
	cancelCallsBefore := f.exchange.CancelCalls()

	clean := f.orchestrator.Stop(context.Background())
	assert.False(t, clean, "failed cancellations must be reported")
	assert.False(t, f.orchestrator.IsRunning())

	attempted := f.exchange.CancelCalls() - cancelCallsBefore
	assert.Equal(t, openTotal, attempted, "every open order must see a cancel attempt")

	// A failed cancel leaves the order in its prior state
	for _, order := range tracked {
		assert.Equal(t, core.OrderStatusOpen, order.Status)
	}

	events := drainEvents(f.events)
	_, ok := eventOfType(events, core.EventMarketMakingStopped)
	assert.True(t, ok, "MarketMakingStopped must be emitted despite failures")
}

func TestStop_CleanShutdown(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC"})
	require.NoError(t, err)

	clean := f.orchestrator.Stop(context.Background())
	assert.True(t, clean)
	assert.Empty(t, f.orchestrator.Positions())

	// Stop on a stopped engine is a no-op
	assert.True(t, f.orchestrator.Stop(context.Background()))
}

// One tick on a healthy market leaves positions quoting and triggers no risk
// action
func TestRunTick_SteadyState(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	defer f.orchestrator.Stop(context.Background())

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC"})
	require.NoError(t, err)
	drainEvents(f.events)

	require.NoError(t, f.orchestrator.runTick(context.Background()))

	events := drainEvents(f.events)
	_, risky := eventOfType(events, core.EventRiskEventHandled)
	assert.False(t, risky, "healthy market must not emit risk events")

	position := f.orchestrator.Positions()[0]
	assert.Greater(t, position.OpenOrderCount(), 0)
}

// A volatility spike beyond the pause threshold produces a RiskEventHandled
// with the spread adjustment action
func TestRunTick_VolatilitySpike(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	defer f.orchestrator.Stop(context.Background())

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC"})
	require.NoError(t, err)
	drainEvents(f.events)

	f.exchange.SetMarketData(&core.MarketData{
		Pair:       "ETH/USDC",
		Bid:        decimal.NewFromInt(99),
		Ask:        decimal.NewFromInt(101),
		Depth:      decimal.NewFromInt(100000),
		Volatility: decimal.NewFromFloat(0.30),
	})

	require.NoError(t, f.orchestrator.runTick(context.Background()))

	events := drainEvents(f.events)
	handled, ok := eventOfType(events, core.EventRiskEventHandled)
	require.True(t, ok, "risk event must be handled")
	assert.Equal(t, string(core.RiskEventVolatilitySpike), handled.Fields["event_type"])
	assert.Equal(t, string(core.RiskActionAdjustSpreadsForVolatility), handled.Fields["action_taken"])
}

// A pause stays in force while the triggering loss persists, even with no
// resume cooldown, and lifts only once the loss clears
func TestRunTick_PausePersistsWhileLossPersists(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RiskLimits.PauseCooldown = 0
	f := newFixture(t, cfg)
	defer f.orchestrator.Stop(context.Background())

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC"})
	require.NoError(t, err)
	drainEvents(f.events)

	f.risk.RecordTrade(decimal.NewFromInt(-2000))

	require.NoError(t, f.orchestrator.runTick(context.Background()))
	require.True(t, f.risk.IsPaused())

	position := f.orchestrator.Positions()[0]
	assert.Equal(t, core.PositionStatePaused, position.State())
	assert.Zero(t, position.OpenOrderCount())

	// Loss still over the limit: the pause must hold
	require.NoError(t, f.orchestrator.runTick(context.Background()))
	assert.True(t, f.risk.IsPaused())
	assert.Equal(t, core.PositionStatePaused, position.State())

	// Recovered PnL clears the condition and quoting resumes
	f.risk.RecordTrade(decimal.NewFromInt(2500))
	require.NoError(t, f.orchestrator.runTick(context.Background()))
	assert.False(t, f.risk.IsPaused())
	assert.Equal(t, core.PositionStateActive, position.State())
	assert.Greater(t, position.OpenOrderCount(), 0)
}

// A violation persisting across ticks is reported on the event bus once, not
// once per tick
func TestRunTick_RepeatedViolationReportedOnce(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RiskLimits.PauseCooldown = 0
	f := newFixture(t, cfg)
	defer f.orchestrator.Stop(context.Background())

	_, err := f.orchestrator.Start(context.Background(), []string{"ETH/USDC"})
	require.NoError(t, err)
	drainEvents(f.events)

	f.risk.RecordTrade(decimal.NewFromInt(-2000))

	require.NoError(t, f.orchestrator.runTick(context.Background()))
	events := drainEvents(f.events)
	_, reported := eventOfType(events, core.EventRiskEventHandled)
	require.True(t, reported, "first tick must report the violation")

	for i := 0; i < 3; i++ {
		require.NoError(t, f.orchestrator.runTick(context.Background()))
	}
	events = drainEvents(f.events)
	_, repeated := eventOfType(events, core.EventRiskEventHandled)
	assert.False(t, repeated, "in-force violation must not be re-reported")

	// Once cleared, a fresh violation is reported again
	f.risk.RecordTrade(decimal.NewFromInt(2500))
	require.NoError(t, f.orchestrator.runTick(context.Background()))
	drainEvents(f.events)

	f.risk.RecordTrade(decimal.NewFromInt(-3000))
	require.NoError(t, f.orchestrator.runTick(context.Background()))
	events = drainEvents(f.events)
	_, reported = eventOfType(events, core.EventRiskEventHandled)
	assert.True(t, reported, "a new violation after recovery must be reported")
}

func TestTrendTracker(t *testing.T) {
	steady := &trendTracker{}
	for i := 0; i < 10; i++ {
		steady.observe(decimal.NewFromInt(int64(100 + i)))
	}
	if !steady.strength().Equal(decimal.NewFromInt(1)) {
		t.Fatalf("monotonic series should score 1, got %s", steady.strength())
	}

	choppy := &trendTracker{}
	for i := 0; i < 10; i++ {
		mid := int64(100)
		if i%2 == 0 {
			mid = 101
		}
		choppy.observe(decimal.NewFromInt(mid))
	}
	if choppy.strength().GreaterThan(decimal.NewFromFloat(0.2)) {
		t.Fatalf("choppy series should score low, got %s", choppy.strength())
	}

	short := &trendTracker{}
	short.observe(decimal.NewFromInt(100))
	if !short.strength().IsZero() {
		t.Fatal("too few observations should score zero")
	}
}
