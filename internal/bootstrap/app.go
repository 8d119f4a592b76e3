// Package bootstrap wires configuration, telemetry, and all engine
// components into a runnable application
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mm_engine/internal/config"
	"mm_engine/internal/core"
	"mm_engine/internal/eventbus"
	"mm_engine/internal/execution"
	"mm_engine/internal/inventory"
	"mm_engine/internal/journal"
	"mm_engine/internal/mock"
	"mm_engine/internal/orchestrator"
	"mm_engine/internal/risk"
	"mm_engine/internal/strategy"
	"mm_engine/pkg/concurrency"
	"mm_engine/pkg/liveserver"
	"mm_engine/pkg/logging"
	"mm_engine/pkg/telemetry"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// App holds the wired engine and its supporting services
type App struct {
	Cfg    *config.Config
	Logger core.ILogger

	orchestrator *orchestrator.Orchestrator
	bus          *eventbus.Bus
	journal      journal.Store
	tel          *telemetry.Telemetry
	metricsSrv   *telemetry.MetricsServer
	liveHub      *liveserver.Hub
	liveSrv      *liveserver.Server
	kafkaSink    *eventbus.KafkaSink
	pools        []*concurrency.WorkerPool
}

// NewApp bootstraps all dependencies from a configuration file
func NewApp(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	tel, err := telemetry.Setup("mm_engine")
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	app := &App{
		Cfg:    cfg,
		Logger: logger,
		tel:    tel,
	}
	if err := app.wire(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) wire() error {
	cfg := a.Cfg
	logger := a.Logger

	// Event bus and sinks
	a.bus = eventbus.NewBus(cfg.EventBus.BufferSize, logger)
	if cfg.EventBus.KafkaEnabled {
		a.kafkaSink = eventbus.NewKafkaSink(cfg.EventBus.KafkaBrokers, cfg.EventBus.KafkaTopic, logger)
		a.bus.AddSink(a.kafkaSink)
	}

	// Trade journal
	var store journal.Store
	var err error
	switch cfg.Journal.Backend {
	case "sqlite":
		store, err = journal.NewSQLiteStore(cfg.Journal.SQLitePath)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	default:
		store = journal.NewMemoryStore()
	}
	a.journal = store

	// Exchange and wallet. The mock venue is the only built-in adapter;
	// real venues plug in through core.IExchange.
	exchange := mock.NewExchange(cfg.Engine.Exchange, cfg.Engine.TradingPairs...)
	wallet := mock.NewWallet(defaultBalances(cfg.Engine.TradingPairs))

	execPool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "ExecutionPool",
		MaxWorkers:  cfg.Concurrency.ExecutionPoolSize,
		MaxCapacity: cfg.Concurrency.ExecutionPoolBuffer,
	}, logger)
	tickPool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "TickPool",
		MaxWorkers:  cfg.Concurrency.TickPoolSize,
		MaxCapacity: cfg.Concurrency.TickPoolBuffer,
	}, logger)
	a.pools = append(a.pools, execPool, tickPool)

	inventoryManager := inventory.NewManager(wallet, cfg, logger)
	strategyEngine := strategy.NewEngine(cfg, logger)
	riskMonitor := risk.NewMonitor(cfg, logger)
	coordinator := execution.NewCoordinator(exchange, cfg, execPool, store, riskMonitor, logger)

	a.orchestrator = orchestrator.New(cfg, exchange, strategyEngine, inventoryManager,
		riskMonitor, coordinator, a.bus, store, tickPool, logger)

	if cfg.Telemetry.EnableMetrics {
		a.metricsSrv = telemetry.NewMetricsServer(cfg.Telemetry.MetricsPort, logger)
	}
	if cfg.LiveServer.Enabled {
		a.liveHub = liveserver.NewHub(logger)
		a.liveSrv = liveserver.NewServer(a.liveHub, logger)
	}

	return nil
}

// defaultBalances seeds the mock wallet with a balance for every asset
// appearing in the configured pairs
func defaultBalances(pairs []string) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)
	for _, pair := range pairs {
		base, quote := core.SplitTradingPair(pair)
		if _, ok := balances[base]; !ok && base != "" {
			balances[base] = decimal.NewFromInt(100)
		}
		if _, ok := balances[quote]; !ok && quote != "" {
			balances[quote] = decimal.NewFromInt(100000)
		}
	}
	return balances
}

// Run starts the engine and blocks until a termination signal arrives
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if a.metricsSrv != nil {
		a.metricsSrv.Start()
	}
	if a.liveSrv != nil {
		g.Go(func() error {
			a.liveHub.Run(gctx)
			return nil
		})
		g.Go(func() error {
			return a.liveSrv.Start(gctx, fmt.Sprintf(":%d", a.Cfg.LiveServer.Port))
		})
		events := a.bus.Subscribe()
		g.Go(func() error {
			a.liveSrv.StreamEvents(gctx, events)
			return nil
		})
	}

	active, err := a.orchestrator.Start(gctx, a.Cfg.Engine.TradingPairs)
	if err != nil {
		stop()
		a.shutdown()
		return fmt.Errorf("failed to start engine: %w", err)
	}
	a.Logger.Info("Engine running", "active_pairs", active)

	<-gctx.Done()
	a.Logger.Info("Shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if clean := a.orchestrator.Stop(stopCtx); !clean {
		a.Logger.Warn("Engine stopped with incomplete cancellations")
	}

	stop()
	_ = g.Wait()
	a.shutdown()
	return nil
}

// shutdown releases supporting services in reverse dependency order
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Stop(ctx); err != nil {
			a.Logger.Warn("Failed to stop metrics server", "error", err.Error())
		}
	}
	if a.kafkaSink != nil {
		if err := a.kafkaSink.Close(); err != nil {
			a.Logger.Warn("Failed to close kafka sink", "error", err.Error())
		}
	}
	a.bus.Close()
	for _, pool := range a.pools {
		pool.Stop()
	}
	if err := a.journal.Close(); err != nil {
		a.Logger.Warn("Failed to close trade journal", "error", err.Error())
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.Logger.Warn("Failed to shut down telemetry", "error", err.Error())
	}
}
