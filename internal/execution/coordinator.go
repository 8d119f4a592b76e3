// Package execution turns target order parameters into exchange operations
// and maintains each position's open-order set
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mm_engine/internal/config"
	"mm_engine/internal/core"
	"mm_engine/internal/journal"
	"mm_engine/pkg/apperrors"
	"mm_engine/pkg/concurrency"
	"mm_engine/pkg/telemetry"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Coordinator implements core.IOrderCoordinator. Batch operations fan out on
// the worker pool and collect results with best-effort semantics; a batch
// succeeds if at least one order lands.
type Coordinator struct {
	exchange core.IExchange
	cfg      *config.Config
	logger   core.ILogger
	pool     *concurrency.WorkerPool
	journal  journal.Store
	monitor  PnLRecorder

	limiter  *rate.Limiter
	pipeline failsafe.Executor[*core.Order]

	minSize decimal.Decimal
	maxSize decimal.Decimal

	tracer trace.Tracer
}

// PnLRecorder receives realized PnL from observed fills
type PnLRecorder interface {
	RecordTrade(pnl decimal.Decimal)
}

// NewCoordinator creates an execution coordinator for one exchange
func NewCoordinator(exchange core.IExchange, cfg *config.Config, pool *concurrency.WorkerPool, store journal.Store, monitor PnLRecorder, logger core.ILogger) *Coordinator {
	retryPolicy := retrypolicy.NewBuilder[*core.Order]().
		HandleIf(func(_ *core.Order, err error) bool {
			return errors.Is(err, apperrors.ErrNetwork) || errors.Is(err, apperrors.ErrRateLimitExceeded)
		}).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(3).
		Build()

	breaker := circuitbreaker.NewBuilder[*core.Order]().
		HandleIf(func(_ *core.Order, err error) bool {
			return errors.Is(err, apperrors.ErrNetwork)
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()

	return &Coordinator{
		exchange: exchange,
		cfg:      cfg,
		logger:   logger.WithField("component", "order_coordinator"),
		pool:     pool,
		journal:  store,
		monitor:  monitor,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Trading.OrderRateLimit), cfg.Trading.OrderRateBurst),
		pipeline: failsafe.With[*core.Order](retryPolicy, breaker),
		minSize:  decimal.NewFromFloat(cfg.Trading.MinOrderSize),
		maxSize:  decimal.NewFromFloat(cfg.Trading.MaxOrderSize),
		tracer:   telemetry.GetTracer("order-coordinator"),
	}
}

// validateRequest checks order parameters before any network call. Invalid
// requests never reach the exchange.
func (c *Coordinator) validateRequest(req *core.PlaceOrderRequest) error {
	if !req.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", apperrors.ErrInvalidOrderParameter, req.Price)
	}
	if !req.Size.IsPositive() {
		return fmt.Errorf("%w: size must be positive, got %s", apperrors.ErrInvalidOrderParameter, req.Size)
	}
	if req.Size.LessThan(c.minSize) || req.Size.GreaterThan(c.maxSize) {
		return fmt.Errorf("%w: size %s outside bounds [%s, %s]",
			apperrors.ErrInvalidOrderParameter, req.Size, c.minSize, c.maxSize)
	}
	return nil
}

// PlaceOrders places a batch of orders concurrently. Requests that fail
// validation are dropped with a warning; individual placement failures are
// logged and excluded. The batch errors only when nothing was placed.
func (c *Coordinator) PlaceOrders(ctx context.Context, position *core.LiquidityPosition, requests []*core.PlaceOrderRequest) (*core.BatchResult, error) {
	ctx, span := c.tracer.Start(ctx, "PlaceOrders")
	defer span.End()

	result := &core.BatchResult{}

	valid := make([]*core.PlaceOrderRequest, 0, len(requests))
	for _, req := range requests {
		if err := c.validateRequest(req); err != nil {
			result.Dropped++
			c.logger.Warn("Dropping invalid order from batch",
				"pair", req.Pair, "side", string(req.Side), "error", err.Error())
			continue
		}
		valid = append(valid, req)
	}
	telemetry.GetGlobalMetrics().OrdersDroppedAdd(ctx, result.Dropped)

	if len(valid) == 0 {
		if len(requests) == 0 {
			return result, nil
		}
		return result, fmt.Errorf("%w: all %d orders in batch failed validation", apperrors.ErrOrderPlacement, len(requests))
	}

	// Cap the open-order set per pair
	capacity := c.cfg.Trading.MaxOrdersPerPair - position.OpenOrderCount()
	if capacity < len(valid) {
		if capacity < 0 {
			capacity = 0
		}
		c.logger.Warn("Trimming batch to per-pair order cap",
			"pair", position.Pair, "requested", len(valid), "capacity", capacity)
		result.Dropped += len(valid) - capacity
		valid = valid[:capacity]
	}

	placed := make([]*core.Order, len(valid))
	failed := make([]error, len(valid))

	tasks := make([]func(), len(valid))
	for i, req := range valid {
		i, req := i, req
		tasks[i] = func() {
			order, err := c.placeOne(ctx, req)
			if err != nil {
				failed[i] = err
				return
			}
			placed[i] = order
		}
	}
	c.pool.SubmitAll(tasks)

	for i, order := range placed {
		if order == nil {
			result.Failed++
			c.logger.Error("Failed to place order",
				"pair", valid[i].Pair, "side", string(valid[i].Side),
				"price", valid[i].Price.String(), "error", failed[i].Error())
			continue
		}
		position.TrackOrder(order)
		result.Placed = append(result.Placed, order)
	}

	telemetry.GetGlobalMetrics().OrdersPlacedAdd(ctx, len(result.Placed))
	span.SetAttributes(
		attribute.Int("orders.placed", len(result.Placed)),
		attribute.Int("orders.failed", result.Failed),
		attribute.Int("orders.dropped", result.Dropped),
	)

	if len(result.Placed) == 0 {
		return result, fmt.Errorf("%w: no orders placed out of %d attempted", apperrors.ErrOrderPlacement, len(valid))
	}
	return result, nil
}

// placeOne submits one order through the rate limiter and resilience pipeline
func (c *Coordinator) placeOne(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.pipeline.GetWithExecution(func(exec failsafe.Execution[*core.Order]) (*core.Order, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.ExchangeCallTimeout())
		defer cancel()
		return c.exchange.PlaceOrder(callCtx, req)
	})
}

// AdjustOrders cancels the position's full order set and then places the new
// set. Cancellation is awaited to completion before placement begins.
func (c *Coordinator) AdjustOrders(ctx context.Context, position *core.LiquidityPosition, requests []*core.PlaceOrderRequest) (*core.BatchResult, error) {
	ctx, span := c.tracer.Start(ctx, "AdjustOrders")
	defer span.End()

	cancelled := c.CancelAllOrders(ctx, position)
	c.logger.Info("Cancelled orders for adjustment",
		"pair", position.Pair, "cancelled", cancelled)

	return c.PlaceOrders(ctx, position, requests)
}

// ReplaceFilledOrders polls order status from the exchange, journals fills,
// and replaces each filled order with a fresh one at current strategy
// parameters
func (c *Coordinator) ReplaceFilledOrders(ctx context.Context, position *core.LiquidityPosition, strategy *core.Strategy, market *core.MarketData) (*core.BatchResult, error) {
	ctx, span := c.tracer.Start(ctx, "ReplaceFilledOrders")
	defer span.End()

	var replacements []*core.PlaceOrderRequest
	filled := 0

	for _, order := range position.OpenOrders() {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.ExchangeCallTimeout())
		remote, err := c.exchange.GetOrder(callCtx, order.Pair, order.ID)
		cancel()
		if err != nil {
			c.logger.Warn("Failed to query order status",
				"order_id", order.ID, "error", err.Error())
			continue
		}
		if remote.Status != core.OrderStatusFilled {
			if remote.Status.IsTerminal() {
				// Cancelled or failed on the venue side, just untrack
				if err := order.Transition(remote.Status); err == nil {
					position.UntrackOrder(order.ID)
				}
			}
			continue
		}

		if err := order.Transition(core.OrderStatusFilled); err != nil {
			c.logger.Warn("Ignoring stale fill notification",
				"order_id", order.ID, "error", err.Error())
			continue
		}
		order.FilledSize = remote.FilledSize
		position.UntrackOrder(order.ID)
		filled++

		c.recordFill(ctx, order, market)
		replacements = append(replacements, c.replacementFor(position, order, strategy, market))
	}

	if filled == 0 {
		return &core.BatchResult{}, nil
	}

	telemetry.GetGlobalMetrics().OrdersFilledAdd(ctx, filled)
	c.logger.Info("Replacing filled orders",
		"pair", position.Pair, "filled", filled)

	return c.PlaceOrders(ctx, position, replacements)
}

// replacementFor computes a fresh order on the same side at current strategy
// parameters. Stale price levels are not retained.
func (c *Coordinator) replacementFor(position *core.LiquidityPosition, filledOrder *core.Order, strategy *core.Strategy, market *core.MarketData) *core.PlaceOrderRequest {
	mid := market.Mid()
	half := mid.Mul(strategy.Spread).Div(decimal.NewFromInt(2))
	price := mid.Add(half)
	if filledOrder.Side == core.OrderSideBuy {
		price = mid.Sub(half)
	}
	return &core.PlaceOrderRequest{
		Pair:       filledOrder.Pair,
		Side:       filledOrder.Side,
		Type:       core.OrderTypeLimit,
		Price:      price,
		Size:       strategy.SizePerLevel,
		PositionID: position.ID,
	}
}

// recordFill journals an executed order and reports its spread capture as
// realized PnL
func (c *Coordinator) recordFill(ctx context.Context, order *core.Order, market *core.MarketData) {
	pnl := decimal.Zero
	mid := market.Mid()
	if mid.IsPositive() {
		// Passive fill earns the distance between fill price and mid
		if order.Side == core.OrderSideSell {
			pnl = order.Price.Sub(mid).Mul(order.FilledSize.Div(order.Price))
		} else {
			pnl = mid.Sub(order.Price).Mul(order.FilledSize.Div(order.Price))
		}
	}

	if c.monitor != nil {
		c.monitor.RecordTrade(pnl)
	}
	if c.journal == nil {
		return
	}
	record := &journal.TradeRecord{
		Kind:       journal.RecordFill,
		OrderID:    order.ID,
		Pair:       order.Pair,
		Side:       order.Side,
		Price:      order.Price,
		Size:       order.FilledSize,
		PnL:        pnl,
		ExecutedAt: time.Now(),
	}
	if err := c.journal.Append(ctx, record); err != nil {
		c.logger.Error("Failed to journal fill", "order_id", order.ID, "error", err.Error())
	}
}

// CancelAllOrders cancels every open order of a position, each with its own
// timeout. Failures are logged and do not stop remaining cancellations. It
// returns the number of successful cancellations.
func (c *Coordinator) CancelAllOrders(ctx context.Context, position *core.LiquidityPosition) int {
	open := position.OpenOrders()
	if len(open) == 0 {
		return 0
	}

	succeeded := make([]bool, len(open))
	tasks := make([]func(), len(open))
	for i, order := range open {
		i, order := i, order
		tasks[i] = func() {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.CancelTimeout())
			defer cancel()

			if err := c.limiter.Wait(callCtx); err != nil {
				c.logger.Warn("Failed to cancel order", "order_id", order.ID, "error", err.Error())
				return
			}
			if err := c.exchange.CancelOrder(callCtx, order.Pair, order.ID); err != nil {
				c.logger.Warn("Failed to cancel order", "order_id", order.ID, "error", err.Error())
				return
			}
			succeeded[i] = true
		}
	}
	c.pool.SubmitAll(tasks)

	cancelled := 0
	for i, ok := range succeeded {
		if !ok {
			continue
		}
		if err := open[i].Transition(core.OrderStatusCancelled); err == nil {
			cancelled++
		}
		position.UntrackOrder(open[i].ID)
	}

	telemetry.GetGlobalMetrics().OrdersCancelledAdd(ctx, cancelled)
	return cancelled
}
