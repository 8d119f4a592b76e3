// Package strategy classifies market character and computes quoting
// parameters per pair
package strategy

import (
	"fmt"
	"time"

	"mm_engine/internal/config"
	"mm_engine/internal/core"
	"mm_engine/pkg/apperrors"
	"mm_engine/pkg/tradingutils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine implements core.IStrategyEngine. Selection and adaptation are pure
// functions of the inputs; the engine holds only configuration.
type Engine struct {
	cfg    *config.Config
	logger core.ILogger

	minSize decimal.Decimal
	maxSize decimal.Decimal
}

// NewEngine creates a strategy engine bound to the configured thresholds
func NewEngine(cfg *config.Config, logger core.ILogger) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger.WithField("component", "strategy_engine"),
		minSize: decimal.NewFromFloat(cfg.Trading.MinOrderSize),
		maxSize: decimal.NewFromFloat(cfg.Trading.MaxOrderSize),
	}
}

// SelectStrategy classifies the market and picks the quoting variant. Only
// the first matching condition applies: volatility, then liquidity, then
// trend, then the grid default.
func (e *Engine) SelectStrategy(pair string, analysis *core.MarketAnalysis) (*core.Strategy, error) {
	variant := e.classify(analysis)
	strategy := e.buildStrategy(variant, analysis)

	if err := strategy.Validate(e.minSize, e.maxSize); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidStrategy, err)
	}

	e.logger.Info("Selected strategy",
		"pair", pair,
		"strategy", string(variant),
		"spread", strategy.Spread.StringFixed(5),
		"levels", strategy.Levels)

	return strategy, nil
}

func (e *Engine) classify(analysis *core.MarketAnalysis) core.StrategyType {
	if analysis.Volatility.GreaterThan(decimal.NewFromFloat(e.cfg.Strategy.VolatilityHighThreshold)) {
		return core.StrategyVolatilityAdaptive
	}
	if analysis.LiquidityDepth.LessThan(decimal.NewFromFloat(e.cfg.Strategy.LiquidityLowThreshold)) {
		return core.StrategyInventoryBased
	}
	if analysis.TrendStrength.GreaterThan(decimal.NewFromFloat(e.cfg.Strategy.TrendStrongThreshold)) {
		return core.StrategyTrendFollowing
	}
	return core.StrategyGridTrading
}

func (e *Engine) buildStrategy(variant core.StrategyType, analysis *core.MarketAnalysis) *core.Strategy {
	baseSpread := decimal.NewFromFloat(e.cfg.Strategy.BaseSpread)
	baseSize := decimal.NewFromFloat(e.cfg.Strategy.BaseSizePerLevel)
	levels := e.cfg.Strategy.BaseLevels

	spread := baseSpread
	size := baseSize

	switch variant {
	case core.StrategyVolatilityAdaptive:
		// Widen quotes proportionally to observed volatility and quote
		// smaller levels
		widening := decimal.NewFromInt(1).Add(analysis.Volatility.Mul(decimal.NewFromInt(10)))
		spread = baseSpread.Mul(widening)
		size = baseSize.Div(decimal.NewFromInt(2))
		if levels > 2 {
			levels = 2
		}
	case core.StrategyInventoryBased:
		spread = baseSpread.Mul(decimal.NewFromFloat(1.5))
	case core.StrategyTrendFollowing:
		spread = baseSpread.Mul(decimal.NewFromFloat(0.8))
	case core.StrategyGridTrading:
		// Base parameters as configured
	}

	if size.LessThan(e.minSize) {
		size = e.minSize
	}
	if size.GreaterThan(e.maxSize) {
		size = e.maxSize
	}

	return &core.Strategy{
		Type:         variant,
		Spread:       spread,
		Levels:       levels,
		SizePerLevel: size,
		CreatedAt:    time.Now(),
	}
}

// ShouldAdapt reports whether freshly computed parameters differ from the
// current ones by more than the configured tolerance. Small drift is ignored
// to avoid order churn.
func (e *Engine) ShouldAdapt(current *core.Strategy, analysis *core.MarketAnalysis) bool {
	if current == nil {
		return true
	}

	candidate := e.buildStrategy(e.classify(analysis), analysis)
	if candidate.Type != current.Type {
		return true
	}

	tolerance := e.cfg.AdaptationTolerance(analysis.Pair)
	if tradingutils.RelativeChange(candidate.Spread, current.Spread).GreaterThan(tolerance) {
		return true
	}
	if tradingutils.RelativeChange(candidate.SizePerLevel, current.SizePerLevel).GreaterThan(tolerance) {
		return true
	}
	return candidate.Levels != current.Levels
}

// AdaptToConditions produces the replacement strategy for the current market.
// The returned value is a fresh strategy; callers swap it in wholesale.
func (e *Engine) AdaptToConditions(current *core.Strategy, analysis *core.MarketAnalysis) (*core.Strategy, error) {
	next := e.buildStrategy(e.classify(analysis), analysis)
	if err := next.Validate(e.minSize, e.maxSize); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidStrategy, err)
	}

	if current != nil {
		e.logger.Info("Adapting strategy",
			"pair", analysis.Pair,
			"from", string(current.Type),
			"to", string(next.Type),
			"spread", next.Spread.StringFixed(5))
	}
	return next, nil
}

// ComputeTargetOrders produces the two-sided order request set for a
// position at current strategy parameters. INVENTORY_BASED strategies skew
// the quoting midpoint toward rebalancing.
func (e *Engine) ComputeTargetOrders(positionID string, strategy *core.Strategy, market *core.MarketData, inventory *core.InventoryState) []*core.PlaceOrderRequest {
	mid := market.Mid()
	if !mid.IsPositive() {
		return nil
	}

	if strategy.Type == core.StrategyInventoryBased && inventory != nil {
		mid = tradingutils.CalculateSkewedPrice(
			mid,
			inventory.CurrentRatio,
			inventory.TargetRatio,
			decimal.NewFromFloat(e.cfg.Strategy.InventorySkewFactor),
		)
	}

	halfSpread := mid.Mul(strategy.Spread).Div(decimal.NewFromInt(2))
	bids := tradingutils.QuoteLevels(mid, halfSpread.Neg(), strategy.Levels)
	asks := tradingutils.QuoteLevels(mid, halfSpread, strategy.Levels)

	requests := make([]*core.PlaceOrderRequest, 0, len(bids)+len(asks))
	for _, price := range bids {
		requests = append(requests, e.newRequest(positionID, market.Pair, core.OrderSideBuy, price, strategy.SizePerLevel))
	}
	for _, price := range asks {
		requests = append(requests, e.newRequest(positionID, market.Pair, core.OrderSideSell, price, strategy.SizePerLevel))
	}
	return requests
}

func (e *Engine) newRequest(positionID, pair string, side core.OrderSide, price, size decimal.Decimal) *core.PlaceOrderRequest {
	return &core.PlaceOrderRequest{
		Pair:          pair,
		Side:          side,
		Type:          core.OrderTypeLimit,
		Price:         tradingutils.RoundPrice(price, 8),
		Size:          tradingutils.RoundSize(size, 8),
		PositionID:    positionID,
		ClientOrderID: uuid.NewString(),
	}
}
