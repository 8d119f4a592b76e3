// Package inventory tracks per-pair holdings and produces rebalancing trades
package inventory

import (
	"context"
	"fmt"
	"sync"

	"mm_engine/internal/config"
	"mm_engine/internal/core"

	"github.com/shopspring/decimal"
)

// Manager is the single authoritative writer of inventory state. Projections
// derived elsewhere (skewed quotes, risk snapshots) are advisory only.
type Manager struct {
	wallet IWalletReader
	cfg    *config.Config
	logger core.ILogger

	mu     sync.RWMutex
	states map[string]*core.InventoryState
}

// IWalletReader is the balance source for inventory assessment
type IWalletReader interface {
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}

// NewManager creates an inventory manager for the configured pairs
func NewManager(wallet IWalletReader, cfg *config.Config, logger core.ILogger) *Manager {
	return &Manager{
		wallet: wallet,
		cfg:    cfg,
		logger: logger.WithField("component", "inventory_manager"),
		states: make(map[string]*core.InventoryState),
	}
}

// Assess refreshes the holdings snapshot for a pair from wallet balances and
// the current market price
func (m *Manager) Assess(ctx context.Context, pair string, market *core.MarketData) (*core.InventoryState, error) {
	base, quote := core.SplitTradingPair(pair)

	baseBalance, err := m.wallet.GetBalance(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s balance: %w", base, err)
	}
	quoteBalance, err := m.wallet.GetBalance(ctx, quote)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s balance: %w", quote, err)
	}

	mid := market.Mid()
	baseValue := baseBalance.Mul(mid)
	totalValue := baseValue.Add(quoteBalance)

	state := &core.InventoryState{
		Pair:               pair,
		BaseBalance:        baseBalance,
		QuoteBalance:       quoteBalance,
		BaseValue:          baseValue,
		TotalValue:         totalValue,
		TargetRatio:        m.cfg.TargetRatio(pair),
		RebalanceThreshold: m.cfg.RebalanceThreshold(pair),
	}
	if totalValue.IsPositive() {
		state.CurrentRatio = baseValue.Div(totalValue)
	}

	m.mu.Lock()
	m.states[pair] = state
	m.mu.Unlock()

	m.logger.Debug("Assessed inventory",
		"pair", pair,
		"current_ratio", state.CurrentRatio.StringFixed(4),
		"target_ratio", state.TargetRatio.StringFixed(4),
		"total_value", totalValue.StringFixed(2))

	return state, nil
}

// GetState returns the last assessed state for a pair
func (m *Manager) GetState(pair string) (*core.InventoryState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[pair]
	if !ok {
		return nil, false
	}
	copied := *state
	return &copied, true
}

// NeedsRebalancing reports whether any pair's ratio deviation strictly
// exceeds its threshold
func (m *Manager) NeedsRebalancing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, state := range m.states {
		if state.Deviation().GreaterThan(state.RebalanceThreshold) {
			return true
		}
	}
	return false
}

// CalculateRebalancingTrades produces the trades that would bring every
// deviating pair back to its target ratio. Trades below the minimum trade
// value are skipped.
func (m *Manager) CalculateRebalancingTrades() []*core.RebalancingTrade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	minValue := decimal.NewFromFloat(m.cfg.Inventory.MinTradeValue)
	var trades []*core.RebalancingTrade

	for pair, state := range m.states {
		deviation := state.Deviation()
		if !deviation.GreaterThan(state.RebalanceThreshold) {
			continue
		}
		if !state.TotalValue.IsPositive() {
			continue
		}

		// Value to shift between the legs to reach the target ratio
		targetBaseValue := state.TotalValue.Mul(state.TargetRatio)
		diff := targetBaseValue.Sub(state.BaseValue)

		side := core.OrderSideBuy
		if diff.IsNegative() {
			side = core.OrderSideSell
		}
		tradeValue := diff.Abs()
		if tradeValue.LessThan(minValue) {
			m.logger.Debug("Skipping rebalance below minimum trade value",
				"pair", pair, "trade_value", tradeValue.StringFixed(2))
			continue
		}

		trades = append(trades, &core.RebalancingTrade{
			Pair: pair,
			Side: side,
			Size: tradeValue,
			Reason: fmt.Sprintf("ratio %s deviates from target %s by %s",
				state.CurrentRatio.StringFixed(4),
				state.TargetRatio.StringFixed(4),
				deviation.StringFixed(4)),
		})
	}

	return trades
}

// ApplyConfirmedTrade updates the tracked state after an executed rebalancing
// trade. The trade size is quote value; the base delta is size divided by the
// execution price.
func (m *Manager) ApplyConfirmedTrade(ctx context.Context, trade *core.RebalancingTrade, executionPrice decimal.Decimal) error {
	if !executionPrice.IsPositive() {
		return fmt.Errorf("execution price must be positive, got %s", executionPrice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[trade.Pair]
	if !ok {
		return fmt.Errorf("no inventory state for pair %s", trade.Pair)
	}

	baseDelta := trade.Size.Div(executionPrice)
	if trade.Side == core.OrderSideBuy {
		state.BaseBalance = state.BaseBalance.Add(baseDelta)
		state.QuoteBalance = state.QuoteBalance.Sub(trade.Size)
	} else {
		state.BaseBalance = state.BaseBalance.Sub(baseDelta)
		state.QuoteBalance = state.QuoteBalance.Add(trade.Size)
	}

	state.BaseValue = state.BaseBalance.Mul(executionPrice)
	state.TotalValue = state.BaseValue.Add(state.QuoteBalance)
	if state.TotalValue.IsPositive() {
		state.CurrentRatio = state.BaseValue.Div(state.TotalValue)
	} else {
		state.CurrentRatio = decimal.Zero
	}

	m.logger.Info("Applied confirmed rebalancing trade",
		"pair", trade.Pair,
		"side", trade.Side,
		"trade_value", trade.Size.StringFixed(2),
		"new_ratio", state.CurrentRatio.StringFixed(4))

	return nil
}
