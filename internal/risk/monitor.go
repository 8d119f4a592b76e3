// Package risk evaluates exposure, loss, and volatility limits
package risk

import (
	"fmt"
	"sync"
	"time"

	"mm_engine/internal/config"
	"mm_engine/internal/core"
	"mm_engine/pkg/apperrors"
	"mm_engine/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// Monitor implements core.IRiskMonitor. Evaluation checks four conditions in
// a fixed priority order and reports only the first violation per tick.
type Monitor struct {
	cfg     *config.Config
	logger  core.ILogger
	breaker *PauseBreaker

	maxPositionSize decimal.Decimal
	maxDailyLoss    decimal.Decimal
	deviationLimit  decimal.Decimal
	volatilityLimit decimal.Decimal

	mu       sync.Mutex
	dailyPnL decimal.Decimal
	pnlDay   time.Time
}

// NewMonitor creates a risk monitor from the configured limits
func NewMonitor(cfg *config.Config, logger core.ILogger) *Monitor {
	return &Monitor{
		cfg:             cfg,
		logger:          logger.WithField("component", "risk_monitor"),
		breaker:         NewPauseBreaker(time.Duration(cfg.RiskLimits.PauseCooldown)*time.Second, logger),
		maxPositionSize: decimal.NewFromFloat(cfg.RiskLimits.MaxPositionSize),
		maxDailyLoss:    decimal.NewFromFloat(cfg.RiskLimits.MaxDailyLoss),
		deviationLimit:  decimal.NewFromFloat(cfg.RiskLimits.InventoryDeviationLimit),
		volatilityLimit: decimal.NewFromFloat(cfg.RiskLimits.VolatilityPauseThreshold),
		pnlDay:          today(),
	}
}

// StartupClearance rejects engine startup while trading is paused
func (m *Monitor) StartupClearance() error {
	if m.breaker.IsPaused() {
		return fmt.Errorf("%w: trading paused (%s)", apperrors.ErrRiskLimitViolation, m.breaker.Reason())
	}
	loss := m.dailyLoss()
	if loss.GreaterThan(m.maxDailyLoss) {
		return fmt.Errorf("%w: daily loss %s exceeds limit %s",
			apperrors.ErrRiskLimitViolation, loss.StringFixed(2), m.maxDailyLoss.StringFixed(2))
	}
	return nil
}

// Evaluate checks position size, daily loss, inventory deviation, and
// volatility against limits and returns the highest-priority violation
func (m *Monitor) Evaluate(snapshot *core.RiskSnapshot) *core.RiskStatus {
	for pair, exposure := range snapshot.PositionExposure {
		if exposure.GreaterThan(m.maxPositionSize) {
			return m.violation(&core.RiskStatus{
				Event:    core.RiskEventPositionLimitExceeded,
				Action:   core.RiskActionReducePositionSizes,
				Severity: "HIGH",
				Detail: fmt.Sprintf("pair %s exposure %s exceeds max position size %s",
					pair, exposure.StringFixed(2), m.maxPositionSize.StringFixed(2)),
			})
		}
	}

	if snapshot.DailyLoss.GreaterThan(m.maxDailyLoss) {
		return m.violation(&core.RiskStatus{
			Event:    core.RiskEventDailyLossLimit,
			Action:   core.RiskActionPauseTrading,
			Severity: "CRITICAL",
			Detail: fmt.Sprintf("daily loss %s exceeds limit %s",
				snapshot.DailyLoss.StringFixed(2), m.maxDailyLoss.StringFixed(2)),
		})
	}

	if snapshot.MaxInventoryDev.GreaterThan(m.deviationLimit) {
		return m.violation(&core.RiskStatus{
			Event:    core.RiskEventInventoryImbalance,
			Action:   core.RiskActionForceRebalance,
			Severity: "MEDIUM",
			Detail: fmt.Sprintf("inventory deviation %s exceeds limit %s",
				snapshot.MaxInventoryDev.StringFixed(4), m.deviationLimit.StringFixed(4)),
		})
	}

	if snapshot.MaxVolatility.GreaterThan(m.volatilityLimit) {
		return m.violation(&core.RiskStatus{
			Event:    core.RiskEventVolatilitySpike,
			Action:   core.RiskActionAdjustSpreadsForVolatility,
			Severity: "MEDIUM",
			Detail: fmt.Sprintf("volatility %s exceeds pause threshold %s",
				snapshot.MaxVolatility.StringFixed(4), m.volatilityLimit.StringFixed(4)),
		})
	}

	return &core.RiskStatus{Event: core.RiskEventNone, Action: core.RiskActionNone}
}

func (m *Monitor) violation(status *core.RiskStatus) *core.RiskStatus {
	m.logger.Warn("Risk condition violated",
		"event", string(status.Event),
		"action", string(status.Action),
		"severity", status.Severity,
		"detail", status.Detail)
	return status
}

// RecordTrade accumulates realized PnL for the daily loss limit. The
// accumulator resets at the start of each UTC day.
func (m *Monitor) RecordTrade(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := today(); !d.Equal(m.pnlDay) {
		m.pnlDay = d
		m.dailyPnL = decimal.Zero
	}
	m.dailyPnL = m.dailyPnL.Add(pnl)
}

func (m *Monitor) dailyLoss() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := today(); !d.Equal(m.pnlDay) {
		m.pnlDay = d
		m.dailyPnL = decimal.Zero
	}
	if m.dailyPnL.IsNegative() {
		return m.dailyPnL.Neg()
	}
	return decimal.Zero
}

// DailyLoss returns today's cumulative loss as a positive number, zero when
// the day is profitable
func (m *Monitor) DailyLoss() decimal.Decimal {
	return m.dailyLoss()
}

// IsPaused reports whether trading is halted
func (m *Monitor) IsPaused() bool {
	return m.breaker.IsPaused()
}

// Pause halts trading, idempotently
func (m *Monitor) Pause(reason string) {
	m.breaker.Pause(reason)
	telemetry.GetGlobalMetrics().SetTradingPaused(true)
}

// Resume clears the trading halt once the cooldown allows
func (m *Monitor) Resume() {
	m.breaker.Resume()
	if !m.breaker.IsPaused() {
		telemetry.GetGlobalMetrics().SetTradingPaused(false)
	}
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
