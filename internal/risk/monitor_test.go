package risk

import (
	"testing"
	"time"

	"mm_engine/internal/config"
	"mm_engine/internal/core"
	"mm_engine/pkg/logging"

	"github.com/shopspring/decimal"
)

func cleanSnapshot() *core.RiskSnapshot {
	return &core.RiskSnapshot{
		PositionExposure: map[string]decimal.Decimal{
			"ETH/USDC": decimal.NewFromInt(1000),
		},
		DailyLoss:       decimal.Zero,
		MaxInventoryDev: decimal.NewFromFloat(0.05),
		MaxVolatility:   decimal.NewFromFloat(0.01),
	}
}

func newMonitor(t *testing.T) *Monitor {
	t.Helper()
	return NewMonitor(config.DefaultConfig(), logging.NopLogger{})
}

func TestEvaluate_NoViolation(t *testing.T) {
	monitor := newMonitor(t)
	status := monitor.Evaluate(cleanSnapshot())
	if status.ActionRequired() {
		t.Fatalf("clean snapshot flagged: %s", status.Event)
	}
	if status.Event != core.RiskEventNone {
		t.Fatalf("got %s", status.Event)
	}
}

// Limits in DefaultConfig: position 50000, daily loss 1000, deviation 0.25,
// volatility 0.15
func TestEvaluate_SingleViolations(t *testing.T) {
	monitor := newMonitor(t)

	tests := []struct {
		name       string
		mutate     func(*core.RiskSnapshot)
		wantEvent  core.RiskEventType
		wantAction core.RiskAction
	}{
		{
			"oversized position",
			func(s *core.RiskSnapshot) { s.PositionExposure["ETH/USDC"] = decimal.NewFromInt(60000) },
			core.RiskEventPositionLimitExceeded,
			core.RiskActionReducePositionSizes,
		},
		{
			"daily loss breach",
			func(s *core.RiskSnapshot) { s.DailyLoss = decimal.NewFromInt(1500) },
			core.RiskEventDailyLossLimit,
			core.RiskActionPauseTrading,
		},
		{
			"inventory imbalance",
			func(s *core.RiskSnapshot) { s.MaxInventoryDev = decimal.NewFromFloat(0.30) },
			core.RiskEventInventoryImbalance,
			core.RiskActionForceRebalance,
		},
		{
			"volatility spike",
			func(s *core.RiskSnapshot) { s.MaxVolatility = decimal.NewFromFloat(0.20) },
			core.RiskEventVolatilitySpike,
			core.RiskActionAdjustSpreadsForVolatility,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := cleanSnapshot()
			tt.mutate(snapshot)
			status := monitor.Evaluate(snapshot)
			if status.Event != tt.wantEvent {
				t.Fatalf("event: got %s, want %s", status.Event, tt.wantEvent)
			}
			if status.Action != tt.wantAction {
				t.Fatalf("action: got %s, want %s", status.Action, tt.wantAction)
			}
		})
	}
}

// When several conditions are violated at once only the highest-priority one
// is reported: position size > daily loss > inventory > volatility
func TestEvaluate_PriorityOrder(t *testing.T) {
	monitor := newMonitor(t)

	snapshot := cleanSnapshot()
	snapshot.PositionExposure["ETH/USDC"] = decimal.NewFromInt(60000)
	snapshot.DailyLoss = decimal.NewFromInt(1500)
	snapshot.MaxInventoryDev = decimal.NewFromFloat(0.30)
	snapshot.MaxVolatility = decimal.NewFromFloat(0.20)

	status := monitor.Evaluate(snapshot)
	if status.Event != core.RiskEventPositionLimitExceeded {
		t.Fatalf("position size should win, got %s", status.Event)
	}

	snapshot.PositionExposure["ETH/USDC"] = decimal.NewFromInt(1000)
	status = monitor.Evaluate(snapshot)
	if status.Event != core.RiskEventDailyLossLimit {
		t.Fatalf("daily loss should win next, got %s", status.Event)
	}

	snapshot.DailyLoss = decimal.Zero
	status = monitor.Evaluate(snapshot)
	if status.Event != core.RiskEventInventoryImbalance {
		t.Fatalf("inventory should win next, got %s", status.Event)
	}
}

func TestPause_IsIdempotent(t *testing.T) {
	monitor := newMonitor(t)

	monitor.Pause("loss limit")
	if !monitor.IsPaused() {
		t.Fatal("should be paused")
	}

	monitor.Pause("loss limit again")
	if !monitor.IsPaused() {
		t.Fatal("pausing twice must leave the same paused state")
	}
}

func TestResume_RespectsCooldown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RiskLimits.PauseCooldown = 3600
	monitor := NewMonitor(cfg, logging.NopLogger{})

	monitor.Pause("test")
	monitor.Resume()
	if !monitor.IsPaused() {
		t.Fatal("resume before cooldown must be rejected")
	}

	quick := config.DefaultConfig()
	quick.RiskLimits.PauseCooldown = 0
	monitor2 := NewMonitor(quick, logging.NopLogger{})
	monitor2.Pause("test")
	time.Sleep(time.Millisecond)
	monitor2.Resume()
	if monitor2.IsPaused() {
		t.Fatal("resume after cooldown should clear the pause")
	}
}

func TestStartupClearance(t *testing.T) {
	monitor := newMonitor(t)
	if err := monitor.StartupClearance(); err != nil {
		t.Fatalf("fresh monitor should clear startup: %v", err)
	}

	monitor.Pause("manual halt")
	if err := monitor.StartupClearance(); err == nil {
		t.Fatal("paused monitor must block startup")
	}
}

func TestRecordTrade_AccumulatesLoss(t *testing.T) {
	monitor := newMonitor(t)

	monitor.RecordTrade(decimal.NewFromInt(-300))
	monitor.RecordTrade(decimal.NewFromInt(-200))
	monitor.RecordTrade(decimal.NewFromInt(100))

	if !monitor.DailyLoss().Equal(decimal.NewFromInt(400)) {
		t.Fatalf("daily loss: got %s, want 400", monitor.DailyLoss())
	}

	monitor.RecordTrade(decimal.NewFromInt(500))
	if !monitor.DailyLoss().IsZero() {
		t.Fatalf("profitable day should report zero loss, got %s", monitor.DailyLoss())
	}
}
