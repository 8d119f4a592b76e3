package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_TerminalStatesNeverRevert(t *testing.T) {
	terminals := []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed}
	all := []OrderStatus{OrderStatusPending, OrderStatusOpen, OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed}

	for _, from := range terminals {
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Errorf("terminal state %s must not transition to %s", from, to)
			}
		}
	}
}

func TestOrderStatus_ForwardTransitions(t *testing.T) {
	if !OrderStatusPending.CanTransitionTo(OrderStatusOpen) {
		t.Error("PENDING -> OPEN should be allowed")
	}
	if !OrderStatusOpen.CanTransitionTo(OrderStatusFilled) {
		t.Error("OPEN -> FILLED should be allowed")
	}
	if OrderStatusPending.CanTransitionTo(OrderStatusFilled) {
		t.Error("PENDING -> FILLED must pass through OPEN")
	}
	if OrderStatusOpen.CanTransitionTo(OrderStatusPending) {
		t.Error("OPEN -> PENDING is a regression")
	}
}

func TestOrder_TransitionRejectsRegression(t *testing.T) {
	order := &Order{ID: "o-1", Status: OrderStatusOpen}
	if err := order.Transition(OrderStatusFilled); err != nil {
		t.Fatalf("OPEN -> FILLED failed: %v", err)
	}
	if err := order.Transition(OrderStatusOpen); err == nil {
		t.Fatal("FILLED -> OPEN should be rejected")
	}
	if order.Status != OrderStatusFilled {
		t.Fatalf("status changed after rejected transition: %s", order.Status)
	}
}

func TestValidTradingPair(t *testing.T) {
	valid := []string{"ETH/USDC", "BTC/USDT", "SOL/USD", "1INCH/USDT"}
	invalid := []string{"", "ETHUSDC", "eth/usdc", "ETH/", "/USDC", "ETH/US/DC", "ETH-USDC"}

	for _, pair := range valid {
		if !ValidTradingPair(pair) {
			t.Errorf("expected %q to be valid", pair)
		}
	}
	for _, pair := range invalid {
		if ValidTradingPair(pair) {
			t.Errorf("expected %q to be invalid", pair)
		}
	}
}

func TestSplitTradingPair(t *testing.T) {
	base, quote := SplitTradingPair("ETH/USDC")
	if base != "ETH" || quote != "USDC" {
		t.Fatalf("got %q/%q", base, quote)
	}
}

func TestStrategy_Validate(t *testing.T) {
	minSize := decimal.NewFromInt(10)
	maxSize := decimal.NewFromInt(10000)

	good := &Strategy{
		Type:         StrategyGridTrading,
		Spread:       decimal.NewFromFloat(0.002),
		Levels:       3,
		SizePerLevel: decimal.NewFromInt(100),
		CreatedAt:    time.Now(),
	}
	if err := good.Validate(minSize, maxSize); err != nil {
		t.Fatalf("valid strategy rejected: %v", err)
	}

	zeroSpread := *good
	zeroSpread.Spread = decimal.Zero
	if err := zeroSpread.Validate(minSize, maxSize); err == nil {
		t.Error("zero spread should be rejected")
	}

	tooSmall := *good
	tooSmall.SizePerLevel = decimal.NewFromInt(5)
	if err := tooSmall.Validate(minSize, maxSize); err == nil {
		t.Error("size below minimum should be rejected")
	}

	noLevels := *good
	noLevels.Levels = 0
	if err := noLevels.Validate(minSize, maxSize); err == nil {
		t.Error("zero levels should be rejected")
	}
}

func TestInventoryState_Deviation(t *testing.T) {
	state := &InventoryState{
		CurrentRatio: decimal.NewFromFloat(0.75),
		TargetRatio:  decimal.NewFromFloat(0.50),
	}
	if !state.Deviation().Equal(decimal.NewFromFloat(0.25)) {
		t.Fatalf("got deviation %s", state.Deviation())
	}

	under := &InventoryState{
		CurrentRatio: decimal.NewFromFloat(0.30),
		TargetRatio:  decimal.NewFromFloat(0.50),
	}
	if !under.Deviation().Equal(decimal.NewFromFloat(0.20)) {
		t.Fatalf("deviation should be absolute, got %s", under.Deviation())
	}
}

func TestLiquidityPosition_ReconcileClaim(t *testing.T) {
	position := NewLiquidityPosition("ETH/USDC", nil)

	if !position.TryBeginReconcile() {
		t.Fatal("first claim should succeed")
	}
	if position.TryBeginReconcile() {
		t.Fatal("second claim while in flight should be skipped")
	}
	position.EndReconcile()
	if !position.TryBeginReconcile() {
		t.Fatal("claim after release should succeed")
	}
}

func TestLiquidityPosition_OpenExposure(t *testing.T) {
	position := NewLiquidityPosition("ETH/USDC", nil)
	position.TrackOrder(&Order{ID: "b1", Side: OrderSideBuy, Size: decimal.NewFromInt(100)})
	position.TrackOrder(&Order{ID: "b2", Side: OrderSideBuy, Size: decimal.NewFromInt(50)})
	position.TrackOrder(&Order{ID: "s1", Side: OrderSideSell, Size: decimal.NewFromInt(75)})

	exposure := position.OpenExposure()
	if !exposure.BuySize.Equal(decimal.NewFromInt(150)) {
		t.Errorf("buy size: got %s", exposure.BuySize)
	}
	if !exposure.SellSize.Equal(decimal.NewFromInt(75)) {
		t.Errorf("sell size: got %s", exposure.SellSize)
	}
	if !exposure.Gross().Equal(decimal.NewFromInt(225)) {
		t.Errorf("gross: got %s", exposure.Gross())
	}

	position.UntrackOrder("b2")
	if position.OpenOrderCount() != 2 {
		t.Errorf("open count after untrack: got %d", position.OpenOrderCount())
	}
}
