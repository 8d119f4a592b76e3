package mock

import (
	"context"
	"testing"

	"mm_engine/internal/core"
	"mm_engine/pkg/apperrors"

	"github.com/shopspring/decimal"
)

func placeRequest(pair, clientID string) *core.PlaceOrderRequest {
	return &core.PlaceOrderRequest{
		Pair:          pair,
		Side:          core.OrderSideBuy,
		Type:          core.OrderTypeLimit,
		Price:         decimal.NewFromInt(99),
		Size:          decimal.NewFromInt(100),
		ClientOrderID: clientID,
	}
}

// Duplicate client order ids must not create duplicate orders
func TestExchange_IdempotentClientOrderID(t *testing.T) {
	ex := NewExchange("test", "ETH/USDC")
	req := placeRequest("ETH/USDC", "client-123")

	order1, err := ex.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("first place failed: %v", err)
	}
	order2, err := ex.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("second place failed: %v", err)
	}
	if order1.ID != order2.ID {
		t.Fatalf("expected same order id, got %s vs %s", order1.ID, order2.ID)
	}
}

func TestExchange_CancelAndFillLifecycle(t *testing.T) {
	ex := NewExchange("test", "ETH/USDC")
	ctx := context.Background()

	order, err := ex.PlaceOrder(ctx, placeRequest("ETH/USDC", ""))
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != core.OrderStatusOpen {
		t.Fatalf("fresh order status: %s", order.Status)
	}

	if err := ex.MarkFilled(order.ID); err != nil {
		t.Fatal(err)
	}
	// Cancelling a filled order fails
	if err := ex.CancelOrder(ctx, "ETH/USDC", order.ID); err == nil {
		t.Fatal("cancel of filled order should fail")
	}

	got, err := ex.GetOrder(ctx, "ETH/USDC", order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.OrderStatusFilled {
		t.Fatalf("status: %s", got.Status)
	}
}

func TestExchange_FailureInjection(t *testing.T) {
	ex := NewExchange("test", "ETH/USDC")
	ctx := context.Background()

	ex.FailNextPlacements(1)
	if _, err := ex.PlaceOrder(ctx, placeRequest("ETH/USDC", "")); err == nil {
		t.Fatal("injected failure did not fire")
	}
	if _, err := ex.PlaceOrder(ctx, placeRequest("ETH/USDC", "")); err != nil {
		t.Fatalf("failure should clear after one call: %v", err)
	}

	ex.SetFailConnection(true)
	if err := ex.CheckHealth(ctx); err == nil {
		t.Fatal("health check should fail")
	}
}

func TestExchange_PairSupport(t *testing.T) {
	ex := NewExchange("test", "ETH/USDC")
	ctx := context.Background()

	supported, _ := ex.SupportsTradingPair(ctx, "ETH/USDC")
	if !supported {
		t.Fatal("listed pair should be supported")
	}
	supported, _ = ex.SupportsTradingPair(ctx, "SOL/USD")
	if supported {
		t.Fatal("unlisted pair should not be supported")
	}
}

func TestWallet_Balances(t *testing.T) {
	wallet := NewWallet(map[string]decimal.Decimal{
		"ETH": decimal.NewFromInt(10),
	})
	ctx := context.Background()

	balance, err := wallet.GetBalance(ctx, "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("got %s", balance)
	}

	zero, err := wallet.GetBalance(ctx, "DOGE")
	if err != nil {
		t.Fatal(err)
	}
	if !zero.IsZero() {
		t.Fatalf("unknown asset should be zero, got %s", zero)
	}
}

func TestExchange_GetOrderNotFound(t *testing.T) {
	ex := NewExchange("test", "ETH/USDC")
	if _, err := ex.GetOrder(context.Background(), "ETH/USDC", "missing"); err != apperrors.ErrOrderNotFound {
		t.Fatalf("got %v", err)
	}
}
