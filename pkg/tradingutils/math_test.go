package tradingutils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestQuoteLevels(t *testing.T) {
	mid := decimal.NewFromInt(100)

	bids := QuoteLevels(mid, dec(-0.5), 3)
	if len(bids) != 3 {
		t.Fatalf("got %d levels", len(bids))
	}
	for i, want := range []float64{99.5, 99, 98.5} {
		if !bids[i].Equal(dec(want)) {
			t.Errorf("bid %d: got %s, want %v", i, bids[i], want)
		}
	}

	asks := QuoteLevels(mid, dec(0.5), 2)
	if !asks[0].Equal(dec(100.5)) || !asks[1].Equal(dec(101)) {
		t.Errorf("asks: got %s, %s", asks[0], asks[1])
	}
}

func TestCalculateSkewedPrice(t *testing.T) {
	base := decimal.NewFromInt(100)
	target := dec(0.5)
	skew := dec(0.5)

	over := CalculateSkewedPrice(base, dec(0.8), target, skew)
	if !over.LessThan(base) {
		t.Errorf("over-long inventory should skew price down, got %s", over)
	}

	under := CalculateSkewedPrice(base, dec(0.2), target, skew)
	if !under.GreaterThan(base) {
		t.Errorf("under-long inventory should skew price up, got %s", under)
	}

	balanced := CalculateSkewedPrice(base, target, target, skew)
	if !balanced.Equal(base) {
		t.Errorf("balanced inventory should not move price, got %s", balanced)
	}
}

func TestHalfSpreadPrice(t *testing.T) {
	mid := decimal.NewFromInt(100)
	spread := dec(0.002)

	bid := HalfSpreadPrice(mid, spread, -1)
	ask := HalfSpreadPrice(mid, spread, 1)

	if !bid.Equal(dec(99.9)) {
		t.Errorf("bid: got %s, want 99.9", bid)
	}
	if !ask.Equal(dec(100.1)) {
		t.Errorf("ask: got %s, want 100.1", ask)
	}
}

func TestRelativeChange(t *testing.T) {
	if !RelativeChange(dec(110), dec(100)).Equal(dec(0.1)) {
		t.Error("10% change expected")
	}
	if !RelativeChange(dec(100), dec(100)).IsZero() {
		t.Error("no change expected")
	}
	if !RelativeChange(decimal.Zero, decimal.Zero).IsZero() {
		t.Error("zero over zero should be zero")
	}
	if !RelativeChange(dec(5), decimal.Zero).Equal(decimal.NewFromInt(1)) {
		t.Error("change from zero should saturate at 1")
	}
}

func TestRounding(t *testing.T) {
	if !RoundPrice(dec(99.123456789), 4).Equal(dec(99.1235)) {
		t.Error("price rounding failed")
	}
	if !RoundSize(dec(0.123456789), 6).Equal(dec(0.123457)) {
		t.Error("size rounding failed")
	}
}
