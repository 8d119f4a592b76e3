package orchestrator

import "github.com/shopspring/decimal"

const trendWindow = 12

// trendTracker keeps a short window of observed mid prices per pair and
// scores trend strength as net move over gross move, in [0, 1]. A steadily
// directional market scores near 1, a choppy one near 0.
type trendTracker struct {
	mids []decimal.Decimal
}

func (t *trendTracker) observe(mid decimal.Decimal) {
	t.mids = append(t.mids, mid)
	if len(t.mids) > trendWindow {
		t.mids = t.mids[len(t.mids)-trendWindow:]
	}
}

func (t *trendTracker) strength() decimal.Decimal {
	if len(t.mids) < 3 {
		return decimal.Zero
	}

	gross := decimal.Zero
	for i := 1; i < len(t.mids); i++ {
		gross = gross.Add(t.mids[i].Sub(t.mids[i-1]).Abs())
	}
	if gross.IsZero() {
		return decimal.Zero
	}

	net := t.mids[len(t.mids)-1].Sub(t.mids[0]).Abs()
	return net.Div(gross)
}
