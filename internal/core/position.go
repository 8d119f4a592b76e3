package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// PositionState is the lifecycle state of a liquidity position
type PositionState string

const (
	PositionStateInitializing PositionState = "INITIALIZING"
	PositionStateActive       PositionState = "ACTIVE"
	PositionStatePaused       PositionState = "PAUSED"
	PositionStateStopped      PositionState = "STOPPED"
)

// LiquidityPosition is one quoting position per trading pair. The orchestrator
// is the single owner; the execution coordinator mutates the open-order set
// and the strategy engine replaces the strategy, both under the orchestrator's
// single-writer discipline. At most one reconciliation runs per position at a
// time; a second attempt is skipped rather than queued.
type LiquidityPosition struct {
	ID        string
	Pair      string
	CreatedAt time.Time

	mu       sync.RWMutex
	strategy *Strategy
	state    PositionState
	orders   map[string]*Order

	reconciling int32
}

// NewLiquidityPosition creates a position in the INITIALIZING state
func NewLiquidityPosition(pair string, strategy *Strategy) *LiquidityPosition {
	return &LiquidityPosition{
		ID:        uuid.NewString(),
		Pair:      pair,
		CreatedAt: time.Now(),
		strategy:  strategy,
		state:     PositionStateInitializing,
		orders:    make(map[string]*Order),
	}
}

// State returns the current lifecycle state
func (p *LiquidityPosition) State() PositionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SetState updates the lifecycle state
func (p *LiquidityPosition) SetState(state PositionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

// Strategy returns the current strategy value
func (p *LiquidityPosition) Strategy() *Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strategy
}

// ReplaceStrategy swaps in a new strategy wholesale
func (p *LiquidityPosition) ReplaceStrategy(s *Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategy = s
}

// TrackOrder adds an order to the active set
func (p *LiquidityPosition) TrackOrder(o *Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders[o.ID] = o
}

// UntrackOrder removes an order from the active set
func (p *LiquidityPosition) UntrackOrder(orderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.orders, orderID)
}

// OpenOrders returns a snapshot of the active order set
func (p *LiquidityPosition) OpenOrders() []*Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	orders := make([]*Order, 0, len(p.orders))
	for _, o := range p.orders {
		orders = append(orders, o)
	}
	return orders
}

// OpenOrderCount returns the size of the active order set
func (p *LiquidityPosition) OpenOrderCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.orders)
}

// OpenExposure sums the size of all open orders on the position
func (p *LiquidityPosition) OpenExposure() Exposure {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var e Exposure
	for _, o := range p.orders {
		if o.Side == OrderSideBuy {
			e.BuySize = e.BuySize.Add(o.Size)
		} else {
			e.SellSize = e.SellSize.Add(o.Size)
		}
	}
	return e
}

// TryBeginReconcile claims the position for one in-flight reconciliation
// task. Returns false if another reconciliation is already running.
func (p *LiquidityPosition) TryBeginReconcile() bool {
	return atomic.CompareAndSwapInt32(&p.reconciling, 0, 1)
}

// EndReconcile releases the reconciliation claim
func (p *LiquidityPosition) EndReconcile() {
	atomic.StoreInt32(&p.reconciling, 0)
}
