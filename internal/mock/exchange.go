// Package mock provides in-memory exchange and wallet implementations for
// testing
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mm_engine/internal/core"
	"mm_engine/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// Exchange implements core.IExchange for testing
type Exchange struct {
	name string

	mu             sync.RWMutex
	orders         map[string]*core.Order
	clientOrderMap map[string]string
	orderIDCounter int64
	supportedPairs map[string]bool
	marketData     map[string]*core.MarketData

	// Failure injection
	failNextPlace  int
	failCancel     bool
	failConnection bool

	placeCalls  int
	cancelCalls int
}

// NewExchange creates a mock exchange supporting the given pairs
func NewExchange(name string, pairs ...string) *Exchange {
	supported := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		supported[p] = true
	}
	return &Exchange{
		name:           name,
		orders:         make(map[string]*core.Order),
		clientOrderMap: make(map[string]string),
		orderIDCounter: 1000,
		supportedPairs: supported,
		marketData:     make(map[string]*core.MarketData),
	}
}

// SetMarketData overrides the snapshot returned for a pair
func (m *Exchange) SetMarketData(md *core.MarketData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketData[md.Pair] = md
}

// FailNextPlacements makes the next n PlaceOrder calls fail
func (m *Exchange) FailNextPlacements(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextPlace = n
}

// SetFailCancel makes all CancelOrder calls fail
func (m *Exchange) SetFailCancel(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCancel = fail
}

// SetFailConnection makes CheckHealth fail
func (m *Exchange) SetFailConnection(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConnection = fail
}

// MarkFilled simulates a fill observed from the venue
func (m *Exchange) MarkFilled(orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if err := order.Transition(core.OrderStatusFilled); err != nil {
		return err
	}
	order.FilledSize = order.Size
	return nil
}

// PlaceCalls returns how many placements were attempted
func (m *Exchange) PlaceCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.placeCalls
}

// CancelCalls returns how many cancellations were attempted
func (m *Exchange) CancelCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelCalls
}

func (m *Exchange) GetName() string {
	return m.name
}

func (m *Exchange) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failConnection {
		return apperrors.ErrNetwork
	}
	return nil
}

func (m *Exchange) SupportsTradingPair(ctx context.Context, pair string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supportedPairs[pair], nil
}

func (m *Exchange) PlaceOrder(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.placeCalls++

	if m.failNextPlace > 0 {
		m.failNextPlace--
		return nil, apperrors.ErrOrderRejected
	}

	// Idempotency on client order id
	if req.ClientOrderID != "" {
		if existingID, exists := m.clientOrderMap[req.ClientOrderID]; exists {
			if existing, ok := m.orders[existingID]; ok {
				return existing, nil
			}
		}
	}

	m.orderIDCounter++
	order := &core.Order{
		ID:            fmt.Sprintf("%s-%d", m.name, m.orderIDCounter),
		ClientOrderID: req.ClientOrderID,
		PositionID:    req.PositionID,
		Pair:          req.Pair,
		Side:          req.Side,
		Type:          req.Type,
		Price:         req.Price,
		Size:          req.Size,
		Status:        core.OrderStatusOpen,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	m.orders[order.ID] = order
	if req.ClientOrderID != "" {
		m.clientOrderMap[req.ClientOrderID] = order.ID
	}

	return order, nil
}

func (m *Exchange) CancelOrder(ctx context.Context, pair string, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelCalls++

	if m.failCancel {
		return apperrors.ErrNetwork
	}

	order, ok := m.orders[orderID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if order.Status.IsTerminal() {
		return apperrors.ErrOrderNotFound
	}
	return order.Transition(core.OrderStatusCancelled)
}

func (m *Exchange) GetOrder(ctx context.Context, pair string, orderID string) (*core.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *Exchange) GetMarketData(ctx context.Context, pair string) (*core.MarketData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if md, ok := m.marketData[pair]; ok {
		copied := *md
		copied.Timestamp = time.Now()
		return &copied, nil
	}
	// Default snapshot so tests do not need to seed every pair
	return &core.MarketData{
		Pair:       pair,
		Bid:        decimal.NewFromInt(99),
		Ask:        decimal.NewFromInt(101),
		Depth:      decimal.NewFromInt(100000),
		Volatility: decimal.NewFromFloat(0.01),
		Timestamp:  time.Now(),
	}, nil
}

// Wallet implements core.IWallet with fixed balances
type Wallet struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// NewWallet creates a wallet with the given asset balances
func NewWallet(balances map[string]decimal.Decimal) *Wallet {
	if balances == nil {
		balances = make(map[string]decimal.Decimal)
	}
	return &Wallet{balances: balances}
}

// SetBalance overrides one asset balance
func (w *Wallet) SetBalance(asset string, balance decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[asset] = balance
}

func (w *Wallet) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if b, ok := w.balances[asset]; ok {
		return b, nil
	}
	return decimal.Zero, nil
}
