// Package journal records executed fills and rebalancing trades, backing the
// engine's end-of-run performance summary
package journal

import (
	"context"
	"sync"
	"time"

	"mm_engine/internal/core"

	"github.com/shopspring/decimal"
)

// RecordKind distinguishes journal entries
type RecordKind string

const (
	RecordFill      RecordKind = "fill"
	RecordRebalance RecordKind = "rebalance"
)

// TradeRecord is one executed trade
type TradeRecord struct {
	Kind       RecordKind      `json:"kind"`
	OrderID    string          `json:"order_id,omitempty"`
	Pair       string          `json:"pair"`
	Side       core.OrderSide  `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	PnL        decimal.Decimal `json:"pnl"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Store persists trade records. Implementations must be safe for concurrent
// use.
type Store interface {
	Append(ctx context.Context, record *TradeRecord) error
	Records(ctx context.Context) ([]*TradeRecord, error)
	Close() error
}

// Summarize computes a performance summary from journal records
func Summarize(records []*TradeRecord, startedAt time.Time) *core.PerformanceSummary {
	summary := &core.PerformanceSummary{
		StartedAt: startedAt,
		StoppedAt: time.Now(),
	}
	for _, r := range records {
		summary.TradesExecuted++
		summary.Volume = summary.Volume.Add(r.Price.Mul(r.Size))
		summary.RealizedPnL = summary.RealizedPnL.Add(r.PnL)
	}
	return summary
}

// MemoryStore keeps records in memory. The default backend for tests and
// short-lived runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*TradeRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, record *TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) Records(ctx context.Context) ([]*TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TradeRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
