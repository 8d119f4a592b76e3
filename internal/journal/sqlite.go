package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mm_engine/internal/core"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore persists trade records to a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the journal database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		order_id TEXT,
		pair TEXT NOT NULL,
		side TEXT NOT NULL,
		price TEXT NOT NULL,
		size TEXT NOT NULL,
		pnl TEXT NOT NULL,
		executed_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, record *TradeRecord) error {
	query := `INSERT INTO trades (kind, order_id, pair, side, price, size, pnl, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		string(record.Kind),
		record.OrderID,
		record.Pair,
		string(record.Side),
		record.Price.String(),
		record.Size.String(),
		record.PnL.String(),
		record.ExecutedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to write trade record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Records(ctx context.Context) ([]*TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, order_id, pair, side, price, size, pnl, executed_at FROM trades ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read trade records: %w", err)
	}
	defer rows.Close()

	var records []*TradeRecord
	for rows.Next() {
		var (
			kind, orderID, pair, side string
			price, size, pnl          string
			executedAt                int64
		)
		if err := rows.Scan(&kind, &orderID, &pair, &side, &price, &size, &pnl, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}

		priceDec, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("corrupt price in journal: %w", err)
		}
		sizeDec, err := decimal.NewFromString(size)
		if err != nil {
			return nil, fmt.Errorf("corrupt size in journal: %w", err)
		}
		pnlDec, err := decimal.NewFromString(pnl)
		if err != nil {
			return nil, fmt.Errorf("corrupt pnl in journal: %w", err)
		}

		records = append(records, &TradeRecord{
			Kind:       RecordKind(kind),
			OrderID:    orderID,
			Pair:       pair,
			Side:       core.OrderSide(side),
			Price:      priceDec,
			Size:       sizeDec,
			PnL:        pnlDec,
			ExecutedAt: time.Unix(0, executedAt),
		})
	}

	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
