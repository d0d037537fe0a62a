// Package historical provides the local daily price store backing
// optimization runs and charts. Prices are synced from the market data
// client into history.db and served from there, so repeated runs do
// not hit the upstream API.
package historical

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/abidamassi/frontier/internal/database"
)

// Repository handles daily price persistence in history.db.
type Repository struct {
	historyDB *sql.DB
	log       zerolog.Logger
}

// NewRepository creates a new daily price repository.
func NewRepository(historyDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		historyDB: historyDB,
		log:       log.With().Str("repo", "historical").Logger(),
	}
}

// InitSchema creates the daily_prices table if it does not exist.
func (r *Repository) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol     TEXT    NOT NULL,
			date       TEXT    NOT NULL,
			open       REAL    NOT NULL DEFAULT 0,
			high       REAL    NOT NULL DEFAULT 0,
			low        REAL    NOT NULL DEFAULT 0,
			close      REAL    NOT NULL,
			adj_close  REAL    NOT NULL,
			volume     INTEGER NOT NULL DEFAULT 0,
			synced_at  INTEGER NOT NULL,
			PRIMARY KEY (symbol, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
	`
	if _, err := r.historyDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create daily_prices schema: %w", err)
	}
	return nil
}

// UpsertBatch stores a batch of daily prices in one transaction.
// Existing (symbol, date) rows are replaced so re-syncs pick up
// Yahoo's backfilled adjusted closes. Returns the number of rows written.
func (r *Repository) UpsertBatch(prices []DailyPrice, syncedAt int64) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	written := 0
	err := database.WithTransaction(r.historyDB, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO daily_prices (symbol, date, open, high, low, close, adj_close, volume, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				adj_close = excluded.adj_close,
				volume = excluded.volume,
				synced_at = excluded.synced_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if p.Close <= 0 {
				continue
			}
			if _, err := stmt.Exec(p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.AdjClose, p.Volume, syncedAt); err != nil {
				return fmt.Errorf("failed to upsert price %s %s: %w", p.Symbol, p.Date, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// GetRange retrieves daily prices for a symbol in [startDate, endDate],
// ordered by date ascending.
func (r *Repository) GetRange(symbol, startDate, endDate string) ([]DailyPrice, error) {
	query := `
		SELECT symbol, date, open, high, low, close, adj_close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.historyDB.Query(query, symbol, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetCoverage reports row count and date bounds for a symbol.
func (r *Repository) GetCoverage(symbol string) (*Coverage, error) {
	query := `
		SELECT COUNT(*), COALESCE(MIN(date), ''), COALESCE(MAX(date), '')
		FROM daily_prices
		WHERE symbol = ?
	`

	cov := &Coverage{Symbol: symbol}
	err := r.historyDB.QueryRow(query, symbol).Scan(&cov.Rows, &cov.FirstDate, &cov.LastDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage for %s: %w", symbol, err)
	}
	return cov, nil
}

// ListSymbols returns every symbol present in the store.
func (r *Repository) ListSymbols() ([]string, error) {
	rows, err := r.historyDB.Query("SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return symbols, nil
}

// DeleteSymbol removes all cached rows for a symbol.
func (r *Repository) DeleteSymbol(symbol string) (int64, error) {
	result, err := r.historyDB.Exec("DELETE FROM daily_prices WHERE symbol = ?", symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prices for %s: %w", symbol, err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Count returns the total row count across all symbols.
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.historyDB.QueryRow("SELECT COUNT(*) FROM daily_prices").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return count, nil
}

func scanPrices(rows *sql.Rows) ([]DailyPrice, error) {
	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.AdjClose, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}
	return prices, nil
}

// NormalizeSymbol trims whitespace and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
