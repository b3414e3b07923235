package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/quantmill/tdxscan/internal/contracts"
	"github.com/quantmill/tdxscan/pkg/database"
	"github.com/quantmill/tdxscan/pkg/logger"
)

const dateLayout = "2006-01-02"

// createTableSQL never drops anything; calling it against a populated
// store is a no-op.
const createTableSQL = `
	CREATE TABLE IF NOT EXISTS stock_prices (
		ticker TEXT,
		date   TEXT,
		open   REAL,
		high   REAL,
		low    REAL,
		close  REAL,
		volume INTEGER,
		amount REAL,
		PRIMARY KEY (ticker, date)
	)
`

// Store owns the persisted daily bars of one market.
type Store struct {
	db     *database.DB
	logger *logger.Logger
}

// Open opens the store file at path, creating it and its schema when
// absent. Opening an existing store leaves its rows intact.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: log}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenExisting opens the store only if the file already exists. A missing
// file surfaces as NotFoundError so the ranker can map it to an empty
// report.
func OpenExisting(path string, log *logger.Logger) (*Store, error) {
	db, err := database.OpenExisting(path)
	if err != nil {
		return nil, &contracts.NotFoundError{Path: path}
	}
	return &Store{db: db, logger: log}, nil
}

// Close closes the store file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.db.Path
}

// EnsureSchema creates the stock_prices table when missing. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.SQL.ExecContext(ctx, createTableSQL); err != nil {
		return &contracts.PersistenceError{Op: "ensure schema", Err: err}
	}
	return nil
}

// AppendBars inserts bars inside one transaction. A duplicate
// (ticker, date) is skipped via INSERT OR IGNORE rather than corrupting or
// duplicating the row; skips are counted and logged so a re-scan over
// already-ingested files stays idempotent.
func (s *Store) AppendBars(ctx context.Context, bars []contracts.DailyBar) (inserted, skipped int, err error) {
	if len(bars) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, &contracts.PersistenceError{Op: "begin append", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO stock_prices
			(ticker, date, open, high, low, close, volume, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, 0, &contracts.PersistenceError{Op: "prepare append", Err: err}
	}
	defer stmt.Close()

	for _, bar := range bars {
		res, err := stmt.ExecContext(ctx,
			bar.Ticker, bar.DateString(),
			bar.Open, bar.High, bar.Low, bar.Close,
			int64(bar.Volume), bar.Amount,
		)
		if err != nil {
			return 0, 0, &contracts.PersistenceError{Op: "append bar", Err: err}
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, &contracts.PersistenceError{Op: "commit append", Err: err}
	}

	if skipped > 0 {
		s.logger.WithFields(map[string]interface{}{
			"store":   s.db.Path,
			"skipped": skipped,
		}).Debug("Skipped duplicate bars")
	}

	return inserted, skipped, nil
}

// LatestDate returns the maximum stored date. ok is false for an empty
// store.
func (s *Store) LatestDate(ctx context.Context) (latest time.Time, ok bool, err error) {
	var raw sql.NullString
	row := s.db.SQL.QueryRowContext(ctx, `SELECT MAX(date) FROM stock_prices`)
	if err := row.Scan(&raw); err != nil {
		return time.Time{}, false, &contracts.PersistenceError{Op: "latest date", Err: err}
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, false, nil
	}

	latest, perr := time.Parse(dateLayout, raw.String)
	if perr != nil {
		return time.Time{}, false, fmt.Errorf("parse latest date %q: %w", raw.String, perr)
	}
	return latest, true, nil
}

// LoadWindow returns every bar with date >= from, ordered by
// (ticker, date) ascending. A row with a non-numeric price poisons only
// its own ticker: all bars of that ticker are dropped and the ticker is
// logged, the rest of the window loads normally.
func (s *Store) LoadWindow(ctx context.Context, from time.Time) ([]contracts.DailyBar, error) {
	rows, err := s.db.SQL.QueryContext(ctx, `
		SELECT ticker, date, open, high, low, close, volume, amount
		FROM stock_prices
		WHERE date >= ?
		ORDER BY ticker, date ASC
	`, from.Format(dateLayout))
	if err != nil {
		return nil, &contracts.PersistenceError{Op: "load window", Err: err}
	}
	defer rows.Close()

	var bars []contracts.DailyBar
	malformed := make(map[string]bool)

	for rows.Next() {
		var ticker, date string
		var open, high, low, close_, volume, amt interface{}
		if err := rows.Scan(&ticker, &date, &open, &high, &low, &close_, &volume, &amt); err != nil {
			return nil, &contracts.PersistenceError{Op: "scan window row", Err: err}
		}

		bar := contracts.DailyBar{Ticker: ticker}
		bad := false

		if bar.Date, err = time.Parse(dateLayout, date); err != nil {
			bad = true
		}
		if bar.Open, err = toFloat(open); err != nil {
			bad = true
		}
		if bar.High, err = toFloat(high); err != nil {
			bad = true
		}
		if bar.Low, err = toFloat(low); err != nil {
			bad = true
		}
		if bar.Close, err = toFloat(close_); err != nil {
			bad = true
		}
		if bar.Amount, err = toFloat(amt); err != nil {
			bad = true
		}
		if v, err := toFloat(volume); err != nil {
			bad = true
		} else {
			bar.Volume = uint64(v)
		}

		if bad {
			if !malformed[ticker] {
				malformed[ticker] = true
				s.logger.WithFields(map[string]interface{}{
					"ticker": ticker,
					"reason": string(contracts.ExclMalformedRow),
				}).Warn("Dropping ticker with malformed row")
			}
			continue
		}

		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, &contracts.PersistenceError{Op: "iterate window", Err: err}
	}

	if len(malformed) == 0 {
		return bars, nil
	}

	clean := bars[:0]
	for _, bar := range bars {
		if !malformed[bar.Ticker] {
			clean = append(clean, bar)
		}
	}
	return clean, nil
}

// toFloat converts the driver's dynamically typed column value.
func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case nil:
		return 0, fmt.Errorf("null value")
	case string:
		return strconv.ParseFloat(x, 64)
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	default:
		return 0, fmt.Errorf("unsupported column type %T", v)
	}
}
