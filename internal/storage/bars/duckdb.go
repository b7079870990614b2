// Package bars persists hourly bars in DuckDB so scans and backtests can run
// without hitting a remote data API.
package bars

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/logger"
	"github.com/newthinker/predator/internal/resample"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol      VARCHAR NOT NULL,
	timestamp   TIMESTAMP NOT NULL,
	open        DOUBLE,
	high        DOUBLE,
	low         DOUBLE,
	close       DOUBLE,
	volume      DOUBLE,
	trade_count BIGINT,
	vwap        DOUBLE,
	PRIMARY KEY (symbol, timestamp)
)`

// Store is a DuckDB-backed bar archive. It also serves as a BarProvider,
// resampling stored hourly bars to the requested timeframe.
type Store struct {
	db  *sql.DB
	sq  squirrel.StatementBuilderType
	log *zap.Logger
}

// Open opens (creating if needed) the database at path. ":memory:" works for tests.
func Open(path string, log *zap.Logger) (*Store, error) {
	log = logger.OrNop(log)
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	// a single connection keeps :memory: databases shared across calls
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bars table: %w", err)
	}
	return &Store{
		db:  db,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		log: log,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Name() string { return "duckdb" }

// Insert stores bars for symbol, ignoring rows whose timestamp already exists.
// It returns the number of rows offered.
func (s *Store) Insert(ctx context.Context, symbol string, bars []core.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO bars (symbol, timestamp, open, high, low, close, volume, trade_count, vwap)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Time.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", symbol, b.Time, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(bars), nil
}

// LatestTimestamp returns the newest stored bar time for symbol, if any.
func (s *Store) LatestTimestamp(ctx context.Context, symbol string) (optional.Option[time.Time], error) {
	query, args, err := s.sq.
		Select("MAX(timestamp)").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol}).
		ToSql()
	if err != nil {
		return optional.None[time.Time](), err
	}
	var ts sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&ts); err != nil {
		return optional.None[time.Time](), fmt.Errorf("latest timestamp %s: %w", symbol, err)
	}
	if !ts.Valid {
		return optional.None[time.Time](), nil
	}
	return optional.Some(ts.Time.UTC()), nil
}

// Symbols lists the symbols present in the archive.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	query, args, err := s.sq.Select("DISTINCT symbol").From("bars").OrderBy("symbol").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Load reads stored bars for symbol in [start, end]. Zero bounds are open.
func (s *Store) Load(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	q := s.sq.
		Select("timestamp", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("timestamp")
	if !start.IsZero() {
		q = q.Where(squirrel.GtOrEq{"timestamp": start.UTC()})
	}
	if !end.IsZero() {
		q = q.Where(squirrel.LtOrEq{"timestamp": end.UTC()})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []core.Bar
	for rows.Next() {
		var b core.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Time = b.Time.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBars serves archived bars. Stored rows are hourly; 4h and 1d requests
// are resampled on the way out.
func (s *Store) GetBars(ctx context.Context, req collector.Request) (map[string]core.BarSeries, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out := make(map[string]core.BarSeries, len(req.Symbols))
	for _, sym := range req.Symbols {
		bars, err := s.Load(ctx, sym, req.Start, req.End)
		if err != nil {
			return nil, core.WrapError(core.ErrDataFetchFailure, err)
		}
		if len(bars) == 0 {
			continue
		}
		if req.Timeframe != core.Timeframe1H {
			bars, err = resample.Resample(bars, req.Timeframe.Duration())
			if err != nil {
				return nil, err
			}
		}
		out[sym] = core.BarSeries{Symbol: sym, Timeframe: req.Timeframe, Bars: bars}
	}
	return out, nil
}
