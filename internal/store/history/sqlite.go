package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quorum/internal/market"

	_ "modernc.org/sqlite"
)

// SQLiteCache 把排名周期内拉取的历史序列落到独立的 SQLite 文件，周期结束时 Purge。
type SQLiteCache struct {
	db    *sql.DB
	nowFn func() time.Time
}

func NewSQLiteCache(path string) (*SQLiteCache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history cache path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteCache{db: db, nowFn: time.Now}, nil
}

func (c *SQLiteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series_bars (
			instrument  TEXT NOT NULL,
			period      TEXT NOT NULL,
			open_time   INTEGER NOT NULL,
			close_time  INTEGER NOT NULL,
			open        REAL NOT NULL,
			high        REAL NOT NULL,
			low         REAL NOT NULL,
			close       REAL NOT NULL,
			volume      REAL NOT NULL,
			trades      INTEGER DEFAULT 0,
			PRIMARY KEY (instrument, period, open_time)
		);`,
		`CREATE TABLE IF NOT EXISTS series_manifest (
			instrument  TEXT NOT NULL,
			period      TEXT NOT NULL,
			rows        INTEGER DEFAULT 0,
			fetched_at  INTEGER NOT NULL,
			PRIMARY KEY (instrument, period)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, instrument, window string) (market.Series, time.Time, bool, error) {
	var fetchedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM series_manifest WHERE instrument = ? AND period = ?`,
		instrument, window).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, trades
		FROM series_bars WHERE instrument = ? AND period = ?
		ORDER BY open_time ASC`, instrument, window)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	defer rows.Close()
	var out market.Series
	for rows.Next() {
		var bar market.Candle
		if err := rows.Scan(&bar.OpenTime, &bar.CloseTime, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.Trades); err != nil {
			return nil, time.Time{}, false, err
		}
		out = append(out, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, false, err
	}
	return out, time.UnixMilli(fetchedAt), true, nil
}

// Set 以整窗替换的方式写入序列。
func (c *SQLiteCache) Set(ctx context.Context, instrument, window string, series market.Series) error {
	if instrument == "" || window == "" {
		return errors.New("instrument/window 不能为空")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM series_bars WHERE instrument = ? AND period = ?`, instrument, window); err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series_bars (instrument, period, open_time, close_time, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument, period, open_time) DO UPDATE SET
		    close_time=excluded.close_time,
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume,
		    trades=excluded.trades`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, bar := range series {
		if _, err := stmt.ExecContext(ctx, instrument, window, bar.OpenTime, bar.CloseTime, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Trades); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO series_manifest (instrument, period, rows, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(instrument, period) DO UPDATE SET rows=excluded.rows, fetched_at=excluded.fetched_at`,
		instrument, window, len(series), c.nowFn().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Purge 清空全部暂存序列。
func (c *SQLiteCache) Purge(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range []string{`DELETE FROM series_bars`, `DELETE FROM series_manifest`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
