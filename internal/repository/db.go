// Package repository is the durable store behind the engine: the stock
// reference table, the per-ticker market data cache and the news feed,
// all on SQLite through sqlx.
package repository

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS stocks (
	ticker              TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	sector              TEXT,
	industry            TEXT,
	market_cap          REAL,
	pe_ratio            REAL,
	forward_pe          REAL,
	eps                 REAL,
	dividend_yield      REAL,
	beta                REAL,
	fifty_two_week_high REAL,
	fifty_two_week_low  REAL,
	exchange            TEXT,
	currency            TEXT NOT NULL DEFAULT 'USD'
);

CREATE TABLE IF NOT EXISTS market_data_cache (
	ticker            TEXT PRIMARY KEY REFERENCES stocks(ticker) ON DELETE CASCADE,
	current_price     REAL NOT NULL,
	change_percent    REAL NOT NULL,
	rsi_14            REAL,
	ma_20             REAL,
	ma_50             REAL,
	ma_200            REAL,
	macd_val          REAL,
	macd_signal       REAL,
	macd_hist         REAL,
	macd_hist_slope   REAL,
	bb_upper          REAL,
	bb_middle         REAL,
	bb_lower          REAL,
	atr_14            REAL,
	k_line            REAL,
	d_line            REAL,
	j_line            REAL,
	volume_ma_20      REAL,
	volume_ratio      REAL,
	adx_14            REAL,
	pivot_point       REAL,
	resistance_1      REAL,
	resistance_2      REAL,
	support_1         REAL,
	support_2         REAL,
	risk_reward_ratio REAL,
	is_ai_strategy    INTEGER NOT NULL DEFAULT 0,
	target_price      REAL,
	stop_loss_price   REAL,
	market_status     TEXT NOT NULL DEFAULT 'CLOSED',
	last_updated      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_market_data_cache_last_updated
	ON market_data_cache(last_updated);

CREATE TABLE IF NOT EXISTS stock_news (
	id           TEXT PRIMARY KEY,
	ticker       TEXT NOT NULL REFERENCES stocks(ticker) ON DELETE CASCADE,
	title        TEXT NOT NULL,
	publisher    TEXT,
	link         TEXT NOT NULL,
	publish_time TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stock_news_ticker ON stock_news(ticker);
`

// Open opens (or creates) the SQLite database at path and ensures the
// schema. The pool is pinned to a single connection: SQLite allows one
// writer and every cache write is a whole-row upsert anyway.
func Open(path string) (*sqlx.DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return db, nil
}
