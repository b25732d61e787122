package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/model"
)

// MarketDataRepository owns the market_data_cache table.
type MarketDataRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewMarketDataRepository creates a new market data repository.
func NewMarketDataRepository(db *sqlx.DB, logger *zap.Logger) *MarketDataRepository {
	return &MarketDataRepository{db: db, logger: logger}
}

// Get returns the cache record for a ticker, or ErrNotFound.
func (r *MarketDataRepository) Get(ctx context.Context, ticker string) (*model.MarketDataCacheRecord, error) {
	var rec model.MarketDataCacheRecord
	err := r.db.GetContext(ctx, &rec, `SELECT * FROM market_data_cache WHERE ticker = ?`, ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get cache record", zap.Error(err), zap.String("ticker", ticker))
		return nil, err
	}
	return &rec, nil
}

// Upsert writes the whole record in one statement so readers never observe
// a partially refreshed row.
func (r *MarketDataRepository) Upsert(ctx context.Context, rec *model.MarketDataCacheRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO market_data_cache (
			ticker, current_price, change_percent,
			rsi_14, ma_20, ma_50, ma_200,
			macd_val, macd_signal, macd_hist, macd_hist_slope,
			bb_upper, bb_middle, bb_lower,
			atr_14, k_line, d_line, j_line,
			volume_ma_20, volume_ratio,
			adx_14, pivot_point, resistance_1, resistance_2, support_1, support_2,
			risk_reward_ratio, is_ai_strategy, target_price, stop_loss_price,
			market_status, last_updated
		) VALUES (
			:ticker, :current_price, :change_percent,
			:rsi_14, :ma_20, :ma_50, :ma_200,
			:macd_val, :macd_signal, :macd_hist, :macd_hist_slope,
			:bb_upper, :bb_middle, :bb_lower,
			:atr_14, :k_line, :d_line, :j_line,
			:volume_ma_20, :volume_ratio,
			:adx_14, :pivot_point, :resistance_1, :resistance_2, :support_1, :support_2,
			:risk_reward_ratio, :is_ai_strategy, :target_price, :stop_loss_price,
			:market_status, :last_updated
		)
		ON CONFLICT(ticker) DO UPDATE SET
			current_price     = excluded.current_price,
			change_percent    = excluded.change_percent,
			rsi_14            = excluded.rsi_14,
			ma_20             = excluded.ma_20,
			ma_50             = excluded.ma_50,
			ma_200            = excluded.ma_200,
			macd_val          = excluded.macd_val,
			macd_signal       = excluded.macd_signal,
			macd_hist         = excluded.macd_hist,
			macd_hist_slope   = excluded.macd_hist_slope,
			bb_upper          = excluded.bb_upper,
			bb_middle         = excluded.bb_middle,
			bb_lower          = excluded.bb_lower,
			atr_14            = excluded.atr_14,
			k_line            = excluded.k_line,
			d_line            = excluded.d_line,
			j_line            = excluded.j_line,
			volume_ma_20      = excluded.volume_ma_20,
			volume_ratio      = excluded.volume_ratio,
			adx_14            = excluded.adx_14,
			pivot_point       = excluded.pivot_point,
			resistance_1      = excluded.resistance_1,
			resistance_2      = excluded.resistance_2,
			support_1         = excluded.support_1,
			support_2         = excluded.support_2,
			risk_reward_ratio = excluded.risk_reward_ratio,
			is_ai_strategy    = excluded.is_ai_strategy,
			target_price      = excluded.target_price,
			stop_loss_price   = excluded.stop_loss_price,
			market_status     = excluded.market_status,
			last_updated      = excluded.last_updated
	`, rec)
	if err != nil {
		r.logger.Error("Failed to upsert cache record", zap.Error(err), zap.String("ticker", rec.Ticker))
		return err
	}
	return nil
}

// ListStalest returns up to limit tracked tickers ordered oldest refresh
// first. Tickers with no cache record yet sort before everything else.
func (r *MarketDataRepository) ListStalest(ctx context.Context, limit int) ([]string, error) {
	var tickers []string
	err := r.db.SelectContext(ctx, &tickers, `
		SELECT s.ticker
		FROM stocks s
		LEFT JOIN market_data_cache c ON c.ticker = s.ticker
		ORDER BY c.last_updated ASC NULLS FIRST
		LIMIT ?
	`, limit)
	if err != nil {
		r.logger.Error("Failed to list stalest tickers", zap.Error(err))
		return nil, err
	}
	return tickers, nil
}
