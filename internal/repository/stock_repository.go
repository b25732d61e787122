package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/model"
)

// StockRepository handles the stock reference table and the news feed.
type StockRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStockRepository creates a new stock repository.
func NewStockRepository(db *sqlx.DB, logger *zap.Logger) *StockRepository {
	return &StockRepository{db: db, logger: logger}
}

// Ensure creates the stock row if it does not exist yet. The name is only
// written on first creation; fundamentals arrive separately.
func (r *StockRepository) Ensure(ctx context.Context, ticker, name string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stocks (ticker, name) VALUES (?, ?)
		ON CONFLICT(ticker) DO NOTHING
	`, ticker, name)
	if err != nil {
		r.logger.Error("Failed to ensure stock", zap.Error(err), zap.String("ticker", ticker))
		return err
	}
	return nil
}

// Get retrieves a stock row.
func (r *StockRepository) Get(ctx context.Context, ticker string) (*model.Stock, error) {
	var stock model.Stock
	err := r.db.GetContext(ctx, &stock, `SELECT * FROM stocks WHERE ticker = ?`, ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get stock", zap.Error(err), zap.String("ticker", ticker))
		return nil, err
	}
	return &stock, nil
}

// UpdateFundamentals merges a provider's fundamentals into the stock row.
// Fields the provider could not supply stay at their stored values.
func (r *StockRepository) UpdateFundamentals(ctx context.Context, ticker string, f *model.Fundamentals) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE stocks SET
			sector              = COALESCE(?, sector),
			industry            = COALESCE(?, industry),
			market_cap          = COALESCE(?, market_cap),
			pe_ratio            = COALESCE(?, pe_ratio),
			forward_pe          = COALESCE(?, forward_pe),
			eps                 = COALESCE(?, eps),
			dividend_yield      = COALESCE(?, dividend_yield),
			beta                = COALESCE(?, beta),
			fifty_two_week_high = COALESCE(?, fifty_two_week_high),
			fifty_two_week_low  = COALESCE(?, fifty_two_week_low)
		WHERE ticker = ?
	`,
		f.Sector, f.Industry, f.MarketCap, f.PERatio, f.ForwardPE,
		f.EPS, f.DividendYield, f.Beta, f.FiftyTwoWeekHigh, f.FiftyTwoWeekLow,
		ticker,
	)
	if err != nil {
		r.logger.Error("Failed to update fundamentals", zap.Error(err), zap.String("ticker", ticker))
		return err
	}
	return nil
}

// Delete removes a stock. The cache record and news cascade with it.
func (r *StockRepository) Delete(ctx context.Context, ticker string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stocks WHERE ticker = ?`, ticker)
	if err != nil {
		r.logger.Error("Failed to delete stock", zap.Error(err), zap.String("ticker", ticker))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertNews stores news items, ignoring ones already present by id.
func (r *StockRepository) InsertNews(ctx context.Context, items []model.NewsItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO stock_news (id, ticker, title, publisher, link, publish_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range items {
		if _, err := stmt.ExecContext(ctx, n.ID, n.Ticker, n.Title, n.Publisher, n.Link, n.PublishTime); err != nil {
			r.logger.Error("Failed to insert news", zap.Error(err), zap.String("id", n.ID))
			return err
		}
	}
	return tx.Commit()
}

// GetNews returns the most recent news items for a ticker.
func (r *StockRepository) GetNews(ctx context.Context, ticker string, limit int) ([]model.NewsItem, error) {
	var items []model.NewsItem
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM stock_news
		WHERE ticker = ?
		ORDER BY publish_time DESC
		LIMIT ?
	`, ticker, limit)
	if err != nil {
		r.logger.Error("Failed to get news", zap.Error(err), zap.String("ticker", ticker))
		return nil, err
	}
	return items, nil
}
