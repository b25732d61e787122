package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/repository"
)

// RefreshJobConfig tunes the background sweep.
type RefreshJobConfig struct {
	Schedule  string
	BatchSize int
	Timeout   time.Duration
}

// RefreshJob periodically force-refreshes the tickers whose cache records
// are oldest, so the dashboard stays warm without a user asking.
type RefreshJob struct {
	marketData *MarketDataService
	marketRepo *repository.MarketDataRepository
	logger     *zap.Logger
	cfg        RefreshJobConfig
	cron       *cron.Cron
}

// NewRefreshJob creates the background refresh job.
func NewRefreshJob(marketData *MarketDataService, marketRepo *repository.MarketDataRepository, logger *zap.Logger, cfg RefreshJobConfig) *RefreshJob {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 5m"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &RefreshJob{
		marketData: marketData,
		marketRepo: marketRepo,
		logger:     logger,
		cfg:        cfg,
		cron:       cron.New(),
	}
}

// Start schedules the sweep. Returns an error only if the schedule
// expression is invalid.
func (j *RefreshJob) Start() error {
	if _, err := j.cron.AddFunc(j.cfg.Schedule, j.runOnce); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("Refresh job started",
		zap.String("schedule", j.cfg.Schedule),
		zap.Int("batch_size", j.cfg.BatchSize))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (j *RefreshJob) Stop() {
	<-j.cron.Stop().Done()
}

// runOnce sweeps one batch of the stalest tickers.
func (j *RefreshJob) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()

	tickers, err := j.marketRepo.ListStalest(ctx, j.cfg.BatchSize)
	if err != nil {
		j.logger.Error("Refresh sweep failed to list tickers", zap.Error(err))
		return
	}
	if len(tickers) == 0 {
		return
	}

	results := j.marketData.Refresh(ctx, tickers, true)

	var failed int
	for _, res := range results {
		if res.Err != nil && !res.Stale {
			failed++
		}
	}
	j.logger.Info("Refresh sweep finished",
		zap.Int("tickers", len(tickers)),
		zap.Int("failed", failed))
}
