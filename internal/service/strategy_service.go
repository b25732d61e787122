package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/event"
	"github.com/yourorg/market-pulse/internal/model"
	"github.com/yourorg/market-pulse/internal/repository"
	"github.com/yourorg/market-pulse/internal/strategy"
)

// StrategyService owns the strategy lock transitions. It is the only
// write path for the lock fields; the refresh pipeline never touches them.
// Transitions take the shared per-ticker lock so an in-flight refresh
// cannot write a pre-lock snapshot back over a committed transition.
type StrategyService struct {
	marketRepo *repository.MarketDataRepository
	publisher  event.Publisher
	locks      *TickerLocks
	logger     *zap.Logger
}

// NewStrategyService creates a new strategy service. The locks instance
// must be the one the market data service writes under.
func NewStrategyService(marketRepo *repository.MarketDataRepository, publisher event.Publisher, locks *TickerLocks, logger *zap.Logger) *StrategyService {
	return &StrategyService{
		marketRepo: marketRepo,
		publisher:  publisher,
		locks:      locks,
		logger:     logger,
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

// lockChangedEvent is the payload published on lock transitions.
type lockChangedEvent struct {
	Ticker          string   `json:"ticker"`
	State           string   `json:"state"`
	TargetPrice     *float64 `json:"target_price,omitempty"`
	StopLossPrice   *float64 `json:"stop_loss_price,omitempty"`
	RiskRewardRatio *float64 `json:"risk_reward_ratio,omitempty"`
}

// AcceptProposal locks a ticker to an AI-supplied target/stop pair. The
// ticker must already have a cache record; accepting over an existing
// lock replaces it.
func (s *StrategyService) AcceptProposal(ctx context.Context, ticker string, proposal model.StrategyProposal) (*model.MarketDataCacheRecord, error) {
	unlock := s.locks.Lock(ticker)
	defer unlock()

	record, err := s.marketRepo.Get(ctx, ticker)
	if err != nil {
		return nil, err
	}

	strategy.Accept(record, proposal, nowUTC())
	if err := s.marketRepo.Upsert(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Strategy locked",
		zap.String("ticker", ticker),
		zap.Float64("target_price", proposal.TargetPrice),
		zap.Float64("stop_loss_price", proposal.StopLossPrice))

	s.publishLockChanged(ctx, record)
	return record, nil
}

// ClearLock reverts a ticker to algorithmic level resolution. Clearing an
// already unlocked ticker is a no-op that still succeeds.
func (s *StrategyService) ClearLock(ctx context.Context, ticker string) (*model.MarketDataCacheRecord, error) {
	unlock := s.locks.Lock(ticker)
	defer unlock()

	record, err := s.marketRepo.Get(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if strategy.StateOf(record) == strategy.Unlocked {
		return record, nil
	}

	strategy.Clear(record, nowUTC())
	if err := s.marketRepo.Upsert(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Strategy lock cleared", zap.String("ticker", ticker))

	s.publishLockChanged(ctx, record)
	return record, nil
}

func (s *StrategyService) publishLockChanged(ctx context.Context, record *model.MarketDataCacheRecord) {
	payload := lockChangedEvent{
		Ticker:          record.Ticker,
		State:           strategy.StateOf(record).String(),
		TargetPrice:     record.TargetPrice,
		StopLossPrice:   record.StopLossPrice,
		RiskRewardRatio: record.RiskRewardRatio,
	}
	if err := s.publisher.Publish(ctx, event.TopicStrategyLockChange, record.Ticker, payload); err != nil {
		s.logger.Warn("Failed to publish lock event",
			zap.String("ticker", record.Ticker),
			zap.Error(err))
	}
}
