package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/config"
	"github.com/yourorg/market-pulse/internal/event"
	"github.com/yourorg/market-pulse/internal/handler"
	"github.com/yourorg/market-pulse/internal/metrics"
	"github.com/yourorg/market-pulse/internal/middleware"
	"github.com/yourorg/market-pulse/internal/provider"
	"github.com/yourorg/market-pulse/internal/repository"
	"github.com/yourorg/market-pulse/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Open database
	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	stockRepo := repository.NewStockRepository(db, logger)
	marketRepo := repository.NewMarketDataRepository(db, logger)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	// Initialize provider adapters and fallback router
	adapters := []provider.MarketDataProvider{
		provider.NewYahooProvider(cfg.Providers.Timeout, logger),
		provider.NewEastmoneyProvider(cfg.Providers.Timeout, logger),
		provider.NewAlphaVantageProvider(cfg.Providers.AlphaVantageKey, cfg.Providers.Timeout, logger),
	}
	router := provider.NewRouter(adapters, cfg.Providers.Preferred, m, logger)

	// Initialize event publisher
	var publisher event.Publisher = event.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.ClientID, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// Initialize services
	locks := service.NewTickerLocks()
	marketDataService := service.NewMarketDataService(
		marketRepo,
		stockRepo,
		router,
		publisher,
		m,
		locks,
		logger,
		service.MarketDataConfig{
			StalenessThreshold: cfg.Refresh.StalenessThreshold,
			MaxRetries:         cfg.Refresh.MaxRetries,
			BatchConcurrency:   cfg.Refresh.BatchConcurrency,
			HistoryPeriod:      cfg.Refresh.HistoryPeriod,
		},
	)
	strategyService := service.NewStrategyService(marketRepo, publisher, locks, logger)

	// Start background refresh job
	refreshJob := service.NewRefreshJob(marketDataService, marketRepo, logger, service.RefreshJobConfig{
		Schedule:  cfg.Refresh.JobSchedule,
		BatchSize: cfg.Refresh.JobBatchSize,
		Timeout:   cfg.Refresh.JobTimeout,
	})
	if err := refreshJob.Start(); err != nil {
		logger.Fatal("Failed to start refresh job", zap.Error(err))
	}
	defer refreshJob.Stop()

	// Initialize handlers
	marketDataHandler := handler.NewMarketDataHandler(marketDataService, logger)
	strategyHandler := handler.NewStrategyHandler(strategyService, logger)

	engine := setupRouter(marketDataHandler, strategyHandler, registry, cfg.Server.ServiceKey, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func setupRouter(
	marketDataHandler *handler.MarketDataHandler,
	strategyHandler *handler.StrategyHandler,
	registry *prometheus.Registry,
	serviceKey string,
	logger *zap.Logger,
) *gin.Engine {
	handler.RegisterValidators()

	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// API routes
	v1 := router.Group("/api/v1")
	{
		marketData := v1.Group("/market-data")
		{
			marketData.GET("/:ticker", marketDataHandler.GetMarketData)
			marketData.POST("/refresh", middleware.ServiceKeyAuth(serviceKey), marketDataHandler.Refresh)
		}

		stocks := v1.Group("/stocks")
		{
			stocks.GET("/:ticker/history", marketDataHandler.GetHistory)
			stocks.GET("/:ticker/news", marketDataHandler.GetNews)
		}

		strategy := v1.Group("/strategy")
		strategy.Use(middleware.ServiceKeyAuth(serviceKey))
		{
			strategy.POST("/:ticker/lock", strategyHandler.AcceptProposal)
			strategy.DELETE("/:ticker/lock", strategyHandler.ClearLock)
		}
	}

	return router
}
