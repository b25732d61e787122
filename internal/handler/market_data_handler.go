package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/indicator"
	"github.com/yourorg/market-pulse/internal/provider"
	"github.com/yourorg/market-pulse/internal/repository"
	"github.com/yourorg/market-pulse/internal/service"
	"github.com/yourorg/market-pulse/internal/utils"
)

// MarketDataHandler exposes the cache read and refresh endpoints.
type MarketDataHandler struct {
	marketData *service.MarketDataService
	logger     *zap.Logger
}

// NewMarketDataHandler creates a new market data handler.
func NewMarketDataHandler(marketData *service.MarketDataService, logger *zap.Logger) *MarketDataHandler {
	return &MarketDataHandler{marketData: marketData, logger: logger}
}

// RefreshRequest is the body of a batch refresh call.
type RefreshRequest struct {
	Tickers []string `json:"tickers" binding:"required,min=1,max=100,dive,ticker"`
	Force   bool     `json:"force"`
}

// GetMarketData returns the cached record for a ticker
// GET /api/v1/market-data/:ticker
func (h *MarketDataHandler) GetMarketData(c *gin.Context) {
	ticker := c.Param("ticker")

	record, err := h.marketData.GetMarketData(c.Request.Context(), ticker)
	if errors.Is(err, repository.ErrNotFound) {
		utils.SendErrorResponse(c, http.StatusNotFound, "No data for ticker")
		return
	}
	if err != nil {
		h.logger.Error("Failed to read cache", zap.String("ticker", ticker), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to fetch market data")
		return
	}

	c.JSON(http.StatusOK, record)
}

// Refresh refreshes a batch of tickers
// POST /api/v1/market-data/refresh
func (h *MarketDataHandler) Refresh(c *gin.Context) {
	var request RefreshRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	results := h.marketData.Refresh(c.Request.Context(), request.Tickers, request.Force)

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GetHistory returns indicator-enriched daily bars for charting
// GET /api/v1/stocks/:ticker/history
func (h *MarketDataHandler) GetHistory(c *gin.Context) {
	ticker := c.Param("ticker")
	period := c.DefaultQuery("period", "1y")

	bars, err := h.marketData.GetHistory(c.Request.Context(), ticker, period)
	if err != nil {
		var exhausted *provider.AllProvidersFailedError
		if errors.As(err, &exhausted) {
			utils.SendErrorResponse(c, http.StatusBadGateway, "All providers failed")
			return
		}
		h.logger.Error("Failed to fetch history", zap.String("ticker", ticker), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to fetch history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker": ticker,
		"period": period,
		"bars":   indicator.Enrich(bars),
	})
}

// GetNews returns the stored news feed for a ticker
// GET /api/v1/stocks/:ticker/news
func (h *MarketDataHandler) GetNews(c *gin.Context) {
	ticker := c.Param("ticker")

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	items, err := h.marketData.GetNews(c.Request.Context(), ticker, limit)
	if err != nil {
		h.logger.Error("Failed to fetch news", zap.String("ticker", ticker), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to fetch news")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "news": items})
}
