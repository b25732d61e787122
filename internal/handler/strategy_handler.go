package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/model"
	"github.com/yourorg/market-pulse/internal/repository"
	"github.com/yourorg/market-pulse/internal/service"
	"github.com/yourorg/market-pulse/internal/utils"
)

// StrategyHandler exposes the strategy lock endpoints.
type StrategyHandler struct {
	strategy *service.StrategyService
	logger   *zap.Logger
}

// NewStrategyHandler creates a new strategy handler.
func NewStrategyHandler(strategy *service.StrategyService, logger *zap.Logger) *StrategyHandler {
	return &StrategyHandler{strategy: strategy, logger: logger}
}

// AcceptProposal locks a ticker to an AI-supplied strategy
// POST /api/v1/strategy/:ticker/lock
func (h *StrategyHandler) AcceptProposal(c *gin.Context) {
	ticker := c.Param("ticker")

	var proposal model.StrategyProposal
	if err := c.ShouldBindJSON(&proposal); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.strategy.AcceptProposal(c.Request.Context(), ticker, proposal)
	if errors.Is(err, repository.ErrNotFound) {
		utils.SendErrorResponse(c, http.StatusNotFound, "No data for ticker")
		return
	}
	if err != nil {
		h.logger.Error("Failed to accept proposal", zap.String("ticker", ticker), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to accept proposal")
		return
	}

	c.JSON(http.StatusOK, record)
}

// ClearLock reverts a ticker to algorithmic levels
// DELETE /api/v1/strategy/:ticker/lock
func (h *StrategyHandler) ClearLock(c *gin.Context) {
	ticker := c.Param("ticker")

	record, err := h.strategy.ClearLock(c.Request.Context(), ticker)
	if errors.Is(err, repository.ErrNotFound) {
		utils.SendErrorResponse(c, http.StatusNotFound, "No data for ticker")
		return
	}
	if err != nil {
		h.logger.Error("Failed to clear lock", zap.String("ticker", ticker), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to clear lock")
		return
	}

	c.JSON(http.StatusOK, record)
}
