package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/points-ledger-engine/internal/service"
	"github.com/rs/zerolog"
)

// RankingHandler serves the public read endpoints
type RankingHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewRankingHandler creates a new RankingHandler
func NewRankingHandler(services *service.Services, log zerolog.Logger) *RankingHandler {
	return &RankingHandler{
		services: services,
		log:      log.With().Str("handler", "ranking").Logger(),
	}
}

// GetLeaderboard handles GET /v1/leaderboard?limit=
func (h *RankingHandler) GetLeaderboard(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	entries, err := h.services.Ranking.GetLedgerLeaderboard(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetScoreboard handles GET /v1/scoreboard?limit=
func (h *RankingHandler) GetScoreboard(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	entries, err := h.services.Ranking.GetEngagementScoreboard(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetBalance handles GET /v1/users/:user_id/balance
func (h *RankingHandler) GetBalance(c *gin.Context) {
	balance, err := h.services.Ledger.GetUserBalance(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// GetHistory handles GET /v1/users/:user_id/ledger?limit=
func (h *RankingHandler) GetHistory(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	entries, err := h.services.Ledger.History(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
