package http

import (
	"net/http"
	"strconv"

	"mathduel-service/internal/app"
	"mathduel-service/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LeaderboardHandler struct {
	reader app.LeaderboardReader
	logger *zap.Logger
}

func NewLeaderboardHandler(reader app.LeaderboardReader, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{reader: reader, logger: logger.Named("leaderboard")}
}

// Top serves GET /api/leaderboard?limit=N.
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit := domain.DefaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	board, err := h.reader.Top(c.Request.Context(), domain.NormalizeLimit(limit))
	if err != nil {
		h.logger.Error("load leaderboard", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.ErrLeaderboardUnavailable.Error()})
		return
	}
	if board.TopPlayers == nil {
		board.TopPlayers = []domain.LeaderboardEntry{}
	}
	c.JSON(http.StatusOK, board)
}
