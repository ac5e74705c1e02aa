package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/game-api/internal/handler/dto"
	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
	"github.com/yourusername/game-api/internal/service"
)

// UserHandler обрабатывает запросы, связанные с пользователями:
// статистика, история матчей и рейтинг
type UserHandler struct {
	gameService    *service.GameService
	rankingService *service.RankingService
}

// NewUserHandler создает новый обработчик пользователей
func NewUserHandler(gameService *service.GameService, rankingService *service.RankingService) *UserHandler {
	return &UserHandler{
		gameService:    gameService,
		rankingService: rankingService,
	}
}

// GetStatistics возвращает накопительную статистику пользователя.
// Для пользователя без завершённых матчей statistics равна null.
func (h *UserHandler) GetStatistics(c *gin.Context) {
	username := c.MustGet("username").(string) // Получаем из контекста

	stats, err := h.gameService.GetStatistics(username)
	if err != nil {
		h.handleUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StatisticsResponse{Statistics: stats})
}

// GetMatchHistory возвращает пагинированную историю завершённых матчей пользователя
func (h *UserHandler) GetMatchHistory(c *gin.Context) {
	username := c.MustGet("username").(string) // Получаем из контекста

	// Получаем параметры пагинации из query
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10 // Значение по умолчанию
	}

	matches, total, err := h.gameService.GetMatchHistory(username, page, limit)
	if err != nil {
		h.handleUserError(c, err)
		return
	}

	items := make([]*dto.MatchHistoryItem, len(matches))
	for i := range matches {
		items[i] = dto.NewMatchHistoryItem(&matches[i])
	}

	c.JSON(http.StatusOK, dto.PaginatedMatchHistoryResponse{
		Matches: items,
		Total:   total,
		Page:    page,
		PerPage: limit,
	})
}

// GetLeaderboard обрабатывает запрос на получение рейтинга
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	criteria := c.DefaultQuery("criteria", "bestScore")

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if err != nil || pageSize < 1 {
		pageSize = 10 // Значение по умолчанию
	}

	leaderboard, err := h.rankingService.GetLeaderboard(criteria, page, pageSize)
	if err != nil {
		h.handleUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, leaderboard)
}

// handleUserError транслирует ошибки сервисов в HTTP-ответ
func (h *UserHandler) handleUserError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error when processing the request"})
	} else {
		log.Printf("ERROR: Internal server error in UserHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
