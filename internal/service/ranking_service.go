package service

import (
	"fmt"
	"log"

	"github.com/yourusername/game-api/internal/domain/repository"
	"github.com/yourusername/game-api/internal/handler/dto"
	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
)

// Критерии сортировки рейтинга. Это простые sorted-limit запросы к хранилищу,
// белый список защищает от подстановки произвольного SQL в Order.
var leaderboardCriteria = map[string]string{
	"bestScore":   "statistics.best_score DESC, users.id ASC",
	"gamesPlayed": "statistics.games_played DESC, users.id ASC",
}

// RankingService предоставляет рейтинги пользователей
type RankingService struct {
	userRepo repository.UserRepository
}

// NewRankingService создает новый сервис рейтингов
func NewRankingService(userRepo repository.UserRepository) *RankingService {
	return &RankingService{
		userRepo: userRepo,
	}
}

// GetLeaderboard возвращает пагинированный рейтинг пользователей по критерию.
// Поддерживаются criteria "bestScore" (по лучшему счёту) и "gamesPlayed"
// (по количеству сыгранных матчей).
func (s *RankingService) GetLeaderboard(criteria string, page, pageSize int) (*dto.PaginatedLeaderboardResponse, error) {
	if criteria == "" {
		criteria = "bestScore"
	}
	orderBy, ok := leaderboardCriteria[criteria]
	if !ok {
		return nil, fmt.Errorf("%w: unknown leaderboard criteria %q", apperrors.ErrValidation, criteria)
	}

	// Валидация параметров пагинации
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10 // Значение по умолчанию
	} else if pageSize > 100 {
		pageSize = 100 // Максимальный лимит
	}

	offset := (page - 1) * pageSize

	users, total, err := s.userRepo.GetLeaderboard(orderBy, pageSize, offset)
	if err != nil {
		log.Printf("[RankingService] Ошибка при получении рейтинга из репозитория: %v", err)
		return nil, err
	}

	// Преобразуем пользователей в DTO
	entries := make([]*dto.LeaderboardEntryDTO, len(users))
	for i, user := range users {
		entry := &dto.LeaderboardEntryDTO{
			Rank:     offset + i + 1, // Рассчитываем ранг на основе смещения и индекса
			Username: user.Username,
		}
		if user.Statistics != nil {
			entry.GamesPlayed = user.Statistics.GamesPlayed
			entry.BestScore = user.Statistics.BestScore
			entry.AverageScore = user.Statistics.AverageScore
		}
		entries[i] = entry
	}

	return &dto.PaginatedLeaderboardResponse{
		Criteria: criteria,
		Entries:  entries,
		Total:    total,
		Page:     page,
		PerPage:  pageSize,
	}, nil
}
