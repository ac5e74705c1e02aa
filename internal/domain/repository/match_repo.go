package repository

import (
	"github.com/yourusername/game-api/internal/domain/entity"
)

// MatchRepository определяет методы для работы с матчами
type MatchRepository interface {
	Create(match *entity.Match) error
	// Save обновляет матч целиком, включая JSONB-журнал вопросов.
	// Дозапись вопроса и сохранение - одна операция над одной строкой.
	Save(match *entity.Match) error
	GetByKey(matchKey string) (*entity.Match, error)
	// GetMostRecentByUsername возвращает последний по date матч пользователя
	// (legacy-корреляция сессии по endTime)
	GetMostRecentByUsername(username string) (*entity.Match, error)
	// ListCompletedByUsername возвращает завершённые матчи пользователя,
	// отсортированные по date DESC, с пагинацией и общим количеством
	ListCompletedByUsername(username string, limit, offset int) ([]entity.Match, int64, error)
	// ListCompleted возвращает все завершённые матчи (для экспорта и read repair)
	ListCompleted() ([]entity.Match, error)
}
