package repository

import (
	"github.com/yourusername/game-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	// GetByUsername возвращает пользователя вместе с его статистикой (если есть)
	GetByUsername(username string) (*entity.User, error)
	Update(user *entity.User) error
	// SaveStatistics создаёт или обновляет запись статистики пользователя
	SaveStatistics(stats *entity.Statistics) error
	// GetLeaderboard возвращает пользователей со статистикой для рейтинга,
	// отсортированных по orderBy, с пагинацией и общим количеством
	GetLeaderboard(orderBy string, limit, offset int) ([]entity.User, int64, error)
}
