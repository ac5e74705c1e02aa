package dto

import (
	"time"

	"github.com/yourusername/game-api/internal/domain/entity"
)

// UserResponse представляет пользователя в формате для ответа клиенту
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse создает DTO для пользователя
func NewUserResponse(u *entity.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// LoginResponse представляет ответ на успешный вход
type LoginResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// LeaderboardEntryDTO представляет одну строку рейтинга
type LeaderboardEntryDTO struct {
	Rank         int     `json:"rank"`
	Username     string  `json:"username"`
	GamesPlayed  int64   `json:"gamesPlayed"`
	BestScore    float64 `json:"bestScore"`
	AverageScore float64 `json:"averageScore"`
}

// PaginatedLeaderboardResponse представляет пагинированный рейтинг
type PaginatedLeaderboardResponse struct {
	Criteria string                 `json:"criteria"`
	Entries  []*LeaderboardEntryDTO `json:"entries"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PerPage  int                    `json:"per_page"`
}

// StatisticsResponse оборачивает статистику пользователя.
// Для пользователя без завершённых матчей statistics равна null.
type StatisticsResponse struct {
	Statistics *entity.Statistics `json:"statistics"`
}
