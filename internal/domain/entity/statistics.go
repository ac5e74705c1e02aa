package entity

import (
	"time"
)

// Statistics представляет накопительную статистику пользователя по завершённым матчам.
// Запись создаётся при завершении первого матча и далее только обновляется:
// путь записи лежит через StatsService.
type Statistics struct {
	ID     uint `gorm:"primaryKey" json:"-"`
	UserID uint `gorm:"not null;uniqueIndex" json:"-"`

	GamesPlayed  int64   `gorm:"not null;default:0" json:"gamesPlayed"`
	AverageScore float64 `gorm:"not null;default:0" json:"averageScore"`
	BestScore    float64 `gorm:"not null;default:0;index:idx_statistics_best_score" json:"bestScore"`
	AverageTime  float64 `gorm:"not null;default:0" json:"averageTime"`
	BestTime     float64 `gorm:"not null;default:0" json:"bestTime"`
	RightAnswers int64   `gorm:"not null;default:0" json:"rightAnswers"`
	WrongAnswers int64   `gorm:"not null;default:0" json:"wrongAnswers"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName определяет имя таблицы для GORM
func (Statistics) TableName() string {
	return "statistics"
}
