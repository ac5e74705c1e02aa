package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/game-api/internal/domain/entity"
	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
)

// MatchRepo реализует repository.MatchRepository
type MatchRepo struct {
	db *gorm.DB
}

// NewMatchRepo создает новый репозиторий матчей
func NewMatchRepo(db *gorm.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// Create создает новый матч
func (r *MatchRepo) Create(match *entity.Match) error {
	return r.db.Create(match).Error
}

// Save обновляет матч целиком, включая JSONB-журнал вопросов
func (r *MatchRepo) Save(match *entity.Match) error {
	return r.db.Save(match).Error
}

// GetByKey возвращает матч по его ключу сессии
func (r *MatchRepo) GetByKey(matchKey string) (*entity.Match, error) {
	var match entity.Match
	err := r.db.Where("match_key = ?", matchKey).First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &match, nil
}

// GetMostRecentByUsername возвращает последний по date матч пользователя
func (r *MatchRepo) GetMostRecentByUsername(username string) (*entity.Match, error) {
	var match entity.Match
	err := r.db.Where("username = ?", username).
		Order("date DESC, id DESC").
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &match, nil
}

// ListCompletedByUsername возвращает завершённые матчи пользователя с пагинацией
// и общим количеством, отсортированные от новых к старым
func (r *MatchRepo) ListCompletedByUsername(username string, limit, offset int) ([]entity.Match, int64, error) {
	var matches []entity.Match
	var total int64

	// Используем транзакцию для согласованности чтения данных и общего количества
	tx := r.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if tx.Error != nil {
		return nil, 0, tx.Error
	}

	err := tx.Model(&entity.Match{}).
		Where("username = ? AND completed = ?", username, true).
		Count(&total).Error
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	err = tx.Where("username = ? AND completed = ?", username, true).
		Order("date DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&matches).Error
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, 0, err
	}

	return matches, total, nil
}

// ListCompleted возвращает все завершённые матчи, отсортированные от новых к старым.
// Используется экспортом истории и утилитой пересчёта статистики.
func (r *MatchRepo) ListCompleted() ([]entity.Match, error) {
	var matches []entity.Match
	err := r.db.Where("completed = ?", true).
		Order("date DESC, id DESC").
		Find(&matches).Error
	// Пустой слайс - валидный результат, ErrRecordNotFound здесь не возникает
	return matches, err
}
