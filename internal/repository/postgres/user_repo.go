package postgres

import (
	"errors"
	"log"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/game-api/internal/domain/entity"
	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create создает нового пользователя.
// Нарушение уникальности username/email транслируется в apperrors.ErrConflict.
func (r *UserRepo) Create(user *entity.User) error {
	err := r.db.Create(user).Error
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return apperrors.ErrConflict
		}
		return err
	}
	return nil
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.Preload("Statistics").First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail возвращает пользователя по email
func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	var user entity.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername возвращает пользователя по имени вместе со статистикой
func (r *UserRepo) GetByUsername(username string) (*entity.User, error) {
	var user entity.User
	err := r.db.Preload("Statistics").Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Update обновляет информацию о пользователе
func (r *UserRepo) Update(user *entity.User) error {
	return r.db.Save(user).Error
}

// SaveStatistics создаёт или обновляет запись статистики пользователя.
// Upsert по user_id: агрегат создаётся при первом завершённом матче,
// дальше строка только мутируется.
func (r *UserRepo) SaveStatistics(stats *entity.Statistics) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"games_played", "average_score", "best_score",
			"average_time", "best_time", "right_answers", "wrong_answers",
			"updated_at",
		}),
	}).Create(stats).Error
}

// GetLeaderboard возвращает пользователей со статистикой для рейтинга с пагинацией
// и общим количеством. orderBy - готовое SQL-выражение сортировки, проверенное
// на уровне сервиса (белый список критериев).
func (r *UserRepo) GetLeaderboard(orderBy string, limit, offset int) ([]entity.User, int64, error) {
	var users []entity.User
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

	// В рейтинг входят только пользователи со статистикой (сыгравшие хотя бы один матч)
	err := tx.Model(&entity.User{}).
		Joins("JOIN statistics ON statistics.user_id = users.id").
		Count(&total).Error
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	err = tx.
		Joins("JOIN statistics ON statistics.user_id = users.id").
		Order(orderBy).
		Limit(limit).
		Offset(offset).
		Preload("Statistics").
		Find(&users).Error
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, 0, err
	}

	if total > 0 && len(users) == 0 && offset == 0 {
		log.Printf("[UserRepo.GetLeaderboard] Несогласованность: total=%d, но страница пуста", total)
	}

	return users, total, nil
}
