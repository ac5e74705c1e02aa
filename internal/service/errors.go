package service

import (
	"fmt"

	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
)

// Специфичные ошибки сервисов. Обёрнуты вокруг общих сентинелов, чтобы
// обработчики могли различать и конкретный случай, и общий класс через errors.Is.
var (
	ErrUserNotFound  = fmt.Errorf("user not found: %w", apperrors.ErrNotFound)
	ErrMatchNotFound = fmt.Errorf("match not found: %w", apperrors.ErrNotFound)

	// ErrMatchCompleted возникает при попытке дописать вопрос в завершённый матч
	ErrMatchCompleted = fmt.Errorf("match already completed: %w", apperrors.ErrConflict)
)
