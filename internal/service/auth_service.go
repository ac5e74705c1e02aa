package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/yourusername/game-api/internal/domain/entity"
	"github.com/yourusername/game-api/internal/domain/repository"
	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
	"github.com/yourusername/game-api/pkg/auth"
)

// AuthService предоставляет методы для регистрации и входа пользователей
type AuthService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

// NewAuthService создает новый сервис аутентификации
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService) (*AuthService, error) {
	if userRepo == nil || jwtService == nil {
		return nil, fmt.Errorf("userRepo and jwtService are required for AuthService")
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}, nil
}

// Register регистрирует нового пользователя. Статистика при регистрации
// не создаётся - она появится после первого завершённого матча.
func (s *AuthService) Register(username, email, password string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", apperrors.ErrValidation)
	}
	if len(username) > 50 {
		return nil, fmt.Errorf("%w: username must not exceed 50 characters", apperrors.ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", apperrors.ErrValidation)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", apperrors.ErrValidation)
	}

	// Проверяем, существует ли пользователь с таким email
	_, err := s.userRepo.GetByEmail(email)
	if err == nil {
		return nil, fmt.Errorf("%w: user with this email already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}

	// Проверяем, существует ли пользователь с таким username
	_, err = s.userRepo.GetByUsername(username)
	if err == nil {
		return nil, fmt.Errorf("%w: user with this username already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}

	user := &entity.User{
		Username: username,
		Email:    email,
		Password: password, // Хешируется в BeforeSave
		Role:     "user",
	}

	// Гонку между pre-check и Create репозиторий закрывает
	// трансляцией unique_violation в ErrConflict
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
		}
		log.Printf("[AuthService] Ошибка создания пользователя %s: %v", username, err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AuthService] Пользователь %s успешно зарегистрирован (ID=%d)", username, user.ID)
	return user, nil
}

// Login аутентифицирует пользователя и возвращает access-токен
func (s *AuthService) Login(username, password string) (string, *entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, fmt.Errorf("%w: username and password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Не раскрываем, что именно неверно
			return "", nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.CheckPassword(password) {
		log.Printf("[AuthService] Неверный пароль для пользователя %s", username)
		return "", nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации токена для пользователя ID=%d: %v", user.ID, err)
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	log.Printf("[AuthService] Пользователь ID=%d (%s) успешно вошел в систему", user.ID, user.Username)
	return token, user, nil
}
