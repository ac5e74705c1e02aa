package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/game-api/internal/domain/entity"
	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
)

// ============================================================================
// Моки для GameService
// ============================================================================

// MockUserRepoForGameService реализует repository.UserRepository
type MockUserRepoForGameService struct {
	mock.Mock
}

func (m *MockUserRepoForGameService) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepoForGameService) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepoForGameService) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepoForGameService) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepoForGameService) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepoForGameService) SaveStatistics(stats *entity.Statistics) error {
	args := m.Called(stats)
	return args.Error(0)
}

func (m *MockUserRepoForGameService) GetLeaderboard(orderBy string, limit, offset int) ([]entity.User, int64, error) {
	args := m.Called(orderBy, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.User), args.Get(1).(int64), args.Error(2)
}

// MockMatchRepoForGameService реализует repository.MatchRepository
type MockMatchRepoForGameService struct {
	mock.Mock
}

func (m *MockMatchRepoForGameService) Create(match *entity.Match) error {
	args := m.Called(match)
	return args.Error(0)
}

func (m *MockMatchRepoForGameService) Save(match *entity.Match) error {
	args := m.Called(match)
	return args.Error(0)
}

func (m *MockMatchRepoForGameService) GetByKey(matchKey string) (*entity.Match, error) {
	args := m.Called(matchKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Match), args.Error(1)
}

func (m *MockMatchRepoForGameService) GetMostRecentByUsername(username string) (*entity.Match, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Match), args.Error(1)
}

func (m *MockMatchRepoForGameService) ListCompletedByUsername(username string, limit, offset int) ([]entity.Match, int64, error) {
	args := m.Called(username, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Match), args.Get(1).(int64), args.Error(2)
}

func (m *MockMatchRepoForGameService) ListCompleted() ([]entity.Match, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Match), args.Error(1)
}

// MockCacheRepoForGameService реализует repository.CacheRepository
type MockCacheRepoForGameService struct {
	mock.Mock
}

func (m *MockCacheRepoForGameService) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepoForGameService) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepoForGameService) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepoForGameService) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepoForGameService) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

// ============================================================================
// Вспомогательные функции
// ============================================================================

// createTestGameService создаёт GameService без кеша (Redis-пути отключены)
func createTestGameService(
	userRepo *MockUserRepoForGameService,
	matchRepo *MockMatchRepoForGameService,
) *GameService {
	statsService := NewStatsService(userRepo, false)
	return NewGameService(userRepo, matchRepo, nil, statsService, DefaultGameOptions())
}

var testEndTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// answerInput возвращает валидный вход записи ответа
func answerInput(username, matchKey string) RecordAnswerInput {
	return RecordAnswerInput{
		Username:       username,
		Difficulty:     1,
		Question:       "Столица Франции?",
		CorrectAnswer:  0,
		Answers:        []string{"Париж", "Лондон", "Берлин"},
		SelectedAnswer: "Париж",
		Time:           12.5,
		EndTime:        testEndTime,
		MatchKey:       matchKey,
	}
}

func openMatch(key, username string) *entity.Match {
	return &entity.Match{
		ID:         1,
		MatchKey:   key,
		Username:   username,
		Difficulty: 1,
		Date:       testEndTime,
		Questions:  entity.QuestionLog{},
	}
}

// ============================================================================
// Тесты для GameService
// ============================================================================

func TestGameService_StartMatch_Success(t *testing.T) {
	// Arrange
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockMatchRepo.On("Create", mock.AnythingOfType("*entity.Match")).Return(nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	// Act
	match, err := gameService.StartMatch("player1", 2)

	// Assert: матч открыт с непустым ключом сессии
	require.NoError(t, err)
	assert.NotEmpty(t, match.MatchKey, "StartMatch должен выдать ключ сессии")
	assert.Equal(t, "player1", match.Username)
	assert.Equal(t, 2, match.Difficulty)
	assert.False(t, match.Completed)
	assert.Empty(t, match.Questions)
	mockMatchRepo.AssertExpectations(t)
}

func TestGameService_StartMatch_UserNotFound(t *testing.T) {
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	mockUserRepo.On("GetByUsername", "ghost").Return(nil, apperrors.ErrNotFound)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	_, err := gameService.StartMatch("ghost", 1)

	assert.ErrorIs(t, err, ErrUserNotFound)
	mockMatchRepo.AssertNotCalled(t, "Create")
}

func TestGameService_RecordAnswer_AppendsQuestion(t *testing.T) {
	// Arrange: не последний вопрос дописывается в открытый матч по ключу
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	match := openMatch("key-1", "player1")
	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockMatchRepo.On("GetByKey", "key-1").Return(match, nil)
	mockMatchRepo.On("Save", match).Return(nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	// Act
	result, err := gameService.RecordAnswer(answerInput("player1", "key-1"))

	// Assert: вопрос дописан, матч не завершён, статистика не трогалась
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.Nil(t, result.Statistics)
	require.Len(t, result.Match.Questions, 1)
	assert.True(t, result.Match.Questions[0].IsRight())
	mockUserRepo.AssertNotCalled(t, "SaveStatistics")
	mockMatchRepo.AssertExpectations(t)
}

func TestGameService_RecordAnswer_LastQuestionFinalizes(t *testing.T) {
	// Arrange: матч с двумя правильными ответами получает последний, неправильный
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	match := openMatch("key-1", "player1")
	match.Difficulty = 2
	match.Questions = entity.QuestionLog{
		{Text: "q1", Answers: []entity.AnswerOption{{Text: "a", Correct: true, Selected: true}, {Text: "b"}}},
		{Text: "q2", Answers: []entity.AnswerOption{{Text: "a", Correct: true, Selected: true}, {Text: "b"}}},
	}

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockUserRepo.On("SaveStatistics", mock.AnythingOfType("*entity.Statistics")).Return(nil)
	mockMatchRepo.On("GetByKey", "key-1").Return(match, nil)
	mockMatchRepo.On("Save", match).Return(nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	in := answerInput("player1", "key-1")
	in.SelectedAnswer = "Лондон" // неправильный ответ
	in.IsLastQuestion = true
	in.Time = 95.0

	// Act
	result, err := gameService.RecordAnswer(in)

	// Assert: матч финализирован, счёт посчитан, статистика обновлена
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.True(t, result.Match.Completed)
	// 2 * (2*30) - 1*20 = 100
	assert.Equal(t, 100, result.Match.Score)
	assert.Equal(t, 95.0, result.Match.Time)
	assert.Equal(t, testEndTime, result.Match.Date)

	require.NotNil(t, result.Statistics)
	assert.Equal(t, int64(1), result.Statistics.GamesPlayed)
	assert.Equal(t, 100.0, result.Statistics.BestScore)
	assert.Equal(t, int64(2), result.Statistics.RightAnswers)
	assert.Equal(t, int64(1), result.Statistics.WrongAnswers)
	mockUserRepo.AssertExpectations(t)
	mockMatchRepo.AssertExpectations(t)
}

func TestGameService_RecordAnswer_MatchKeyOfAnotherUser(t *testing.T) {
	// Чужой ключ сессии не раскрывается, возвращается ErrMatchNotFound
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockMatchRepo.On("GetByKey", "key-2").Return(openMatch("key-2", "player2"), nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	_, err := gameService.RecordAnswer(answerInput("player1", "key-2"))

	assert.ErrorIs(t, err, ErrMatchNotFound)
	mockMatchRepo.AssertNotCalled(t, "Save")
}

func TestGameService_RecordAnswer_CompletedMatchRejected(t *testing.T) {
	// Дописывание в завершённый матч отклоняется
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	match := openMatch("key-1", "player1")
	match.Completed = true

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockMatchRepo.On("GetByKey", "key-1").Return(match, nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	_, err := gameService.RecordAnswer(answerInput("player1", "key-1"))

	assert.ErrorIs(t, err, ErrMatchCompleted)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	mockMatchRepo.AssertNotCalled(t, "Save")
}

func TestGameService_RecordAnswer_LegacyReusesRecentMatch(t *testing.T) {
	// Без ключа сессии переиспользуется последний матч с тем же endTime
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	recent := openMatch("key-1", "player1")
	recent.Questions = entity.QuestionLog{
		{Text: "q1", Answers: []entity.AnswerOption{{Text: "a", Correct: true, Selected: true}, {Text: "b"}}},
	}

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockMatchRepo.On("GetMostRecentByUsername", "player1").Return(recent, nil)
	mockMatchRepo.On("Save", recent).Return(nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	// Act: endTime совпадает с date последнего матча
	result, err := gameService.RecordAnswer(answerInput("player1", ""))

	// Assert: вопрос дописан в существующий матч
	require.NoError(t, err)
	assert.Len(t, result.Match.Questions, 2)
	assert.Equal(t, "key-1", result.Match.MatchKey)
	mockMatchRepo.AssertExpectations(t)
}

func TestGameService_RecordAnswer_LegacyNewEndTimeOpensNewMatch(t *testing.T) {
	// Новое значение endTime открывает новый матч вместо дописывания
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	recent := openMatch("key-1", "player1")
	recent.Date = testEndTime.Add(-time.Hour)
	recent.Questions = entity.QuestionLog{
		{Text: "q1", Answers: []entity.AnswerOption{{Text: "a", Correct: true, Selected: true}, {Text: "b"}}},
	}

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockMatchRepo.On("GetMostRecentByUsername", "player1").Return(recent, nil)

	var saved *entity.Match
	mockMatchRepo.On("Save", mock.AnythingOfType("*entity.Match")).Run(func(args mock.Arguments) {
		saved = args.Get(0).(*entity.Match)
	}).Return(nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	// Act
	result, err := gameService.RecordAnswer(answerInput("player1", ""))

	// Assert: сохранён новый матч с одним вопросом и новым ключом
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotEqual(t, "key-1", saved.MatchKey)
	assert.Len(t, saved.Questions, 1)
	assert.Equal(t, testEndTime, saved.Date)
	assert.Len(t, result.Match.Questions, 1)
}

func TestGameService_RecordAnswer_ValidationErrors(t *testing.T) {
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)
	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	// Пустой username
	in := answerInput("", "key-1")
	_, err := gameService.RecordAnswer(in)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Индекс правильного ответа вне диапазона
	in = answerInput("player1", "key-1")
	in.CorrectAnswer = 99
	_, err = gameService.RecordAnswer(in)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Нулевой endTime
	in = answerInput("player1", "key-1")
	in.EndTime = time.Time{}
	_, err = gameService.RecordAnswer(in)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	mockUserRepo.AssertNotCalled(t, "GetByUsername")
}

func TestGameService_RecordAnswer_SelectedAnswerNotInList(t *testing.T) {
	// Выбранный ответ, которого нет среди вариантов, нарушает инвариант
	// "ровно один selected" и отклоняется
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockMatchRepo.On("GetByKey", "key-1").Return(openMatch("key-1", "player1"), nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	in := answerInput("player1", "key-1")
	in.SelectedAnswer = "Мадрид"

	_, err := gameService.RecordAnswer(in)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	mockMatchRepo.AssertNotCalled(t, "Save")
}

func TestGameService_RecordAnswer_IdempotentReplay(t *testing.T) {
	// Повтор запроса с обработанным токеном возвращает состояние без мутации
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)
	mockCacheRepo := new(MockCacheRepoForGameService)

	match := openMatch("key-1", "player1")
	match.Questions = entity.QuestionLog{
		{Text: "q1", Answers: []entity.AnswerOption{{Text: "a", Correct: true, Selected: true}, {Text: "b"}}},
	}

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockCacheRepo.On("SetNX", "game:lock:player1", mock.Anything, mock.Anything).Return(true, nil)
	mockCacheRepo.On("Delete", "game:lock:player1").Return(nil)
	mockCacheRepo.On("Exists", "game:req:req-42").Return(true, nil)
	mockMatchRepo.On("GetByKey", "key-1").Return(match, nil)

	statsService := NewStatsService(mockUserRepo, false)
	gameService := NewGameService(mockUserRepo, mockMatchRepo, mockCacheRepo, statsService, DefaultGameOptions())

	in := answerInput("player1", "key-1")
	in.RequestID = "req-42"

	// Act
	result, err := gameService.RecordAnswer(in)

	// Assert: журнал не изменился, Save не вызывался
	require.NoError(t, err)
	assert.Len(t, result.Match.Questions, 1)
	mockMatchRepo.AssertNotCalled(t, "Save")
	mockCacheRepo.AssertExpectations(t)
}

func TestGameService_RecordAnswer_LockFailOpen(t *testing.T) {
	// Недоступный Redis не блокирует запись ответа
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)
	mockCacheRepo := new(MockCacheRepoForGameService)

	match := openMatch("key-1", "player1")

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	mockCacheRepo.On("SetNX", "game:lock:player1", mock.Anything, mock.Anything).Return(false, assert.AnError)
	mockMatchRepo.On("GetByKey", "key-1").Return(match, nil)
	mockMatchRepo.On("Save", match).Return(nil)

	statsService := NewStatsService(mockUserRepo, false)
	gameService := NewGameService(mockUserRepo, mockMatchRepo, mockCacheRepo, statsService, DefaultGameOptions())

	// Act
	result, err := gameService.RecordAnswer(answerInput("player1", "key-1"))

	// Assert: запрос обработан несмотря на ошибку блокировки
	require.NoError(t, err)
	assert.Len(t, result.Match.Questions, 1)
	mockMatchRepo.AssertExpectations(t)
}

func TestGameService_GetStatistics_NoCompletedMatches(t *testing.T) {
	// Пользователь без завершённых матчей: статистики нет, это не ошибка
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	stats, err := gameService.GetStatistics("player1")

	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestGameService_GetStatistics_UserNotFound(t *testing.T) {
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	mockUserRepo.On("GetByUsername", "ghost").Return(nil, apperrors.ErrNotFound)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	_, err := gameService.GetStatistics("ghost")

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGameService_GetMatchHistory_PaginationDefaults(t *testing.T) {
	// Невалидные параметры пагинации корректируются
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	// page=0 -> 1, limit=0 -> 10, offset=0
	mockMatchRepo.On("ListCompletedByUsername", "player1", 10, 0).Return([]entity.Match{}, int64(0), nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	_, total, err := gameService.GetMatchHistory("player1", 0, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	mockMatchRepo.AssertExpectations(t)
}

func TestGameService_GetMatchHistory_MaxLimit(t *testing.T) {
	mockUserRepo := new(MockUserRepoForGameService)
	mockMatchRepo := new(MockMatchRepoForGameService)

	mockUserRepo.On("GetByUsername", "player1").Return(&entity.User{ID: 1, Username: "player1"}, nil)
	// limit=500 корректируется до 100, page=2 -> offset=100
	mockMatchRepo.On("ListCompletedByUsername", "player1", 100, 100).Return([]entity.Match{}, int64(0), nil)

	gameService := createTestGameService(mockUserRepo, mockMatchRepo)

	_, _, err := gameService.GetMatchHistory("player1", 2, 500)

	require.NoError(t, err)
	mockMatchRepo.AssertExpectations(t)
}
