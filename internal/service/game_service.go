package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/game-api/internal/domain/entity"
	"github.com/yourusername/game-api/internal/domain/repository"
	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
)

// GameOptions содержит настройки аккумулятора матчей
type GameOptions struct {
	// LockTTL - время жизни advisory-блокировки по пользователю
	LockTTL time.Duration
	// LockRetries - количество попыток взять блокировку
	LockRetries int
	// LockRetryDelay - пауза между попытками
	LockRetryDelay time.Duration
	// IdempotencyTTL - время жизни токена идемпотентности запроса
	IdempotencyTTL time.Duration
	// StatsCacheTTL - время жизни кеша статистики пользователя
	StatsCacheTTL time.Duration
}

// DefaultGameOptions возвращает настройки по умолчанию
func DefaultGameOptions() *GameOptions {
	return &GameOptions{
		LockTTL:        3 * time.Second,
		LockRetries:    5,
		LockRetryDelay: 40 * time.Millisecond,
		IdempotencyTTL: 30 * time.Minute,
		StatsCacheTTL:  60 * time.Second,
	}
}

// RecordAnswerInput - входные данные одного отвеченного вопроса
type RecordAnswerInput struct {
	Username       string
	Difficulty     int
	Question       string
	CorrectAnswer  int
	Answers        []string
	SelectedAnswer string
	Time           float64
	EndTime        time.Time
	IsLastQuestion bool

	// MatchKey - явный ключ сессии, выданный StartMatch. Если пуст,
	// используется legacy-корреляция по EndTime.
	MatchKey string

	// RequestID - необязательный токен идемпотентности. Повторный запрос
	// с тем же токеном не дописывает дубликат вопроса.
	RequestID string
}

// RecordAnswerResult - результат записи ответа
type RecordAnswerResult struct {
	Match *entity.Match
	// Statistics заполнена только при завершении матча
	Statistics *entity.Statistics
	Completed  bool
}

// GameService реализует аккумулятор матчей: приём отвеченных вопросов,
// финализацию счёта и чтение истории/статистики.
type GameService struct {
	userRepo  repository.UserRepository
	matchRepo repository.MatchRepository
	// cacheRepo может быть nil: блокировки, идемпотентность и кеш статистики
	// тогда отключены, поведение деградирует до исходной семантики.
	cacheRepo    repository.CacheRepository
	statsService *StatsService
	opts         *GameOptions
}

// NewGameService создает новый игровой сервис
func NewGameService(
	userRepo repository.UserRepository,
	matchRepo repository.MatchRepository,
	cacheRepo repository.CacheRepository,
	statsService *StatsService,
	opts *GameOptions,
) *GameService {
	if opts == nil {
		opts = DefaultGameOptions()
	}
	return &GameService{
		userRepo:     userRepo,
		matchRepo:    matchRepo,
		cacheRepo:    cacheRepo,
		statsService: statsService,
		opts:         opts,
	}
}

func userLockKey(username string) string   { return "game:lock:" + username }
func requestKey(requestID string) string   { return "game:req:" + requestID }
func statsCacheKey(username string) string { return "stats:" + username }

// StartMatch открывает новый матч и выдаёт ключ сессии
func (s *GameService) StartMatch(username string, difficulty int) (*entity.Match, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if difficulty < 1 {
		difficulty = 1
	}

	match := &entity.Match{
		MatchKey:   uuid.NewString(),
		Username:   user.Username,
		Difficulty: difficulty,
		Date:       time.Now().UTC(),
		Questions:  entity.QuestionLog{},
	}
	if err := s.matchRepo.Create(match); err != nil {
		log.Printf("[GameService] Ошибка создания матча для %s: %v", username, err)
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	log.Printf("[GameService] Открыт матч %s для пользователя %s (difficulty=%d)",
		match.MatchKey, username, difficulty)
	return match, nil
}

// RecordAnswer записывает один отвеченный вопрос в матч пользователя и,
// если вопрос последний, финализирует матч и обновляет статистику.
func (s *GameService) RecordAnswer(in RecordAnswerInput) (*RecordAnswerResult, error) {
	if err := validateRecordAnswerInput(&in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(in.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Сериализация по пользователю: выбор "создать или дописать" - это
	// read-then-write гонка при конкурентных запросах одного пользователя
	unlock := s.acquireUserLock(in.Username)
	defer unlock()

	// Повтор запроса с уже обработанным токеном идемпотентности не мутирует матч
	if dup, result := s.checkDuplicate(&in, user); dup {
		return result, nil
	}

	match, err := s.resolveMatch(&in)
	if err != nil {
		return nil, err
	}

	record, err := buildQuestionRecord(&in)
	if err != nil {
		return nil, err
	}
	match.Questions = append(match.Questions, *record)

	if !in.IsLastQuestion {
		// Дозапись вопроса и сохранение - одно обновление строки матча
		if err := s.matchRepo.Save(match); err != nil {
			log.Printf("[GameService] Ошибка сохранения матча %s: %v", match.MatchKey, err)
			return nil, fmt.Errorf("failed to save match: %w", err)
		}
		s.markRequestProcessed(in.RequestID)
		return &RecordAnswerResult{Match: match}, nil
	}

	// Последний вопрос: финализируем матч
	match.Finalize(in.EndTime, in.Time)
	rightCount, wrongCount := match.Tally()

	if err := s.matchRepo.Save(match); err != nil {
		log.Printf("[GameService] Ошибка финализации матча %s: %v", match.MatchKey, err)
		return nil, fmt.Errorf("failed to save match: %w", err)
	}

	// Матч уже сохранён; ошибка ниже оставляет статистику устаревшей
	// до следующего read repair (cmd/fix-stats)
	stats, err := s.statsService.UpdateStatistics(user, match, rightCount, wrongCount)
	if err != nil {
		log.Printf("[GameService] Матч %s сохранён, но статистика не обновлена: %v", match.MatchKey, err)
		return nil, err
	}

	s.invalidateStatsCache(in.Username)
	s.markRequestProcessed(in.RequestID)

	log.Printf("[GameService] Матч %s завершён: score=%d (right=%d, wrong=%d, difficulty=%d)",
		match.MatchKey, match.Score, rightCount, wrongCount, match.Difficulty)
	return &RecordAnswerResult{Match: match, Statistics: stats, Completed: true}, nil
}

// validateRecordAnswerInput проверяет обязательные поля запроса
func validateRecordAnswerInput(in *RecordAnswerInput) error {
	in.Username = strings.TrimSpace(in.Username)
	switch {
	case in.Username == "":
		return fmt.Errorf("%w: username is required", apperrors.ErrValidation)
	case in.Question == "":
		return fmt.Errorf("%w: question is required", apperrors.ErrValidation)
	case len(in.Answers) == 0:
		return fmt.Errorf("%w: answers are required", apperrors.ErrValidation)
	case in.SelectedAnswer == "":
		return fmt.Errorf("%w: selectedAnswer is required", apperrors.ErrValidation)
	case in.CorrectAnswer < 0 || in.CorrectAnswer >= len(in.Answers):
		return fmt.Errorf("%w: correctAnswer index %d out of range", apperrors.ErrValidation, in.CorrectAnswer)
	case in.EndTime.IsZero():
		return fmt.Errorf("%w: endTime is required", apperrors.ErrValidation)
	case in.Time < 0:
		return fmt.Errorf("%w: time must not be negative", apperrors.ErrValidation)
	}
	if in.Difficulty < 1 {
		in.Difficulty = 1
	}
	return nil
}

// buildQuestionRecord строит запись вопроса из входных данных.
// correct проставляется по индексу, selected - по совпадению текста
// (только первое совпадение, чтобы сохранить инвариант "ровно один selected").
func buildQuestionRecord(in *RecordAnswerInput) (*entity.QuestionRecord, error) {
	record := &entity.QuestionRecord{
		Text:    in.Question,
		Answers: make([]entity.AnswerOption, 0, len(in.Answers)),
	}
	selectedSeen := false
	for i, text := range in.Answers {
		selected := !selectedSeen && text == in.SelectedAnswer
		if selected {
			selectedSeen = true
		}
		record.Answers = append(record.Answers, entity.AnswerOption{
			Text:     text,
			Correct:  i == in.CorrectAnswer,
			Selected: selected,
		})
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return record, nil
}

// resolveMatch находит открытый матч для запроса.
// С matchKey - прямой поиск по ключу; без него - legacy-эвристика:
// последний матч пользователя переиспользуется, если его date совпадает
// с переданным endTime, иначе создаётся новый матч.
func (s *GameService) resolveMatch(in *RecordAnswerInput) (*entity.Match, error) {
	if in.MatchKey != "" {
		match, err := s.matchRepo.GetByKey(in.MatchKey)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, ErrMatchNotFound
			}
			return nil, fmt.Errorf("failed to look up match: %w", err)
		}
		if match.Username != in.Username {
			return nil, ErrMatchNotFound
		}
		if match.Completed {
			return nil, ErrMatchCompleted
		}
		// Date матча следует за endTime запроса до самой финализации
		match.Date = in.EndTime
		return match, nil
	}

	recent, err := s.matchRepo.GetMostRecentByUsername(in.Username)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up recent match: %w", err)
	}
	if recent != nil && !recent.Completed && recent.Date.UnixMilli() == in.EndTime.UnixMilli() {
		return recent, nil
	}

	// Новое значение endTime открывает новый матч
	return &entity.Match{
		MatchKey:   uuid.NewString(),
		Username:   in.Username,
		Difficulty: in.Difficulty,
		Date:       in.EndTime,
		Questions:  entity.QuestionLog{},
	}, nil
}

// acquireUserLock берёт advisory-блокировку по пользователю через Redis SetNX.
// При недоступном Redis или исчерпании попыток запрос пропускается (fail-open),
// как и в остальных местах, где Redis не является источником истины.
func (s *GameService) acquireUserLock(username string) func() {
	if s.cacheRepo == nil {
		return func() {}
	}

	key := userLockKey(username)
	for attempt := 0; attempt <= s.opts.LockRetries; attempt++ {
		ok, err := s.cacheRepo.SetNX(key, 1, s.opts.LockTTL)
		if err != nil {
			log.Printf("[GameService] Redis недоступен при взятии блокировки %s: %v (fail-open)", key, err)
			return func() {}
		}
		if ok {
			return func() {
				if err := s.cacheRepo.Delete(key); err != nil {
					log.Printf("[GameService] Ошибка снятия блокировки %s: %v", key, err)
				}
			}
		}
		time.Sleep(s.opts.LockRetryDelay)
	}

	log.Printf("[GameService] Блокировка %s не взята за %d попыток, продолжаем без неё", key, s.opts.LockRetries+1)
	return func() {}
}

// checkDuplicate возвращает true и текущее состояние матча, если запрос
// с таким RequestID уже был обработан
func (s *GameService) checkDuplicate(in *RecordAnswerInput, user *entity.User) (bool, *RecordAnswerResult) {
	if s.cacheRepo == nil || in.RequestID == "" {
		return false, nil
	}

	exists, err := s.cacheRepo.Exists(requestKey(in.RequestID))
	if err != nil {
		log.Printf("[GameService] Redis недоступен при проверке идемпотентности %s: %v (fail-open)", in.RequestID, err)
		return false, nil
	}
	if !exists {
		return false, nil
	}

	log.Printf("[GameService] Повтор запроса %s от %s проигнорирован", in.RequestID, in.Username)

	// Возвращаем текущее состояние матча без мутации
	var match *entity.Match
	if in.MatchKey != "" {
		match, err = s.matchRepo.GetByKey(in.MatchKey)
	} else {
		match, err = s.matchRepo.GetMostRecentByUsername(in.Username)
	}
	if err != nil {
		log.Printf("[GameService] Не удалось получить матч для повторного запроса %s: %v", in.RequestID, err)
		return false, nil
	}
	return true, &RecordAnswerResult{
		Match:      match,
		Statistics: user.Statistics,
		Completed:  match.Completed,
	}
}

// markRequestProcessed помечает токен идемпотентности обработанным.
// Вызывается только после успешного сохранения.
func (s *GameService) markRequestProcessed(requestID string) {
	if s.cacheRepo == nil || requestID == "" {
		return
	}
	if _, err := s.cacheRepo.SetNX(requestKey(requestID), 1, s.opts.IdempotencyTTL); err != nil {
		log.Printf("[GameService] Ошибка записи токена идемпотентности %s: %v", requestID, err)
	}
}

// invalidateStatsCache сбрасывает кеш статистики пользователя
func (s *GameService) invalidateStatsCache(username string) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(statsCacheKey(username)); err != nil {
		log.Printf("[GameService] Ошибка сброса кеша статистики %s: %v", username, err)
	}
}

// GetStatistics возвращает статистику пользователя. Повторное чтение без
// завершённых матчей между вызовами возвращает идентичные значения.
// Может вернуть nil, nil для пользователя без завершённых матчей.
func (s *GameService) GetStatistics(username string) (*entity.Statistics, error) {
	if s.cacheRepo != nil {
		var cached entity.Statistics
		err := s.cacheRepo.GetJSON(statsCacheKey(username), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[GameService] Ошибка чтения кеша статистики %s: %v", username, err)
		}
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.Statistics != nil && s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(statsCacheKey(username), user.Statistics, s.opts.StatsCacheTTL); err != nil {
			log.Printf("[GameService] Ошибка записи кеша статистики %s: %v", username, err)
		}
	}
	return user.Statistics, nil
}

// GetMatchHistory возвращает завершённые матчи пользователя с пагинацией,
// от новых к старым
func (s *GameService) GetMatchHistory(username string, page, limit int) ([]entity.Match, int64, error) {
	if _, err := s.userRepo.GetByUsername(username); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10 // Значение по умолчанию
	} else if limit > 100 {
		limit = 100 // Максимальный лимит
	}
	offset := (page - 1) * limit

	return s.matchRepo.ListCompletedByUsername(username, limit, offset)
}

// ListCompletedMatches возвращает все завершённые матчи (для экспорта)
func (s *GameService) ListCompletedMatches() ([]entity.Match, error) {
	return s.matchRepo.ListCompleted()
}
