package service

import (
	"fmt"
	"log"
	"math"

	"github.com/yourusername/game-api/internal/domain/entity"
	"github.com/yourusername/game-api/internal/domain/repository"
)

// StatsService сворачивает завершённые матчи в накопительную статистику пользователя.
// Это единственный путь записи в Statistics.
type StatsService struct {
	userRepo repository.UserRepository

	// bestTimeAsMinimum переключает семантику bestTime на минимум.
	// Историческое поведение системы - максимум, несмотря на название поля,
	// поэтому по умолчанию флаг выключен (bug-совместимость).
	bestTimeAsMinimum bool
}

// NewStatsService создает новый сервис статистики
func NewStatsService(userRepo repository.UserRepository, bestTimeAsMinimum bool) *StatsService {
	return &StatsService{
		userRepo:          userRepo,
		bestTimeAsMinimum: bestTimeAsMinimum,
	}
}

// round2 округляет до 2 знаков после запятой
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UpdateStatistics сворачивает один завершённый матч в агрегат пользователя
// и сохраняет результат. Средние пересчитываются инкрементально, без
// обращения к истории матчей.
func (s *StatsService) UpdateStatistics(user *entity.User, match *entity.Match, rightCount, wrongCount int) (*entity.Statistics, error) {
	if user == nil || match == nil {
		return nil, fmt.Errorf("user and match are required for statistics update")
	}

	score := float64(match.Score)
	elapsed := match.Time

	stats := user.Statistics
	if stats == nil {
		// Первый завершённый матч: агрегат инициализируется напрямую из матча
		stats = &entity.Statistics{
			UserID:       user.ID,
			GamesPlayed:  1,
			AverageScore: score,
			BestScore:    score,
			AverageTime:  elapsed,
			BestTime:     elapsed,
			RightAnswers: int64(rightCount),
			WrongAnswers: int64(wrongCount),
		}
	} else {
		prevGames := stats.GamesPlayed
		stats.GamesPlayed = prevGames + 1
		stats.AverageScore = round2((stats.AverageScore*float64(prevGames) + score) / float64(stats.GamesPlayed))
		stats.BestScore = round2(math.Max(stats.BestScore, score))
		stats.AverageTime = round2((stats.AverageTime*float64(prevGames) + elapsed) / float64(stats.GamesPlayed))
		stats.BestTime = s.foldBestTime(stats.BestTime, elapsed)
		stats.RightAnswers += int64(rightCount)
		stats.WrongAnswers += int64(wrongCount)
	}

	if err := s.userRepo.SaveStatistics(stats); err != nil {
		log.Printf("[StatsService] Ошибка сохранения статистики пользователя %s: %v", user.Username, err)
		return nil, fmt.Errorf("failed to save statistics: %w", err)
	}

	user.Statistics = stats
	log.Printf("[StatsService] Статистика пользователя %s обновлена: games=%d, avg=%.2f, best=%.2f",
		user.Username, stats.GamesPlayed, stats.AverageScore, stats.BestScore)
	return stats, nil
}

// RecomputeStatistics пересобирает агрегат пользователя с нуля по полной
// истории его завершённых матчей и сохраняет результат. Используется для
// восстановления консистентности, когда обновление статистики после
// завершения матча не прошло.
func (s *StatsService) RecomputeStatistics(user *entity.User, matches []entity.Match) (*entity.Statistics, error) {
	if user == nil {
		return nil, fmt.Errorf("user is required for statistics recompute")
	}

	stats := &entity.Statistics{UserID: user.ID}
	var sumScore, sumTime float64
	for i := range matches {
		m := &matches[i]
		if !m.Completed {
			continue
		}
		right, wrong := m.Tally()
		score := float64(m.Score)

		if stats.GamesPlayed == 0 {
			stats.BestScore = score
			stats.BestTime = m.Time
		} else {
			stats.BestScore = math.Max(stats.BestScore, score)
			stats.BestTime = s.foldBestTime(stats.BestTime, m.Time)
		}
		stats.GamesPlayed++
		sumScore += score
		sumTime += m.Time
		stats.RightAnswers += int64(right)
		stats.WrongAnswers += int64(wrong)
	}

	if stats.GamesPlayed > 0 {
		stats.AverageScore = round2(sumScore / float64(stats.GamesPlayed))
		stats.AverageTime = round2(sumTime / float64(stats.GamesPlayed))
		stats.BestScore = round2(stats.BestScore)
	}

	if err := s.userRepo.SaveStatistics(stats); err != nil {
		return nil, fmt.Errorf("failed to save recomputed statistics: %w", err)
	}

	user.Statistics = stats
	return stats, nil
}

// foldBestTime сворачивает время нового матча в bestTime с учётом выбранной семантики
func (s *StatsService) foldBestTime(prev, elapsed float64) float64 {
	if s.bestTimeAsMinimum {
		// Осмысленная семантика: лучшее время - наименьшее.
		// Нулевое prev означает "ещё не установлено".
		if prev == 0 || elapsed < prev {
			return elapsed
		}
		return prev
	}
	// Историческое поведение: максимум
	return math.Max(prev, elapsed)
}
