package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	apperrors "github.com/yourusername/game-api/internal/pkg/errors"

	"github.com/yourusername/game-api/internal/config"
	"github.com/yourusername/game-api/internal/domain/entity"
	pgRepo "github.com/yourusername/game-api/internal/repository/postgres"
	"github.com/yourusername/game-api/internal/service"
	"github.com/yourusername/game-api/pkg/database"
)

// Утилита восстановления статистики: пересчитывает агрегаты всех
// пользователей по их завершённым матчам. Запускается вручную, когда
// обновление статистики после завершения матча не прошло и агрегаты
// разошлись с историей.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	userRepo := pgRepo.NewUserRepo(db)
	matchRepo := pgRepo.NewMatchRepo(db)
	statsService := service.NewStatsService(userRepo, cfg.Game.BestTimeAsMinimum)

	matches, err := matchRepo.ListCompleted()
	if err != nil {
		log.Fatalf("Failed to load completed matches: %v", err)
	}
	fmt.Printf("Loaded %d completed matches\n", len(matches))

	// Группируем матчи по пользователю
	byUser := make(map[string][]entity.Match)
	for _, m := range matches {
		byUser[m.Username] = append(byUser[m.Username], m)
	}

	var fixed, skipped int
	for username, userMatches := range byUser {
		user, err := userRepo.GetByUsername(username)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				// Матчи-сироты: пользователь удалён, агрегировать некуда
				log.Printf("Пользователь %s не найден, пропускаем %d матчей", username, len(userMatches))
				skipped++
				continue
			}
			log.Fatalf("Failed to load user %s: %v", username, err)
		}

		stats, err := statsService.RecomputeStatistics(user, userMatches)
		if err != nil {
			log.Fatalf("Failed to recompute statistics for %s: %v", username, err)
		}
		fmt.Printf("%s: games=%d avg=%.2f best=%.2f right=%d wrong=%d\n",
			username, stats.GamesPlayed, stats.AverageScore, stats.BestScore,
			stats.RightAnswers, stats.WrongAnswers)
		fixed++
	}

	fmt.Printf("Done. Recomputed statistics for %d users, skipped %d.\n", fixed, skipped)
}
