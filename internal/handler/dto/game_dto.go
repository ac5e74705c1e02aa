package dto

import (
	"time"

	"github.com/yourusername/game-api/internal/domain/entity"
)

// MatchResponse представляет матч в формате для ответа клиенту
type MatchResponse struct {
	ID            uint               `json:"id"`
	MatchKey      string             `json:"matchKey"`
	Username      string             `json:"username"`
	Difficulty    int                `json:"difficulty"`
	Date          time.Time          `json:"date"`
	Time          float64            `json:"time"`
	Score         int                `json:"score"`
	Completed     bool               `json:"completed"`
	QuestionCount int                `json:"question_count"`
	Questions     entity.QuestionLog `json:"questions,omitempty"`
}

// NewMatchResponse создает DTO для матча
func NewMatchResponse(m *entity.Match, includeQuestions bool) *MatchResponse {
	resp := &MatchResponse{
		ID:            m.ID,
		MatchKey:      m.MatchKey,
		Username:      m.Username,
		Difficulty:    m.Difficulty,
		Date:          m.Date,
		Time:          m.Time,
		Score:         m.Score,
		Completed:     m.Completed,
		QuestionCount: len(m.Questions),
	}
	if includeQuestions {
		resp.Questions = m.Questions
	}
	return resp
}

// RecordAnswerResponse представляет ответ на запись отвеченного вопроса.
// Statistics заполняется только при завершении матча.
type RecordAnswerResponse struct {
	Message    string             `json:"message"`
	Match      *MatchResponse     `json:"match"`
	Statistics *entity.Statistics `json:"statistics,omitempty"`
}

// MatchHistoryItem представляет завершённый матч в истории пользователя.
// Счётчики ответов не хранятся в базе, а пересчитываются по журналу вопросов.
type MatchHistoryItem struct {
	ID             uint      `json:"id"`
	MatchKey       string    `json:"matchKey"`
	Difficulty     int       `json:"difficulty"`
	Date           time.Time `json:"date"`
	Time           float64   `json:"time"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correctAnswers"`
	WrongAnswers   int       `json:"wrongAnswers"`
}

// NewMatchHistoryItem создает DTO элемента истории с производными счётчиками
func NewMatchHistoryItem(m *entity.Match) *MatchHistoryItem {
	right, wrong := m.Tally()
	return &MatchHistoryItem{
		ID:             m.ID,
		MatchKey:       m.MatchKey,
		Difficulty:     m.Difficulty,
		Date:           m.Date,
		Time:           m.Time,
		Score:          m.Score,
		TotalQuestions: len(m.Questions),
		CorrectAnswers: right,
		WrongAnswers:   wrong,
	}
}

// PaginatedMatchHistoryResponse представляет пагинированную историю матчей
type PaginatedMatchHistoryResponse struct {
	Matches []*MatchHistoryItem `json:"matches"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
}
