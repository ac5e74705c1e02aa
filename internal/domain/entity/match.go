package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Веса начисления очков. Серверная формула является авторитетной:
// score = difficulty * (right * RightAnswerPoints) - wrong * WrongAnswerPenalty.
// Результат не ограничивается нулём снизу, отрицательный счёт допустим.
const (
	RightAnswerPoints  = 30
	WrongAnswerPenalty = 20
)

// AnswerOption представляет один вариант ответа внутри записанного вопроса
type AnswerOption struct {
	Text     string `json:"text"`
	Correct  bool   `json:"correct"`
	Selected bool   `json:"selected"`
}

// QuestionRecord представляет один отвеченный вопрос матча.
// Инварианты: ровно один вариант с Correct=true и ровно один с Selected=true.
type QuestionRecord struct {
	Text    string         `json:"text"`
	Answers []AnswerOption `json:"answers"`
}

// IsRight возвращает true, если игрок выбрал правильный вариант
func (q *QuestionRecord) IsRight() bool {
	for _, a := range q.Answers {
		if a.Selected {
			return a.Correct
		}
	}
	return false
}

// Validate проверяет инварианты записи вопроса
func (q *QuestionRecord) Validate() error {
	correct, selected := 0, 0
	for _, a := range q.Answers {
		if a.Correct {
			correct++
		}
		if a.Selected {
			selected++
		}
	}
	if correct != 1 {
		return errors.New("question record must have exactly one correct answer")
	}
	if selected != 1 {
		return errors.New("question record must have exactly one selected answer")
	}
	return nil
}

// QuestionLog - пользовательский тип для хранения журнала вопросов матча в JSONB
type QuestionLog []QuestionRecord

// Scan реализует интерфейс sql.Scanner для QuestionLog
// Используется GORM для чтения JSONB данных из базы
func (l *QuestionLog) Scan(value interface{}) error {
	// Обработка NULL значений из базы данных
	if value == nil {
		*l = QuestionLog{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	// Обработка пустого массива байтов
	if len(bytes) == 0 {
		*l = QuestionLog{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Value реализует интерфейс driver.Valuer для QuestionLog
// Используется GORM для записи журнала вопросов в JSONB в базе
func (l QuestionLog) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(l)
}

// Match представляет одно прохождение игры: упорядоченный журнал отвеченных
// вопросов и итоговый счёт после завершения.
type Match struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// MatchKey - явный идентификатор игровой сессии, выдаётся при старте матча
	// и передаётся клиентом с каждым ответом.
	MatchKey string `gorm:"size:36;not null;uniqueIndex" json:"matchKey"`

	Username   string `gorm:"size:50;not null;index" json:"username"`
	Difficulty int    `gorm:"not null;default:1" json:"difficulty"`

	// Date - временная метка завершения/записи матча. Используется для сортировки
	// истории (сначала новые) и как ключ корреляции сессии в legacy-режиме,
	// когда клиент не передаёт matchKey.
	Date time.Time `gorm:"not null;index" json:"date"`

	// Time - длительность матча в секундах, проставляется при завершении
	Time float64 `gorm:"not null;default:0" json:"time"`

	// Score определён только после завершения матча
	Score     int  `gorm:"not null;default:0" json:"score"`
	Completed bool `gorm:"not null;default:false;index" json:"completed"`

	// Questions - журнал отвеченных вопросов в порядке поступления.
	// Только добавление до завершения матча.
	Questions QuestionLog `gorm:"type:jsonb;not null;default:'[]'" json:"questions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Match) TableName() string {
	return "matches"
}

// Tally возвращает количество правильных и неправильных ответов матча.
// Счётчики не хранятся избыточно, а каждый раз пересчитываются по журналу.
func (m *Match) Tally() (right, wrong int) {
	for i := range m.Questions {
		if m.Questions[i].IsRight() {
			right++
		} else {
			wrong++
		}
	}
	return right, wrong
}

// ComputeScore вычисляет итоговый счёт матча по авторитетной серверной формуле
func (m *Match) ComputeScore() int {
	right, wrong := m.Tally()
	return m.Difficulty*(right*RightAnswerPoints) - wrong*WrongAnswerPenalty
}

// Finalize закрывает матч: проставляет счёт и метаданные завершения.
// После вызова матч считается неизменяемым, дописывать вопросы нельзя.
func (m *Match) Finalize(completedAt time.Time, elapsedSec float64) {
	m.Date = completedAt
	m.Time = elapsedSec
	m.Score = m.ComputeScore()
	m.Completed = true
}
