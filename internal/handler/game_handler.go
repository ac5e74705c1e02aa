package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/game-api/internal/domain/entity"
	"github.com/yourusername/game-api/internal/handler/dto"
	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
	"github.com/yourusername/game-api/internal/service"
)

// Сообщения ответов аккумулятора матчей. Формат зафиксирован контрактом с UI.
const (
	msgQuestionAdded = "Question added to match"
	msgGameCompleted = "Game completed and statistics updated"
)

// GameHandler обрабатывает запросы игрового процесса
type GameHandler struct {
	gameService *service.GameService
}

// NewGameHandler создает новый игровой обработчик
func NewGameHandler(gameService *service.GameService) *GameHandler {
	return &GameHandler{
		gameService: gameService,
	}
}

// StartMatchRequest представляет запрос на открытие матча
type StartMatchRequest struct {
	Username   string `json:"username" binding:"required,max=50"`
	Difficulty int    `json:"difficulty"` // 0 = нормальная сложность
}

// StartMatch обрабатывает запрос на открытие нового матча.
// Возвращает matchKey, который клиент передаёт с каждым ответом.
func (h *GameHandler) StartMatch(c *gin.Context) {
	var req StartMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error when processing the request"})
		return
	}

	match, err := h.gameService.StartMatch(req.Username, req.Difficulty)
	if err != nil {
		h.handleGameError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewMatchResponse(match, false))
}

// RecordAnswerRequest представляет запрос на запись отвеченного вопроса.
// CorrectAnswer и EndTime - указатели, чтобы отличать отсутствующее поле
// от валидного нулевого значения (индекс 0, нулевая метка).
type RecordAnswerRequest struct {
	Username       string   `json:"username"`
	Difficulty     int      `json:"difficulty"`
	Question       string   `json:"question"`
	CorrectAnswer  *int     `json:"correctAnswer"`
	Answers        []string `json:"answers"`
	SelectedAnswer string   `json:"selectedAnswer"`
	Time           float64  `json:"time"`
	EndTime        *int64   `json:"endTime"` // epoch millis
	IsLastQuestion bool     `json:"isLastQuestion"`
	MatchKey       string   `json:"matchKey"`
	RequestID      string   `json:"requestId"`
}

// RecordAnswer обрабатывает запись одного отвеченного вопроса
func (h *GameHandler) RecordAnswer(c *gin.Context) {
	var req RecordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error when processing the request"})
		return
	}

	if req.CorrectAnswer == nil || req.EndTime == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error when processing the request"})
		return
	}

	result, err := h.gameService.RecordAnswer(service.RecordAnswerInput{
		Username:       req.Username,
		Difficulty:     req.Difficulty,
		Question:       req.Question,
		CorrectAnswer:  *req.CorrectAnswer,
		Answers:        req.Answers,
		SelectedAnswer: req.SelectedAnswer,
		Time:           req.Time,
		EndTime:        time.UnixMilli(*req.EndTime).UTC(),
		IsLastQuestion: req.IsLastQuestion,
		MatchKey:       req.MatchKey,
		RequestID:      req.RequestID,
	})
	if err != nil {
		h.handleGameError(c, err)
		return
	}

	resp := dto.RecordAnswerResponse{
		Message: msgQuestionAdded,
		Match:   dto.NewMatchResponse(result.Match, true),
	}
	if result.Completed {
		resp.Message = msgGameCompleted
		resp.Statistics = result.Statistics
	}

	c.JSON(http.StatusOK, resp)
}

// ExportMatches экспортирует все завершённые матчи в XLSX или CSV.
// Формат задаётся query-параметром format (по умолчанию xlsx).
func (h *GameHandler) ExportMatches(c *gin.Context) {
	matches, err := h.gameService.ListCompletedMatches()
	if err != nil {
		h.handleGameError(c, err)
		return
	}

	filename := fmt.Sprintf("matches_%s", time.Now().Format("2006-01-02"))
	switch c.DefaultQuery("format", "xlsx") {
	case "csv":
		h.exportCSV(c, matches, filename)
	case "xlsx":
		h.exportXLSX(c, matches, filename)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported export format"})
	}
}

// exportHeader - общий заголовок экспорта истории матчей
var exportHeader = []string{"Username", "Match Key", "Date", "Difficulty", "Score", "Time (s)", "Questions", "Correct", "Wrong"}

func matchExportRow(m *entity.Match) []string {
	right, wrong := m.Tally()
	return []string{
		m.Username,
		m.MatchKey,
		m.Date.Format(time.RFC3339),
		strconv.Itoa(m.Difficulty),
		strconv.Itoa(m.Score),
		strconv.FormatFloat(m.Time, 'f', 2, 64),
		strconv.Itoa(len(m.Questions)),
		strconv.Itoa(right),
		strconv.Itoa(wrong),
	}
}

// exportCSV экспортирует матчи в CSV
func (h *GameHandler) exportCSV(c *gin.Context, matches []entity.Match, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	w := csv.NewWriter(c.Writer)
	if err := w.Write(exportHeader); err != nil {
		log.Printf("[GameHandler] Ошибка записи CSV заголовка: %v", err)
		return
	}
	for i := range matches {
		if err := w.Write(matchExportRow(&matches[i])); err != nil {
			log.Printf("[GameHandler] Ошибка записи CSV строки: %v", err)
			return
		}
	}
	w.Flush()
}

// exportXLSX экспортирует матчи в Excel с использованием StreamWriter
func (h *GameHandler) exportXLSX(c *gin.Context, matches []entity.Match, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Матчи"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[GameHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	header := make([]interface{}, len(exportHeader))
	for i, v := range exportHeader {
		header[i] = v
	}
	if err := sw.SetRow("A1", header); err != nil {
		log.Printf("[GameHandler] Ошибка записи заголовка XLSX: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
		return
	}

	for i := range matches {
		strRow := matchExportRow(&matches[i])
		row := make([]interface{}, len(strRow))
		for j, v := range strRow {
			row[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[GameHandler] Ошибка записи строки XLSX: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
			return
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[GameHandler] Ошибка завершения StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
		return
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[GameHandler] Ошибка отправки XLSX клиенту: %v", err)
	}
}

// handleGameError транслирует ошибки игрового сервиса в HTTP-ответ.
// Тексты ответов зафиксированы контрактом с UI.
func (h *GameHandler) handleGameError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	} else if errors.Is(err, service.ErrMatchNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error when processing the request"})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in GameHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
