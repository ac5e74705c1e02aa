package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ExtractUsernameParam создает middleware для извлечения и валидации строкового
// параметра URL с именем пользователя.
// paramName - имя параметра в URL (например, "username").
// contextKey - ключ, под которым значение будет сохранено в контексте Gin.
func ExtractUsernameParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := strings.TrimSpace(c.Param(paramName))
		if value == "" || len(value) > 50 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			c.Abort()
			return
		}
		c.Set(contextKey, value)
		c.Next()
	}
}
