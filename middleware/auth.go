package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

// Ключи контекста сессии
const (
	ctxUserEmail = "user_email"
	ctxUserRole  = "user_role"
	ctxUserName  = "user_name"
)

// AuthMiddleware проверяет сессию пользователя
type AuthMiddleware struct {
	auth *services.AuthService
}

// NewAuthMiddleware создает новый экземпляр AuthMiddleware
func NewAuthMiddleware(auth *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// sessionToken берет токен из cookie сессии или заголовка Authorization
func (am *AuthMiddleware) sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(am.auth.CookieName()); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// RequireAuth middleware для проверки аутентификации
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := am.sessionToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Требуется авторизация"})
			c.Abort()
			return
		}

		user, err := am.auth.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, services.ErrUserInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			c.Abort()
			return
		case errors.Is(err, services.ErrInvalidSession):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		case err != nil:
			log.Printf("❌ Ошибка проверки сессии: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка проверки сессии"})
			c.Abort()
			return
		}

		// Сохраняем информацию о пользователе в контексте
		c.Set(ctxUserEmail, user.Email)
		c.Set(ctxUserRole, user.Role)
		c.Set(ctxUserName, user.AdSoyad)

		c.Next()
	}
}

// RequireRole пропускает только указанные роли. Ставится после RequireAuth
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetCurrentRole(c)
		if role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Требуется авторизация"})
			c.Abort()
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Недостаточно прав"})
		c.Abort()
	}
}

// GetCurrentEmail возвращает email пользователя сессии
func GetCurrentEmail(c *gin.Context) string {
	return c.GetString(ctxUserEmail)
}

// GetCurrentRole возвращает роль пользователя сессии
func GetCurrentRole(c *gin.Context) string {
	return c.GetString(ctxUserRole)
}

// GetCurrentActor возвращает пользователя сессии в виде services.Actor
func GetCurrentActor(c *gin.Context) services.Actor {
	return services.Actor{Email: GetCurrentEmail(c), Role: GetCurrentRole(c)}
}
