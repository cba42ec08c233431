package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"backend_kredicrm/middleware"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=3,max=128"`
}

// AuthAPI вход, выход и текущая сессия
type AuthAPI struct {
	auth         *services.AuthService
	secureCookie bool
}

// NewAuthAPI создает новый экземпляр AuthAPI
func NewAuthAPI(auth *services.AuthService, secureCookie bool) *AuthAPI {
	return &AuthAPI{auth: auth, secureCookie: secureCookie}
}

// Структурированное логирование для авторизации
func logAuthOperation(operation, email string, userID uint, details map[string]interface{}) {
	logData := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"operation": operation,
		"email":     email,
		"user_id":   userID,
	}

	for key, value := range details {
		logData[key] = value
	}

	logJSON, _ := json.Marshal(logData)
	log.Printf("AUTH_LOG: %s", string(logJSON))
}

// Login проверяет пароль и выставляет cookie сессии
func (api *AuthAPI) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logAuthOperation("login_validation_error", req.Email, 0, map[string]interface{}{
			"error":      err.Error(),
			"status":     "failed",
			"ip_address": c.ClientIP(),
		})
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный email или пароль"})
		return
	}

	logAuthOperation("login_attempt", req.Email, 0, map[string]interface{}{
		"ip_address": c.ClientIP(),
		"user_agent": c.GetHeader("User-Agent"),
	})

	user, token, err := api.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status := "failed"
		if errors.Is(err, services.ErrUserInactive) {
			status = "inactive"
		}
		logAuthOperation("login_failed", req.Email, 0, map[string]interface{}{
			"status":     status,
			"error":      err.Error(),
			"ip_address": c.ClientIP(),
		})
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(api.auth.CookieName(), token, int(api.auth.SessionTTL().Seconds()), "/", "", api.secureCookie, true)

	logAuthOperation("login_success", user.Email, user.ID, map[string]interface{}{
		"role":       user.Role,
		"ip_address": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout удаляет cookie сессии
func (api *AuthAPI) Logout(c *gin.Context) {
	logAuthOperation("logout", middleware.GetCurrentEmail(c), 0, map[string]interface{}{
		"ip_address": c.ClientIP(),
	})
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(api.auth.CookieName(), "", -1, "/", "", api.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Выход выполнен"})
}

// Me возвращает пользователя текущей сессии
func (api *AuthAPI) Me(c *gin.Context) {
	user, err := api.auth.CurrentUser(c.Request.Context(), middleware.GetCurrentEmail(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}
