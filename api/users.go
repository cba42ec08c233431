package api

import (
	"log"
	"net/http"

	"backend_kredicrm/middleware"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

// UsersAPI управление пользователями (только администратор)
type UsersAPI struct {
	users *services.UserService
}

// NewUsersAPI создает новый экземпляр UsersAPI
func NewUsersAPI(users *services.UserService) *UsersAPI {
	return &UsersAPI{users: users}
}

// GetUsers возвращает список пользователей, опционально по роли
func (api *UsersAPI) GetUsers(c *gin.Context) {
	users, err := api.users.List(c.Request.Context(), c.Query("role"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "total": len(users)})
}

// GetUser возвращает пользователя по ID
func (api *UsersAPI) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := api.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// CreateUser создает нового пользователя
func (api *UsersAPI) CreateUser(c *gin.Context) {
	var input services.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	user, err := api.users.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("✅ Пользователь %s (%s) создан администратором %s", user.Email, user.Role, middleware.GetCurrentEmail(c))
	c.JSON(http.StatusCreated, gin.H{
		"message": "Пользователь успешно создан",
		"data":    user,
	})
}

// UpdateUser обновляет пользователя
func (api *UsersAPI) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UserUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	user, err := api.users.Update(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Пользователь успешно обновлен",
		"data":    user,
	})
}

// DeleteUser деактивирует пользователя. Записи в журнале остаются привязаны к email
func (api *UsersAPI) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := api.users.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Пользователь деактивирован"})
}
