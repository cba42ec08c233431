package models

import (
	"strings"
	"time"
)

// Роли пользователей
const (
	RoleAdmin      = "ADMIN"
	RoleSales      = "SATIS"
	RoleCollection = "TAHSILAT"
)

// User представляет агента или администратора
type User struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Email является ключом входа
	Email    string `json:"email" gorm:"uniqueIndex;not null;type:varchar(150)"`
	Password string `json:"-" gorm:"not null"` // Пароль не возвращается в JSON

	AdSoyad     string     `json:"ad_soyad" gorm:"type:varchar(150)"`
	Role        string     `json:"role" gorm:"type:varchar(20);default:'SATIS'"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// TableName задает имя таблицы для модели User
func (User) TableName() string {
	return "users"
}

// IsAdmin проверяет роль администратора
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsValidRole проверяет название роли
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSales, RoleCollection:
		return true
	}
	return false
}

// HasHashedPassword проверяет, что пароль уже хранится в виде bcrypt хэша
func (u *User) HasHashedPassword() bool {
	return strings.HasPrefix(u.Password, "$2a$") ||
		strings.HasPrefix(u.Password, "$2b$") ||
		strings.HasPrefix(u.Password, "$2y$")
}
