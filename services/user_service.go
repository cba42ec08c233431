package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend_kredicrm/models"

	"gorm.io/gorm"
)

// UserService управление пользователями админом
type UserService struct {
	db *gorm.DB
}

// NewUserService создает сервис пользователей
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UserInput данные нового пользователя
type UserInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	AdSoyad  string `json:"ad_soyad"`
	Role     string `json:"role"`
}

// UserUpdate частичное обновление пользователя
type UserUpdate struct {
	Password *string `json:"password"`
	AdSoyad  *string `json:"ad_soyad"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// List все пользователи
func (s *UserService) List(ctx context.Context, role string) ([]models.User, error) {
	query := s.db.WithContext(ctx).Order("email")
	if role != "" {
		query = query.Where("role = ?", role)
	}
	var users []models.User
	err := query.Find(&users).Error
	return users, err
}

// Get пользователь по ID
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create создает пользователя с хэшированным паролем
func (s *UserService) Create(ctx context.Context, input UserInput) (*models.User, error) {
	role := input.Role
	if role == "" {
		role = models.RoleSales
	}
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("%w: неизвестная роль %q", ErrValidation, role)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	var count int64
	s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("%w: пользователь %s уже существует", ErrValidation, email)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    email,
		Password: hash,
		AdSoyad:  input.AdSoyad,
		Role:     role,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return user, nil
}

// Update меняет роль, имя, пароль или активность
func (s *UserService) Update(ctx context.Context, id uint, input UserUpdate) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.AdSoyad != nil {
		updates["ad_soyad"] = *input.AdSoyad
	}
	if input.Role != nil {
		if !models.IsValidRole(*input.Role) {
			return nil, fmt.Errorf("%w: неизвестная роль %q", ErrValidation, *input.Role)
		}
		updates["role"] = *input.Role
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Password != nil {
		if len(*input.Password) < 6 {
			return nil, fmt.Errorf("%w: пароль короче 6 символов", ErrValidation)
		}
		hash, err := HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hash
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return s.Get(ctx, id)
}

// Deactivate отключает пользователя без удаления
func (s *UserService) Deactivate(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
