package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backend_kredicrm/config"
	"backend_kredicrm/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SessionClaims содержимое подписанной сессии
type SessionClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Email возвращает email пользователя сессии
func (c *SessionClaims) Email() string {
	return c.Subject
}

// AuthService вход по email и паролю и выпуск сессий
type AuthService struct {
	db  *gorm.DB
	cfg config.JWTConfig
}

// NewAuthService создает сервис аутентификации
func NewAuthService(db *gorm.DB, cfg config.JWTConfig) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// HashPassword возвращает bcrypt хэш пароля
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

// Login проверяет пароль и возвращает пользователя с подписанным токеном.
// Пароль, хранящийся открытым текстом, после успешного входа заменяется хэшем
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if !s.checkPassword(ctx, &user, password) {
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", ErrUserInactive
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		log.Printf("⚠️ Не удалось обновить время входа %s: %v", user.Email, err)
	}
	user.LastLoginAt = &now

	token, err := s.IssueToken(&user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

func (s *AuthService) checkPassword(ctx context.Context, user *models.User, password string) bool {
	if user.HasHashedPassword() {
		return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
	}

	// Старые записи хранят пароль открытым текстом
	if user.Password == "" || user.Password != password {
		return false
	}
	hash, err := HashPassword(password)
	if err != nil {
		log.Printf("⚠️ Не удалось захэшировать пароль %s: %v", user.Email, err)
		return true
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hash).Error; err != nil {
		log.Printf("⚠️ Не удалось обновить пароль %s: %v", user.Email, err)
		return true
	}
	user.Password = hash
	log.Printf("🔐 Пароль пользователя %s переведен на bcrypt", user.Email)
	return true
}

// IssueToken подписывает сессию пользователя
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Role: user.Role,
		Name: user.AdSoyad,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			Issuer:    s.cfg.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.ExpiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет подпись и срок действия токена
func (s *AuthService) ParseToken(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithIssuer(s.cfg.Issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	if claims.Subject == "" || !models.IsValidRole(claims.Role) {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Authenticate проверяет токен и загружает пользователя сессии.
// Роль и активность берутся из базы, а не из токена
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*models.User, error) {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.CurrentUser(ctx, claims.Email())
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !models.IsValidRole(user.Role) {
		return nil, ErrInvalidSession
	}
	return user, nil
}

// CurrentUser возвращает пользователя сессии
func (s *AuthService) CurrentUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CookieName имя cookie сессии
func (s *AuthService) CookieName() string {
	return s.cfg.CookieName
}

// SessionTTL срок жизни сессии
func (s *AuthService) SessionTTL() time.Duration {
	return s.cfg.ExpiresIn
}
