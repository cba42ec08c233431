package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret используется только в режиме разработки
const DefaultJWTSecret = "kredicrm-development-secret-change-me"

// Config содержит всю конфигурацию приложения
type Config struct {
	// Основные настройки приложения
	App AppConfigStruct `json:"app"`

	// База данных
	Database DatabaseConfig `json:"database"`

	// Redis
	Redis RedisConfig `json:"redis"`

	// JWT
	JWT JWTConfig `json:"jwt"`

	// CORS
	CORS CORSConfig `json:"cors"`

	// Безопасность
	Security SecurityConfig `json:"security"`

	// Логирование
	Logging LoggingConfig `json:"logging"`

	// SMS шлюз
	SMS SMSConfig `json:"sms"`

	// Telegram уведомления
	Telegram TelegramConfig `json:"telegram"`

	// Таблица-источник лидов
	Sheets SheetsConfig `json:"sheets"`

	// Хранилище файлов
	Storage StorageConfig `json:"storage"`

	// Фоновые задачи
	Jobs JobsConfig `json:"jobs"`

	// Политика работы с лидами
	Leads LeadPolicyConfig `json:"leads"`
}

type AppConfigStruct struct {
	Env     string `json:"env"`
	Port    string `json:"port"`
	Host    string `json:"host"`
	BaseURL string `json:"base_url"`
	Version string `json:"version"`
	Debug   bool   `json:"debug"`
}

type DatabaseConfig struct {
	Type            string        `json:"type"` // postgres или sqlite
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool          `json:"enabled"`
	Host     string        `json:"host"`
	Port     string        `json:"port"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	URL      string        `json:"url"`
	Timeout  time.Duration `json:"timeout"`
	MaxConns int           `json:"max_connections"`
}

type JWTConfig struct {
	Secret     string        `json:"secret"`
	ExpiresIn  time.Duration `json:"expires_in"`
	Issuer     string        `json:"issuer"`
	CookieName string        `json:"cookie_name"`
}

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type SecurityConfig struct {
	RateLimitRequests int           `json:"rate_limit_requests"`
	RateLimitWindow   time.Duration `json:"rate_limit_window"`
	LoginRateLimit    int           `json:"login_rate_limit"`
	RequestTimeout    time.Duration `json:"request_timeout"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type SMSConfig struct {
	APIURL       string        `json:"api_url"`
	UserCode     string        `json:"user_code"`
	Password     string        `json:"-"`
	Header       string        `json:"header"`
	Timeout      time.Duration `json:"timeout"`
	StatusNotify bool          `json:"status_notify"` // SMS при решении по заявке
}

type TelegramConfig struct {
	BotToken string `json:"-"`
	ChatID   int64  `json:"chat_id"`
}

type SheetsConfig struct {
	CSVURL  string        `json:"csv_url"`
	Timeout time.Duration `json:"timeout"`
}

type StorageConfig struct {
	UploadDir   string `json:"upload_dir"`
	PublicURL   string `json:"public_url"`
	MaxFileSize int64  `json:"max_file_size"`
}

type JobsConfig struct {
	Enabled           bool   `json:"enabled"`
	PoolFixSchedule   string `json:"pool_fix_schedule"`
	RetentionSchedule string `json:"retention_schedule"`
	SheetSyncSchedule string `json:"sheet_sync_schedule"`
}

type LeadPolicyConfig struct {
	PullStreakLimit    int           `json:"pull_streak_limit"`
	PullHistory        int           `json:"pull_history"`
	CollectionCooldown time.Duration `json:"collection_cooldown"`
	RetentionMonths    int           `json:"retention_months"`
	ReportRowCap       int           `json:"report_row_cap"`
	PoolStatuses       []string      `json:"pool_statuses"`
}

var GlobalConfig *Config

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	// Загружаем .env файл если он существует
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	config := &Config{
		App: AppConfigStruct{
			Env:     getEnv("APP_ENV", "development"),
			Port:    getEnv("APP_PORT", "8080"),
			Host:    getEnv("APP_HOST", "0.0.0.0"),
			BaseURL: getEnv("BACKEND_URL", "http://localhost:8080"),
			Version: getEnv("API_VERSION", "v1"),
			Debug:   getEnvBool("DEBUG_MODE", false),
		},
		Database: DatabaseConfig{
			Type:            getEnv("DB_TYPE", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "kredicrm_db"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			SQLitePath:      getEnv("DB_SQLITE_PATH", "kredicrm.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 300*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			URL:      getEnv("REDIS_URL", ""),
			Timeout:  getEnvDuration("REDIS_TIMEOUT", 5*time.Second),
			MaxConns: getEnvInt("REDIS_MAX_CONNECTIONS", 10),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", DefaultJWTSecret),
			ExpiresIn:  getEnvDuration("JWT_EXPIRES_IN", 12*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "kredi-crm"),
			CookieName: getEnv("SESSION_COOKIE_NAME", "crm_session"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 86400),
		},
		Security: SecurityConfig{
			RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 300),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			LoginRateLimit:    getEnvInt("LOGIN_RATE_LIMIT", 10),
			RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		SMS: SMSConfig{
			APIURL:       getEnv("SMS_API_URL", "https://api.netgsm.com.tr/sms/send/get"),
			UserCode:     getEnv("SMS_USERCODE", ""),
			Password:     getEnv("SMS_PASSWORD", ""),
			Header:       getEnv("SMS_HEADER", ""),
			Timeout:      getEnvDuration("SMS_TIMEOUT", 15*time.Second),
			StatusNotify: getEnvBool("SMS_STATUS_NOTIFY", false),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
		},
		Sheets: SheetsConfig{
			CSVURL:  getEnv("SHEETS_CSV_URL", ""),
			Timeout: getEnvDuration("SHEETS_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
			PublicURL:   getEnv("UPLOAD_PUBLIC_URL", "/uploads"),
			MaxFileSize: int64(getEnvInt("UPLOAD_MAX_FILE_SIZE", 10<<20)),
		},
		Jobs: JobsConfig{
			Enabled:           getEnvBool("JOBS_ENABLED", true),
			PoolFixSchedule:   getEnv("JOB_POOL_FIX_SCHEDULE", "*/10 * * * *"),
			RetentionSchedule: getEnv("JOB_RETENTION_SCHEDULE", "0 3 * * *"),
			SheetSyncSchedule: getEnv("JOB_SHEET_SYNC_SCHEDULE", "*/30 * * * *"),
		},
		Leads: LeadPolicyConfig{
			PullStreakLimit:    getEnvInt("LEAD_PULL_STREAK_LIMIT", 5),
			PullHistory:        getEnvInt("LEAD_PULL_HISTORY", 50),
			CollectionCooldown: getEnvDuration("COLLECTION_COOLDOWN", 2*time.Hour),
			RetentionMonths:    getEnvInt("ACTIVITY_RETENTION_MONTHS", 3),
			ReportRowCap:       getEnvInt("REPORT_ROW_CAP", 50000),
			PoolStatuses:       getEnvSlice("LEAD_POOL_STATUSES", []string{"Yeni", "Ulaşılamadı"}),
		},
	}

	// Валидация критически важных настроек
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	GlobalConfig = config
	return config, nil
}

// DefaultConfig возвращает конфигурацию со значениями по умолчанию без чтения окружения
func DefaultConfig() *Config {
	return &Config{
		App:      AppConfigStruct{Env: "test", Port: "8080", Version: "v1"},
		Database: DatabaseConfig{Type: "sqlite", SQLitePath: ":memory:", Name: "kredicrm_test", User: "test"},
		JWT: JWTConfig{
			Secret:     DefaultJWTSecret,
			ExpiresIn:  12 * time.Hour,
			Issuer:     "kredi-crm",
			CookieName: "crm_session",
		},
		Security: SecurityConfig{RateLimitRequests: 300, RateLimitWindow: time.Minute, LoginRateLimit: 10},
		SMS:      SMSConfig{Timeout: 5 * time.Second},
		Sheets:   SheetsConfig{Timeout: 5 * time.Second},
		Storage:  StorageConfig{UploadDir: os.TempDir(), PublicURL: "/uploads", MaxFileSize: 10 << 20},
		Jobs: JobsConfig{
			PoolFixSchedule:   "*/10 * * * *",
			RetentionSchedule: "0 3 * * *",
			SheetSyncSchedule: "*/30 * * * *",
		},
		Leads: LeadPolicyConfig{
			PullStreakLimit:    5,
			PullHistory:        50,
			CollectionCooldown: 2 * time.Hour,
			RetentionMonths:    3,
			ReportRowCap:       50000,
			PoolStatuses:       []string{"Yeni", "Ulaşılamadı"},
		},
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	// Проверяем обязательные поля для продакшена
	if c.App.Env == "production" {
		if c.JWT.Secret == "" || c.JWT.Secret == DefaultJWTSecret {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
		}
		if c.Database.Type == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required in production")
		}
	}

	// Проверяем в любом окружении
	if c.Database.Type != "postgres" && c.Database.Type != "sqlite" {
		return fmt.Errorf("DB_TYPE must be postgres or sqlite, got %q", c.Database.Type)
	}
	if c.Database.Type == "postgres" {
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME cannot be empty")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER cannot be empty")
		}
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.Leads.PullStreakLimit <= 0 {
		return fmt.Errorf("LEAD_PULL_STREAK_LIMIT must be positive")
	}
	if c.Leads.PullHistory < c.Leads.PullStreakLimit {
		return fmt.Errorf("LEAD_PULL_HISTORY must be >= LEAD_PULL_STREAK_LIMIT")
	}
	if c.Leads.RetentionMonths <= 0 {
		return fmt.Errorf("ACTIVITY_RETENTION_MONTHS must be positive")
	}
	if len(c.Leads.PoolStatuses) == 0 {
		return fmt.Errorf("LEAD_POOL_STATUSES cannot be empty")
	}

	return nil
}

// GetConfig возвращает текущую конфигурацию
func GetConfig() *Config {
	if GlobalConfig == nil {
		log.Fatal("Config not loaded. Call LoadConfig() first.")
	}
	return GlobalConfig
}

// Вспомогательные функции для получения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return defaultValue
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшене
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// GetDatabaseDSN возвращает строку подключения к БД
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

// GetAdminDSN возвращает строку подключения к служебной БД postgres
func (c *Config) GetAdminDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.SSLMode)
}

// GetRedisAddr возвращает адрес Redis
func (c *Config) GetRedisAddr() string {
	if c.Redis.URL != "" {
		return c.Redis.URL
	}
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// SMSConfigured проверяет, заданы ли учетные данные SMS шлюза
func (c *Config) SMSConfigured() bool {
	return c.SMS.UserCode != "" && c.SMS.Password != ""
}

// LogConfig выводит конфигурацию в лог (без секретных данных)
func (c *Config) LogConfig() {
	log.Printf("=== Application Configuration ===")
	log.Printf("Environment: %s", c.App.Env)
	log.Printf("Port: %s", c.App.Port)
	log.Printf("Database: %s %s:%s/%s", c.Database.Type, c.Database.Host, c.Database.Port, c.Database.Name)
	log.Printf("Redis: enabled=%t %s", c.Redis.Enabled, c.GetRedisAddr())
	log.Printf("JWT Issuer: %s", c.JWT.Issuer)
	log.Printf("SMS Gateway: configured=%t notify=%t", c.SMSConfigured(), c.SMS.StatusNotify)
	log.Printf("Telegram: configured=%t", c.Telegram.BotToken != "")
	log.Printf("Sheet Sync: configured=%t", c.Sheets.CSVURL != "")
	log.Printf("Upload Dir: %s", c.Storage.UploadDir)
	log.Printf("Lead Policy: streak=%d history=%d cooldown=%v retention=%dm",
		c.Leads.PullStreakLimit, c.Leads.PullHistory, c.Leads.CollectionCooldown, c.Leads.RetentionMonths)
	log.Printf("Log Level: %s", c.Logging.Level)
	log.Printf("Debug Mode: %t", c.App.Debug)
	log.Printf("================================")
}
