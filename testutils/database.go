package testutils

import (
	"path/filepath"
	"testing"
	"time"

	"backend_kredicrm/config"
	"backend_kredicrm/database"
	"backend_kredicrm/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB создает тестовую базу данных SQLite во временном каталоге
// Эта функция должна использоваться во всех тестах для обеспечения консистентности
func SetupTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Отключаем логи в тестах
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// Одно соединение: запись в SQLite сериализуется, конкурентные тесты не ловят SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { CleanupTestDB(db) })
	return db
}

// SetupTestConfig возвращает конфигурацию для тестов
func SetupTestConfig(t testing.TB) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.UploadDir = t.TempDir()
	return cfg
}

// CleanupTestDB очищает тестовую базу данных
func CleanupTestDB(db *gorm.DB) {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

// CreateTestUser создает тестового пользователя с паролем в открытом виде
func CreateTestUser(t testing.TB, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	user := &models.User{
		Email:    email,
		Password: "secret123",
		AdSoyad:  "Test " + role,
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// LeadOption изменяет тестовый лид перед сохранением
type LeadOption func(l *models.Lead)

// WithOwner задает владельца лида
func WithOwner(email string) LeadOption {
	return func(l *models.Lead) { l.Sahip = &email }
}

// WithStatus задает статус лида
func WithStatus(durum string) LeadOption {
	return func(l *models.Lead) { l.Durum = durum }
}

// WithApproval задает статус одобрения
func WithApproval(status models.ApprovalStatus) LeadOption {
	return func(l *models.Lead) { l.OnayDurumu = status }
}

// WithCreatedAt задает время создания
func WithCreatedAt(ts time.Time) LeadOption {
	return func(l *models.Lead) { l.CreatedAt = ts }
}

// WithClass задает класс лида (например, Gecikme)
func WithClass(sinif string) LeadOption {
	return func(l *models.Lead) { l.Sinif = sinif }
}

// WithLastCall задает время последнего звонка по взысканию
func WithLastCall(ts time.Time) LeadOption {
	return func(l *models.Lead) { l.SonAramaZamani = &ts }
}

// WithCity задает город
func WithCity(sehir string) LeadOption {
	return func(l *models.Lead) { l.Sehir = sehir }
}

// CreateTestLead создает тестовый лид в пуле
func CreateTestLead(t testing.TB, db *gorm.DB, name, phone string, opts ...LeadOption) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		AdSoyad: name,
		Telefon: phone,
		Sehir:   "İstanbul",
		Kaynak:  models.SourceManual,
		Durum:   models.StatusNew,
	}
	for _, opt := range opts {
		opt(lead)
	}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("Failed to create test lead: %v", err)
	}
	return lead
}

// CreateTestItem создает устройство на складе
func CreateTestItem(t testing.TB, db *gorm.DB, imei string) *models.InventoryItem {
	t.Helper()
	item := &models.InventoryItem{
		Marka:       "Samsung",
		Model:       "Galaxy A55",
		IMEI:        imei,
		Durum:       models.StockInStock,
		AlisFiyati:  decimal.NewFromInt(9000),
		SatisFiyati: decimal.NewFromInt(12500),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to create test item: %v", err)
	}
	return item
}

// CreateTestTemplate создает SMS шаблон
func CreateTestTemplate(t testing.TB, db *gorm.DB, kod, icerik string) *models.SMSTemplate {
	t.Helper()
	tpl := &models.SMSTemplate{Kod: kod, Baslik: kod, Icerik: icerik, IsActive: true}
	if err := db.Create(tpl).Error; err != nil {
		t.Fatalf("Failed to create test template: %v", err)
	}
	return tpl
}
