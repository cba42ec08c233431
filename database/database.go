package database

import (
	"database/sql"
	"fmt"
	"log"

	"backend_kredicrm/config"
	"backend_kredicrm/models"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// CreateDatabaseIfNotExists создает базу данных, если она не существует
func CreateDatabaseIfNotExists(cfg *config.Config) error {
	if cfg.Database.Type == "sqlite" {
		return nil
	}
	dbname := cfg.Database.Name

	// Подключаемся к PostgreSQL без указания конкретной БД (к postgres по умолчанию)
	db, err := sql.Open("postgres", cfg.GetAdminDSN())
	if err != nil {
		return fmt.Errorf("не удалось подключиться к PostgreSQL: %w", err)
	}
	defer db.Close()

	// Проверяем подключение
	if err := db.Ping(); err != nil {
		return fmt.Errorf("не удалось проверить подключение к PostgreSQL: %w", err)
	}

	// Проверяем, существует ли база данных
	var exists bool
	query := "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1);"
	err = db.QueryRow(query, dbname).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка при проверке существования базы данных: %w", err)
	}

	if exists {
		log.Printf("✅ База данных '%s' уже существует", dbname)
		return nil
	}

	// Создаем базу данных
	createQuery := fmt.Sprintf("CREATE DATABASE %q;", dbname)
	_, err = db.Exec(createQuery)
	if err != nil {
		return fmt.Errorf("не удалось создать базу данных '%s': %w", dbname, err)
	}

	log.Printf("✅ База данных '%s' успешно создана", dbname)
	return nil
}

// ConnectDatabase инициализирует подключение к PostgreSQL или SQLite
func ConnectDatabase(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch cfg.Database.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.SQLitePath)
	default:
		dialector = postgres.Open(cfg.GetDatabaseDSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить пул соединений: %w", err)
	}
	if cfg.Database.Type == "sqlite" {
		// SQLite допускает только одного писателя
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	log.Printf("✅ Успешно подключено к базе данных (%s)", cfg.Database.Type)

	// Автомиграция моделей
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("ошибка автомиграции: %w", err)
	}

	if err := CreatePerformanceIndexes(db); err != nil {
		log.Printf("⚠️ Не удалось создать индексы: %v", err)
	}

	DB = db
	return db, nil
}

// GetDB возвращает экземпляр базы данных
func GetDB() *gorm.DB {
	return DB
}

// AllModels возвращает все модели в порядке миграции
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Lead{},
		&models.ActivityLog{},
		&models.InventoryItem{},
		&models.SMSTemplate{},
		&models.SMSLog{},
		&models.StatusDefinition{},
		&models.Product{},
		&models.QuickNote{},
		&models.PricingConfig{},
		&models.CancellationReason{},
		&models.CollectionNote{},
		&models.AttorneyStatusHistory{},
	}
}

// AutoMigrate выполняет автомиграцию всех моделей
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	if err := backfillPhoneNorm(db); err != nil {
		return fmt.Errorf("ошибка заполнения telefon_norm: %w", err)
	}

	log.Println("✅ Автомиграция моделей выполнена успешно")
	return nil
}

// backfillPhoneNorm заполняет нормализованный телефон у записей, созданных до появления колонки
func backfillPhoneNorm(db *gorm.DB) error {
	var leads []models.Lead
	filled := 0
	err := db.Select("id", "telefon").
		Where("(telefon_norm IS NULL OR telefon_norm = '') AND telefon <> ''").
		FindInBatches(&leads, 500, func(_ *gorm.DB, _ int) error {
			for _, l := range leads {
				if err := db.Model(&models.Lead{}).Where("id = ?", l.ID).
					UpdateColumn("telefon_norm", models.NormalizePhone(l.Telefon)).Error; err != nil {
					return err
				}
				filled++
			}
			return nil
		}).Error
	if err != nil {
		return err
	}
	if filled > 0 {
		log.Printf("📞 Нормализованы телефоны у %d лидов", filled)
	}
	return nil
}
