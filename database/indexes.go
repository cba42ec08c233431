package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
)

// DatabaseIndex представляет индекс базы данных
type DatabaseIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// PerformanceIndexes составные индексы под основные выборки
var PerformanceIndexes = []DatabaseIndex{
	// Выдача лида из пула: sahip IS NULL AND durum IN (...) ORDER BY created_at, id
	{
		Name:    "idx_leads_pool",
		Table:   "leads",
		Columns: []string{"sahip", "durum", "created_at", "id"},
	},
	// Следующий звонок по взысканию
	{
		Name:    "idx_leads_collection",
		Table:   "leads",
		Columns: []string{"sinif", "son_arama_zamani"},
	},
	{
		Name:    "idx_leads_telefon_norm",
		Table:   "leads",
		Columns: []string{"telefon_norm"},
	},
	{
		Name:    "idx_leads_dis_kaynak",
		Table:   "leads",
		Columns: []string{"dis_kaynak_id"},
	},
	// Последние действия агента для антифрода
	{
		Name:    "idx_activity_actor_created",
		Table:   "activity_logs",
		Columns: []string{"actor_email", "created_at", "id"},
	},
	{
		Name:    "idx_activity_lead_created",
		Table:   "activity_logs",
		Columns: []string{"lead_id", "created_at"},
	},
	{
		Name:    "idx_inventory_durum_marka",
		Table:   "inventory",
		Columns: []string{"durum", "marka"},
	},
}

// CreatePerformanceIndexes создает индексы для оптимизации производительности
func CreatePerformanceIndexes(db *gorm.DB) error {
	created := 0
	for _, index := range PerformanceIndexes {
		if err := CreateIndex(db, index); err != nil {
			log.Printf("⚠️ Failed to create index %s: %v", index.Name, err)
			// Продолжаем создание других индексов даже если один упал
			continue
		}
		created++
	}

	log.Printf("✅ Performance indexes: %d/%d", created, len(PerformanceIndexes))
	return nil
}

// CreateIndex создает отдельный индекс
func CreateIndex(db *gorm.DB, index DatabaseIndex) error {
	uniqueStr := ""
	if index.Unique {
		uniqueStr = "UNIQUE "
	}

	sql := fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		uniqueStr, index.Name, index.Table, strings.Join(index.Columns, ", "),
	)
	return db.Exec(sql).Error
}

// DropIndex удаляет индекс
func DropIndex(db *gorm.DB, indexName string) error {
	sql := fmt.Sprintf("DROP INDEX IF EXISTS %s", indexName)
	return db.Exec(sql).Error
}
