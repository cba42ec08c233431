package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"backend_kredicrm/models"

	"gorm.io/gorm"
)

// ActivityService журнал активности по лидам
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService создает новый сервис журнала
func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// ActivityEntry данные одной записи журнала
type ActivityEntry struct {
	LeadID   *uint
	Actor    string
	Action   string
	OldValue string
	NewValue string
	Note     string
}

// ActivityFilters фильтры для поиска записей журнала
type ActivityFilters struct {
	Actor     string
	Action    string
	LeadID    *uint
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// Log записывает действие в журнал
func (s *ActivityService) Log(ctx context.Context, entry ActivityEntry) error {
	row := &models.ActivityLog{
		CreatedAt:  time.Now(),
		LeadID:     entry.LeadID,
		ActorEmail: entry.Actor,
		Action:     entry.Action,
		OldValue:   entry.OldValue,
		NewValue:   entry.NewValue,
		Note:       entry.Note,
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("не удалось записать действие %s в журнал: %w", entry.Action, err)
	}
	return nil
}

// LogBestEffort записывает действие и только логирует ошибку.
// Изменение лида к этому моменту уже применено и не откатывается
func (s *ActivityService) LogBestEffort(ctx context.Context, entry ActivityEntry) {
	if err := s.Log(ctx, entry); err != nil {
		log.Printf("⚠️ %v", err)
	}
}

// History возвращает историю действий по лиду, новые сверху
func (s *ActivityService) History(ctx context.Context, leadID uint) ([]models.ActivityLog, error) {
	var logs []models.ActivityLog
	err := s.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at DESC, id DESC").
		Find(&logs).Error
	return logs, err
}

// Recent возвращает последние n действий агента, новые сверху
func (s *ActivityService) Recent(ctx context.Context, actor string, n int) ([]models.ActivityLog, error) {
	var logs []models.ActivityLog
	err := s.db.WithContext(ctx).
		Where("actor_email = ?", actor).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&logs).Error
	return logs, err
}

// List получает записи журнала с фильтрацией и общим количеством
func (s *ActivityService) List(ctx context.Context, filters ActivityFilters) ([]models.ActivityLog, int64, error) {
	query := s.applyFilters(s.db.WithContext(ctx).Model(&models.ActivityLog{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Сортировка и пагинация
	query = query.Order("created_at DESC, id DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var logs []models.ActivityLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// ActionCounts считает записи по тегу действия за период
func (s *ActivityService) ActionCounts(ctx context.Context, filters ActivityFilters) (map[string]int64, error) {
	type actionCount struct {
		Action string
		Count  int64
	}

	var rows []actionCount
	query := s.applyFilters(s.db.WithContext(ctx).Model(&models.ActivityLog{}), filters)
	if err := query.Select("action, COUNT(*) as count").Group("action").Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Action] = r.Count
	}
	return result, nil
}

func (s *ActivityService) applyFilters(query *gorm.DB, filters ActivityFilters) *gorm.DB {
	if filters.Actor != "" {
		query = query.Where("actor_email = ?", filters.Actor)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.LeadID != nil {
		query = query.Where("lead_id = ?", *filters.LeadID)
	}
	if !filters.StartDate.IsZero() {
		query = query.Where("created_at >= ?", filters.StartDate)
	}
	if !filters.EndDate.IsZero() {
		query = query.Where("created_at <= ?", filters.EndDate)
	}
	return query
}

// CleanupOldLogs удаляет записи старше указанного количества месяцев
func (s *ActivityService) CleanupOldLogs(ctx context.Context, retentionMonths int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, -retentionMonths, 0)

	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoffDate).
		Delete(&models.ActivityLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	log.Printf("🧹 Удалено %d записей журнала старше %d мес.", result.RowsAffected, retentionMonths)
	return result.RowsAffected, nil
}
