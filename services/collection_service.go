package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backend_kredicrm/models"

	"gorm.io/gorm"
)

// CollectionService работа агентов взыскания с должниками
type CollectionService struct {
	db       *gorm.DB
	leads    *LeadService
	activity *ActivityService
	cooldown time.Duration
}

// NewCollectionService создает сервис взыскания
func NewCollectionService(db *gorm.DB, leads *LeadService, activity *ActivityService, cooldown time.Duration) *CollectionService {
	return &CollectionService{db: db, leads: leads, activity: activity, cooldown: cooldown}
}

// CallResult итог звонка должнику
type CallResult struct {
	TahsilatDurumu string     `json:"tahsilat_durumu" binding:"required"`
	Note           string     `json:"note"`
	SozTarihi      *time.Time `json:"soz_tarihi"`
}

// AttorneyUpdate смена статуса передачи юристу
type AttorneyUpdate struct {
	AvukatDurumu string `json:"avukat_durumu" binding:"required"`
	Note         string `json:"note"`
}

// CollectionFilters фильтры списка должников
type CollectionFilters struct {
	TahsilatDurumu string
	AvukatDurumu   string
	Page           int
	Limit          int
}

// Next возвращает следующего должника для звонка: сначала без звонков, затем самый давний звонок.
// Блокировки нет, два агента могут получить одного должника
func (s *CollectionService) Next(ctx context.Context) (*models.Lead, error) {
	cutoff := time.Now().Add(-s.cooldown)

	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("sinif = ? AND (son_arama_zamani IS NULL OR son_arama_zamani < ?)", models.ClassDelinquent, cutoff).
		Order("CASE WHEN son_arama_zamani IS NULL THEN 0 ELSE 1 END, son_arama_zamani ASC, id ASC").
		Limit(1).
		Find(&lead).Error
	if err != nil {
		return nil, err
	}
	if lead.ID == 0 {
		return nil, ErrNothingToCollect
	}
	return &lead, nil
}

// RecordCall фиксирует звонок должнику
func (s *CollectionService) RecordCall(ctx context.Context, actor string, leadID uint, input CallResult) (*models.Lead, error) {
	if strings.TrimSpace(input.TahsilatDurumu) == "" {
		return nil, fmt.Errorf("%w: tahsilat_durumu обязателен", ErrValidation)
	}
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"son_arama_zamani": now,
		"tahsilat_durumu":  input.TahsilatDurumu,
		"updated_at":       now,
	}
	if input.SozTarihi != nil {
		updates["soz_tarihi"] = *input.SozTarihi
	}
	if err := s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", leadID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка сохранения звонка: %w", err)
	}

	note := &models.CollectionNote{
		LeadID:     leadID,
		ActorEmail: actor,
		Durum:      input.TahsilatDurumu,
		Not:        input.Note,
	}
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		logSideEffectError("collection_notes", leadID, err)
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &lead.ID,
		Actor:    actor,
		Action:   models.ActionCollectionCall,
		OldValue: lead.TahsilatDurumu,
		NewValue: input.TahsilatDurumu,
		Note:     input.Note,
	})
	return s.leads.Get(ctx, leadID)
}

// Notes заметки взыскания по лиду, новые первыми
func (s *CollectionService) Notes(ctx context.Context, leadID uint) ([]models.CollectionNote, error) {
	var notes []models.CollectionNote
	err := s.db.WithContext(ctx).Where("lead_id = ?", leadID).Order("created_at DESC, id DESC").Find(&notes).Error
	return notes, err
}

// AddNote добавляет заметку без изменения лида
func (s *CollectionService) AddNote(ctx context.Context, actor string, leadID uint, text string) (*models.CollectionNote, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: пустая заметка", ErrValidation)
	}
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return nil, err
	}

	note := &models.CollectionNote{
		LeadID:     lead.ID,
		ActorEmail: actor,
		Durum:      lead.TahsilatDurumu,
		Not:        strings.TrimSpace(text),
	}
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return nil, fmt.Errorf("ошибка сохранения заметки: %w", err)
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{LeadID: &lead.ID, Actor: actor, Action: models.ActionCollectionNote, Note: note.Not})
	return note, nil
}

// SetAttorney меняет статус передачи юристу и пишет историю
func (s *CollectionService) SetAttorney(ctx context.Context, actor string, leadID uint, input AttorneyUpdate) (*models.Lead, error) {
	if strings.TrimSpace(input.AvukatDurumu) == "" {
		return nil, fmt.Errorf("%w: avukat_durumu обязателен", ErrValidation)
	}
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", leadID).
		Updates(map[string]interface{}{"avukat_durumu": input.AvukatDurumu, "updated_at": time.Now()}).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления статуса юриста: %w", err)
	}

	history := &models.AttorneyStatusHistory{
		LeadID:     leadID,
		ActorEmail: actor,
		EskiDurum:  lead.AvukatDurumu,
		YeniDurum:  input.AvukatDurumu,
		Aciklama:   input.Note,
	}
	if err := s.db.WithContext(ctx).Create(history).Error; err != nil {
		logSideEffectError("attorney_status_history", leadID, err)
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &lead.ID,
		Actor:    actor,
		Action:   models.ActionAttorneyUpdate,
		OldValue: lead.AvukatDurumu,
		NewValue: input.AvukatDurumu,
		Note:     input.Note,
	})
	return s.leads.Get(ctx, leadID)
}

// AttorneyHistory история статусов юриста по лиду
func (s *CollectionService) AttorneyHistory(ctx context.Context, leadID uint) ([]models.AttorneyStatusHistory, error) {
	var rows []models.AttorneyStatusHistory
	err := s.db.WithContext(ctx).Where("lead_id = ?", leadID).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

// List страница должников
func (s *CollectionService) List(ctx context.Context, f CollectionFilters) ([]models.Lead, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Lead{}).Where("sinif = ?", models.ClassDelinquent)
	if f.TahsilatDurumu != "" {
		query = query.Where("tahsilat_durumu = ?", f.TahsilatDurumu)
	}
	if f.AvukatDurumu != "" {
		query = query.Where("avukat_durumu = ?", f.AvukatDurumu)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := NormalizePage(f.Page, f.Limit)
	var leads []models.Lead
	err := query.Order("CASE WHEN son_arama_zamani IS NULL THEN 0 ELSE 1 END, son_arama_zamani ASC, id ASC").
		Offset((page - 1) * limit).Limit(limit).Find(&leads).Error
	return leads, total, err
}
