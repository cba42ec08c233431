package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"backend_kredicrm/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApprovalService отправка на одобрение и решения администратора
type ApprovalService struct {
	db           *gorm.DB
	leads        *LeadService
	activity     *ActivityService
	sms          *SMSService
	notifier     *NotificationService
	cache        *CacheService
	statusNotify bool
}

// NewApprovalService создает сервис одобрения
func NewApprovalService(db *gorm.DB, leads *LeadService, activity *ActivityService, sms *SMSService, notifier *NotificationService, cache *CacheService, statusNotify bool) *ApprovalService {
	return &ApprovalService{
		db:           db,
		leads:        leads,
		activity:     activity,
		sms:          sms,
		notifier:     notifier,
		cache:        cache,
		statusNotify: statusNotify,
	}
}

// Decision решение администратора по лиду
type Decision struct {
	LeadID      uint
	KrediLimiti decimal.Decimal
	AdminNotu   string
}

// decisionOutcome целевые значения лида для решения
type decisionOutcome struct {
	durum    string
	approval models.ApprovalStatus
	template string
	metric   string
	// sendAlways SMS отправляется независимо от настройки уведомлений
	sendAlways bool
}

var (
	outcomeApprove = decisionOutcome{
		durum:    models.StatusApproved,
		approval: models.ApprovalApproved,
		template: models.TemplateApproved,
		metric:   "approved",
	}
	outcomeReject = decisionOutcome{
		durum:    models.StatusRejected,
		approval: models.ApprovalRejected,
		template: models.TemplateRejected,
		metric:   "rejected",
	}
	outcomeGuarantor = decisionOutcome{
		durum:      models.StatusGuarantorPending,
		approval:   models.ApprovalGuarantorRequested,
		template:   models.TemplateGuarantor,
		metric:     "guarantor",
		sendAlways: true,
	}
)

// Submit отправляет лид агента на одобрение
func (s *ApprovalService) Submit(ctx context.Context, id uint, actor Actor, note string) (*models.Lead, error) {
	lead, err := s.leads.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	current := lead.OnayDurumu
	if !current.CanTransitionTo(models.ApprovalPending) {
		return nil, fmt.Errorf("%w: %q → %q", ErrInvalidApprovalTransition, current, models.ApprovalPending)
	}

	result := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ? AND onay_durumu = ?", id, current).
		Updates(map[string]interface{}{
			"durum":       models.StatusPendingApproval,
			"onay_durumu": models.ApprovalPending,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка отправки на одобрение: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidApprovalTransition
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &lead.ID,
		Actor:    actor.Email,
		Action:   models.ActionSubmitApproval,
		OldValue: lead.Durum,
		NewValue: models.StatusPendingApproval,
		Note:     note,
	})
	s.cache.InvalidateDashboard(ctx)

	updated, err := s.leads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyApprovalRequest(updated, actor.Email)
	return updated, nil
}

// Approve одобряет лид с кредитным лимитом
func (s *ApprovalService) Approve(ctx context.Context, admin string, d Decision) (*models.Lead, error) {
	if d.KrediLimiti.IsNegative() {
		return nil, fmt.Errorf("%w: kredi_limiti не может быть отрицательным", ErrValidation)
	}
	return s.decide(ctx, admin, d, outcomeApprove)
}

// Reject отклоняет лид
func (s *ApprovalService) Reject(ctx context.Context, admin string, d Decision) (*models.Lead, error) {
	return s.decide(ctx, admin, d, outcomeReject)
}

// RequestGuarantor запрашивает поручителя
func (s *ApprovalService) RequestGuarantor(ctx context.Context, admin string, d Decision) (*models.Lead, error) {
	return s.decide(ctx, admin, d, outcomeGuarantor)
}

// decide применяет решение условным UPDATE по текущему onay_durumu и пишет ровно одну запись журнала
func (s *ApprovalService) decide(ctx context.Context, admin string, d Decision, out decisionOutcome) (*models.Lead, error) {
	lead, err := s.leads.Get(ctx, d.LeadID)
	if err != nil {
		return nil, err
	}

	current := lead.OnayDurumu
	if !current.IsAwaitingDecision() || !current.CanTransitionTo(out.approval) {
		return nil, fmt.Errorf("%w: %q → %q", ErrInvalidApprovalTransition, current, out.approval)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"durum":       out.durum,
		"onay_durumu": out.approval,
		"onay_tarihi": now,
		"onaylayan":   admin,
		"updated_at":  now,
	}
	if note := strings.TrimSpace(d.AdminNotu); note != "" {
		updates["admin_notu"] = note
	}
	if out.approval == models.ApprovalApproved {
		updates["kredi_limiti"] = d.KrediLimiti
	}

	result := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ? AND onay_durumu = ?", lead.ID, current).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка сохранения решения: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Решение уже принято параллельным запросом
		return nil, ErrInvalidApprovalTransition
	}
	recordApproval(out.metric)
	s.cache.InvalidateDashboard(ctx)

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &lead.ID,
		Actor:    admin,
		Action:   models.ActionUpdateStatus,
		OldValue: string(current),
		NewValue: string(out.approval),
		Note:     d.AdminNotu,
	})

	updated, err := s.leads.Get(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Лид %d: %s → %s (%s)", updated.ID, current, out.approval, admin)

	if out.sendAlways || s.statusNotify {
		s.sms.Notify(ctx, admin, updated, out.template)
	}
	return updated, nil
}

// Pending список лидов, ожидающих решения
func (s *ApprovalService) Pending(ctx context.Context) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Where("onay_durumu IN ?", []models.ApprovalStatus{models.ApprovalPending, models.ApprovalGuarantorRequested}).
		Order("updated_at ASC, id ASC").
		Find(&leads).Error
	return leads, err
}
