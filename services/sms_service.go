package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"backend_kredicrm/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// bulkSMSConcurrency одновременных запросов к шлюзу при массовой рассылке
const bulkSMSConcurrency = 4

// SMSService отправка SMS по шаблонам с записью в журнал
type SMSService struct {
	db       *gorm.DB
	activity *ActivityService
	gateway  SMSGateway
}

// NewSMSService создает сервис SMS
func NewSMSService(db *gorm.DB, activity *ActivityService, gateway SMSGateway) *SMSService {
	return &SMSService{db: db, activity: activity, gateway: gateway}
}

// BulkResult счетчики массовой операции
type BulkResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors"`
}

// RenderTemplate подставляет поля лида в шаблон. Неизвестные плейсхолдеры остаются как есть
func RenderTemplate(tpl string, lead *models.Lead) string {
	if lead == nil {
		return tpl
	}
	r := strings.NewReplacer(
		"{ad_soyad}", lead.AdSoyad,
		"{telefon}", lead.Telefon,
		"{kredi_limiti}", lead.KrediLimiti.StringFixed(2),
		"{urun}", lead.UrunAdi,
		"{imei}", lead.UrunIMEI,
		"{tarih}", time.Now().Format("02.01.2006"),
		"{sehir}", lead.Sehir,
	)
	return r.Replace(tpl)
}

// TemplateByCode возвращает активный шаблон по коду
func (s *SMSService) TemplateByCode(ctx context.Context, code string) (*models.SMSTemplate, error) {
	var tpl models.SMSTemplate
	err := s.db.WithContext(ctx).Where("kod = ? AND is_active = ?", code, true).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// SendToLead отправляет готовый текст лиду и записывает SEND_SMS
func (s *SMSService) SendToLead(ctx context.Context, actor string, lead *models.Lead, message string) (*models.SMSLog, error) {
	leadID := lead.ID
	return s.send(ctx, actor, &leadID, lead.Telefon, message, true)
}

// SendTemplate отправляет лиду шаблон по коду
func (s *SMSService) SendTemplate(ctx context.Context, actor string, lead *models.Lead, code string) (*models.SMSLog, error) {
	tpl, err := s.TemplateByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.SendToLead(ctx, actor, lead, RenderTemplate(tpl.Icerik, lead))
}

// Notify отправляет служебное SMS по шаблону. Пишется только в sms_logs, ошибки логируются
func (s *SMSService) Notify(ctx context.Context, actor string, lead *models.Lead, code string) {
	tpl, err := s.TemplateByCode(ctx, code)
	if err != nil {
		logSideEffectError("SMS "+code, lead.ID, err)
		return
	}
	leadID := lead.ID
	if _, err := s.send(ctx, actor, &leadID, lead.Telefon, RenderTemplate(tpl.Icerik, lead), false); err != nil {
		logSideEffectError("SMS "+code, lead.ID, err)
	}
}

// SendRaw отправляет SMS на произвольный номер без привязки к лиду
func (s *SMSService) SendRaw(ctx context.Context, actor, phone, message string) (*models.SMSLog, error) {
	return s.send(ctx, actor, nil, phone, message, false)
}

// send отправляет через шлюз и сохраняет результат; audit добавляет SEND_SMS в журнал лида
func (s *SMSService) send(ctx context.Context, actor string, leadID *uint, phone, message string, audit bool) (*models.SMSLog, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: пустой текст сообщения", ErrValidation)
	}

	entry := &models.SMSLog{
		CreatedAt:  time.Now(),
		LeadID:     leadID,
		ActorEmail: actor,
		Telefon:    phone,
		Mesaj:      message,
	}

	result, sendErr := s.gateway.Send(ctx, phone, message)
	switch {
	case sendErr != nil:
		entry.Durum = models.SMSStatusFailed
		entry.Hata = sendErr.Error()
		var gwErr *GatewayError
		if errors.As(sendErr, &gwErr) {
			entry.Kod = gwErr.Code
		}
	case result.Simulated:
		entry.Durum = models.SMSStatusSimulated
		entry.Kod = result.Code
		entry.ProviderRef = result.Ref
	default:
		entry.Durum = models.SMSStatusSent
		entry.Kod = result.Code
		entry.ProviderRef = result.Ref
	}
	recordSMS(entry.Durum)

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logSideEffectError("sms_logs", 0, err)
	}

	if sendErr != nil {
		return entry, sendErr
	}

	if audit && leadID != nil {
		s.activity.LogBestEffort(ctx, ActivityEntry{
			LeadID:   leadID,
			Actor:    actor,
			Action:   models.ActionSendSMS,
			NewValue: entry.Durum,
			Note:     message,
		})
	}
	return entry, nil
}

// Bulk отправляет шаблон или текст списку лидов. Уже отправленные не откатываются
func (s *SMSService) Bulk(ctx context.Context, actor string, leadIDs []uint, code, message string) (*BulkResult, error) {
	if code == "" && strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: нужен шаблон или текст", ErrValidation)
	}

	tplText := message
	if code != "" {
		tpl, err := s.TemplateByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		tplText = tpl.Icerik
	}

	var leads []models.Lead
	if err := s.db.WithContext(ctx).Where("id IN ?", leadIDs).Order("id").Find(&leads).Error; err != nil {
		return nil, err
	}

	result := &BulkResult{Errors: []string{}}
	found := make(map[uint]bool, len(leads))
	for _, l := range leads {
		found[l.ID] = true
	}
	for _, id := range leadIDs {
		if !found[id] {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("#%d: %v", id, ErrLeadNotFound))
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkSMSConcurrency)
	for i := range leads {
		lead := &leads[i]
		g.Go(func() error {
			_, err := s.SendToLead(gctx, actor, lead, RenderTemplate(tplText, lead))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("#%d: %v", lead.ID, err))
			} else {
				result.Sent++
			}
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

// History SMS по лиду
func (s *SMSService) History(ctx context.Context, leadID uint) ([]models.SMSLog, error) {
	var logs []models.SMSLog
	err := s.db.WithContext(ctx).Where("lead_id = ?", leadID).Order("created_at DESC, id DESC").Find(&logs).Error
	return logs, err
}
