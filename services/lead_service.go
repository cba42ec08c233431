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

	"gorm.io/gorm"
)

// pullBatchSize количество кандидатов, читаемых из пула за один проход
const pullBatchSize = 10

// LeadService работа с лидами и пулом
type LeadService struct {
	db       *gorm.DB
	activity *ActivityService
	cache    *CacheService
	policy   config.LeadPolicyConfig
}

// NewLeadService создает сервис лидов
func NewLeadService(db *gorm.DB, activity *ActivityService, cache *CacheService, policy config.LeadPolicyConfig) *LeadService {
	return &LeadService{db: db, activity: activity, cache: cache, policy: policy}
}

// Actor пользователь, выполняющий действие
type Actor struct {
	Email string
	Role  string
}

// IsAdmin проверяет роль администратора
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// LeadFilters фильтры списка лидов
type LeadFilters struct {
	Owner      string
	PoolOnly   bool
	Durum      string
	Sehir      string
	Sinif      string
	OnayDurumu string
	Query      string
	StartDate  time.Time
	EndDate    time.Time
	Page       int
	Limit      int
}

// LeadInput поля лида, заполняемые вручную
type LeadInput struct {
	AdSoyad  string `json:"ad_soyad" binding:"required"`
	Telefon  string `json:"telefon" binding:"required"`
	Sehir    string `json:"sehir"`
	Meslek   string `json:"meslek"`
	Gelir    string `json:"gelir"`
	Yas      int    `json:"yas"`
	TCKimlik string `json:"tc_kimlik"`
	Adres    string `json:"adres"`
	Notlar   string `json:"notlar"`
}

// LeadUpdate частичное обновление контактных полей
type LeadUpdate struct {
	AdSoyad  *string `json:"ad_soyad"`
	Telefon  *string `json:"telefon"`
	Sehir    *string `json:"sehir"`
	Meslek   *string `json:"meslek"`
	Gelir    *string `json:"gelir"`
	Yas      *int    `json:"yas"`
	TCKimlik *string `json:"tc_kimlik"`
	Adres    *string `json:"adres"`
	Notlar   *string `json:"notlar"`
}

// StatusUpdate смена рабочего статуса
type StatusUpdate struct {
	Durum       string `json:"durum" binding:"required"`
	Note        string `json:"note"`
	IptalNedeni string `json:"iptal_nedeni"`
}

// PoolStatuses статусы "без владельца": отмеченные havuz в справочнике, иначе из конфигурации
func (s *LeadService) PoolStatuses(ctx context.Context) []string {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.StatusDefinition{}).
		Where("havuz = ? AND aktif = ?", true, true).
		Order("sira, id").
		Pluck("ad", &names).Error
	if err != nil {
		log.Printf("⚠️ Не удалось прочитать статусы пула: %v", err)
	}
	if len(names) > 0 {
		return names
	}
	if len(s.policy.PoolStatuses) > 0 {
		return s.policy.PoolStatuses
	}
	return models.DefaultPoolStatuses
}

// PullLead выдает агенту один лид из пула.
// Захват выполняется условным UPDATE; при проигрыше гонки берется следующий кандидат
func (s *LeadService) PullLead(ctx context.Context, agent string) (*models.Lead, error) {
	streak, err := s.PullStreak(ctx, agent)
	if err != nil {
		return nil, fmt.Errorf("не удалось проверить историю действий: %w", err)
	}
	if streak >= s.policy.PullStreakLimit {
		recordPull("throttled")
		log.Printf("⛔ %s: %d лидов подряд без обновления, выдача заблокирована", agent, streak)
		return nil, ErrPullStreakExceeded
	}

	pool := s.PoolStatuses(ctx)
	for {
		var candidates []models.Lead
		err := s.db.WithContext(ctx).
			Select("id").
			Where("(sahip IS NULL OR sahip = '') AND durum IN ?", pool).
			Order("created_at ASC, id ASC").
			Limit(pullBatchSize).
			Find(&candidates).Error
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения пула: %w", err)
		}
		if len(candidates) == 0 {
			recordPull("empty")
			return nil, ErrPoolEmpty
		}

		for _, c := range candidates {
			claimed, err := s.claim(ctx, c.ID, agent, pool)
			if err != nil {
				return nil, err
			}
			if !claimed {
				continue
			}

			lead, err := s.Get(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			s.activity.LogBestEffort(ctx, ActivityEntry{
				LeadID:   &lead.ID,
				Actor:    agent,
				Action:   models.ActionPullLead,
				OldValue: "",
				NewValue: agent,
			})
			s.cache.InvalidateDashboard(ctx)
			recordPull("success")
			return lead, nil
		}
		// Все кандидаты перехвачены другими агентами, перечитываем пул
	}
}

// claim атомарно назначает владельца, если лид все еще свободен
func (s *LeadService) claim(ctx context.Context, id uint, agent string, pool []string) (bool, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ? AND (sahip IS NULL OR sahip = '') AND durum IN ?", id, pool).
		Updates(map[string]interface{}{
			"sahip":         agent,
			"durum":         models.StatusToCall,
			"atanma_zamani": now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("ошибка назначения лида: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// PullStreak количество PULL_LEAD подряд среди последних действий агента.
// "Мягкие" действия (клики) пропускаются, любое другое действие обрывает серию
func (s *LeadService) PullStreak(ctx context.Context, agent string) (int, error) {
	logs, err := s.activity.Recent(ctx, agent, s.policy.PullHistory)
	if err != nil {
		return 0, err
	}

	streak := 0
	for _, entry := range logs {
		if models.IsSoftAction(entry.Action) {
			continue
		}
		if entry.Action != models.ActionPullLead {
			break
		}
		streak++
	}
	return streak, nil
}

// Get возвращает лид по ID
func (s *LeadService) Get(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetForActor возвращает лид, если пользователь имеет к нему доступ
func (s *LeadService) GetForActor(ctx context.Context, id uint, actor Actor) (*models.Lead, error) {
	lead, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccessLead(lead, actor) {
		return nil, ErrNotLeadOwner
	}
	return lead, nil
}

// CanAccessLead админ видит все, агент взыскания видит должников, агент продаж только свои
func CanAccessLead(lead *models.Lead, actor Actor) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCollection:
		return lead.Sinif == models.ClassDelinquent || lead.IsOwnedBy(actor.Email)
	default:
		return lead.IsOwnedBy(actor.Email)
	}
}

// List возвращает страницу лидов и общее количество
func (s *LeadService) List(ctx context.Context, f LeadFilters) ([]models.Lead, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Lead{})

	if f.PoolOnly {
		query = query.Where("sahip IS NULL OR sahip = ''")
	} else if f.Owner != "" {
		query = query.Where("sahip = ?", f.Owner)
	}
	if f.Durum != "" {
		query = query.Where("durum = ?", f.Durum)
	}
	if f.Sehir != "" {
		query = query.Where("sehir = ?", f.Sehir)
	}
	if f.Sinif != "" {
		query = query.Where("sinif = ?", f.Sinif)
	}
	if f.OnayDurumu != "" {
		query = query.Where("onay_durumu = ?", f.OnayDurumu)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("LOWER(ad_soyad) LIKE LOWER(?) OR telefon LIKE ?", like, like)
	}
	if !f.StartDate.IsZero() {
		query = query.Where("created_at >= ?", f.StartDate)
	}
	if !f.EndDate.IsZero() {
		query = query.Where("created_at <= ?", f.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := NormalizePage(f.Page, f.Limit)
	var leads []models.Lead
	err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error
	return leads, total, err
}

// Create создает лид вручную. Лид агента сразу закреплен за ним, лид админа попадает в пул
func (s *LeadService) Create(ctx context.Context, actor Actor, input LeadInput) (*models.Lead, error) {
	if strings.TrimSpace(input.AdSoyad) == "" || strings.TrimSpace(input.Telefon) == "" {
		return nil, fmt.Errorf("%w: ad_soyad и telefon обязательны", ErrValidation)
	}

	lead := &models.Lead{
		AdSoyad:  strings.TrimSpace(input.AdSoyad),
		Telefon:  strings.TrimSpace(input.Telefon),
		Sehir:    input.Sehir,
		Meslek:   input.Meslek,
		Gelir:    input.Gelir,
		Yas:      input.Yas,
		TCKimlik: input.TCKimlik,
		Adres:    input.Adres,
		Notlar:   input.Notlar,
		Kaynak:   models.SourceManual,
		Durum:    models.StatusNew,
	}
	if !actor.IsAdmin() {
		now := time.Now()
		owner := actor.Email
		lead.Sahip = &owner
		lead.AtanmaZamani = &now
		lead.Durum = models.StatusToCall
	}

	if err := s.db.WithContext(ctx).Create(lead).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания лида: %w", err)
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &lead.ID,
		Actor:    actor.Email,
		Action:   models.ActionCreateLead,
		NewValue: lead.Durum,
	})
	s.cache.InvalidateDashboard(ctx)
	return lead, nil
}

// Update меняет контактные поля лида
func (s *LeadService) Update(ctx context.Context, id uint, actor Actor, input LeadUpdate) (*models.Lead, error) {
	lead, err := s.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	changed := []string{}
	setString := func(column string, value *string, current string) {
		if value != nil && *value != current {
			updates[column] = *value
			changed = append(changed, column)
		}
	}
	setString("ad_soyad", input.AdSoyad, lead.AdSoyad)
	setString("telefon", input.Telefon, lead.Telefon)
	setString("sehir", input.Sehir, lead.Sehir)
	setString("meslek", input.Meslek, lead.Meslek)
	setString("gelir", input.Gelir, lead.Gelir)
	setString("tc_kimlik", input.TCKimlik, lead.TCKimlik)
	setString("adres", input.Adres, lead.Adres)
	setString("notlar", input.Notlar, lead.Notlar)
	if input.Yas != nil && *input.Yas != lead.Yas {
		updates["yas"] = *input.Yas
		changed = append(changed, "yas")
	}
	if phone, ok := updates["telefon"].(string); ok {
		updates["telefon_norm"] = models.NormalizePhone(phone)
	}

	if len(updates) == 0 {
		return lead, nil
	}

	if err := s.db.WithContext(ctx).Model(lead).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления лида: %w", err)
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID: &lead.ID,
		Actor:  actor.Email,
		Action: models.ActionUpdateLead,
		Note:   strings.Join(changed, ","),
	})
	return s.Get(ctx, id)
}

// UpdateStatus меняет рабочий статус. Переход в статус пула освобождает лид
func (s *LeadService) UpdateStatus(ctx context.Context, id uint, actor Actor, input StatusUpdate) (*models.Lead, error) {
	durum := strings.TrimSpace(input.Durum)
	if durum == "" {
		return nil, fmt.Errorf("%w: durum обязателен", ErrValidation)
	}

	lead, err := s.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	oldDurum := lead.Durum
	updates := map[string]interface{}{
		"durum":      durum,
		"updated_at": time.Now(),
	}
	if durum == models.StatusCancelled {
		updates["iptal_nedeni"] = input.IptalNedeni
	}
	if models.IsPoolStatus(durum, s.PoolStatuses(ctx)) {
		updates["sahip"] = gorm.Expr("NULL")
		updates["atanma_zamani"] = gorm.Expr("NULL")
	}

	if err := s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления статуса: %w", err)
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &lead.ID,
		Actor:    actor.Email,
		Action:   models.ActionUpdateStatus,
		OldValue: oldDurum,
		NewValue: durum,
		Note:     input.Note,
	})
	s.cache.InvalidateDashboard(ctx)
	return s.Get(ctx, id)
}

// Release возвращает лид в пул
func (s *LeadService) Release(ctx context.Context, id uint, actor Actor) (*models.Lead, error) {
	lead, err := s.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if lead.Assignment().State == models.Unassigned {
		return lead, nil
	}

	oldOwner := lead.OwnerEmail()
	if err := s.releaseRow(ctx, id); err != nil {
		return nil, err
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &lead.ID,
		Actor:    actor.Email,
		Action:   models.ActionReleaseLead,
		OldValue: oldOwner,
		NewValue: "",
	})
	s.cache.InvalidateDashboard(ctx)
	return s.Get(ctx, id)
}

func (s *LeadService) releaseRow(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Updates(map[string]interface{}{
		"sahip":         gorm.Expr("NULL"),
		"atanma_zamani": gorm.Expr("NULL"),
		"durum":         models.StatusNew,
		"updated_at":    time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("ошибка освобождения лида: %w", err)
	}
	return nil
}

// trackActions типы кликов, которые фиксируются без изменения лида
var trackActions = map[string]string{
	"call":     models.ActionClickCall,
	"sms":      models.ActionClickSMS,
	"whatsapp": models.ActionClickWhatsApp,
	"view":     models.ActionViewLead,
}

// Track фиксирует "мягкое" действие (клик по звонку, SMS, WhatsApp, просмотр)
func (s *LeadService) Track(ctx context.Context, id uint, actor Actor, kind string) error {
	action, ok := trackActions[strings.ToLower(kind)]
	if !ok {
		return fmt.Errorf("%w: неизвестный тип действия %q", ErrValidation, kind)
	}
	lead, err := s.GetForActor(ctx, id, actor)
	if err != nil {
		return err
	}
	return s.activity.Log(ctx, ActivityEntry{LeadID: &lead.ID, Actor: actor.Email, Action: action})
}

// AddImage добавляет ссылку на изображение в gorseller
func (s *LeadService) AddImage(ctx context.Context, id uint, actor Actor, url string) (*models.Lead, error) {
	lead, err := s.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	raw, err := lead.WithImage(url)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(lead).Update("gorseller", raw).Error; err != nil {
		return nil, fmt.Errorf("ошибка сохранения изображения: %w", err)
	}
	s.activity.LogBestEffort(ctx, ActivityEntry{LeadID: &lead.ID, Actor: actor.Email, Action: models.ActionUploadImage, NewValue: url})
	return s.Get(ctx, id)
}

// BulkReclassify переводит все лиды из статуса from в статус to, по записи журнала на каждый
func (s *LeadService) BulkReclassify(ctx context.Context, actor string, from, to string) (int, error) {
	if from == "" || to == "" {
		return 0, fmt.Errorf("%w: from и to обязательны", ErrValidation)
	}

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Lead{}).Where("durum = ?", from).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range ids {
		// Условие по старому статусу: параллельно измененные лиды не трогаем
		result := s.db.WithContext(ctx).Model(&models.Lead{}).
			Where("id = ? AND durum = ?", id, from).
			Updates(map[string]interface{}{"durum": to, "updated_at": time.Now()})
		if result.Error != nil {
			return updated, fmt.Errorf("ошибка массового обновления: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			continue
		}
		leadID := id
		s.activity.LogBestEffort(ctx, ActivityEntry{
			LeadID:   &leadID,
			Actor:    actor,
			Action:   models.ActionBulkStatus,
			OldValue: from,
			NewValue: to,
		})
		updated++
	}

	s.cache.InvalidateDashboard(ctx)
	return updated, nil
}

// BulkRelease возвращает выбранные лиды в пул
func (s *LeadService) BulkRelease(ctx context.Context, actor string, ids []uint) (int, error) {
	var leads []models.Lead
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&leads).Error; err != nil {
		return 0, err
	}

	released := 0
	for i := range leads {
		lead := &leads[i]
		if lead.Assignment().State == models.Unassigned && lead.Durum == models.StatusNew {
			continue
		}
		if err := s.releaseRow(ctx, lead.ID); err != nil {
			return released, err
		}
		s.activity.LogBestEffort(ctx, ActivityEntry{
			LeadID:   &lead.ID,
			Actor:    actor,
			Action:   models.ActionReleaseLead,
			OldValue: lead.OwnerEmail(),
		})
		released++
	}
	return released, nil
}

// BulkDelete удаляет лиды. Запись DELETE_LEAD пишется до удаления
func (s *LeadService) BulkDelete(ctx context.Context, actor string, ids []uint) (int, error) {
	var leads []models.Lead
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&leads).Error; err != nil {
		return 0, err
	}

	deleted := 0
	for i := range leads {
		lead := &leads[i]
		s.activity.LogBestEffort(ctx, ActivityEntry{
			LeadID:   &lead.ID,
			Actor:    actor,
			Action:   models.ActionDeleteLead,
			OldValue: fmt.Sprintf("%s (%s)", lead.AdSoyad, lead.Telefon),
		})
		if err := s.db.WithContext(ctx).Delete(&models.Lead{}, lead.ID).Error; err != nil {
			return deleted, fmt.Errorf("ошибка удаления лида %d: %w", lead.ID, err)
		}
		deleted++
	}

	s.cache.InvalidateDashboard(ctx)
	return deleted, nil
}

// ClassifyDelinquent помечает лиды классом (например, Gecikme)
func (s *LeadService) ClassifyDelinquent(ctx context.Context, actor string, ids []uint, sinif string) (int, error) {
	if sinif == "" {
		sinif = models.ClassDelinquent
	}

	var leads []models.Lead
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&leads).Error; err != nil {
		return 0, err
	}

	updated := 0
	for i := range leads {
		lead := &leads[i]
		if lead.Sinif == sinif {
			continue
		}
		if err := s.db.WithContext(ctx).Model(lead).Update("sinif", sinif).Error; err != nil {
			return updated, err
		}
		s.activity.LogBestEffort(ctx, ActivityEntry{
			LeadID:   &lead.ID,
			Actor:    actor,
			Action:   models.ActionClassify,
			OldValue: lead.Sinif,
			NewValue: sinif,
		})
		updated++
	}
	return updated, nil
}

// FixPoolConsistency освобождает лиды, у которых статус пула, но задан владелец
func (s *LeadService) FixPoolConsistency(ctx context.Context) (int, error) {
	pool := s.PoolStatuses(ctx)

	var broken []models.Lead
	err := s.db.WithContext(ctx).
		Where("sahip IS NOT NULL AND sahip <> '' AND durum IN ?", pool).
		Find(&broken).Error
	if err != nil {
		return 0, err
	}

	fixed := 0
	for i := range broken {
		lead := &broken[i]
		result := s.db.WithContext(ctx).Model(&models.Lead{}).
			Where("id = ? AND durum IN ?", lead.ID, pool).
			Updates(map[string]interface{}{
				"sahip":         gorm.Expr("NULL"),
				"atanma_zamani": gorm.Expr("NULL"),
				"updated_at":    time.Now(),
			})
		if result.Error != nil {
			return fixed, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		s.activity.LogBestEffort(ctx, ActivityEntry{
			LeadID:   &lead.ID,
			Actor:    models.SystemActor,
			Action:   models.ActionPoolFix,
			OldValue: lead.OwnerEmail(),
			NewValue: "",
			Note:     lead.Durum,
		})
		fixed++
	}

	if fixed > 0 {
		log.Printf("🔧 Пул: освобождено %d лидов с некорректным владельцем", fixed)
	}
	return fixed, nil
}

// NormalizePage ограничивает параметры пагинации
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	return page, limit
}
