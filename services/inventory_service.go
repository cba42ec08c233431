package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backend_kredicrm/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryService предоставляет бизнес-логику для складских операций
type InventoryService struct {
	db       *gorm.DB
	leads    *LeadService
	activity *ActivityService
	sms      *SMSService
	cache    *CacheService
}

// NewInventoryService создает новый экземпляр InventoryService
func NewInventoryService(db *gorm.DB, leads *LeadService, activity *ActivityService, sms *SMSService, cache *CacheService) *InventoryService {
	return &InventoryService{db: db, leads: leads, activity: activity, sms: sms, cache: cache}
}

// InventoryInput данные новой складской позиции
type InventoryInput struct {
	Marka       string          `json:"marka" binding:"required"`
	Model       string          `json:"model" binding:"required"`
	IMEI        string          `json:"imei" binding:"required"`
	SeriNo      string          `json:"seri_no"`
	AlisFiyati  decimal.Decimal `json:"alis_fiyati"`
	SatisFiyati decimal.Decimal `json:"satis_fiyati"`
	Notlar      string          `json:"notlar"`
}

// InventoryUpdate частичное обновление позиции
type InventoryUpdate struct {
	Marka       *string          `json:"marka"`
	Model       *string          `json:"model"`
	IMEI        *string          `json:"imei"`
	SeriNo      *string          `json:"seri_no"`
	AlisFiyati  *decimal.Decimal `json:"alis_fiyati"`
	SatisFiyati *decimal.Decimal `json:"satis_fiyati"`
	Notlar      *string          `json:"notlar"`
}

// InventoryFilters фильтры списка склада
type InventoryFilters struct {
	Durum string
	Marka string
	Query string
	Page  int
	Limit int
}

// AssignRequest продажа устройства клиенту
type AssignRequest struct {
	ItemID      uint             `json:"item_id" binding:"required"`
	LeadID      uint             `json:"lead_id" binding:"required"`
	SatisFiyati *decimal.Decimal `json:"satis_fiyati"`
}

// InventoryStats сводка по складу
type InventoryStats struct {
	ByStatus   map[string]int64 `json:"by_status"`
	ByBrand    map[string]int64 `json:"by_brand"`
	StockValue decimal.Decimal  `json:"stock_value"`
	SoldValue  decimal.Decimal  `json:"sold_value"`
}

// Add добавляет устройство на склад
func (s *InventoryService) Add(ctx context.Context, input InventoryInput) (*models.InventoryItem, error) {
	if strings.TrimSpace(input.IMEI) == "" {
		return nil, fmt.Errorf("%w: imei обязателен", ErrValidation)
	}

	// IMEI не уникален в схеме, дубликат только логируем
	var dup int64
	s.db.WithContext(ctx).Model(&models.InventoryItem{}).Where("imei = ?", input.IMEI).Count(&dup)
	if dup > 0 {
		log.Printf("⚠️ IMEI %s уже есть на складе (%d шт.)", input.IMEI, dup)
	}

	item := &models.InventoryItem{
		Marka:       strings.TrimSpace(input.Marka),
		Model:       strings.TrimSpace(input.Model),
		IMEI:        strings.TrimSpace(input.IMEI),
		SeriNo:      input.SeriNo,
		Durum:       models.StockInStock,
		AlisFiyati:  input.AlisFiyati,
		SatisFiyati: input.SatisFiyati,
		Notlar:      input.Notlar,
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("ошибка при добавлении устройства: %w", err)
	}
	s.cache.InvalidateDashboard(ctx)
	return item, nil
}

// Get возвращает позицию по ID
func (s *InventoryService) Get(ctx context.Context, id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List возвращает страницу склада
func (s *InventoryService) List(ctx context.Context, f InventoryFilters) ([]models.InventoryItem, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.InventoryItem{})
	if f.Durum != "" {
		query = query.Where("durum = ?", f.Durum)
	}
	if f.Marka != "" {
		query = query.Where("marka = ?", f.Marka)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("imei LIKE ? OR LOWER(model) LIKE LOWER(?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := NormalizePage(f.Page, f.Limit)
	var items []models.InventoryItem
	err := query.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&items).Error
	return items, total, err
}

// Update обновляет описание позиции. Статус меняется только продажей и возвратом
func (s *InventoryService) Update(ctx context.Context, id uint, input InventoryUpdate) (*models.InventoryItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Marka != nil {
		updates["marka"] = *input.Marka
	}
	if input.Model != nil {
		updates["model"] = *input.Model
	}
	if input.IMEI != nil {
		updates["imei"] = *input.IMEI
	}
	if input.SeriNo != nil {
		updates["seri_no"] = *input.SeriNo
	}
	if input.AlisFiyati != nil {
		updates["alis_fiyati"] = *input.AlisFiyati
	}
	if input.SatisFiyati != nil {
		updates["satis_fiyati"] = *input.SatisFiyati
	}
	if input.Notlar != nil {
		updates["notlar"] = *input.Notlar
	}
	if len(updates) == 0 {
		return item, nil
	}

	if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка при обновлении устройства: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete удаляет позицию, если она еще не продана
func (s *InventoryService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND durum = ?", id, models.StockInStock).Delete(&models.InventoryItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrItemNotInStock
	}
	s.cache.InvalidateDashboard(ctx)
	return nil
}

// Assign продает устройство клиенту: склад STOKTA → SATILDI, лид получает устройство и статус "Teslim edildi"
func (s *InventoryService) Assign(ctx context.Context, actor string, req AssignRequest) (*models.Lead, *models.InventoryItem, error) {
	item, err := s.Get(ctx, req.ItemID)
	if err != nil {
		return nil, nil, err
	}
	lead, err := s.leads.Get(ctx, req.LeadID)
	if err != nil {
		return nil, nil, err
	}
	if !item.IsAvailable() {
		return nil, nil, ErrItemNotInStock
	}

	price := item.SatisFiyati
	if req.SatisFiyati != nil {
		price = *req.SatisFiyati
	}
	now := time.Now()

	// Условное обновление: из двух параллельных продаж одной позиции проходит одна
	result := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("id = ? AND durum = ?", item.ID, models.StockInStock).
		Updates(map[string]interface{}{
			"durum":        models.StockSold,
			"musteri_id":   lead.ID,
			"satis_fiyati": price,
			"satis_tarihi": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return nil, nil, fmt.Errorf("ошибка при списании устройства: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil, ErrItemNotInStock
	}

	sold, err := lead.WithSoldItem(models.SoldItem{
		ItemID: item.ID,
		Urun:   item.DisplayName(),
		IMEI:   item.IMEI,
		Fiyat:  price,
		Tarih:  now,
	})
	if err != nil {
		return nil, nil, err
	}

	oldDurum := lead.Durum
	err = s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", lead.ID).Updates(map[string]interface{}{
		"urun_imei":       item.IMEI,
		"urun_adi":        item.DisplayName(),
		"satis_fiyati":    price,
		"teslim_tarihi":   now,
		"durum":           models.StatusDelivered,
		"satilan_urunler": sold,
		"updated_at":      now,
	}).Error
	if err != nil {
		// Устройство уже списано; без транзакции состояние остается частичным
		return nil, nil, fmt.Errorf("устройство %d списано, но лид %d не обновлен: %w", item.ID, lead.ID, err)
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   &lead.ID,
		Actor:    actor,
		Action:   models.ActionDeliver,
		OldValue: oldDurum,
		NewValue: models.StatusDelivered,
		Note:     fmt.Sprintf("%s IMEI %s", item.DisplayName(), item.IMEI),
	})
	s.cache.InvalidateDashboard(ctx)

	updatedLead, err := s.leads.Get(ctx, lead.ID)
	if err != nil {
		return nil, nil, err
	}
	updatedItem, err := s.Get(ctx, item.ID)
	if err != nil {
		return nil, nil, err
	}

	s.sms.Notify(ctx, actor, updatedLead, models.TemplateDelivered)
	log.Printf("📦 Устройство %s (IMEI %s) выдано клиенту %d", item.DisplayName(), item.IMEI, lead.ID)
	return updatedLead, updatedItem, nil
}

// Return возвращает проданное устройство на склад
func (s *InventoryService) Return(ctx context.Context, actor string, id uint, note string) (*models.InventoryItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Durum != models.StockSold {
		return nil, ErrItemNotSold
	}

	result := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("id = ? AND durum = ?", id, models.StockSold).
		Updates(map[string]interface{}{
			"durum":        models.StockInStock,
			"musteri_id":   gorm.Expr("NULL"),
			"satis_tarihi": gorm.Expr("NULL"),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("ошибка при возврате устройства: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrItemNotSold
	}

	s.activity.LogBestEffort(ctx, ActivityEntry{
		LeadID:   item.MusteriID,
		Actor:    actor,
		Action:   models.ActionReturnItem,
		OldValue: models.StockSold,
		NewValue: models.StockInStock,
		Note:     strings.TrimSpace(fmt.Sprintf("IMEI %s %s", item.IMEI, note)),
	})
	s.cache.InvalidateDashboard(ctx)
	return s.Get(ctx, id)
}

// Stats считает позиции по статусам и маркам и стоимость склада
func (s *InventoryService) Stats(ctx context.Context) (*InventoryStats, error) {
	var items []models.InventoryItem
	if err := s.db.WithContext(ctx).Find(&items).Error; err != nil {
		return nil, err
	}

	stats := &InventoryStats{
		ByStatus:   map[string]int64{},
		ByBrand:    map[string]int64{},
		StockValue: decimal.Zero,
		SoldValue:  decimal.Zero,
	}
	for _, item := range items {
		stats.ByStatus[item.Durum]++
		if item.IsAvailable() {
			stats.ByBrand[item.Marka]++
			stats.StockValue = stats.StockValue.Add(item.AlisFiyati)
		} else {
			stats.SoldValue = stats.SoldValue.Add(item.SatisFiyati)
		}
	}
	return stats, nil
}
