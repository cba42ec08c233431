package services

import (
	"context"
	"errors"
	"fmt"

	"backend_kredicrm/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrSettingNotFound запись справочника не найдена
var ErrSettingNotFound = errors.New("запись справочника не найдена")

// SettingsService справочники: статусы, товары, быстрые заметки, ставки, причины отмены, шаблоны SMS
type SettingsService struct {
	db    *gorm.DB
	cache *CacheService
}

// NewSettingsService создает сервис справочников
func NewSettingsService(db *gorm.DB, cache *CacheService) *SettingsService {
	return &SettingsService{db: db, cache: cache}
}

// DB подключение для обобщенных операций над справочниками
func (s *SettingsService) DB() *gorm.DB {
	return s.db
}

// Cache кэш справочников
func (s *SettingsService) Cache() *CacheService {
	return s.cache
}

// SettingsTable имя таблицы справочника для ключа кэша
type SettingsTable interface {
	TableName() string
}

// ListSettings читает справочник целиком через кэш
func ListSettings[T SettingsTable](ctx context.Context, s *SettingsService, order string) ([]T, error) {
	var zero T
	var rows []T
	err := s.cache.Remember(ctx, SettingsKey(zero.TableName()), CacheTTLLong, &rows, func() (interface{}, error) {
		var loaded []T
		if err := s.db.WithContext(ctx).Order(order).Find(&loaded).Error; err != nil {
			return nil, err
		}
		return loaded, nil
	})
	return rows, err
}

// CreateSetting создает запись справочника
func CreateSetting[T SettingsTable](ctx context.Context, s *SettingsService, row *T) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("ошибка создания записи: %w", err)
	}
	s.invalidate(ctx, (*row).TableName())
	return nil
}

// UpdateSetting обновляет поля записи справочника
func UpdateSetting[T SettingsTable](ctx context.Context, s *SettingsService, id uint, updates map[string]interface{}) (*T, error) {
	var row T
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&row).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("ошибка обновления записи: %w", err)
		}
	}
	s.invalidate(ctx, row.TableName())

	var fresh T
	err := s.db.WithContext(ctx).First(&fresh, id).Error
	return &fresh, err
}

// DeleteSetting удаляет запись справочника
func DeleteSetting[T SettingsTable](ctx context.Context, s *SettingsService, id uint) error {
	var zero T
	result := s.db.WithContext(ctx).Delete(&zero, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	s.invalidate(ctx, zero.TableName())
	return nil
}

func (s *SettingsService) invalidate(ctx context.Context, table string) {
	if err := s.cache.Del(ctx, SettingsKey(table)); err != nil {
		logSideEffectError("cache "+table, 0, err)
	}
}

// Installment расчет рассрочки
type Installment struct {
	Fiyat          decimal.Decimal `json:"fiyat"`
	TaksitSayisi   int             `json:"taksit_sayisi"`
	VadeFarkiOrani decimal.Decimal `json:"vade_farki_orani"`
	VadeFarki      decimal.Decimal `json:"vade_farki"`
	Toplam         decimal.Decimal `json:"toplam"`
	AylikTaksit    decimal.Decimal `json:"aylik_taksit"`
}

var hundred = decimal.NewFromInt(100)

// CalculateInstallment считает наценку и ежемесячный платеж по ставке из pricing_config
func (s *SettingsService) CalculateInstallment(ctx context.Context, fiyat decimal.Decimal, taksit int) (*Installment, error) {
	if taksit < 1 {
		return nil, fmt.Errorf("%w: taksit должен быть больше нуля", ErrValidation)
	}
	if !fiyat.IsPositive() {
		return nil, fmt.Errorf("%w: fiyat должен быть больше нуля", ErrValidation)
	}

	var cfg models.PricingConfig
	err := s.db.WithContext(ctx).Where("taksit_sayisi = ? AND aktif = ?", taksit, true).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPricingNotFound
	}
	if err != nil {
		return nil, err
	}

	return CalculateInstallment(fiyat, taksit, cfg.VadeFarkiOrani), nil
}

// CalculateInstallment чистый расчет: vade farkı = fiyat * oran / 100, округление до 2 знаков
func CalculateInstallment(fiyat decimal.Decimal, taksit int, oran decimal.Decimal) *Installment {
	vade := fiyat.Mul(oran).Div(hundred).Round(2)
	toplam := fiyat.Add(vade).Round(2)
	return &Installment{
		Fiyat:          fiyat.Round(2),
		TaksitSayisi:   taksit,
		VadeFarkiOrani: oran,
		VadeFarki:      vade,
		Toplam:         toplam,
		AylikTaksit:    toplam.Div(decimal.NewFromInt(int64(taksit))).Round(2),
	}
}
