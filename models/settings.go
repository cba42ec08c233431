package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Коды SMS шаблонов, используемых системой
const (
	TemplateApproved  = "ONAY"
	TemplateRejected  = "RED"
	TemplateGuarantor = "KEFIL"
	TemplateDelivered = "TESLIM"
	TemplateReminder  = "HATIRLATMA"
)

// SMSTemplate шаблон SMS с плейсхолдерами вида {ad_soyad}
type SMSTemplate struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Kod      string `json:"kod" gorm:"uniqueIndex;not null;type:varchar(50)"`
	Baslik   string `json:"baslik" gorm:"type:varchar(150)"`
	Icerik   string `json:"icerik" gorm:"type:text;not null"`
	IsActive bool   `json:"is_active" gorm:"default:true"`
}

// TableName задает имя таблицы для модели SMSTemplate
func (SMSTemplate) TableName() string {
	return "sms_templates"
}

// StatusDefinition настраиваемый администратором статус лида
type StatusDefinition struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Ad    string `json:"ad" gorm:"uniqueIndex;not null;type:varchar(100)"`
	Renk  string `json:"renk" gorm:"type:varchar(7)"` // HEX цвет для UI
	Sira  int    `json:"sira" gorm:"default:0"`
	Havuz bool   `json:"havuz" gorm:"default:false"` // Статус "без владельца"
	Aktif bool   `json:"aktif" gorm:"default:true"`
}

// TableName задает имя таблицы для модели StatusDefinition
func (StatusDefinition) TableName() string {
	return "statuses"
}

// Product товар из каталога
type Product struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Ad    string          `json:"ad" gorm:"not null;type:varchar(150)"`
	Marka string          `json:"marka" gorm:"type:varchar(100)"`
	Fiyat decimal.Decimal `json:"fiyat" gorm:"type:decimal(12,2);default:0"`
	Aktif bool            `json:"aktif" gorm:"default:true"`
}

// TableName задает имя таблицы для модели Product
func (Product) TableName() string {
	return "products"
}

// QuickNote быстрая заметка для агентов
type QuickNote struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Metin string `json:"metin" gorm:"type:text;not null"`
	Sira  int    `json:"sira" gorm:"default:0"`
}

// TableName задает имя таблицы для модели QuickNote
func (QuickNote) TableName() string {
	return "quick_notes"
}

// PricingConfig ставка наценки для количества платежей
type PricingConfig struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TaksitSayisi   int             `json:"taksit_sayisi" gorm:"uniqueIndex;not null"`
	VadeFarkiOrani decimal.Decimal `json:"vade_farki_orani" gorm:"type:decimal(6,2);default:0"` // Процент
	Aktif          bool            `json:"aktif" gorm:"default:true"`
}

// TableName задает имя таблицы для модели PricingConfig
func (PricingConfig) TableName() string {
	return "pricing_config"
}

// CancellationReason причина отмены
type CancellationReason struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Ad    string `json:"ad" gorm:"uniqueIndex;not null;type:varchar(150)"`
	Aktif bool   `json:"aktif" gorm:"default:true"`
}

// TableName задает имя таблицы для модели CancellationReason
func (CancellationReason) TableName() string {
	return "cancellation_reasons"
}
