package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Статусы складской позиции
const (
	StockInStock = "STOKTA"
	StockSold    = "SATILDI"
)

// InventoryItem представляет физическое устройство на складе
type InventoryItem struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Marka  string `json:"marka" gorm:"type:varchar(100)"`
	Model  string `json:"model" gorm:"type:varchar(100)"`
	IMEI   string `json:"imei" gorm:"column:imei;type:varchar(50);index"` // Должен быть уникальным, но не проверяется
	SeriNo string `json:"seri_no" gorm:"type:varchar(100)"`

	Durum     string `json:"durum" gorm:"type:varchar(20);default:'STOKTA';index"`
	MusteriID *uint  `json:"musteri_id" gorm:"index"`

	AlisFiyati  decimal.Decimal `json:"alis_fiyati" gorm:"type:decimal(12,2);default:0"`
	SatisFiyati decimal.Decimal `json:"satis_fiyati" gorm:"type:decimal(12,2);default:0"`
	SatisTarihi *time.Time      `json:"satis_tarihi"`

	Notlar string `json:"notlar" gorm:"type:text"`
}

// TableName задает имя таблицы для модели InventoryItem
func (InventoryItem) TableName() string {
	return "inventory"
}

// IsAvailable проверяет, доступно ли устройство для продажи
func (i *InventoryItem) IsAvailable() bool {
	return i.Durum == StockInStock
}

// DisplayName возвращает "марка модель"
func (i *InventoryItem) DisplayName() string {
	return strings.TrimSpace(i.Marka + " " + i.Model)
}
