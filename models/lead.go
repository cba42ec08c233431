package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Основные статусы лида (durum). Набор открытый: админ может добавлять свои через таблицу statuses.
const (
	StatusNew              = "Yeni"
	StatusUnreachable      = "Ulaşılamadı"
	StatusToCall           = "Aranacak"
	StatusPendingApproval  = "Onaya gönderildi"
	StatusApproved         = "Onaylandı"
	StatusRejected         = "Reddetti"
	StatusGuarantorPending = "Kefil bekleniyor"
	StatusDelivered        = "Teslim edildi"
	StatusCancelled        = "İptal"
)

// Классы лида (sinif)
const (
	ClassDelinquent = "Gecikme"
)

// Источники лида (kaynak)
const (
	SourceManual = "manual"
	SourceImport = "import"
	SourceSheet  = "sheet"
)

// DefaultPoolStatuses статусы "без владельца", если в таблице statuses нет отметки havuz
var DefaultPoolStatuses = []string{StatusNew, StatusUnreachable}

// Lead представляет клиента (потенциального или действующего) кредитной продажи
type Lead struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	// Контактные данные (не нормализуются)
	AdSoyad  string `json:"ad_soyad" gorm:"type:varchar(150)"`
	Telefon  string `json:"telefon" gorm:"type:varchar(30);index"`
	// Цифры номера в виде 5XXXXXXXXX для поиска дубликатов
	TelefonNorm string `json:"-" gorm:"type:varchar(30);index"`
	Sehir    string `json:"sehir" gorm:"type:varchar(100)"`
	Meslek   string `json:"meslek" gorm:"type:varchar(100)"`
	Gelir    string `json:"gelir" gorm:"type:varchar(50)"` // Свободный текст или число
	Yas      int    `json:"yas"`                           // 0 = неизвестно
	TCKimlik string `json:"tc_kimlik" gorm:"column:tc_kimlik;type:varchar(20)"`
	Adres    string `json:"adres" gorm:"type:text"`
	Kaynak   string `json:"kaynak" gorm:"type:varchar(30);default:'manual'"`

	// Рабочий статус и владелец. Sahip == nil означает "в общем пуле"
	Durum        string     `json:"durum" gorm:"type:varchar(100);index"`
	Sahip        *string    `json:"sahip" gorm:"type:varchar(150);index"`
	AtanmaZamani *time.Time `json:"atanma_zamani"`

	// Одобрение
	OnayDurumu  ApprovalStatus  `json:"onay_durumu" gorm:"type:varchar(50);index"`
	KrediLimiti decimal.Decimal `json:"kredi_limiti" gorm:"type:decimal(12,2);default:0"`
	AdminNotu   string          `json:"admin_notu" gorm:"type:text"`
	OnayTarihi  *time.Time      `json:"onay_tarihi"`
	Onaylayan   string          `json:"onaylayan" gorm:"type:varchar(150)"`

	// Взыскание
	Sinif          string     `json:"sinif" gorm:"type:varchar(50);index"`
	TahsilatDurumu string     `json:"tahsilat_durumu" gorm:"type:varchar(100)"`
	SonAramaZamani *time.Time `json:"son_arama_zamani" gorm:"index"`
	SozTarihi      *time.Time `json:"soz_tarihi"` // Обещанная дата оплаты
	AvukatDurumu   string     `json:"avukat_durumu" gorm:"type:varchar(100)"`

	// Продажа и выдача устройства
	UrunIMEI       string          `json:"urun_imei" gorm:"column:urun_imei;type:varchar(50)"`
	UrunAdi        string          `json:"urun_adi" gorm:"type:varchar(200)"`
	SatisFiyati    decimal.Decimal `json:"satis_fiyati" gorm:"type:decimal(12,2);default:0"`
	TeslimTarihi   *time.Time      `json:"teslim_tarihi"`
	SatilanUrunler string          `json:"satilan_urunler" gorm:"type:text"` // JSON список проданных позиций
	Gorseller      string          `json:"gorseller" gorm:"type:text"`       // JSON список ссылок на изображения

	IptalNedeni string `json:"iptal_nedeni" gorm:"type:varchar(200)"`
	Notlar      string `json:"notlar" gorm:"type:text"`
	DisKaynakID string `json:"dis_kaynak_id" gorm:"column:dis_kaynak_id;type:varchar(100);index"`
}

// TableName задает имя таблицы для модели Lead
func (Lead) TableName() string {
	return "leads"
}

// BeforeCreate заполняет нормализованный телефон
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	l.TelefonNorm = NormalizePhone(l.Telefon)
	return nil
}

// NormalizePhone оставляет только цифры и приводит номер к виду 5XXXXXXXXX
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "90"):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	}
	return digits
}

// AssignmentState состояние назначения лида
type AssignmentState string

const (
	Unassigned AssignmentState = "unassigned"
	Assigned   AssignmentState = "assigned"
)

// Assignment явное представление владения: Unassigned | Assigned(owner)
type Assignment struct {
	State AssignmentState `json:"state"`
	Owner string          `json:"owner,omitempty"`
}

// Assignment возвращает состояние назначения лида
func (l *Lead) Assignment() Assignment {
	if l.Sahip == nil || strings.TrimSpace(*l.Sahip) == "" {
		return Assignment{State: Unassigned}
	}
	return Assignment{State: Assigned, Owner: *l.Sahip}
}

// IsOwnedBy проверяет, принадлежит ли лид агенту
func (l *Lead) IsOwnedBy(email string) bool {
	a := l.Assignment()
	return a.State == Assigned && strings.EqualFold(a.Owner, email)
}

// OwnerEmail возвращает email владельца или пустую строку
func (l *Lead) OwnerEmail() string {
	return l.Assignment().Owner
}

// SoldItem позиция в списке satilan_urunler
type SoldItem struct {
	ItemID uint            `json:"item_id"`
	Urun   string          `json:"urun"`
	IMEI   string          `json:"imei"`
	Fiyat  decimal.Decimal `json:"fiyat"`
	Tarih  time.Time       `json:"tarih"`
}

// SoldItems разбирает JSON список проданных позиций
func (l *Lead) SoldItems() []SoldItem {
	var items []SoldItem
	if strings.TrimSpace(l.SatilanUrunler) == "" {
		return items
	}
	if err := json.Unmarshal([]byte(l.SatilanUrunler), &items); err != nil {
		return nil
	}
	return items
}

// WithSoldItem возвращает JSON списка с добавленной позицией
func (l *Lead) WithSoldItem(item SoldItem) (string, error) {
	items := append(l.SoldItems(), item)
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImageURLs разбирает JSON список изображений
func (l *Lead) ImageURLs() []string {
	var urls []string
	if strings.TrimSpace(l.Gorseller) == "" {
		return urls
	}
	if err := json.Unmarshal([]byte(l.Gorseller), &urls); err != nil {
		return nil
	}
	return urls
}

// WithImage возвращает JSON списка изображений с добавленной ссылкой
func (l *Lead) WithImage(url string) (string, error) {
	data, err := json.Marshal(append(l.ImageURLs(), url))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsPoolStatus проверяет, входит ли статус в набор статусов пула
func IsPoolStatus(status string, poolStatuses []string) bool {
	for _, s := range poolStatuses {
		if s == status {
			return true
		}
	}
	return false
}
