package models

import (
	"time"
)

// CollectionNote заметка по взысканию
type CollectionNote struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	CreatedAt  time.Time `json:"created_at"`
	LeadID     uint      `json:"lead_id" gorm:"index;not null"`
	ActorEmail string    `json:"actor_email" gorm:"type:varchar(150)"`
	Durum      string    `json:"durum" gorm:"type:varchar(100)"` // tahsilat_durumu на момент заметки
	Not        string    `json:"not" gorm:"type:text"`
}

// TableName задает имя таблицы для модели CollectionNote
func (CollectionNote) TableName() string {
	return "collection_notes"
}

// AttorneyStatusHistory история статусов передачи дела юристу
type AttorneyStatusHistory struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	CreatedAt  time.Time `json:"created_at"`
	LeadID     uint      `json:"lead_id" gorm:"index;not null"`
	ActorEmail string    `json:"actor_email" gorm:"type:varchar(150)"`
	EskiDurum  string    `json:"eski_durum" gorm:"type:varchar(100)"`
	YeniDurum  string    `json:"yeni_durum" gorm:"type:varchar(100)"`
	Aciklama   string    `json:"aciklama" gorm:"type:text"`
}

// TableName задает имя таблицы для модели AttorneyStatusHistory
func (AttorneyStatusHistory) TableName() string {
	return "attorney_status_history"
}

// Статусы отправки SMS
const (
	SMSStatusSent      = "sent"
	SMSStatusFailed    = "failed"
	SMSStatusSimulated = "simulated"
)

// SMSLog запись об отправленном SMS
type SMSLog struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	LeadID      *uint     `json:"lead_id" gorm:"index"`
	ActorEmail  string    `json:"actor_email" gorm:"type:varchar(150)"`
	Telefon     string    `json:"telefon" gorm:"type:varchar(30)"`
	Mesaj       string    `json:"mesaj" gorm:"type:text"`
	Durum       string    `json:"durum" gorm:"type:varchar(20)"`
	Kod         string    `json:"kod" gorm:"type:varchar(10)"`
	ProviderRef string    `json:"provider_ref" gorm:"type:varchar(100)"`
	Hata        string    `json:"hata" gorm:"type:text"`
}

// TableName задает имя таблицы для модели SMSLog
func (SMSLog) TableName() string {
	return "sms_logs"
}
