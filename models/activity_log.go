package models

import (
	"time"
)

// Теги действий журнала активности
const (
	ActionPullLead       = "PULL_LEAD"
	ActionReleaseLead    = "RELEASE_LEAD"
	ActionCreateLead     = "CREATE_LEAD"
	ActionUpdateLead     = "UPDATE_LEAD"
	ActionUpdateStatus   = "UPDATE_STATUS"
	ActionBulkStatus     = "BULK_UPDATE_STATUS"
	ActionSubmitApproval = "SUBMIT_APPROVAL"
	ActionDeleteLead     = "DELETE_LEAD"
	ActionDeliver        = "DELIVER"
	ActionReturnItem     = "RETURN_ITEM"
	ActionSendSMS        = "SEND_SMS"
	ActionClickCall      = "CLICK_CALL"
	ActionClickSMS       = "CLICK_SMS"
	ActionClickWhatsApp  = "CLICK_WHATSAPP"
	ActionViewLead       = "VIEW_LEAD"
	ActionCollectionCall = "COLLECTION_CALL"
	ActionCollectionNote = "COLLECTION_NOTE"
	ActionAttorneyUpdate = "ATTORNEY_UPDATE"
	ActionClassify       = "CLASSIFY"
	ActionPoolFix        = "POOL_FIX"
	ActionImportLead     = "IMPORT_LEAD"
	ActionSyncLead       = "SYNC_LEAD"
	ActionUploadImage    = "UPLOAD_IMAGE"
	ActionSystemCleanup  = "LOG_CLEANUP"
	SystemActor          = "system"
)

// SoftActions действия, которые не считаются "реальным" обновлением лида
var SoftActions = map[string]bool{
	ActionClickCall:     true,
	ActionClickSMS:      true,
	ActionClickWhatsApp: true,
	ActionViewLead:      true,
}

// IsSoftAction проверяет, является ли действие "мягким"
func IsSoftAction(action string) bool {
	return SoftActions[action]
}

// ActivityLog запись журнала аудита. Только добавление; удаляется лишь очисткой по сроку
type ActivityLog struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
	LeadID     *uint     `json:"lead_id" gorm:"index"` // Слабая ссылка, без внешнего ключа
	ActorEmail string    `json:"actor_email" gorm:"type:varchar(150);index"`
	Action     string    `json:"action" gorm:"type:varchar(50);index"`
	OldValue   string    `json:"old_value" gorm:"type:text"`
	NewValue   string    `json:"new_value" gorm:"type:text"`
	Note       string    `json:"note" gorm:"type:text"`
}

// TableName задает имя таблицы для модели ActivityLog
func (ActivityLog) TableName() string {
	return "activity_logs"
}
