package services

import (
	"log"

	"backend_kredicrm/config"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Services набор сервисов приложения
type Services struct {
	Activity      *ActivityService
	Cache         *CacheService
	Notifications *NotificationService
	SMS           *SMSService
	Auth          *AuthService
	Users         *UserService
	Leads         *LeadService
	Approvals     *ApprovalService
	Inventory     *InventoryService
	Collections   *CollectionService
	Reports       *ReportService
	Exports       *ExportService
	Imports       *ImportService
	Settings      *SettingsService
	Storage       *StorageService
	Scheduler     *Scheduler
}

// NewServices собирает сервисы. redisClient и messenger могут быть nil
func NewServices(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, gateway SMSGateway, messenger AdminMessenger) (*Services, error) {
	storage, err := NewStorageService(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if gateway == nil {
		gateway = NewSMSClient(cfg.SMS)
	}

	s := &Services{Storage: storage}
	s.Activity = NewActivityService(db)
	s.Cache = NewCacheService(redisClient)
	s.Notifications = NewNotificationService(messenger, cfg.Telegram.ChatID)
	s.SMS = NewSMSService(db, s.Activity, gateway)
	s.Auth = NewAuthService(db, cfg.JWT)
	s.Users = NewUserService(db)
	s.Leads = NewLeadService(db, s.Activity, s.Cache, cfg.Leads)
	s.Approvals = NewApprovalService(db, s.Leads, s.Activity, s.SMS, s.Notifications, s.Cache, cfg.SMS.StatusNotify)
	s.Inventory = NewInventoryService(db, s.Leads, s.Activity, s.SMS, s.Cache)
	s.Collections = NewCollectionService(db, s.Leads, s.Activity, cfg.Leads.CollectionCooldown)
	s.Reports = NewReportService(db, s.Cache, cfg.Leads.ReportRowCap)
	s.Exports = NewExportService(db, cfg.Leads.ReportRowCap)
	s.Imports = NewImportService(db, s.Activity, s.Notifications, s.Cache, cfg.Sheets)
	s.Settings = NewSettingsService(db, s.Cache)
	s.Scheduler = NewScheduler(cfg.Jobs, s.Leads, s.Activity, s.Imports, cfg.Leads.RetentionMonths)
	return s, nil
}

// logSideEffectError побочные действия (журнал, SMS, история) не прерывают операцию
func logSideEffectError(what string, leadID uint, err error) {
	if leadID == 0 {
		log.Printf("⚠️ %s: %v", what, err)
		return
	}
	log.Printf("⚠️ %s (лид %d): %v", what, leadID, err)
}
