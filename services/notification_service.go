package services

import (
	"fmt"
	"html"
	"log"
	"sort"
	"strings"

	"backend_kredicrm/models"
)

// AdminMessenger канал доставки уведомлений администраторам
type AdminMessenger interface {
	SendMessage(chatID int64, message string) error
}

// NotificationService отправляет служебные уведомления администраторам в Telegram
type NotificationService struct {
	messenger AdminMessenger
	chatID    int64
}

// NewNotificationService создает новый экземпляр NotificationService.
// messenger может быть nil: уведомления тогда только пишутся в лог
func NewNotificationService(messenger AdminMessenger, chatID int64) *NotificationService {
	return &NotificationService{messenger: messenger, chatID: chatID}
}

// NotifyAdmins отправляет сообщение в чат администраторов. Ошибки только логируются
func (s *NotificationService) NotifyAdmins(message string) {
	if s == nil || s.messenger == nil || s.chatID == 0 {
		log.Printf("📣 [telegram off] %s", message)
		return
	}
	if err := s.messenger.SendMessage(s.chatID, message); err != nil {
		recordIntegrationError("telegram")
		log.Printf("⚠️ Не удалось отправить уведомление в Telegram: %v", err)
	}
}

// NotifyApprovalRequest сообщает о новом запросе на одобрение
func (s *NotificationService) NotifyApprovalRequest(lead *models.Lead, agent string) {
	message := fmt.Sprintf(
		"📝 <b>Yeni onay talebi</b>\nMüşteri: %s\nTelefon: %s\nŞehir: %s\nTemsilci: %s\nID: %d",
		html.EscapeString(lead.AdSoyad),
		html.EscapeString(lead.Telefon),
		html.EscapeString(lead.Sehir),
		html.EscapeString(agent),
		lead.ID,
	)
	s.NotifyAdmins(message)
}

// NotifyBatchSummary сообщает итоги массовой операции
func (s *NotificationService) NotifyBatchSummary(title string, counters map[string]int) {
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s</b>", html.EscapeString(title))
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %d", html.EscapeString(k), counters[k])
	}
	s.NotifyAdmins(b.String())
}
