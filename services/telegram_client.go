package services

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramClient представляет клиент для работы с Telegram Bot API
type TelegramClient struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramClient создает новый экземпляр Telegram клиента
func NewTelegramClient(token string) (*TelegramClient, error) {
	return NewTelegramClientWithEndpoint(token, tgbotapi.APIEndpoint)
}

// NewTelegramClientWithEndpoint создает клиент с нестандартным адресом API (формат "…/bot%s/%s")
func NewTelegramClientWithEndpoint(token, endpoint string) (*TelegramClient, error) {
	if token == "" {
		return nil, fmt.Errorf("токен Telegram бота не задан")
	}

	// Создаем Bot API клиент
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram бота: %w", err)
	}

	// В продакшене отключаем debug
	bot.Debug = false

	log.Printf("✅ Telegram бот авторизован: %s", bot.Self.UserName)
	return &TelegramClient{bot: bot}, nil
}

// SendMessage отправляет HTML сообщение в чат
func (tc *TelegramClient) SendMessage(chatID int64, message string) error {
	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := tc.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return nil
}

// IsHealthy проверяет доступность бота
func (tc *TelegramClient) IsHealthy() bool {
	_, err := tc.bot.GetMe()
	return err == nil
}
