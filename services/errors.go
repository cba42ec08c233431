package services

import "errors"

// Ошибки бизнес-логики. Обработчики сопоставляют их с HTTP статусами через errors.Is
var (
	// Аутентификация
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	ErrUserInactive       = errors.New("пользователь деактивирован")
	ErrInvalidSession     = errors.New("сессия недействительна")

	// Лиды
	ErrLeadNotFound       = errors.New("лид не найден")
	ErrPoolEmpty          = errors.New("в пуле нет доступных лидов")
	ErrPullStreakExceeded = errors.New("слишком много лидов подряд без обновления статуса")
	ErrNotLeadOwner       = errors.New("лид принадлежит другому агенту")
	ErrValidation         = errors.New("некорректные данные")

	// Одобрение
	ErrInvalidApprovalTransition = errors.New("недопустимый переход статуса одобрения")

	// Склад
	ErrItemNotFound   = errors.New("устройство не найдено")
	ErrItemNotInStock = errors.New("устройство уже продано или недоступно")
	ErrItemNotSold    = errors.New("устройство не числится проданным")

	// Взыскание
	ErrNothingToCollect = errors.New("нет должников для звонка")

	// Прочее
	ErrTemplateNotFound   = errors.New("SMS шаблон не найден")
	ErrUserNotFound       = errors.New("пользователь не найден")
	ErrPricingNotFound    = errors.New("ставка для количества платежей не найдена")
	ErrSheetNotConfigured = errors.New("источник таблицы не настроен")
)
