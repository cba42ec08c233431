package api

import (
	"net/http"

	"backend_kredicrm/models"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// readonlySettingFields поля, которые нельзя менять через PUT
var readonlySettingFields = []string{"id", "created_at", "updated_at"}

// SettingsAPI справочники: статусы, товары, быстрые заметки, ставки, причины отказа
type SettingsAPI struct {
	settings *services.SettingsService
}

// NewSettingsAPI создает новый экземпляр SettingsAPI
func NewSettingsAPI(settings *services.SettingsService) *SettingsAPI {
	return &SettingsAPI{settings: settings}
}

type installmentRequest struct {
	Fiyat  decimal.Decimal `json:"fiyat"`
	Taksit int             `json:"taksit" binding:"required"`
}

// settingRoutes набор обработчиков одного справочника
type settingRoutes struct {
	path   string
	list   gin.HandlerFunc
	create gin.HandlerFunc
	update gin.HandlerFunc
	remove gin.HandlerFunc
}

func newSettingRoutes[T services.SettingsTable](s *services.SettingsService, path, order string) settingRoutes {
	return settingRoutes{
		path:   path,
		list:   listSettings[T](s, order),
		create: createSetting[T](s),
		update: updateSetting[T](s),
		remove: deleteSetting[T](s),
	}
}

// tables справочники в порядке регистрации маршрутов
func (api *SettingsAPI) tables() []settingRoutes {
	return []settingRoutes{
		newSettingRoutes[models.StatusDefinition](api.settings, "/statuses", "sira ASC, id ASC"),
		newSettingRoutes[models.Product](api.settings, "/products", "ad ASC, id ASC"),
		newSettingRoutes[models.QuickNote](api.settings, "/quick-notes", "sira ASC, id ASC"),
		newSettingRoutes[models.PricingConfig](api.settings, "/pricing", "taksit_sayisi ASC"),
		newSettingRoutes[models.CancellationReason](api.settings, "/cancellation-reasons", "ad ASC, id ASC"),
		newSettingRoutes[models.SMSTemplate](api.settings, "/sms-templates", "kod ASC"),
	}
}

func listSettings[T services.SettingsTable](s *services.SettingsService, order string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := services.ListSettings[T](c.Request.Context(), s, order)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

func createSetting[T services.SettingsTable](s *services.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var row T
		if err := c.ShouldBindJSON(&row); err != nil {
			badRequest(c, err)
			return
		}
		if err := services.CreateSetting(c.Request.Context(), s, &row); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": "Запись создана",
			"data":    row,
		})
	}
}

func updateSetting[T services.SettingsTable](s *services.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			badRequest(c, err)
			return
		}
		for _, field := range readonlySettingFields {
			delete(updates, field)
		}
		row, err := services.UpdateSetting[T](c.Request.Context(), s, id, updates)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Запись обновлена",
			"data":    row,
		})
	}
}

func deleteSetting[T services.SettingsTable](s *services.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := services.DeleteSetting[T](c.Request.Context(), s, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Запись удалена"})
	}
}

// CalculateInstallment расчет рассрочки по ставке из pricing_config
func (api *SettingsAPI) CalculateInstallment(c *gin.Context) {
	var req installmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := api.settings.CalculateInstallment(c.Request.Context(), req.Fiyat, req.Taksit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
