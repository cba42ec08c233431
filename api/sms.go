package api

import (
	"net/http"
	"strings"

	"backend_kredicrm/middleware"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

// SMSAPI отправка SMS и история
type SMSAPI struct {
	sms   *services.SMSService
	leads *services.LeadService
}

// NewSMSAPI создает новый экземпляр SMSAPI
func NewSMSAPI(sms *services.SMSService, leads *services.LeadService) *SMSAPI {
	return &SMSAPI{sms: sms, leads: leads}
}

// SendSMSRequest одиночная отправка: лид или номер, шаблон или текст
type SendSMSRequest struct {
	LeadID   uint   `json:"lead_id"`
	Telefon  string `json:"telefon"`
	Template string `json:"template"`
	Message  string `json:"message"`
}

// BulkSMSRequest массовая отправка по списку лидов
type BulkSMSRequest struct {
	LeadIDs  []uint `json:"lead_ids" binding:"required,min=1"`
	Template string `json:"template"`
	Message  string `json:"message"`
}

// Send отправляет одно SMS
func (api *SMSAPI) Send(c *gin.Context) {
	var req SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Template == "" && strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Нужен шаблон или текст сообщения"})
		return
	}

	ctx := c.Request.Context()
	actor := middleware.GetCurrentActor(c)

	if req.LeadID == 0 {
		if req.Telefon == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Нужен lead_id или telefon"})
			return
		}
		message := req.Message
		if req.Template != "" {
			tpl, err := api.sms.TemplateByCode(ctx, req.Template)
			if err != nil {
				respondError(c, err)
				return
			}
			message = tpl.Icerik
		}
		entry, err := api.sms.SendRaw(ctx, actor.Email, req.Telefon, message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "SMS отправлено", "data": entry})
		return
	}

	lead, err := api.leads.GetForActor(ctx, req.LeadID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Template != "" {
		entry, err := api.sms.SendTemplate(ctx, actor.Email, lead, req.Template)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "SMS отправлено", "data": entry})
		return
	}

	entry, err := api.sms.SendToLead(ctx, actor.Email, lead, services.RenderTemplate(req.Message, lead))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SMS отправлено", "data": entry})
}

// Bulk массовая рассылка
func (api *SMSAPI) Bulk(c *gin.Context) {
	var req BulkSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := api.sms.Bulk(c.Request.Context(), middleware.GetCurrentEmail(c), req.LeadIDs, req.Template, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// History SMS, отправленные лиду
func (api *SMSAPI) History(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := api.leads.GetForActor(ctx, id, middleware.GetCurrentActor(c)); err != nil {
		respondError(c, err)
		return
	}
	logs, err := api.sms.History(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
