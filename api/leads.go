package api

import (
	"errors"
	"log"
	"net/http"

	"backend_kredicrm/middleware"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

// LeadAPI представляет API агента для работы с лидами
type LeadAPI struct {
	leads     *services.LeadService
	approvals *services.ApprovalService
	activity  *services.ActivityService
	storage   *services.StorageService
}

// NewLeadAPI создает новый экземпляр LeadAPI
func NewLeadAPI(svc *services.Services) *LeadAPI {
	return &LeadAPI{
		leads:     svc.Leads,
		approvals: svc.Approvals,
		activity:  svc.Activity,
		storage:   svc.Storage,
	}
}

type submitApprovalRequest struct {
	Note string `json:"note"`
}

type trackRequest struct {
	Type string `json:"type" binding:"required"`
}

// PullLead выдает агенту следующий лид из пула
func (api *LeadAPI) PullLead(c *gin.Context) {
	email := middleware.GetCurrentEmail(c)
	lead, err := api.leads.PullLead(c.Request.Context(), email)
	if errors.Is(err, services.ErrPoolEmpty) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Havuzda uygun müşteri yok"})
		return
	}
	if err != nil {
		if errors.Is(err, services.ErrPullStreakExceeded) {
			log.Printf("⚠️ Агент %s превысил лимит взятия лидов подряд", email)
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead})
}

// GetLeads возвращает список лидов. Агенту доступны только свои лиды
func (api *LeadAPI) GetLeads(c *gin.Context) {
	actor := middleware.GetCurrentActor(c)
	page, limit := parsePagination(c)
	r, ok := parseRange(c)
	if !ok {
		return
	}

	filters := services.LeadFilters{
		Durum:      c.Query("durum"),
		Sehir:      c.Query("sehir"),
		Sinif:      c.Query("sinif"),
		OnayDurumu: c.Query("onay_durumu"),
		Query:      c.Query("q"),
		StartDate:  r.Start,
		EndDate:    r.End,
		Page:       page,
		Limit:      limit,
	}
	if actor.IsAdmin() {
		filters.Owner = c.Query("sahip")
		filters.PoolOnly = c.Query("pool") == "true"
	} else {
		filters.Owner = actor.Email
	}

	leads, total, err := api.leads.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(leads, total, page, limit))
}

// GetLead возвращает лид по ID
func (api *LeadAPI) GetLead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	lead, err := api.leads.GetForActor(c.Request.Context(), id, middleware.GetCurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lead})
}

// CreateLead создает лид вручную
func (api *LeadAPI) CreateLead(c *gin.Context) {
	var input services.LeadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := api.leads.Create(c.Request.Context(), middleware.GetCurrentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Лид успешно создан",
		"data":    lead,
	})
}

// UpdateLead обновляет контактные данные лида
func (api *LeadAPI) UpdateLead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.LeadUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := api.leads.Update(c.Request.Context(), id, middleware.GetCurrentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Лид обновлен",
		"data":    lead,
	})
}

// UpdateStatus меняет статус лида
func (api *LeadAPI) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.StatusUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := api.leads.UpdateStatus(c.Request.Context(), id, middleware.GetCurrentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead})
}

// SubmitApproval отправляет лид на одобрение
func (api *LeadAPI) SubmitApproval(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req submitApprovalRequest
	// Тело необязательно
	_ = c.ShouldBindJSON(&req)

	lead, err := api.approvals.Submit(c.Request.Context(), id, middleware.GetCurrentActor(c), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead})
}

// ReleaseLead возвращает лид в пул
func (api *LeadAPI) ReleaseLead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	lead, err := api.leads.Release(c.Request.Context(), id, middleware.GetCurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead})
}

// TrackAction фиксирует клик по звонку, SMS или WhatsApp
func (api *LeadAPI) TrackAction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := api.leads.Track(c.Request.Context(), id, middleware.GetCurrentActor(c), req.Type); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Действие записано"})
}

// GetHistory возвращает журнал действий по лиду
func (api *LeadAPI) GetHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := api.leads.GetForActor(ctx, id, middleware.GetCurrentActor(c)); err != nil {
		respondError(c, err)
		return
	}
	logs, err := api.activity.History(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// UploadImage сохраняет изображение документа клиента
func (api *LeadAPI) UploadImage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor := middleware.GetCurrentActor(c)
	ctx := c.Request.Context()
	if _, err := api.leads.GetForActor(ctx, id, actor); err != nil {
		respondError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не передан"})
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	url, err := api.storage.Save(header.Filename, header.Size, file)
	if err != nil {
		respondError(c, err)
		return
	}
	lead, err := api.leads.AddImage(ctx, id, actor, url)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Изображение загружено",
		"data":    gin.H{"url": url, "lead": lead},
	})
}

// leadIDsRequest список ID в теле массовых операций
type leadIDsRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}
