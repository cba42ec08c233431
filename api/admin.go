package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"backend_kredicrm/middleware"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminAPI решения по заявкам и служебные операции администратора
type AdminAPI struct {
	leads           *services.LeadService
	approvals       *services.ApprovalService
	activity        *services.ActivityService
	imports         *services.ImportService
	exports         *services.ExportService
	scheduler       *services.Scheduler
	retentionMonths int
}

// NewAdminAPI создает новый экземпляр AdminAPI
func NewAdminAPI(svc *services.Services, retentionMonths int) *AdminAPI {
	return &AdminAPI{
		leads:           svc.Leads,
		approvals:       svc.Approvals,
		activity:        svc.Activity,
		imports:         svc.Imports,
		exports:         svc.Exports,
		scheduler:       svc.Scheduler,
		retentionMonths: retentionMonths,
	}
}

type decisionRequest struct {
	CustomerID  uint            `json:"customerId" binding:"required"`
	KrediLimiti decimal.Decimal `json:"kredi_limiti"`
	AdminNotu   string          `json:"admin_notu"`
}

func (r decisionRequest) decision() services.Decision {
	return services.Decision{LeadID: r.CustomerID, KrediLimiti: r.KrediLimiti, AdminNotu: r.AdminNotu}
}

type reclassifyRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type classifyRequest struct {
	IDs   []uint `json:"ids" binding:"required,min=1"`
	Sinif string `json:"sinif"`
}

// decide общий обработчик решений по заявке
func (api *AdminAPI) decide(c *gin.Context, run func(admin string, d services.Decision) (interface{}, error)) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := run(middleware.GetCurrentEmail(c), req.decision())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead})
}

// Approve одобряет заявку
func (api *AdminAPI) Approve(c *gin.Context) {
	api.decide(c, func(admin string, d services.Decision) (interface{}, error) {
		return api.approvals.Approve(c.Request.Context(), admin, d)
	})
}

// Reject отклоняет заявку
func (api *AdminAPI) Reject(c *gin.Context) {
	api.decide(c, func(admin string, d services.Decision) (interface{}, error) {
		return api.approvals.Reject(c.Request.Context(), admin, d)
	})
}

// RequestGuarantor запрашивает поручителя
func (api *AdminAPI) RequestGuarantor(c *gin.Context) {
	api.decide(c, func(admin string, d services.Decision) (interface{}, error) {
		return api.approvals.RequestGuarantor(c.Request.Context(), admin, d)
	})
}

// GetApprovals список заявок, ожидающих решения
func (api *AdminAPI) GetApprovals(c *gin.Context) {
	leads, err := api.approvals.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": leads, "total": len(leads)})
}

// Reclassify переводит все лиды из одного статуса в другой
func (api *AdminAPI) Reclassify(c *gin.Context) {
	var req reclassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := api.leads.BulkReclassify(c.Request.Context(), middleware.GetCurrentEmail(c), req.From, req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("✅ Массовая смена статуса %q → %q: %d лидов", req.From, req.To, updated)
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// BulkRelease возвращает выбранные лиды в пул
func (api *AdminAPI) BulkRelease(c *gin.Context) {
	var req leadIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	released, err := api.leads.BulkRelease(c.Request.Context(), middleware.GetCurrentEmail(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": released})
}

// BulkDelete удаляет выбранные лиды
func (api *AdminAPI) BulkDelete(c *gin.Context) {
	var req leadIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	deleted, err := api.leads.BulkDelete(c.Request.Context(), middleware.GetCurrentEmail(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ClassifyDelinquent помечает лиды как должников
func (api *AdminAPI) ClassifyDelinquent(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := api.leads.ClassifyDelinquent(c.Request.Context(), middleware.GetCurrentEmail(c), req.IDs, req.Sinif)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// GetLogs журнал действий с фильтрами
func (api *AdminAPI) GetLogs(c *gin.Context) {
	page, limit := parsePagination(c)
	r, ok := parseRange(c)
	if !ok {
		return
	}

	filters := services.ActivityFilters{
		Actor:     c.Query("actor"),
		Action:    c.Query("action"),
		StartDate: r.Start,
		EndDate:   r.End,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if raw := c.Query("lead_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный lead_id"})
			return
		}
		leadID := uint(id)
		filters.LeadID = &leadID
	}

	logs, total, err := api.activity.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(logs, total, page, limit))
}

// CleanupLogs удаляет записи журнала старше срока хранения
func (api *AdminAPI) CleanupLogs(c *gin.Context) {
	months := api.retentionMonths
	if raw := c.Query("months"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			months = v
		}
	}
	deleted, err := api.activity.CleanupOldLogs(c.Request.Context(), months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Удалено записей: %d", deleted),
		"data":    gin.H{"deleted": deleted, "months": months},
	})
}

// ImportLeads загружает лиды из XLSX файла
func (api *AdminAPI) ImportLeads(c *gin.Context) {
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

	result, err := api.imports.ImportXLSX(c.Request.Context(), middleware.GetCurrentEmail(c), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncSheet запускает синхронизацию с таблицей
func (api *AdminAPI) SyncSheet(c *gin.Context) {
	result, err := api.imports.SyncSheet(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Backup выгружает резервную копию в XLSX
func (api *AdminAPI) Backup(c *gin.Context) {
	file, err := api.exports.Backup(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, file)
}

// GetJobs состояние фоновых задач
func (api *AdminAPI) GetJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": api.scheduler.Status()})
}

// RunJob запускает фоновую задачу вручную
func (api *AdminAPI) RunJob(c *gin.Context) {
	result, err := api.scheduler.RunJob(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": result})
}

// sendFile отдает сформированный файл как вложение
func sendFile(c *gin.Context, file *services.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
