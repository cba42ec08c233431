package api

import (
	"net/http"

	"backend_kredicrm/middleware"
	"backend_kredicrm/models"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

// ReportsAPI предоставляет API для работы с отчетами
type ReportsAPI struct {
	reports *services.ReportService
	exports *services.ExportService
	leads   *services.LeadService
}

// NewReportsAPI создает новый экземпляр ReportsAPI
func NewReportsAPI(reports *services.ReportService, exports *services.ExportService, leads *services.LeadService) *ReportsAPI {
	return &ReportsAPI{
		reports: reports,
		exports: exports,
		leads:   leads,
	}
}

// RegisterRoutes регистрирует маршруты для API отчетов
func (ra *ReportsAPI) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/dashboard", ra.GetDashboard)

		// Аналитика и выгрузка только для администратора
		reports.GET("/analytics", middleware.RequireRole(models.RoleAdmin), ra.GetAnalytics)
		reports.GET("/export", middleware.RequireRole(models.RoleAdmin), ra.Export)
	}
}

// GetAnalytics сводная аналитика за период
func (ra *ReportsAPI) GetAnalytics(c *gin.Context) {
	r, ok := parseRange(c)
	if !ok {
		return
	}
	analytics, err := ra.reports.Analytics(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": analytics})
}

// GetDashboard счетчики для главной страницы: администратору общие, агенту свои
func (ra *ReportsAPI) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	actor := middleware.GetCurrentActor(c)

	var (
		dash *services.Dashboard
		err  error
	)
	if actor.IsAdmin() {
		dash, err = ra.reports.AdminDashboard(ctx, ra.leads.PoolStatuses(ctx))
	} else {
		dash, err = ra.reports.AgentDashboard(ctx, actor.Email)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dash})
}

// Export выгрузка лидов в XLSX или PDF
func (ra *ReportsAPI) Export(c *gin.Context) {
	r, ok := parseRange(c)
	if !ok {
		return
	}
	file, err := ra.exports.ExportLeads(c.Request.Context(), c.DefaultQuery("format", "xlsx"), r)
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, file)
}
