package api

import (
	"backend_kredicrm/config"
	"backend_kredicrm/middleware"
	"backend_kredicrm/models"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// SetupRoutes регистрирует маршруты /api. redisClient может быть nil
func SetupRoutes(r *gin.Engine, svc *services.Services, cfg *config.Config, redisClient *redis.Client) {
	authMW := middleware.NewAuthMiddleware(svc.Auth)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	authAPI := NewAuthAPI(svc.Auth, cfg.IsProduction())
	leadAPI := NewLeadAPI(svc)
	adminAPI := NewAdminAPI(svc, cfg.Leads.RetentionMonths)
	inventoryAPI := NewInventoryAPI(svc.Inventory)
	collectionAPI := NewCollectionAPI(svc.Collections)
	reportsAPI := NewReportsAPI(svc.Reports, svc.Exports, svc.Leads)
	smsAPI := NewSMSAPI(svc.SMS, svc.Leads)
	settingsAPI := NewSettingsAPI(svc.Settings)
	usersAPI := NewUsersAPI(svc.Users)

	apiGroup := r.Group("/api")

	// Аутентификация
	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/login", middleware.AuthRateLimit(redisClient, cfg.Security.LoginRateLimit), authAPI.Login)
		authGroup.POST("/logout", authAPI.Logout)
		authGroup.GET("/me", authMW.RequireAuth(), authAPI.Me)
	}

	protected := apiGroup.Group("")
	protected.Use(authMW.RequireAuth())
	protected.Use(middleware.APIRateLimit(redisClient, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow))

	// Лиды
	leads := protected.Group("/leads")
	{
		leads.POST("/pull", leadAPI.PullLead)
		leads.GET("", leadAPI.GetLeads)
		leads.POST("", leadAPI.CreateLead)
		leads.GET("/:id", leadAPI.GetLead)
		leads.PUT("/:id", leadAPI.UpdateLead)
		leads.PUT("/:id/status", leadAPI.UpdateStatus)
		leads.POST("/:id/submit-approval", leadAPI.SubmitApproval)
		leads.POST("/:id/release", leadAPI.ReleaseLead)
		leads.POST("/:id/track", leadAPI.TrackAction)
		leads.GET("/:id/history", leadAPI.GetHistory)
		leads.GET("/:id/sms", smsAPI.History)
		leads.POST("/:id/images", leadAPI.UploadImage)
	}

	// SMS
	sms := protected.Group("/sms")
	{
		sms.POST("/send", smsAPI.Send)
		sms.POST("/bulk", adminOnly, smsAPI.Bulk)
	}

	// Склад: просмотр для всех, изменения для администратора
	inventory := protected.Group("/inventory")
	{
		inventory.GET("", inventoryAPI.GetItems)
		inventory.GET("/stats", inventoryAPI.GetStats)
		inventory.GET("/:id", inventoryAPI.GetItem)
		inventory.POST("", adminOnly, inventoryAPI.CreateItem)
		inventory.PUT("/:id", adminOnly, inventoryAPI.UpdateItem)
		inventory.DELETE("/:id", adminOnly, inventoryAPI.DeleteItem)
		inventory.POST("/assign", adminOnly, inventoryAPI.Assign)
		inventory.POST("/:id/return", adminOnly, inventoryAPI.ReturnItem)
	}

	// Взыскание
	collection := protected.Group("/collection", middleware.RequireRole(models.RoleAdmin, models.RoleCollection))
	{
		collection.GET("/next", collectionAPI.Next)
		collection.GET("/list", collectionAPI.List)
		collection.POST("/:id/call", collectionAPI.RecordCall)
		collection.GET("/:id/notes", collectionAPI.GetNotes)
		collection.POST("/:id/notes", collectionAPI.AddNote)
		collection.PUT("/:id/attorney", collectionAPI.SetAttorney)
	}

	reportsAPI.RegisterRoutes(protected)

	// Справочники: чтение для всех, изменения в /api/admin
	for _, t := range settingsAPI.tables() {
		protected.GET(t.path, t.list)
	}
	protected.POST("/pricing/calculate", settingsAPI.CalculateInstallment)

	// Администрирование
	admin := protected.Group("/admin", adminOnly)
	{
		admin.GET("/approvals", adminAPI.GetApprovals)
		admin.POST("/approve", adminAPI.Approve)
		admin.POST("/reject", adminAPI.Reject)
		admin.POST("/guarantor", adminAPI.RequestGuarantor)

		admin.POST("/leads/reclassify", adminAPI.Reclassify)
		admin.POST("/leads/release", adminAPI.BulkRelease)
		admin.POST("/leads/delete", adminAPI.BulkDelete)
		admin.POST("/collection/classify", adminAPI.ClassifyDelinquent)

		admin.GET("/logs", adminAPI.GetLogs)
		admin.POST("/logs/cleanup", adminAPI.CleanupLogs)

		admin.POST("/import", adminAPI.ImportLeads)
		admin.POST("/sync", adminAPI.SyncSheet)
		admin.GET("/backup", adminAPI.Backup)

		admin.GET("/jobs", adminAPI.GetJobs)
		admin.POST("/jobs/:name/run", adminAPI.RunJob)

		admin.GET("/users", usersAPI.GetUsers)
		admin.POST("/users", usersAPI.CreateUser)
		admin.GET("/users/:id", usersAPI.GetUser)
		admin.PUT("/users/:id", usersAPI.UpdateUser)
		admin.DELETE("/users/:id", usersAPI.DeleteUser)

		for _, t := range settingsAPI.tables() {
			admin.GET(t.path, t.list)
			admin.POST(t.path, t.create)
			admin.PUT(t.path+"/:id", t.update)
			admin.DELETE(t.path+"/:id", t.remove)
		}
	}
}
