package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend_kredicrm/api"
	"backend_kredicrm/config"
	"backend_kredicrm/database"
	"backend_kredicrm/middleware"
	"backend_kredicrm/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// initDB инициализирует подключение к базе данных
func initDB(cfg *config.Config) *gorm.DB {
	log.Println("🔧 Инициализация базы данных...")

	// Создаем базу данных, если она не существует
	if err := database.CreateDatabaseIfNotExists(cfg); err != nil {
		log.Fatal("❌ Ошибка при создании базы данных:", err)
	}

	// Подключаемся к базе данных
	db, err := database.ConnectDatabase(cfg)
	if err != nil {
		log.Fatal("❌ Ошибка подключения к базе данных:", err)
	}

	log.Println("✅ База данных успешно инициализирована")
	return db
}

// initRedis подключает Redis. Без него приложение работает без кэша и лимитов
func initRedis(cfg *config.Config) *redis.Client {
	client, err := database.InitRedis(context.Background(), cfg)
	if err != nil {
		log.Printf("⚠️ %v, продолжаем без Redis", err)
		return nil
	}
	return client
}

// initTelegram создает бота для уведомлений администраторов, если задан токен
func initTelegram(cfg *config.Config) services.AdminMessenger {
	if cfg.Telegram.BotToken == "" {
		log.Println("⚠️ TELEGRAM_BOT_TOKEN не задан, уведомления администраторам отключены")
		return nil
	}
	client, err := services.NewTelegramClient(cfg.Telegram.BotToken)
	if err != nil {
		log.Printf("⚠️ Telegram недоступен: %v", err)
		return nil
	}
	return client
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("❌ Ошибка загрузки конфигурации:", err)
	}
	cfg.LogConfig()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db := initDB(cfg)
	redisClient := initRedis(cfg)

	svc, err := services.NewServices(db, redisClient, cfg, nil, initTelegram(cfg))
	if err != nil {
		log.Fatal("❌ Ошибка инициализации сервисов:", err)
	}
	if err := svc.Scheduler.Start(); err != nil {
		log.Fatal("❌ Ошибка запуска планировщика:", err)
	}

	// Настраиваем Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	// Базовые роуты
	r.GET("/ping", func(c *gin.Context) {
		status := "connected"
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			status = "unavailable"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"message":  "pong",
			"database": status,
			"redis":    redisClient != nil,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/uploads", svc.Storage.Dir())

	// API роуты
	api.SetupRoutes(r, svc, cfg, redisClient)

	srv := &http.Server{
		Addr:         cfg.App.Host + ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  cfg.Security.RequestTimeout,
		WriteTimeout: 2 * cfg.Security.RequestTimeout,
	}

	go func() {
		log.Printf("🚀 Сервер запущен на порту %s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Ошибка запуска сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Остановка сервера...")

	svc.Scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Принудительная остановка сервера: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("✅ Сервер остановлен")
}
