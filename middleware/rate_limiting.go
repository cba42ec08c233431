package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"
)

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Requests       int                       // Количество запросов
	Window         time.Duration             // Временное окно
	SkipSuccessful bool                      // Пропускать успешные запросы
	Prefix         string                    // Префикс ключа (группа лимита)
	KeyGenerator   func(*gin.Context) string // Генератор ключей
}

// DefaultKeyGenerator генерирует ключ на основе IP адреса
func DefaultKeyGenerator(c *gin.Context) string {
	return c.ClientIP()
}

// UserKeyGenerator генерирует ключ на основе пользователя сессии
func UserKeyGenerator(c *gin.Context) string {
	email := GetCurrentEmail(c)
	if email == "" {
		return c.ClientIP()
	}
	return "user:" + email
}

// RateLimit создает middleware для ограничения частоты запросов.
// Без Redis и при ошибках Redis запросы пропускаются
func RateLimit(redisClient *redis.Client, config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := "rate_limit:" + config.Prefix + ":" + config.KeyGenerator(c)

		// Получаем текущее количество запросов
		current, err := redisClient.Get(ctx, key).Int()
		if err != nil && err != redis.Nil {
			log.Printf("⚠️ Rate limit недоступен: %v", err)
			c.Next()
			return
		}

		// Проверяем превышение лимита
		if current >= config.Requests {
			c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Слишком много запросов. Лимит: %d за %v", config.Requests, config.Window),
				"retry_after": config.Window.Seconds(),
			})
			c.Abort()
			return
		}

		// Увеличиваем счетчик
		pipe := redisClient.Pipeline()
		pipe.Incr(ctx, key)
		if current == 0 {
			// Устанавливаем TTL только для первого запроса
			pipe.Expire(ctx, key, config.Window)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			c.Next()
			return
		}

		remaining := config.Requests - current - 1
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		c.Next()

		// Успешные запросы не расходуют лимит
		if config.SkipSuccessful && c.Writer.Status() < 400 {
			redisClient.Decr(ctx, key)
		}
	}
}

// AuthRateLimit ограничение попыток входа; удачный вход лимит не расходует
func AuthRateLimit(redisClient *redis.Client, requests int) gin.HandlerFunc {
	return RateLimit(redisClient, RateLimitConfig{
		Requests:       requests,
		Window:         time.Minute,
		SkipSuccessful: true,
		Prefix:         "login",
		KeyGenerator:   DefaultKeyGenerator,
	})
}

// APIRateLimit общее ограничение для API по пользователю
func APIRateLimit(redisClient *redis.Client, requests int, window time.Duration) gin.HandlerFunc {
	return RateLimit(redisClient, RateLimitConfig{
		Requests:     requests,
		Window:       window,
		Prefix:       "api",
		KeyGenerator: UserKeyGenerator,
	})
}
