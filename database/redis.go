package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"backend_kredicrm/config"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

// InitRedis инициализирует подключение к Redis. Возвращает nil клиент, если Redis выключен
func InitRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		log.Println("⚠️ Redis отключен, кэш и ограничение запросов работают без него")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.MaxConns,
		MinIdleConns: 2,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  300 * time.Second,
	})

	// Проверяем подключение
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	RedisClient = client
	log.Println("✅ Успешно подключено к Redis")
	return client, nil
}
