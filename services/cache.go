package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss ключ отсутствует в кэше или Redis не подключен
var ErrCacheMiss = errors.New("ключ не найден в кэше")

// Константы для TTL кэша
const (
	CacheTTLShort  = 5 * time.Minute  // Для часто изменяемых данных
	CacheTTLMedium = 15 * time.Minute // Для умеренно изменяемых данных
	CacheTTLLong   = 1 * time.Hour    // Для редко изменяемых данных
)

// Префиксы ключей
const (
	cacheKeyDashboard = "crm:dashboard"
	cacheKeySettings  = "crm:settings"
)

// CacheService предоставляет методы для кэширования. Работает и без Redis
type CacheService struct {
	redis *redis.Client
}

// NewCacheService создает новый экземпляр CacheService
func NewCacheService(redisClient *redis.Client) *CacheService {
	return &CacheService{redis: redisClient}
}

// Enabled проверяет, подключен ли Redis
func (cs *CacheService) Enabled() bool {
	return cs != nil && cs.redis != nil
}

// Get получает значение из кэша
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	if !cs.Enabled() {
		return "", ErrCacheMiss
	}

	val, err := cs.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	return val, err
}

// Set сохраняет значение в кэш
func (cs *CacheService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if !cs.Enabled() {
		return nil // Не возвращаем ошибку, просто пропускаем кэширование
	}
	return cs.redis.Set(ctx, key, value, ttl).Err()
}

// Del удаляет значения из кэша
func (cs *CacheService) Del(ctx context.Context, keys ...string) error {
	if !cs.Enabled() || len(keys) == 0 {
		return nil
	}
	return cs.redis.Del(ctx, keys...).Err()
}

// SetJSON сохраняет JSON объект в кэш
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !cs.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка сериализации JSON: %w", err)
	}
	return cs.Set(ctx, key, string(data), ttl)
}

// GetJSON получает JSON объект из кэша
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := cs.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("ошибка десериализации JSON: %w", err)
	}
	return nil
}

// Remember возвращает значение из кэша или вычисляет и сохраняет его
func (cs *CacheService) Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func() (interface{}, error)) error {
	if err := cs.GetJSON(ctx, key, dest); err == nil {
		return nil
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Printf("⚠️ Ошибка чтения кэша %s: %v", key, err)
	}

	value, err := load()
	if err != nil {
		return err
	}
	if err := cs.SetJSON(ctx, key, value, ttl); err != nil {
		log.Printf("⚠️ Ошибка записи кэша %s: %v", key, err)
	}

	// Возвращаем значение через JSON, чтобы результат не зависел от наличия Redis
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// InvalidateDashboard сбрасывает кэш панели администратора
func (cs *CacheService) InvalidateDashboard(ctx context.Context) {
	if err := cs.Del(ctx, cacheKeyDashboard); err != nil {
		log.Printf("⚠️ Не удалось сбросить кэш панели: %v", err)
	}
}

// SettingsKey ключ кэша справочника настроек
func SettingsKey(table string) string {
	return fmt.Sprintf("%s:%s", cacheKeySettings, table)
}
