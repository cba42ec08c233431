package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, DefaultJWTSecret, cfg.JWT.Secret)
	assert.Equal(t, "crm_session", cfg.JWT.CookieName)
	assert.Equal(t, 5, cfg.Leads.PullStreakLimit)
	assert.Equal(t, 50, cfg.Leads.PullHistory)
	assert.Equal(t, 2*time.Hour, cfg.Leads.CollectionCooldown)
	assert.Equal(t, 3, cfg.Leads.RetentionMonths)
	assert.Equal(t, []string{"Yeni", "Ulaşılamadı"}, cfg.Leads.PoolStatuses)
	assert.False(t, cfg.SMS.StatusNotify)
	assert.False(t, cfg.SMSConfigured())
	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("LEAD_PULL_STREAK_LIMIT", "3")
	t.Setenv("COLLECTION_COOLDOWN", "30m")
	t.Setenv("SMS_STATUS_NOTIFY", "true")
	t.Setenv("SMS_USERCODE", "8501234567")
	t.Setenv("SMS_PASSWORD", "secret")
	t.Setenv("LEAD_POOL_STATUSES", "Yeni, Ulaşılamadı ,Tekrar Ara")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 3, cfg.Leads.PullStreakLimit)
	assert.Equal(t, 30*time.Minute, cfg.Leads.CollectionCooldown)
	assert.True(t, cfg.SMS.StatusNotify)
	assert.True(t, cfg.SMSConfigured())
	assert.Equal(t, []string{"Yeni", "Ulaşılamadı", "Tekrar Ara"}, cfg.Leads.PoolStatuses)
	assert.Equal(t, int64(-100200300), cfg.Telegram.ChatID)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	os.Clearenv()
	t.Setenv("LEAD_PULL_HISTORY", "many")
	t.Setenv("JOBS_ENABLED", "maybe")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Leads.PullHistory)
	assert.True(t, cfg.Jobs.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "test defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name: "production rejects development secret",
			mutate: func(c *Config) {
				c.App.Env = "production"
			},
			wantErr: "JWT_SECRET is required",
		},
		{
			name: "production requires long secret",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.JWT.Secret = "short"
			},
			wantErr: "at least 32 characters",
		},
		{
			name: "production postgres requires password",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.JWT.Secret = "0123456789abcdef0123456789abcdef"
				c.Database.Type = "postgres"
			},
			wantErr: "DB_PASSWORD",
		},
		{
			name: "unknown database type",
			mutate: func(c *Config) {
				c.Database.Type = "mysql"
			},
			wantErr: "DB_TYPE",
		},
		{
			name: "history shorter than streak",
			mutate: func(c *Config) {
				c.Leads.PullHistory = 2
			},
			wantErr: "LEAD_PULL_HISTORY",
		},
		{
			name: "empty pool statuses",
			mutate: func(c *Config) {
				c.Leads.PoolStatuses = nil
			},
			wantErr: "LEAD_POOL_STATUSES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Host = "db"
	cfg.Database.Port = "5432"
	cfg.Database.User = "crm"
	cfg.Database.Password = "pw"
	cfg.Database.Name = "kredi"
	cfg.Database.SSLMode = "disable"

	assert.Equal(t, "host=db port=5432 user=crm password=pw dbname=kredi sslmode=disable", cfg.GetDatabaseDSN())
	assert.Contains(t, cfg.GetAdminDSN(), "dbname=postgres")

	cfg.Redis.Host = "cache"
	cfg.Redis.Port = "6380"
	assert.Equal(t, "cache:6380", cfg.GetRedisAddr())
	cfg.Redis.URL = "redis:6379"
	assert.Equal(t, "redis:6379", cfg.GetRedisAddr())
}
