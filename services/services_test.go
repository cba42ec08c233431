package services

import (
	"context"
	"sync"
	"testing"

	"backend_kredicrm/config"
	"backend_kredicrm/models"
	"backend_kredicrm/testutils"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeGateway запоминает отправленные SMS
type fakeGateway struct {
	mu   sync.Mutex
	sent []fakeSMS
	err  error
}

type fakeSMS struct {
	Phone   string
	Message string
}

func (g *fakeGateway) Send(_ context.Context, phone, message string) (*SMSResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.sent = append(g.sent, fakeSMS{Phone: phone, Message: message})
	return &SMSResult{Code: "00", Ref: "job-1"}, nil
}

func (g *fakeGateway) Sent() []fakeSMS {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]fakeSMS(nil), g.sent...)
}

// fakeMessenger запоминает сообщения администраторам
type fakeMessenger struct {
	mu       sync.Mutex
	messages []string
}

func (m *fakeMessenger) SendMessage(_ int64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *fakeMessenger) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

type testEnv struct {
	db        *gorm.DB
	cfg       *config.Config
	svc       *Services
	gateway   *fakeGateway
	messenger *fakeMessenger
}

func setupServices(t *testing.T, tweak ...func(cfg *config.Config)) *testEnv {
	t.Helper()
	db := testutils.SetupTestDB(t)
	cfg := testutils.SetupTestConfig(t)
	cfg.Telegram.ChatID = 42
	for _, fn := range tweak {
		fn(cfg)
	}

	env := &testEnv{db: db, cfg: cfg, gateway: &fakeGateway{}, messenger: &fakeMessenger{}}
	svc, err := NewServices(db, nil, cfg, env.gateway, env.messenger)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func agent(email string) Actor {
	return Actor{Email: email, Role: models.RoleSales}
}

func countLogs(t *testing.T, db *gorm.DB, action string, leadID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.ActivityLog{}).Where("action = ? AND lead_id = ?", action, leadID).Count(&n).Error)
	return n
}
