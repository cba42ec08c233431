package services

import (
	"context"
	"strings"
	"testing"

	"backend_kredicrm/config"
	"backend_kredicrm/models"
	"backend_kredicrm/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminEmail = "admin@kredi.test"

func pendingLead(t *testing.T, env *testEnv, phone string) *models.Lead {
	t.Helper()
	return testutils.CreateTestLead(t, env.db, "Onay Bekleyen", phone,
		testutils.WithOwner("a@kredi.test"),
		testutils.WithStatus(models.StatusPendingApproval),
		testutils.WithApproval(models.ApprovalPending),
	)
}

func TestApprove_SetsLimitAndLogsOnce(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	lead := pendingLead(t, env, "5552220001")

	updated, err := env.svc.Approvals.Approve(ctx, adminEmail, Decision{
		LeadID:      lead.ID,
		KrediLimiti: decimal.NewFromInt(15000),
		AdminNotu:   "Belgeler tamam",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, updated.Durum)
	assert.Equal(t, models.ApprovalApproved, updated.OnayDurumu)
	assert.True(t, updated.KrediLimiti.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, "Belgeler tamam", updated.AdminNotu)
	assert.Equal(t, adminEmail, updated.Onaylayan)
	assert.NotNil(t, updated.OnayTarihi)

	logs, err := env.svc.Activity.History(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionUpdateStatus, logs[0].Action)
	assert.Equal(t, "Beklemede", logs[0].OldValue)
	assert.Equal(t, "Onaylandı", logs[0].NewValue)

	// Уведомление о решении выключено по умолчанию
	assert.Empty(t, env.gateway.Sent())
}

func TestDecisions_AuditExactlyOneRow(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tests := []struct {
		name     string
		decide   func(d Decision) (*models.Lead, error)
		durum    string
		approval models.ApprovalStatus
	}{
		{"approve", func(d Decision) (*models.Lead, error) { return env.svc.Approvals.Approve(ctx, adminEmail, d) }, models.StatusApproved, models.ApprovalApproved},
		{"reject", func(d Decision) (*models.Lead, error) { return env.svc.Approvals.Reject(ctx, adminEmail, d) }, models.StatusRejected, models.ApprovalRejected},
		{"guarantor", func(d Decision) (*models.Lead, error) { return env.svc.Approvals.RequestGuarantor(ctx, adminEmail, d) }, models.StatusGuarantorPending, models.ApprovalGuarantorRequested},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := pendingLead(t, env, "555222010"+string(rune('0'+i)))

			updated, err := tt.decide(Decision{LeadID: lead.ID})
			require.NoError(t, err)
			assert.Equal(t, tt.durum, updated.Durum)
			assert.Equal(t, tt.approval, updated.OnayDurumu)

			logs, err := env.svc.Activity.History(ctx, lead.ID)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, string(models.ApprovalPending), logs[0].OldValue)
			assert.Equal(t, string(tt.approval), logs[0].NewValue)
		})
	}
}

func TestGuarantor_AlwaysSendsSMS(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	testutils.CreateTestTemplate(t, env.db, models.TemplateGuarantor, "Sayın {ad_soyad}, başvurunuz için kefil gerekmektedir.")
	lead := pendingLead(t, env, "5552220201")

	_, err := env.svc.Approvals.RequestGuarantor(ctx, adminEmail, Decision{LeadID: lead.ID})
	require.NoError(t, err)

	sent := env.gateway.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Sayın Onay Bekleyen, başvurunuz için kefil gerekmektedir.", sent[0].Message)

	var smsLogs int64
	require.NoError(t, env.db.Model(&models.SMSLog{}).Where("lead_id = ?", lead.ID).Count(&smsLogs).Error)
	assert.Equal(t, int64(1), smsLogs)
	// SMS не добавляет вторую запись в журнал лида
	assert.Equal(t, int64(0), countLogs(t, env.db, models.ActionSendSMS, lead.ID))
}

func TestGuarantor_MissingTemplateDoesNotFail(t *testing.T) {
	env := setupServices(t)
	lead := pendingLead(t, env, "5552220301")

	updated, err := env.svc.Approvals.RequestGuarantor(context.Background(), adminEmail, Decision{LeadID: lead.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalGuarantorRequested, updated.OnayDurumu)
	assert.Empty(t, env.gateway.Sent())
}

func TestApprove_StatusNotifyEnabled(t *testing.T) {
	env := setupServices(t, func(cfg *config.Config) { cfg.SMS.StatusNotify = true })
	testutils.CreateTestTemplate(t, env.db, models.TemplateApproved, "Tebrikler {ad_soyad}, limitiniz {kredi_limiti} TL")
	lead := pendingLead(t, env, "5552220401")

	_, err := env.svc.Approvals.Approve(context.Background(), adminEmail, Decision{LeadID: lead.ID, KrediLimiti: decimal.NewFromInt(20000)})
	require.NoError(t, err)

	sent := env.gateway.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Tebrikler Onay Bekleyen, limitiniz 20000.00 TL", sent[0].Message)
}

func TestDecision_InvalidTransition(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	fresh := testutils.CreateTestLead(t, env.db, "Gönderilmedi", "5552220501", testutils.WithOwner("a@kredi.test"))
	_, err := env.svc.Approvals.Approve(ctx, adminEmail, Decision{LeadID: fresh.ID})
	assert.ErrorIs(t, err, ErrInvalidApprovalTransition)

	lead := pendingLead(t, env, "5552220502")
	_, err = env.svc.Approvals.Approve(ctx, adminEmail, Decision{LeadID: lead.ID})
	require.NoError(t, err)

	// Повторное решение по уже одобренному лиду
	_, err = env.svc.Approvals.Reject(ctx, adminEmail, Decision{LeadID: lead.ID})
	assert.ErrorIs(t, err, ErrInvalidApprovalTransition)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionUpdateStatus, lead.ID))

	_, err = env.svc.Approvals.Approve(ctx, adminEmail, Decision{LeadID: 99999})
	assert.ErrorIs(t, err, ErrLeadNotFound)

	_, err = env.svc.Approvals.Approve(ctx, adminEmail, Decision{LeadID: lead.ID, KrediLimiti: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGuarantorThenApprove(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	lead := pendingLead(t, env, "5552220601")

	_, err := env.svc.Approvals.RequestGuarantor(ctx, adminEmail, Decision{LeadID: lead.ID})
	require.NoError(t, err)
	updated, err := env.svc.Approvals.Approve(ctx, adminEmail, Decision{LeadID: lead.ID, KrediLimiti: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, updated.OnayDurumu)

	logs, err := env.svc.Activity.History(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, string(models.ApprovalGuarantorRequested), logs[0].OldValue)
}

func TestSubmitForApproval(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	me := agent("a@kredi.test")
	lead := testutils.CreateTestLead(t, env.db, "Başvuru <Test>", "5552220701", testutils.WithOwner(me.Email), testutils.WithStatus(models.StatusToCall))

	updated, err := env.svc.Approvals.Submit(ctx, lead.ID, me, "evrak hazır")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, updated.Durum)
	assert.Equal(t, models.ApprovalPending, updated.OnayDurumu)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionSubmitApproval, lead.ID))

	messages := env.messenger.Messages()
	require.Len(t, messages, 1)
	assert.True(t, strings.Contains(messages[0], "Başvuru &lt;Test&gt;"))
	assert.True(t, strings.Contains(messages[0], me.Email))

	// Уже на рассмотрении
	_, err = env.svc.Approvals.Submit(ctx, lead.ID, me, "")
	assert.ErrorIs(t, err, ErrInvalidApprovalTransition)

	pending, err := env.svc.Approvals.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, lead.ID, pending[0].ID)

	_, err = env.svc.Approvals.Submit(ctx, lead.ID, agent("b@kredi.test"), "")
	assert.ErrorIs(t, err, ErrNotLeadOwner)
}
