package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend_kredicrm/config"
	"backend_kredicrm/models"
	"backend_kredicrm/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"0532 123 45 67":    "5321234567",
		"+90 (532) 1234567": "5321234567",
		"5321234567":        "5321234567",
		"abc":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestParseGatewayResponse(t *testing.T) {
	res, err := ParseGatewayResponse("00 123456789\n")
	require.NoError(t, err)
	assert.Equal(t, "00", res.Code)
	assert.Equal(t, "123456789", res.Ref)

	_, err = ParseGatewayResponse("30")
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "30", gwErr.Code)

	_, err = ParseGatewayResponse("")
	assert.Error(t, err)

	_, err = ParseGatewayResponse("99 ???")
	require.True(t, errors.As(err, &gwErr))
	assert.Contains(t, gwErr.Message, "неизвестный ответ")
}

func TestRenderTemplate(t *testing.T) {
	lead := &models.Lead{
		AdSoyad:     "Fatma Demir",
		Telefon:     "5320000000",
		KrediLimiti: decimal.NewFromFloat(7500.5),
		UrunAdi:     "iPhone 15",
		Sehir:       "Bursa",
	}
	got := RenderTemplate("Sayın {ad_soyad}, {sehir} limit {kredi_limiti} TL, {urun}. {bilinmeyen}", lead)
	assert.Equal(t, "Sayın Fatma Demir, Bursa limit 7500.50 TL, iPhone 15. {bilinmeyen}", got)
	assert.Equal(t, "{ad_soyad}", RenderTemplate("{ad_soyad}", nil))
	assert.Contains(t, RenderTemplate("{tarih}", lead), time.Now().Format("2006"))
}

func TestSMSClient_Gateway(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{"gsmno": q.Get("gsmno"), "message": q.Get("message"), "msgheader": q.Get("msgheader")}
		if q.Get("usercode") != "user" {
			w.Write([]byte("30"))
			return
		}
		w.Write([]byte("00 555"))
	}))
	defer server.Close()

	client := NewSMSClient(config.SMSConfig{APIURL: server.URL, UserCode: "user", Password: "pw", Header: "KREDI"})
	res, err := client.Send(context.Background(), "0532 111 22 33", "Merhaba")
	require.NoError(t, err)
	assert.Equal(t, "555", res.Ref)
	assert.False(t, res.Simulated)
	assert.Equal(t, "5321112233", gotQuery["gsmno"])
	assert.Equal(t, "Merhaba", gotQuery["message"])
	assert.Equal(t, "KREDI", gotQuery["msgheader"])

	bad := NewSMSClient(config.SMSConfig{APIURL: server.URL, UserCode: "other", Password: "pw"})
	_, err = bad.Send(context.Background(), "5321112233", "Merhaba")
	var gwErr *GatewayError
	assert.True(t, errors.As(err, &gwErr))
}

func TestSMSClient_SimulatedWithoutCredentials(t *testing.T) {
	client := NewSMSClient(config.SMSConfig{})
	assert.False(t, client.Configured())

	res, err := client.Send(context.Background(), "5321112233", "test")
	require.NoError(t, err)
	assert.True(t, res.Simulated)
	assert.Equal(t, SimulatedRef, res.Ref)

	_, err = client.Send(context.Background(), "---", "test")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSendTemplate_LogsActivity(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	testutils.CreateTestTemplate(t, env.db, models.TemplateReminder, "{ad_soyad}, ödeme günü yaklaşıyor")
	lead := testutils.CreateTestLead(t, env.db, "Hatırlatma", "5557770001")

	entry, err := env.svc.SMS.SendTemplate(ctx, "a@kredi.test", lead, models.TemplateReminder)
	require.NoError(t, err)
	assert.Equal(t, models.SMSStatusSent, entry.Durum)
	assert.Equal(t, "job-1", entry.ProviderRef)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionSendSMS, lead.ID))

	history, err := env.svc.SMS.History(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Hatırlatma, ödeme günü yaklaşıyor", history[0].Mesaj)

	_, err = env.svc.SMS.SendTemplate(ctx, "a@kredi.test", lead, "YOK")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestSend_GatewayFailureIsLogged(t *testing.T) {
	env := setupServices(t)
	env.gateway.err = &GatewayError{Code: "80", Message: "limit"}
	lead := testutils.CreateTestLead(t, env.db, "Hata", "5557770101")

	entry, err := env.svc.SMS.SendToLead(context.Background(), "a@kredi.test", lead, "deneme")
	require.Error(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.SMSStatusFailed, entry.Durum)
	assert.Equal(t, "80", entry.Kod)
	assert.Equal(t, int64(0), countLogs(t, env.db, models.ActionSendSMS, lead.ID))

	_, err = env.svc.SMS.SendToLead(context.Background(), "a@kredi.test", lead, "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBulkSMS(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	a := testutils.CreateTestLead(t, env.db, "Bir", "5557770201")
	b := testutils.CreateTestLead(t, env.db, "İki", "5557770202")

	result, err := env.svc.SMS.Bulk(ctx, adminEmail, []uint{a.ID, b.ID, 99999}, "", "Merhaba {ad_soyad}")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "#99999")

	messages := map[string]bool{}
	for _, s := range env.gateway.Sent() {
		messages[s.Message] = true
	}
	assert.True(t, messages["Merhaba Bir"])
	assert.True(t, messages["Merhaba İki"])

	_, err = env.svc.SMS.Bulk(ctx, adminEmail, []uint{a.ID}, "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSendRaw(t *testing.T) {
	env := setupServices(t)
	entry, err := env.svc.SMS.SendRaw(context.Background(), adminEmail, "5321112233", "test")
	require.NoError(t, err)
	assert.Nil(t, entry.LeadID)

	var n int64
	require.NoError(t, env.db.Model(&models.ActivityLog{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}
