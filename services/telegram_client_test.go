package services

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"backend_kredicrm/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBotServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Kredi","username":"kredi_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			mu.Lock()
			sent = append(sent, r.FormValue("parse_mode")+"|"+r.FormValue("text"))
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"group"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &sent
}

func TestTelegramClient(t *testing.T) {
	server, sent := newBotServer(t)

	client, err := NewTelegramClientWithEndpoint("token", server.URL+"/bot%s/%s")
	require.NoError(t, err)
	assert.True(t, client.IsHealthy())

	notifier := NewNotificationService(client, 42)
	notifier.NotifyApprovalRequest(&models.Lead{ID: 5, AdSoyad: "Ali & Veli", Telefon: "5321112233", Sehir: "Ankara"}, "a@kredi.test")

	require.Len(t, *sent, 1)
	assert.True(t, strings.HasPrefix((*sent)[0], "HTML|"))
	assert.Contains(t, (*sent)[0], "Ali &amp; Veli")
	assert.Contains(t, (*sent)[0], "ID: 5")

	_, err = NewTelegramClient("")
	assert.Error(t, err)
}

type failingMessenger struct{}

func (failingMessenger) SendMessage(int64, string) error { return errors.New("down") }

func TestNotificationService_Tolerant(t *testing.T) {
	var nilService *NotificationService
	nilService.NotifyAdmins("ignored")

	NewNotificationService(nil, 42).NotifyAdmins("no messenger")
	NewNotificationService(failingMessenger{}, 42).NotifyBatchSummary("Test", map[string]int{"yeni": 1})

	m := &fakeMessenger{}
	NewNotificationService(m, 0).NotifyAdmins("no chat")
	assert.Empty(t, m.Messages())

	NewNotificationService(m, 42).NotifyBatchSummary("İçe <aktarma>", map[string]int{"b": 2, "a": 1})
	require.Len(t, m.Messages(), 1)
	assert.Equal(t, "📊 <b>İçe &lt;aktarma&gt;</b>\na: 1\nb: 2", m.Messages()[0])
}
