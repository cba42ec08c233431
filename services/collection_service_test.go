package services

import (
	"context"
	"testing"
	"time"

	"backend_kredicrm/models"
	"backend_kredicrm/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collector = "tahsilat@kredi.test"

func TestCollectionNext_Order(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	now := time.Now()

	old := testutils.CreateTestLead(t, env.db, "Eski Arama", "5554440001",
		testutils.WithClass(models.ClassDelinquent), testutils.WithLastCall(now.Add(-72*time.Hour)))
	older := testutils.CreateTestLead(t, env.db, "Daha Eski", "5554440002",
		testutils.WithClass(models.ClassDelinquent), testutils.WithLastCall(now.Add(-96*time.Hour)))
	never := testutils.CreateTestLead(t, env.db, "Hiç Aranmadı", "5554440003", testutils.WithClass(models.ClassDelinquent))
	testutils.CreateTestLead(t, env.db, "Normal", "5554440004")

	t.Run("сначала без звонков", func(t *testing.T) {
		lead, err := env.svc.Collections.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, never.ID, lead.ID)
	})

	t.Run("затем самый давний звонок", func(t *testing.T) {
		_, err := env.svc.Collections.RecordCall(ctx, collector, never.ID, CallResult{TahsilatDurumu: "Ulaşılamadı"})
		require.NoError(t, err)

		lead, err := env.svc.Collections.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, older.ID, lead.ID)
	})

	t.Run("недавний звонок исключен до конца паузы", func(t *testing.T) {
		_, err := env.svc.Collections.RecordCall(ctx, collector, older.ID, CallResult{TahsilatDurumu: "Söz verdi"})
		require.NoError(t, err)
		_, err = env.svc.Collections.RecordCall(ctx, collector, old.ID, CallResult{TahsilatDurumu: "Söz verdi"})
		require.NoError(t, err)

		_, err = env.svc.Collections.Next(ctx)
		assert.ErrorIs(t, err, ErrNothingToCollect)
	})
}

func TestCollectionNext_Empty(t *testing.T) {
	env := setupServices(t)
	testutils.CreateTestLead(t, env.db, "Normal", "5554440101")

	_, err := env.svc.Collections.Next(context.Background())
	assert.ErrorIs(t, err, ErrNothingToCollect)
}

func TestRecordCall(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	lead := testutils.CreateTestLead(t, env.db, "Borçlu", "5554440201", testutils.WithClass(models.ClassDelinquent))
	promise := time.Now().Add(48 * time.Hour).Truncate(time.Second)

	updated, err := env.svc.Collections.RecordCall(ctx, collector, lead.ID, CallResult{
		TahsilatDurumu: "Söz verdi",
		Note:           "cuma ödeyecek",
		SozTarihi:      &promise,
	})
	require.NoError(t, err)
	assert.Equal(t, "Söz verdi", updated.TahsilatDurumu)
	require.NotNil(t, updated.SonAramaZamani)
	require.NotNil(t, updated.SozTarihi)
	assert.True(t, updated.SozTarihi.Equal(promise))

	notes, err := env.svc.Collections.Notes(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "cuma ödeyecek", notes[0].Not)
	assert.Equal(t, collector, notes[0].ActorEmail)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionCollectionCall, lead.ID))

	_, err = env.svc.Collections.RecordCall(ctx, collector, lead.ID, CallResult{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.svc.Collections.RecordCall(ctx, collector, 99999, CallResult{TahsilatDurumu: "x"})
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestCollectionNotesAndAttorney(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	lead := testutils.CreateTestLead(t, env.db, "Avukatlık", "5554440301", testutils.WithClass(models.ClassDelinquent))

	_, err := env.svc.Collections.AddNote(ctx, collector, lead.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	note, err := env.svc.Collections.AddNote(ctx, collector, lead.ID, " ihtarname gönderildi ")
	require.NoError(t, err)
	assert.Equal(t, "ihtarname gönderildi", note.Not)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionCollectionNote, lead.ID))

	_, err = env.svc.Collections.SetAttorney(ctx, collector, lead.ID, AttorneyUpdate{AvukatDurumu: "Avukata verildi"})
	require.NoError(t, err)
	updated, err := env.svc.Collections.SetAttorney(ctx, collector, lead.ID, AttorneyUpdate{AvukatDurumu: "İcra takibi", Note: "dosya açıldı"})
	require.NoError(t, err)
	assert.Equal(t, "İcra takibi", updated.AvukatDurumu)

	history, err := env.svc.Collections.AttorneyHistory(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Avukata verildi", history[0].EskiDurum)
	assert.Equal(t, "İcra takibi", history[0].YeniDurum)
	assert.Empty(t, history[1].EskiDurum)

	list, total, err := env.svc.Collections.List(ctx, CollectionFilters{AvukatDurumu: "İcra takibi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, lead.ID, list[0].ID)
}
