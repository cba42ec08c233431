package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"backend_kredicrm/models"
	"backend_kredicrm/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullLead_OldestFirst(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	l1 := testutils.CreateTestLead(t, env.db, "Ali Yılmaz", "5551110001", testutils.WithCreatedAt(base))
	l2 := testutils.CreateTestLead(t, env.db, "Ayşe Demir", "5551110002", testutils.WithCreatedAt(base.Add(time.Minute)))

	a, err := env.svc.Leads.PullLead(ctx, "a@kredi.test")
	require.NoError(t, err)
	assert.Equal(t, l1.ID, a.ID)
	assert.Equal(t, "a@kredi.test", a.OwnerEmail())
	assert.Equal(t, models.StatusToCall, a.Durum)
	assert.NotNil(t, a.AtanmaZamani)

	b, err := env.svc.Leads.PullLead(ctx, "b@kredi.test")
	require.NoError(t, err)
	assert.Equal(t, l2.ID, b.ID)

	_, err = env.svc.Leads.PullLead(ctx, "c@kredi.test")
	assert.ErrorIs(t, err, ErrPoolEmpty)

	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionPullLead, l1.ID))
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionPullLead, l2.ID))
}

func TestPullLead_SameCreatedAtUsesID(t *testing.T) {
	env := setupServices(t)
	ts := time.Now().Add(-time.Hour)
	first := testutils.CreateTestLead(t, env.db, "Bir", "5551110011", testutils.WithCreatedAt(ts))
	testutils.CreateTestLead(t, env.db, "İki", "5551110012", testutils.WithCreatedAt(ts))

	lead, err := env.svc.Leads.PullLead(context.Background(), "a@kredi.test")
	require.NoError(t, err)
	assert.Equal(t, first.ID, lead.ID)
}

func TestPullLead_SkipsOwnedAndNonPool(t *testing.T) {
	env := setupServices(t)
	testutils.CreateTestLead(t, env.db, "Sahipli", "5551110021", testutils.WithOwner("x@kredi.test"), testutils.WithStatus(models.StatusToCall))
	testutils.CreateTestLead(t, env.db, "Onaylı", "5551110022", testutils.WithStatus(models.StatusApproved))
	unreachable := testutils.CreateTestLead(t, env.db, "Ulaşılamayan", "5551110023", testutils.WithStatus(models.StatusUnreachable))

	lead, err := env.svc.Leads.PullLead(context.Background(), "a@kredi.test")
	require.NoError(t, err)
	assert.Equal(t, unreachable.ID, lead.ID)

	_, err = env.svc.Leads.PullLead(context.Background(), "b@kredi.test")
	assert.ErrorIs(t, err, ErrPoolEmpty)
}

func TestPullLead_ConcurrentClaimsAreExclusive(t *testing.T) {
	env := setupServices(t)
	const leads, agents = 3, 10
	for i := 0; i < leads; i++ {
		testutils.CreateTestLead(t, env.db, fmt.Sprintf("Müşteri %d", i), fmt.Sprintf("55522200%02d", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = map[uint]string{}
		empty   int
		other   []error
	)
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			email := fmt.Sprintf("agent%d@kredi.test", n)
			lead, err := env.svc.Leads.PullLead(context.Background(), email)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrPoolEmpty):
				empty++
			case err != nil:
				other = append(other, err)
			default:
				if prev, dup := claimed[lead.ID]; dup {
					other = append(other, fmt.Errorf("лид %d выдан дважды: %s и %s", lead.ID, prev, email))
				}
				claimed[lead.ID] = email
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Len(t, claimed, leads)
	assert.Equal(t, agents-leads, empty)

	for id, email := range claimed {
		var lead models.Lead
		require.NoError(t, env.db.First(&lead, id).Error)
		assert.Equal(t, email, lead.OwnerEmail())
	}
}

func TestPullLead_RemovedFromPool(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	testutils.CreateTestLead(t, env.db, "Tek", "5551110031")

	lead, err := env.svc.Leads.PullLead(ctx, "a@kredi.test")
	require.NoError(t, err)
	assert.True(t, lead.IsOwnedBy("a@kredi.test"))

	pool, total, err := env.svc.Leads.List(ctx, LeadFilters{PoolOnly: true})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pool)
}

func TestPullLead_StreakLimit(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	me := agent("a@kredi.test")
	for i := 0; i < 8; i++ {
		testutils.CreateTestLead(t, env.db, fmt.Sprintf("Lead %d", i), fmt.Sprintf("55533300%02d", i))
	}

	var last *models.Lead
	for i := 0; i < 5; i++ {
		lead, err := env.svc.Leads.PullLead(ctx, me.Email)
		require.NoError(t, err, "pull %d", i+1)
		last = lead
		// Клики не прерывают серию
		require.NoError(t, env.svc.Leads.Track(ctx, lead.ID, me, "call"))
	}

	_, err := env.svc.Leads.PullLead(ctx, me.Email)
	assert.ErrorIs(t, err, ErrPullStreakExceeded)

	// Другой агент не заблокирован
	_, err = env.svc.Leads.PullLead(ctx, "b@kredi.test")
	assert.NoError(t, err)

	_, err = env.svc.Leads.UpdateStatus(ctx, last.ID, me, StatusUpdate{Durum: "Tekrar aranacak"})
	require.NoError(t, err)

	_, err = env.svc.Leads.PullLead(ctx, me.Email)
	assert.NoError(t, err)
}

func TestPullStreak_CountsOnlyConsecutivePulls(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	email := "a@kredi.test"
	actions := []string{
		models.ActionPullLead,
		models.ActionUpdateStatus,
		models.ActionPullLead,
		models.ActionViewLead,
		models.ActionPullLead,
		models.ActionClickWhatsApp,
	}
	for _, action := range actions {
		require.NoError(t, env.svc.Activity.Log(ctx, ActivityEntry{Actor: email, Action: action}))
	}

	streak, err := env.svc.Leads.PullStreak(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)
}

func TestPoolStatuses_FromTable(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	assert.Equal(t, []string{models.StatusNew, models.StatusUnreachable}, env.svc.Leads.PoolStatuses(ctx))

	require.NoError(t, env.db.Create(&models.StatusDefinition{Ad: "Havuz", Havuz: true, Aktif: true, Sira: 1}).Error)
	require.NoError(t, env.db.Create(&models.StatusDefinition{Ad: "Başka", Havuz: false, Aktif: true, Sira: 2}).Error)
	assert.Equal(t, []string{"Havuz"}, env.svc.Leads.PoolStatuses(ctx))

	lead := testutils.CreateTestLead(t, env.db, "Özel", "5551110041", testutils.WithStatus("Havuz"))
	testutils.CreateTestLead(t, env.db, "Yeni ama değil", "5551110042")

	got, err := env.svc.Leads.PullLead(ctx, "a@kredi.test")
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
}

func TestUpdateStatus(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	me := agent("a@kredi.test")

	t.Run("одна запись журнала", func(t *testing.T) {
		lead := testutils.CreateTestLead(t, env.db, "Durum", "5551110051", testutils.WithOwner(me.Email), testutils.WithStatus(models.StatusToCall))
		updated, err := env.svc.Leads.UpdateStatus(ctx, lead.ID, me, StatusUpdate{Durum: "Düşünüyor", Note: "yarın arayacak"})
		require.NoError(t, err)
		assert.Equal(t, "Düşünüyor", updated.Durum)
		assert.True(t, updated.IsOwnedBy(me.Email))

		logs, err := env.svc.Activity.History(ctx, lead.ID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, models.StatusToCall, logs[0].OldValue)
		assert.Equal(t, "Düşünüyor", logs[0].NewValue)
	})

	t.Run("статус пула освобождает лид", func(t *testing.T) {
		lead := testutils.CreateTestLead(t, env.db, "Ulaşılamadı", "5551110052", testutils.WithOwner(me.Email), testutils.WithStatus(models.StatusToCall))
		updated, err := env.svc.Leads.UpdateStatus(ctx, lead.ID, me, StatusUpdate{Durum: models.StatusUnreachable})
		require.NoError(t, err)
		assert.Equal(t, models.Unassigned, updated.Assignment().State)
		assert.Nil(t, updated.AtanmaZamani)
	})

	t.Run("отмена сохраняет причину", func(t *testing.T) {
		lead := testutils.CreateTestLead(t, env.db, "İptal", "5551110053", testutils.WithOwner(me.Email))
		updated, err := env.svc.Leads.UpdateStatus(ctx, lead.ID, me, StatusUpdate{Durum: models.StatusCancelled, IptalNedeni: "Fiyat yüksek"})
		require.NoError(t, err)
		assert.Equal(t, "Fiyat yüksek", updated.IptalNedeni)
	})

	t.Run("чужой лид", func(t *testing.T) {
		lead := testutils.CreateTestLead(t, env.db, "Başkası", "5551110054", testutils.WithOwner("b@kredi.test"))
		_, err := env.svc.Leads.UpdateStatus(ctx, lead.ID, me, StatusUpdate{Durum: "X"})
		assert.ErrorIs(t, err, ErrNotLeadOwner)
	})

	t.Run("пустой статус", func(t *testing.T) {
		_, err := env.svc.Leads.UpdateStatus(ctx, 1, me, StatusUpdate{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("несуществующий лид", func(t *testing.T) {
		_, err := env.svc.Leads.UpdateStatus(ctx, 99999, me, StatusUpdate{Durum: "X"})
		assert.ErrorIs(t, err, ErrLeadNotFound)
	})
}

func TestCreateLead(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	own, err := env.svc.Leads.Create(ctx, agent("a@kredi.test"), LeadInput{AdSoyad: "Mehmet Kaya", Telefon: "5554440001", Sehir: "Ankara"})
	require.NoError(t, err)
	assert.True(t, own.IsOwnedBy("a@kredi.test"))
	assert.Equal(t, models.SourceManual, own.Kaynak)

	pooled, err := env.svc.Leads.Create(ctx, Actor{Email: "admin@kredi.test", Role: models.RoleAdmin}, LeadInput{AdSoyad: "Havuz Lead", Telefon: "5554440002"})
	require.NoError(t, err)
	assert.Equal(t, models.Unassigned, pooled.Assignment().State)
	assert.Equal(t, models.StatusNew, pooled.Durum)

	_, err = env.svc.Leads.Create(ctx, agent("a@kredi.test"), LeadInput{AdSoyad: "Telefonsuz"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionCreateLead, own.ID))
}

func TestUpdateLead_KeepsNormalizedPhone(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	actor := agent("a@kredi.test")

	lead, err := env.svc.Leads.Create(ctx, actor, LeadInput{AdSoyad: "Mehmet Kaya", Telefon: "0555 444 00 01"})
	require.NoError(t, err)
	assert.Equal(t, "5554440001", lead.TelefonNorm)

	phone := "+90 532 000 11 22"
	updated, err := env.svc.Leads.Update(ctx, lead.ID, actor, LeadUpdate{Telefon: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Telefon)
	assert.Equal(t, "5320001122", updated.TelefonNorm)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionUpdateLead, lead.ID))
}

func TestListLeads_Filters(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	testutils.CreateTestLead(t, env.db, "Ali Veli", "5550000001", testutils.WithOwner("a@kredi.test"), testutils.WithCity("İzmir"))
	testutils.CreateTestLead(t, env.db, "Ali Can", "5550000002", testutils.WithOwner("b@kredi.test"))
	testutils.CreateTestLead(t, env.db, "Zeynep", "5550000003")

	mine, total, err := env.svc.Leads.List(ctx, LeadFilters{Owner: "a@kredi.test"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Ali Veli", mine[0].AdSoyad)

	found, total, err := env.svc.Leads.List(ctx, LeadFilters{Query: "ali"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, found, 2)

	byPhone, _, err := env.svc.Leads.List(ctx, LeadFilters{Query: "0003"})
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "Zeynep", byPhone[0].AdSoyad)

	city, _, err := env.svc.Leads.List(ctx, LeadFilters{Sehir: "İzmir"})
	require.NoError(t, err)
	assert.Len(t, city, 1)

	page, total, err := env.svc.Leads.List(ctx, LeadFilters{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

func TestReleaseAndTrack(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	me := agent("a@kredi.test")
	lead := testutils.CreateTestLead(t, env.db, "Bırakılan", "5551110061", testutils.WithOwner(me.Email), testutils.WithStatus(models.StatusToCall))

	require.NoError(t, env.svc.Leads.Track(ctx, lead.ID, me, "whatsapp"))
	assert.ErrorIs(t, env.svc.Leads.Track(ctx, lead.ID, me, "fax"), ErrValidation)

	released, err := env.svc.Leads.Release(ctx, lead.ID, me)
	require.NoError(t, err)
	assert.Equal(t, models.Unassigned, released.Assignment().State)
	assert.Equal(t, models.StatusNew, released.Durum)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionReleaseLead, lead.ID))
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionClickWhatsApp, lead.ID))

	// После освобождения агент теряет доступ
	_, err = env.svc.Leads.Release(ctx, lead.ID, me)
	assert.ErrorIs(t, err, ErrNotLeadOwner)
}

func TestBulkOperations(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	admin := "admin@kredi.test"

	a := testutils.CreateTestLead(t, env.db, "A", "5551110071", testutils.WithStatus("Eski"), testutils.WithOwner("x@kredi.test"))
	b := testutils.CreateTestLead(t, env.db, "B", "5551110072", testutils.WithStatus("Eski"))
	c := testutils.CreateTestLead(t, env.db, "C", "5551110073", testutils.WithStatus("Başka"))

	t.Run("reclassify", func(t *testing.T) {
		updated, err := env.svc.Leads.BulkReclassify(ctx, admin, "Eski", "Yeni Etiket")
		require.NoError(t, err)
		assert.Equal(t, 2, updated)
		assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionBulkStatus, a.ID))
		assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionBulkStatus, b.ID))
		assert.Equal(t, int64(0), countLogs(t, env.db, models.ActionBulkStatus, c.ID))

		_, err = env.svc.Leads.BulkReclassify(ctx, admin, "", "X")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("release", func(t *testing.T) {
		released, err := env.svc.Leads.BulkRelease(ctx, admin, []uint{a.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, released)
		lead, err := env.svc.Leads.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Unassigned, lead.Assignment().State)
	})

	t.Run("delete пишет журнал до удаления", func(t *testing.T) {
		deleted, err := env.svc.Leads.BulkDelete(ctx, admin, []uint{c.ID, 99999})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
		_, err = env.svc.Leads.Get(ctx, c.ID)
		assert.ErrorIs(t, err, ErrLeadNotFound)
		assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionDeleteLead, c.ID))
	})
}

func TestFixPoolConsistency(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	broken := testutils.CreateTestLead(t, env.db, "Bozuk", "5551110081", testutils.WithOwner("x@kredi.test"))
	healthy := testutils.CreateTestLead(t, env.db, "Sağlam", "5551110082", testutils.WithOwner("x@kredi.test"), testutils.WithStatus(models.StatusToCall))

	fixed, err := env.svc.Leads.FixPoolConsistency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	lead, err := env.svc.Leads.Get(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Unassigned, lead.Assignment().State)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionPoolFix, broken.ID))

	lead, err = env.svc.Leads.Get(ctx, healthy.ID)
	require.NoError(t, err)
	assert.True(t, lead.IsOwnedBy("x@kredi.test"))

	fixed, err = env.svc.Leads.FixPoolConsistency(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestCanAccessLead(t *testing.T) {
	owner := "a@kredi.test"
	owned := &models.Lead{Sahip: &owner}
	delinquent := &models.Lead{Sinif: models.ClassDelinquent}

	assert.True(t, CanAccessLead(owned, Actor{Email: "admin@kredi.test", Role: models.RoleAdmin}))
	assert.True(t, CanAccessLead(owned, agent("A@kredi.test")))
	assert.False(t, CanAccessLead(owned, agent("b@kredi.test")))
	assert.False(t, CanAccessLead(delinquent, agent("b@kredi.test")))
	assert.True(t, CanAccessLead(delinquent, Actor{Email: "t@kredi.test", Role: models.RoleCollection}))
}
