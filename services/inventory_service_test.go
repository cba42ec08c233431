package services

import (
	"context"
	"sync"
	"testing"

	"backend_kredicrm/models"
	"backend_kredicrm/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssign_DeliversItem(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	testutils.CreateTestTemplate(t, env.db, models.TemplateDelivered, "{ad_soyad}, {urun} ({imei}) teslim edildi.")
	item := testutils.CreateTestItem(t, env.db, "123")
	lead := testutils.CreateTestLead(t, env.db, "Teslim Alan", "5553330001",
		testutils.WithOwner("a@kredi.test"),
		testutils.WithStatus(models.StatusApproved),
		testutils.WithApproval(models.ApprovalApproved))

	updatedLead, updatedItem, err := env.svc.Inventory.Assign(ctx, "a@kredi.test", AssignRequest{ItemID: item.ID, LeadID: lead.ID})
	require.NoError(t, err)

	assert.Equal(t, models.StockSold, updatedItem.Durum)
	require.NotNil(t, updatedItem.MusteriID)
	assert.Equal(t, lead.ID, *updatedItem.MusteriID)
	assert.NotNil(t, updatedItem.SatisTarihi)

	assert.Equal(t, "123", updatedLead.UrunIMEI)
	assert.Equal(t, "Samsung Galaxy A55", updatedLead.UrunAdi)
	assert.Equal(t, models.StatusDelivered, updatedLead.Durum)
	assert.True(t, updatedLead.SatisFiyati.Equal(decimal.NewFromInt(12500)))
	assert.NotNil(t, updatedLead.TeslimTarihi)

	sold := updatedLead.SoldItems()
	require.Len(t, sold, 1)
	assert.Equal(t, item.ID, sold[0].ItemID)
	assert.Equal(t, "123", sold[0].IMEI)

	logs, err := env.svc.Activity.History(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionDeliver, logs[0].Action)
	assert.Equal(t, models.StatusApproved, logs[0].OldValue)
	assert.Equal(t, models.StatusDelivered, logs[0].NewValue)

	sent := env.gateway.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Teslim Alan, Samsung Galaxy A55 (123) teslim edildi.", sent[0].Message)
}

func TestAssign_SoldItemRejected(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	item := testutils.CreateTestItem(t, env.db, "456")
	first := testutils.CreateTestLead(t, env.db, "Birinci", "5553330011")
	second := testutils.CreateTestLead(t, env.db, "İkinci", "5553330012")

	_, _, err := env.svc.Inventory.Assign(ctx, adminEmail, AssignRequest{ItemID: item.ID, LeadID: first.ID})
	require.NoError(t, err)

	_, _, err = env.svc.Inventory.Assign(ctx, adminEmail, AssignRequest{ItemID: item.ID, LeadID: second.ID})
	assert.ErrorIs(t, err, ErrItemNotInStock)

	lead, err := env.svc.Leads.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, lead.UrunIMEI)

	_, _, err = env.svc.Inventory.Assign(ctx, adminEmail, AssignRequest{ItemID: 99999, LeadID: second.ID})
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, _, err = env.svc.Inventory.Assign(ctx, adminEmail, AssignRequest{ItemID: item.ID, LeadID: 99999})
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestAssign_ConcurrentSaleOfOneItem(t *testing.T) {
	env := setupServices(t)
	item := testutils.CreateTestItem(t, env.db, "789")
	leads := []*models.Lead{
		testutils.CreateTestLead(t, env.db, "A", "5553330021"),
		testutils.CreateTestLead(t, env.db, "B", "5553330022"),
		testutils.CreateTestLead(t, env.db, "C", "5553330023"),
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, lead := range leads {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, _, err := env.svc.Inventory.Assign(context.Background(), adminEmail, AssignRequest{ItemID: item.ID, LeadID: id})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(lead.ID)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestAssign_CustomPriceAndSecondItem(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	phone := testutils.CreateTestItem(t, env.db, "111")
	watch := testutils.CreateTestItem(t, env.db, "222")
	lead := testutils.CreateTestLead(t, env.db, "Çoklu", "5553330031")

	price := decimal.NewFromInt(9999)
	_, _, err := env.svc.Inventory.Assign(ctx, adminEmail, AssignRequest{ItemID: phone.ID, LeadID: lead.ID, SatisFiyati: &price})
	require.NoError(t, err)
	updated, _, err := env.svc.Inventory.Assign(ctx, adminEmail, AssignRequest{ItemID: watch.ID, LeadID: lead.ID})
	require.NoError(t, err)

	sold := updated.SoldItems()
	require.Len(t, sold, 2)
	assert.True(t, sold[0].Fiyat.Equal(price))
	assert.Equal(t, "222", updated.UrunIMEI)
}

func TestReturnItem(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	item := testutils.CreateTestItem(t, env.db, "333")
	lead := testutils.CreateTestLead(t, env.db, "İade", "5553330041")

	_, err := env.svc.Inventory.Return(ctx, adminEmail, item.ID, "")
	assert.ErrorIs(t, err, ErrItemNotSold)

	_, _, err = env.svc.Inventory.Assign(ctx, adminEmail, AssignRequest{ItemID: item.ID, LeadID: lead.ID})
	require.NoError(t, err)

	returned, err := env.svc.Inventory.Return(ctx, adminEmail, item.ID, "kutu hasarlı")
	require.NoError(t, err)
	assert.Equal(t, models.StockInStock, returned.Durum)
	assert.Nil(t, returned.MusteriID)
	assert.Equal(t, int64(1), countLogs(t, env.db, models.ActionReturnItem, lead.ID))
}

func TestInventoryCRUDAndStats(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	item, err := env.svc.Inventory.Add(ctx, InventoryInput{
		Marka:       "Apple",
		Model:       "iPhone 15",
		IMEI:        "350000000000001",
		AlisFiyati:  decimal.NewFromInt(40000),
		SatisFiyati: decimal.NewFromInt(52000),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StockInStock, item.Durum)

	_, err = env.svc.Inventory.Add(ctx, InventoryInput{Marka: "Apple", Model: "X"})
	assert.ErrorIs(t, err, ErrValidation)

	model := "iPhone 15 Pro"
	updated, err := env.svc.Inventory.Update(ctx, item.ID, InventoryUpdate{Model: &model})
	require.NoError(t, err)
	assert.Equal(t, model, updated.Model)

	testutils.CreateTestItem(t, env.db, "444")
	sold := testutils.CreateTestItem(t, env.db, "555")
	lead := testutils.CreateTestLead(t, env.db, "Alıcı", "5553330051")
	_, _, err = env.svc.Inventory.Assign(ctx, adminEmail, AssignRequest{ItemID: sold.ID, LeadID: lead.ID})
	require.NoError(t, err)

	list, total, err := env.svc.Inventory.List(ctx, InventoryFilters{Durum: models.StockInStock})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	found, _, err := env.svc.Inventory.List(ctx, InventoryFilters{Query: "pro"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, item.ID, found[0].ID)

	stats, err := env.svc.Inventory.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ByStatus[models.StockInStock])
	assert.Equal(t, int64(1), stats.ByStatus[models.StockSold])
	assert.Equal(t, int64(1), stats.ByBrand["Apple"])
	assert.True(t, stats.StockValue.Equal(decimal.NewFromInt(49000)))
	assert.True(t, stats.SoldValue.Equal(decimal.NewFromInt(12500)))

	assert.ErrorIs(t, env.svc.Inventory.Delete(ctx, sold.ID), ErrItemNotInStock)
	assert.NoError(t, env.svc.Inventory.Delete(ctx, item.ID))
	assert.ErrorIs(t, env.svc.Inventory.Delete(ctx, item.ID), ErrItemNotFound)
}
