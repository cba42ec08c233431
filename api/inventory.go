package api

import (
	"net/http"

	"backend_kredicrm/middleware"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

// InventoryAPI представляет API для работы со складом устройств
type InventoryAPI struct {
	inventory *services.InventoryService
}

// NewInventoryAPI создает новый экземпляр InventoryAPI
func NewInventoryAPI(inventory *services.InventoryService) *InventoryAPI {
	return &InventoryAPI{inventory: inventory}
}

type returnRequest struct {
	Note string `json:"note"`
}

// CreateItem добавляет устройство на склад
func (api *InventoryAPI) CreateItem(c *gin.Context) {
	var input services.InventoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	item, err := api.inventory.Add(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Устройство добавлено на склад",
		"data":    item,
	})
}

// GetItems возвращает список устройств
func (api *InventoryAPI) GetItems(c *gin.Context) {
	page, limit := parsePagination(c)
	items, total, err := api.inventory.List(c.Request.Context(), services.InventoryFilters{
		Durum: c.Query("durum"),
		Marka: c.Query("marka"),
		Query: c.Query("q"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(items, total, page, limit))
}

// GetItem возвращает устройство по ID
func (api *InventoryAPI) GetItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	item, err := api.inventory.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// UpdateItem обновляет карточку устройства
func (api *InventoryAPI) UpdateItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.InventoryUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	item, err := api.inventory.Update(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Устройство обновлено",
		"data":    item,
	})
}

// DeleteItem удаляет устройство со склада
func (api *InventoryAPI) DeleteItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := api.inventory.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Устройство удалено"})
}

// GetStats сводка по складу
func (api *InventoryAPI) GetStats(c *gin.Context) {
	stats, err := api.inventory.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// Assign продает устройство клиенту
func (api *InventoryAPI) Assign(c *gin.Context) {
	var req services.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lead, item, err := api.inventory.Assign(c.Request.Context(), middleware.GetCurrentEmail(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Устройство передано клиенту",
		"lead":    lead,
		"item":    item,
	})
}

// ReturnItem возвращает проданное устройство на склад
func (api *InventoryAPI) ReturnItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req returnRequest
	_ = c.ShouldBindJSON(&req)

	item, err := api.inventory.Return(c.Request.Context(), middleware.GetCurrentEmail(c), id, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Устройство возвращено на склад",
		"data":    item,
	})
}
