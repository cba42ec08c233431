package api

import (
	"errors"
	"net/http"

	"backend_kredicrm/middleware"
	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

// CollectionAPI работа с должниками
type CollectionAPI struct {
	collections *services.CollectionService
}

// NewCollectionAPI создает новый экземпляр CollectionAPI
func NewCollectionAPI(collections *services.CollectionService) *CollectionAPI {
	return &CollectionAPI{collections: collections}
}

type noteRequest struct {
	Note string `json:"note" binding:"required"`
}

// Next следующий должник для звонка
func (api *CollectionAPI) Next(c *gin.Context) {
	lead, err := api.collections.Next(c.Request.Context())
	if errors.Is(err, services.ErrNothingToCollect) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Aranacak gecikmeli müşteri yok"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead": lead})
}

// RecordCall сохраняет результат звонка
func (api *CollectionAPI) RecordCall(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.CallResult
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := api.collections.RecordCall(c.Request.Context(), middleware.GetCurrentEmail(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead": lead})
}

// GetNotes заметки по должнику
func (api *CollectionAPI) GetNotes(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	notes, err := api.collections.Notes(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notes})
}

// AddNote добавляет заметку
func (api *CollectionAPI) AddNote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	note, err := api.collections.AddNote(c.Request.Context(), middleware.GetCurrentEmail(c), id, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Заметка добавлена",
		"data":    note,
	})
}

// SetAttorney меняет статус передачи юристу
func (api *CollectionAPI) SetAttorney(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.AttorneyUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	lead, err := api.collections.SetAttorney(ctx, middleware.GetCurrentEmail(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	history, err := api.collections.AttorneyHistory(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead, "history": history})
}

// List список должников
func (api *CollectionAPI) List(c *gin.Context) {
	page, limit := parsePagination(c)
	leads, total, err := api.collections.List(c.Request.Context(), services.CollectionFilters{
		TahsilatDurumu: c.Query("tahsilat_durumu"),
		AvukatDurumu:   c.Query("avukat_durumu"),
		Page:           page,
		Limit:          limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(leads, total, page, limit))
}
