package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"backend_kredicrm/services"

	"github.com/gin-gonic/gin"
)

// dateLayout формат дат в параметрах запроса
const dateLayout = "2006-01-02"

// errorStatus сопоставляет ошибки сервисов с HTTP статусами
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUserInactive), errors.Is(err, services.ErrNotLeadOwner):
		return http.StatusForbidden
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrLeadNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, services.ErrSettingNotFound),
		errors.Is(err, services.ErrPricingNotFound),
		errors.Is(err, services.ErrUnknownJob),
		errors.Is(err, services.ErrSheetNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidApprovalTransition),
		errors.Is(err, services.ErrItemNotInStock),
		errors.Is(err, services.ErrItemNotSold):
		return http.StatusConflict
	case errors.Is(err, services.ErrPullStreakExceeded):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// respondError отвечает {"error": ...}. Текст ошибки передается клиенту как есть
func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// badRequest ответ на некорректное тело запроса
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
}

// parseID читает числовой параметр пути
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID"})
		return 0, false
	}
	return uint(id), true
}

// parsePagination читает page и limit из query
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return services.NormalizePage(page, limit)
}

// parseDate разбирает дату YYYY-MM-DD или RFC3339. Пустая строка дает нулевое время
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, raw, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// parseRange читает startDate и endDate. Конец дня включается в период
func parseRange(c *gin.Context) (services.ReportRange, bool) {
	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректная дата startDate"})
		return services.ReportRange{}, false
	}
	rawEnd := c.Query("endDate")
	end, err := parseDate(rawEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректная дата endDate"})
		return services.ReportRange{}, false
	}
	if len(rawEnd) == len(dateLayout) {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return services.ReportRange{Start: start, End: end}, true
}

// pageResponse обертка для списков с пагинацией
func pageResponse(data interface{}, total int64, page, limit int) gin.H {
	return gin.H{
		"data":  data,
		"total": total,
		"page":  page,
		"limit": limit,
	}
}
