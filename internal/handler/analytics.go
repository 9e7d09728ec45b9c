package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/analytics"
	"github.com/nexapi/nexapi/internal/middleware"
	"github.com/nexapi/nexapi/internal/repository"
)

type AnalyticsHandler struct {
	reader *analytics.Reader
	apis   *repository.APIRepository
}

func NewAnalyticsHandler(reader *analytics.Reader, apis *repository.APIRepository) *AnalyticsHandler {
	return &AnalyticsHandler{reader: reader, apis: apis}
}

// Traffic serves the per-day call rollup. Owner only.
func (h *AnalyticsHandler) Traffic(c *gin.Context) {
	apiID, ok := h.ownedAPI(c)
	if !ok {
		return
	}

	report, err := h.reader.Traffic(c.Request.Context(), apiID, windowDays(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Users serves the distinct-caller rollup. Owner only.
func (h *AnalyticsHandler) Users(c *gin.Context) {
	apiID, ok := h.ownedAPI(c)
	if !ok {
		return
	}

	report, err := h.reader.Users(c.Request.Context(), apiID, windowDays(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Summary serves the lifetime aggregate row. Owner only.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	apiID, ok := h.ownedAPI(c)
	if !ok {
		return
	}

	summary, err := h.reader.Summary(c.Request.Context(), apiID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalCalls":     summary.TotalCalls,
		"totalErrors":    summary.TotalErrors,
		"averageLatency": summary.AverageLatency,
	})
}

// EndpointLogs lists recent calls for one endpoint. Owner only.
func (h *AnalyticsHandler) EndpointLogs(c *gin.Context) {
	if _, ok := h.ownedAPI(c); !ok {
		return
	}

	endpointID, ok := parseID(c, "endpointId")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	logs, err := h.reader.RecentCalls(c.Request.Context(), endpointID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *AnalyticsHandler) ownedAPI(c *gin.Context) (uuid.UUID, bool) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}

	id, parsed := parseID(c, "apiId")
	if !parsed {
		return uuid.Nil, false
	}

	api, err := h.apis.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return uuid.Nil, false
	}
	if api == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "api not found"})
		return uuid.Nil, false
	}
	if api.OwnerID != *callerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may view analytics"})
		return uuid.Nil, false
	}

	return id, true
}

func windowDays(c *gin.Context) int {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 {
		return 7
	}
	if days > 90 {
		return 90
	}
	return days
}
