package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexapi/nexapi/internal/middleware"
	"github.com/nexapi/nexapi/internal/repository"
	"github.com/nexapi/nexapi/internal/service"
)

type APIHandler struct {
	apis *service.APIService
}

func NewAPIHandler(apis *service.APIService) *APIHandler {
	return &APIHandler{apis: apis}
}

func (h *APIHandler) Create(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var input service.APIInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	api, err := h.apis.Create(c.Request.Context(), *callerID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"api": api})
}

// ListPublic serves the catalog: public APIs with filtering, search and
// pagination.
func (h *APIHandler) ListPublic(c *gin.Context) {
	filter := parseFilter(c)

	apis, total, err := h.apis.ListPublic(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"apis":  apis,
		"total": total,
		"page":  filter.Page,
	})
}

func (h *APIHandler) ListMine(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	filter := parseFilter(c)

	apis, total, err := h.apis.ListMine(c.Request.Context(), *callerID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"apis":  apis,
		"total": total,
		"page":  filter.Page,
	})
}

func (h *APIHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "apiId")
	if !ok {
		return
	}

	api, err := h.apis.Get(c.Request.Context(), id, middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"api": api})
}

func (h *APIHandler) Update(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, ok := parseID(c, "apiId")
	if !ok {
		return
	}

	var patch service.APIPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	api, err := h.apis.Update(c.Request.Context(), id, *callerID, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"api": api})
}

func (h *APIHandler) Delete(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, ok := parseID(c, "apiId")
	if !ok {
		return
	}

	if err := h.apis.Delete(c.Request.Context(), id, *callerID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "api deleted"})
}

func parseFilter(c *gin.Context) repository.APIFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	return repository.APIFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		Page:     page,
		Limit:    limit,
	}
}
