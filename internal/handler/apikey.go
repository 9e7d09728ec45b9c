package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexapi/nexapi/internal/middleware"
	"github.com/nexapi/nexapi/internal/repository"
	"github.com/nexapi/nexapi/internal/service"
)

type APIKeyHandler struct {
	keys *service.APIKeyService
	apis *repository.APIRepository
}

func NewAPIKeyHandler(keys *service.APIKeyService, apis *repository.APIRepository) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, apis: apis}
}

// Generate issues or rotates the caller's consumer key for an API. Any
// signed-in user may hold a key; the previous one stops working
// immediately.
func (h *APIKeyHandler) Generate(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}

	api, err := h.apis.FindByID(c.Request.Context(), apiID)
	if err != nil {
		respondError(c, err)
		return
	}
	if api == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "api not found"})
		return
	}

	key, err := h.keys.Generate(c.Request.Context(), apiID, *callerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"apiKey": key})
}

// Get returns the caller's key for an API, token included. The model
// hides the token in JSON, so the response carries it explicitly.
func (h *APIKeyHandler) Get(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}

	apiKey, err := h.keys.Get(c.Request.Context(), apiID, *callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if apiKey == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "api key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"apiKey":    apiKey.Key,
		"isActive":  apiKey.IsActive,
		"createdAt": apiKey.CreatedAt,
	})
}

func (h *APIKeyHandler) Delete(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}

	if err := h.keys.Delete(c.Request.Context(), apiID, *callerID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "api key revoked"})
}
