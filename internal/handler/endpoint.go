package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexapi/nexapi/internal/middleware"
	"github.com/nexapi/nexapi/internal/service"
)

type EndpointHandler struct {
	endpoints *service.EndpointService
}

func NewEndpointHandler(endpoints *service.EndpointService) *EndpointHandler {
	return &EndpointHandler{endpoints: endpoints}
}

func (h *EndpointHandler) Create(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}

	var input service.EndpointInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	endpoint, err := h.endpoints.Create(c.Request.Context(), apiID, *callerID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"endpoint": endpoint})
}

func (h *EndpointHandler) List(c *gin.Context) {
	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}

	endpoints, err := h.endpoints.List(c.Request.Context(), apiID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints})
}

func (h *EndpointHandler) Get(c *gin.Context) {
	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}
	id, ok := parseID(c, "endpointId")
	if !ok {
		return
	}

	endpoint, err := h.endpoints.Get(c.Request.Context(), apiID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": endpoint})
}

func (h *EndpointHandler) Update(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}
	id, ok := parseID(c, "endpointId")
	if !ok {
		return
	}

	var patch service.EndpointPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	endpoint, err := h.endpoints.Update(c.Request.Context(), apiID, id, *callerID, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": endpoint})
}

func (h *EndpointHandler) Delete(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}
	id, ok := parseID(c, "endpointId")
	if !ok {
		return
	}

	if err := h.endpoints.Delete(c.Request.Context(), apiID, id, *callerID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "endpoint deleted"})
}
