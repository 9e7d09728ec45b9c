package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexapi/nexapi/internal/crypto"
	"github.com/nexapi/nexapi/internal/middleware"
	"github.com/nexapi/nexapi/internal/tester"
)

type TestHandler struct {
	dispatcher *tester.Dispatcher
}

func NewTestHandler(dispatcher *tester.Dispatcher) *TestHandler {
	return &TestHandler{dispatcher: dispatcher}
}

// Run executes a live test call against an endpoint's upstream. The
// response mirrors the upstream outcome; failures before the outbound
// call map onto client errors.
func (h *TestHandler) Run(c *gin.Context) {
	apiID, ok := parseID(c, "apiId")
	if !ok {
		return
	}
	endpointID, ok := parseID(c, "endpointId")
	if !ok {
		return
	}

	// ContentLength is -1 for chunked bodies, which still carry a bundle
	var bundle tester.RequestBundle
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&bundle); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	callerID := middleware.CallerID(c)
	presentedKey := c.GetHeader("X-Api-Key")

	result, err := h.dispatcher.Test(c.Request.Context(), apiID, endpointID, callerID, presentedKey, bundle)
	if err != nil {
		respondTestError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func respondTestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tester.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	case errors.Is(err, tester.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, tester.ErrInvalidCredential):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid or inactive api key"})
	case tester.IsBuildError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, crypto.ErrCorruptCiphertext):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "provider credential is unreadable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}
