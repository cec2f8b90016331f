package handlers

import (
	"net/http"

	"retrolock/internal/service"

	"github.com/gin-gonic/gin"
)

// authorize rejects the request before any effect unless it carries the shared secret.
func (h *Handler) authorize(c *gin.Context) {
	req := service.AccessRequest{
		Operation: operationName(c),
		ClientIP:  c.ClientIP(),
	}
	if !h.services.Authorize(c.Request.Context(), c.GetHeader("Authorization"), req) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": errUnauthorized,
		})
		return
	}
	c.Next()
}
