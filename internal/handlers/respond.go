package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wastemon/api/internal/apperr"
)

// respondError maps an error to its HTTP status and the public error body.
// Internal details never reach the wire.
func respondError(c *gin.Context, err error) {
	message, typ := apperr.Public(err)
	body := gin.H{"message": message}
	if typ != "" {
		body["type"] = typ
	}
	c.JSON(apperr.Status(err), body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message, "type": "validation"})
}
