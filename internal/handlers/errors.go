package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parloir/parloir/internal/database"
)

// respondError maps a store failure onto the REST status contract:
// 412 for every validation or business-rule failure, 500 for the rest.
func respondError(c *gin.Context, path string, err error) {
	status := http.StatusInternalServerError
	if database.Business(err) {
		status = http.StatusPreconditionFailed
	}
	c.JSON(status, gin.H{
		"success": false,
		"path":    path,
		"error":   err.Error(),
	})
}
