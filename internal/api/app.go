package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getStatus reports liveness of the two backing stores.
func (a *API) getStatus(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"redis": a.sessions.Ping(ctx) == nil,
		"db":    a.meta.Ping(ctx) == nil,
	})
}

// getStats reports aggregate entity counts.
func (a *API) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := a.meta.CountUsers(ctx)
	if err != nil {
		a.renderError(c, err)
		return
	}

	files, err := a.meta.CountFiles(ctx)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "files": files})
}
