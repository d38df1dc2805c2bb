package api

import (
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filevault/filevault/internal/entity"
	"github.com/filevault/filevault/internal/service"
	"github.com/filevault/filevault/internal/session"
	"github.com/filevault/filevault/internal/store"
)

const userIDKey = "userID"

// API exposes the file hierarchy over HTTP.
type API struct {
	files    *service.Files
	users    *service.Users
	meta     *store.Store
	sessions session.Store
	tokenTTL time.Duration
	logger   *log.Logger
}

func New(files *service.Files, users *service.Users, meta *store.Store, sessions session.Store, tokenTTL time.Duration) *API {
	return &API{
		files:    files,
		users:    users,
		meta:     meta,
		sessions: sessions,
		tokenTTL: tokenTTL,
		logger:   log.New(os.Stdout, "[API] ", log.LstdFlags),
	}
}

func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/status", a.getStatus)
	router.GET("/stats", a.getStats)

	router.POST("/users", a.postUsers)
	router.GET("/connect", a.getConnect)
	router.GET("/disconnect", a.getDisconnect)

	files := router.Group("/files")
	files.GET("/:id/data", a.getData)

	authed := files.Group("")
	authed.Use(a.authMiddleware())
	authed.POST("", a.postUpload)
	authed.GET("", a.getIndex)
	authed.GET("/:id", a.getShow)
	authed.PUT("/:id/publish", a.putPublish)
	authed.PUT("/:id/unpublish", a.putUnpublish)
}

// authMiddleware resolves the X-Token header to a user id or aborts with
// 401.
func (a *API) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := a.resolveToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Set(userIDKey, ownerID)
		c.Next()
	}
}

// resolveToken looks the X-Token header up in the session store. It never
// aborts; handlers that allow anonymous access call it directly.
func (a *API) resolveToken(c *gin.Context) (string, bool) {
	token := c.GetHeader("X-Token")
	if token == "" {
		return "", false
	}

	ownerID, err := a.sessions.Get(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			a.logger.Printf("session lookup failed: %v", err)
		}
		return "", false
	}
	return ownerID, true
}

func (a *API) renderError(c *gin.Context, err error) {
	var validation *entity.ValidationError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Msg})
	case errors.Is(err, entity.ErrParentNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parent not found"})
	case errors.Is(err, entity.ErrParentNotFolder):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parent is not a folder"})
	case errors.Is(err, entity.ErrFolderNoContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A folder doesn't have content"})
	case errors.Is(err, entity.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Already exist"})
	case errors.Is(err, entity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		a.logger.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
