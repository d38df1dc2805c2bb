package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/filevault/filevault/internal/service"
)

type uploadRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID string `json:"parentId"`
	Data     string `json:"data"`
	IsPublic bool   `json:"isPublic"`
}

// postUpload creates a file or folder for the authenticated user.
func (a *API) postUpload(c *gin.Context) {
	var req uploadRequest
	_ = c.ShouldBindJSON(&req)

	file, err := a.files.Upload(c.Request.Context(), c.GetString(userIDKey), service.UploadRequest{
		Name:     req.Name,
		Kind:     req.Type,
		Parent:   req.ParentID,
		Data:     req.Data,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, file)
}

// getShow returns one of the authenticated user's files.
func (a *API) getShow(c *gin.Context) {
	file, err := a.files.Get(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, file)
}

// getIndex lists one page of the authenticated user's files under a parent.
func (a *API) getIndex(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))

	files, err := a.files.List(c.Request.Context(), c.GetString(userIDKey), c.Query("parentId"), page)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, files)
}

func (a *API) putPublish(c *gin.Context) {
	file, err := a.files.Publish(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, file)
}

func (a *API) putUnpublish(c *gin.Context) {
	file, err := a.files.Unpublish(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, file)
}

// getData streams file content. Auth is optional here: public files are
// readable by anyone, and access failures on private files are
// indistinguishable from absence.
func (a *API) getData(c *gin.Context) {
	callerID, _ := a.resolveToken(c)

	width := 0
	if size := c.Query("size"); size != "" {
		width, _ = strconv.Atoi(size)
	}

	rc, file, err := a.files.ReadContent(c.Request.Context(), callerID, c.Param("id"), width)
	if err != nil {
		a.renderError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(file.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		a.logger.Printf("failed to send %s: %v", file.ID, err)
	}
}
