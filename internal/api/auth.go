package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type newUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// postUsers creates an account.
func (a *API) postUsers(c *gin.Context) {
	var req newUserRequest
	_ = c.ShouldBindJSON(&req)

	user, err := a.users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

// getConnect exchanges Basic credentials for an opaque session token.
func (a *API) getConnect(c *gin.Context) {
	email, password, ok := basicCredentials(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := a.users.Authenticate(c.Request.Context(), email, password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	token := uuid.NewString()
	if err := a.sessions.Set(c.Request.Context(), token, user.ID, a.tokenTTL); err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// getDisconnect invalidates the caller's session token.
func (a *API) getDisconnect(c *gin.Context) {
	token := c.GetHeader("X-Token")
	if _, ok := a.resolveToken(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := a.sessions.Del(c.Request.Context(), token); err != nil {
		a.renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func basicCredentials(header string) (email, password string, ok bool) {
	if !strings.HasPrefix(header, "Basic ") {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return "", "", false
	}

	email, password, ok = strings.Cut(string(decoded), ":")
	if !ok || email == "" || password == "" {
		return "", "", false
	}
	return email, password, true
}
