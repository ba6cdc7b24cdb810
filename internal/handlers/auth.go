package handlers

import (
	"net/http"

	"github.com/feavel/feeds/backend/internal/auth"
	"github.com/feavel/feeds/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// Register creates a new account from email/username/password
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Register(req)
	if err != nil {
		util.RespondWithAPIError(c, auth.AsAPIError(err))
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates an email/password pair and returns a JWT
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Login(req)
	if err != nil {
		util.RespondWithAPIError(c, auth.AsAPIError(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user's own record
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteMe removes the caller's account along with their feeds,
// comments, likes and collaborations
func (h *Handlers) DeleteMe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.auth.DeleteAccount(userID); err != nil {
		util.RespondWithAPIError(c, auth.AsAPIError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
