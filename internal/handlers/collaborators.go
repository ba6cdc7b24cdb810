package handlers

import (
	"net/http"
	"strconv"

	"github.com/feavel/feeds/backend/internal/models"
	"github.com/feavel/feeds/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// ListCollaborators returns the roster of a feed
func (h *Handlers) ListCollaborators(c *gin.Context) {
	callerID := util.OptionalUserIDFromContext(c)

	entries, err := h.collaborators.List(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"collaborators": entries})
}

type addCollaboratorRequest struct {
	UserID string                  `json:"user_id" binding:"required"`
	Role   models.CollaboratorRole `json:"role" binding:"required"`
}

// AddCollaborator grants a user a role on the feed. Admin only.
func (h *Handlers) AddCollaborator(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req addCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	collab, err := h.collaborators.Add(c.Request.Context(), c.Param("id"), userID, req.UserID, req.Role)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, collab)
}

type updateCollaboratorRequest struct {
	Role models.CollaboratorRole `json:"role" binding:"required"`
}

// UpdateCollaborator changes a collaborator's role. Admin only.
func (h *Handlers) UpdateCollaborator(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req updateCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	collab, err := h.collaborators.UpdateRole(c.Request.Context(), c.Param("id"), userID, c.Param("userId"), req.Role)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, collab)
}

// RemoveCollaborator drops a collaborator from the feed. Admin only.
func (h *Handlers) RemoveCollaborator(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.collaborators.Remove(c.Request.Context(), c.Param("id"), userID, c.Param("userId")); err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// SearchCollaboratorCandidates finds users to invite by username or
// display name prefix
func (h *Handlers) SearchCollaboratorCandidates(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	users, err := h.collaborators.SearchUsers(c.Request.Context(), c.Param("id"), userID, c.Query("q"), limit)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
