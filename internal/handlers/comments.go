package handlers

import (
	"net/http"
	"strconv"

	"github.com/feavel/feeds/backend/internal/util"
	"github.com/gin-gonic/gin"
)

type addCommentRequest struct {
	Content  string  `json:"content" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// AddComment posts a comment (or reply) on a feed
func (h *Handlers) AddComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	comment, err := h.comments.Add(c.Request.Context(), c.Param("id"), userID, req.Content, req.ParentID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// ListComments returns top-level comments of a feed, newest first
func (h *Handlers) ListComments(c *gin.Context) {
	callerID := util.OptionalUserIDFromContext(c)

	page, err := h.comments.List(c.Request.Context(), c.Param("id"), callerID, queryLimit(c), c.Query("cursor"))
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetComment returns a single comment with its author and engagement
// counts
func (h *Handlers) GetComment(c *gin.Context) {
	callerID := util.OptionalUserIDFromContext(c)

	view, err := h.comments.Get(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListReplies returns the direct children of a comment
func (h *Handlers) ListReplies(c *gin.Context) {
	callerID := util.OptionalUserIDFromContext(c)

	page, err := h.comments.Replies(c.Request.Context(), c.Param("id"), callerID, queryLimit(c), c.Query("cursor"))
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

type updateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateComment edits a comment's content. Author only.
func (h *Handlers) UpdateComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	comment, err := h.comments.Update(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, comment)
}

// DeleteComment removes a comment and its reply subtree. Author or
// feed admin.
func (h *Handlers) DeleteComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.comments.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func queryLimit(c *gin.Context) int {
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			return n
		}
	}
	return 0
}
