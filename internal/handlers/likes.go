package handlers

import (
	"net/http"

	"github.com/feavel/feeds/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// LikeFeed records a like on a feed, idempotently
func (h *Handlers) LikeFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	like, err := h.likes.LikeFeed(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, like)
}

// UnlikeFeed removes a like if present; reports whether one existed
func (h *Handlers) UnlikeFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	removed, err := h.likes.UnlikeFeed(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetFeedLikes returns the like count and caller's like flag for a
// feed. Works without authentication; is_liked is then false.
func (h *Handlers) GetFeedLikes(c *gin.Context) {
	callerID := util.OptionalUserIDFromContext(c)

	data, err := h.likes.FeedLikeData(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

// GetMyFeedLikes lists the ids of every feed the caller has liked
func (h *Handlers) GetMyFeedLikes(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	feedIDs, err := h.likes.UserFeedLikes(c.Request.Context(), userID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"feed_ids": feedIDs})
}

// LikeComment records a like on a comment, idempotently
func (h *Handlers) LikeComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	like, err := h.likes.LikeComment(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, like)
}

// UnlikeComment removes a comment like if present
func (h *Handlers) UnlikeComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	removed, err := h.likes.UnlikeComment(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetCommentLikes returns the like count and caller's like flag for
// a comment
func (h *Handlers) GetCommentLikes(c *gin.Context) {
	callerID := util.OptionalUserIDFromContext(c)

	data, err := h.likes.CommentLikeData(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}
