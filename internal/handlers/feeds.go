package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/feavel/feeds/backend/internal/feeds"
	"github.com/feavel/feeds/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// CreateFeed creates a new feed owned by the caller
func (h *Handlers) CreateFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req feeds.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	feed, err := h.feeds.Create(c.Request.Context(), userID, req)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, feed)
}

// ListFeeds is the unified listing endpoint. Query parameters select
// the mode: ?slug= for a single feed, ?ids= for an explicit set,
// ?public=true for the public listing, anything else lists the
// caller's own and shared feeds.
func (h *Handlers) ListFeeds(c *gin.Context) {
	callerID := util.OptionalUserIDFromContext(c)

	in := feeds.QueryInput{
		Slug:       c.Query("slug"),
		Type:       c.Query("type"),
		Language:   c.Query("language"),
		PublicOnly: c.Query("public") == "true",
		UserID:     c.Query("user_id"),
		Cursor:     c.Query("cursor"),
		WithCount:  c.Query("with_count") == "true",
	}
	if ids := c.Query("ids"); ids != "" {
		in.FeedIDs = strings.Split(ids, ",")
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			util.RespondBadRequest(c, "limit must be an integer")
			return
		}
		in.Limit = n
	}

	result, err := h.feeds.Query(c.Request.Context(), callerID, in)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFeed returns a single feed by id, honoring visibility rules
func (h *Handlers) GetFeed(c *gin.Context) {
	callerID := util.OptionalUserIDFromContext(c)

	feed, err := h.feeds.GetByID(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, feed)
}

// UpdateFeed patches a feed's fields. Requires edit permission.
func (h *Handlers) UpdateFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req feeds.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	feed, err := h.feeds.Update(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, feed)
}

// DeleteFeed removes a feed and its dependents. Creator only.
func (h *Handlers) DeleteFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.feeds.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
