package handlers

import (
	"net/http"

	"github.com/feavel/feeds/backend/internal/errors"
	"github.com/feavel/feeds/backend/internal/metrics"
	"github.com/feavel/feeds/backend/internal/util"
	"github.com/feavel/feeds/backend/internal/validation"
	"github.com/gin-gonic/gin"
)

type uploadURLRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required"`
}

// FeedUploadURL validates the declared type and size of a feed media
// file and issues a pre-signed upload target. The bytes go straight
// from the client to object storage.
func (h *Handlers) FeedUploadURL(c *gin.Context) {
	if _, ok := util.GetUserIDFromContext(c); !ok {
		return
	}

	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateUpload(req.ContentType, req.Size); err != nil {
		util.RespondServiceError(c, err)
		return
	}

	target, err := h.uploader.PresignUpload(c.Request.Context(), "feeds", req.ContentType)
	if err != nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("object storage"))
		return
	}

	metrics.Get().UploadsGrantedTotal.WithLabelValues("feed").Inc()
	c.JSON(http.StatusOK, target)
}

// AvatarUploadURL issues a pre-signed upload target for a profile
// avatar. Images only, smaller size ceiling.
func (h *Handlers) AvatarUploadURL(c *gin.Context) {
	if _, ok := util.GetUserIDFromContext(c); !ok {
		return
	}

	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateAvatar(req.ContentType, req.Size); err != nil {
		util.RespondServiceError(c, err)
		return
	}

	target, err := h.uploader.PresignUpload(c.Request.Context(), "avatars", req.ContentType)
	if err != nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("object storage"))
		return
	}

	metrics.Get().UploadsGrantedTotal.WithLabelValues("avatar").Inc()
	c.JSON(http.StatusOK, target)
}

type setKeyRequest struct {
	Key string `json:"key" binding:"required"`
}

// SetFeedCover records an uploaded object key as the feed's cover
// image. Requires edit permission. Only the key is persisted; the
// serving URL is templated at read time.
func (h *Handlers) SetFeedCover(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req setKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	feed, err := h.feeds.SetCover(c.Request.Context(), c.Param("id"), userID, req.Key)
	if err != nil {
		util.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":      feed,
		"cover_url": h.uploader.PublicURL(feed.CoverKey),
	})
}

// SetMyAvatar records an uploaded object key as the caller's avatar
func (h *Handlers) SetMyAvatar(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req setKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	user.AvatarKey = req.Key
	if err := h.db.Save(user).Error; err != nil {
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"avatar_url": h.uploader.PublicURL(user.AvatarKey),
	})
}
