package likes

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/feavel/feeds/backend/internal/cache"
	"github.com/feavel/feeds/backend/internal/errors"
	"github.com/feavel/feeds/backend/internal/metrics"
	"github.com/feavel/feeds/backend/internal/middleware"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/feavel/feeds/backend/internal/permissions"
	"gorm.io/gorm"
)

const countTTL = 5 * time.Minute

// Service is the like ledger for feeds and comments. Add and remove
// are idempotent; counts are cached in Redis with a short TTL and the
// database remains the source of truth.
type Service struct {
	db       *gorm.DB
	resolver *permissions.Resolver
	redis    *cache.RedisClient
}

// NewService creates a like service. redis may be nil, in which case
// every count goes to the database.
func NewService(db *gorm.DB, resolver *permissions.Resolver, redis *cache.RedisClient) *Service {
	return &Service{db: db, resolver: resolver, redis: redis}
}

// LikeData is the engagement summary for one subject
type LikeData struct {
	IsLiked   bool  `json:"is_liked"`
	LikeCount int64 `json:"like_count"`
}

func feedCountKey(feedID string) string {
	return fmt.Sprintf("likes:feed:%s", feedID)
}

func commentCountKey(commentID string) string {
	return fmt.Sprintf("likes:comment:%s", commentID)
}

// LikeFeed records a like. Liking an already-liked feed returns the
// existing row unchanged. Requires read access to the feed.
func (s *Service) LikeFeed(ctx context.Context, feedID, userID string) (*models.FeedLike, error) {
	if userID == "" {
		return nil, errors.Unauthorized("authentication required")
	}
	if _, err := s.resolver.RequirePermission(ctx, feedID, userID, models.RoleRead, "like this feed"); err != nil {
		return nil, err
	}

	var existing models.FeedLike
	err := s.db.WithContext(ctx).
		Where("feed_id = ? AND user_id = ?", feedID, userID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	like := &models.FeedLike{FeedID: feedID, UserID: userID}
	if err := s.db.WithContext(ctx).Create(like).Error; err != nil {
		return nil, err
	}

	s.redis.Del(ctx, feedCountKey(feedID))
	metrics.Get().LikesTotal.WithLabelValues("feed", "add").Inc()
	return like, nil
}

// UnlikeFeed removes a like if present. Returns whether a like
// existed; unliking something never liked is not an error.
func (s *Service) UnlikeFeed(ctx context.Context, feedID, userID string) (bool, error) {
	if userID == "" {
		return false, errors.Unauthorized("authentication required")
	}

	res := s.db.WithContext(ctx).
		Where("feed_id = ? AND user_id = ?", feedID, userID).
		Delete(&models.FeedLike{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	s.redis.Del(ctx, feedCountKey(feedID))
	metrics.Get().LikesTotal.WithLabelValues("feed", "remove").Inc()
	return true, nil
}

// FeedLikeData returns the like count and whether userID has liked
// the feed. The count needs no authentication; IsLiked is false for
// anonymous callers.
func (s *Service) FeedLikeData(ctx context.Context, feedID, userID string) (*LikeData, error) {
	count, err := s.cachedCount(ctx, feedCountKey(feedID), func() (int64, error) {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.FeedLike{}).
			Where("feed_id = ?", feedID).Count(&n).Error
		return n, err
	})
	if err != nil {
		return nil, err
	}

	data := &LikeData{LikeCount: count}
	if userID != "" {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.FeedLike{}).
			Where("feed_id = ? AND user_id = ?", feedID, userID).
			Count(&n).Error; err != nil {
			return nil, err
		}
		data.IsLiked = n > 0
	}
	return data, nil
}

// UserFeedLikes returns the ids of all feeds the user has liked
func (s *Service) UserFeedLikes(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, errors.Unauthorized("authentication required")
	}
	var feedIDs []string
	err := s.db.WithContext(ctx).Model(&models.FeedLike{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("feed_id", &feedIDs).Error
	return feedIDs, err
}

// LikeComment records a like on a comment, idempotently. Requires
// read access to the comment's feed.
func (s *Service) LikeComment(ctx context.Context, commentID, userID string) (*models.CommentLike, error) {
	if userID == "" {
		return nil, errors.Unauthorized("authentication required")
	}

	var comment models.FeedComment
	err := s.db.WithContext(ctx).First(&comment, "id = ?", commentID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("comment")
		}
		return nil, err
	}
	if _, err := s.resolver.RequirePermission(ctx, comment.FeedID, userID, models.RoleRead, "like this comment"); err != nil {
		return nil, err
	}

	var existing models.CommentLike
	err = s.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	like := &models.CommentLike{CommentID: commentID, UserID: userID}
	if err := s.db.WithContext(ctx).Create(like).Error; err != nil {
		return nil, err
	}

	s.redis.Del(ctx, commentCountKey(commentID))
	metrics.Get().LikesTotal.WithLabelValues("comment", "add").Inc()
	return like, nil
}

// UnlikeComment removes a comment like if present and reports whether
// one existed
func (s *Service) UnlikeComment(ctx context.Context, commentID, userID string) (bool, error) {
	if userID == "" {
		return false, errors.Unauthorized("authentication required")
	}

	res := s.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Delete(&models.CommentLike{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	s.redis.Del(ctx, commentCountKey(commentID))
	metrics.Get().LikesTotal.WithLabelValues("comment", "remove").Inc()
	return true, nil
}

// CommentLikeData returns the like count and caller's like flag for
// a comment
func (s *Service) CommentLikeData(ctx context.Context, commentID, userID string) (*LikeData, error) {
	count, err := s.cachedCount(ctx, commentCountKey(commentID), func() (int64, error) {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.CommentLike{}).
			Where("comment_id = ?", commentID).Count(&n).Error
		return n, err
	})
	if err != nil {
		return nil, err
	}

	data := &LikeData{LikeCount: count}
	if userID != "" {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.CommentLike{}).
			Where("comment_id = ? AND user_id = ?", commentID, userID).
			Count(&n).Error; err != nil {
			return nil, err
		}
		data.IsLiked = n > 0
	}
	return data, nil
}

// cachedCount reads a count through Redis, falling back to the
// database loader on a miss and repopulating the cache
func (s *Service) cachedCount(ctx context.Context, key string, load func() (int64, error)) (int64, error) {
	// A broken cache must not take down reads, so any cache error
	// falls through to the database.
	if n, err := s.redis.GetInt(ctx, key); err == nil {
		middleware.RecordCacheHit("like_counts")
		return n, nil
	}
	middleware.RecordCacheMiss("like_counts")

	n, err := load()
	if err != nil {
		return 0, err
	}
	s.redis.SetEx(ctx, key, n, countTTL)
	return n, nil
}
