package comments

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/feavel/feeds/backend/internal/errors"
	"github.com/feavel/feeds/backend/internal/likes"
	"github.com/feavel/feeds/backend/internal/logger"
	"github.com/feavel/feeds/backend/internal/metrics"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/feavel/feeds/backend/internal/permissions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	maxCommentLength = 10000
)

// Service manages the comment tree of a feed
type Service struct {
	db       *gorm.DB
	resolver *permissions.Resolver
	likes    *likes.Service
}

// NewService creates a comment service
func NewService(db *gorm.DB, resolver *permissions.Resolver, likeSvc *likes.Service) *Service {
	return &Service{db: db, resolver: resolver, likes: likeSvc}
}

// Add inserts a comment on the feed, optionally as a reply. The
// caller needs read access; replies require the parent to exist on
// the same feed.
func (s *Service) Add(ctx context.Context, feedID, userID, content string, parentID *string) (*models.FeedComment, error) {
	if userID == "" {
		return nil, errors.Unauthorized("authentication required")
	}
	if content == "" {
		return nil, errors.ValidationError("content", "comment content is required")
	}
	if len(content) > maxCommentLength {
		return nil, errors.ValidationError("content", "comment is too long")
	}

	if _, err := s.resolver.RequirePermission(ctx, feedID, userID, models.RoleRead, "comment on this feed"); err != nil {
		return nil, err
	}

	if parentID != nil {
		var parent models.FeedComment
		err := s.db.WithContext(ctx).First(&parent, "id = ?", *parentID).Error
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.NotFound("parent comment")
			}
			return nil, err
		}
		if parent.FeedID != feedID {
			return nil, errors.BadRequest("parent comment belongs to a different feed")
		}
	}

	comment := &models.FeedComment{
		FeedID:   feedID,
		UserID:   userID,
		ParentID: parentID,
		Content:  content,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}

	metrics.Get().CommentsTotal.Inc()
	return comment, nil
}

// Update patches a comment's content. Author only.
func (s *Service) Update(ctx context.Context, commentID, userID, content string) (*models.FeedComment, error) {
	if content == "" {
		return nil, errors.ValidationError("content", "comment content is required")
	}
	if len(content) > maxCommentLength {
		return nil, errors.ValidationError("content", "comment is too long")
	}

	var comment models.FeedComment
	err := s.db.WithContext(ctx).First(&comment, "id = ?", commentID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("comment")
		}
		return nil, err
	}
	if comment.UserID != userID {
		return nil, errors.PermissionDenied("edit this comment")
	}

	comment.Content = content
	if err := s.db.WithContext(ctx).Save(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// Delete removes a comment and its entire reply subtree, along with
// every like on the deleted comments. Allowed for the author or a
// feed admin.
func (s *Service) Delete(ctx context.Context, commentID, userID string) error {
	var comment models.FeedComment
	err := s.db.WithContext(ctx).First(&comment, "id = ?", commentID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("comment")
		}
		return err
	}

	if comment.UserID != userID {
		_, isAdmin, err := s.resolver.HasPermissionByID(ctx, comment.FeedID, userID, models.RoleAdmin)
		if err != nil {
			return err
		}
		if !isAdmin {
			return errors.PermissionDenied("delete this comment")
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := collectSubtree(tx, commentID)
		if err != nil {
			return err
		}
		if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.FeedComment{}).Error; err != nil {
			return err
		}
		logger.Log.Info("comment subtree deleted",
			zap.String("comment_id", commentID),
			zap.Int("deleted", len(ids)),
		)
		return nil
	})
}

// collectSubtree walks the reply tree breadth-first and returns the
// root id plus every descendant id
func collectSubtree(tx *gorm.DB, rootID string) ([]string, error) {
	all := []string{rootID}
	frontier := []string{rootID}

	for len(frontier) > 0 {
		var children []string
		if err := tx.Model(&models.FeedComment{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		all = append(all, children...)
		frontier = children
	}
	return all, nil
}

// View is a comment enriched with its author profile and engagement
// counts
type View struct {
	models.FeedComment
	Author     models.PublicProfile `json:"author"`
	ReplyCount int64                `json:"reply_count"`
	LikeCount  int64                `json:"like_count"`
	IsLiked    bool                 `json:"is_liked"`
}

// Page is one page of comment views with a continuation cursor
type Page struct {
	Comments   []View  `json:"comments"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

// Get loads a single comment with its enrichments. The caller needs
// read access to the comment's feed.
func (s *Service) Get(ctx context.Context, commentID, callerID string) (*View, error) {
	var comment models.FeedComment
	err := s.db.WithContext(ctx).Preload("User").First(&comment, "id = ?", commentID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("comment")
		}
		return nil, err
	}
	if _, err := s.resolver.RequirePermission(ctx, comment.FeedID, callerID, models.RoleRead, "view this feed"); err != nil {
		return nil, err
	}

	view := View{
		FeedComment: comment,
		Author:      comment.User.Public(),
	}
	if err := s.db.WithContext(ctx).Model(&models.FeedComment{}).
		Where("parent_id = ?", comment.ID).
		Count(&view.ReplyCount).Error; err != nil {
		return nil, err
	}
	likeData, err := s.likes.CommentLikeData(ctx, comment.ID, callerID)
	if err != nil {
		return nil, err
	}
	view.LikeCount = likeData.LikeCount
	view.IsLiked = likeData.IsLiked
	return &view, nil
}

// List returns top-level comments of a feed, newest first. The same
// read gate as Add applies; callerID may be empty for public feeds.
func (s *Service) List(ctx context.Context, feedID, callerID string, limit int, cursor string) (*Page, error) {
	if _, err := s.resolver.RequirePermission(ctx, feedID, callerID, models.RoleRead, "view this feed"); err != nil {
		return nil, err
	}
	return s.list(ctx, callerID, s.db.WithContext(ctx).Where("feed_id = ? AND parent_id IS NULL", feedID), limit, cursor)
}

// Replies returns the direct children of a comment, newest first
func (s *Service) Replies(ctx context.Context, commentID, callerID string, limit int, cursor string) (*Page, error) {
	var parent models.FeedComment
	err := s.db.WithContext(ctx).First(&parent, "id = ?", commentID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("comment")
		}
		return nil, err
	}
	if _, err := s.resolver.RequirePermission(ctx, parent.FeedID, callerID, models.RoleRead, "view this feed"); err != nil {
		return nil, err
	}
	return s.list(ctx, callerID, s.db.WithContext(ctx).Where("parent_id = ?", commentID), limit, cursor)
}

func (s *Service) list(ctx context.Context, callerID string, q *gorm.DB, limit int, cursor string) (*Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if cursor != "" {
		ms, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, errors.BadRequest("invalid cursor")
		}
		q = q.Where("created_at < ?", time.UnixMilli(ms).UTC())
	}

	var rows []models.FeedComment
	if err := q.Preload("User").Order("created_at DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, err
	}

	page := &Page{}
	if len(rows) > limit {
		rows = rows[:limit]
		c := strconv.FormatInt(rows[len(rows)-1].CreatedAt.UnixMilli(), 10)
		page.NextCursor = &c
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		view := View{
			FeedComment: row,
			Author:      row.User.Public(),
		}

		if err := s.db.WithContext(ctx).Model(&models.FeedComment{}).
			Where("parent_id = ?", row.ID).
			Count(&view.ReplyCount).Error; err != nil {
			return nil, err
		}

		likeData, err := s.likes.CommentLikeData(ctx, row.ID, callerID)
		if err != nil {
			return nil, err
		}
		view.LikeCount = likeData.LikeCount
		view.IsLiked = likeData.IsLiked

		views = append(views, view)
	}
	page.Comments = views
	return page, nil
}
