package feeds

import (
	"context"
	stderrors "errors"
	"sort"
	"strconv"
	"time"

	"github.com/feavel/feeds/backend/internal/errors"
	"github.com/feavel/feeds/backend/internal/logger"
	"github.com/feavel/feeds/backend/internal/metrics"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/feavel/feeds/backend/internal/permissions"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service implements feed CRUD and the unified listing query
type Service struct {
	db       *gorm.DB
	resolver *permissions.Resolver
}

// NewService creates a feed service
func NewService(db *gorm.DB, resolver *permissions.Resolver) *Service {
	return &Service{db: db, resolver: resolver}
}

// CreateInput is the payload for creating a feed
type CreateInput struct {
	Title    string         `json:"title" binding:"required"`
	Type     string         `json:"type"`
	Language string         `json:"language"`
	Content  []any          `json:"content"`
	Metadata map[string]any `json:"metadata"`
	IsPublic bool           `json:"is_public"`
}

// Create inserts a new feed owned by userID, deriving a unique slug
// from the title
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Feed, error) {
	if in.Title == "" {
		return nil, errors.ValidationError("title", "title is required")
	}

	slug, err := uniqueSlug(ctx, s.db, Slugify(in.Title), "")
	if err != nil {
		return nil, err
	}

	feed := &models.Feed{
		UserID:   userID,
		Title:    in.Title,
		Slug:     slug,
		Type:     in.Type,
		Language: in.Language,
		Content:  in.Content,
		Metadata: in.Metadata,
		IsPublic: in.IsPublic,
	}
	if err := s.db.WithContext(ctx).Create(feed).Error; err != nil {
		return nil, err
	}

	metrics.Get().FeedsCreatedTotal.Inc()
	logger.Log.Info("feed created",
		logger.WithFeedID(feed.ID),
		logger.WithUserID(userID),
		zap.String("slug", feed.Slug),
	)
	return feed, nil
}

// UpdateInput carries the mutable feed fields. Nil pointers mean
// "leave unchanged".
type UpdateInput struct {
	Title    *string         `json:"title"`
	Type     *string         `json:"type"`
	Language *string         `json:"language"`
	Content  *[]any          `json:"content"`
	Metadata *map[string]any `json:"metadata"`
	IsPublic *bool           `json:"is_public"`
}

// Update patches a feed. Requires edit permission. A title change
// regenerates the slug, keeping it unique.
func (s *Service) Update(ctx context.Context, feedID, userID string, in UpdateInput) (*models.Feed, error) {
	feed, err := s.resolver.RequirePermission(ctx, feedID, userID, models.RoleEdit, "edit this feed")
	if err != nil {
		return nil, err
	}

	if in.Title != nil && *in.Title != feed.Title {
		if *in.Title == "" {
			return nil, errors.ValidationError("title", "title cannot be empty")
		}
		slug, err := uniqueSlug(ctx, s.db, Slugify(*in.Title), feed.ID)
		if err != nil {
			return nil, err
		}
		feed.Title = *in.Title
		feed.Slug = slug
	}
	if in.Type != nil {
		feed.Type = *in.Type
	}
	if in.Language != nil {
		feed.Language = *in.Language
	}
	if in.Content != nil {
		feed.Content = *in.Content
	}
	if in.Metadata != nil {
		feed.Metadata = *in.Metadata
	}
	if in.IsPublic != nil {
		feed.IsPublic = *in.IsPublic
	}

	if err := s.db.WithContext(ctx).Save(feed).Error; err != nil {
		return nil, err
	}
	return feed, nil
}

// Delete removes a feed and everything hanging off it: collaborator
// rows, comments (and their likes), and feed likes. Creator only.
func (s *Service) Delete(ctx context.Context, feedID, userID string) error {
	var feed models.Feed
	if err := s.db.WithContext(ctx).First(&feed, "id = ?", feedID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("feed")
		}
		return err
	}
	if !s.resolver.IsCreator(&feed, userID) {
		return errors.PermissionDenied("delete this feed")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var commentIDs []string
		if err := tx.Model(&models.FeedComment{}).
			Where("feed_id = ?", feedID).
			Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("feed_id = ?", feedID).Delete(&models.FeedComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("feed_id = ?", feedID).Delete(&models.FeedLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("feed_id = ?", feedID).Delete(&models.FeedCollaborator{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Feed{}, "id = ?", feedID).Error
	})
}

// SetCover records an uploaded object key as the feed's cover image.
// Requires edit permission.
func (s *Service) SetCover(ctx context.Context, feedID, userID, key string) (*models.Feed, error) {
	if key == "" {
		return nil, errors.ValidationError("key", "object key is required")
	}
	feed, err := s.resolver.RequirePermission(ctx, feedID, userID, models.RoleEdit, "edit this feed")
	if err != nil {
		return nil, err
	}

	feed.CoverKey = key
	if err := s.db.WithContext(ctx).Save(feed).Error; err != nil {
		return nil, err
	}
	return feed, nil
}

// GetByID loads a feed and enforces read access for the caller
func (s *Service) GetByID(ctx context.Context, feedID, userID string) (*models.Feed, error) {
	return s.resolver.RequirePermission(ctx, feedID, userID, models.RoleRead, "view this feed")
}

// QueryInput selects one of the four listing modes. Slug wins over
// FeedIDs, which wins over user scoping, which falls back to the
// public listing.
type QueryInput struct {
	Slug       string
	FeedIDs    []string
	Type       string
	Language   string
	PublicOnly bool
	UserID     string
	Limit      int
	Cursor     string
	WithCount  bool
}

// QueryResult is one page of feeds plus the continuation cursor
type QueryResult struct {
	Feeds      []models.Feed `json:"feeds"`
	NextCursor *string       `json:"next_cursor,omitempty"`
	TotalCount *int64        `json:"total_count,omitempty"`
}

// Query answers every feed listing request through one entry point.
// callerID is empty for anonymous requests.
func (s *Service) Query(ctx context.Context, callerID string, in QueryInput) (*QueryResult, error) {
	start := time.Now()
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var (
		result *QueryResult
		mode   string
		err    error
	)

	switch {
	case in.Slug != "":
		mode = "slug"
		result, err = s.queryBySlug(ctx, callerID, in)
	case len(in.FeedIDs) > 0:
		mode = "ids"
		result, err = s.queryByIDs(ctx, callerID, in)
	case in.UserID != "" || (callerID != "" && !in.PublicOnly):
		mode = "personal"
		result, err = s.queryPersonal(ctx, callerID, in, limit)
	default:
		mode = "public"
		result, err = s.queryPublic(ctx, in, limit)
	}

	metrics.Get().FeedQueryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	return result, err
}

// queryBySlug resolves a single feed by its unique slug, subject to
// the usual visibility rules
func (s *Service) queryBySlug(ctx context.Context, callerID string, in QueryInput) (*QueryResult, error) {
	var feed models.Feed
	err := s.db.WithContext(ctx).First(&feed, "slug = ?", in.Slug).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("feed")
		}
		return nil, err
	}

	ok, err := s.resolver.HasPermission(ctx, &feed, callerID, models.RoleRead)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.PermissionDenied("view this feed")
	}

	result := &QueryResult{Feeds: []models.Feed{feed}}
	if in.WithCount {
		total := int64(len(result.Feeds))
		result.TotalCount = &total
	}
	return result, nil
}

// queryByIDs resolves an explicit list of feed ids, filtering each
// through the type/language predicates and the read permission.
// Input order is preserved.
func (s *Service) queryByIDs(ctx context.Context, callerID string, in QueryInput) (*QueryResult, error) {
	var loaded []models.Feed
	if err := s.db.WithContext(ctx).Where("id IN ?", lo.Uniq(in.FeedIDs)).Find(&loaded).Error; err != nil {
		return nil, err
	}

	byID := lo.KeyBy(loaded, func(f models.Feed) string { return f.ID })

	out := make([]models.Feed, 0, len(in.FeedIDs))
	for _, id := range lo.Uniq(in.FeedIDs) {
		feed, ok := byID[id]
		if !ok {
			continue
		}
		if !matchesFilters(feed, in.Type, in.Language) {
			continue
		}
		allowed, err := s.resolver.HasPermission(ctx, &feed, callerID, models.RoleRead)
		if err != nil {
			return nil, err
		}
		if allowed {
			out = append(out, feed)
		}
	}

	result := &QueryResult{Feeds: out}
	if in.WithCount {
		total := int64(len(out))
		result.TotalCount = &total
	}
	return result, nil
}

// queryPersonal unions feeds the caller created with feeds shared
// with them, dedupes, sorts newest first in memory, then applies the
// cursor and limit.
func (s *Service) queryPersonal(ctx context.Context, callerID string, in QueryInput, limit int) (*QueryResult, error) {
	if callerID == "" {
		return nil, errors.Unauthorized("authentication required")
	}
	// Cross-user listing is not supported; you can only scope to
	// yourself.
	if in.UserID != "" && in.UserID != callerID {
		return nil, errors.PermissionDenied("list another user's feeds")
	}

	var owned []models.Feed
	q := s.db.WithContext(ctx).Where("user_id = ?", callerID)
	q = applyFilters(q, in.Type, in.Language)
	if err := q.Find(&owned).Error; err != nil {
		return nil, err
	}

	var sharedIDs []string
	if err := s.db.WithContext(ctx).Model(&models.FeedCollaborator{}).
		Where("user_id = ?", callerID).
		Pluck("feed_id", &sharedIDs).Error; err != nil {
		return nil, err
	}

	var shared []models.Feed
	if len(sharedIDs) > 0 {
		q := s.db.WithContext(ctx).Where("id IN ?", sharedIDs)
		q = applyFilters(q, in.Type, in.Language)
		if err := q.Find(&shared).Error; err != nil {
			return nil, err
		}
	}

	union := lo.UniqBy(append(owned, shared...), func(f models.Feed) string { return f.ID })
	sort.Slice(union, func(i, j int) bool {
		return union[i].CreatedAt.After(union[j].CreatedAt)
	})

	total := int64(len(union))

	if in.Cursor != "" {
		before, err := parseCursor(in.Cursor)
		if err != nil {
			return nil, err
		}
		union = lo.Filter(union, func(f models.Feed, _ int) bool {
			return f.CreatedAt.Before(before)
		})
	}

	result := &QueryResult{}
	if in.WithCount {
		result.TotalCount = &total
	}
	if len(union) > limit {
		page := union[:limit]
		result.Feeds = page
		result.NextCursor = cursorFor(page[len(page)-1])
	} else {
		result.Feeds = union
	}
	return result, nil
}

// queryPublic walks the public feeds index newest first. Both filters
// ride the WHERE clause so the limit+1 look-ahead always counts
// matching rows.
func (s *Service) queryPublic(ctx context.Context, in QueryInput, limit int) (*QueryResult, error) {
	q := s.db.WithContext(ctx).Where("is_public = ?", true)
	q = applyFilters(q, in.Type, in.Language)
	if in.Cursor != "" {
		before, err := parseCursor(in.Cursor)
		if err != nil {
			return nil, err
		}
		q = q.Where("created_at < ?", before)
	}

	var rows []models.Feed
	if err := q.Order("created_at DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, err
	}

	result := &QueryResult{}
	if len(rows) > limit {
		page := rows[:limit]
		result.Feeds = page
		result.NextCursor = cursorFor(page[len(page)-1])
	} else {
		result.Feeds = rows
	}

	if in.WithCount {
		countQ := s.db.WithContext(ctx).Model(&models.Feed{}).Where("is_public = ?", true)
		countQ = applyFilters(countQ, in.Type, in.Language)
		var total int64
		if err := countQ.Count(&total).Error; err != nil {
			return nil, err
		}
		result.TotalCount = &total
	}

	return result, nil
}

func applyFilters(q *gorm.DB, feedType, language string) *gorm.DB {
	if feedType != "" {
		q = q.Where("type = ?", feedType)
	}
	if language != "" {
		q = q.Where("language = ?", language)
	}
	return q
}

func matchesFilters(f models.Feed, feedType, language string) bool {
	if feedType != "" && f.Type != feedType {
		return false
	}
	if language != "" && f.Language != language {
		return false
	}
	return true
}

// The cursor is the creation timestamp of the last item of the
// previous page, in unix milliseconds. The next page is everything
// strictly older. Identical timestamps have no tie-break, and rows
// whose sub-millisecond part differs only below the cursor's
// granularity are skipped by the strict comparison.
func cursorFor(f models.Feed) *string {
	s := strconv.FormatInt(f.CreatedAt.UnixMilli(), 10)
	return &s
}

func parseCursor(cursor string) (time.Time, error) {
	ms, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil {
		return time.Time{}, errors.BadRequest("invalid cursor")
	}
	return time.UnixMilli(ms).UTC(), nil
}
