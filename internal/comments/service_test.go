package comments

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/feavel/feeds/backend/internal/errors"
	"github.com/feavel/feeds/backend/internal/likes"
	"github.com/feavel/feeds/backend/internal/logger"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/feavel/feeds/backend/internal/permissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	require.NoError(t, logger.Initialize("error", filepath.Join(t.TempDir(), "test.log")))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Feed{},
		&models.FeedCollaborator{},
		&models.FeedComment{},
		&models.FeedLike{},
		&models.CommentLike{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := setupTestDB(t)
	resolver := permissions.NewResolver(db)
	return NewService(db, resolver, likes.NewService(db, resolver, nil)), db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		DisplayName:  username,
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestFeed(t *testing.T, db *gorm.DB, owner *models.User, public bool) *models.Feed {
	feed := &models.Feed{
		UserID:   owner.ID,
		Title:    "Discussed Feed",
		Slug:     "discussed-feed-" + owner.Username,
		IsPublic: public,
	}
	require.NoError(t, db.Create(feed).Error)
	return feed
}

func TestAddTopLevelAndReply(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	commenter := createTestUser(t, db, "commenter")
	feed := createTestFeed(t, db, owner, true)

	top, err := svc.Add(ctx, feed.ID, commenter.ID, "first!", nil)
	require.NoError(t, err)
	assert.Nil(t, top.ParentID)

	reply, err := svc.Add(ctx, feed.ID, owner.ID, "welcome", &top.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)
}

func TestAddValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	feed := createTestFeed(t, db, owner, true)

	_, err := svc.Add(ctx, feed.ID, owner.ID, "", nil)
	require.Error(t, err)

	long := make([]byte, 10001)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Add(ctx, feed.ID, owner.ID, string(long), nil)
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrValidation, apiErr.Code)

	_, err = svc.Add(ctx, feed.ID, "", "anonymous", nil)
	require.Error(t, err)
}

func TestAddRejectsCrossFeedParent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	feedA := createTestFeed(t, db, owner, true)
	feedB := &models.Feed{UserID: owner.ID, Title: "Other", Slug: "other", IsPublic: true}
	require.NoError(t, db.Create(feedB).Error)

	parent, err := svc.Add(ctx, feedA.ID, owner.ID, "on feed A", nil)
	require.NoError(t, err)

	_, err = svc.Add(ctx, feedB.ID, owner.ID, "wrong place", &parent.ID)
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, apiErr.Code)

	missing := "no-such-parent"
	_, err = svc.Add(ctx, feedA.ID, owner.ID, "orphan", &missing)
	require.Error(t, err)
	apiErr, ok = errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrNotFound, apiErr.Code)
}

func TestAddRequiresReadAccess(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	stranger := createTestUser(t, db, "stranger")
	private := createTestFeed(t, db, owner, false)

	_, err := svc.Add(ctx, private.ID, stranger.ID, "let me in", nil)
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrForbidden, apiErr.Code)
}

func TestUpdateIsAuthorOnly(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	commenter := createTestUser(t, db, "commenter")
	feed := createTestFeed(t, db, owner, true)

	comment, err := svc.Add(ctx, feed.ID, commenter.ID, "original", nil)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, comment.ID, commenter.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	// Even the feed owner cannot edit someone else's comment
	_, err = svc.Update(ctx, comment.ID, owner.ID, "hijacked")
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrForbidden, apiErr.Code)
}

func TestDeleteRemovesWholeSubtree(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	commenter := createTestUser(t, db, "commenter")
	feed := createTestFeed(t, db, owner, true)

	// Three levels: root -> child -> grandchild, plus an unrelated
	// sibling that must survive.
	root, err := svc.Add(ctx, feed.ID, commenter.ID, "root", nil)
	require.NoError(t, err)
	child, err := svc.Add(ctx, feed.ID, owner.ID, "child", &root.ID)
	require.NoError(t, err)
	grandchild, err := svc.Add(ctx, feed.ID, commenter.ID, "grandchild", &child.ID)
	require.NoError(t, err)
	sibling, err := svc.Add(ctx, feed.ID, owner.ID, "sibling", nil)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.CommentLike{CommentID: grandchild.ID, UserID: owner.ID}).Error)
	require.NoError(t, db.Create(&models.CommentLike{CommentID: sibling.ID, UserID: commenter.ID}).Error)

	require.NoError(t, svc.Delete(ctx, root.ID, commenter.ID))

	var remaining int64
	require.NoError(t, db.Model(&models.FeedComment{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)

	var survivor models.FeedComment
	require.NoError(t, db.First(&survivor).Error)
	assert.Equal(t, sibling.ID, survivor.ID)

	// Likes on deleted comments are gone; the sibling's like survives
	var likeCount int64
	require.NoError(t, db.Model(&models.CommentLike{}).Count(&likeCount).Error)
	assert.EqualValues(t, 1, likeCount)
}

func TestDeleteAllowsFeedAdmin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	commenter := createTestUser(t, db, "commenter")
	moderator := createTestUser(t, db, "moderator")
	feed := createTestFeed(t, db, owner, true)

	require.NoError(t, db.Create(&models.FeedCollaborator{
		FeedID: feed.ID,
		UserID: moderator.ID,
		Role:   models.RoleAdmin,
	}).Error)

	comment, err := svc.Add(ctx, feed.ID, commenter.ID, "spam", nil)
	require.NoError(t, err)

	// A random user cannot delete it
	err = svc.Delete(ctx, comment.ID, "someone-else")
	require.Error(t, err)

	require.NoError(t, svc.Delete(ctx, comment.ID, moderator.ID))
}

func TestListEnrichesAndPaginates(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	commenter := createTestUser(t, db, "commenter")
	feed := createTestFeed(t, db, owner, true)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var roots []*models.FeedComment
	for i := 0; i < 5; i++ {
		c := &models.FeedComment{
			FeedID:    feed.ID,
			UserID:    commenter.ID,
			Content:   "comment " + strconv.Itoa(i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.Create(c).Error)
		roots = append(roots, c)
	}

	// Two replies and one like on the newest root
	newest := roots[4]
	for _, reply := range []string{"re 1", "re 2"} {
		_, err := svc.Add(ctx, feed.ID, owner.ID, reply, &newest.ID)
		require.NoError(t, err)
	}
	require.NoError(t, db.Create(&models.CommentLike{CommentID: newest.ID, UserID: owner.ID}).Error)

	page, err := svc.List(ctx, feed.ID, owner.ID, 3, "")
	require.NoError(t, err)
	require.Len(t, page.Comments, 3)
	require.NotNil(t, page.NextCursor)

	first := page.Comments[0]
	assert.Equal(t, newest.ID, first.ID)
	assert.Equal(t, commenter.Username, first.Author.Username)
	assert.EqualValues(t, 2, first.ReplyCount)
	assert.EqualValues(t, 1, first.LikeCount)
	assert.True(t, first.IsLiked)

	rest, err := svc.List(ctx, feed.ID, owner.ID, 3, *page.NextCursor)
	require.NoError(t, err)
	require.Len(t, rest.Comments, 2)
	assert.Nil(t, rest.NextCursor)
}

func TestGetComment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	commenter := createTestUser(t, db, "commenter")
	feed := createTestFeed(t, db, owner, true)

	comment, err := svc.Add(ctx, feed.ID, commenter.ID, "hello", nil)
	require.NoError(t, err)
	_, err = svc.Add(ctx, feed.ID, owner.ID, "reply", &comment.ID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.CommentLike{CommentID: comment.ID, UserID: owner.ID}).Error)

	view, err := svc.Get(ctx, comment.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", view.Content)
	assert.Equal(t, commenter.Username, view.Author.Username)
	assert.EqualValues(t, 1, view.ReplyCount)
	assert.EqualValues(t, 1, view.LikeCount)
	assert.True(t, view.IsLiked)

	// Anonymous access works on a public feed
	anon, err := svc.Get(ctx, comment.ID, "")
	require.NoError(t, err)
	assert.False(t, anon.IsLiked)

	_, err = svc.Get(ctx, "no-such-comment", owner.ID)
	require.Error(t, err)

	// Private feed gates the lookup
	private := &models.Feed{UserID: owner.ID, Title: "Private", Slug: "private"}
	require.NoError(t, db.Create(private).Error)
	hidden, err := svc.Add(ctx, private.ID, owner.ID, "secret", nil)
	require.NoError(t, err)
	_, err = svc.Get(ctx, hidden.ID, commenter.ID)
	require.Error(t, err)
}

func TestRepliesListsDirectChildrenOnly(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	feed := createTestFeed(t, db, owner, true)

	root, err := svc.Add(ctx, feed.ID, owner.ID, "root", nil)
	require.NoError(t, err)
	child, err := svc.Add(ctx, feed.ID, owner.ID, "child", &root.ID)
	require.NoError(t, err)
	_, err = svc.Add(ctx, feed.ID, owner.ID, "grandchild", &child.ID)
	require.NoError(t, err)

	page, err := svc.Replies(ctx, root.ID, owner.ID, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Comments, 1)
	assert.Equal(t, child.ID, page.Comments[0].ID)

	_, err = svc.Replies(ctx, "no-such-comment", owner.ID, 10, "")
	require.Error(t, err)
}
