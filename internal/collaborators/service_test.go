package collaborators

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/feavel/feeds/backend/internal/errors"
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
	return NewService(db, permissions.NewResolver(db)), db
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

func createTestFeed(t *testing.T, db *gorm.DB, owner *models.User) *models.Feed {
	feed := &models.Feed{
		UserID: owner.ID,
		Title:  "Team Feed",
		Slug:   "team-feed-" + owner.Username,
	}
	require.NoError(t, db.Create(feed).Error)
	return feed
}

func TestAddAndList(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	editor := createTestUser(t, db, "editor")
	feed := createTestFeed(t, db, owner)

	collab, err := svc.Add(ctx, feed.ID, owner.ID, editor.ID, models.RoleEdit)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEdit, collab.Role)
	assert.Equal(t, owner.ID, collab.AddedBy)

	entries, err := svc.List(ctx, feed.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, editor.ID, entries[0].UserID)
	assert.Equal(t, "editor", entries[0].User.Username)
}

func TestListIsRosterOnly(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	reader := createTestUser(t, db, "reader")
	stranger := createTestUser(t, db, "stranger")

	// Public visibility must not leak who collaborates on the feed
	feed := &models.Feed{UserID: owner.ID, Title: "Public Feed", Slug: "public-feed", IsPublic: true}
	require.NoError(t, db.Create(feed).Error)
	_, err := svc.Add(ctx, feed.ID, owner.ID, reader.ID, models.RoleRead)
	require.NoError(t, err)

	_, err = svc.List(ctx, feed.ID, "")
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrForbidden, apiErr.Code)

	_, err = svc.List(ctx, feed.ID, stranger.ID)
	require.Error(t, err)

	entries, err := svc.List(ctx, feed.ID, reader.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = svc.List(ctx, feed.ID, owner.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.List(ctx, "no-such-feed", owner.ID)
	require.Error(t, err)
	apiErr, ok = errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrNotFound, apiErr.Code)
}

func TestAddRejectsDuplicatesAndCreator(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	editor := createTestUser(t, db, "editor")
	feed := createTestFeed(t, db, owner)

	_, err := svc.Add(ctx, feed.ID, owner.ID, editor.ID, models.RoleEdit)
	require.NoError(t, err)

	_, err = svc.Add(ctx, feed.ID, owner.ID, editor.ID, models.RoleRead)
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrAlreadyExists, apiErr.Code)

	_, err = svc.Add(ctx, feed.ID, owner.ID, owner.ID, models.RoleRead)
	require.Error(t, err)
	apiErr, ok = errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, apiErr.Code)

	_, err = svc.Add(ctx, feed.ID, owner.ID, "no-such-user", models.RoleRead)
	require.Error(t, err)
	apiErr, ok = errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrNotFound, apiErr.Code)

	_, err = svc.Add(ctx, feed.ID, owner.ID, editor.ID, models.CollaboratorRole("owner"))
	require.Error(t, err)
}

func TestAddRequiresAdmin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	editor := createTestUser(t, db, "editor")
	target := createTestUser(t, db, "target")
	feed := createTestFeed(t, db, owner)

	_, err := svc.Add(ctx, feed.ID, owner.ID, editor.ID, models.RoleEdit)
	require.NoError(t, err)

	// An edit collaborator cannot manage the roster
	_, err = svc.Add(ctx, feed.ID, editor.ID, target.ID, models.RoleRead)
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrForbidden, apiErr.Code)
}

func TestUpdateRole(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	editor := createTestUser(t, db, "editor")
	feed := createTestFeed(t, db, owner)

	_, err := svc.Add(ctx, feed.ID, owner.ID, editor.ID, models.RoleRead)
	require.NoError(t, err)

	updated, err := svc.UpdateRole(ctx, feed.ID, owner.ID, editor.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)

	_, err = svc.UpdateRole(ctx, feed.ID, owner.ID, "no-such-user", models.RoleRead)
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrNotFound, apiErr.Code)
}

func TestRemove(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	admin := createTestUser(t, db, "admin")
	feed := createTestFeed(t, db, owner)

	_, err := svc.Add(ctx, feed.ID, owner.ID, admin.ID, models.RoleAdmin)
	require.NoError(t, err)

	// Admins cannot remove themselves
	err = svc.Remove(ctx, feed.ID, admin.ID, admin.ID)
	require.Error(t, err)
	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, apiErr.Code)

	require.NoError(t, svc.Remove(ctx, feed.ID, owner.ID, admin.ID))

	err = svc.Remove(ctx, feed.ID, owner.ID, admin.ID)
	require.Error(t, err)
	apiErr, ok = errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrNotFound, apiErr.Code)
}

func TestSearchUsers(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	createTestUser(t, db, "alice")
	createTestUser(t, db, "alicia")
	createTestUser(t, db, "bob")
	feed := createTestFeed(t, db, owner)

	profiles, err := svc.SearchUsers(ctx, feed.ID, owner.ID, "ali", 10)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	_, err = svc.SearchUsers(ctx, feed.ID, owner.ID, "", 10)
	require.Error(t, err)

	// Non-admins cannot search through the feed
	stranger := createTestUser(t, db, "stranger")
	_, err = svc.SearchUsers(ctx, feed.ID, stranger.ID, "ali", 10)
	require.Error(t, err)
}
