package auth

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/feavel/feeds/backend/internal/logger"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestService(t *testing.T) *Service {
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
	return NewService(db, []byte("test-secret"))
}

func registerReq(email, username string) RegisterRequest {
	return RegisterRequest{
		Email:       email,
		Username:    username,
		Password:    "password123",
		DisplayName: "Test User",
	}
}

func TestRegisterLoginRoundtrip(t *testing.T) {
	svc := setupTestService(t)

	reg, err := svc.Register(registerReq("alice@example.com", "alice"))
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.NotEmpty(t, reg.User.ID)
	assert.NotEqual(t, "password123", reg.User.PasswordHash, "password must be stored hashed")

	login, err := svc.Login(LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	user, err := svc.ValidateToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestRegisterDuplicateChecksAreCaseInsensitive(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.Register(registerReq("alice@example.com", "alice"))
	require.NoError(t, err)

	_, err = svc.Register(registerReq("ALICE@example.com", "different"))
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Register(registerReq("other@example.com", "ALICE"))
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.Register(registerReq("alice@example.com", "alice"))
	require.NoError(t, err)

	_, err = svc.Login(LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := setupTestService(t)

	reg, err := svc.Register(registerReq("alice@example.com", "alice"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(reg.Token + "x")
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)

	other := NewService(nil, []byte("different-secret"))
	_, err = other.ValidateToken(reg.Token)
	assert.Error(t, err)
}

func TestDeleteAccountCascades(t *testing.T) {
	svc := setupTestService(t)
	db := svc.db

	alice, err := svc.Register(registerReq("alice@example.com", "alice"))
	require.NoError(t, err)
	bob, err := svc.Register(registerReq("bob@example.com", "bob"))
	require.NoError(t, err)

	// Alice owns a feed with bob collaborating, commenting and liking;
	// alice also likes bob's feed.
	aliceFeed := &models.Feed{UserID: alice.User.ID, Title: "Mine", Slug: "mine", IsPublic: true}
	require.NoError(t, db.Create(aliceFeed).Error)
	bobFeed := &models.Feed{UserID: bob.User.ID, Title: "Theirs", Slug: "theirs", IsPublic: true}
	require.NoError(t, db.Create(bobFeed).Error)

	require.NoError(t, db.Create(&models.FeedCollaborator{
		FeedID: aliceFeed.ID, UserID: bob.User.ID, Role: models.RoleEdit,
	}).Error)
	require.NoError(t, db.Create(&models.FeedCollaborator{
		FeedID: bobFeed.ID, UserID: alice.User.ID, Role: models.RoleRead,
	}).Error)

	bobComment := &models.FeedComment{FeedID: aliceFeed.ID, UserID: bob.User.ID, Content: "hi"}
	require.NoError(t, db.Create(bobComment).Error)
	bobElsewhere := &models.FeedComment{FeedID: bobFeed.ID, UserID: bob.User.ID, Content: "home"}
	require.NoError(t, db.Create(bobElsewhere).Error)
	require.NoError(t, db.Create(&models.CommentLike{CommentID: bobComment.ID, UserID: alice.User.ID}).Error)

	require.NoError(t, db.Create(&models.FeedLike{FeedID: bobFeed.ID, UserID: alice.User.ID}).Error)
	require.NoError(t, db.Create(&models.FeedLike{FeedID: aliceFeed.ID, UserID: bob.User.ID}).Error)

	require.NoError(t, svc.DeleteAccount(alice.User.ID))

	var users, feedz, collabs, commentz, feedLikes, commentLikes int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Feed{}).Count(&feedz).Error)
	require.NoError(t, db.Model(&models.FeedCollaborator{}).Count(&collabs).Error)
	require.NoError(t, db.Model(&models.FeedComment{}).Count(&commentz).Error)
	require.NoError(t, db.Model(&models.FeedLike{}).Count(&feedLikes).Error)
	require.NoError(t, db.Model(&models.CommentLike{}).Count(&commentLikes).Error)

	assert.EqualValues(t, 1, users, "bob survives")
	assert.EqualValues(t, 1, feedz, "bob's feed survives")
	assert.Zero(t, collabs, "both collaborations are gone")
	assert.EqualValues(t, 1, commentz, "only bob's comment on his own feed survives")
	assert.Zero(t, feedLikes)
	assert.Zero(t, commentLikes)

	assert.ErrorIs(t, svc.DeleteAccount(alice.User.ID), ErrUserNotFound)
}

func TestDeleteAccountRemovesReplySubtrees(t *testing.T) {
	svc := setupTestService(t)
	db := svc.db

	alice, err := svc.Register(registerReq("alice@example.com", "alice"))
	require.NoError(t, err)
	bob, err := svc.Register(registerReq("bob@example.com", "bob"))
	require.NoError(t, err)
	carol, err := svc.Register(registerReq("carol@example.com", "carol"))
	require.NoError(t, err)

	// Alice comments on carol's feed, bob replies to alice, and bob's
	// reply gets a like. Deleting alice must take the whole subtree so
	// no reply is left pointing at a missing parent.
	feed := &models.Feed{UserID: carol.User.ID, Title: "Carol's", Slug: "carols", IsPublic: true}
	require.NoError(t, db.Create(feed).Error)

	aliceComment := &models.FeedComment{FeedID: feed.ID, UserID: alice.User.ID, Content: "hi"}
	require.NoError(t, db.Create(aliceComment).Error)
	bobReply := &models.FeedComment{FeedID: feed.ID, UserID: bob.User.ID, ParentID: &aliceComment.ID, Content: "re: hi"}
	require.NoError(t, db.Create(bobReply).Error)
	bobNested := &models.FeedComment{FeedID: feed.ID, UserID: bob.User.ID, ParentID: &bobReply.ID, Content: "re: re: hi"}
	require.NoError(t, db.Create(bobNested).Error)
	require.NoError(t, db.Create(&models.CommentLike{CommentID: bobReply.ID, UserID: carol.User.ID}).Error)

	// A top-level comment by bob on the same feed survives
	bobOwn := &models.FeedComment{FeedID: feed.ID, UserID: bob.User.ID, Content: "unrelated"}
	require.NoError(t, db.Create(bobOwn).Error)

	require.NoError(t, svc.DeleteAccount(alice.User.ID))

	var comments int64
	require.NoError(t, db.Model(&models.FeedComment{}).Count(&comments).Error)
	assert.EqualValues(t, 1, comments)

	var survivor models.FeedComment
	require.NoError(t, db.First(&survivor).Error)
	assert.Equal(t, bobOwn.ID, survivor.ID)

	var likeCount int64
	require.NoError(t, db.Model(&models.CommentLike{}).Count(&likeCount).Error)
	assert.Zero(t, likeCount, "likes on the deleted subtree are gone")
}

func TestAsAPIErrorMapping(t *testing.T) {
	assert.Equal(t, http.StatusConflict, AsAPIError(ErrUserExists).Status)
	assert.Equal(t, http.StatusConflict, AsAPIError(ErrUsernameExists).Status)
	assert.Equal(t, http.StatusUnauthorized, AsAPIError(ErrInvalidCredentials).Status)
	assert.Equal(t, http.StatusNotFound, AsAPIError(ErrUserNotFound).Status)
	assert.Equal(t, http.StatusInternalServerError, AsAPIError(assert.AnError).Status)
}
