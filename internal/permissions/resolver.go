package permissions

import (
	"context"
	stderrors "errors"

	"github.com/feavel/feeds/backend/internal/errors"
	"github.com/feavel/feeds/backend/internal/models"
	"gorm.io/gorm"
)

// Resolver answers every access question about feeds. All services go
// through it so the rules live in exactly one place.
//
// The rules, in order:
//  1. The feed creator has every permission, always.
//  2. A collaborator row grants its role and everything below it
//     (admin ⊃ edit ⊃ read).
//  3. A public feed grants read to anyone, authenticated or not.
//  4. Everything else is denied.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a permission resolver on the given database
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// HasPermission reports whether userID holds at least the required
// role on the feed. userID may be empty for anonymous requests, which
// can only ever satisfy read on a public feed.
func (r *Resolver) HasPermission(ctx context.Context, feed *models.Feed, userID string, required models.CollaboratorRole) (bool, error) {
	if feed == nil {
		return false, errors.NotFound("feed")
	}
	if !required.Valid() {
		return false, errors.BadRequest("unknown permission level")
	}

	if userID != "" && feed.UserID == userID {
		return true, nil
	}

	if feed.IsPublic && required == models.RoleRead {
		return true, nil
	}

	if userID == "" {
		return false, nil
	}

	var collab models.FeedCollaborator
	err := r.db.WithContext(ctx).
		Where("feed_id = ? AND user_id = ?", feed.ID, userID).
		First(&collab).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return collab.Role.Rank() >= required.Rank(), nil
}

// HasPermissionByID loads the feed and checks the permission in one
// call. Returns the feed so callers don't load it twice.
func (r *Resolver) HasPermissionByID(ctx context.Context, feedID, userID string, required models.CollaboratorRole) (*models.Feed, bool, error) {
	var feed models.Feed
	err := r.db.WithContext(ctx).First(&feed, "id = ?", feedID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, errors.NotFound("feed")
		}
		return nil, false, err
	}

	ok, err := r.HasPermission(ctx, &feed, userID, required)
	return &feed, ok, err
}

// IsCreator reports whether userID created the feed
func (r *Resolver) IsCreator(feed *models.Feed, userID string) bool {
	return feed != nil && userID != "" && feed.UserID == userID
}

// RequirePermission is HasPermissionByID with the denial folded into
// the error. Services use it when a missing permission should abort
// the operation.
func (r *Resolver) RequirePermission(ctx context.Context, feedID, userID string, required models.CollaboratorRole, action string) (*models.Feed, error) {
	feed, ok, err := r.HasPermissionByID(ctx, feedID, userID, required)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.PermissionDenied(action)
	}
	return feed, nil
}

// CollaboratorRole returns the explicit role userID holds on the
// feed, or empty string when no collaborator row exists. The creator
// is reported as admin.
func (r *Resolver) CollaboratorRole(ctx context.Context, feed *models.Feed, userID string) (models.CollaboratorRole, error) {
	if feed == nil || userID == "" {
		return "", nil
	}
	if feed.UserID == userID {
		return models.RoleAdmin, nil
	}

	var collab models.FeedCollaborator
	err := r.db.WithContext(ctx).
		Where("feed_id = ? AND user_id = ?", feed.ID, userID).
		First(&collab).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return collab.Role, nil
}
