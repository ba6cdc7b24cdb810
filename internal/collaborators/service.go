package collaborators

import (
	"context"
	stderrors "errors"

	"github.com/feavel/feeds/backend/internal/errors"
	"github.com/feavel/feeds/backend/internal/logger"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/feavel/feeds/backend/internal/permissions"
	"gorm.io/gorm"
)

// Service manages the collaborator roster of a feed. Every mutation
// is gated on admin access (creator or admin collaborator).
type Service struct {
	db       *gorm.DB
	resolver *permissions.Resolver
}

// NewService creates a collaborator service
func NewService(db *gorm.DB, resolver *permissions.Resolver) *Service {
	return &Service{db: db, resolver: resolver}
}

// Entry is a collaborator row joined with the user's public profile
type Entry struct {
	models.FeedCollaborator
	User models.PublicProfile `json:"user"`
}

// List returns the roster of a feed. Only the creator and the
// collaborators themselves can see it; public visibility of the feed
// does not expose who works on it.
func (s *Service) List(ctx context.Context, feedID, callerID string) ([]Entry, error) {
	var feed models.Feed
	if err := s.db.WithContext(ctx).First(&feed, "id = ?", feedID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("feed")
		}
		return nil, err
	}
	role, err := s.resolver.CollaboratorRole(ctx, &feed, callerID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, errors.PermissionDenied("view this feed's collaborators")
	}

	var rows []models.FeedCollaborator
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("feed_id = ?", feedID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			FeedCollaborator: row,
			User:             row.User.Public(),
		})
	}
	return entries, nil
}

// Add grants targetUserID a role on the feed. Requires admin access.
// The creator cannot be added; they already hold every permission.
func (s *Service) Add(ctx context.Context, feedID, callerID, targetUserID string, role models.CollaboratorRole) (*models.FeedCollaborator, error) {
	if !role.Valid() {
		return nil, errors.ValidationError("role", "role must be read, edit or admin")
	}

	feed, err := s.resolver.RequirePermission(ctx, feedID, callerID, models.RoleAdmin, "manage collaborators")
	if err != nil {
		return nil, err
	}

	if targetUserID == feed.UserID {
		return nil, errors.BadRequest("the feed creator cannot be added as a collaborator")
	}

	var target models.User
	if err := s.db.WithContext(ctx).First(&target, "id = ?", targetUserID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}

	var existing models.FeedCollaborator
	err = s.db.WithContext(ctx).
		Where("feed_id = ? AND user_id = ?", feedID, targetUserID).
		First(&existing).Error
	if err == nil {
		return nil, errors.AlreadyExists("collaborator")
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	collab := &models.FeedCollaborator{
		FeedID:  feedID,
		UserID:  targetUserID,
		Role:    role,
		AddedBy: callerID,
	}
	if err := s.db.WithContext(ctx).Create(collab).Error; err != nil {
		return nil, err
	}

	logger.Log.Info("collaborator added",
		logger.WithFeedID(feedID),
		logger.WithUserID(targetUserID),
	)
	return collab, nil
}

// UpdateRole changes an existing collaborator's role. Requires admin
// access.
func (s *Service) UpdateRole(ctx context.Context, feedID, callerID, targetUserID string, role models.CollaboratorRole) (*models.FeedCollaborator, error) {
	if !role.Valid() {
		return nil, errors.ValidationError("role", "role must be read, edit or admin")
	}

	if _, err := s.resolver.RequirePermission(ctx, feedID, callerID, models.RoleAdmin, "manage collaborators"); err != nil {
		return nil, err
	}

	var collab models.FeedCollaborator
	err := s.db.WithContext(ctx).
		Where("feed_id = ? AND user_id = ?", feedID, targetUserID).
		First(&collab).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("collaborator")
		}
		return nil, err
	}

	collab.Role = role
	if err := s.db.WithContext(ctx).Save(&collab).Error; err != nil {
		return nil, err
	}
	return &collab, nil
}

// Remove drops a collaborator from the feed. Requires admin access.
// Admins cannot remove themselves; another admin or the creator has
// to do it.
func (s *Service) Remove(ctx context.Context, feedID, callerID, targetUserID string) error {
	if _, err := s.resolver.RequirePermission(ctx, feedID, callerID, models.RoleAdmin, "manage collaborators"); err != nil {
		return err
	}

	if targetUserID == callerID {
		return errors.BadRequest("you cannot remove yourself from a feed")
	}

	res := s.db.WithContext(ctx).
		Where("feed_id = ? AND user_id = ?", feedID, targetUserID).
		Delete(&models.FeedCollaborator{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("collaborator")
	}
	return nil
}

// SearchUsers finds candidate collaborators by username or display
// name prefix. Requires admin access on the feed so random users
// cannot enumerate accounts through a private feed.
func (s *Service) SearchUsers(ctx context.Context, feedID, callerID, query string, limit int) ([]models.PublicProfile, error) {
	if _, err := s.resolver.RequirePermission(ctx, feedID, callerID, models.RoleAdmin, "manage collaborators"); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, errors.ValidationError("query", "search query is required")
	}
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	var users []models.User
	pattern := query + "%"
	if err := s.db.WithContext(ctx).
		Where("username LIKE ? OR display_name LIKE ?", pattern, pattern).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, err
	}

	profiles := make([]models.PublicProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Public())
	}
	return profiles, nil
}
