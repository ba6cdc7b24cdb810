package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a registered account
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Bio          string    `json:"bio"`
	AvatarKey    string    `json:"avatar_key"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// PublicProfile is the shape of a user embedded in feed and comment
// responses. Email and other private fields never leave the server.
type PublicProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarKey   string `json:"avatar_key,omitempty"`
}

// Public returns the embeddable profile view of the user
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarKey:   u.AvatarKey,
	}
}

// Feed is a content document with a cover image, free-form content
// blocks, and an owner. Visibility is controlled by IsPublic plus the
// collaborator table.
type Feed struct {
	ID        string         `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string         `json:"user_id" gorm:"index;not null"`
	User      User           `json:"-" gorm:"foreignKey:UserID"`
	Title     string         `json:"title" gorm:"not null"`
	Slug      string         `json:"slug" gorm:"uniqueIndex;not null"`
	Type      string         `json:"type" gorm:"index"`
	Language  string         `json:"language" gorm:"index"`
	Content   []any          `json:"content" gorm:"type:jsonb;serializer:json"`
	Metadata  map[string]any `json:"metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	CoverKey  string         `json:"cover_key"`
	IsPublic  bool           `json:"is_public" gorm:"index"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (f *Feed) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// CollaboratorRole is the access level granted on a feed
type CollaboratorRole string

const (
	RoleRead  CollaboratorRole = "read"
	RoleEdit  CollaboratorRole = "edit"
	RoleAdmin CollaboratorRole = "admin"
)

// Rank orders roles so that a higher role implies every lower one
func (r CollaboratorRole) Rank() int {
	switch r {
	case RoleRead:
		return 1
	case RoleEdit:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether the role is one of the known levels
func (r CollaboratorRole) Valid() bool {
	return r.Rank() > 0
}

// FeedCollaborator grants a user a role on a feed. One row per
// (feed, user) pair.
type FeedCollaborator struct {
	ID        string           `json:"id" gorm:"primaryKey;type:uuid"`
	FeedID    string           `json:"feed_id" gorm:"uniqueIndex:idx_feed_collaborators_feed_user;not null"`
	Feed      Feed             `json:"-" gorm:"foreignKey:FeedID"`
	UserID    string           `json:"user_id" gorm:"uniqueIndex:idx_feed_collaborators_feed_user;index;not null"`
	User      User             `json:"-" gorm:"foreignKey:UserID"`
	Role      CollaboratorRole `json:"role" gorm:"not null"`
	AddedBy   string           `json:"added_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (fc *FeedCollaborator) BeforeCreate(tx *gorm.DB) error {
	if fc.ID == "" {
		fc.ID = uuid.New().String()
	}
	return nil
}

// FeedComment is a comment on a feed. ParentID forms an arbitrarily
// deep reply tree; nil means top-level.
type FeedComment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	FeedID    string    `json:"feed_id" gorm:"index;not null"`
	Feed      Feed      `json:"-" gorm:"foreignKey:FeedID"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	User      User      `json:"-" gorm:"foreignKey:UserID"`
	ParentID  *string   `json:"parent_id" gorm:"index"`
	Content   string    `json:"content" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (fc *FeedComment) BeforeCreate(tx *gorm.DB) error {
	if fc.ID == "" {
		fc.ID = uuid.New().String()
	}
	return nil
}

// FeedLike records that a user liked a feed. At most one row per
// (feed, user) pair; liking twice is a no-op.
type FeedLike struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	FeedID    string    `json:"feed_id" gorm:"uniqueIndex:idx_feed_likes_feed_user;not null"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_feed_likes_feed_user;index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (fl *FeedLike) BeforeCreate(tx *gorm.DB) error {
	if fl.ID == "" {
		fl.ID = uuid.New().String()
	}
	return nil
}

// CommentLike records that a user liked a comment
type CommentLike struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CommentID string    `json:"comment_id" gorm:"uniqueIndex:idx_comment_likes_comment_user;not null"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_comment_likes_comment_user;index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (cl *CommentLike) BeforeCreate(tx *gorm.DB) error {
	if cl.ID == "" {
		cl.ID = uuid.New().String()
	}
	return nil
}
