package handlers

import (
	"github.com/feavel/feeds/backend/internal/auth"
	"github.com/feavel/feeds/backend/internal/collaborators"
	"github.com/feavel/feeds/backend/internal/comments"
	"github.com/feavel/feeds/backend/internal/feeds"
	"github.com/feavel/feeds/backend/internal/likes"
	"github.com/feavel/feeds/backend/internal/storage"
	"gorm.io/gorm"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db            *gorm.DB
	auth          *auth.Service
	feeds         *feeds.Service
	collaborators *collaborators.Service
	comments      *comments.Service
	likes         *likes.Service
	uploader      storage.Uploader
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	db *gorm.DB,
	authSvc *auth.Service,
	feedSvc *feeds.Service,
	collabSvc *collaborators.Service,
	commentSvc *comments.Service,
	likeSvc *likes.Service,
	uploader storage.Uploader,
) *Handlers {
	return &Handlers{
		db:            db,
		auth:          authSvc,
		feeds:         feedSvc,
		collaborators: collabSvc,
		comments:      commentSvc,
		likes:         likeSvc,
		uploader:      uploader,
	}
}
