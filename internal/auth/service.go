package auth

import (
	"errors"
	"fmt"
	"time"

	apierrors "github.com/feavel/feeds/backend/internal/errors"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const tokenTTL = 24 * time.Hour

// Service handles registration, login and token validation
type Service struct {
	db        *gorm.DB
	jwtSecret []byte
}

// NewService creates an authentication service
func NewService(db *gorm.DB, jwtSecret []byte) *Service {
	return &Service{db: db, jwtSecret: jwtSecret}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required,min=3,max=30"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=50"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new user with email/password
func (s *Service) Register(req RegisterRequest) (*AuthResponse, error) {
	var existing models.User
	err := s.db.Where("LOWER(email) = LOWER(?)", req.Email).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	err = s.db.Where("LOWER(username) = LOWER(?)", req.Username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hashed),
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.generateAuthResponse(&user)
}

// Login authenticates an email/password pair
func (s *Service) Login(req LoginRequest) (*AuthResponse, error) {
	var user models.User
	err := s.db.Where("LOWER(email) = LOWER(?)", req.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.generateAuthResponse(&user)
}

// generateAuthResponse creates a signed JWT and auth response
func (s *Service) generateAuthResponse(user *models.User) (*AuthResponse, error) {
	expiresAt := time.Now().Add(tokenTTL)

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT and returns the fresh user record
func (s *Service) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid user_id in token")
	}

	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return &user, nil
}

// DeleteAccount removes a user and everything they own: their feeds
// (with comments, likes and collaborator rosters), their own comments
// and likes elsewhere, and every collaboration they were part of.
func (s *Service) DeleteAccount(userID string) error {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var ownedFeedIDs []string
		if err := tx.Model(&models.Feed{}).
			Where("user_id = ?", userID).
			Pluck("id", &ownedFeedIDs).Error; err != nil {
			return err
		}

		commentQuery := tx.Model(&models.FeedComment{}).Where("user_id = ?", userID)
		if len(ownedFeedIDs) > 0 {
			commentQuery = tx.Model(&models.FeedComment{}).
				Where("user_id = ? OR feed_id IN ?", userID, ownedFeedIDs)
		}
		var commentIDs []string
		if err := commentQuery.Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		commentIDs, err := collectCommentDescendants(tx, commentIDs)
		if err != nil {
			return err
		}

		likeQuery := tx.Where("user_id = ?", userID)
		if len(commentIDs) > 0 {
			likeQuery = tx.Where("user_id = ? OR comment_id IN ?", userID, commentIDs)
		}
		if err := likeQuery.Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("id IN ?", commentIDs).Delete(&models.FeedComment{}).Error; err != nil {
				return err
			}
		}

		feedLikeQuery := tx.Where("user_id = ?", userID)
		if len(ownedFeedIDs) > 0 {
			feedLikeQuery = tx.Where("user_id = ? OR feed_id IN ?", userID, ownedFeedIDs)
		}
		if err := feedLikeQuery.Delete(&models.FeedLike{}).Error; err != nil {
			return err
		}

		collabQuery := tx.Where("user_id = ?", userID)
		if len(ownedFeedIDs) > 0 {
			collabQuery = tx.Where("user_id = ? OR feed_id IN ?", userID, ownedFeedIDs)
		}
		if err := collabQuery.Delete(&models.FeedCollaborator{}).Error; err != nil {
			return err
		}

		if len(ownedFeedIDs) > 0 {
			if err := tx.Where("id IN ?", ownedFeedIDs).Delete(&models.Feed{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&models.User{}, "id = ?", userID).Error
	})
}

// collectCommentDescendants widens the doomed comment set to every
// reply under it, so other users' replies don't survive with a
// dangling parent
func collectCommentDescendants(tx *gorm.DB, roots []string) ([]string, error) {
	seen := make(map[string]bool, len(roots))
	all := make([]string, 0, len(roots))
	for _, id := range roots {
		seen[id] = true
		all = append(all, id)
	}

	frontier := roots
	for len(frontier) > 0 {
		var children []string
		if err := tx.Model(&models.FeedComment{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		var next []string
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			all = append(all, id)
			next = append(next, id)
		}
		frontier = next
	}
	return all, nil
}

// AsAPIError maps the auth sentinel errors to API error responses
func AsAPIError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, ErrUserExists):
		return apierrors.AlreadyExists("an account with this email")
	case errors.Is(err, ErrUsernameExists):
		return apierrors.AlreadyExists("this username")
	case errors.Is(err, ErrInvalidCredentials):
		return apierrors.Unauthorized("invalid email or password")
	case errors.Is(err, ErrUserNotFound):
		return apierrors.NotFound("user")
	default:
		return apierrors.InternalError("authentication failed")
	}
}
