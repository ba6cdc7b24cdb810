package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/feavel/feeds/backend/internal/feeds"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var feedTypes = []string{"articles", "products", "services"}
var languages = []string{"en", "zh", "es", "fr"}

// Seeder fills the database with fake users, feeds, collaborators,
// comments and likes for local development
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a seeder
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Options controls how much data gets generated
type Options struct {
	Users           int
	FeedsPerUser    int
	CommentsPerFeed int
	Password        string
}

// DefaultOptions is a reasonable local dataset
func DefaultOptions() Options {
	return Options{
		Users:           10,
		FeedsPerUser:    5,
		CommentsPerFeed: 8,
		Password:        "password123",
	}
}

// Run generates and inserts the dataset
func (s *Seeder) Run(opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	users := make([]models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		user := models.User{
			Email:        gofakeit.Email(),
			Username:     fmt.Sprintf("%s%d", gofakeit.Username(), i),
			DisplayName:  gofakeit.Name(),
			PasswordHash: string(hash),
			Bio:          gofakeit.Sentence(10),
		}
		if err := s.db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}
	log.Printf("Seeded %d users", len(users))

	var allFeeds []models.Feed
	for _, user := range users {
		for i := 0; i < opts.FeedsPerUser; i++ {
			title := gofakeit.Sentence(4)
			slug, err := seedSlug(s.db, title)
			if err != nil {
				return err
			}
			feed := models.Feed{
				UserID:   user.ID,
				Title:    title,
				Slug:     slug,
				Type:     lo.Sample(feedTypes),
				Language: lo.Sample(languages),
				IsPublic: rand.Float32() < 0.7,
				Content: []any{
					map[string]any{"type": "paragraph", "text": gofakeit.Paragraph(1, 3, 12, " ")},
				},
			}
			if err := s.db.Create(&feed).Error; err != nil {
				return fmt.Errorf("failed to create feed: %w", err)
			}
			allFeeds = append(allFeeds, feed)
		}
	}
	log.Printf("Seeded %d feeds", len(allFeeds))

	// Sprinkle collaborators over private feeds
	collaborators := 0
	for _, feed := range allFeeds {
		if rand.Float32() > 0.4 {
			continue
		}
		other := lo.Sample(users)
		if other.ID == feed.UserID {
			continue
		}
		role := lo.Sample([]models.CollaboratorRole{models.RoleRead, models.RoleEdit, models.RoleAdmin})
		collab := models.FeedCollaborator{
			FeedID:  feed.ID,
			UserID:  other.ID,
			Role:    role,
			AddedBy: feed.UserID,
		}
		if err := s.db.Create(&collab).Error; err == nil {
			collaborators++
		}
	}
	log.Printf("Seeded %d collaborators", collaborators)

	comments := 0
	likes := 0
	for _, feed := range allFeeds {
		var parents []string
		for i := 0; i < opts.CommentsPerFeed; i++ {
			author := lo.Sample(users)
			comment := models.FeedComment{
				FeedID:  feed.ID,
				UserID:  author.ID,
				Content: gofakeit.Sentence(12),
			}
			// Roughly a third of comments are replies
			if len(parents) > 0 && rand.Float32() < 0.35 {
				parent := parents[rand.Intn(len(parents))]
				comment.ParentID = &parent
			}
			if err := s.db.Create(&comment).Error; err != nil {
				return fmt.Errorf("failed to create comment: %w", err)
			}
			parents = append(parents, comment.ID)
			comments++
		}

		for _, user := range users {
			if rand.Float32() < 0.3 {
				like := models.FeedLike{FeedID: feed.ID, UserID: user.ID}
				if err := s.db.Create(&like).Error; err == nil {
					likes++
				}
			}
		}
	}
	log.Printf("Seeded %d comments and %d likes", comments, likes)

	return nil
}

func seedSlug(db *gorm.DB, title string) (string, error) {
	base := feeds.Slugify(title)
	slug := base
	for i := 0; ; i++ {
		if i > 0 {
			slug = fmt.Sprintf("%s-%d", base, i)
		}
		var count int64
		if err := db.Model(&models.Feed{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
	}
}
