package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/feavel/feeds/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize creates and configures the database connection
func Initialize() (*gorm.DB, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// Fallback to individual components
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "feeds")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("✅ Database connected successfully")

	return db, nil
}

// Migrate runs auto-migration for all models
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Feed{},
		&models.FeedCollaborator{},
		&models.FeedComment{},
		&models.FeedLike{},
		&models.CommentLike{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("✅ Database migrations completed")
	return nil
}

// createIndexes creates performance indexes beyond what the struct
// tags declare. Postgres-only syntax goes here so sqlite test
// databases can skip it.
func createIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	// User lookups by normalized email/username
	db.Exec("CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))")

	// Feed listing queries walk (scope, created_at DESC)
	db.Exec("CREATE INDEX IF NOT EXISTS idx_feeds_user_created ON feeds (user_id, created_at DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_feeds_public_created ON feeds (is_public, created_at DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_feeds_public_lang_created ON feeds (is_public, language, created_at DESC)")

	// Comment retrieval per feed, newest first
	db.Exec("CREATE INDEX IF NOT EXISTS idx_feed_comments_feed_created ON feed_comments (feed_id, created_at DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_feed_comments_parent ON feed_comments (parent_id) WHERE parent_id IS NOT NULL")

	// Like counting and per-user like lookups
	db.Exec("CREATE INDEX IF NOT EXISTS idx_feed_likes_feed ON feed_likes (feed_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_comment_likes_comment ON comment_likes (comment_id)")

	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
